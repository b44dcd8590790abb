package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anjeev1098/reservation-system/internal/config"
	"github.com/anjeev1098/reservation-system/internal/handlers"
	"github.com/anjeev1098/reservation-system/internal/registration"
)

// Store is what the router needs from the persistence layer.
type Store interface {
	handlers.CatalogStore
	handlers.AttendeeLister
	Ping(ctx context.Context) error
}

// Deps are the components the routes delegate to.
type Deps struct {
	Store     Store
	Cache     handlers.Invalidator // optional
	Purchaser handlers.Purchaser
	Intake    handlers.AnswerIntake
	Exporter  handlers.Exporter
	Logger    *slog.Logger
}

// NewRouter wires the probes and the registration API.
// Probes: /health, /ready
// API: /events, /events/:event_id/*, /answers
func NewRouter(cfg config.Config, d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(handlers.RequestLogger(logger))

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the store is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := d.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	var catalog registration.Catalog = d.Store

	handlers.RegisterCatalogRoutes(r, d.Store, d.Cache, logger)
	handlers.RegisterPurchaseRoutes(r, d.Purchaser, logger)
	handlers.RegisterAnswerRoutes(r, d.Intake, logger)
	handlers.RegisterAttendeeRoutes(r, catalog, d.Store, d.Exporter, cfg.Mail.ReportRecipient, logger)

	return r
}
