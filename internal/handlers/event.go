package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anjeev1098/reservation-system/internal/models"
	"github.com/anjeev1098/reservation-system/internal/registration"
)

// CatalogStore reads and replaces catalog entries.
type CatalogStore interface {
	registration.Catalog
	UpsertCatalog(ctx context.Context, ev registration.Event, tickets []registration.TicketType) error
	ListEvents(ctx context.Context) ([]registration.Event, error)
	GetEventBySlug(ctx context.Context, slug string) (registration.Event, error)
}

// Invalidator drops cached catalog entries of an event.
type Invalidator interface {
	Invalidate(ctx context.Context, eventID string) error
}

// RegisterCatalogRoutes registers the catalog endpoints.
//
// PUT /events
// - Inserts or updates an event and its ticket types in one transaction
// - A changed question form becomes a new form version
//
// GET /events
// - Lists every event with its ticket types
// - ?slug= returns the single event carrying that slug
//
// GET /events/:event_id
// - Returns the event with live remaining quantities
func RegisterCatalogRoutes(r gin.IRoutes, st CatalogStore, cache Invalidator, logger *slog.Logger) {
	r.PUT("/events", func(c *gin.Context) {
		var req models.UpsertEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badJSON(c, err)
			return
		}

		ev, tickets := req.Event()
		ctx := c.Request.Context()
		if err := st.UpsertCatalog(ctx, ev, tickets); err != nil {
			writeError(c, logger, err)
			return
		}

		// Stale cache entries only affect pre-validation; the purchase
		// transaction re-reads the store.
		if cache != nil {
			if err := cache.Invalidate(ctx, ev.ID); err != nil {
				logger.Warn("invalidate catalog cache", "event_id", ev.ID, "error", err)
			}
		}

		resp, err := loadEvent(ctx, st, ev.ID)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	r.GET("/events", func(c *gin.Context) {
		ctx := c.Request.Context()

		if slug, ok := c.GetQuery("slug"); ok {
			if slug == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "slug must not be empty", "code": "invalid_request"})
				return
			}
			ev, err := st.GetEventBySlug(ctx, slug)
			if err != nil {
				writeError(c, logger, catalogErr("get event by slug", err))
				return
			}
			resp, err := loadEvent(ctx, st, ev.ID)
			if err != nil {
				writeError(c, logger, err)
				return
			}
			c.JSON(http.StatusOK, resp)
			return
		}

		events, err := st.ListEvents(ctx)
		if err != nil {
			writeError(c, logger, &registration.PersistenceError{Op: "list events", Err: err})
			return
		}
		resp := models.EventListResponse{Events: make([]models.EventResponse, 0, len(events))}
		for _, ev := range events {
			tickets, err := st.GetTicketTypes(ctx, ev.ID)
			if err != nil {
				writeError(c, logger, &registration.PersistenceError{Op: "get ticket types", Err: err})
				return
			}
			resp.Events = append(resp.Events, models.EventResponse{Event: ev, Tickets: tickets})
		}
		c.JSON(http.StatusOK, resp)
	})

	r.GET("/events/:event_id", func(c *gin.Context) {
		resp, err := loadEvent(c.Request.Context(), st, c.Param("event_id"))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	})
}

// catalogErr keeps ErrUnknownEvent and wraps anything else as a storage failure.
func catalogErr(op string, err error) error {
	if errors.Is(err, registration.ErrUnknownEvent) {
		return err
	}
	return &registration.PersistenceError{Op: op, Err: err}
}

func loadEvent(ctx context.Context, cat registration.Catalog, eventID string) (models.EventResponse, error) {
	ev, err := cat.GetEvent(ctx, eventID)
	if err != nil {
		return models.EventResponse{}, err
	}
	tickets, err := cat.GetTicketTypes(ctx, eventID)
	if err != nil {
		return models.EventResponse{}, &registration.PersistenceError{Op: "get ticket types", Err: err}
	}
	return models.EventResponse{Event: ev, Tickets: tickets}, nil
}
