package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anjeev1098/reservation-system/internal/models"
	"github.com/anjeev1098/reservation-system/internal/registration"
)

// Purchaser reserves seats for one order.
type Purchaser interface {
	Purchase(ctx context.Context, eventID string, requests []registration.SeatRequest) (registration.Receipt, error)
}

// RegisterPurchaseRoutes registers the purchase endpoint.
//
// POST /events/:event_id/purchase
// - Validates every requested ticket before any write
// - Reserves all seats of the order in one transaction or none of them
// - 201 with one attendee id and question form per seat
func RegisterPurchaseRoutes(r gin.IRoutes, p Purchaser, logger *slog.Logger) {
	r.POST("/events/:event_id/purchase", func(c *gin.Context) {
		var req models.PurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badJSON(c, err)
			return
		}

		receipt, err := p.Purchase(c.Request.Context(), c.Param("event_id"), req.SeatRequests())
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, models.NewPurchaseResponse(receipt))
	})
}
