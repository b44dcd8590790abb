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
	"github.com/anjeev1098/reservation-system/internal/report"
)

// AttendeeLister reads attendee records of an event.
type AttendeeLister interface {
	ListAttendees(ctx context.Context, eventID string) ([]registration.AttendeeRecord, error)
}

// Exporter queues an attendee CSV export.
type Exporter interface {
	ExportAttendees(ctx context.Context, eventID, recipient string) (string, error)
}

// RegisterAttendeeRoutes registers the reporting endpoints.
//
// GET /events/:event_id/attendees
// - Attendee records grouped by order
//
// POST /events/:event_id/export
// - Queues a CSV report e-mail; recipient defaults to defaultRecipient
// - 202: delivery happens in the worker
func RegisterAttendeeRoutes(r gin.IRoutes, cat registration.Catalog, st AttendeeLister, exp Exporter, defaultRecipient string, logger *slog.Logger) {
	r.GET("/events/:event_id/attendees", func(c *gin.Context) {
		ctx := c.Request.Context()
		eventID := c.Param("event_id")

		if _, err := cat.GetEvent(ctx, eventID); err != nil {
			writeError(c, logger, err)
			return
		}

		recs, err := st.ListAttendees(ctx, eventID)
		if err != nil {
			writeError(c, logger, &registration.PersistenceError{Op: "list attendees", Err: err})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"event_id": eventID,
			"orders":   models.NewOrderViews(report.GroupByOrder(recs)),
		})
	})

	r.POST("/events/:event_id/export", func(c *gin.Context) {
		ctx := c.Request.Context()
		eventID := c.Param("event_id")

		var req models.ExportRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badJSON(c, err)
			return
		}
		recipient := req.Recipient
		if recipient == "" {
			recipient = defaultRecipient
		}
		if recipient == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "recipient required", "code": "invalid_request"})
			return
		}

		if _, err := cat.GetEvent(ctx, eventID); err != nil {
			writeError(c, logger, err)
			return
		}

		if exp == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "export queue unavailable", "code": "internal"})
			return
		}
		taskID, err := exp.ExportAttendees(ctx, eventID, recipient)
		if err != nil {
			logger.Error("queue attendee export", "event_id", eventID, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "export queue unavailable", "code": "internal"})
			return
		}

		c.JSON(http.StatusAccepted, models.ExportResponse{TaskID: taskID, EventID: eventID, Recipient: recipient})
	})
}
