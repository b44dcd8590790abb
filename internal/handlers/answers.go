package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anjeev1098/reservation-system/internal/models"
	"github.com/anjeev1098/reservation-system/internal/registration"
)

// AnswerIntake turns reservations into attendee records.
type AnswerIntake interface {
	SubmitAnswer(ctx context.Context, sub registration.Submission) (registration.AttendeeRecord, error)
	SubmitBatch(ctx context.Context, subs []registration.Submission) ([]registration.AttendeeRecord, error)
}

// RegisterAnswerRoutes registers the answer endpoints.
//
// POST /answers
// - Accepted once per reservation, inside the reservation window
//
// POST /answers/batch
// - JSON array, one submission per seat
// - Stops at the first failure and reports the submissions already recorded
func RegisterAnswerRoutes(r gin.IRoutes, in AnswerIntake, logger *slog.Logger) {
	r.POST("/answers", func(c *gin.Context) {
		var req models.AnswerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badJSON(c, err)
			return
		}

		rec, err := in.SubmitAnswer(c.Request.Context(), req.Submission())
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, models.NewAttendeeView(rec))
	})

	r.POST("/answers/batch", func(c *gin.Context) {
		var reqs []models.AnswerRequest
		if err := c.ShouldBindJSON(&reqs); err != nil {
			badJSON(c, err)
			return
		}

		subs := make([]registration.Submission, 0, len(reqs))
		for _, req := range reqs {
			subs = append(subs, req.Submission())
		}

		recs, err := in.SubmitBatch(c.Request.Context(), subs)
		if err != nil {
			writeError(c, logger, err)
			return
		}

		resp := models.BatchAnswerResponse{Attendees: make([]models.AttendeeView, 0, len(recs))}
		for _, rec := range recs {
			resp.Attendees = append(resp.Attendees, models.NewAttendeeView(rec))
		}
		c.JSON(http.StatusCreated, resp)
	})
}
