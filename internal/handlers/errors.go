package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anjeev1098/reservation-system/internal/registration"
)

// errorKinds is checked in order; the first match wins.
var errorKinds = []struct {
	err    error
	status int
	code   string
}{
	{registration.ErrUnknownEvent, http.StatusNotFound, "unknown_event"},
	{registration.ErrInvalidTicket, http.StatusBadRequest, "invalid_ticket"},
	{registration.ErrUnknownTicket, http.StatusBadRequest, "invalid_ticket"},
	{registration.ErrMultipleTicketsNotAllowed, http.StatusUnprocessableEntity, "multiple_tickets_not_allowed"},
	{registration.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{registration.ErrRegistrationClosed, http.StatusForbidden, "registration_closed"},
	{registration.ErrInsufficientInventory, http.StatusConflict, "insufficient_inventory"},
	{registration.ErrReservationExpiredOrInvalid, http.StatusForbidden, "reservation_expired_or_invalid"},
	{registration.ErrNotFound, http.StatusNotFound, "not_found"},
	{registration.ErrPersistence, http.StatusInternalServerError, "persistence_error"},
}

// errorBody maps err to a status and the JSON body sent to the client.
// Server-side failures never expose their cause.
func errorBody(err error) (int, gin.H) {
	status, code := http.StatusInternalServerError, "internal"
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			status, code = k.status, k.code
			break
		}
	}

	msg := err.Error()
	switch {
	case code == "persistence_error":
		msg = registration.ErrPersistence.Error()
	case status >= http.StatusInternalServerError:
		msg = "internal error"
	}

	body := gin.H{"error": msg, "code": code}

	var ite *registration.InvalidTicketError
	if errors.As(err, &ite) {
		body["ticket_ids"] = ite.TicketIDs
	}
	var be *registration.BatchError
	if errors.As(err, &be) {
		body["index"] = be.Index
		body["completed"] = be.Completed
		if status < http.StatusInternalServerError {
			body["error"] = be.Err.Error()
		}
	}
	return status, body
}

func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, body)
}

func badJSON(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload: " + err.Error(), "code": "invalid_request"})
}
