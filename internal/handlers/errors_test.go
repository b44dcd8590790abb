package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/anjeev1098/reservation-system/internal/registration"
)

func TestErrorBody(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown event", registration.ErrUnknownEvent, http.StatusNotFound, "unknown_event"},
		{"invalid ticket", &registration.InvalidTicketError{TicketIDs: []string{"x"}}, http.StatusBadRequest, "invalid_ticket"},
		{"multiple", registration.ErrMultipleTicketsNotAllowed, http.StatusUnprocessableEntity, "multiple_tickets_not_allowed"},
		{"invalid request", fmt.Errorf("%w: bad qty", registration.ErrInvalidRequest), http.StatusBadRequest, "invalid_request"},
		{"closed", registration.ErrRegistrationClosed, http.StatusForbidden, "registration_closed"},
		{"sold out", registration.ErrInsufficientInventory, http.StatusConflict, "insufficient_inventory"},
		{"expired", registration.ErrReservationExpiredOrInvalid, http.StatusForbidden, "reservation_expired_or_invalid"},
		{"not found", registration.ErrNotFound, http.StatusNotFound, "not_found"},
		{"persistence", &registration.PersistenceError{Op: "insert", Err: errors.New("pq: secret detail")}, http.StatusInternalServerError, "persistence_error"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, body := errorBody(tc.err)
			if status != tc.status || body["code"] != tc.code {
				t.Fatalf("got %d %v, want %d %s", status, body["code"], tc.status, tc.code)
			}
		})
	}
}

func TestErrorBody_HidesStorageDetail(t *testing.T) {
	_, body := errorBody(&registration.PersistenceError{Op: "insert", Err: errors.New("pq: secret detail")})
	if body["error"] != registration.ErrPersistence.Error() {
		t.Fatalf("storage detail leaked: %v", body["error"])
	}
}

func TestErrorBody_Extras(t *testing.T) {
	_, body := errorBody(&registration.InvalidTicketError{TicketIDs: []string{"a", "b"}})
	ids, ok := body["ticket_ids"].([]string)
	if !ok || len(ids) != 2 {
		t.Fatalf("ticket ids missing: %v", body)
	}

	status, body := errorBody(&registration.BatchError{
		Index: 2, Completed: []string{"a1", "a2"}, Err: registration.ErrReservationExpiredOrInvalid,
	})
	if status != http.StatusForbidden || body["index"] != 2 {
		t.Fatalf("unexpected batch body: %d %v", status, body)
	}
	if body["error"] != registration.ErrReservationExpiredOrInvalid.Error() {
		t.Fatalf("batch error message: %v", body["error"])
	}
}
