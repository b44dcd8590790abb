package registration

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownEvent                = errors.New("event not found")
	ErrUnknownTicket               = errors.New("ticket type not found")
	ErrInvalidTicket               = errors.New("invalid ticket id")
	ErrMultipleTicketsNotAllowed   = errors.New("not allowed to choose multiple tickets")
	ErrInsufficientInventory       = errors.New("not enough tickets remaining")
	ErrReservationExpiredOrInvalid = errors.New("reservation expired or not allowed to answer this form")
	ErrPersistence                 = errors.New("storage operation failed")
	ErrNotFound                    = errors.New("not found")
	ErrInvalidRequest              = errors.New("invalid request")
	ErrRegistrationClosed          = errors.New("registration is closed for this event")

	// ErrDuplicateAttendee is returned by stores when an attendee record
	// with the same reference id already exists.
	ErrDuplicateAttendee = errors.New("attendee already registered")
)

// InvalidTicketError lists requested ticket ids that do not belong to the event.
type InvalidTicketError struct {
	TicketIDs []string
}

func (e *InvalidTicketError) Error() string {
	return fmt.Sprintf("invalid ticket id: %s", strings.Join(e.TicketIDs, ", "))
}

func (e *InvalidTicketError) Is(target error) bool {
	return target == ErrInvalidTicket
}

// PersistenceError wraps a storage failure. The cause is kept for logs and
// never rendered to callers.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// BatchError reports the submission that stopped a batch. Completed items
// before Index stay committed.
type BatchError struct {
	Index     int
	Completed []string
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("submission %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
