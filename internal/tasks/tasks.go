// Package tasks defines the background work queued on asynq: confirmation
// e-mails, attendee exports and the periodic reservation sweep.
package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/anjeev1098/reservation-system/internal/registration"
)

const (
	TypeRegistrationConfirm = "registration:confirm"
	TypeAttendeeExport      = "attendees:export"
	TypeReservationSweep    = "reservations:sweep"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Task payloads
type RegistrationConfirmPayload struct {
	ReferenceID string `json:"reference_id"`
	OrderID     string `json:"order_id"`
	EventID     string `json:"event_id"`
	TicketID    string `json:"ticket_id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

type AttendeeExportPayload struct {
	EventID   string `json:"event_id"`
	Recipient string `json:"recipient"`
}

type ReservationSweepPayload struct{}

func NewRegistrationConfirmTask(rec registration.AttendeeRecord) (*asynq.Task, error) {
	b, err := json.Marshal(RegistrationConfirmPayload{
		ReferenceID: rec.ReferenceID,
		OrderID:     rec.OrderID,
		EventID:     rec.EventID,
		TicketID:    rec.TicketID,
		Email:       rec.Email,
		FirstName:   rec.FirstName,
		LastName:    rec.LastName,
	})
	if err != nil {
		return nil, err
	}
	// One confirmation per attendee; a retried enqueue must not mail twice.
	return asynq.NewTask(TypeRegistrationConfirm, b,
		asynq.TaskID("confirm:"+rec.ReferenceID),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

func NewAttendeeExportTask(eventID, recipient string) (*asynq.Task, error) {
	b, err := json.Marshal(AttendeeExportPayload{EventID: eventID, Recipient: recipient})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAttendeeExport, b,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
	), nil
}

func NewReservationSweepTask() *asynq.Task {
	b, _ := json.Marshal(ReservationSweepPayload{})
	return asynq.NewTask(TypeReservationSweep, b,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(0),
		asynq.Timeout(time.Minute),
	)
}
