package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/anjeev1098/reservation-system/internal/registration"
)

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher queues background work from the API process.
type Dispatcher struct {
	client Enqueuer
	logger *slog.Logger
}

var _ registration.Notifier = (*Dispatcher)(nil)

func NewDispatcher(client Enqueuer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{client: client, logger: logger}
}

// RegistrationConfirmed queues the confirmation e-mail for rec.
func (d *Dispatcher) RegistrationConfirmed(ctx context.Context, rec registration.AttendeeRecord) error {
	if rec.Email == "" {
		return nil
	}
	task, err := NewRegistrationConfirmTask(rec)
	if err != nil {
		return err
	}
	info, err := d.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	d.logger.Debug("confirmation queued", "task_id", info.ID, "attendee_id", rec.ReferenceID)
	return nil
}

// ExportAttendees queues a CSV export of eventID's attendees to recipient
// and returns the task id.
func (d *Dispatcher) ExportAttendees(ctx context.Context, eventID, recipient string) (string, error) {
	task, err := NewAttendeeExportTask(eventID, recipient)
	if err != nil {
		return "", err
	}
	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", err
	}
	d.logger.Info("attendee export queued", "task_id", info.ID, "event_id", eventID)
	return info.ID, nil
}
