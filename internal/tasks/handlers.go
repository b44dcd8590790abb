package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/anjeev1098/reservation-system/internal/mailer"
	"github.com/anjeev1098/reservation-system/internal/registration"
	"github.com/anjeev1098/reservation-system/internal/report"
)

// Mailer sends one e-mail.
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// AttendeeSource is the read side the export needs.
type AttendeeSource interface {
	report.FormSource
	ListAttendees(ctx context.Context, eventID string) ([]registration.AttendeeRecord, error)
}

// Sweeper releases expired reservations.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Handlers processes every task type in this package.
type Handlers struct {
	catalog   registration.Catalog
	attendees AttendeeSource
	sweeper   Sweeper
	mailer    Mailer
	logger    *slog.Logger
}

type HandlerOptions struct {
	Catalog   registration.Catalog
	Attendees AttendeeSource
	Sweeper   Sweeper
	Mailer    Mailer
	Logger    *slog.Logger
}

func NewHandlers(opts HandlerOptions) *Handlers {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handlers{
		catalog:   opts.Catalog,
		attendees: opts.Attendees,
		sweeper:   opts.Sweeper,
		mailer:    opts.Mailer,
		logger:    opts.Logger,
	}
}

// Register binds each task type to its handler.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeRegistrationConfirm, h.HandleRegistrationConfirm)
	mux.HandleFunc(TypeAttendeeExport, h.HandleAttendeeExport)
	mux.HandleFunc(TypeReservationSweep, h.HandleReservationSweep)
}

func (h *Handlers) HandleRegistrationConfirm(ctx context.Context, t *asynq.Task) error {
	var p RegistrationConfirmPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	ev, err := h.catalog.GetEvent(ctx, p.EventID)
	if errors.Is(err, registration.ErrUnknownEvent) {
		return fmt.Errorf("event %s: %w", p.EventID, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	msg, err := mailer.ConfirmationMessage(mailer.Confirmation{
		To:                p.Email,
		Name:              p.FirstName,
		EventName:         ev.Name,
		OrderCompleteText: ev.OrderCompleteText,
		ReferenceID:       p.ReferenceID,
	})
	if err != nil {
		return fmt.Errorf("render confirmation: %v: %w", err, asynq.SkipRetry)
	}
	if err := h.mailer.Send(ctx, msg); err != nil {
		return err
	}

	h.logger.Info("confirmation sent", "attendee_id", p.ReferenceID, "event_id", p.EventID)
	return nil
}

func (h *Handlers) HandleAttendeeExport(ctx context.Context, t *asynq.Task) error {
	var p AttendeeExportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.Recipient == "" {
		return fmt.Errorf("export %s has no recipient: %w", p.EventID, asynq.SkipRetry)
	}

	recs, err := h.attendees.ListAttendees(ctx, p.EventID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		h.logger.Info("export skipped, no attendees", "event_id", p.EventID)
		return nil
	}

	csv, err := report.BuildCSV(ctx, h.attendees, recs)
	if err != nil {
		return err
	}
	if err := h.mailer.Send(ctx, mailer.ReportMessage(p.Recipient, p.EventID, csv)); err != nil {
		return err
	}

	h.logger.Info("attendee export sent", "event_id", p.EventID, "attendees", len(recs))
	return nil
}

func (h *Handlers) HandleReservationSweep(ctx context.Context, _ *asynq.Task) error {
	n, err := h.sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	h.logger.Debug("reservation sweep done", "released", n)
	return nil
}
