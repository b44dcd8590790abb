package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Intake accepts answer submissions for reserved seats.
type Intake struct {
	store        Store
	reservations *Reservations
	notifier     Notifier
	logger       *slog.Logger
	now          func() time.Time
}

// NewIntake returns the answer intake; opts.Notifier may be nil.
func NewIntake(opts Options) *Intake {
	opts = opts.withDefaults()
	return &Intake{
		store:        opts.Store,
		reservations: NewReservations(opts),
		notifier:     opts.Notifier,
		logger:       opts.Logger,
		now:          opts.Now,
	}
}

// SubmitAnswer turns an active reservation into an attendee record.
//
// The reservation lookup and the attendee insert share one transaction, so
// a failed insert leaves the reservation in place for a retry. Retiring
// the reservation happens after commit and only logs on failure.
func (in *Intake) SubmitAnswer(ctx context.Context, sub Submission) (AttendeeRecord, error) {
	if sub.EventID == "" || sub.TicketID == "" || sub.AttendeeID == "" || sub.OrderID == "" {
		return AttendeeRecord{}, fmt.Errorf("%w: event, ticket, attendee and order ids are required", ErrInvalidRequest)
	}

	var rec AttendeeRecord
	err := in.store.RunInTx(ctx, func(tx Store) error {
		res, ok, err := in.reservations.withStore(tx).LookupActive(ctx, sub.Key())
		if err != nil {
			return err
		}
		if !ok {
			return ErrReservationExpiredOrInvalid
		}

		rec = AttendeeRecord{
			ReferenceID:    res.AttendeeID,
			OrderID:        res.TempOrderID,
			EventID:        res.EventID,
			TicketID:       res.TicketID,
			FormVersion:    res.FormVersion,
			PersonalFields: sub.Personal,
			CustomAnswers:  sub.Answers,
			CreatedAt:      in.now().UTC(),
		}
		if err := tx.InsertAttendee(ctx, rec); err != nil {
			if errors.Is(err, ErrDuplicateAttendee) {
				return ErrReservationExpiredOrInvalid
			}
			return &PersistenceError{Op: "insert attendee", Err: err}
		}
		return nil
	})
	if err != nil {
		return AttendeeRecord{}, err
	}

	if err := in.reservations.Retire(ctx, rec.ReferenceID); err != nil {
		in.logger.Warn("retire reservation after answer",
			"attendee_id", rec.ReferenceID, "order_id", rec.OrderID, "error", err)
	}

	if in.notifier != nil {
		if err := in.notifier.RegistrationConfirmed(ctx, rec); err != nil {
			in.logger.Warn("dispatch registration confirmation",
				"attendee_id", rec.ReferenceID, "error", err)
		}
	}

	return rec, nil
}

// SubmitBatch processes one submission per seat of a multi-ticket order in
// order and stops at the first failure. Submissions before the failing one
// stay committed and are listed in the returned *BatchError.
func (in *Intake) SubmitBatch(ctx context.Context, subs []Submission) ([]AttendeeRecord, error) {
	if len(subs) == 0 {
		return nil, fmt.Errorf("%w: no submissions", ErrInvalidRequest)
	}

	recs := make([]AttendeeRecord, 0, len(subs))
	for i, sub := range subs {
		rec, err := in.SubmitAnswer(ctx, sub)
		if err != nil {
			done := make([]string, len(recs))
			for j, r := range recs {
				done[j] = r.ReferenceID
			}
			return recs, &BatchError{Index: i, Completed: done, Err: err}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
