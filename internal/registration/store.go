package registration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"
)

// DefaultReservationWindow is how long a seat stays held for its buyer.
const DefaultReservationWindow = 15 * time.Minute

// Catalog is the read-only event/ticket lookup.
type Catalog interface {
	// GetEvent returns ErrUnknownEvent when the event does not exist.
	GetEvent(ctx context.Context, eventID string) (Event, error)
	GetTicketTypes(ctx context.Context, eventID string) ([]TicketType, error)
}

// Store is the relational persistence the workflow runs on. Every mutating
// method must be a single atomic statement against the backing store.
type Store interface {
	Catalog

	// RunInTx runs fn against a Store bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(tx Store) error) error

	// DecrementInventory subtracts count only if at least count remain.
	// It returns ErrUnknownTicket or ErrInsufficientInventory otherwise.
	DecrementInventory(ctx context.Context, ticketID string, count int) (int, error)
	IncrementInventory(ctx context.Context, ticketID string, count int) (int, error)

	InsertReservation(ctx context.Context, r Reservation) error
	// FindReservation returns the reservation matching key exactly and
	// created after createdAfter, or ErrNotFound.
	FindReservation(ctx context.Context, key ReservationKey, createdAfter time.Time) (Reservation, error)
	// DeleteReservation returns ErrNotFound when no row was deleted.
	DeleteReservation(ctx context.Context, attendeeID string) error
	// DeleteExpiredReservations removes up to limit reservations created at
	// or before cutoff and returns them. An empty ticketID means any ticket.
	DeleteExpiredReservations(ctx context.Context, ticketID string, cutoff time.Time, limit int) ([]Reservation, error)

	// InsertAttendee returns ErrDuplicateAttendee if the reference id exists.
	InsertAttendee(ctx context.Context, rec AttendeeRecord) error
	AttendeeExists(ctx context.Context, attendeeID string) (bool, error)
	ListAttendees(ctx context.Context, eventID string) ([]AttendeeRecord, error)
	GetQuestionForm(ctx context.Context, ticketID string, version int) (json.RawMessage, error)

	UpsertCatalog(ctx context.Context, ev Event, tickets []TicketType) error
	// ListEvents returns every event ordered by id.
	ListEvents(ctx context.Context) ([]Event, error)
	// GetEventBySlug returns ErrUnknownEvent when no event carries slug.
	// Slugs are not unique; the lowest event id wins.
	GetEventBySlug(ctx context.Context, slug string) (Event, error)
}

// Notifier receives completed registrations after they are durable.
// Implementations must not block on delivery.
type Notifier interface {
	RegistrationConfirmed(ctx context.Context, rec AttendeeRecord) error
}

// Options configures every workflow component.
type Options struct {
	Store             Store
	Catalog           Catalog // defaults to Store
	Notifier          Notifier
	Logger            *slog.Logger
	ReservationWindow time.Duration
	Now               func() time.Time
	// SweepBatch bounds how many expired reservations one sweep releases.
	SweepBatch int
}

func (o Options) withDefaults() Options {
	if o.Catalog == nil {
		o.Catalog = o.Store
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.ReservationWindow <= 0 {
		o.ReservationWindow = DefaultReservationWindow
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.SweepBatch <= 0 {
		o.SweepBatch = 500
	}
	return o
}
