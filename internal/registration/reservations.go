package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Reservations creates, looks up and retires seat holds.
type Reservations struct {
	store      Store
	ledger     *Ledger
	logger     *slog.Logger
	window     time.Duration
	now        func() time.Time
	sweepBatch int
}

// NewReservations builds the reservation manager from opts; the window
// defaults to DefaultReservationWindow.
func NewReservations(opts Options) *Reservations {
	opts = opts.withDefaults()
	return &Reservations{
		store:      opts.Store,
		ledger:     NewLedger(opts),
		logger:     opts.Logger,
		window:     opts.ReservationWindow,
		now:        opts.Now,
		sweepBatch: opts.SweepBatch,
	}
}

func (r *Reservations) withStore(s Store) *Reservations {
	cp := *r
	cp.store = s
	cp.ledger = r.ledger.withStore(s)
	return &cp
}

// Window is the reservation window in force.
func (r *Reservations) Window() time.Duration { return r.window }

// ReserveSeats holds every requested seat of one order in a single
// transaction: expired holds on the requested ticket types are released
// first, inventory is decremented per ticket type, and one reservation is
// written per seat. Any failure rolls the whole order back.
func (r *Reservations) ReserveSeats(ctx context.Context, eventID string, requests []SeatRequest) (Receipt, error) {
	if len(requests) == 0 {
		return Receipt{}, fmt.Errorf("%w: no tickets requested", ErrInvalidRequest)
	}

	orderID := uuid.NewString()
	now := r.now().UTC()

	var seats []Seat
	err := r.store.RunInTx(ctx, func(tx Store) error {
		seats = seats[:0]
		txr := r.withStore(tx)

		types, err := tx.GetTicketTypes(ctx, eventID)
		if err != nil {
			return &PersistenceError{Op: "load ticket types", Err: err}
		}
		byID := make(map[string]TicketType, len(types))
		for _, t := range types {
			byID[t.ID] = t
		}

		totals, err := seatTotals(requests, byID)
		if err != nil {
			return err
		}

		// Sorted so concurrent orders lock ticket rows in the same order.
		ids := make([]string, 0, len(totals))
		for id := range totals {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			if _, err := txr.releaseExpired(ctx, id, now); err != nil {
				return err
			}
			if _, err := txr.ledger.Decrement(ctx, id, totals[id]); err != nil {
				return err
			}
		}

		for _, req := range requests {
			tt := byID[req.TicketID]
			for i := 0; i < req.Quantity; i++ {
				res := Reservation{
					TempOrderID: orderID,
					EventID:     eventID,
					TicketID:    tt.ID,
					AttendeeID:  uuid.NewString(),
					FormVersion: tt.FormVersion,
					CreatedAt:   now,
				}
				if err := tx.InsertReservation(ctx, res); err != nil {
					return &PersistenceError{Op: "insert reservation", Err: err}
				}
				seats = append(seats, Seat{
					TicketID:     tt.ID,
					AttendeeID:   res.AttendeeID,
					QuestionForm: tt.QuestionForm,
				})
			}
		}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	r.logger.Info("seats reserved", "event_id", eventID, "order_id", orderID, "seats", len(seats))
	return Receipt{EventID: eventID, OrderID: orderID, Seats: seats}, nil
}

// maxSeats bounds a per-ticket request to what the inventory column holds.
const maxSeats = math.MaxInt32

// seatTotals validates requests against the event's ticket types and sums
// quantities per ticket id.
func seatTotals(requests []SeatRequest, byID map[string]TicketType) (map[string]int, error) {
	totals := make(map[string]int, len(requests))
	var unknown []string
	seen := make(map[string]bool)
	for _, req := range requests {
		if req.Quantity <= 0 || req.Quantity > maxSeats {
			return nil, fmt.Errorf("%w: quantity for ticket %s must be between 1 and %d", ErrInvalidRequest, req.TicketID, maxSeats)
		}
		if _, ok := byID[req.TicketID]; !ok {
			if !seen[req.TicketID] {
				seen[req.TicketID] = true
				unknown = append(unknown, req.TicketID)
			}
			continue
		}
		totals[req.TicketID] += req.Quantity
		if totals[req.TicketID] > maxSeats {
			return nil, fmt.Errorf("%w: quantity for ticket %s exceeds %d", ErrInvalidRequest, req.TicketID, maxSeats)
		}
	}
	if len(unknown) > 0 {
		return nil, &InvalidTicketError{TicketIDs: unknown}
	}
	return totals, nil
}

// LookupActive returns the reservation matching key exactly, provided it is
// still inside the reservation window.
func (r *Reservations) LookupActive(ctx context.Context, key ReservationKey) (Reservation, bool, error) {
	cutoff := r.now().UTC().Add(-r.window)
	res, err := r.store.FindReservation(ctx, key, cutoff)
	if errors.Is(err, ErrNotFound) {
		return Reservation{}, false, nil
	}
	if err != nil {
		return Reservation{}, false, &PersistenceError{Op: "find reservation", Err: err}
	}
	return res, true, nil
}

// Retire deletes the reservation for attendeeID. ErrNotFound means it was
// already consumed or released.
func (r *Reservations) Retire(ctx context.Context, attendeeID string) error {
	err := r.store.DeleteReservation(ctx, attendeeID)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return &PersistenceError{Op: "delete reservation", Err: err}
	}
	return nil
}

// Sweep releases every reservation older than the window and returns how
// many seats went back to inventory. Each batch commits on its own.
func (r *Reservations) Sweep(ctx context.Context) (int, error) {
	now := r.now().UTC()
	total := 0
	for {
		var released, scanned int
		err := r.store.RunInTx(ctx, func(tx Store) error {
			var err error
			released, scanned, err = r.withStore(tx).release(ctx, "", now)
			return err
		})
		if err != nil {
			return total, err
		}
		total += released
		if scanned < r.sweepBatch {
			break
		}
	}
	if total > 0 {
		r.logger.Info("expired reservations released", "seats", total)
	}
	return total, nil
}

func (r *Reservations) releaseExpired(ctx context.Context, ticketID string, now time.Time) (int, error) {
	released, _, err := r.release(ctx, ticketID, now)
	return released, err
}

// release deletes expired holds and credits inventory for those that never
// produced an attendee record. It must run inside a transaction.
func (r *Reservations) release(ctx context.Context, ticketID string, now time.Time) (released, scanned int, err error) {
	cutoff := now.Add(-r.window)
	expired, err := r.store.DeleteExpiredReservations(ctx, ticketID, cutoff, r.sweepBatch)
	if err != nil {
		return 0, 0, &PersistenceError{Op: "delete expired reservations", Err: err}
	}

	counts := make(map[string]int)
	for _, res := range expired {
		answered, err := r.store.AttendeeExists(ctx, res.AttendeeID)
		if err != nil {
			return 0, 0, &PersistenceError{Op: "check attendee", Err: err}
		}
		if answered {
			continue
		}
		counts[res.TicketID]++
	}

	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := r.ledger.Increment(ctx, id, counts[id]); err != nil {
			if errors.Is(err, ErrUnknownTicket) {
				r.logger.Warn("expired reservation for removed ticket type", "ticket_id", id)
				continue
			}
			return 0, 0, err
		}
		released += counts[id]
	}
	return released, len(expired), nil
}
