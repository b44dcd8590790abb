package registration

import (
	"context"
	"errors"
	"fmt"
)

// Ledger owns per-ticket-type remaining quantity.
type Ledger struct {
	store Store
}

// NewLedger returns a ledger over opts.Store.
func NewLedger(opts Options) *Ledger {
	opts = opts.withDefaults()
	return &Ledger{store: opts.Store}
}

func (l *Ledger) withStore(s Store) *Ledger {
	return &Ledger{store: s}
}

// Decrement takes count seats out of ticketID's inventory in one
// conditional write and returns the new remaining quantity.
func (l *Ledger) Decrement(ctx context.Context, ticketID string, count int) (int, error) {
	if count <= 0 || count > maxSeats {
		return 0, fmt.Errorf("%w: quantity must be between 1 and %d", ErrInvalidRequest, maxSeats)
	}
	n, err := l.store.DecrementInventory(ctx, ticketID, count)
	if err != nil {
		return 0, ledgerErr("decrement inventory", err)
	}
	return n, nil
}

// Increment returns count seats to ticketID's inventory.
func (l *Ledger) Increment(ctx context.Context, ticketID string, count int) (int, error) {
	if count <= 0 || count > maxSeats {
		return 0, fmt.Errorf("%w: quantity must be between 1 and %d", ErrInvalidRequest, maxSeats)
	}
	n, err := l.store.IncrementInventory(ctx, ticketID, count)
	if err != nil {
		return 0, ledgerErr("increment inventory", err)
	}
	return n, nil
}

func ledgerErr(op string, err error) error {
	if errors.Is(err, ErrUnknownTicket) || errors.Is(err, ErrInsufficientInventory) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
