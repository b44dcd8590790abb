package registration

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Orchestrator is the purchase entry point.
type Orchestrator struct {
	catalog      Catalog
	reservations *Reservations
	now          func() time.Time
}

// NewOrchestrator validates purchases against opts.Catalog and reserves
// seats in opts.Store.
func NewOrchestrator(opts Options) *Orchestrator {
	opts = opts.withDefaults()
	return &Orchestrator{
		catalog:      opts.Catalog,
		reservations: NewReservations(opts),
		now:          opts.Now,
	}
}

// Purchase validates the request against the catalog and reserves one seat
// per requested quantity. Validation failures happen before any write.
func (o *Orchestrator) Purchase(ctx context.Context, eventID string, requests []SeatRequest) (Receipt, error) {
	ev, err := o.catalog.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, ErrUnknownEvent) {
			return Receipt{}, err
		}
		return Receipt{}, &PersistenceError{Op: "get event", Err: err}
	}

	if !ev.RegistrationOpen(o.now()) {
		return Receipt{}, ErrRegistrationClosed
	}

	types, err := o.catalog.GetTicketTypes(ctx, eventID)
	if err != nil {
		return Receipt{}, &PersistenceError{Op: "get ticket types", Err: err}
	}

	if ev.SingleTicket() {
		requests, err = singleSeat(requests, types)
		if err != nil {
			return Receipt{}, err
		}
	} else if len(requests) == 0 {
		return Receipt{}, fmt.Errorf("%w: no tickets requested", ErrInvalidRequest)
	}

	byID := make(map[string]TicketType, len(types))
	for _, t := range types {
		byID[t.ID] = t
	}
	if _, err := seatTotals(requests, byID); err != nil {
		return Receipt{}, err
	}

	return o.reservations.ReserveSeats(ctx, eventID, requests)
}

// singleSeat normalizes a basic event's request to exactly one seat. An
// empty request picks the event's first ticket type.
func singleSeat(requests []SeatRequest, types []TicketType) ([]SeatRequest, error) {
	switch len(requests) {
	case 0:
		if len(types) == 0 {
			return nil, fmt.Errorf("%w: event has no ticket types", ErrInvalidTicket)
		}
		return []SeatRequest{{TicketID: types[0].ID, Quantity: 1}}, nil
	case 1:
		req := requests[0]
		if req.Quantity > 1 {
			return nil, ErrMultipleTicketsNotAllowed
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		if req.TicketID == "" && len(types) > 0 {
			req.TicketID = types[0].ID
		}
		return []SeatRequest{req}, nil
	default:
		return nil, ErrMultipleTicketsNotAllowed
	}
}
