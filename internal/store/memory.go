package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/anjeev1098/reservation-system/internal/registration"
)

// MemoryStore keeps the whole catalog and workflow state in process. It
// serializes every operation behind one mutex; RunInTx works on a copy of
// the state that replaces the original only when fn succeeds.
//
// It backs the workflow tests and `api --memory` for local runs.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

var _ registration.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

type formKey struct {
	ticketID string
	version  int
}

type memState struct {
	events       map[string]registration.Event
	tickets      map[string]registration.TicketType
	forms        map[formKey]json.RawMessage
	reservations map[string]registration.Reservation
	attendees    map[string]registration.AttendeeRecord
}

func newMemState() *memState {
	return &memState{
		events:       make(map[string]registration.Event),
		tickets:      make(map[string]registration.TicketType),
		forms:        make(map[formKey]json.RawMessage),
		reservations: make(map[string]registration.Reservation),
		attendees:    make(map[string]registration.AttendeeRecord),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	for k, v := range s.forms {
		c.forms[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.attendees {
		c.attendees[k] = v
	}
	return c
}

// Ping always succeeds; it mirrors PostgresStore for the readiness probe.
func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) RunInTx(ctx context.Context, fn func(tx registration.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{state: m.state}).runInTx(ctx, fn, func(s *memState) { m.state = s })
}

func (m *MemoryStore) GetEvent(ctx context.Context, eventID string) (registration.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx().GetEvent(ctx, eventID)
}

func (m *MemoryStore) GetTicketTypes(ctx context.Context, eventID string) ([]registration.TicketType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx().GetTicketTypes(ctx, eventID)
}

func (m *MemoryStore) DecrementInventory(ctx context.Context, ticketID string, count int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx().DecrementInventory(ctx, ticketID, count)
}

func (m *MemoryStore) IncrementInventory(ctx context.Context, ticketID string, count int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx().IncrementInventory(ctx, ticketID, count)
}

func (m *MemoryStore) InsertReservation(ctx context.Context, r registration.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx().InsertReservation(ctx, r)
}

func (m *MemoryStore) FindReservation(ctx context.Context, key registration.ReservationKey, createdAfter time.Time) (registration.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx().FindReservation(ctx, key, createdAfter)
}

func (m *MemoryStore) DeleteReservation(ctx context.Context, attendeeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx().DeleteReservation(ctx, attendeeID)
}

func (m *MemoryStore) DeleteExpiredReservations(ctx context.Context, ticketID string, cutoff time.Time, limit int) ([]registration.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx().DeleteExpiredReservations(ctx, ticketID, cutoff, limit)
}

func (m *MemoryStore) InsertAttendee(ctx context.Context, rec registration.AttendeeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx().InsertAttendee(ctx, rec)
}

func (m *MemoryStore) AttendeeExists(ctx context.Context, attendeeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx().AttendeeExists(ctx, attendeeID)
}

func (m *MemoryStore) ListAttendees(ctx context.Context, eventID string) ([]registration.AttendeeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx().ListAttendees(ctx, eventID)
}

func (m *MemoryStore) GetQuestionForm(ctx context.Context, ticketID string, version int) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx().GetQuestionForm(ctx, ticketID, version)
}

func (m *MemoryStore) UpsertCatalog(ctx context.Context, ev registration.Event, tickets []registration.TicketType) error {
	return m.RunInTx(ctx, func(tx registration.Store) error {
		return tx.UpsertCatalog(ctx, ev, tickets)
	})
}

func (m *MemoryStore) ListEvents(ctx context.Context) ([]registration.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx().ListEvents(ctx)
}

func (m *MemoryStore) GetEventBySlug(ctx context.Context, slug string) (registration.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx().GetEventBySlug(ctx, slug)
}

func (m *MemoryStore) tx() *memTx { return &memTx{state: m.state} }

// memTx operates on a state without locking; the owning MemoryStore holds
// the lock for its whole lifetime.
type memTx struct {
	state *memState
}

func (t *memTx) runInTx(_ context.Context, fn func(registration.Store) error, commit func(*memState)) error {
	work := &memTx{state: t.state.clone()}
	if err := fn(work); err != nil {
		return err
	}
	commit(work.state)
	return nil
}

func (t *memTx) RunInTx(ctx context.Context, fn func(tx registration.Store) error) error {
	return t.runInTx(ctx, fn, func(s *memState) { *t.state = *s })
}

func (t *memTx) GetEvent(_ context.Context, eventID string) (registration.Event, error) {
	ev, ok := t.state.events[eventID]
	if !ok {
		return registration.Event{}, registration.ErrUnknownEvent
	}
	return ev, nil
}

func (t *memTx) ListEvents(context.Context) ([]registration.Event, error) {
	out := make([]registration.Event, 0, len(t.state.events))
	for _, ev := range t.state.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) GetEventBySlug(ctx context.Context, slug string) (registration.Event, error) {
	if slug == "" {
		return registration.Event{}, registration.ErrUnknownEvent
	}
	events, _ := t.ListEvents(ctx)
	for _, ev := range events {
		if ev.Slug == slug {
			return ev, nil
		}
	}
	return registration.Event{}, registration.ErrUnknownEvent
}

func (t *memTx) GetTicketTypes(_ context.Context, eventID string) ([]registration.TicketType, error) {
	var out []registration.TicketType
	for _, tt := range t.state.tickets {
		if tt.EventID != eventID {
			continue
		}
		tt.QuestionForm = t.state.forms[formKey{tt.ID, tt.FormVersion}]
		out = append(out, tt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) DecrementInventory(_ context.Context, ticketID string, count int) (int, error) {
	tt, ok := t.state.tickets[ticketID]
	if !ok {
		return 0, registration.ErrUnknownTicket
	}
	if tt.RemainingQuantity < count {
		return 0, registration.ErrInsufficientInventory
	}
	tt.RemainingQuantity -= count
	t.state.tickets[ticketID] = tt
	return tt.RemainingQuantity, nil
}

func (t *memTx) IncrementInventory(_ context.Context, ticketID string, count int) (int, error) {
	tt, ok := t.state.tickets[ticketID]
	if !ok {
		return 0, registration.ErrUnknownTicket
	}
	tt.RemainingQuantity += count
	t.state.tickets[ticketID] = tt
	return tt.RemainingQuantity, nil
}

func (t *memTx) InsertReservation(_ context.Context, r registration.Reservation) error {
	if _, ok := t.state.reservations[r.AttendeeID]; ok {
		return fmt.Errorf("reservation %s already exists", r.AttendeeID)
	}
	t.state.reservations[r.AttendeeID] = r
	return nil
}

func (t *memTx) FindReservation(_ context.Context, key registration.ReservationKey, createdAfter time.Time) (registration.Reservation, error) {
	r, ok := t.state.reservations[key.AttendeeID]
	if !ok || r.Key() != key || !r.CreatedAt.After(createdAfter) {
		return registration.Reservation{}, registration.ErrNotFound
	}
	return r, nil
}

func (t *memTx) DeleteReservation(_ context.Context, attendeeID string) error {
	if _, ok := t.state.reservations[attendeeID]; !ok {
		return registration.ErrNotFound
	}
	delete(t.state.reservations, attendeeID)
	return nil
}

func (t *memTx) DeleteExpiredReservations(_ context.Context, ticketID string, cutoff time.Time, limit int) ([]registration.Reservation, error) {
	var expired []registration.Reservation
	for _, r := range t.state.reservations {
		if ticketID != "" && r.TicketID != ticketID {
			continue
		}
		if r.CreatedAt.After(cutoff) {
			continue
		}
		expired = append(expired, r)
	}
	sort.Slice(expired, func(i, j int) bool {
		if !expired[i].CreatedAt.Equal(expired[j].CreatedAt) {
			return expired[i].CreatedAt.Before(expired[j].CreatedAt)
		}
		return expired[i].AttendeeID < expired[j].AttendeeID
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	for _, r := range expired {
		delete(t.state.reservations, r.AttendeeID)
	}
	return expired, nil
}

func (t *memTx) InsertAttendee(_ context.Context, rec registration.AttendeeRecord) error {
	if _, ok := t.state.attendees[rec.ReferenceID]; ok {
		return registration.ErrDuplicateAttendee
	}
	t.state.attendees[rec.ReferenceID] = rec
	return nil
}

func (t *memTx) AttendeeExists(_ context.Context, attendeeID string) (bool, error) {
	_, ok := t.state.attendees[attendeeID]
	return ok, nil
}

func (t *memTx) ListAttendees(_ context.Context, eventID string) ([]registration.AttendeeRecord, error) {
	var out []registration.AttendeeRecord
	for _, rec := range t.state.attendees {
		if rec.EventID == eventID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.OrderID != b.OrderID {
			return a.OrderID < b.OrderID
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ReferenceID < b.ReferenceID
	})
	return out, nil
}

func (t *memTx) GetQuestionForm(_ context.Context, ticketID string, version int) (json.RawMessage, error) {
	f, ok := t.state.forms[formKey{ticketID, version}]
	if !ok {
		return nil, registration.ErrNotFound
	}
	return f, nil
}

func (t *memTx) UpsertCatalog(_ context.Context, ev registration.Event, tickets []registration.TicketType) error {
	if !ev.Type.Valid() {
		return fmt.Errorf("%w: unknown event type %q", registration.ErrInvalidRequest, ev.Type)
	}
	t.state.events[ev.ID] = ev

	for _, in := range tickets {
		if in.RemainingQuantity < 0 {
			return fmt.Errorf("%w: quantity of ticket %s is negative", registration.ErrInvalidRequest, in.ID)
		}
		spec := compactForm(in.QuestionForm)

		cur, ok := t.state.tickets[in.ID]
		if ok && cur.EventID != ev.ID {
			return &registration.InvalidTicketError{TicketIDs: []string{in.ID}}
		}
		version := 1
		if ok {
			version = cur.FormVersion
			if !bytes.Equal(t.state.forms[formKey{in.ID, version}], spec) {
				version++
			}
		}
		t.state.forms[formKey{in.ID, version}] = spec
		t.state.tickets[in.ID] = registration.TicketType{
			ID:                in.ID,
			EventID:           ev.ID,
			Name:              in.Name,
			RemainingQuantity: in.RemainingQuantity,
			FormVersion:       version,
		}
	}
	return nil
}

func compactForm(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return json.RawMessage(buf.Bytes())
}
