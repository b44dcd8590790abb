package registration_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/anjeev1098/reservation-system/internal/registration"
	"github.com/anjeev1098/reservation-system/internal/store"
)

const testForm = `{"pages":[{"name":"p1","elements":[{"type":"text","name":"diet","title":"Dietary needs"}]}]}`

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu   sync.Mutex
	recs []registration.AttendeeRecord
	err  error
}

func (n *recordingNotifier) RegistrationConfirmed(_ context.Context, rec registration.AttendeeRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recs = append(n.recs, rec)
	return n.err
}

type fixture struct {
	store    *store.MemoryStore
	clock    *clock
	notifier *recordingNotifier
	opts     registration.Options
}

// newFixture seeds a full event "conf" (tickets ga, vip) and a basic event
// "meetup" (ticket solo).
func newFixture(t *testing.T, qty int) *fixture {
	t.Helper()

	st := store.NewMemoryStore()
	ctx := context.Background()
	if err := st.UpsertCatalog(ctx,
		registration.Event{ID: "conf", Type: registration.EventFull, Name: "Conf"},
		[]registration.TicketType{
			{ID: "ga", Name: "General", RemainingQuantity: qty, QuestionForm: json.RawMessage(testForm)},
			{ID: "vip", Name: "VIP", RemainingQuantity: qty},
		}); err != nil {
		t.Fatal(err)
	}
	if err := st.UpsertCatalog(ctx,
		registration.Event{ID: "meetup", Type: registration.EventBasic, Name: "Meetup"},
		[]registration.TicketType{{ID: "solo", Name: "Entry", RemainingQuantity: qty}},
	); err != nil {
		t.Fatal(err)
	}

	c := newClock()
	n := &recordingNotifier{}
	return &fixture{
		store:    st,
		clock:    c,
		notifier: n,
		opts:     registration.Options{Store: st, Notifier: n, Now: c.Now},
	}
}

func (f *fixture) remaining(t *testing.T, eventID, ticketID string) int {
	t.Helper()
	types, err := f.store.GetTicketTypes(context.Background(), eventID)
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range types {
		if tt.ID == ticketID {
			return tt.RemainingQuantity
		}
	}
	t.Fatalf("ticket %s not found", ticketID)
	return 0
}

func submissionFor(receipt registration.Receipt, seat registration.Seat) registration.Submission {
	var answers registration.Answers
	answers.Set("diet", registration.Scalar("vegan"))
	return registration.Submission{
		EventID:    receipt.EventID,
		TicketID:   seat.TicketID,
		AttendeeID: seat.AttendeeID,
		OrderID:    receipt.OrderID,
		Personal: registration.PersonalFields{
			FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
		},
		Answers: answers,
	}
}
