package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/anjeev1098/reservation-system/internal/config"
	"github.com/anjeev1098/reservation-system/internal/registration"
	"github.com/anjeev1098/reservation-system/internal/store"
)

////////////////////////////////////////////////////////////////////////////////
// TEST HARNESS
//
// The API runs in-process against the in-memory store:
//
//   httptest → gin router → handlers → registration → MemoryStore
//
////////////////////////////////////////////////////////////////////////////////

type fakeExporter struct {
	eventID, recipient string
	err                error
}

func (f *fakeExporter) ExportAttendees(_ context.Context, eventID, recipient string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.eventID, f.recipient = eventID, recipient
	return "task-42", nil
}

type failingPinger struct {
	*store.MemoryStore
}

func (failingPinger) Ping(context.Context) error { return errors.New("db down") }

type harness struct {
	router   *gin.Engine
	store    *store.MemoryStore
	exporter *fakeExporter
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st := store.NewMemoryStore()
	exp := &fakeExporter{}
	opts := registration.Options{Store: st}
	cfg := config.Default()
	cfg.Mail.ReportRecipient = "ops@example.com"

	r := NewRouter(cfg, Deps{
		Store:     st,
		Purchaser: registration.NewOrchestrator(opts),
		Intake:    registration.NewIntake(opts),
		Exporter:  exp,
	})
	return &harness{router: r, store: st, exporter: exp}
}

// do performs a request with an optional JSON body.
func (h *harness) do(t *testing.T, method, path string, payload any) (int, []byte) {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w.Code, w.Body.Bytes()
}

func decode(t *testing.T, b []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("invalid JSON %s: %v", b, err)
	}
}

func errorCode(t *testing.T, b []byte) string {
	t.Helper()
	var r struct {
		Code string `json:"code"`
	}
	decode(t, b, &r)
	return r.Code
}

func seedEvent(t *testing.T, h *harness, eventType string, qty int) {
	t.Helper()
	s, b := h.do(t, http.MethodPut, "/events", map[string]any{
		"event_id":   "conf",
		"event_type": eventType,
		"name":       "Conf",
		"tickets": []map[string]any{
			{"ticket_id": "ga", "name": "General", "quantity": qty, "question_form": json.RawMessage(`{"pages":[{"elements":[{"type":"text","name":"diet","title":"Diet"}]}]}`)},
			{"ticket_id": "vip", "name": "VIP", "quantity": qty},
		},
	})
	if s != http.StatusOK {
		t.Fatalf("seed expected 200 got %d: %s", s, b)
	}
}

type purchaseResp struct {
	EventID string `json:"event_id"`
	OrderID string `json:"order_id"`
	Seats   []struct {
		TicketID     string          `json:"ticket_id"`
		AttendeeID   string          `json:"attendee_id"`
		QuestionForm json.RawMessage `json:"question_form"`
	} `json:"seats"`
}

func answerPayload(p purchaseResp, seat int) map[string]any {
	return map[string]any{
		"event_id":    p.EventID,
		"ticket_id":   p.Seats[seat].TicketID,
		"attendee_id": p.Seats[seat].AttendeeID,
		"order_id":    p.OrderID,
		"first_name":  "Ada",
		"last_name":   "Lovelace",
		"email":       "ada@example.com",
		"custom_questions": map[string]any{
			"diet": "vegan",
		},
	}
}

////////////////////////////////////////////////////////////////////////////////
// HEALTH & READINESS TESTS
////////////////////////////////////////////////////////////////////////////////

// Health endpoint = liveness check (server process running).
func TestHealth_ReturnsOK(t *testing.T) {
	h := newHarness(t)
	if s, _ := h.do(t, http.MethodGet, "/health", nil); s != http.StatusOK {
		t.Fatalf("health expected 200 got %d", s)
	}
}

// Ready endpoint = dependency readiness (store reachable).
func TestReady(t *testing.T) {
	h := newHarness(t)
	if s, _ := h.do(t, http.MethodGet, "/ready", nil); s != http.StatusOK {
		t.Fatalf("ready expected 200 got %d", s)
	}

	down := NewRouter(config.Default(), Deps{Store: failingPinger{store.NewMemoryStore()}})
	w := httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready expected 503 got %d", w.Code)
	}
}

////////////////////////////////////////////////////////////////////////////////
// CATALOG CONTRACT TESTS
////////////////////////////////////////////////////////////////////////////////

func TestCatalog_UpsertAndGet(t *testing.T) {
	h := newHarness(t)
	seedEvent(t, h, "full", 5)

	s, b := h.do(t, http.MethodGet, "/events/conf", nil)
	if s != http.StatusOK {
		t.Fatalf("expected 200 got %d", s)
	}
	var resp struct {
		Event struct {
			Type string `json:"event_type"`
		} `json:"event"`
		Tickets []struct {
			ID        string `json:"ticket_id"`
			Remaining int    `json:"remaining_quantity"`
		} `json:"tickets"`
	}
	decode(t, b, &resp)
	if resp.Event.Type != "full" || len(resp.Tickets) != 2 || resp.Tickets[0].Remaining != 5 {
		t.Fatalf("unexpected event: %s", b)
	}

	if s, b := h.do(t, http.MethodGet, "/events/nope", nil); s != http.StatusNotFound || errorCode(t, b) != "unknown_event" {
		t.Fatalf("expected 404 unknown_event got %d %s", s, b)
	}
}

func TestCatalog_ListAndSlugLookup(t *testing.T) {
	h := newHarness(t)

	s, b := h.do(t, http.MethodGet, "/events", nil)
	if s != http.StatusOK || string(b) != `{"events":[]}` {
		t.Fatalf("empty catalog expected 200 with no events got %d %s", s, b)
	}

	seedEvent(t, h, "full", 5)
	s, b = h.do(t, http.MethodPut, "/events", map[string]any{
		"event_id": "meetup", "event_type": "basic", "name": "Meetup", "slug": "go-meetup",
		"tickets": []map[string]any{{"ticket_id": "solo", "name": "Entry", "quantity": 3}},
	})
	if s != http.StatusOK {
		t.Fatalf("seed expected 200 got %d: %s", s, b)
	}

	s, b = h.do(t, http.MethodGet, "/events", nil)
	if s != http.StatusOK {
		t.Fatalf("list expected 200 got %d", s)
	}
	var list struct {
		Events []struct {
			Event struct {
				ID string `json:"event_id"`
			} `json:"event"`
			Tickets []struct {
				ID string `json:"ticket_id"`
			} `json:"tickets"`
		} `json:"events"`
	}
	decode(t, b, &list)
	if len(list.Events) != 2 || list.Events[0].Event.ID != "conf" || list.Events[1].Event.ID != "meetup" {
		t.Fatalf("unexpected listing: %s", b)
	}
	if len(list.Events[0].Tickets) != 2 || len(list.Events[1].Tickets) != 1 {
		t.Fatalf("tickets missing from listing: %s", b)
	}

	s, b = h.do(t, http.MethodGet, "/events?slug=go-meetup", nil)
	if s != http.StatusOK {
		t.Fatalf("slug lookup expected 200 got %d %s", s, b)
	}
	var one struct {
		Event struct {
			ID   string `json:"event_id"`
			Slug string `json:"slug"`
		} `json:"event"`
		Tickets []struct {
			Remaining int `json:"remaining_quantity"`
		} `json:"tickets"`
	}
	decode(t, b, &one)
	if one.Event.ID != "meetup" || one.Event.Slug != "go-meetup" || len(one.Tickets) != 1 || one.Tickets[0].Remaining != 3 {
		t.Fatalf("unexpected slug lookup: %s", b)
	}

	if s, b := h.do(t, http.MethodGet, "/events?slug=nope", nil); s != http.StatusNotFound || errorCode(t, b) != "unknown_event" {
		t.Fatalf("expected 404 unknown_event got %d %s", s, b)
	}
	if s, b := h.do(t, http.MethodGet, "/events?slug=", nil); s != http.StatusBadRequest || errorCode(t, b) != "invalid_request" {
		t.Fatalf("expected 400 for empty slug got %d %s", s, b)
	}
}

func TestCatalog_BadRequestOnInvalidPayload(t *testing.T) {
	h := newHarness(t)

	bad := []map[string]any{
		{"event_id": "x", "event_type": "weird", "name": "X", "tickets": []map[string]any{{"ticket_id": "t", "name": "T", "quantity": 1}}},
		{"event_id": "x", "event_type": "full", "name": "X"},
		{"event_id": "x", "event_type": "full", "name": "X", "tickets": []map[string]any{{"ticket_id": "t", "name": "T", "quantity": -1}}},
		{"event_id": "x", "event_type": "full", "name": "X", "tickets": []map[string]any{{"ticket_id": "t", "name": "T"}}},
		{"event_id": "x", "event_type": "full", "name": "X", "tickets": []map[string]any{{"ticket_id": "t", "name": "T", "quantity": int64(1) << 31}}},
	}
	for i, p := range bad {
		if s, _ := h.do(t, http.MethodPut, "/events", p); s != http.StatusBadRequest {
			t.Fatalf("payload %d: expected 400 got %d", i, s)
		}
	}
}

////////////////////////////////////////////////////////////////////////////////
// CORE WORKFLOW TESTS
////////////////////////////////////////////////////////////////////////////////

// Purchase then answer; the same seat cannot be answered twice.
func TestPurchaseAndAnswer(t *testing.T) {
	h := newHarness(t)
	seedEvent(t, h, "full", 5)

	s, b := h.do(t, http.MethodPost, "/events/conf/purchase", map[string]any{
		"tickets": []map[string]any{{"ticket_id": "ga", "quantity": 2}},
	})
	if s != http.StatusCreated {
		t.Fatalf("purchase expected 201 got %d: %s", s, b)
	}
	var p purchaseResp
	decode(t, b, &p)
	if len(p.Seats) != 2 || p.OrderID == "" || len(p.Seats[0].QuestionForm) == 0 {
		t.Fatalf("unexpected purchase response: %s", b)
	}

	s, b = h.do(t, http.MethodPost, "/answers", answerPayload(p, 0))
	if s != http.StatusCreated {
		t.Fatalf("answer expected 201 got %d: %s", s, b)
	}
	var rec struct {
		ReferenceID string            `json:"reference_id"`
		FirstName   string            `json:"first_name"`
		Custom      map[string]string `json:"custom_questions"`
	}
	decode(t, b, &rec)
	if rec.ReferenceID != p.Seats[0].AttendeeID || rec.FirstName != "Ada" || rec.Custom["diet"] != "vegan" {
		t.Fatalf("unexpected attendee: %s", b)
	}

	s, b = h.do(t, http.MethodPost, "/answers", answerPayload(p, 0))
	if s != http.StatusForbidden || errorCode(t, b) != "reservation_expired_or_invalid" {
		t.Fatalf("replay expected 403 got %d %s", s, b)
	}

	s, b = h.do(t, http.MethodGet, "/events/conf/attendees", nil)
	if s != http.StatusOK {
		t.Fatalf("attendees expected 200 got %d", s)
	}
	var list struct {
		Orders []struct {
			OrderID   string           `json:"order_id"`
			Attendees []map[string]any `json:"attendees"`
		} `json:"orders"`
	}
	decode(t, b, &list)
	if len(list.Orders) != 1 || list.Orders[0].OrderID != p.OrderID || len(list.Orders[0].Attendees) != 1 {
		t.Fatalf("unexpected attendee listing: %s", b)
	}
}

func TestPurchase_ErrorStatuses(t *testing.T) {
	h := newHarness(t)
	seedEvent(t, h, "full", 1)

	tests := []struct {
		name    string
		path    string
		payload any
		status  int
		code    string
	}{
		{"unknown event", "/events/nope/purchase", map[string]any{"tickets": []map[string]any{{"ticket_id": "ga", "quantity": 1}}}, http.StatusNotFound, "unknown_event"},
		{"invalid ticket", "/events/conf/purchase", map[string]any{"tickets": []map[string]any{{"ticket_id": "zz", "quantity": 1}}}, http.StatusBadRequest, "invalid_ticket"},
		{"sold out", "/events/conf/purchase", map[string]any{"tickets": []map[string]any{{"ticket_id": "ga", "quantity": 2}}}, http.StatusConflict, "insufficient_inventory"},
		{"empty order", "/events/conf/purchase", nil, http.StatusBadRequest, "invalid_request"},
		{"quantity out of range", "/events/conf/purchase", map[string]any{"tickets": []map[string]any{{"ticket_id": "ga", "quantity": int64(1) << 31}}}, http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, b := h.do(t, http.MethodPost, tc.path, tc.payload)
			if s != tc.status || errorCode(t, b) != tc.code {
				t.Fatalf("expected %d %s got %d %s", tc.status, tc.code, s, b)
			}
		})
	}
}

// Basic events sell one seat per purchase.
func TestPurchase_BasicEventRejectsMultiple(t *testing.T) {
	h := newHarness(t)
	seedEvent(t, h, "basic", 5)

	s, b := h.do(t, http.MethodPost, "/events/conf/purchase", map[string]any{
		"tickets": []map[string]any{{"ticket_id": "ga", "quantity": 2}},
	})
	if s != http.StatusUnprocessableEntity || errorCode(t, b) != "multiple_tickets_not_allowed" {
		t.Fatalf("expected 422 got %d %s", s, b)
	}

	s, b = h.do(t, http.MethodPost, "/events/conf/purchase", nil)
	if s != http.StatusCreated {
		t.Fatalf("empty basic purchase expected 201 got %d %s", s, b)
	}
}

func TestAnswerBatch_ReportsFailingIndex(t *testing.T) {
	h := newHarness(t)
	seedEvent(t, h, "full", 5)

	_, b := h.do(t, http.MethodPost, "/events/conf/purchase", map[string]any{
		"tickets": []map[string]any{{"ticket_id": "ga", "quantity": 1}, {"ticket_id": "vip", "quantity": 1}},
	})
	var p purchaseResp
	decode(t, b, &p)

	second := answerPayload(p, 1)
	second["order_id"] = "forged"
	s, b := h.do(t, http.MethodPost, "/answers/batch", []map[string]any{answerPayload(p, 0), second})
	if s != http.StatusForbidden {
		t.Fatalf("expected 403 got %d %s", s, b)
	}
	var resp struct {
		Index     int      `json:"index"`
		Completed []string `json:"completed"`
	}
	decode(t, b, &resp)
	if resp.Index != 1 || len(resp.Completed) != 1 || resp.Completed[0] != p.Seats[0].AttendeeID {
		t.Fatalf("unexpected batch error: %s", b)
	}

	s, b = h.do(t, http.MethodPost, "/answers/batch", []map[string]any{answerPayload(p, 1)})
	if s != http.StatusCreated {
		t.Fatalf("retry of remaining seat expected 201 got %d %s", s, b)
	}
}

func TestAnswer_MissingFields(t *testing.T) {
	h := newHarness(t)
	if s, _ := h.do(t, http.MethodPost, "/answers", map[string]any{"event_id": "conf"}); s != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", s)
	}
}

////////////////////////////////////////////////////////////////////////////////
// EXPORT TESTS
////////////////////////////////////////////////////////////////////////////////

func TestExport(t *testing.T) {
	h := newHarness(t)
	seedEvent(t, h, "full", 5)

	s, b := h.do(t, http.MethodPost, "/events/conf/export", nil)
	if s != http.StatusAccepted {
		t.Fatalf("expected 202 got %d %s", s, b)
	}
	if h.exporter.eventID != "conf" || h.exporter.recipient != "ops@example.com" {
		t.Fatalf("default recipient not used: %+v", h.exporter)
	}

	s, _ = h.do(t, http.MethodPost, "/events/conf/export", map[string]any{"recipient": "lead@example.com"})
	if s != http.StatusAccepted || h.exporter.recipient != "lead@example.com" {
		t.Fatalf("explicit recipient ignored: %d %+v", s, h.exporter)
	}

	if s, _ := h.do(t, http.MethodPost, "/events/conf/export", map[string]any{"recipient": "not-an-email"}); s != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad recipient got %d", s)
	}
	if s, _ := h.do(t, http.MethodPost, "/events/nope/export", nil); s != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown event got %d", s)
	}

	h.exporter.err = errors.New("redis down")
	if s, _ := h.do(t, http.MethodPost, "/events/conf/export", nil); s != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the queue is down got %d", s)
	}
}
