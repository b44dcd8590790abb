package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/anjeev1098/reservation-system/internal/registration"
)

const surveyForm = `{
  "pages": [{
    "name": "page1",
    "elements": [
      {"type": "text", "name": "diet", "title": "Dietary needs"},
      {"type": "matrix", "name": "rate", "title": "Rate the sessions",
       "columns": ["good", "bad"],
       "rows": [{"value": "r1", "text": "Keynote"}, {"value": "r2", "text": "Workshop"}]},
      {"type": "checkbox", "name": "topics", "title": "Topics", "choices": ["go", "db"]}
    ]
  }]
}`

type staticForms map[string]string

func (s staticForms) GetQuestionForm(_ context.Context, ticketID string, version int) (json.RawMessage, error) {
	raw, ok := s[ticketID]
	if !ok {
		return nil, registration.ErrNotFound
	}
	return json.RawMessage(raw), nil
}

func TestGroupByOrder_KeepsFirstSeenOrder(t *testing.T) {
	recs := []registration.AttendeeRecord{
		{ReferenceID: "a1", OrderID: "o2", EventID: "ev"},
		{ReferenceID: "a2", OrderID: "o1", EventID: "ev"},
		{ReferenceID: "a3", OrderID: "o2", EventID: "ev"},
	}

	got := GroupByOrder(recs)
	if len(got) != 2 || got[0].OrderID != "o2" || got[1].OrderID != "o1" {
		t.Fatalf("unexpected grouping: %+v", got)
	}
	if len(got[0].Attendees) != 2 || got[0].Attendees[1].ReferenceID != "a3" {
		t.Fatalf("unexpected attendees in o2: %+v", got[0].Attendees)
	}
}

func TestFormatAnswer(t *testing.T) {
	form, err := registration.ParseForm(json.RawMessage(surveyForm))
	if err != nil {
		t.Fatal(err)
	}
	matrix, _ := form.Question("rate")
	text, _ := form.Question("diet")

	tests := []struct {
		name string
		q    registration.Question
		a    registration.Answer
		want string
	}{
		{"scalar", text, registration.Scalar("vegan"), "vegan"},
		{"list", text, registration.List("go", "db"), "go, db"},
		{
			"matrix in form row order",
			matrix,
			registration.Matrix(
				registration.RowAnswer{Row: "r2", Value: "bad"},
				registration.RowAnswer{Row: "r1", Value: "good"},
			),
			"Keynote: good, Workshop: bad",
		},
		{
			"matrix drops unknown rows",
			matrix,
			registration.Matrix(registration.RowAnswer{Row: "zz", Value: "x"}, registration.RowAnswer{Row: "r1", Value: "good"}),
			"Keynote: good",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatAnswer(tc.q, tc.a); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestBuildCSV(t *testing.T) {
	var answers registration.Answers
	answers.Set("unknown", registration.Scalar("dropped"))
	answers.Set("rate", registration.Matrix(registration.RowAnswer{Row: "r1", Value: "good"}))
	answers.Set("diet", registration.Scalar("none"))

	full := "Ada Lovelace"
	recs := []registration.AttendeeRecord{
		{
			ReferenceID: "a1", OrderID: "o1", TicketID: "t1", FormVersion: 1,
			PersonalFields: registration.PersonalFields{FirstName: "Ada", LastName: "Lovelace", FullName: &full, Email: "ada@example.com"},
			CustomAnswers:  answers,
		},
		{
			ReferenceID: "a2", OrderID: "o1", TicketID: "t9", FormVersion: 1,
			PersonalFields: registration.PersonalFields{FirstName: "Bob", Email: "bob@example.com"},
		},
	}

	out, err := BuildCSV(context.Background(), staticForms{"t1": surveyForm}, recs)
	if err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}

	header := rows[0]
	wantTail := []string{"Dietary needs", "Rate the sessions", "Topics"}
	if got := header[len(header)-3:]; strings.Join(got, "|") != strings.Join(wantTail, "|") {
		t.Fatalf("unexpected question columns: %v", got)
	}
	if strings.Contains(strings.Join(header, ","), "unknown") {
		t.Fatal("answer key outside the form became a column")
	}

	ada := rows[1]
	if ada[0] != "a1" || ada[5] != "Ada Lovelace" {
		t.Fatalf("unexpected fixed columns: %v", ada)
	}
	if ada[len(ada)-3] != "none" || ada[len(ada)-2] != "Keynote: good" || ada[len(ada)-1] != "" {
		t.Fatalf("unexpected answer cells: %v", ada)
	}

	bob := rows[2]
	if bob[0] != "a2" || bob[5] != "" {
		t.Fatalf("unexpected row for attendee without form: %v", bob)
	}
}
