// Package report shapes attendee records for listing and CSV export.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anjeev1098/reservation-system/internal/registration"
)

// Order is the attendees of one purchase, in insertion order.
type Order struct {
	EventID   string
	OrderID   string
	Attendees []registration.AttendeeRecord
}

// GroupByOrder groups records by order id. Orders appear in the order their
// first record does.
func GroupByOrder(recs []registration.AttendeeRecord) []Order {
	var out []Order
	idx := make(map[string]int)
	for _, rec := range recs {
		i, ok := idx[rec.OrderID]
		if !ok {
			i = len(out)
			idx[rec.OrderID] = i
			out = append(out, Order{EventID: rec.EventID, OrderID: rec.OrderID})
		}
		out[i].Attendees = append(out[i].Attendees, rec)
	}
	return out
}

// FormatAnswer renders an answer as one CSV cell. Matrix answers become
// "rowText: value" pairs in the question's row order; rows the question
// does not define are skipped.
func FormatAnswer(q registration.Question, a registration.Answer) string {
	switch {
	case a.IsMatrix():
		var parts []string
		if q.Type == registration.QuestionMatrix && len(q.Rows) > 0 {
			for _, row := range q.Rows {
				if v, ok := a.Row(row.Value); ok {
					parts = append(parts, row.Text+": "+v)
				}
			}
		} else {
			for _, r := range a.Rows {
				parts = append(parts, r.Row+": "+r.Value)
			}
		}
		return strings.Join(parts, ", ")
	case a.IsList():
		return strings.Join(a.Values, ", ")
	default:
		return a.Value
	}
}

// FormSource resolves the question form version an attendee answered.
type FormSource interface {
	GetQuestionForm(ctx context.Context, ticketID string, version int) (json.RawMessage, error)
}

var fixedColumns = []string{
	"reference_id", "order_id", "ticket_id",
	"first_name", "last_name", "full_name",
	"email", "contact_number", "company_name", "job_title",
}

type formKey struct {
	ticketID string
	version  int
}

// BuildCSV writes one row per attendee: the fixed personal columns followed
// by one column per custom question title. Answers whose key is not in the
// attendee's form are dropped.
func BuildCSV(ctx context.Context, forms FormSource, recs []registration.AttendeeRecord) ([]byte, error) {
	parsed := make(map[formKey]registration.FormSpec)
	var titles []string
	seen := make(map[string]bool)

	for _, rec := range recs {
		k := formKey{rec.TicketID, rec.FormVersion}
		if _, ok := parsed[k]; ok {
			continue
		}
		spec, err := loadForm(ctx, forms, k)
		if err != nil {
			return nil, err
		}
		parsed[k] = spec
		for _, p := range spec.Pages {
			for _, q := range p.Elements {
				t := title(q)
				if t == "" || seen[t] {
					continue
				}
				seen[t] = true
				titles = append(titles, t)
			}
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(append(append([]string{}, fixedColumns...), titles...)); err != nil {
		return nil, err
	}

	col := make(map[string]int, len(titles))
	for i, t := range titles {
		col[t] = len(fixedColumns) + i
	}

	for _, rec := range recs {
		row := make([]string, len(fixedColumns)+len(titles))
		fullName := ""
		if rec.FullName != nil {
			fullName = *rec.FullName
		}
		copy(row, []string{
			rec.ReferenceID, rec.OrderID, rec.TicketID,
			rec.FirstName, rec.LastName, fullName,
			rec.Email, rec.ContactNumber, rec.CompanyName, rec.JobTitle,
		})

		spec := parsed[formKey{rec.TicketID, rec.FormVersion}]
		for _, key := range rec.CustomAnswers.Keys() {
			q, ok := spec.Question(key)
			if !ok {
				continue
			}
			i, ok := col[title(q)]
			if !ok {
				continue
			}
			a, _ := rec.CustomAnswers.Get(key)
			row[i] = FormatAnswer(q, a)
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func loadForm(ctx context.Context, forms FormSource, k formKey) (registration.FormSpec, error) {
	raw, err := forms.GetQuestionForm(ctx, k.ticketID, k.version)
	if errors.Is(err, registration.ErrNotFound) {
		return registration.FormSpec{}, nil
	}
	if err != nil {
		return registration.FormSpec{}, fmt.Errorf("load form %s v%d: %w", k.ticketID, k.version, err)
	}
	return registration.ParseForm(raw)
}

func title(q registration.Question) string {
	if q.Title != "" {
		return q.Title
	}
	return q.Name
}
