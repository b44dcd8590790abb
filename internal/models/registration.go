package models

import (
	"encoding/json"
	"time"

	"github.com/anjeev1098/reservation-system/internal/registration"
	"github.com/anjeev1098/reservation-system/internal/report"
)

// PurchaseRequest is the POST /events/:event_id/purchase payload. Basic
// events may omit tickets to take their only ticket type.
type PurchaseRequest struct {
	Tickets []TicketSelection `json:"tickets"`
}

type TicketSelection struct {
	TicketID string `json:"ticket_id"`
	Quantity int    `json:"quantity"`
}

func (r PurchaseRequest) SeatRequests() []registration.SeatRequest {
	out := make([]registration.SeatRequest, 0, len(r.Tickets))
	for _, t := range r.Tickets {
		out = append(out, registration.SeatRequest{TicketID: t.TicketID, Quantity: t.Quantity})
	}
	return out
}

// PurchaseResponse carries everything the buyer needs to answer each seat.
type PurchaseResponse struct {
	EventID string     `json:"event_id"`
	OrderID string     `json:"order_id"`
	Seats   []SeatView `json:"seats"`
}

type SeatView struct {
	TicketID     string          `json:"ticket_id"`
	AttendeeID   string          `json:"attendee_id"`
	QuestionForm json.RawMessage `json:"question_form,omitempty"`
}

func NewPurchaseResponse(r registration.Receipt) PurchaseResponse {
	seats := make([]SeatView, 0, len(r.Seats))
	for _, s := range r.Seats {
		seats = append(seats, SeatView{TicketID: s.TicketID, AttendeeID: s.AttendeeID, QuestionForm: s.QuestionForm})
	}
	return PurchaseResponse{EventID: r.EventID, OrderID: r.OrderID, Seats: seats}
}

// AnswerRequest is one attendee's submission for one reserved seat.
type AnswerRequest struct {
	EventID    string `json:"event_id" binding:"required"`
	TicketID   string `json:"ticket_id" binding:"required"`
	AttendeeID string `json:"attendee_id" binding:"required"`
	OrderID    string `json:"order_id" binding:"required"`
	registration.PersonalFields
	CustomQuestions registration.Answers `json:"custom_questions"`
}

func (r AnswerRequest) Submission() registration.Submission {
	return registration.Submission{
		EventID:    r.EventID,
		TicketID:   r.TicketID,
		AttendeeID: r.AttendeeID,
		OrderID:    r.OrderID,
		Personal:   r.PersonalFields,
		Answers:    r.CustomQuestions,
	}
}

// AttendeeView is the public shape of an attendee record.
type AttendeeView struct {
	ReferenceID string `json:"reference_id"`
	OrderID     string `json:"order_id"`
	EventID     string `json:"event_id"`
	TicketID    string `json:"ticket_id"`
	FormVersion int    `json:"form_version"`
	registration.PersonalFields
	CustomQuestions registration.Answers `json:"custom_questions"`
	CreatedAt       time.Time            `json:"created_at"`
}

func NewAttendeeView(rec registration.AttendeeRecord) AttendeeView {
	return AttendeeView{
		ReferenceID:     rec.ReferenceID,
		OrderID:         rec.OrderID,
		EventID:         rec.EventID,
		TicketID:        rec.TicketID,
		FormVersion:     rec.FormVersion,
		PersonalFields:  rec.PersonalFields,
		CustomQuestions: rec.CustomAnswers,
		CreatedAt:       rec.CreatedAt,
	}
}

// BatchAnswerResponse is returned by POST /answers/batch on success.
type BatchAnswerResponse struct {
	Attendees []AttendeeView `json:"attendees"`
}

// OrderView groups the attendees of one order.
type OrderView struct {
	EventID   string         `json:"event_id"`
	OrderID   string         `json:"order_id"`
	Attendees []AttendeeView `json:"attendees"`
}

func NewOrderViews(orders []report.Order) []OrderView {
	out := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		v := OrderView{EventID: o.EventID, OrderID: o.OrderID}
		for _, rec := range o.Attendees {
			v.Attendees = append(v.Attendees, NewAttendeeView(rec))
		}
		out = append(out, v)
	}
	return out
}

// ExportRequest is the optional POST /events/:event_id/export payload.
type ExportRequest struct {
	Recipient string `json:"recipient" binding:"omitempty,email"`
}

// ExportResponse acknowledges a queued export.
type ExportResponse struct {
	TaskID    string `json:"task_id"`
	EventID   string `json:"event_id"`
	Recipient string `json:"recipient"`
}
