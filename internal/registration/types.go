package registration

import (
	"encoding/json"
	"time"
)

// EventType decides how many seats a single purchase may hold.
type EventType string

const (
	// EventBasic events sell exactly one seat of their only ticket type per purchase.
	EventBasic EventType = "basic"
	// EventFull events accept any mix of ticket types and quantities in one order.
	EventFull EventType = "full"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return t == EventBasic || t == EventFull
}

// Event is the catalog view of an event. The catalog is read-only from the
// workflow's perspective.
type Event struct {
	ID                    string     `json:"event_id"`
	Type                  EventType  `json:"event_type"`
	Name                  string     `json:"name"`
	Slug                  string     `json:"slug,omitempty"`
	Venue                 string     `json:"venue,omitempty"`
	Timezone              string     `json:"timezone,omitempty"`
	BannerImage           string     `json:"banner_image,omitempty"`
	RegistrationHeader    string     `json:"registration_header,omitempty"`
	OrderCompleteText     string     `json:"order_complete_text,omitempty"`
	RegistrationEndedText string     `json:"registration_ended_text,omitempty"`
	StartsAt              *time.Time `json:"starts_at,omitempty"`
	EndsAt                *time.Time `json:"ends_at,omitempty"`
	FormStart             *time.Time `json:"form_start,omitempty"`
	FormEnd               *time.Time `json:"form_end,omitempty"`
}

// SingleTicket reports whether the event only allows one seat per purchase.
func (e Event) SingleTicket() bool {
	return e.Type == EventBasic
}

// RegistrationOpen reports whether now falls inside the event's form dates.
// Missing bounds are treated as open.
func (e Event) RegistrationOpen(now time.Time) bool {
	if e.FormStart != nil && now.Before(*e.FormStart) {
		return false
	}
	if e.FormEnd != nil && !now.Before(*e.FormEnd) {
		return false
	}
	return true
}

// TicketType is a purchasable category within one event.
type TicketType struct {
	ID                string          `json:"ticket_id"`
	EventID           string          `json:"event_id"`
	Name              string          `json:"name"`
	RemainingQuantity int             `json:"remaining_quantity"`
	QuestionForm      json.RawMessage `json:"question_form,omitempty"`
	FormVersion       int             `json:"form_version"`
}

// ReservationKey is the tuple that authorizes an answer submission.
type ReservationKey struct {
	AttendeeID  string
	TempOrderID string
	EventID     string
	TicketID    string
}

// Reservation is a time-bounded hold on one seat.
type Reservation struct {
	TempOrderID string
	EventID     string
	TicketID    string
	AttendeeID  string
	FormVersion int
	CreatedAt   time.Time
}

// Key returns the authorization tuple of the reservation.
func (r Reservation) Key() ReservationKey {
	return ReservationKey{
		AttendeeID:  r.AttendeeID,
		TempOrderID: r.TempOrderID,
		EventID:     r.EventID,
		TicketID:    r.TicketID,
	}
}

// PersonalFields are the fixed attendee questions every form carries.
type PersonalFields struct {
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	FullName      *string `json:"full_name,omitempty"`
	Email         string  `json:"email"`
	ContactNumber string  `json:"contact_number"`
	CompanyName   string  `json:"company_name"`
	JobTitle      string  `json:"job_title"`
}

// AttendeeRecord is the durable result of an answered reservation.
// ReferenceID equals the reservation's attendee id.
type AttendeeRecord struct {
	ReferenceID string
	OrderID     string
	EventID     string
	TicketID    string
	FormVersion int
	PersonalFields
	CustomAnswers Answers
	CreatedAt     time.Time
}

// SeatRequest asks for Quantity seats of one ticket type.
type SeatRequest struct {
	TicketID string
	Quantity int
}

// Seat is one reserved seat handed back to the buyer.
type Seat struct {
	TicketID     string
	AttendeeID   string
	QuestionForm json.RawMessage
}

// Receipt is the result of a successful purchase.
type Receipt struct {
	EventID string
	OrderID string
	Seats   []Seat
}

// Submission is one attendee's answers for one reserved seat.
type Submission struct {
	EventID    string
	TicketID   string
	AttendeeID string
	OrderID    string
	Personal   PersonalFields
	Answers    Answers
}

// Key returns the reservation tuple the submission claims.
func (s Submission) Key() ReservationKey {
	return ReservationKey{
		AttendeeID:  s.AttendeeID,
		TempOrderID: s.OrderID,
		EventID:     s.EventID,
		TicketID:    s.TicketID,
	}
}
