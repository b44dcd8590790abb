package models

import (
	"encoding/json"
	"time"

	"github.com/anjeev1098/reservation-system/internal/registration"
)

// UpsertEventRequest is the PUT /events payload: an event and its full set
// of ticket types.
type UpsertEventRequest struct {
	EventID               string          `json:"event_id" binding:"required"`
	EventType             string          `json:"event_type" binding:"required,oneof=basic full"`
	Name                  string          `json:"name" binding:"required"`
	Slug                  string          `json:"slug"`
	Venue                 string          `json:"venue"`
	Timezone              string          `json:"timezone"`
	BannerImage           string          `json:"banner_image"`
	RegistrationHeader    string          `json:"registration_header"`
	OrderCompleteText     string          `json:"order_complete_text"`
	RegistrationEndedText string          `json:"registration_ended_text"`
	StartsAt              *time.Time      `json:"starts_at"`
	EndsAt                *time.Time      `json:"ends_at"`
	FormStart             *time.Time      `json:"form_start"`
	FormEnd               *time.Time      `json:"form_end"`
	Tickets               []TicketPayload `json:"tickets" binding:"required,min=1,dive"`
}

// TicketPayload is one ticket type inside UpsertEventRequest.
// quantity is the remaining quantity to set.
type TicketPayload struct {
	TicketID     string          `json:"ticket_id" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	Quantity     *int            `json:"quantity" binding:"required,min=0,max=2147483647"`
	QuestionForm json.RawMessage `json:"question_form"`
}

// Event converts the payload into the catalog types.
func (r UpsertEventRequest) Event() (registration.Event, []registration.TicketType) {
	ev := registration.Event{
		ID:                    r.EventID,
		Type:                  registration.EventType(r.EventType),
		Name:                  r.Name,
		Slug:                  r.Slug,
		Venue:                 r.Venue,
		Timezone:              r.Timezone,
		BannerImage:           r.BannerImage,
		RegistrationHeader:    r.RegistrationHeader,
		OrderCompleteText:     r.OrderCompleteText,
		RegistrationEndedText: r.RegistrationEndedText,
		StartsAt:              r.StartsAt,
		EndsAt:                r.EndsAt,
		FormStart:             r.FormStart,
		FormEnd:               r.FormEnd,
	}
	tickets := make([]registration.TicketType, 0, len(r.Tickets))
	for _, t := range r.Tickets {
		qty := 0
		if t.Quantity != nil {
			qty = *t.Quantity
		}
		tickets = append(tickets, registration.TicketType{
			ID:                t.TicketID,
			EventID:           r.EventID,
			Name:              t.Name,
			RemainingQuantity: qty,
			QuestionForm:      t.QuestionForm,
		})
	}
	return ev, tickets
}

// EventListResponse is returned by GET /events.
type EventListResponse struct {
	Events []EventResponse `json:"events"`
}

// EventResponse is returned by GET /events/:event_id and PUT /events.
type EventResponse struct {
	Event   registration.Event        `json:"event"`
	Tickets []registration.TicketType `json:"tickets"`
}
