package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/opsguardian/ticket-triage/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketTriaged             EventType = "ticket_triaged"
	EventSuggestionsDeliveryFailed EventType = "suggestions_delivery_failed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  int64     `json:"ticket_id"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, ticketID int64, runID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketTriagedPayload payload.
type TicketTriagedPayload struct {
	Priority             domain.Priority `json:"priority,omitempty"`
	Category             string          `json:"category,omitempty"`
	Status               string          `json:"status"`
	PreviousStatus       string          `json:"previous_status"`
	ClassifiedByModel    bool            `json:"classified_by_model"`
	SuggestionsFromModel bool            `json:"suggestions_from_model"`
	SuggestionCount      int             `json:"suggestion_count"`
}

// SuggestionsDeliveryFailedPayload payload.
type SuggestionsDeliveryFailedPayload struct {
	Error           string `json:"error"`
	SuggestionCount int    `json:"suggestion_count"`
}
