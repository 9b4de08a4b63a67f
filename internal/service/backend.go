package service

import (
	"context"

	"github.com/opsguardian/ticket-triage/internal/domain"
)

// TicketBackend is the ticket store the triage pipeline reads from and
// writes back to. Responses are passed through as plain JSON objects.
type TicketBackend interface {
	GetTicket(ctx context.Context, id int64) (map[string]any, error)
	ListTickets(ctx context.Context, status string) ([]map[string]any, error)
	UpdateTicket(ctx context.Context, id int64, update domain.TicketUpdate) (map[string]any, error)
	Post(ctx context.Context, path string, payload any) (map[string]any, error)
}

// SuggestionsSender is implemented by backends with a dedicated
// suggestions endpoint. Backends without it get a generic Post.
type SuggestionsSender interface {
	AddSuggestions(ctx context.Context, id int64, payload domain.SuggestionsPayload) (map[string]any, error)
}
