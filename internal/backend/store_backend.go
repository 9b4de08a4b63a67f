package backend

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/opsguardian/ticket-triage/internal/domain"
	"github.com/opsguardian/ticket-triage/internal/repository"
	"github.com/opsguardian/ticket-triage/internal/service"
	apperrors "github.com/opsguardian/ticket-triage/pkg/util/errorutil"
)

var suggestionsPath = regexp.MustCompile(`^/?tickets/(\d+)/suggestions/?$`)

var (
	_ service.TicketBackend     = (*StoreBackend)(nil)
	_ service.SuggestionsSender = (*StoreBackend)(nil)
	_ service.TicketBackend     = (*RESTClient)(nil)
	_ service.SuggestionsSender = (*RESTClient)(nil)
)

// StoreBackend serves the triage pipeline straight from the local ticket
// service, without going over HTTP.
type StoreBackend struct {
	tickets *service.TicketService
	logger  *zap.Logger
}

// NewStoreBackend wraps a ticket service.
func NewStoreBackend(tickets *service.TicketService, logger *zap.Logger) *StoreBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreBackend{tickets: tickets, logger: logger}
}

// GetTicket returns the stored ticket as a JSON object.
func (b *StoreBackend) GetTicket(ctx context.Context, id int64) (map[string]any, error) {
	ticket, err := b.tickets.GetTicket(ctx, id)
	if err != nil {
		return nil, notFound(err, id)
	}
	return toMap(ticket)
}

// ListTickets returns tickets in id order, optionally filtered by status.
func (b *StoreBackend) ListTickets(ctx context.Context, status string) ([]map[string]any, error) {
	tickets, err := b.tickets.ListTickets(ctx, service.TicketListFilter{Status: status})
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(tickets))
	for i := range tickets {
		m, err := toMap(&tickets[i])
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// UpdateTicket applies the classification fields.
func (b *StoreBackend) UpdateTicket(ctx context.Context, id int64, update domain.TicketUpdate) (map[string]any, error) {
	ticket, err := b.tickets.UpdateTicket(ctx, id, update)
	if err != nil {
		return nil, notFound(err, id)
	}
	return toMap(ticket)
}

// AddSuggestions appends suggestions and answers like the HTTP endpoint does.
func (b *StoreBackend) AddSuggestions(ctx context.Context, id int64, payload domain.SuggestionsPayload) (map[string]any, error) {
	ticket, err := b.tickets.AddSuggestions(ctx, id, payload.Suggestions)
	if errors.Is(err, service.ErrNoSuggestions) {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"id": id})
	}
	if err != nil {
		return nil, notFound(err, id)
	}
	m, err := toMap(ticket)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "ok", "ticket": m}, nil
}

// Post understands tickets/{id}/suggestions only.
func (b *StoreBackend) Post(ctx context.Context, path string, payload any) (map[string]any, error) {
	match := suggestionsPath.FindStringSubmatch(path)
	if match == nil {
		b.logger.Warn("unsupported backend path", zap.String("path", path))
		return nil, apperrors.NewNotFound("route", map[string]any{"path": path})
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return nil, apperrors.NewInvalidInput("ticket id out of range", map[string]any{"path": path})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid suggestions payload", map[string]any{"error": err.Error()})
	}
	suggestions, err := service.ExtractSuggestions(body)
	if errors.Is(err, service.ErrNoSuggestions) {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"path": path})
	}
	if err != nil {
		return nil, err
	}
	return b.AddSuggestions(ctx, id, domain.SuggestionsPayload{ID: id, Suggestions: suggestions})
}

func notFound(err error, id int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return err
}

func toMap(ticket *domain.Ticket) (map[string]any, error) {
	encoded, err := json.Marshal(ticket)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(encoded, &m); err != nil {
		return nil, err
	}
	return m, nil
}
