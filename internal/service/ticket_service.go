package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/opsguardian/ticket-triage/internal/domain"
	"github.com/opsguardian/ticket-triage/internal/repository"
	apperrors "github.com/opsguardian/ticket-triage/pkg/util/errorutil"
)

// ErrNoSuggestions is returned when a suggestions request carries nothing
// usable.
var ErrNoSuggestions = errors.New("no suggestions found in payload")

// TicketService implements the ticket backend operations served under
// /api/tickets.
type TicketService struct {
	tickets repository.TicketRepository
	logger  *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Reporter    string
	Priority    string
	Category    string
	Status      string
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Query  string
	Status string
	Limit  int
	Offset int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{tickets: deps.TicketRepo, logger: logger}
}

// CreateTicket stores a new ticket. The status defaults to OPEN.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	priority := strings.TrimSpace(input.Priority)
	if priority != "" {
		p, ok := domain.ParsePriority(priority)
		if !ok {
			return nil, apperrors.NewValidationError("priority must be one of P0, P1, P2, P3", map[string]any{"field": "priority"})
		}
		priority = string(p)
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Reporter:    strings.TrimSpace(input.Reporter),
		Priority:    priority,
		Category:    strings.TrimSpace(input.Category),
		Status:      domain.TicketStatus(input.Status),
		Suggestions: []string{},
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.logger.Info("ticket created", zap.Int64("ticket_id", ticket.ID), zap.String("status", string(ticket.Status)))
	return ticket, nil
}

// GetTicket fetches a ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	return s.tickets.GetByID(ctx, id)
}

// ListTickets returns tickets matching filter in id order.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	return s.tickets.List(ctx, repository.TicketFilter{
		Status:     filter.Status,
		SearchTerm: filter.Query,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// UpdateTicket applies the non-nil fields of update.
func (s *TicketService) UpdateTicket(ctx context.Context, id int64, update domain.TicketUpdate) (*domain.Ticket, error) {
	if update.Priority != nil && strings.TrimSpace(*update.Priority) != "" {
		p, ok := domain.ParsePriority(*update.Priority)
		if !ok {
			return nil, apperrors.NewValidationError("priority must be one of P0, P1, P2, P3", map[string]any{"field": "priority"})
		}
		normalized := string(p)
		update.Priority = &normalized
	}
	ticket, err := s.tickets.UpdateFields(ctx, id, update)
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket updated",
		zap.Int64("ticket_id", id),
		zap.String("priority", ticket.Priority),
		zap.String("category", ticket.Category),
		zap.String("status", string(ticket.Status)))
	return ticket, nil
}

// AddSuggestions appends new suggestions to a ticket. The status is left
// unchanged.
func (s *TicketService) AddSuggestions(ctx context.Context, id int64, suggestions []string) (*domain.Ticket, error) {
	cleaned := repository.MergeSuggestions(nil, suggestions)
	if len(cleaned) == 0 {
		return nil, ErrNoSuggestions
	}
	ticket, err := s.tickets.AddSuggestions(ctx, id, cleaned)
	if err != nil {
		return nil, err
	}
	s.logger.Info("suggestions added", zap.Int64("ticket_id", id), zap.Int("total", len(ticket.Suggestions)))
	return ticket, nil
}

// AssignTicket moves a ticket to ASSIGNED. The team is only logged.
func (s *TicketService) AssignTicket(ctx context.Context, id int64, team string) (*domain.Ticket, error) {
	status := string(domain.TicketStatusAssigned)
	ticket, err := s.tickets.UpdateFields(ctx, id, domain.TicketUpdate{Status: &status})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket assigned", zap.Int64("ticket_id", id), zap.String("team", team))
	return ticket, nil
}

// ApplySuggestion records that an operator applied a suggestion. Nothing is
// executed.
func (s *TicketService) ApplySuggestion(ctx context.Context, id int64, request map[string]any) error {
	if _, err := s.tickets.GetByID(ctx, id); err != nil {
		return err
	}
	s.logger.Info("suggestion applied", zap.Int64("ticket_id", id), zap.Any("request", request))
	return nil
}

// ExtractSuggestions reads the suggestions carried by a request body: a JSON
// array, an object with a "suggestions" array, an object with a single
// "suggestion", or a bare scalar. Null entries are skipped.
func ExtractSuggestions(body []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrNoSuggestions
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, apperrors.NewValidationError("invalid JSON body", map[string]any{"error": err.Error()})
	}

	var out []string
	switch v := payload.(type) {
	case nil:
	case []any:
		out = appendValues(out, v)
	case map[string]any:
		if list, ok := v["suggestions"].([]any); ok {
			out = appendValues(out, list)
		} else if single, ok := v["suggestion"]; ok && single != nil {
			out = append(out, fmt.Sprint(single))
		}
	default:
		out = append(out, fmt.Sprint(v))
	}
	if len(out) == 0 {
		return nil, ErrNoSuggestions
	}
	return out, nil
}

func appendValues(out []string, values []any) []string {
	for _, v := range values {
		if v != nil {
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}
