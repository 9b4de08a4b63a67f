package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/opsguardian/ticket-triage/internal/domain"
)

type memoryTicketRepository struct {
	mu      sync.RWMutex
	nextID  int64
	tickets map[int64]domain.Ticket
	now     func() time.Time
}

// NewMemoryTicketRepository returns a process-local store used when no
// POSTGRES_DSN is configured. Returned tickets are copies.
func NewMemoryTicketRepository() TicketRepository {
	return &memoryTicketRepository{
		tickets: make(map[int64]domain.Ticket),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *memoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	prepareNew(ticket)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ticket.ID = r.nextID
	ticket.CreatedAt = r.now()
	r.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r *memoryTicketRepository) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneTicket(ticket)
	return &out, nil
}

func (r *memoryTicketRepository) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	status := normalizeStatus(filter.Status)
	term := strings.ToLower(strings.TrimSpace(filter.SearchTerm))

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []domain.Ticket{}
	skipped := 0
	for id := int64(1); id <= r.nextID; id++ {
		ticket, ok := r.tickets[id]
		if !ok {
			continue
		}
		if status != "" && string(ticket.Status) != status {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(ticket.Title), term) &&
			!strings.Contains(strings.ToLower(ticket.Description), term) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		result = append(result, cloneTicket(ticket))
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

func (r *memoryTicketRepository) UpdateFields(_ context.Context, id int64, update domain.TicketUpdate) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Priority != nil {
		ticket.Priority = *update.Priority
	}
	if update.Category != nil {
		ticket.Category = *update.Category
	}
	if update.Status != nil {
		ticket.Status = domain.TicketStatus(normalizeStatus(*update.Status))
	}
	r.tickets[id] = ticket
	out := cloneTicket(ticket)
	return &out, nil
}

func (r *memoryTicketRepository) AddSuggestions(_ context.Context, id int64, suggestions []string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	ticket.Suggestions = MergeSuggestions(ticket.Suggestions, suggestions)
	r.tickets[id] = ticket
	out := cloneTicket(ticket)
	return &out, nil
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	t.Suggestions = append([]string{}, t.Suggestions...)
	return t
}
