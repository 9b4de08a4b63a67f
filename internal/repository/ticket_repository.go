package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsguardian/ticket-triage/internal/domain"
)

// ErrNotFound is returned when a ticket does not exist. It is pgx.ErrNoRows
// so the error mapping treats both stores alike.
var ErrNotFound = pgx.ErrNoRows

// TicketFilter captures list parameters.
type TicketFilter struct {
	Status     string
	SearchTerm string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	UpdateFields(ctx context.Context, id int64, update domain.TicketUpdate) (*domain.Ticket, error)
	AddSuggestions(ctx context.Context, id int64, suggestions []string) (*domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, title, description, reporter, priority, category, status, suggestions, created_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	prepareNew(ticket)
	const query = `
        INSERT INTO tickets (title, description, reporter, priority, category, status, suggestions)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Reporter,
		ticket.Priority,
		ticket.Category,
		ticket.Status,
		ticket.Suggestions,
	).Scan(&ticket.ID, &ticket.CreatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if status := normalizeStatus(filter.Status); status != "" {
		args = append(args, status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if term := strings.TrimSpace(filter.SearchTerm); term != "" {
		args = append(args, "%"+strings.ToLower(term)+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY id ASC`, ticketColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) UpdateFields(ctx context.Context, id int64, update domain.TicketUpdate) (*domain.Ticket, error) {
	var status *string
	if update.Status != nil {
		s := normalizeStatus(*update.Status)
		status = &s
	}
	query := `
        UPDATE tickets SET priority=COALESCE($1, priority), category=COALESCE($2, category),
            status=COALESCE($3, status), updated_at=NOW()
        WHERE id=$4
        RETURNING ` + ticketColumns
	return scanTicket(r.pool.QueryRow(ctx, query, update.Priority, update.Category, status, id))
}

func (r *ticketRepository) AddSuggestions(ctx context.Context, id int64, suggestions []string) (*domain.Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var existing []string
	if err := tx.QueryRow(ctx, `SELECT suggestions FROM tickets WHERE id=$1 FOR UPDATE`, id).Scan(&existing); err != nil {
		return nil, err
	}

	merged := MergeSuggestions(existing, suggestions)
	query := `UPDATE tickets SET suggestions=$1, updated_at=NOW() WHERE id=$2 RETURNING ` + ticketColumns
	ticket, err := scanTicket(tx.QueryRow(ctx, query, merged, id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Reporter,
		&ticket.Priority,
		&ticket.Category,
		&ticket.Status,
		&ticket.Suggestions,
		&ticket.CreatedAt,
	); err != nil {
		return nil, err
	}
	if ticket.Suggestions == nil {
		ticket.Suggestions = []string{}
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

// MergeSuggestions appends the trimmed, non-empty entries of incoming that
// are not yet present in existing.
func MergeSuggestions(existing, incoming []string) []string {
	merged := make([]string, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, s := range existing {
		merged = append(merged, s)
		seen[s] = struct{}{}
	}
	for _, s := range incoming {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		merged = append(merged, s)
	}
	return merged
}

func normalizeStatus(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func prepareNew(ticket *domain.Ticket) {
	ticket.Status = domain.TicketStatus(normalizeStatus(string(ticket.Status)))
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusOpen
	}
	ticket.Suggestions = MergeSuggestions(nil, ticket.Suggestions)
}
