package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opsguardian/ticket-triage/internal/domain"
)

// ErrReportWithoutTicket is returned when a report cannot be keyed.
var ErrReportWithoutTicket = errors.New("report has no ticket id")

// ReportRepository keeps the latest triage report per ticket.
type ReportRepository interface {
	Save(ctx context.Context, report *domain.ProcessingReport) error
	Get(ctx context.Context, ticketID int64) (*domain.ProcessingReport, error)
}

// ReportKey is the Redis key of a ticket's latest report.
func ReportKey(ticketID int64) string {
	return fmt.Sprintf("triage:report:%d", ticketID)
}

func reportTicketID(report *domain.ProcessingReport) (int64, error) {
	if report == nil || report.Normalized.ID == nil {
		return 0, ErrReportWithoutTicket
	}
	return *report.Normalized.ID, nil
}

type redisReportRepository struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisReportRepository stores reports as JSON with the given TTL. A
// non-positive ttl keeps them forever.
func NewRedisReportRepository(client redis.Cmdable, ttl time.Duration) ReportRepository {
	if ttl < 0 {
		ttl = 0
	}
	return &redisReportRepository{client: client, ttl: ttl}
}

func (r *redisReportRepository) Save(ctx context.Context, report *domain.ProcessingReport) error {
	id, err := reportTicketID(report)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return r.client.Set(ctx, ReportKey(id), payload, r.ttl).Err()
}

func (r *redisReportRepository) Get(ctx context.Context, ticketID int64) (*domain.ProcessingReport, error) {
	payload, err := r.client.Get(ctx, ReportKey(ticketID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var report domain.ProcessingReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &report, nil
}

type memoryReportRepository struct {
	mu      sync.RWMutex
	reports map[int64][]byte
}

// NewMemoryReportRepository keeps reports in process memory.
func NewMemoryReportRepository() ReportRepository {
	return &memoryReportRepository{reports: make(map[int64][]byte)}
}

func (r *memoryReportRepository) Save(_ context.Context, report *domain.ProcessingReport) error {
	id, err := reportTicketID(report)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[id] = payload
	return nil
}

func (r *memoryReportRepository) Get(_ context.Context, ticketID int64) (*domain.ProcessingReport, error) {
	r.mu.RLock()
	payload, ok := r.reports[ticketID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var report domain.ProcessingReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &report, nil
}
