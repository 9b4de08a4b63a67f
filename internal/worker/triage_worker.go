package worker

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/opsguardian/ticket-triage/internal/config"
	"github.com/opsguardian/ticket-triage/internal/domain"
	"github.com/opsguardian/ticket-triage/internal/service"
)

// TicketLister lists raw tickets from the backend.
type TicketLister interface {
	ListTickets(ctx context.Context, status string) ([]map[string]any, error)
}

// TicketProcessor triages one ticket by id.
type TicketProcessor interface {
	ProcessID(ctx context.Context, id int64) (*domain.ProcessingReport, error)
}

// BatchOptions tunes a batch run.
type BatchOptions struct {
	OpenOnly      bool
	Concurrency   int
	RatePerMinute int
}

// BatchOptionsFromConfig maps the batch configuration section.
func BatchOptionsFromConfig(cfg config.BatchConfig) BatchOptions {
	return BatchOptions{
		OpenOnly:      cfg.OpenOnly,
		Concurrency:   cfg.Concurrency,
		RatePerMinute: cfg.RatePerMinute,
	}
}

// BatchResult is the outcome for one ticket of a batch.
type BatchResult struct {
	TicketID int64                    `json:"ticket_id"`
	Report   *domain.ProcessingReport `json:"report,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// BatchSummary aggregates a batch run.
type BatchSummary struct {
	Listed                int           `json:"listed"`
	Skipped               int           `json:"skipped"`
	Processed             int           `json:"processed"`
	Failed                int           `json:"failed"`
	ClassifiedByModel     int           `json:"classified_by_model"`
	ClassifiedByHeuristic int           `json:"classified_by_heuristic"`
	SuggestionsFromModel  int           `json:"suggestions_from_model"`
	DeliveryFailures      int           `json:"delivery_failures"`
	Results               []BatchResult `json:"results"`
}

// BatchRunner triages every listed ticket. Tickets are processed in list
// order when Concurrency is 1.
type BatchRunner struct {
	lister    TicketLister
	processor TicketProcessor
	opts      BatchOptions
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// BatchDependencies bundles collaborators for the batch runner.
type BatchDependencies struct {
	Lister    TicketLister
	Processor TicketProcessor
	Options   BatchOptions
	Logger    *zap.Logger
}

// NewBatchRunner constructs a runner. A positive RatePerMinute paces ticket
// starts.
func NewBatchRunner(deps BatchDependencies) *BatchRunner {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := deps.Options
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	var limiter *rate.Limiter
	if opts.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RatePerMinute)/60.0), 1)
	}
	return &BatchRunner{
		lister:    deps.Lister,
		processor: deps.Processor,
		opts:      opts,
		limiter:   limiter,
		logger:    logger,
	}
}

type batchJob struct {
	index int
	id    int64
}

// Run lists tickets with the given status filter and triages them. Only a
// listing failure or cancellation is returned as an error; per-ticket
// failures are counted in the summary.
func (r *BatchRunner) Run(ctx context.Context, status string) (BatchSummary, error) {
	tickets, err := r.lister.ListTickets(ctx, status)
	if err != nil {
		r.logger.Error("failed to list tickets", zap.Error(err))
		return BatchSummary{}, fmt.Errorf("list tickets: %w", err)
	}

	summary := BatchSummary{Listed: len(tickets)}
	r.logger.Info("batch started", zap.Int("tickets", len(tickets)), zap.Bool("open_only", r.opts.OpenOnly))

	jobs := make([]batchJob, 0, len(tickets))
	for _, raw := range tickets {
		ticket, err := service.ReadTicket(raw)
		if err != nil || ticket.ID == nil {
			r.logger.Warn("skipping ticket with missing id", zap.Any("ticket", raw))
			summary.Skipped++
			continue
		}
		rawStatus := strings.ToUpper(strings.TrimSpace(fmt.Sprint(valueOr(raw["status"], ""))))
		if r.opts.OpenOnly && rawStatus != string(domain.TicketStatusOpen) {
			r.logger.Info("skipping ticket", zap.Int64("ticket_id", *ticket.ID), zap.String("status", rawStatus))
			summary.Skipped++
			continue
		}
		jobs = append(jobs, batchJob{index: len(jobs), id: *ticket.ID})
	}

	results := make([]BatchResult, len(jobs))
	g := new(errgroup.Group)
	g.SetLimit(r.opts.Concurrency)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			results[job.index] = r.processOne(ctx, job.id)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.Report == nil {
			summary.Failed++
			continue
		}
		summary.Processed++
		if res.Report.Classification.UsedModel {
			summary.ClassifiedByModel++
		} else {
			summary.ClassifiedByHeuristic++
		}
		if res.Report.Suggestions.UsedModel {
			summary.SuggestionsFromModel++
		}
		if res.Report.DeliveryFailed() {
			summary.DeliveryFailures++
		}
	}
	summary.Results = results

	r.logger.Info("batch finished",
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (r *BatchRunner) processOne(ctx context.Context, id int64) BatchResult {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return BatchResult{TicketID: id, Error: err.Error()}
		}
	}
	r.logger.Info("processing ticket", zap.Int64("ticket_id", id))
	report, err := r.processor.ProcessID(ctx, id)
	if err != nil {
		r.logger.Error("error while processing ticket", zap.Int64("ticket_id", id), zap.Error(err))
		return BatchResult{TicketID: id, Error: err.Error()}
	}
	return BatchResult{TicketID: id, Report: report}
}

func valueOr(v, fallback any) any {
	if v == nil {
		return fallback
	}
	return v
}
