package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/opsguardian/ticket-triage/internal/auth"
	"github.com/opsguardian/ticket-triage/internal/backend"
	"github.com/opsguardian/ticket-triage/internal/config"
	"github.com/opsguardian/ticket-triage/internal/events"
	"github.com/opsguardian/ticket-triage/internal/llm"
	"github.com/opsguardian/ticket-triage/internal/observability"
	"github.com/opsguardian/ticket-triage/internal/persistence"
	"github.com/opsguardian/ticket-triage/internal/repository"
	"github.com/opsguardian/ticket-triage/internal/service"
	"github.com/opsguardian/ticket-triage/internal/worker"
)

// Container holds the wired application graph shared by the HTTP server and
// the CLI.
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Postgres   *persistence.Postgres
	Redis      *persistence.Redis
	Metrics    *observability.Metrics
	Dispatcher events.Dispatcher
	Tickets    *service.TicketService
	Backend    service.TicketBackend
	Model      *llm.LazyModel
	Triage     *service.TriageService
	Batch      *worker.BatchRunner
	Tokens     *auth.TokenManager
}

// UseRemoteBackendByDefault points a one-shot process at the ticket backend
// on DefaultBaseURL when neither POSTGRES_DSN nor OPS_BACKEND_URL is set. A
// short-lived CLI would otherwise triage against an empty in-memory store.
func UseRemoteBackendByDefault(cfg *config.Config) {
	if cfg.Postgres.DSN == "" && cfg.Backend.URL == "" {
		cfg.Backend.URL = backend.DefaultBaseURL
	}
}

// Build connects to the configured stores and wires every service. Without
// POSTGRES_DSN tickets live in memory; without Redis reports do too. With
// OPS_BACKEND_URL set the triage pipeline talks to that backend over HTTP.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	redis := persistence.NewRedis(ctx, cfg.Redis, logger)

	var ticketRepo repository.TicketRepository
	if pg.Enabled() {
		ticketRepo = repository.NewTicketRepository(pg.PoolHandle())
	} else {
		ticketRepo = repository.NewMemoryTicketRepository()
	}
	var reportRepo repository.ReportRepository
	if redis.Enabled() {
		reportRepo = repository.NewRedisReportRepository(redis.Client, cfg.Reports.TTL())
	} else {
		reportRepo = repository.NewMemoryReportRepository()
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(dispatcher, cfg.Notification, logger)

	tickets := service.NewTicketService(service.TicketDependencies{TicketRepo: ticketRepo, Logger: logger})

	var ticketBackend service.TicketBackend
	if cfg.Backend.URL != "" {
		rest := backend.NewRESTClient(backend.RESTConfig{BaseURL: cfg.Backend.URL, Timeout: cfg.Backend.Timeout()}, logger)
		logger.Info("using remote ticket backend", zap.String("base_url", rest.BaseURL()))
		ticketBackend = rest
	} else {
		ticketBackend = backend.NewStoreBackend(tickets, logger)
	}

	model := llm.NewLazyModelFromConfig(cfg.Model, logger)
	invoker := llm.NewInvoker(llm.RetryPolicyFromConfig(cfg.Retry), logger)
	taskDeps := service.TaskDependencies{Model: model, Invoker: invoker, Metrics: metrics, Logger: logger}

	triage := service.NewTriageService(service.TriageDependencies{
		Backend:    ticketBackend,
		Classifier: service.NewClassifier(taskDeps),
		Suggester:  service.NewSuggester(taskDeps),
		Reports:    reportRepo,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	c := &Container{
		Config:     cfg,
		Logger:     logger,
		Postgres:   pg,
		Redis:      redis,
		Metrics:    metrics,
		Dispatcher: dispatcher,
		Tickets:    tickets,
		Backend:    ticketBackend,
		Model:      model,
		Triage:     triage,
		Tokens:     auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes),
	}
	c.Batch = c.BatchRunner(cfg.Batch.OpenOnly)
	return c, nil
}

// BatchRunner builds a queue driver over the container's backend with the
// configured options and the given open-only filter.
func (c *Container) BatchRunner(openOnly bool) *worker.BatchRunner {
	opts := worker.BatchOptionsFromConfig(c.Config.Batch)
	opts.OpenOnly = openOnly
	return worker.NewBatchRunner(worker.BatchDependencies{
		Lister:    c.Backend,
		Processor: c.Triage,
		Options:   opts,
		Logger:    c.Logger,
	})
}

// Close releases store connections.
func (c *Container) Close() {
	c.Redis.Close()
	c.Postgres.Close()
}
