package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/opsguardian/ticket-triage/internal/api/http"
	"github.com/opsguardian/ticket-triage/internal/api/http/handlers"
	"github.com/opsguardian/ticket-triage/internal/auth"
	"github.com/opsguardian/ticket-triage/internal/bootstrap"
	"github.com/opsguardian/ticket-triage/internal/config"
	"github.com/opsguardian/ticket-triage/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to wire application", zap.Error(err))
	}
	defer app.Close()

	server := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(server, logger, app.Metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, app.Postgres, app.Redis),
		Metrics:        handlers.NewMetricsHandler(app.Metrics),
		Tickets:        handlers.NewTicketsHandler(app.Tickets),
		Triage:         handlers.NewTriageHandler(app.Triage, app.Batch),
		Auth:           handlers.NewAuthHandler(app.Tokens),
		AuthMiddleware: auth.NewAuthMiddleware(app.Tokens),
	})

	go func() {
		if err := server.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = server.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
