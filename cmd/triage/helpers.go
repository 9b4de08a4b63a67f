package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/opsguardian/ticket-triage/internal/bootstrap"
	"github.com/opsguardian/ticket-triage/internal/config"
	"github.com/opsguardian/ticket-triage/internal/observability"
)

// loadConfig reads the environment and keeps log output off stdout so the
// JSON printed by each command stays parseable. Without a database or a
// backend URL the CLI talks to the ticket backend on its default address.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Logger.Output == "" || cfg.Logger.Output == "stdout" {
		cfg.Logger.Output = "stderr"
	}
	bootstrap.UseRemoteBackendByDefault(cfg)
	return cfg, nil
}

func withContainer(ctx context.Context, fn func(*bootstrap.Container) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
