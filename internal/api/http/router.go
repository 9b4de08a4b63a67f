package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsguardian/ticket-triage/internal/api/http/handlers"
	"github.com/opsguardian/ticket-triage/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Tickets        *handlers.TicketsHandler
	Triage         *handlers.TriageHandler
	Auth           *handlers.AuthHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Snapshot)

	tickets := app.Group("/api/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/suggestions", cfg.Tickets.AddSuggestions)
	tickets.Post("/:id/assign", cfg.Tickets.AssignTicket)
	tickets.Post("/:id/apply-suggestion", cfg.Tickets.ApplySuggestion)

	triage := app.Group("/triage", cfg.AuthMiddleware.Handle)
	triage.Post("/", auth.RequireScope(auth.ScopeTriage), cfg.Triage.ProcessRaw)
	triage.Post("/tickets/:id", auth.RequireScope(auth.ScopeTriage), cfg.Triage.ProcessTicket)
	triage.Post("/batch", auth.RequireScope(auth.ScopeAdmin), cfg.Triage.RunBatch)
	triage.Get("/reports/:id", auth.RequireScope(auth.ScopeReports, auth.ScopeTriage), cfg.Triage.GetReport)

	authGroup := app.Group("/auth", cfg.AuthMiddleware.Handle, auth.RequireScope(auth.ScopeAdmin))
	authGroup.Post("/tokens", cfg.Auth.IssueToken)
}
