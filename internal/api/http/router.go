package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vertice360/leadqual/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health       *handlers.HealthHandler
	Webhooks     *handlers.WebhooksHandler
	Sessions     *handlers.SessionsHandler
	Orchestrator *handlers.OrchestratorHandler
	Events       *handlers.EventsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/healthz", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	app.Post("/webhooks/inbound", cfg.Webhooks.Inbound)

	app.Get("/sessions", cfg.Sessions.List)
	app.Get("/sessions/:id", cfg.Sessions.Get)

	app.Post("/orchestrator/analyze", cfg.Orchestrator.Analyze)

	app.Get("/events/stream", cfg.Events.Stream)
}
