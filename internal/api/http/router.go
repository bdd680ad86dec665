package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/ticket-autoclose/internal/api/http/handlers"
	"github.com/spec-kit/ticket-autoclose/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Runs    *handlers.RunsHandler
	Tickets *handlers.TicketsHandler
	Metrics *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	runs := app.Group("/runs")
	runs.Post("", cfg.Runs.Trigger)
	runs.Get("/last", cfg.Runs.Last)

	if cfg.Tickets != nil {
		app.Get("/tickets/:id", cfg.Tickets.GetTicket)
	}
}
