package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Tickets  *handlers.TicketsHandler
	SLA      *handlers.SLAHandler
	Users    *handlers.UsersHandler
	Identity *auth.IdentityMiddleware
	// Metrics serves the Prometheus exposition format. Nil disables /metrics.
	Metrics http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	api := app.Group("/api", cfg.Identity.Handle)
	requireUser := auth.RequireUser()

	api.Get("/me", cfg.Users.Me)
	api.Get("/users", cfg.Users.ListUsers)

	tickets := api.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", requireUser, cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", requireUser, cfg.Tickets.UpdateTicket)
	tickets.Get("/:id/comments", cfg.Tickets.ListComments)
	tickets.Post("/:id/comments", requireUser, cfg.Tickets.AddComment)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)

	slaGroup := api.Group("/sla")
	slaGroup.Post("/check-breaches", cfg.SLA.CheckBreaches)
	slaGroup.Get("/stats", cfg.SLA.Stats)
}
