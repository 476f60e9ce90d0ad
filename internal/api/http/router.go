package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-kit/ticketd/internal/api/http/handlers"
	"github.com/helpdesk-kit/ticketd/internal/auth"
	"github.com/helpdesk-kit/ticketd/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("", cfg.Tickets.Create)
	tickets.Get("", cfg.Tickets.List)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Patch("/:id", cfg.Tickets.Update)
	tickets.Post("/:id/transition", cfg.Tickets.Transition)
	tickets.Post("/:id/assign", cfg.Tickets.Assign)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)

	users := app.Group("/users", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	users.Post("/:id/deactivate", cfg.Users.Deactivate)
}
