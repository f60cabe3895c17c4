package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/accessgate/access-gate/internal/api/http/handlers"
	"github.com/accessgate/access-gate/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Operators      *handlers.OperatorsHandler
	AccessRequests *handlers.AccessRequestsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/operators/login", cfg.Operators.Login)

	requests := app.Group("/access-requests")
	// Registered before /:id routes so "pending" is not taken as an id.
	requests.Get("/pending", cfg.AuthMiddleware.Handle, auth.RequireOperator(), cfg.AccessRequests.ListPending)
	requests.Post("/", cfg.AccessRequests.Submit)
	requests.Get("/by-code/:code/status", cfg.AccessRequests.StatusByCode)
	requests.Get("/:id/status", cfg.AccessRequests.Status)
	requests.Get("/:id/status/wait", cfg.AccessRequests.Wait)
	requests.Post("/:id/decision", cfg.AuthMiddleware.Handle, auth.RequireOperator(), cfg.AccessRequests.Decide)
}
