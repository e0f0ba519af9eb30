package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tenant-session/internal/api/http/handlers"
	"github.com/spec-kit/tenant-session/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Get)

	authGroup := app.Group("/auth")
	authGroup.Get("/state", cfg.Auth.State)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Post("/refresh", cfg.Auth.Refresh)

	if cfg.AuthMiddleware != nil {
		authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)
	}
}
