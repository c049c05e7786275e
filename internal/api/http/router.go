package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/identity-service/internal/api/http/handlers"
	"github.com/spec-kit/identity-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Identities     *handlers.IdentitiesHandler
	Batches        *handlers.BatchesHandler
	AuthMiddleware *auth.AuthMiddleware
	Registry       *prometheus.Registry
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/v1")
	v1.Post("/auth/token", cfg.Auth.Token)

	identities := v1.Group("/identities", cfg.AuthMiddleware.Handle)
	identities.Post("", cfg.Identities.Issue)
	identities.Post("/batch", cfg.Batches.Accept)
	identities.Get("/:id", cfg.Identities.Get)
	identities.Post("/:id/activate", cfg.Identities.Activate)
	identities.Post("/:id/lock/user", cfg.Identities.LockUser)
	identities.Post("/:id/lock/mo", cfg.Identities.LockMobileOperator)
	identities.Post("/:id/lock/admin", auth.RequireAdmin(), cfg.Identities.LockAdmin)
	identities.Post("/:id/unlock", auth.RequireAdmin(), cfg.Identities.Unlock)
	identities.Post("/:id/keys", cfg.Identities.RotateKey)
	identities.Get("/:id/keys", cfg.Identities.ListKeys)
	identities.Delete("/:id", auth.RequireAdmin(), cfg.Identities.Destroy)

	batches := v1.Group("/batches", cfg.AuthMiddleware.Handle)
	batches.Get("/:id", cfg.Batches.Status)
}
