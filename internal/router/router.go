package router

import (
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/liloman25879/spring-vote-app/internal/handler"
	"github.com/liloman25879/spring-vote-app/internal/middleware"
)

// Handlers holds all handler instances needed by the router.
type Handlers struct {
	Vote    *handler.VoteHandler
	Task    *handler.TaskHandler
	User    *handler.UserHandler
	Stats   *handler.StatsHandler
	Updates *handler.UpdatesHandler
	Admin   *handler.AdminHandler
	Health  *handler.HealthHandler
}

// Options carries router-level settings.
type Options struct {
	CORSOrigins string
	AdminKey    string
	Debouncer   *middleware.Debouncer
}

// Setup configures the middleware stack and all API routes on the given Fiber app.
func Setup(app *fiber.App, h *Handlers, opts Options) {
	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(middleware.NewRequestLogger())
	app.Use(handler.MetricsMiddleware())
	app.Use(middleware.NewCORS(opts.CORSOrigins))

	// Health and metrics (before API group, no auth needed)
	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	app.Get("/metrics", handler.MetricsHandler())

	// API routes
	api := app.Group("/api")

	// Vote routes
	api.Post("/votes", h.Vote.Cast, opts.Debouncer.Handler())

	// Task routes
	api.Get("/tasks", h.Task.List)
	api.Post("/tasks", h.Task.Propose)

	// User routes
	api.Post("/users/session", h.User.Session)
	api.Get("/users/:userId/tokens", h.User.Tokens)

	// Stats routes
	api.Get("/stats", h.Stats.Global)
	api.Get("/stats/rankings", h.Stats.Rankings)
	api.Get("/stats/top", h.Stats.Top)

	// Update polling
	api.Get("/updates", h.Updates.Poll)

	// Admin routes (shared-key guarded)
	admin := api.Group("/admin", middleware.NewAdminGuard(opts.AdminKey))
	admin.Post("/reset/:userId", h.Admin.Reset)
	admin.Get("/users", h.Admin.Users)
	admin.Get("/export", h.Admin.Export)
}
