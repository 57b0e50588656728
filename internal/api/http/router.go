package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/bookwell/penalty-service/internal/api/http/handlers"
	"github.com/bookwell/penalty-service/internal/auth"
	"github.com/bookwell/penalty-service/internal/observability"
)

// NewApp builds the fiber app. Handlers hand path, query and header values
// to services that keep them past the request, so fiber must not reuse the
// request buffers behind those strings.
func NewApp(name string) *fiber.App {
	return fiber.New(fiber.Config{AppName: name, Immutable: true})
}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Penalties      *handlers.PenaltiesHandler
	AdminPenalties *handlers.AdminPenaltiesHandler
	InternalEvents *handlers.InternalEventsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	api.Get("/penalties/violation-types", cfg.Penalties.GetViolationTypes)

	me := api.Group("/penalties/me", auth.RequireAccountHolder())
	me.Get("", cfg.Penalties.GetMyPenaltyInfo)
	me.Get("/violations", cfg.Penalties.GetMyViolations)
	me.Post("/violations/:id/appeal", cfg.Penalties.AppealViolation)
	me.Get("/rewards", cfg.Penalties.GetMyRewardStats)
	me.Get("/adjustments", cfg.Penalties.GetMyAdjustments)
	me.Get("/eligibility", cfg.Penalties.GetMyEligibility)

	admin := api.Group("/admin/penalties", auth.RequireAdmin())
	admin.Get("/dashboard", cfg.AdminPenalties.Dashboard)
	admin.Post("/violations", cfg.AdminPenalties.RecordViolation)
	admin.Post("/violations/:id/reverse", cfg.AdminPenalties.ReverseViolation)
	admin.Get("/appeals", cfg.AdminPenalties.ListAppeals)
	admin.Post("/appeals/:id/approve", cfg.AdminPenalties.ApproveAppeal)
	admin.Post("/appeals/:id/reject", cfg.AdminPenalties.RejectAppeal)
	admin.Get("/adjustments", cfg.AdminPenalties.ListAdjustments)
	admin.Post("/accounts/:kind/:id/adjust", cfg.AdminPenalties.AdjustPoints)
	admin.Post("/accounts/:kind/:id/suspend", cfg.AdminPenalties.Suspend)
	admin.Post("/accounts/:kind/:id/lift-suspension", cfg.AdminPenalties.LiftSuspension)
	admin.Post("/reset", cfg.AdminPenalties.ResetPoints)
	admin.Put("/violation-types/:code", cfg.AdminPenalties.UpsertViolationType)

	internal := api.Group("/internal/events", auth.RequireService())
	internal.Post("/appointments/:id", cfg.InternalEvents.AppointmentStatusChanged)
	internal.Post("/ratings/:id", cfg.InternalEvents.RatingSubmitted)
}
