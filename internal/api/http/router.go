package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/sla-guard/internal/api/http/handlers"
	"github.com/spec-kit/sla-guard/internal/auth"
	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Escalations    *handlers.EscalationHandler
	Comments       *handlers.CommentsHandler
	Notifications  *handlers.NotificationsHandler
	Admin          *handlers.AdminHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Users.Me)

	authenticated := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireAuthenticated()}
	manager := auth.RequireCapability(domain.CapabilityManageEscalations)

	tickets := app.Group("/tickets", authenticated...)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/high-risk", cfg.Tickets.HighRisk)
	tickets.Get("/escalated", cfg.Tickets.Escalated)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", manager, cfg.Tickets.DeleteTicket)
	tickets.Get("/:id/activity-logs", cfg.Tickets.ActivityLogs)
	tickets.Post("/:id/accept", cfg.Tickets.Accept)
	tickets.Post("/:id/progress", cfg.Tickets.UpdateProgress)
	tickets.Post("/:id/resolve", cfg.Tickets.Resolve)
	tickets.Post("/:id/escalate", manager, cfg.Escalations.Escalate)
	tickets.Post("/:id/reassign", manager, cfg.Escalations.Reassign)
	tickets.Get("/:id/comments", cfg.Comments.List)
	tickets.Post("/:id/comments", cfg.Comments.Create)

	comments := app.Group("/comments", authenticated...)
	comments.Put("/:id", cfg.Comments.Update)
	comments.Delete("/:id", cfg.Comments.Delete)

	notifications := app.Group("/notifications", authenticated...)
	notifications.Get("/", cfg.Notifications.List)
	notifications.Post("/acknowledge-all", cfg.Notifications.AcknowledgeAll)
	notifications.Post("/:id/acknowledge", cfg.Notifications.Acknowledge)

	sla := app.Group("/sla", authenticated...)
	sla.Get("/config", cfg.Admin.ListSLA)
	sla.Put("/config/:priority", auth.RequireCapability(domain.CapabilityConfigureSLA), cfg.Admin.UpdateSLA)

	analytics := app.Group("/analytics", authenticated...)
	analytics.Get("/overview", cfg.Admin.Overview)
	analytics.Get("/risk-distribution", cfg.Admin.RiskDistribution)
	analytics.Get("/technician-workload", auth.RequireCapability(domain.CapabilityViewAnalytics), cfg.Admin.TechnicianWorkload)

	monitor := app.Group("/monitor", authenticated...)
	monitor.Post("/run", manager, cfg.Admin.RunMonitor)
}
