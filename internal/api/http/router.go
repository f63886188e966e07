package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-service/internal/api/http/handlers"
	"github.com/spec-kit/maintenance-service/internal/auth"
	"github.com/spec-kit/maintenance-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Reports        *handlers.ReportsHandler
	Stats          *handlers.StatsHandler
	Jobs           *handlers.JobsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Users.Me)
	authGroup.Post("/change-password", cfg.AuthMiddleware.Handle, cfg.Users.ChangePassword)

	reports := app.Group("/reports", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	reports.Post("", cfg.Reports.CreateReport)
	reports.Get("/mine", cfg.Reports.ListMine)
	reports.Get("/unassigned", auth.RequireTechnician(), cfg.Reports.ListUnassigned)
	reports.Get("/assigned", auth.RequireTechnician(), cfg.Reports.ListAssigned)
	reports.Get("/due-today", auth.RequireTechnician(), cfg.Reports.ListDueToday)
	reports.Get("/escalated", auth.RequireRole(domain.RoleTechnicianLeader, domain.RoleWorkersLeader, domain.RoleAdmin), cfg.Reports.ListEscalated)
	reports.Get("/stats/sectors", auth.RequireRole(domain.RoleTechnicianLeader, domain.RoleWorkersLeader, domain.RoleAdmin), cfg.Reports.SectorStats)
	reports.Get("/:id", cfg.Reports.GetReport)
	reports.Post("/:id/claim", auth.RequireTechnician(), cfg.Reports.ClaimReport)
	reports.Post("/:id/complete", auth.RequireTechnician(), cfg.Reports.CompleteReport)
	reports.Get("/:id/team", cfg.Reports.GetTeam)
	reports.Get("/:id/team/history", cfg.Reports.GetTeamHistory)
	reports.Post("/:id/team", auth.RequireRole(domain.RoleTechnicianLeader, domain.RoleAdmin), cfg.Reports.AddTeamMember)
	reports.Delete("/:id/team/:technicianId", auth.RequireRole(domain.RoleTechnicianLeader, domain.RoleAdmin), cfg.Reports.RemoveTeamMember)

	machines := app.Group("/machines", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	machines.Get("", cfg.Reports.ListMachines)
	machines.Get("/qr/:code", cfg.Reports.GetMachineByQR)

	technicians := app.Group("/technicians", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleTechnicianLeader, domain.RoleAdmin))
	technicians.Get("", cfg.Reports.ListTechnicians)
	technicians.Get("/available", cfg.Reports.ListAvailableTechnicians)

	stats := app.Group("/stats", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	stats.Get("/leaderboard", cfg.Stats.Leaderboard)
	stats.Get("/me", cfg.Stats.MyStats)
	stats.Get("/sectors", auth.RequireRole(domain.RoleTechnicianLeader, domain.RoleWorkersLeader, domain.RoleAdmin), cfg.Stats.SectorPerformance)
	stats.Get("/technicians/:id", auth.RequireRole(domain.RoleTechnicianLeader, domain.RoleAdmin), cfg.Stats.TechnicianStats)
	stats.Get("/technicians/:id/workload", auth.RequireRole(domain.RoleTechnicianLeader, domain.RoleAdmin), cfg.Stats.Workload)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	admin.Get("/jobs", cfg.Jobs.ListJobs)
	admin.Post("/jobs/:name/trigger", cfg.Jobs.TriggerJob)
	admin.Get("/maintenance-mode", cfg.Jobs.GetMaintenanceMode)
	admin.Put("/maintenance-mode", cfg.Jobs.SetMaintenanceMode)
}
