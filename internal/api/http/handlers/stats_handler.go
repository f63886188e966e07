package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-service/internal/api/dto"
	"github.com/spec-kit/maintenance-service/internal/auth"
	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/service"
	"github.com/spec-kit/maintenance-service/pkg/util"
)

// StatsHandler serves the performance ledger read side.
type StatsHandler struct {
	stats       *service.StatsService
	assignments *service.AssignmentService
}

// NewStatsHandler constructs handler.
func NewStatsHandler(stats *service.StatsService, assignments *service.AssignmentService) *StatsHandler {
	return &StatsHandler{stats: stats, assignments: assignments}
}

// Leaderboard GET /stats/leaderboard.
func (h *StatsHandler) Leaderboard(c *fiber.Ctx) error {
	window, err := parseMonthWindow(c)
	if err != nil {
		return err
	}
	limit := parseInt(c.Query("limit"), 10)
	result, err := h.stats.Leaderboard(c.Context(), window, optionalQuery(c, "sector"), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": statsResponses(result)})
}

// MyStats GET /stats/me.
func (h *StatsHandler) MyStats(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return util.NewUnauthorized("user required")
	}
	return h.technicianStats(c, principal.User.ID)
}

// TechnicianStats GET /stats/technicians/:id.
func (h *StatsHandler) TechnicianStats(c *fiber.Ctx) error {
	return h.technicianStats(c, c.Params("id"))
}

func (h *StatsHandler) technicianStats(c *fiber.Ctx, technicianID string) error {
	limit := parseInt(c.Query("months"), 12)
	history, err := h.stats.TechnicianHistory(c.Context(), technicianID, limit)
	if err != nil {
		return err
	}
	agg, err := h.stats.Aggregated(c.Context(), technicianID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"months": statsResponses(history),
		"totals": dto.AggregatedStatsResponse{
			TotalAssigned:       agg.TotalAssigned,
			TotalCompleted:      agg.TotalCompleted,
			HighSeverityHandled: agg.HighSeverityHandled,
			TotalPoints:         agg.TotalPoints,
			CompletionRate:      agg.CompletionRate,
			MonthsActive:        agg.MonthsActive,
		},
	}})
}

// Workload GET /stats/technicians/:id/workload.
func (h *StatsHandler) Workload(c *fiber.Ctx) error {
	workload, err := h.assignments.Workload(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.WorkloadResponse{
		TechnicianID:       workload.TechnicianID,
		TotalAssignments:   workload.TotalAssignments,
		MainAssignments:    workload.MainAssignments,
		LeaderAssignments:  workload.LeaderAssignments,
		SupportAssignments: workload.SupportAssignments,
		HighSeverity:       workload.HighSeverity,
	}})
}

// SectorPerformance GET /stats/sectors.
func (h *StatsHandler) SectorPerformance(c *fiber.Ctx) error {
	window, err := parseMonthWindow(c)
	if err != nil {
		return err
	}
	result, err := h.stats.SectorPerformance(c.Context(), window)
	if err != nil {
		return err
	}
	items := make([]dto.SectorPerformanceResponse, 0, len(result))
	for _, p := range result {
		items = append(items, dto.SectorPerformanceResponse{
			Sector:              p.Sector,
			ActiveTechnicians:   p.ActiveTechnicians,
			TotalAssigned:       p.TotalAssigned,
			TotalCompleted:      p.TotalCompleted,
			HighSeverityHandled: p.HighSeverityHandled,
			AvgCompletionRate:   p.AvgCompletionRate,
			TotalPoints:         p.TotalPoints,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// parseMonthWindow reads year/month query params, defaulting to the current
// month.
func parseMonthWindow(c *fiber.Ctx) (domain.MonthWindow, error) {
	yearStr := c.Query("year")
	monthStr := c.Query("month")
	if yearStr == "" && monthStr == "" {
		return domain.MonthWindowAt(time.Now().UTC()), nil
	}

	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 2000 || year > 2200 {
		return domain.MonthWindow{}, util.NewValidationError("invalid year", nil)
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return domain.MonthWindow{}, util.NewValidationError("invalid month", nil)
	}
	return domain.MonthWindowFor(year, time.Month(month)), nil
}

func statsResponses(stats []domain.TechnicianStats) []dto.TechnicianStatsResponse {
	items := make([]dto.TechnicianStatsResponse, 0, len(stats))
	for _, s := range stats {
		items = append(items, dto.TechnicianStatsResponse{
			TechnicianID:        s.TechnicianID,
			Sector:              s.Sector,
			TotalAssigned:       s.TotalAssigned,
			TotalCompleted:      s.TotalCompleted,
			HighSeverityHandled: s.HighSeverityHandled,
			Points:              s.Points,
			WindowStart:         s.WindowStart,
			WindowEnd:           s.WindowEnd,
		})
	}
	return items
}
