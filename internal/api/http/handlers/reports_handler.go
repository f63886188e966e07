package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-service/internal/api/dto"
	"github.com/spec-kit/maintenance-service/internal/auth"
	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/service"
	"github.com/spec-kit/maintenance-service/pkg/util"
)

// ReportsHandler manages report lifecycle and team endpoints.
type ReportsHandler struct {
	reports     *service.ReportService
	assignments *service.AssignmentService
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reports *service.ReportService, assignments *service.AssignmentService) *ReportsHandler {
	return &ReportsHandler{reports: reports, assignments: assignments}
}

// CreateReport POST /reports.
func (h *ReportsHandler) CreateReport(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return util.NewUnauthorized("user required")
	}
	var req dto.CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	input := service.ReportCreateInput{
		BreakdownType:      req.BreakdownType,
		Description:        req.Description,
		SafetyRequired:     req.SafetyRequired,
		AssistanceRequired: req.AssistanceRequired,
		LocationMethod:     req.LocationMethod,
		Sector:             req.Sector,
		GridLocation:       req.GridLocation,
		MachineID:          req.MachineID,
		ImageURL:           req.ImageURL,
	}
	report, err := h.reports.Create(c.Context(), principal.User.ID, input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": reportResponse(report)})
}

// GetReport GET /reports/:id.
func (h *ReportsHandler) GetReport(c *fiber.Ctx) error {
	report, err := h.reports.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": reportResponse(report)})
}

// ListMine GET /reports/mine.
func (h *ReportsHandler) ListMine(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return util.NewUnauthorized("user required")
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	reports, err := h.reports.ListMine(c.Context(), principal.User.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": reportResponses(reports)})
}

// ListUnassigned GET /reports/unassigned.
func (h *ReportsHandler) ListUnassigned(c *fiber.Ctx) error {
	reports, err := h.reports.ListUnassigned(c.Context(), optionalQuery(c, "sector"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": reportResponses(reports)})
}

// ListAssigned GET /reports/assigned.
func (h *ReportsHandler) ListAssigned(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return util.NewUnauthorized("user required")
	}
	var status *domain.ReportStatus
	if statusStr := c.Query("status"); statusStr != "" {
		value := domain.ReportStatus(strings.TrimSpace(statusStr))
		status = &value
	}
	reports, err := h.reports.ListAssigned(c.Context(), principal.User.ID, status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": reportResponses(reports)})
}

// ListDueToday GET /reports/due-today.
func (h *ReportsHandler) ListDueToday(c *fiber.Ctx) error {
	var technicianID *string
	if c.Query("mine") == "true" {
		principal, ok := auth.PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return util.NewUnauthorized("user required")
		}
		technicianID = &principal.User.ID
	}
	reports, err := h.reports.ListDueToday(c.Context(), technicianID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": reportResponses(reports)})
}

// ListEscalated GET /reports/escalated.
func (h *ReportsHandler) ListEscalated(c *fiber.Ctx) error {
	reports, err := h.reports.ListEscalated(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": reportResponses(reports)})
}

// ClaimReport POST /reports/:id/claim.
func (h *ReportsHandler) ClaimReport(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return util.NewUnauthorized("user required")
	}
	report, err := h.reports.Claim(c.Context(), c.Params("id"), principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": reportResponse(report)})
}

// CompleteReport POST /reports/:id/complete.
func (h *ReportsHandler) CompleteReport(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return util.NewUnauthorized("user required")
	}
	report, err := h.reports.Complete(c.Context(), c.Params("id"), events.Actor{UserID: &principal.User.ID})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": reportResponse(report)})
}

// GetTeam GET /reports/:id/team.
func (h *ReportsHandler) GetTeam(c *fiber.Ctx) error {
	team, err := h.assignments.Team(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": teamResponses(team)})
}

// GetTeamHistory GET /reports/:id/team/history.
func (h *ReportsHandler) GetTeamHistory(c *fiber.Ctx) error {
	history, err := h.assignments.TeamHistory(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": teamResponses(history)})
}

// AddTeamMember POST /reports/:id/team.
func (h *ReportsHandler) AddTeamMember(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return util.NewUnauthorized("user required")
	}
	var req dto.AddTeamMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.TechnicianID == "" {
		return util.NewValidationError("technician_id required", nil)
	}
	role := req.Role
	if role == "" {
		role = domain.TeamRoleSupport
	}

	membership, err := h.assignments.AddToTeam(c.Context(), c.Params("id"), req.TechnicianID, role, events.Actor{UserID: &principal.User.ID})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": teamResponse(membership)})
}

// RemoveTeamMember DELETE /reports/:id/team/:technicianId.
func (h *ReportsHandler) RemoveTeamMember(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return util.NewUnauthorized("user required")
	}
	membership, err := h.assignments.RemoveFromTeam(c.Context(), c.Params("id"), c.Params("technicianId"), events.Actor{UserID: &principal.User.ID})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": teamResponse(membership)})
}

// ListAvailableTechnicians GET /technicians/available.
func (h *ReportsHandler) ListAvailableTechnicians(c *fiber.Ctx) error {
	highSeverity := c.Query("high_severity") == "true"
	available, err := h.assignments.AvailableTechnicians(c.Context(), optionalQuery(c, "sector"), highSeverity)
	if err != nil {
		return err
	}
	items := make([]dto.TechnicianAvailabilityResponse, 0, len(available))
	for _, a := range available {
		items = append(items, dto.TechnicianAvailabilityResponse{
			TechnicianID:    a.TechnicianID,
			Username:        a.Username,
			EmployeeID:      a.EmployeeID,
			Role:            a.Role,
			TotalWorkload:   a.TotalWorkload,
			MainAssignments: a.MainAssignments,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListTechnicians GET /technicians.
func (h *ReportsHandler) ListTechnicians(c *fiber.Ctx) error {
	technicians, err := h.assignments.ListTechnicians(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(technicians))
	for i := range technicians {
		items = append(items, userResponse(&technicians[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetMachineByQR GET /machines/qr/:code.
func (h *ReportsHandler) GetMachineByQR(c *fiber.Ctx) error {
	machine, err := h.reports.MachineByQRCode(c.Context(), c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": machineResponse(machine)})
}

// ListMachines GET /machines.
func (h *ReportsHandler) ListMachines(c *fiber.Ctx) error {
	sector := strings.TrimSpace(c.Query("sector"))
	if sector == "" {
		return util.NewValidationError("sector query parameter required", nil)
	}
	machines, err := h.reports.MachinesBySector(c.Context(), sector)
	if err != nil {
		return err
	}
	items := make([]dto.MachineResponse, 0, len(machines))
	for i := range machines {
		items = append(items, machineResponse(&machines[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// SectorStats GET /reports/stats/sectors.
func (h *ReportsHandler) SectorStats(c *fiber.Ctx) error {
	from := parseTime(c.Query("from"))
	to := parseTime(c.Query("to"))
	stats, err := h.reports.SectorStats(c.Context(), from, to)
	if err != nil {
		return err
	}
	items := make([]dto.SectorStatsResponse, 0, len(stats))
	for _, s := range stats {
		items = append(items, dto.SectorStatsResponse{
			Sector:             s.Sector,
			BreakdownType:      s.BreakdownType,
			TotalReports:       s.TotalReports,
			CompletedReports:   s.CompletedReports,
			EscalatedReports:   s.EscalatedReports,
			AvgCompletionHours: s.AvgCompletionHours,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		return &val
	}
	return nil
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func reportResponse(report *domain.Report) dto.ReportResponse {
	return dto.ReportResponse{
		ID:                 report.ID,
		ReporterID:         report.ReporterID,
		BreakdownType:      report.BreakdownType,
		Description:        report.Description,
		SafetyRequired:     report.SafetyRequired,
		AssistanceRequired: report.AssistanceRequired,
		LocationMethod:     report.LocationMethod,
		Sector:             report.Sector,
		GridLocation:       report.GridLocation,
		MachineID:          report.MachineID,
		ImageURL:           report.ImageURL,
		Status:             report.Status,
		AssignedTo:         report.AssignedTo,
		SLADeadline:        report.SLADeadline,
		Escalated:          report.Escalated,
		HighSeverity:       report.HighSeverity(),
		CreatedAt:          report.CreatedAt,
		CompletedAt:        report.CompletedAt,
	}
}

func reportResponses(reports []domain.Report) []dto.ReportResponse {
	items := make([]dto.ReportResponse, 0, len(reports))
	for i := range reports {
		items = append(items, reportResponse(&reports[i]))
	}
	return items
}

func machineResponse(machine *domain.Machine) dto.MachineResponse {
	return dto.MachineResponse{
		ID:           machine.ID,
		MachineLabel: machine.MachineLabel,
		QRCodeValue:  machine.QRCodeValue,
		Sector:       machine.Sector,
		IsActive:     machine.IsActive,
	}
}

func teamResponse(m *domain.TeamMembership) dto.TeamMemberResponse {
	return dto.TeamMemberResponse{
		ID:           m.ID,
		ReportID:     m.ReportID,
		TechnicianID: m.TechnicianID,
		Role:         m.Role,
		IsActive:     m.IsActive,
		JoinedAt:     m.JoinedAt,
		LeftAt:       m.LeftAt,
	}
}

func teamResponses(memberships []domain.TeamMembership) []dto.TeamMemberResponse {
	items := make([]dto.TeamMemberResponse, 0, len(memberships))
	for i := range memberships {
		items = append(items, teamResponse(&memberships[i]))
	}
	return items
}
