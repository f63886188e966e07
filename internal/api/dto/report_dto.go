package dto

import (
	"time"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// CreateReportRequest is the payload for opening a report.
type CreateReportRequest struct {
	BreakdownType      domain.BreakdownType  `json:"breakdown_type"`
	Description        string                `json:"description"`
	SafetyRequired     bool                  `json:"safety_required"`
	AssistanceRequired bool                  `json:"assistance_required"`
	LocationMethod     domain.LocationMethod `json:"location_method"`
	Sector             string                `json:"sector"`
	GridLocation       *string               `json:"grid_location,omitempty"`
	MachineID          *string               `json:"machine_id,omitempty"`
	ImageURL           *string               `json:"image_url,omitempty"`
}

// AddTeamMemberRequest is the payload for onboarding a technician.
type AddTeamMemberRequest struct {
	TechnicianID string          `json:"technician_id"`
	Role         domain.TeamRole `json:"role"`
}

// ReportResponse is the wire shape of a report.
type ReportResponse struct {
	ID                 string                `json:"id"`
	ReporterID         string                `json:"reporter_id"`
	BreakdownType      domain.BreakdownType  `json:"breakdown_type"`
	Description        string                `json:"description"`
	SafetyRequired     bool                  `json:"safety_required"`
	AssistanceRequired bool                  `json:"assistance_required"`
	LocationMethod     domain.LocationMethod `json:"location_method"`
	Sector             string                `json:"sector"`
	GridLocation       *string               `json:"grid_location,omitempty"`
	MachineID          *string               `json:"machine_id,omitempty"`
	ImageURL           *string               `json:"image_url,omitempty"`
	Status             domain.ReportStatus   `json:"status"`
	AssignedTo         *string               `json:"assigned_to,omitempty"`
	SLADeadline        time.Time             `json:"sla_deadline"`
	Escalated          bool                  `json:"escalated"`
	HighSeverity       bool                  `json:"high_severity"`
	CreatedAt          time.Time             `json:"created_at"`
	CompletedAt        *time.Time            `json:"completed_at,omitempty"`
}

// TeamMemberResponse is the wire shape of a team membership.
type TeamMemberResponse struct {
	ID           string          `json:"id"`
	ReportID     string          `json:"report_id"`
	TechnicianID string          `json:"technician_id"`
	Role         domain.TeamRole `json:"role"`
	IsActive     bool            `json:"is_active"`
	JoinedAt     time.Time       `json:"joined_at"`
	LeftAt       *time.Time      `json:"left_at,omitempty"`
}

// TechnicianAvailabilityResponse ranks a technician for assignment.
type TechnicianAvailabilityResponse struct {
	TechnicianID    string          `json:"technician_id"`
	Username        string          `json:"username"`
	EmployeeID      string          `json:"employee_id"`
	Role            domain.UserRole `json:"role"`
	TotalWorkload   int             `json:"total_workload"`
	MainAssignments int             `json:"main_assignments"`
}

// MachineResponse is the wire shape of a machine mapping.
type MachineResponse struct {
	ID           string `json:"id"`
	MachineLabel string `json:"machine_label"`
	QRCodeValue  string `json:"qr_code_value"`
	Sector       string `json:"sector"`
	IsActive     bool   `json:"is_active"`
}

// SectorStatsResponse aggregates report counts per sector.
type SectorStatsResponse struct {
	Sector             string               `json:"sector"`
	BreakdownType      domain.BreakdownType `json:"breakdown_type"`
	TotalReports       int                  `json:"total_reports"`
	CompletedReports   int                  `json:"completed_reports"`
	EscalatedReports   int                  `json:"escalated_reports"`
	AvgCompletionHours *float64             `json:"avg_completion_hours,omitempty"`
}
