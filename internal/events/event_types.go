package events

import (
	"time"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventReportCreated       EventType = "report_created"
	EventReportAssigned      EventType = "report_assigned"
	EventReportStatusChanged EventType = "report_status_changed"
	EventReportEscalated     EventType = "report_escalated"
	EventTeamMemberAdded     EventType = "team_member_added"
	EventTeamMemberRemoved   EventType = "team_member_removed"
	EventDailySummary        EventType = "daily_summary"
	EventLowStockAlert       EventType = "low_stock_alert"
	EventHealthAlert         EventType = "health_alert"
)

// Actor encapsulates actor metadata for an event. System events (escalation
// sweep, summaries) carry no user id.
type Actor struct {
	UserID *string `json:"user_id,omitempty"`
	System bool    `json:"system,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ReportID  string      `json:"report_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// ReportCreatedPayload payload.
type ReportCreatedPayload struct {
	BreakdownType  domain.BreakdownType `json:"breakdown_type"`
	Sector         string               `json:"sector"`
	SafetyRequired bool                 `json:"safety_required"`
	HighSeverity   bool                 `json:"high_severity"`
	SLADeadline    time.Time            `json:"sla_deadline"`
}

// ReportAssignedPayload payload.
type ReportAssignedPayload struct {
	TechnicianID string `json:"technician_id"`
	Sector       string `json:"sector"`
}

// ReportStatusChangedPayload payload.
type ReportStatusChangedPayload struct {
	OldStatus domain.ReportStatus `json:"old_status"`
	NewStatus domain.ReportStatus `json:"new_status"`
}

// ReportEscalatedPayload payload.
type ReportEscalatedPayload struct {
	BreakdownType domain.BreakdownType `json:"breakdown_type"`
	Sector        string               `json:"sector"`
	SLADeadline   time.Time            `json:"sla_deadline"`
	AssignedTo    *string              `json:"assigned_to,omitempty"`
}

// TeamMemberPayload covers both team join and leave events.
type TeamMemberPayload struct {
	TechnicianID string          `json:"technician_id"`
	Role         domain.TeamRole `json:"role"`
}

// DailySummaryPayload payload.
type DailySummaryPayload struct {
	Date             time.Time `json:"date"`
	TotalReports     int       `json:"total_reports"`
	CompletedReports int       `json:"completed_reports"`
	EscalatedReports int       `json:"escalated_reports"`
	SafetyReports    int       `json:"safety_reports"`
}

// LowStockAlertPayload payload.
type LowStockAlertPayload struct {
	PartsCount int            `json:"parts_count"`
	Parts      []LowStockPart `json:"parts"`
}

// LowStockPart identifies one part below its stock floor.
type LowStockPart struct {
	ID       string `json:"id"`
	PartName string `json:"part_name"`
	Stock    int    `json:"stock"`
}

// HealthAlertPayload payload.
type HealthAlertPayload struct {
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`
}
