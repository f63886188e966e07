package dto

import "time"

// TechnicianStatsResponse is one month's ledger row for a technician.
type TechnicianStatsResponse struct {
	TechnicianID        string    `json:"technician_id"`
	Sector              string    `json:"sector"`
	TotalAssigned       int       `json:"total_assigned"`
	TotalCompleted      int       `json:"total_completed"`
	HighSeverityHandled int       `json:"high_severity_handled"`
	Points              int       `json:"points"`
	WindowStart         time.Time `json:"window_start"`
	WindowEnd           time.Time `json:"window_end"`
}

// AggregatedStatsResponse sums a technician's accrual across months.
type AggregatedStatsResponse struct {
	TotalAssigned       int     `json:"total_assigned"`
	TotalCompleted      int     `json:"total_completed"`
	HighSeverityHandled int     `json:"high_severity_handled"`
	TotalPoints         int     `json:"total_points"`
	CompletionRate      float64 `json:"completion_rate"`
	MonthsActive        int     `json:"months_active"`
}

// SectorPerformanceResponse aggregates the ledger per sector.
type SectorPerformanceResponse struct {
	Sector              string  `json:"sector"`
	ActiveTechnicians   int     `json:"active_technicians"`
	TotalAssigned       int     `json:"total_assigned"`
	TotalCompleted      int     `json:"total_completed"`
	HighSeverityHandled int     `json:"high_severity_handled"`
	AvgCompletionRate   float64 `json:"avg_completion_rate"`
	TotalPoints         int     `json:"total_points"`
}

// WorkloadResponse reports a technician's active assignment counts.
type WorkloadResponse struct {
	TechnicianID       string `json:"technician_id"`
	TotalAssignments   int    `json:"total_assignments"`
	MainAssignments    int    `json:"main_assignments"`
	LeaderAssignments  int    `json:"leader_assignments"`
	SupportAssignments int    `json:"support_assignments"`
	HighSeverity       int    `json:"high_severity"`
}
