package domain

import "time"

// ReportStatus enumerates lifecycle states for maintenance reports.
type ReportStatus string

const (
	ReportStatusNoticed   ReportStatus = "noticed"
	ReportStatusWorking   ReportStatus = "working"
	ReportStatusCompleted ReportStatus = "completed"
	ReportStatusArchived  ReportStatus = "archived"
)

// BreakdownType classifies the reported failure.
type BreakdownType string

const (
	BreakdownMechanical BreakdownType = "mechanical"
	BreakdownElectrical BreakdownType = "electrical"
	BreakdownOther      BreakdownType = "other"
)

// LocationMethod selects how a report pinpoints the breakdown site.
type LocationMethod string

const (
	LocationByGrid    LocationMethod = "grid"
	LocationByMachine LocationMethod = "machine"
)

// Report is the aggregate for a maintenance issue, from notice to archive.
type Report struct {
	ID                 string
	ReporterID         string
	BreakdownType      BreakdownType
	Description        string
	SafetyRequired     bool
	AssistanceRequired bool
	LocationMethod     LocationMethod
	Sector             string
	GridLocation       *string
	MachineID          *string
	ImageURL           *string
	Status             ReportStatus
	AssignedTo         *string
	SLADeadline        time.Time
	Escalated          bool
	CreatedAt          time.Time
	CompletedAt        *time.Time
}

// HighSeverity reports require a larger team and a leader on board.
func (r *Report) HighSeverity() bool {
	return r.SafetyRequired || r.BreakdownType == BreakdownElectrical
}

// SLAWindow returns the resolution window granted at creation time.
// Safety issues get one hour regardless of breakdown type.
func SLAWindow(breakdownType BreakdownType, safetyRequired bool) time.Duration {
	if safetyRequired {
		return time.Hour
	}
	switch breakdownType {
	case BreakdownElectrical:
		return 4 * time.Hour
	case BreakdownMechanical:
		return 8 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// CompletionPoints computes the performance points awarded for completing
// a report: 10 base, +20 for safety work, +15 electrical or +10 mechanical.
func CompletionPoints(breakdownType BreakdownType, safetyRequired bool) int {
	points := 10
	if safetyRequired {
		points += 20
	}
	switch breakdownType {
	case BreakdownElectrical:
		points += 15
	case BreakdownMechanical:
		points += 10
	}
	return points
}

// ValidBreakdownType reports whether the value is in the accepted domain.
func ValidBreakdownType(t BreakdownType) bool {
	switch t {
	case BreakdownMechanical, BreakdownElectrical, BreakdownOther:
		return true
	}
	return false
}

// SectorStats is the per-sector aggregate returned by reporting queries.
type SectorStats struct {
	Sector             string
	BreakdownType      BreakdownType
	TotalReports       int
	CompletedReports   int
	EscalatedReports   int
	AvgCompletionHours *float64
}
