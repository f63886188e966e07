package domain

import "time"

// TeamRole enumerates the roles a technician can hold on a report team.
type TeamRole string

const (
	TeamRoleMain    TeamRole = "main"
	TeamRoleLeader  TeamRole = "leader"
	TeamRoleSupport TeamRole = "support"
)

// Team sizing rules. High-severity reports admit a larger crew but demand
// a leader before anyone else joins.
const (
	MaxTeamSizeHighSeverity = 5
	MaxTeamSizeDefault      = 2
	MaxMainAssignments      = 3
	MaxTotalAssignments     = 5
	MaxLeaderAssignments    = 2
)

// TeamMembership records a technician's active participation on a report.
type TeamMembership struct {
	ID           string
	ReportID     string
	TechnicianID string
	Role         TeamRole
	IsActive     bool
	JoinedAt     time.Time
	LeftAt       *time.Time
}

// TechnicianWorkload is a read-time aggregate over a technician's active
// memberships on reports that are not yet completed.
type TechnicianWorkload struct {
	TechnicianID       string
	TotalAssignments   int
	MainAssignments    int
	LeaderAssignments  int
	SupportAssignments int
	HighSeverity       int
}

// AvailableForHighSeverity checks capacity for high-severity candidate work.
func (w TechnicianWorkload) AvailableForHighSeverity() bool {
	return w.TotalAssignments < MaxTotalAssignments
}

// AvailableForRegular checks capacity for ordinary candidate work.
func (w TechnicianWorkload) AvailableForRegular() bool {
	return w.MainAssignments < MaxMainAssignments && w.TotalAssignments < MaxTotalAssignments
}

// TechnicianAvailability ranks a technician for manual assignment.
type TechnicianAvailability struct {
	TechnicianID    string
	Username        string
	EmployeeID      string
	Role            UserRole
	TotalWorkload   int
	MainAssignments int
}

// ValidTeamRole reports whether the value is in the accepted domain.
func ValidTeamRole(r TeamRole) bool {
	switch r {
	case TeamRoleMain, TeamRoleLeader, TeamRoleSupport:
		return true
	}
	return false
}
