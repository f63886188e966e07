package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/repository"
	"github.com/spec-kit/maintenance-service/pkg/util"
)

// AssignmentService runs the team assignment engine: membership joins and
// leaves, workload-based availability, and automatic leader onboarding for
// high-severity reports.
type AssignmentService struct {
	reports        repository.ReportRepository
	members        repository.TeamMemberRepository
	users          repository.UserRepository
	stats          repository.StatsRepository
	dispatcher     events.Dispatcher
	strictCapacity bool
}

// AssignmentDependencies bundles collaborators for the assignment service.
type AssignmentDependencies struct {
	ReportRepo     repository.ReportRepository
	MemberRepo     repository.TeamMemberRepository
	UserRepo       repository.UserRepository
	StatsRepo      repository.StatsRepository
	Dispatcher     events.Dispatcher
	StrictCapacity bool
}

// NewAssignmentService constructs the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		reports:        deps.ReportRepo,
		members:        deps.MemberRepo,
		users:          deps.UserRepo,
		stats:          deps.StatsRepo,
		dispatcher:     deps.Dispatcher,
		strictCapacity: deps.StrictCapacity,
	}
}

// AddToTeam onboards a technician to a report's team. The repository enforces
// the duplicate, leader-gate and team size rules; workload limits are checked
// here against the candidate's active assignments.
func (s *AssignmentService) AddToTeam(ctx context.Context, reportID, technicianID string, role domain.TeamRole, actor events.Actor) (*domain.TeamMembership, error) {
	if !domain.ValidTeamRole(role) {
		return nil, util.NewValidationError("invalid team role", map[string]any{"role": role})
	}

	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("report", map[string]any{"report_id": reportID})
		}
		return nil, util.MapError(err)
	}
	if report.Status == domain.ReportStatusCompleted || report.Status == domain.ReportStatusArchived {
		return nil, util.NewConflict("report is closed", map[string]any{"status": report.Status})
	}

	user, err := s.users.GetByID(ctx, technicianID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("technician", map[string]any{"technician_id": technicianID})
		}
		return nil, util.MapError(err)
	}
	if !user.Technician() {
		return nil, util.NewValidationError("user is not a technician", map[string]any{"role": user.Role})
	}
	if role == domain.TeamRoleLeader && !user.LeaderCapable() {
		return nil, util.NewForbidden("leader role requires a technician leader")
	}

	available, err := s.TechnicianAvailable(ctx, technicianID, report.HighSeverity())
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, util.NewCapacityError("technician workload limit reached", map[string]any{
			"technician_id": technicianID,
		})
	}

	membership, err := s.members.AddMember(ctx, reportID, technicianID, role, s.strictCapacity)
	if err != nil {
		return nil, mapMembershipError(err, report)
	}

	if err := s.stats.IncrementAssigned(ctx, technicianID, report.Sector, domain.MonthWindowAt(time.Now())); err != nil {
		return nil, util.MapError(err)
	}

	s.publish(ctx, events.EventTeamMemberAdded, reportID, actor, events.TeamMemberPayload{
		TechnicianID: technicianID,
		Role:         role,
	})
	return membership, nil
}

// RemoveFromTeam deactivates a membership, keeping the row for history.
func (s *AssignmentService) RemoveFromTeam(ctx context.Context, reportID, technicianID string, actor events.Actor) (*domain.TeamMembership, error) {
	membership, err := s.members.RemoveMember(ctx, reportID, technicianID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("team membership", map[string]any{
				"report_id":     reportID,
				"technician_id": technicianID,
			})
		}
		return nil, util.MapError(err)
	}

	s.publish(ctx, events.EventTeamMemberRemoved, reportID, actor, events.TeamMemberPayload{
		TechnicianID: technicianID,
		Role:         membership.Role,
	})
	return membership, nil
}

// AutoAssignTeamLeader puts the least-loaded leader-capable technician on the
// report's team. Returns the membership, or nil when no leader has capacity.
func (s *AssignmentService) AutoAssignTeamLeader(ctx context.Context, reportID string) (*domain.TeamMembership, error) {
	leaderID, err := s.members.LeastLoadedLeader(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, util.MapError(err)
	}
	return s.AddToTeam(ctx, reportID, leaderID, domain.TeamRoleLeader, events.Actor{System: true})
}

// TechnicianAvailable checks the workload limits for the given severity tier.
func (s *AssignmentService) TechnicianAvailable(ctx context.Context, technicianID string, highSeverity bool) (bool, error) {
	workload, err := s.members.Workload(ctx, technicianID)
	if err != nil {
		return false, util.MapError(err)
	}
	if highSeverity {
		return workload.AvailableForHighSeverity(), nil
	}
	return workload.AvailableForRegular(), nil
}

// AvailableTechnicians lists technicians with spare capacity, least loaded
// first, optionally restricted to a sector.
func (s *AssignmentService) AvailableTechnicians(ctx context.Context, sector *string, highSeverity bool) ([]domain.TechnicianAvailability, error) {
	result, err := s.members.AvailableTechnicians(ctx, sector, highSeverity)
	if err != nil {
		return nil, util.MapError(err)
	}
	return result, nil
}

// Team returns the active memberships for a report in role precedence order.
func (s *AssignmentService) Team(ctx context.Context, reportID string) ([]domain.TeamMembership, error) {
	result, err := s.members.ListActiveByReport(ctx, reportID)
	if err != nil {
		return nil, util.MapError(err)
	}
	return result, nil
}

// TeamHistory returns all memberships for a report including departed ones.
func (s *AssignmentService) TeamHistory(ctx context.Context, reportID string) ([]domain.TeamMembership, error) {
	result, err := s.members.ListHistoryByReport(ctx, reportID)
	if err != nil {
		return nil, util.MapError(err)
	}
	return result, nil
}

// ListTechnicians returns every active technician-capable user.
func (s *AssignmentService) ListTechnicians(ctx context.Context) ([]domain.User, error) {
	result, err := s.users.ListByRoles(ctx, domain.RoleTechnician, domain.RoleTechnicianLeader)
	if err != nil {
		return nil, util.MapError(err)
	}
	return result, nil
}

// Workload exposes a technician's active assignment counts.
func (s *AssignmentService) Workload(ctx context.Context, technicianID string) (*domain.TechnicianWorkload, error) {
	workload, err := s.members.Workload(ctx, technicianID)
	if err != nil {
		return nil, util.MapError(err)
	}
	return workload, nil
}

func (s *AssignmentService) publish(ctx context.Context, eventType events.EventType, reportID string, actor events.Actor, payload any) {
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ReportID:  reportID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

func mapMembershipError(err error, report *domain.Report) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateMember):
		return util.NewConflict("technician already on this team", nil)
	case errors.Is(err, repository.ErrLeaderRequired):
		return util.NewCapacityError("high-severity teams need a leader first", nil)
	case errors.Is(err, repository.ErrTeamFull):
		maxSize := domain.MaxTeamSizeDefault
		if report.HighSeverity() {
			maxSize = domain.MaxTeamSizeHighSeverity
		}
		return util.NewCapacityError("team is full", map[string]any{"max_size": maxSize})
	default:
		return util.MapError(err)
	}
}
