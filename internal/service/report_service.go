package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/repository"
	"github.com/spec-kit/maintenance-service/pkg/util"
)

// ReportService coordinates the report lifecycle from notice to archive.
type ReportService struct {
	reports     repository.ReportRepository
	machines    repository.MachineRepository
	users       repository.UserRepository
	assignments *AssignmentService
	stats       *StatsService
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// ReportDependencies bundles collaborators for the report service.
type ReportDependencies struct {
	ReportRepo  repository.ReportRepository
	MachineRepo repository.MachineRepository
	UserRepo    repository.UserRepository
	Assignments *AssignmentService
	Stats       *StatsService
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewReportService constructs the service.
func NewReportService(deps ReportDependencies) *ReportService {
	return &ReportService{
		reports:     deps.ReportRepo,
		machines:    deps.MachineRepo,
		users:       deps.UserRepo,
		assignments: deps.Assignments,
		stats:       deps.Stats,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
	}
}

// ReportCreateInput describes report creation payload.
type ReportCreateInput struct {
	BreakdownType      domain.BreakdownType
	Description        string
	SafetyRequired     bool
	AssistanceRequired bool
	LocationMethod     domain.LocationMethod
	Sector             string
	GridLocation       *string
	MachineID          *string
	ImageURL           *string
}

// Create validates and persists a new report. The SLA deadline is stamped at
// creation from the breakdown type and safety flag. High-severity reports get
// a team leader onboarded automatically, best effort.
func (s *ReportService) Create(ctx context.Context, reporterID string, input ReportCreateInput) (*domain.Report, error) {
	if !domain.ValidBreakdownType(input.BreakdownType) {
		return nil, util.NewValidationError("invalid breakdown type", map[string]any{"breakdown_type": input.BreakdownType})
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, util.NewValidationError("description is required", nil)
	}

	sector := input.Sector
	switch input.LocationMethod {
	case domain.LocationByGrid:
		if input.GridLocation == nil || strings.TrimSpace(*input.GridLocation) == "" {
			return nil, util.NewValidationError("grid location is required", nil)
		}
		if strings.TrimSpace(sector) == "" {
			return nil, util.NewValidationError("sector is required for grid location", nil)
		}
	case domain.LocationByMachine:
		if input.MachineID == nil {
			return nil, util.NewValidationError("machine id is required", nil)
		}
		machine, err := s.machines.GetByID(ctx, *input.MachineID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, util.NewNotFound("machine", map[string]any{"machine_id": *input.MachineID})
			}
			return nil, util.MapError(err)
		}
		// Sector always comes from the machine mapping, not the caller.
		sector = machine.Sector
	default:
		return nil, util.NewValidationError("invalid location method", map[string]any{"location_method": input.LocationMethod})
	}

	now := time.Now().UTC()
	report := &domain.Report{
		ID:                 uuid.NewString(),
		ReporterID:         reporterID,
		BreakdownType:      input.BreakdownType,
		Description:        strings.TrimSpace(input.Description),
		SafetyRequired:     input.SafetyRequired,
		AssistanceRequired: input.AssistanceRequired,
		LocationMethod:     input.LocationMethod,
		Sector:             sector,
		GridLocation:       input.GridLocation,
		MachineID:          input.MachineID,
		ImageURL:           input.ImageURL,
		Status:             domain.ReportStatusNoticed,
		SLADeadline:        now.Add(domain.SLAWindow(input.BreakdownType, input.SafetyRequired)),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, util.MapError(err)
	}

	s.publish(ctx, events.EventReportCreated, report.ID, events.Actor{UserID: &reporterID}, events.ReportCreatedPayload{
		BreakdownType:  report.BreakdownType,
		Sector:         report.Sector,
		SafetyRequired: report.SafetyRequired,
		HighSeverity:   report.HighSeverity(),
		SLADeadline:    report.SLADeadline,
	})

	if report.HighSeverity() {
		if _, err := s.assignments.AutoAssignTeamLeader(ctx, report.ID); err != nil {
			s.logger.Warn("leader auto-assignment failed",
				zap.String("report_id", report.ID),
				zap.Error(err))
		}
	}
	return report, nil
}

// Claim lets a technician take an unassigned report. The transition is a
// single guarded update, so when several technicians race exactly one wins
// and the rest get a conflict.
func (s *ReportService) Claim(ctx context.Context, reportID, technicianID string) (*domain.Report, error) {
	current, err := s.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, technicianID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("technician", map[string]any{"technician_id": technicianID})
		}
		return nil, util.MapError(err)
	}
	if !user.Technician() {
		return nil, util.NewForbidden("only technicians can claim reports")
	}

	available, err := s.assignments.TechnicianAvailable(ctx, technicianID, current.HighSeverity())
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, util.NewCapacityError("technician workload limit reached", map[string]any{
			"technician_id": technicianID,
		})
	}

	report, err := s.reports.Assign(ctx, reportID, technicianID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewConflict("report already claimed", map[string]any{"report_id": reportID})
		}
		return nil, util.MapError(err)
	}

	if _, err := s.assignments.AddToTeam(ctx, reportID, technicianID, domain.TeamRoleMain, events.Actor{UserID: &technicianID}); err != nil {
		// The claim itself stands; team bookkeeping is retryable.
		s.logger.Warn("claim succeeded but team join failed",
			zap.String("report_id", reportID),
			zap.String("technician_id", technicianID),
			zap.Error(err))
	}

	s.publish(ctx, events.EventReportAssigned, reportID, events.Actor{UserID: &technicianID}, events.ReportAssignedPayload{
		TechnicianID: technicianID,
		Sector:       report.Sector,
	})
	return report, nil
}

// Complete moves a working report to completed and credits every active team
// member in the performance ledger.
func (s *ReportService) Complete(ctx context.Context, reportID string, actor events.Actor) (*domain.Report, error) {
	report, err := s.reports.MarkCompleted(ctx, reportID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewConflict("report is not in progress", map[string]any{"report_id": reportID})
		}
		return nil, util.MapError(err)
	}

	team, err := s.assignments.Team(ctx, reportID)
	if err != nil {
		s.logger.Warn("completion credited without team lookup",
			zap.String("report_id", reportID),
			zap.Error(err))
	} else if err := s.stats.RecordCompletion(ctx, report, team); err != nil {
		s.logger.Warn("completion accrual failed",
			zap.String("report_id", reportID),
			zap.Error(err))
	}

	s.publish(ctx, events.EventReportStatusChanged, reportID, actor, events.ReportStatusChangedPayload{
		OldStatus: domain.ReportStatusWorking,
		NewStatus: domain.ReportStatusCompleted,
	})
	return report, nil
}

// GetByID fetches one report.
func (s *ReportService) GetByID(ctx context.Context, reportID string) (*domain.Report, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("report", map[string]any{"report_id": reportID})
		}
		return nil, util.MapError(err)
	}
	return report, nil
}

// ListMine returns the caller's own reports, newest first.
func (s *ReportService) ListMine(ctx context.Context, reporterID string, limit, offset int) ([]domain.Report, error) {
	result, err := s.reports.ListByReporter(ctx, reporterID, limit, offset)
	if err != nil {
		return nil, util.MapError(err)
	}
	return result, nil
}

// ListAssigned returns reports assigned to a technician.
func (s *ReportService) ListAssigned(ctx context.Context, technicianID string, status *domain.ReportStatus) ([]domain.Report, error) {
	result, err := s.reports.ListByAssignee(ctx, technicianID, status)
	if err != nil {
		return nil, util.MapError(err)
	}
	return result, nil
}

// ListUnassigned returns claimable reports, safety first, oldest first.
func (s *ReportService) ListUnassigned(ctx context.Context, sector *string) ([]domain.Report, error) {
	result, err := s.reports.ListUnassigned(ctx, sector)
	if err != nil {
		return nil, util.MapError(err)
	}
	return result, nil
}

// ListDueToday returns open reports whose SLA deadline falls today.
func (s *ReportService) ListDueToday(ctx context.Context, technicianID *string) ([]domain.Report, error) {
	result, err := s.reports.ListDueToday(ctx, technicianID, time.Now().UTC())
	if err != nil {
		return nil, util.MapError(err)
	}
	return result, nil
}

// ListEscalated returns open reports past their SLA deadline.
func (s *ReportService) ListEscalated(ctx context.Context) ([]domain.Report, error) {
	result, err := s.reports.ListEscalated(ctx)
	if err != nil {
		return nil, util.MapError(err)
	}
	return result, nil
}

// Archive bulk-moves old completed reports to the archived state.
func (s *ReportService) Archive(ctx context.Context, daysOld int) (int64, error) {
	archived, err := s.reports.ArchiveOlderThan(ctx, daysOld)
	if err != nil {
		return 0, util.MapError(err)
	}
	if archived > 0 {
		s.logger.Info("reports archived", zap.Int64("count", archived), zap.Int("days_old", daysOld))
	}
	return archived, nil
}

// MachineByQRCode resolves a scanned QR code to its machine mapping.
func (s *ReportService) MachineByQRCode(ctx context.Context, qrCodeValue string) (*domain.Machine, error) {
	machine, err := s.machines.GetByQRCode(ctx, qrCodeValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("machine", map[string]any{"qr_code": qrCodeValue})
		}
		return nil, util.MapError(err)
	}
	return machine, nil
}

// MachinesBySector lists the active machines mapped to a sector.
func (s *ReportService) MachinesBySector(ctx context.Context, sector string) ([]domain.Machine, error) {
	machines, err := s.machines.ListBySector(ctx, sector)
	if err != nil {
		return nil, util.MapError(err)
	}
	return machines, nil
}

// SectorStats aggregates report counts per sector and breakdown type.
func (s *ReportService) SectorStats(ctx context.Context, from, to *time.Time) ([]domain.SectorStats, error) {
	result, err := s.reports.StatsBySector(ctx, from, to)
	if err != nil {
		return nil, util.MapError(err)
	}
	return result, nil
}

func (s *ReportService) publish(ctx context.Context, eventType events.EventType, reportID string, actor events.Actor, payload any) {
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ReportID:  reportID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}
