package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/repository"
	"github.com/spec-kit/maintenance-service/pkg/util"
)

// EscalationService runs the SLA escalation sweep. The escalation flag flips
// through a conditional update, so overlapping sweeps cannot double-escalate
// a report or double-emit its event.
type EscalationService struct {
	reports    repository.ReportRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// EscalationDependencies bundles collaborators for the escalation service.
type EscalationDependencies struct {
	ReportRepo repository.ReportRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewEscalationService constructs the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	return &EscalationService{
		reports:    deps.ReportRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// RunSweep escalates every open report past its SLA deadline, returning the
// number escalated by this sweep.
func (s *EscalationService) RunSweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	overdue, err := s.reports.ListOverdue(ctx, now)
	if err != nil {
		return 0, util.MapError(err)
	}

	escalated := 0
	for _, report := range overdue {
		flipped, err := s.reports.MarkEscalated(ctx, report.ID, now)
		if err != nil {
			s.logger.Error("escalation update failed",
				zap.String("report_id", report.ID),
				zap.Error(err))
			continue
		}
		if !flipped {
			// Another sweep or a completion got there first.
			continue
		}
		escalated++

		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventReportEscalated,
			ReportID:  report.ID,
			Actor:     events.Actor{System: true},
			Timestamp: now,
			Payload: events.ReportEscalatedPayload{
				BreakdownType: report.BreakdownType,
				Sector:        report.Sector,
				SLADeadline:   report.SLADeadline,
				AssignedTo:    report.AssignedTo,
			},
		})
	}

	if escalated > 0 {
		s.logger.Info("escalation sweep finished",
			zap.Int("overdue", len(overdue)),
			zap.Int("escalated", escalated))
	}
	return escalated, nil
}
