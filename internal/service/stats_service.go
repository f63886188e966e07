package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/persistence"
	"github.com/spec-kit/maintenance-service/internal/repository"
	"github.com/spec-kit/maintenance-service/pkg/util"
)

const leaderboardCacheTTL = 5 * time.Minute

// StatsService maintains the monthly performance ledger and serves its
// read-side aggregates.
type StatsService struct {
	stats  repository.StatsRepository
	cache  *persistence.Cache
	logger *zap.Logger
}

// StatsDependencies bundles collaborators for the stats service.
type StatsDependencies struct {
	StatsRepo repository.StatsRepository
	Cache     *persistence.Cache
	Logger    *zap.Logger
}

// NewStatsService constructs the service.
func NewStatsService(deps StatsDependencies) *StatsService {
	return &StatsService{
		stats:  deps.StatsRepo,
		cache:  deps.Cache,
		logger: deps.Logger,
	}
}

// RecordCompletion credits every active team member for a completed report.
// Points accrue in the month of completion; the sector is the report's, so
// a technician can hold rows in several sectors within one month.
func (s *StatsService) RecordCompletion(ctx context.Context, report *domain.Report, team []domain.TeamMembership) error {
	completedAt := time.Now().UTC()
	if report.CompletedAt != nil {
		completedAt = *report.CompletedAt
	}
	window := domain.MonthWindowAt(completedAt)
	points := domain.CompletionPoints(report.BreakdownType, report.SafetyRequired)

	for _, member := range team {
		if !member.IsActive {
			continue
		}
		// Only safety-flagged work counts as handled high severity; an
		// electrical report without the flag raises points but not this.
		if err := s.stats.IncrementCompleted(ctx, member.TechnicianID, report.Sector, window, report.SafetyRequired, points); err != nil {
			return util.MapError(err)
		}
	}
	return nil
}

// GenerateMonthlyStats backfills ledger rows for a month from report history.
// Safe to run repeatedly; existing rows are left alone.
func (s *StatsService) GenerateMonthlyStats(ctx context.Context, window domain.MonthWindow) (int64, error) {
	created, err := s.stats.GenerateMonthly(ctx, window)
	if err != nil {
		return 0, util.MapError(err)
	}
	if created > 0 {
		s.logger.Info("monthly stats generated",
			zap.Time("window_start", window.Start),
			zap.Int64("rows", created))
	}
	return created, nil
}

// Leaderboard ranks technicians by points for a month, cached briefly since
// the ranking is read far more often than it changes.
func (s *StatsService) Leaderboard(ctx context.Context, window domain.MonthWindow, sector *string, limit int) ([]domain.TechnicianStats, error) {
	key := leaderboardCacheKey(window, sector, limit)

	var cached []domain.TechnicianStats
	if found, err := s.cache.Get(ctx, key, &cached); err == nil && found {
		return cached, nil
	}

	result, err := s.stats.Leaderboard(ctx, window, sector, limit)
	if err != nil {
		return nil, util.MapError(err)
	}
	if err := s.cache.Set(ctx, key, result, leaderboardCacheTTL); err != nil {
		s.logger.Warn("leaderboard cache write failed", zap.Error(err))
	}
	return result, nil
}

// TechnicianWindow returns one technician's ledger row for a month, or a
// zeroed view when no accrual happened yet.
func (s *StatsService) TechnicianWindow(ctx context.Context, technicianID, sector string, window domain.MonthWindow) (*domain.TechnicianStats, error) {
	stats, err := s.stats.GetWindow(ctx, technicianID, sector, window)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.TechnicianStats{
				TechnicianID: technicianID,
				Sector:       sector,
				WindowStart:  window.Start,
				WindowEnd:    window.End,
			}, nil
		}
		return nil, util.MapError(err)
	}
	return stats, nil
}

// TechnicianHistory lists a technician's recent month rows, newest first.
func (s *StatsService) TechnicianHistory(ctx context.Context, technicianID string, limit int) ([]domain.TechnicianStats, error) {
	result, err := s.stats.ListByTechnician(ctx, technicianID, limit)
	if err != nil {
		return nil, util.MapError(err)
	}
	return result, nil
}

// Aggregated sums a technician's accrual across all months.
func (s *StatsService) Aggregated(ctx context.Context, technicianID string) (*domain.AggregatedStats, error) {
	agg, err := s.stats.Aggregated(ctx, technicianID)
	if err != nil {
		return nil, util.MapError(err)
	}
	return agg, nil
}

// SectorPerformance aggregates the ledger per sector for one month.
func (s *StatsService) SectorPerformance(ctx context.Context, window domain.MonthWindow) ([]domain.SectorPerformance, error) {
	result, err := s.stats.SectorPerformance(ctx, window)
	if err != nil {
		return nil, util.MapError(err)
	}
	return result, nil
}

func leaderboardCacheKey(window domain.MonthWindow, sector *string, limit int) string {
	sectorPart := "all"
	if sector != nil {
		sectorPart = *sector
	}
	return fmt.Sprintf("maintenance_service:leaderboard:%s:%s:%d",
		window.Start.Format("2006-01"), sectorPart, limit)
}
