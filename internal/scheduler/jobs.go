package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/config"
	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/persistence"
	"github.com/spec-kit/maintenance-service/internal/repository"
	"github.com/spec-kit/maintenance-service/internal/service"
)

// Job names, used for registration and manual triggering.
const (
	JobEscalationSweep = "sla-escalation"
	JobMonthlyStats    = "monthly-stats"
	JobTempFileCleanup = "cleanup-temp-files"
	JobArchiveReports  = "archive-reports"
	JobDailySummary    = "daily-summary"
	JobLowStockCheck   = "low-stock-check"
	JobHealthCheck     = "health-check"
)

// JobDependencies bundles everything the standard job set needs.
type JobDependencies struct {
	Escalations *service.EscalationService
	Stats       *service.StatsService
	Reports     *service.ReportService
	ReportRepo  repository.ReportRepository
	PartRepo    repository.PartRepository
	Dispatcher  events.Dispatcher
	Postgres    *persistence.Postgres
	Redis       *persistence.Redis
	JobsCfg     config.JobsConfig
	ArchiveCfg  config.ArchiveConfig
	Logger      *zap.Logger
}

// RegisterJobs wires the standard job set into the orchestrator.
func RegisterJobs(o *Orchestrator, deps JobDependencies) {
	o.Register(Job{
		Name:     JobEscalationSweep,
		Interval: deps.JobsCfg.EscalationSweep,
		Run: func(ctx context.Context) error {
			_, err := deps.Escalations.RunSweep(ctx)
			return err
		},
	})

	o.Register(Job{
		Name:     JobMonthlyStats,
		Interval: deps.JobsCfg.MonthlyStats,
		Run: func(ctx context.Context) error {
			// Backfill the previous month; generation is idempotent so
			// running daily just settles stragglers.
			window := domain.MonthWindowAt(time.Now().UTC().AddDate(0, -1, 0))
			_, err := deps.Stats.GenerateMonthlyStats(ctx, window)
			return err
		},
	})

	o.Register(Job{
		Name:     JobTempFileCleanup,
		Interval: deps.JobsCfg.TempFileCleanup,
		Run: func(ctx context.Context) error {
			return cleanupTempFiles(deps.JobsCfg.TempDir, deps.JobsCfg.TempFileMaxAge, deps.Logger)
		},
	})

	o.Register(Job{
		Name:     JobArchiveReports,
		Interval: deps.JobsCfg.ArchiveReports,
		Run: func(ctx context.Context) error {
			_, err := deps.Reports.Archive(ctx, deps.ArchiveCfg.DaysOld)
			return err
		},
	})

	o.Register(Job{
		Name:     JobDailySummary,
		Interval: deps.JobsCfg.DailySummary,
		Run: func(ctx context.Context) error {
			return runDailySummary(ctx, deps)
		},
	})

	o.Register(Job{
		Name:     JobLowStockCheck,
		Interval: deps.JobsCfg.LowStockCheck,
		Run: func(ctx context.Context) error {
			return runLowStockCheck(ctx, deps)
		},
	})

	o.Register(Job{
		Name:     JobHealthCheck,
		Interval: deps.JobsCfg.HealthCheck,
		Run: func(ctx context.Context) error {
			return runHealthCheck(ctx, deps)
		},
	})
}

func cleanupTempFiles(dir string, maxAge time.Duration, logger *zap.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			logger.Warn("temp file removal failed",
				zap.String("file", entry.Name()),
				zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("temp files cleaned", zap.Int("removed", removed))
	}
	return nil
}

func runDailySummary(ctx context.Context, deps JobDependencies) error {
	// Summarize yesterday, the last complete day.
	day := time.Now().UTC().AddDate(0, 0, -1)
	counts, err := deps.ReportRepo.DailyCounts(ctx, day)
	if err != nil {
		return err
	}

	return deps.Dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventDailySummary,
		Actor:     events.Actor{System: true},
		Timestamp: time.Now().UTC(),
		Payload: events.DailySummaryPayload{
			Date:             time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
			TotalReports:     counts.TotalReports,
			CompletedReports: counts.CompletedReports,
			EscalatedReports: counts.EscalatedReports,
			SafetyReports:    counts.SafetyReports,
		},
	})
}

func runLowStockCheck(ctx context.Context, deps JobDependencies) error {
	parts, err := deps.PartRepo.ListLowStock(ctx)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return nil
	}

	payload := events.LowStockAlertPayload{PartsCount: len(parts)}
	for _, part := range parts {
		payload.Parts = append(payload.Parts, events.LowStockPart{
			ID:       part.ID,
			PartName: part.PartName,
			Stock:    part.StockQuantity,
		})
	}

	return deps.Dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventLowStockAlert,
		Actor:     events.Actor{System: true},
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

func runHealthCheck(ctx context.Context, deps JobDependencies) error {
	pgStatus := "ok"
	redisStatus := "ok"
	degraded := false

	if err := deps.Postgres.Ping(ctx); err != nil {
		pgStatus = err.Error()
		degraded = true
	}
	if err := deps.Redis.Ping(ctx); err != nil {
		redisStatus = err.Error()
		degraded = true
	}
	if !degraded {
		return nil
	}

	if err := deps.Dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventHealthAlert,
		Actor:     events.Actor{System: true},
		Timestamp: time.Now().UTC(),
		Payload: events.HealthAlertPayload{
			Postgres: pgStatus,
			Redis:    redisStatus,
		},
	}); err != nil {
		return err
	}
	return fmt.Errorf("dependencies degraded: postgres=%s redis=%s", pgStatus, redisStatus)
}
