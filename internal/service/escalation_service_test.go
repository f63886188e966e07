package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/events"
)

func TestSweepEscalatesOverdueOnce(t *testing.T) {
	env := newTestEnv()
	var mu sync.Mutex
	escalatedEvents := 0
	env.dispatcher.Subscribe(events.EventReportEscalated, func(ctx context.Context, e events.Event) error {
		mu.Lock()
		escalatedEvents++
		mu.Unlock()
		return nil
	})

	overdue := env.store.addReport(domain.Report{
		BreakdownType: domain.BreakdownMechanical,
		Sector:        "s1",
		SLADeadline:   time.Now().Add(-time.Hour),
	})
	fresh := env.store.addReport(domain.Report{
		BreakdownType: domain.BreakdownMechanical,
		Sector:        "s1",
		SLADeadline:   time.Now().Add(8 * time.Hour),
	})

	count, err := env.escalations.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := env.reports.GetByID(context.Background(), overdue.ID)
	require.NoError(t, err)
	assert.True(t, got.Escalated)

	untouched, err := env.reports.GetByID(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.False(t, untouched.Escalated)

	// Re-running the sweep is a no-op and emits nothing new.
	count, err = env.escalations.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	mu.Lock()
	assert.Equal(t, 1, escalatedEvents)
	mu.Unlock()
}

func TestSweepIgnoresClosedReports(t *testing.T) {
	env := newTestEnv()
	now := time.Now()
	completedAt := now.Add(-30 * time.Minute)
	env.store.addReport(domain.Report{
		BreakdownType: domain.BreakdownMechanical,
		Sector:        "s1",
		Status:        domain.ReportStatusCompleted,
		SLADeadline:   now.Add(-time.Hour),
		CompletedAt:   &completedAt,
	})

	count, err := env.escalations.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSweepEscalatesWorkingReports(t *testing.T) {
	env := newTestEnv()
	tech := env.technician("t1")
	env.store.addReport(domain.Report{
		BreakdownType: domain.BreakdownMechanical,
		Sector:        "s1",
		Status:        domain.ReportStatusWorking,
		AssignedTo:    &tech.ID,
		SLADeadline:   time.Now().Add(-time.Minute),
	})

	count, err := env.escalations.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
