package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/pkg/util"
)

func TestCreateReportStampsSLADeadline(t *testing.T) {
	env := newTestEnv()
	worker := env.store.addUser(domain.User{Username: "w1", EmployeeID: "w1", Role: domain.RoleWorker})

	grid := "A-7"
	before := time.Now().UTC()
	report, err := env.reports.Create(context.Background(), worker.ID, ReportCreateInput{
		BreakdownType:  domain.BreakdownMechanical,
		Description:    "conveyor jammed",
		LocationMethod: domain.LocationByGrid,
		Sector:         "s1",
		GridLocation:   &grid,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ReportStatusNoticed, report.Status)
	assert.False(t, report.Escalated)
	expected := before.Add(8 * time.Hour)
	assert.WithinDuration(t, expected, report.SLADeadline, 5*time.Second)
}

func TestCreateReportResolvesSectorFromMachine(t *testing.T) {
	env := newTestEnv()
	worker := env.store.addUser(domain.User{Username: "w1", EmployeeID: "w1", Role: domain.RoleWorker})
	machine := env.store.addMachine(domain.Machine{MachineLabel: "press-4", QRCodeValue: "qr-4", Sector: "s3"})

	report, err := env.reports.Create(context.Background(), worker.ID, ReportCreateInput{
		BreakdownType:  domain.BreakdownOther,
		Description:    "press leaking oil",
		LocationMethod: domain.LocationByMachine,
		Sector:         "ignored",
		MachineID:      &machine.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "s3", report.Sector)
}

func TestCreateReportValidation(t *testing.T) {
	env := newTestEnv()
	worker := env.store.addUser(domain.User{Username: "w1", EmployeeID: "w1", Role: domain.RoleWorker})
	ctx := context.Background()

	_, err := env.reports.Create(ctx, worker.ID, ReportCreateInput{
		BreakdownType:  "plumbing",
		Description:    "x",
		LocationMethod: domain.LocationByGrid,
		Sector:         "s1",
	})
	assert.True(t, util.IsCode(err, "VALIDATION_FAILED"))

	// Grid location without a sector.
	grid := "B-2"
	_, err = env.reports.Create(ctx, worker.ID, ReportCreateInput{
		BreakdownType:  domain.BreakdownOther,
		Description:    "leak",
		LocationMethod: domain.LocationByGrid,
		GridLocation:   &grid,
	})
	assert.True(t, util.IsCode(err, "VALIDATION_FAILED"))

	// Unknown machine.
	missing := "00000000-0000-0000-0000-000000000000"
	_, err = env.reports.Create(ctx, worker.ID, ReportCreateInput{
		BreakdownType:  domain.BreakdownOther,
		Description:    "leak",
		LocationMethod: domain.LocationByMachine,
		MachineID:      &missing,
	})
	assert.True(t, util.IsCode(err, "NOT_FOUND"))
}

func TestCreateHighSeverityAutoAssignsLeader(t *testing.T) {
	env := newTestEnv()
	worker := env.store.addUser(domain.User{Username: "w1", EmployeeID: "w1", Role: domain.RoleWorker})
	lead := env.leader("l1")

	grid := "C-1"
	report, err := env.reports.Create(context.Background(), worker.ID, ReportCreateInput{
		BreakdownType:  domain.BreakdownOther,
		Description:    "sparks near panel",
		SafetyRequired: true,
		LocationMethod: domain.LocationByGrid,
		Sector:         "s1",
		GridLocation:   &grid,
	})
	require.NoError(t, err)

	team, err := env.assignments.Team(context.Background(), report.ID)
	require.NoError(t, err)
	require.Len(t, team, 1)
	assert.Equal(t, lead.ID, team[0].TechnicianID)
	assert.Equal(t, domain.TeamRoleLeader, team[0].Role)
}

func TestClaimRaceHasExactlyOneWinner(t *testing.T) {
	env := newTestEnv()
	report := env.store.addReport(domain.Report{
		BreakdownType: domain.BreakdownMechanical,
		Sector:        "s1",
		SLADeadline:   time.Now().Add(8 * time.Hour),
	})

	const contenders = 8
	techs := make([]*domain.User, contenders)
	for i := range techs {
		techs[i] = env.technician(fmt.Sprintf("t%d", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.reports.Claim(context.Background(), report.ID, techs[i].ID)
		}(i)
	}
	wg.Wait()

	winners, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case util.IsCode(err, "CONFLICT"):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, contenders-1, conflicts)

	got, err := env.reports.GetByID(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusWorking, got.Status)
	require.NotNil(t, got.AssignedTo)
}

func TestClaimRejectsOverloadedTechnician(t *testing.T) {
	env := newTestEnv()
	tech := env.technician("t1")

	// Fill all five workload slots with open reports.
	for i := 0; i < domain.MaxTotalAssignments; i++ {
		r := env.store.addReport(domain.Report{
			BreakdownType: domain.BreakdownElectrical,
			Sector:        "s1",
			SLADeadline:   time.Now().Add(4 * time.Hour),
		})
		lead := env.leader(fmt.Sprintf("l%d", i))
		_, err := env.assignments.AddToTeam(context.Background(), r.ID, lead.ID, domain.TeamRoleLeader, actorFor(lead))
		require.NoError(t, err)
		_, err = env.assignments.AddToTeam(context.Background(), r.ID, tech.ID, domain.TeamRoleSupport, actorFor(tech))
		require.NoError(t, err)
	}

	target := env.store.addReport(domain.Report{
		BreakdownType: domain.BreakdownMechanical,
		Sector:        "s1",
		SLADeadline:   time.Now().Add(8 * time.Hour),
	})
	_, err := env.reports.Claim(context.Background(), target.ID, tech.ID)
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "CAPACITY_EXCEEDED"))
}

func TestCompleteCreditsWholeTeam(t *testing.T) {
	env := newTestEnv()
	lead := env.leader("l1")
	tech := env.technician("t1")
	report := env.store.addReport(domain.Report{
		BreakdownType:  domain.BreakdownElectrical,
		SafetyRequired: true,
		Sector:         "s2",
		Status:         domain.ReportStatusWorking,
		SLADeadline:    time.Now().Add(time.Hour),
	})

	_, err := env.assignments.AddToTeam(context.Background(), report.ID, lead.ID, domain.TeamRoleLeader, actorFor(lead))
	require.NoError(t, err)
	_, err = env.assignments.AddToTeam(context.Background(), report.ID, tech.ID, domain.TeamRoleMain, actorFor(tech))
	require.NoError(t, err)

	completed, err := env.reports.Complete(context.Background(), report.ID, events.Actor{UserID: &tech.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	window := domain.MonthWindowAt(*completed.CompletedAt)
	for _, id := range []string{lead.ID, tech.ID} {
		row, err := env.statsRepo.GetWindow(context.Background(), id, "s2", window)
		require.NoError(t, err)
		// Base 10, +20 safety, +15 electrical.
		assert.Equal(t, 45, row.Points)
		assert.Equal(t, 1, row.TotalCompleted)
		assert.Equal(t, 1, row.HighSeverityHandled)
	}
}

func TestCompleteElectricalWithoutSafetyIsNotHighSeverity(t *testing.T) {
	env := newTestEnv()
	lead := env.leader("l1")
	report := env.store.addReport(domain.Report{
		BreakdownType: domain.BreakdownElectrical,
		Sector:        "s1",
		Status:        domain.ReportStatusWorking,
		SLADeadline:   time.Now().Add(4 * time.Hour),
	})

	_, err := env.assignments.AddToTeam(context.Background(), report.ID, lead.ID, domain.TeamRoleLeader, actorFor(lead))
	require.NoError(t, err)

	completed, err := env.reports.Complete(context.Background(), report.ID, events.Actor{UserID: &lead.ID})
	require.NoError(t, err)

	window := domain.MonthWindowAt(*completed.CompletedAt)
	row, err := env.statsRepo.GetWindow(context.Background(), lead.ID, "s1", window)
	require.NoError(t, err)
	// Electrical work raises points (10+15) but only the safety flag counts
	// toward high_severity_handled.
	assert.Equal(t, 25, row.Points)
	assert.Equal(t, 0, row.HighSeverityHandled)
	assert.Equal(t, 1, row.TotalCompleted)
}

func TestCompleteRequiresWorkingState(t *testing.T) {
	env := newTestEnv()
	report := env.store.addReport(domain.Report{
		BreakdownType: domain.BreakdownMechanical,
		Sector:        "s1",
		SLADeadline:   time.Now().Add(8 * time.Hour),
	})

	_, err := env.reports.Complete(context.Background(), report.ID, events.Actor{System: true})
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "CONFLICT"))

	// Completing twice conflicts the second time.
	env.store.mu.Lock()
	env.store.reports[report.ID].Status = domain.ReportStatusWorking
	env.store.mu.Unlock()

	_, err = env.reports.Complete(context.Background(), report.ID, events.Actor{System: true})
	require.NoError(t, err)
	_, err = env.reports.Complete(context.Background(), report.ID, events.Actor{System: true})
	assert.True(t, util.IsCode(err, "CONFLICT"))
}
