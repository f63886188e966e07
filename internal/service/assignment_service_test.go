package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/persistence"
	"github.com/spec-kit/maintenance-service/pkg/util"
)

type testEnv struct {
	store       *memStore
	memberRepo  *fakeMemberRepo
	statsRepo   *fakeStatsRepo
	dispatcher  events.Dispatcher
	assignments *AssignmentService
	reports     *ReportService
	stats       *StatsService
	escalations *EscalationService
}

func newTestEnv() *testEnv {
	store := newMemStore()
	reportRepo := &fakeReportRepo{store: store}
	memberRepo := &fakeMemberRepo{store: store}
	userRepo := &fakeUserRepo{store: store}
	machineRepo := &fakeMachineRepo{store: store}
	statsRepo := &fakeStatsRepo{store: store}
	dispatcher := events.NewInMemoryDispatcher()
	logger := zap.NewNop()

	assignments := NewAssignmentService(AssignmentDependencies{
		ReportRepo:     reportRepo,
		MemberRepo:     memberRepo,
		UserRepo:       userRepo,
		StatsRepo:      statsRepo,
		Dispatcher:     dispatcher,
		StrictCapacity: true,
	})
	stats := NewStatsService(StatsDependencies{
		StatsRepo: statsRepo,
		Cache:     persistence.NewCache(nil),
		Logger:    logger,
	})
	reports := NewReportService(ReportDependencies{
		ReportRepo:  reportRepo,
		MachineRepo: machineRepo,
		UserRepo:    userRepo,
		Assignments: assignments,
		Stats:       stats,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	escalations := NewEscalationService(EscalationDependencies{
		ReportRepo: reportRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	return &testEnv{
		store:       store,
		memberRepo:  memberRepo,
		statsRepo:   statsRepo,
		dispatcher:  dispatcher,
		assignments: assignments,
		reports:     reports,
		stats:       stats,
		escalations: escalations,
	}
}

func (e *testEnv) technician(name string) *domain.User {
	return e.store.addUser(domain.User{Username: name, EmployeeID: name, Role: domain.RoleTechnician})
}

func (e *testEnv) leader(name string) *domain.User {
	return e.store.addUser(domain.User{Username: name, EmployeeID: name, Role: domain.RoleTechnicianLeader})
}

func actorFor(u *domain.User) events.Actor {
	return events.Actor{UserID: &u.ID}
}

func TestAddToTeamRejectsDuplicate(t *testing.T) {
	env := newTestEnv()
	tech := env.technician("t1")
	report := env.store.addReport(domain.Report{BreakdownType: domain.BreakdownMechanical, Sector: "s1"})

	_, err := env.assignments.AddToTeam(context.Background(), report.ID, tech.ID, domain.TeamRoleSupport, actorFor(tech))
	require.NoError(t, err)

	_, err = env.assignments.AddToTeam(context.Background(), report.ID, tech.ID, domain.TeamRoleSupport, actorFor(tech))
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "CONFLICT"))
}

func TestHighSeverityTeamNeedsLeaderFirst(t *testing.T) {
	env := newTestEnv()
	tech := env.technician("t1")
	lead := env.leader("l1")
	report := env.store.addReport(domain.Report{BreakdownType: domain.BreakdownMechanical, SafetyRequired: true, Sector: "s1"})

	_, err := env.assignments.AddToTeam(context.Background(), report.ID, tech.ID, domain.TeamRoleSupport, actorFor(tech))
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "CAPACITY_EXCEEDED"))

	_, err = env.assignments.AddToTeam(context.Background(), report.ID, lead.ID, domain.TeamRoleLeader, actorFor(lead))
	require.NoError(t, err)

	_, err = env.assignments.AddToTeam(context.Background(), report.ID, tech.ID, domain.TeamRoleSupport, actorFor(tech))
	require.NoError(t, err)
}

func TestLeaderRoleRequiresLeaderCapableUser(t *testing.T) {
	env := newTestEnv()
	tech := env.technician("t1")
	report := env.store.addReport(domain.Report{BreakdownType: domain.BreakdownMechanical, SafetyRequired: true, Sector: "s1"})

	_, err := env.assignments.AddToTeam(context.Background(), report.ID, tech.ID, domain.TeamRoleLeader, actorFor(tech))
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "FORBIDDEN"))
}

func TestRegularTeamCapsAtTwo(t *testing.T) {
	env := newTestEnv()
	report := env.store.addReport(domain.Report{BreakdownType: domain.BreakdownMechanical, Sector: "s1"})

	for i := 0; i < 2; i++ {
		tech := env.technician(string(rune('a' + i)))
		_, err := env.assignments.AddToTeam(context.Background(), report.ID, tech.ID, domain.TeamRoleSupport, actorFor(tech))
		require.NoError(t, err)
	}

	third := env.technician("c")
	_, err := env.assignments.AddToTeam(context.Background(), report.ID, third.ID, domain.TeamRoleSupport, actorFor(third))
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "CAPACITY_EXCEEDED"))
}

func TestHighSeverityTeamCapsAtFive(t *testing.T) {
	env := newTestEnv()
	report := env.store.addReport(domain.Report{BreakdownType: domain.BreakdownElectrical, Sector: "s1"})

	lead := env.leader("l1")
	_, err := env.assignments.AddToTeam(context.Background(), report.ID, lead.ID, domain.TeamRoleLeader, actorFor(lead))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		tech := env.technician(string(rune('a' + i)))
		_, err := env.assignments.AddToTeam(context.Background(), report.ID, tech.ID, domain.TeamRoleSupport, actorFor(tech))
		require.NoError(t, err)
	}

	sixth := env.technician("f")
	_, err = env.assignments.AddToTeam(context.Background(), report.ID, sixth.ID, domain.TeamRoleSupport, actorFor(sixth))
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "CAPACITY_EXCEEDED"))
}

func TestAddToTeamCreditsAssignment(t *testing.T) {
	env := newTestEnv()
	tech := env.technician("t1")
	report := env.store.addReport(domain.Report{BreakdownType: domain.BreakdownMechanical, Sector: "s7"})

	_, err := env.assignments.AddToTeam(context.Background(), report.ID, tech.ID, domain.TeamRoleMain, actorFor(tech))
	require.NoError(t, err)

	row, err := env.statsRepo.GetWindow(context.Background(), tech.ID, "s7", domain.MonthWindowAt(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, 1, row.TotalAssigned)
	assert.Equal(t, 0, row.TotalCompleted)
}

func TestRemoveFromTeamKeepsHistory(t *testing.T) {
	env := newTestEnv()
	tech := env.technician("t1")
	report := env.store.addReport(domain.Report{BreakdownType: domain.BreakdownMechanical, Sector: "s1"})

	_, err := env.assignments.AddToTeam(context.Background(), report.ID, tech.ID, domain.TeamRoleSupport, actorFor(tech))
	require.NoError(t, err)

	removed, err := env.assignments.RemoveFromTeam(context.Background(), report.ID, tech.ID, actorFor(tech))
	require.NoError(t, err)
	assert.False(t, removed.IsActive)
	assert.NotNil(t, removed.LeftAt)

	active, err := env.assignments.Team(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	history, err := env.assignments.TeamHistory(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// Rejoining opens a fresh membership.
	_, err = env.assignments.AddToTeam(context.Background(), report.ID, tech.ID, domain.TeamRoleSupport, actorFor(tech))
	require.NoError(t, err)
}

func TestAutoAssignTeamLeaderPicksLeastLoaded(t *testing.T) {
	env := newTestEnv()
	busy := env.leader("busy")
	idle := env.leader("idle")

	other := env.store.addReport(domain.Report{BreakdownType: domain.BreakdownElectrical, Sector: "s1"})
	_, err := env.assignments.AddToTeam(context.Background(), other.ID, busy.ID, domain.TeamRoleLeader, actorFor(busy))
	require.NoError(t, err)

	report := env.store.addReport(domain.Report{BreakdownType: domain.BreakdownElectrical, Sector: "s1"})
	membership, err := env.assignments.AutoAssignTeamLeader(context.Background(), report.ID)
	require.NoError(t, err)
	require.NotNil(t, membership)
	assert.Equal(t, idle.ID, membership.TechnicianID)
	assert.Equal(t, domain.TeamRoleLeader, membership.Role)
}

func TestAutoAssignTeamLeaderNoCapacity(t *testing.T) {
	env := newTestEnv()
	report := env.store.addReport(domain.Report{BreakdownType: domain.BreakdownElectrical, Sector: "s1"})

	membership, err := env.assignments.AutoAssignTeamLeader(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Nil(t, membership)
}
