package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/repository"
)

// memStore backs the fake repositories with one shared mutex, mirroring the
// atomicity the SQL statements provide.
type memStore struct {
	mu          sync.Mutex
	reports     map[string]*domain.Report
	memberships []*domain.TeamMembership
	users       map[string]*domain.User
	machines    map[string]*domain.Machine
	stats       map[statsKey]*domain.TechnicianStats
}

type statsKey struct {
	technicianID string
	sector       string
	windowStart  time.Time
}

func newMemStore() *memStore {
	return &memStore{
		reports:  make(map[string]*domain.Report),
		users:    make(map[string]*domain.User),
		machines: make(map[string]*domain.Machine),
		stats:    make(map[statsKey]*domain.TechnicianStats),
	}
}

func (s *memStore) addUser(u domain.User) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Active = true
	s.users[u.ID] = &u
	return &u
}

func (s *memStore) addReport(r domain.Report) *domain.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = domain.ReportStatusNoticed
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.reports[r.ID] = &r
	return &r
}

func (s *memStore) addMachine(m domain.Machine) *domain.Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.IsActive = true
	s.machines[m.ID] = &m
	return &m
}

func cloneReport(r *domain.Report) *domain.Report {
	c := *r
	return &c
}

// openStatus reports whether a report still counts toward workload.
func openStatus(status domain.ReportStatus) bool {
	return status == domain.ReportStatusNoticed || status == domain.ReportStatusWorking
}

// ---- ReportRepository ----

type fakeReportRepo struct{ store *memStore }

func (f *fakeReportRepo) Create(ctx context.Context, report *domain.Report) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	report.CreatedAt = time.Now().UTC()
	c := *report
	f.store.reports[report.ID] = &c
	return nil
}

func (f *fakeReportRepo) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	r, ok := f.store.reports[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneReport(r), nil
}

func (f *fakeReportRepo) Assign(ctx context.Context, reportID, technicianID string) (*domain.Report, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	r, ok := f.store.reports[reportID]
	if !ok || r.Status != domain.ReportStatusNoticed || r.AssignedTo != nil {
		return nil, pgx.ErrNoRows
	}
	r.AssignedTo = &technicianID
	r.Status = domain.ReportStatusWorking
	return cloneReport(r), nil
}

func (f *fakeReportRepo) MarkCompleted(ctx context.Context, reportID string) (*domain.Report, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	r, ok := f.store.reports[reportID]
	if !ok || r.Status != domain.ReportStatusWorking {
		return nil, pgx.ErrNoRows
	}
	now := time.Now().UTC()
	r.Status = domain.ReportStatusCompleted
	r.CompletedAt = &now
	return cloneReport(r), nil
}

func (f *fakeReportRepo) MarkEscalated(ctx context.Context, reportID string, now time.Time) (bool, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	r, ok := f.store.reports[reportID]
	if !ok || r.Escalated || !openStatus(r.Status) || !r.SLADeadline.Before(now) {
		return false, nil
	}
	r.Escalated = true
	return true, nil
}

func (f *fakeReportRepo) ListOverdue(ctx context.Context, now time.Time) ([]domain.Report, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var result []domain.Report
	for _, r := range f.store.reports {
		if r.SLADeadline.Before(now) && openStatus(r.Status) && !r.Escalated {
			result = append(result, *cloneReport(r))
		}
	}
	return result, nil
}

func (f *fakeReportRepo) ListDueToday(ctx context.Context, technicianID *string, now time.Time) ([]domain.Report, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)
	var result []domain.Report
	for _, r := range f.store.reports {
		if !openStatus(r.Status) || r.SLADeadline.Before(dayStart) || !r.SLADeadline.Before(dayEnd) {
			continue
		}
		if technicianID != nil && (r.AssignedTo == nil || *r.AssignedTo != *technicianID) {
			continue
		}
		result = append(result, *cloneReport(r))
	}
	return result, nil
}

func (f *fakeReportRepo) ListUnassigned(ctx context.Context, sector *string) ([]domain.Report, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var result []domain.Report
	for _, r := range f.store.reports {
		if r.AssignedTo != nil || r.Status != domain.ReportStatusNoticed {
			continue
		}
		if sector != nil && r.Sector != *sector {
			continue
		}
		result = append(result, *cloneReport(r))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SafetyRequired != result[j].SafetyRequired {
			return result[i].SafetyRequired
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (f *fakeReportRepo) ListByReporter(ctx context.Context, reporterID string, limit, offset int) ([]domain.Report, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var result []domain.Report
	for _, r := range f.store.reports {
		if r.ReporterID == reporterID {
			result = append(result, *cloneReport(r))
		}
	}
	return result, nil
}

func (f *fakeReportRepo) ListByAssignee(ctx context.Context, technicianID string, status *domain.ReportStatus) ([]domain.Report, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var result []domain.Report
	for _, r := range f.store.reports {
		if r.AssignedTo == nil || *r.AssignedTo != technicianID {
			continue
		}
		if status != nil && r.Status != *status {
			continue
		}
		result = append(result, *cloneReport(r))
	}
	return result, nil
}

func (f *fakeReportRepo) ListEscalated(ctx context.Context) ([]domain.Report, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var result []domain.Report
	for _, r := range f.store.reports {
		if r.Escalated && openStatus(r.Status) {
			result = append(result, *cloneReport(r))
		}
	}
	return result, nil
}

func (f *fakeReportRepo) ArchiveOlderThan(ctx context.Context, daysOld int) (int64, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	cutoff := time.Now().UTC().AddDate(0, 0, -daysOld)
	var archived int64
	for _, r := range f.store.reports {
		if r.Status == domain.ReportStatusCompleted && r.CompletedAt != nil && r.CompletedAt.Before(cutoff) {
			r.Status = domain.ReportStatusArchived
			archived++
		}
	}
	return archived, nil
}

func (f *fakeReportRepo) StatsBySector(ctx context.Context, from, to *time.Time) ([]domain.SectorStats, error) {
	return nil, nil
}

func (f *fakeReportRepo) DailyCounts(ctx context.Context, day time.Time) (repository.DailyCounts, error) {
	return repository.DailyCounts{}, nil
}

// ---- TeamMemberRepository ----

type fakeMemberRepo struct{ store *memStore }

func (f *fakeMemberRepo) AddMember(ctx context.Context, reportID, technicianID string, role domain.TeamRole, strict bool) (*domain.TeamMembership, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	report, ok := f.store.reports[reportID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	highSeverity := report.SafetyRequired || report.BreakdownType == domain.BreakdownElectrical

	teamSize, leaderCount := 0, 0
	for _, m := range f.store.memberships {
		if m.ReportID != reportID || !m.IsActive {
			continue
		}
		if m.TechnicianID == technicianID {
			return nil, repository.ErrDuplicateMember
		}
		teamSize++
		if m.Role == domain.TeamRoleLeader {
			leaderCount++
		}
	}
	if highSeverity && leaderCount == 0 && role != domain.TeamRoleLeader {
		return nil, repository.ErrLeaderRequired
	}
	maxSize := domain.MaxTeamSizeDefault
	if highSeverity {
		maxSize = domain.MaxTeamSizeHighSeverity
	}
	if teamSize >= maxSize {
		return nil, repository.ErrTeamFull
	}

	membership := &domain.TeamMembership{
		ID:           uuid.NewString(),
		ReportID:     reportID,
		TechnicianID: technicianID,
		Role:         role,
		IsActive:     true,
		JoinedAt:     time.Now().UTC(),
	}
	f.store.memberships = append(f.store.memberships, membership)
	c := *membership
	return &c, nil
}

func (f *fakeMemberRepo) RemoveMember(ctx context.Context, reportID, technicianID string) (*domain.TeamMembership, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, m := range f.store.memberships {
		if m.ReportID == reportID && m.TechnicianID == technicianID && m.IsActive {
			now := time.Now().UTC()
			m.IsActive = false
			m.LeftAt = &now
			c := *m
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeMemberRepo) ListActiveByReport(ctx context.Context, reportID string) ([]domain.TeamMembership, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var result []domain.TeamMembership
	for _, m := range f.store.memberships {
		if m.ReportID == reportID && m.IsActive {
			result = append(result, *m)
		}
	}
	return result, nil
}

func (f *fakeMemberRepo) ListHistoryByReport(ctx context.Context, reportID string) ([]domain.TeamMembership, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var result []domain.TeamMembership
	for _, m := range f.store.memberships {
		if m.ReportID == reportID {
			result = append(result, *m)
		}
	}
	return result, nil
}

func (f *fakeMemberRepo) Workload(ctx context.Context, technicianID string) (*domain.TechnicianWorkload, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.workloadLocked(technicianID), nil
}

func (f *fakeMemberRepo) workloadLocked(technicianID string) *domain.TechnicianWorkload {
	w := &domain.TechnicianWorkload{TechnicianID: technicianID}
	for _, m := range f.store.memberships {
		if m.TechnicianID != technicianID || !m.IsActive {
			continue
		}
		report, ok := f.store.reports[m.ReportID]
		if !ok || !openStatus(report.Status) {
			continue
		}
		w.TotalAssignments++
		switch m.Role {
		case domain.TeamRoleMain:
			w.MainAssignments++
		case domain.TeamRoleLeader:
			w.LeaderAssignments++
		case domain.TeamRoleSupport:
			w.SupportAssignments++
		}
		if report.SafetyRequired {
			w.HighSeverity++
		}
	}
	return w
}

func (f *fakeMemberRepo) AvailableTechnicians(ctx context.Context, sector *string, highSeverity bool) ([]domain.TechnicianAvailability, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var result []domain.TechnicianAvailability
	for _, u := range f.store.users {
		if !u.Technician() || !u.Active {
			continue
		}
		if sector != nil && (u.Sector == nil || *u.Sector != *sector) {
			continue
		}
		w := f.workloadLocked(u.ID)
		if highSeverity {
			if !w.AvailableForHighSeverity() {
				continue
			}
		} else if !w.AvailableForRegular() {
			continue
		}
		result = append(result, domain.TechnicianAvailability{
			TechnicianID:    u.ID,
			Username:        u.Username,
			EmployeeID:      u.EmployeeID,
			Role:            u.Role,
			TotalWorkload:   w.TotalAssignments,
			MainAssignments: w.MainAssignments,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TotalWorkload < result[j].TotalWorkload
	})
	return result, nil
}

func (f *fakeMemberRepo) LeastLoadedLeader(ctx context.Context) (string, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	bestID := ""
	bestLoad := domain.MaxLeaderAssignments
	for _, u := range f.store.users {
		if u.Role != domain.RoleTechnicianLeader || !u.Active {
			continue
		}
		load := f.workloadLocked(u.ID).LeaderAssignments
		if load < bestLoad {
			bestLoad = load
			bestID = u.ID
		}
	}
	if bestID == "" {
		return "", pgx.ErrNoRows
	}
	return bestID, nil
}

// ---- UserRepository ----

type fakeUserRepo struct{ store *memStore }

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	u, ok := f.store.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *u
	return &c, nil
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, u := range f.store.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) ListByRoles(ctx context.Context, roles ...domain.UserRole) ([]domain.User, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var result []domain.User
	for _, u := range f.store.users {
		for _, role := range roles {
			if u.Role == role {
				result = append(result, *u)
				break
			}
		}
	}
	return result, nil
}

func (f *fakeUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	u, ok := f.store.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PasswordHash = passwordHash
	return nil
}

// ---- MachineRepository ----

type fakeMachineRepo struct{ store *memStore }

func (f *fakeMachineRepo) GetByID(ctx context.Context, id string) (*domain.Machine, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	m, ok := f.store.machines[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *m
	return &c, nil
}

func (f *fakeMachineRepo) GetByQRCode(ctx context.Context, qr string) (*domain.Machine, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, m := range f.store.machines {
		if m.QRCodeValue == qr {
			c := *m
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeMachineRepo) ListBySector(ctx context.Context, sector string) ([]domain.Machine, error) {
	return nil, nil
}

// ---- StatsRepository ----

type fakeStatsRepo struct{ store *memStore }

func (f *fakeStatsRepo) rowLocked(technicianID, sector string, window domain.MonthWindow) *domain.TechnicianStats {
	key := statsKey{technicianID, sector, window.Start}
	row, ok := f.store.stats[key]
	if !ok {
		row = &domain.TechnicianStats{
			ID:           uuid.NewString(),
			TechnicianID: technicianID,
			Sector:       sector,
			WindowStart:  window.Start,
			WindowEnd:    window.End,
			CreatedAt:    time.Now().UTC(),
		}
		f.store.stats[key] = row
	}
	return row
}

func (f *fakeStatsRepo) IncrementAssigned(ctx context.Context, technicianID, sector string, window domain.MonthWindow) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.rowLocked(technicianID, sector, window).TotalAssigned++
	return nil
}

func (f *fakeStatsRepo) IncrementCompleted(ctx context.Context, technicianID, sector string, window domain.MonthWindow, highSeverity bool, points int) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	row := f.rowLocked(technicianID, sector, window)
	row.TotalCompleted++
	if highSeverity {
		row.HighSeverityHandled++
	}
	row.Points += points
	return nil
}

func (f *fakeStatsRepo) GenerateMonthly(ctx context.Context, window domain.MonthWindow) (int64, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	type pair struct{ tech, sector string }
	type tally struct{ total, completed, highSeverity, points int }
	tallies := make(map[pair]*tally)

	for _, m := range f.store.memberships {
		report, ok := f.store.reports[m.ReportID]
		if !ok {
			continue
		}
		joined := window.Contains(m.JoinedAt)
		completed := m.IsActive && report.CompletedAt != nil && window.Contains(*report.CompletedAt)
		if !joined && !completed {
			continue
		}
		key := pair{m.TechnicianID, report.Sector}
		t, ok := tallies[key]
		if !ok {
			t = &tally{}
			tallies[key] = t
		}
		if joined {
			t.total++
		}
		if completed {
			t.completed++
			t.points += 10
			if report.SafetyRequired {
				t.highSeverity++
				t.points += 20
			}
		}
	}

	var created int64
	for key, t := range tallies {
		sk := statsKey{key.tech, key.sector, window.Start}
		if _, exists := f.store.stats[sk]; exists {
			continue
		}
		f.store.stats[sk] = &domain.TechnicianStats{
			ID:                  uuid.NewString(),
			TechnicianID:        key.tech,
			Sector:              key.sector,
			TotalAssigned:       t.total,
			TotalCompleted:      t.completed,
			HighSeverityHandled: t.highSeverity,
			Points:              t.points,
			WindowStart:         window.Start,
			WindowEnd:           window.End,
			CreatedAt:           time.Now().UTC(),
		}
		created++
	}
	return created, nil
}

func (f *fakeStatsRepo) GetWindow(ctx context.Context, technicianID, sector string, window domain.MonthWindow) (*domain.TechnicianStats, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	row, ok := f.store.stats[statsKey{technicianID, sector, window.Start}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *row
	return &c, nil
}

func (f *fakeStatsRepo) ListByTechnician(ctx context.Context, technicianID string, limit int) ([]domain.TechnicianStats, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var result []domain.TechnicianStats
	for _, row := range f.store.stats {
		if row.TechnicianID == technicianID {
			result = append(result, *row)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].WindowStart.After(result[j].WindowStart)
	})
	return result, nil
}

func (f *fakeStatsRepo) Leaderboard(ctx context.Context, window domain.MonthWindow, sector *string, limit int) ([]domain.TechnicianStats, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var result []domain.TechnicianStats
	for _, row := range f.store.stats {
		if !row.WindowStart.Equal(window.Start) {
			continue
		}
		if sector != nil && row.Sector != *sector {
			continue
		}
		result = append(result, *row)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Points > result[j].Points
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakeStatsRepo) Aggregated(ctx context.Context, technicianID string) (*domain.AggregatedStats, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	agg := &domain.AggregatedStats{}
	months := make(map[time.Time]struct{})
	for _, row := range f.store.stats {
		if row.TechnicianID != technicianID {
			continue
		}
		agg.TotalAssigned += row.TotalAssigned
		agg.TotalCompleted += row.TotalCompleted
		agg.HighSeverityHandled += row.HighSeverityHandled
		agg.TotalPoints += row.Points
		months[row.WindowStart] = struct{}{}
	}
	agg.MonthsActive = len(months)
	if agg.TotalAssigned > 0 {
		agg.CompletionRate = float64(agg.TotalCompleted) / float64(agg.TotalAssigned)
	}
	return agg, nil
}

func (f *fakeStatsRepo) SectorPerformance(ctx context.Context, window domain.MonthWindow) ([]domain.SectorPerformance, error) {
	return nil, nil
}
