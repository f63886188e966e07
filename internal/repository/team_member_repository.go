package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// Sentinel errors surfaced by AddMember so the service layer can map them
// to the Conflict/Capacity taxonomy.
var (
	ErrDuplicateMember = errors.New("technician already on the report team")
	ErrLeaderRequired  = errors.New("a team leader must be onboarded first")
	ErrTeamFull        = errors.New("team size limit reached")
)

const membershipColumns = `id, report_id, technician_id, role, is_active, joined_at, left_at`

// TeamMemberRepository manages report team memberships. AddMember enforces
// the duplicate, leader-gate and capacity rules; under strict mode the whole
// predicate evaluates inside one transaction holding the report row lock, so
// concurrent joins serialize and the limits hold exactly.
type TeamMemberRepository interface {
	AddMember(ctx context.Context, reportID, technicianID string, role domain.TeamRole, strict bool) (*domain.TeamMembership, error)
	RemoveMember(ctx context.Context, reportID, technicianID string) (*domain.TeamMembership, error)
	ListActiveByReport(ctx context.Context, reportID string) ([]domain.TeamMembership, error)
	ListHistoryByReport(ctx context.Context, reportID string) ([]domain.TeamMembership, error)
	Workload(ctx context.Context, technicianID string) (*domain.TechnicianWorkload, error)
	AvailableTechnicians(ctx context.Context, sector *string, highSeverity bool) ([]domain.TechnicianAvailability, error)
	// LeastLoadedLeader picks the leader-capable technician with the fewest
	// active leader memberships, strictly under the leader cap. Returns
	// pgx.ErrNoRows when nobody has capacity.
	LeastLoadedLeader(ctx context.Context) (string, error)
}

type teamMemberRepository struct {
	pool *pgxpool.Pool
}

// NewTeamMemberRepository constructs repository.
func NewTeamMemberRepository(pool *pgxpool.Pool) TeamMemberRepository {
	return &teamMemberRepository{pool: pool}
}

func (r *teamMemberRepository) AddMember(ctx context.Context, reportID, technicianID string, role domain.TeamRole, strict bool) (*domain.TeamMembership, error) {
	if !strict {
		if err := r.checkTeamLimits(ctx, r.pool, reportID, technicianID, role); err != nil {
			return nil, err
		}
		return r.insertMember(ctx, r.pool, reportID, technicianID, role)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Lock the report row so concurrent joins on the same report serialize
	// behind this transaction.
	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT TRUE FROM reports WHERE id=$1 FOR UPDATE`, reportID,
	).Scan(&exists); err != nil {
		return nil, err
	}

	if err := r.checkTeamLimits(ctx, tx, reportID, technicianID, role); err != nil {
		return nil, err
	}

	membership, err := r.insertMember(ctx, tx, reportID, technicianID, role)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return membership, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *teamMemberRepository) checkTeamLimits(ctx context.Context, q querier, reportID, technicianID string, role domain.TeamRole) error {
	var safetyRequired bool
	var breakdownType domain.BreakdownType
	if err := q.QueryRow(ctx,
		`SELECT safety_required, breakdown_type FROM reports WHERE id=$1`, reportID,
	).Scan(&safetyRequired, &breakdownType); err != nil {
		return err
	}
	highSeverity := safetyRequired || breakdownType == domain.BreakdownElectrical

	var teamSize, leaderCount, duplicateCount int
	if err := q.QueryRow(ctx, `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE role='leader'),
               COUNT(*) FILTER (WHERE technician_id=$2)
        FROM report_technicians
        WHERE report_id=$1 AND is_active=TRUE`,
		reportID, technicianID,
	).Scan(&teamSize, &leaderCount, &duplicateCount); err != nil {
		return err
	}

	if duplicateCount > 0 {
		return ErrDuplicateMember
	}
	if highSeverity && leaderCount == 0 && role != domain.TeamRoleLeader {
		return ErrLeaderRequired
	}
	maxTeamSize := domain.MaxTeamSizeDefault
	if highSeverity {
		maxTeamSize = domain.MaxTeamSizeHighSeverity
	}
	if teamSize >= maxTeamSize {
		return ErrTeamFull
	}
	return nil
}

func (r *teamMemberRepository) insertMember(ctx context.Context, q querier, reportID, technicianID string, role domain.TeamRole) (*domain.TeamMembership, error) {
	const query = `
        INSERT INTO report_technicians (report_id, technician_id, role, is_active)
        VALUES ($1,$2,$3,TRUE)
        RETURNING ` + membershipColumns
	return scanMembershipRow(q.QueryRow(ctx, query, reportID, technicianID, role))
}

func (r *teamMemberRepository) RemoveMember(ctx context.Context, reportID, technicianID string) (*domain.TeamMembership, error) {
	const query = `
        UPDATE report_technicians
        SET is_active=FALSE, left_at=NOW()
        WHERE report_id=$1 AND technician_id=$2 AND is_active=TRUE
        RETURNING ` + membershipColumns
	return scanMembershipRow(r.pool.QueryRow(ctx, query, reportID, technicianID))
}

func (r *teamMemberRepository) ListActiveByReport(ctx context.Context, reportID string) ([]domain.TeamMembership, error) {
	const query = `
        SELECT ` + membershipColumns + `
        FROM report_technicians
        WHERE report_id=$1 AND is_active=TRUE
        ORDER BY CASE role WHEN 'main' THEN 1 WHEN 'leader' THEN 2 ELSE 3 END, joined_at`
	return r.fetchMany(ctx, query, reportID)
}

func (r *teamMemberRepository) ListHistoryByReport(ctx context.Context, reportID string) ([]domain.TeamMembership, error) {
	const query = `
        SELECT ` + membershipColumns + `
        FROM report_technicians
        WHERE report_id=$1
        ORDER BY joined_at DESC`
	return r.fetchMany(ctx, query, reportID)
}

func (r *teamMemberRepository) Workload(ctx context.Context, technicianID string) (*domain.TechnicianWorkload, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE rt.role='main'),
               COUNT(*) FILTER (WHERE rt.role='leader'),
               COUNT(*) FILTER (WHERE rt.role='support'),
               COUNT(*) FILTER (WHERE r.safety_required)
        FROM report_technicians rt
        JOIN reports r ON rt.report_id = r.id
        WHERE rt.technician_id=$1 AND rt.is_active=TRUE AND r.status IN ('noticed','working')`
	workload := domain.TechnicianWorkload{TechnicianID: technicianID}
	if err := r.pool.QueryRow(ctx, query, technicianID).Scan(
		&workload.TotalAssignments,
		&workload.MainAssignments,
		&workload.LeaderAssignments,
		&workload.SupportAssignments,
		&workload.HighSeverity,
	); err != nil {
		return nil, err
	}
	return &workload, nil
}

func (r *teamMemberRepository) AvailableTechnicians(ctx context.Context, sector *string, highSeverity bool) ([]domain.TechnicianAvailability, error) {
	query := `
        SELECT u.id, u.username, u.employee_id, u.role,
               COALESCE(w.total_assignments, 0),
               COALESCE(w.main_assignments, 0)
        FROM users u
        LEFT JOIN (
            SELECT rt.technician_id,
                   COUNT(*) AS total_assignments,
                   COUNT(*) FILTER (WHERE rt.role='main') AS main_assignments
            FROM report_technicians rt
            JOIN reports r ON rt.report_id = r.id
            WHERE rt.is_active=TRUE AND r.status IN ('noticed','working')
            GROUP BY rt.technician_id
        ) w ON u.id = w.technician_id
        WHERE u.role IN ('technician','technician_leader') AND u.is_active=TRUE
        AND COALESCE(w.total_assignments, 0) < $1`
	args := []any{domain.MaxTotalAssignments}
	if !highSeverity {
		args = append(args, domain.MaxMainAssignments)
		query += fmt.Sprintf(" AND COALESCE(w.main_assignments, 0) < $%d", len(args))
	}
	if sector != nil {
		args = append(args, *sector)
		query += fmt.Sprintf(" AND u.sector=$%d", len(args))
	}
	// Least-loaded first; leader-capable technicians break ties.
	query += ` ORDER BY COALESCE(w.total_assignments, 0) ASC, u.role DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TechnicianAvailability
	for rows.Next() {
		var avail domain.TechnicianAvailability
		if err := rows.Scan(
			&avail.TechnicianID,
			&avail.Username,
			&avail.EmployeeID,
			&avail.Role,
			&avail.TotalWorkload,
			&avail.MainAssignments,
		); err != nil {
			return nil, err
		}
		result = append(result, avail)
	}
	return result, rows.Err()
}

func (r *teamMemberRepository) LeastLoadedLeader(ctx context.Context) (string, error) {
	const query = `
        SELECT u.id
        FROM users u
        LEFT JOIN (
            SELECT rt.technician_id, COUNT(*) AS leader_assignments
            FROM report_technicians rt
            JOIN reports r ON rt.report_id = r.id
            WHERE rt.is_active=TRUE AND rt.role='leader' AND r.status IN ('noticed','working')
            GROUP BY rt.technician_id
        ) w ON u.id = w.technician_id
        WHERE u.role='technician_leader' AND u.is_active=TRUE
        AND COALESCE(w.leader_assignments, 0) < $1
        ORDER BY COALESCE(w.leader_assignments, 0) ASC
        LIMIT 1`
	var leaderID string
	if err := r.pool.QueryRow(ctx, query, domain.MaxLeaderAssignments).Scan(&leaderID); err != nil {
		return "", err
	}
	return leaderID, nil
}

func (r *teamMemberRepository) fetchMany(ctx context.Context, query string, args ...any) ([]domain.TeamMembership, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TeamMembership
	for rows.Next() {
		var membership domain.TeamMembership
		if err := rows.Scan(
			&membership.ID,
			&membership.ReportID,
			&membership.TechnicianID,
			&membership.Role,
			&membership.IsActive,
			&membership.JoinedAt,
			&membership.LeftAt,
		); err != nil {
			return nil, err
		}
		result = append(result, membership)
	}
	return result, rows.Err()
}

func scanMembershipRow(row pgx.Row) (*domain.TeamMembership, error) {
	var membership domain.TeamMembership
	if err := row.Scan(
		&membership.ID,
		&membership.ReportID,
		&membership.TechnicianID,
		&membership.Role,
		&membership.IsActive,
		&membership.JoinedAt,
		&membership.LeftAt,
	); err != nil {
		return nil, err
	}
	return &membership, nil
}
