package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

const statsColumns = `id, technician_id, sector, total_assigned, total_completed,
               high_severity_handled, points, time_window_start, time_window_end, created_at`

// StatsRepository maintains the per-technician monthly performance ledger.
// Increments upsert the month row so the first accrual in a new month creates
// it; the unique (technician_id, sector, time_window_start) key keeps repeated
// writes and the monthly generation job idempotent.
type StatsRepository interface {
	IncrementAssigned(ctx context.Context, technicianID, sector string, window domain.MonthWindow) error
	IncrementCompleted(ctx context.Context, technicianID, sector string, window domain.MonthWindow, highSeverity bool, points int) error
	// GenerateMonthly backfills rows for the window from membership and
	// completion history, for technicians with no row yet. Returns rows
	// created.
	GenerateMonthly(ctx context.Context, window domain.MonthWindow) (int64, error)
	GetWindow(ctx context.Context, technicianID, sector string, window domain.MonthWindow) (*domain.TechnicianStats, error)
	ListByTechnician(ctx context.Context, technicianID string, limit int) ([]domain.TechnicianStats, error)
	Leaderboard(ctx context.Context, window domain.MonthWindow, sector *string, limit int) ([]domain.TechnicianStats, error)
	Aggregated(ctx context.Context, technicianID string) (*domain.AggregatedStats, error)
	SectorPerformance(ctx context.Context, window domain.MonthWindow) ([]domain.SectorPerformance, error)
}

type statsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository instantiates repository.
func NewStatsRepository(pool *pgxpool.Pool) StatsRepository {
	return &statsRepository{pool: pool}
}

func (r *statsRepository) IncrementAssigned(ctx context.Context, technicianID, sector string, window domain.MonthWindow) error {
	const query = `
        INSERT INTO technician_stats
            (technician_id, sector, total_assigned, time_window_start, time_window_end)
        VALUES ($1,$2,1,$3,$4)
        ON CONFLICT (technician_id, sector, time_window_start)
        DO UPDATE SET total_assigned = technician_stats.total_assigned + 1`
	_, err := r.pool.Exec(ctx, query, technicianID, sector, window.Start, window.End)
	return err
}

func (r *statsRepository) IncrementCompleted(ctx context.Context, technicianID, sector string, window domain.MonthWindow, highSeverity bool, points int) error {
	highSeverityDelta := 0
	if highSeverity {
		highSeverityDelta = 1
	}
	const query = `
        INSERT INTO technician_stats
            (technician_id, sector, total_completed, high_severity_handled, points,
             time_window_start, time_window_end)
        VALUES ($1,$2,1,$3,$4,$5,$6)
        ON CONFLICT (technician_id, sector, time_window_start)
        DO UPDATE SET
            total_completed = technician_stats.total_completed + 1,
            high_severity_handled = technician_stats.high_severity_handled + $3,
            points = technician_stats.points + $4`
	_, err := r.pool.Exec(ctx, query, technicianID, sector, highSeverityDelta, points, window.Start, window.End)
	return err
}

func (r *statsRepository) GenerateMonthly(ctx context.Context, window domain.MonthWindow) (int64, error) {
	// Mirrors live accrual: assignment counts in the month the technician
	// joined, completion counts (for still-active members) in the month the
	// report completed, and the safety premium only for safety-flagged work.
	// Technicians that already have a ledger row for the window are
	// untouched, so re-runs are no-ops.
	const query = `
        INSERT INTO technician_stats
            (technician_id, sector, total_assigned, total_completed,
             high_severity_handled, points, time_window_start, time_window_end)
        SELECT rt.technician_id,
               r.sector,
               COUNT(*) FILTER (WHERE rt.joined_at >= $1 AND rt.joined_at < $2),
               COUNT(*) FILTER (WHERE rt.is_active
                                AND r.completed_at >= $1 AND r.completed_at < $2),
               COUNT(*) FILTER (WHERE rt.is_active AND r.safety_required
                                AND r.completed_at >= $1 AND r.completed_at < $2),
               COUNT(*) FILTER (WHERE rt.is_active
                                AND r.completed_at >= $1 AND r.completed_at < $2) * 10
                   + COUNT(*) FILTER (WHERE rt.is_active AND r.safety_required
                                      AND r.completed_at >= $1 AND r.completed_at < $2) * 20,
               $1, $2
        FROM report_technicians rt
        JOIN reports r ON rt.report_id = r.id
        WHERE ((rt.joined_at >= $1 AND rt.joined_at < $2)
               OR (r.completed_at >= $1 AND r.completed_at < $2))
        AND NOT EXISTS (
            SELECT 1 FROM technician_stats ts
            WHERE ts.technician_id = rt.technician_id
            AND ts.sector = r.sector
            AND ts.time_window_start = $1
        )
        GROUP BY rt.technician_id, r.sector`
	cmd, err := r.pool.Exec(ctx, query, window.Start, window.End)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *statsRepository) GetWindow(ctx context.Context, technicianID, sector string, window domain.MonthWindow) (*domain.TechnicianStats, error) {
	query := `
        SELECT ` + statsColumns + `
        FROM technician_stats
        WHERE technician_id=$1 AND sector=$2 AND time_window_start=$3`
	return scanStats(r.pool.QueryRow(ctx, query, technicianID, sector, window.Start))
}

func (r *statsRepository) ListByTechnician(ctx context.Context, technicianID string, limit int) ([]domain.TechnicianStats, error) {
	if limit <= 0 {
		limit = 12
	}
	query := `
        SELECT ` + statsColumns + `
        FROM technician_stats
        WHERE technician_id=$1
        ORDER BY time_window_start DESC
        LIMIT $2`
	return r.fetchMany(ctx, query, technicianID, limit)
}

func (r *statsRepository) Leaderboard(ctx context.Context, window domain.MonthWindow, sector *string, limit int) ([]domain.TechnicianStats, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
        SELECT ` + statsColumns + `
        FROM technician_stats
        WHERE time_window_start=$1`
	args := []any{window.Start}
	if sector != nil {
		args = append(args, *sector)
		query += ` AND sector=$2`
	}
	args = append(args, limit)
	if sector != nil {
		query += ` ORDER BY points DESC, total_completed DESC LIMIT $3`
	} else {
		query += ` ORDER BY points DESC, total_completed DESC LIMIT $2`
	}
	return r.fetchMany(ctx, query, args...)
}

func (r *statsRepository) Aggregated(ctx context.Context, technicianID string) (*domain.AggregatedStats, error) {
	const query = `
        SELECT COALESCE(SUM(total_assigned), 0),
               COALESCE(SUM(total_completed), 0),
               COALESCE(SUM(high_severity_handled), 0),
               COALESCE(SUM(points), 0),
               COUNT(DISTINCT time_window_start)
        FROM technician_stats
        WHERE technician_id=$1`
	var agg domain.AggregatedStats
	if err := r.pool.QueryRow(ctx, query, technicianID).Scan(
		&agg.TotalAssigned,
		&agg.TotalCompleted,
		&agg.HighSeverityHandled,
		&agg.TotalPoints,
		&agg.MonthsActive,
	); err != nil {
		return nil, err
	}
	if agg.TotalAssigned > 0 {
		agg.CompletionRate = float64(agg.TotalCompleted) / float64(agg.TotalAssigned)
	}
	return &agg, nil
}

func (r *statsRepository) SectorPerformance(ctx context.Context, window domain.MonthWindow) ([]domain.SectorPerformance, error) {
	const query = `
        SELECT sector,
               COUNT(DISTINCT technician_id),
               COALESCE(SUM(total_assigned), 0),
               COALESCE(SUM(total_completed), 0),
               COALESCE(SUM(high_severity_handled), 0),
               COALESCE(AVG(CASE WHEN total_assigned > 0
                   THEN total_completed::float / total_assigned END), 0),
               COALESCE(SUM(points), 0)
        FROM technician_stats
        WHERE time_window_start=$1
        GROUP BY sector
        ORDER BY SUM(points) DESC`
	rows, err := r.pool.Query(ctx, query, window.Start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SectorPerformance
	for rows.Next() {
		var perf domain.SectorPerformance
		if err := rows.Scan(
			&perf.Sector,
			&perf.ActiveTechnicians,
			&perf.TotalAssigned,
			&perf.TotalCompleted,
			&perf.HighSeverityHandled,
			&perf.AvgCompletionRate,
			&perf.TotalPoints,
		); err != nil {
			return nil, err
		}
		result = append(result, perf)
	}
	return result, rows.Err()
}

func (r *statsRepository) fetchMany(ctx context.Context, query string, args ...any) ([]domain.TechnicianStats, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TechnicianStats
	for rows.Next() {
		stats, err := scanStats(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *stats)
	}
	return result, rows.Err()
}

func scanStats(row pgx.Row) (*domain.TechnicianStats, error) {
	var stats domain.TechnicianStats
	if err := row.Scan(
		&stats.ID,
		&stats.TechnicianID,
		&stats.Sector,
		&stats.TotalAssigned,
		&stats.TotalCompleted,
		&stats.HighSeverityHandled,
		&stats.Points,
		&stats.WindowStart,
		&stats.WindowEnd,
		&stats.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &stats, nil
}
