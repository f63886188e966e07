package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

const reportColumns = `id, reporter_id, breakdown_type, description, safety_required,
               assistance_required, location_method, sector, grid_location, machine_id,
               image_url, status, assigned_to, sla_deadline, escalated, created_at, completed_at`

// ReportRepository encapsulates report persistence. Every write that changes
// claim or escalation eligibility is a single conditional statement so that
// concurrent actors cannot both win.
type ReportRepository interface {
	Create(ctx context.Context, report *domain.Report) error
	GetByID(ctx context.Context, id string) (*domain.Report, error)
	// Assign transitions noticed/unassigned -> working/assigned in one
	// guarded statement. Returns pgx.ErrNoRows when the claim was lost.
	Assign(ctx context.Context, reportID, technicianID string) (*domain.Report, error)
	// MarkCompleted transitions working -> completed, stamping completed_at.
	MarkCompleted(ctx context.Context, reportID string) (*domain.Report, error)
	// MarkEscalated flips the escalation flag iff the report is still open,
	// unescalated and past its deadline. Returns false on a no-op.
	MarkEscalated(ctx context.Context, reportID string, now time.Time) (bool, error)
	ListOverdue(ctx context.Context, now time.Time) ([]domain.Report, error)
	ListDueToday(ctx context.Context, technicianID *string, now time.Time) ([]domain.Report, error)
	ListUnassigned(ctx context.Context, sector *string) ([]domain.Report, error)
	ListByReporter(ctx context.Context, reporterID string, limit, offset int) ([]domain.Report, error)
	ListByAssignee(ctx context.Context, technicianID string, status *domain.ReportStatus) ([]domain.Report, error)
	ListEscalated(ctx context.Context) ([]domain.Report, error)
	// ArchiveOlderThan bulk-moves completed reports past the age threshold
	// to archived, returning the number archived.
	ArchiveOlderThan(ctx context.Context, daysOld int) (int64, error)
	StatsBySector(ctx context.Context, from, to *time.Time) ([]domain.SectorStats, error)
	DailyCounts(ctx context.Context, day time.Time) (DailyCounts, error)
}

// DailyCounts aggregates one day of report activity for the summary job.
type DailyCounts struct {
	TotalReports     int
	CompletedReports int
	EscalatedReports int
	SafetyReports    int
}

type reportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository instantiates repository.
func NewReportRepository(pool *pgxpool.Pool) ReportRepository {
	return &reportRepository{pool: pool}
}

func (r *reportRepository) Create(ctx context.Context, report *domain.Report) error {
	const query = `
        INSERT INTO reports (id, reporter_id, breakdown_type, description, safety_required,
            assistance_required, location_method, sector, grid_location, machine_id,
            image_url, status, sla_deadline, escalated)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		report.ID,
		report.ReporterID,
		report.BreakdownType,
		report.Description,
		report.SafetyRequired,
		report.AssistanceRequired,
		report.LocationMethod,
		report.Sector,
		report.GridLocation,
		report.MachineID,
		report.ImageURL,
		report.Status,
		report.SLADeadline,
		report.Escalated,
	).Scan(&report.CreatedAt)
}

func (r *reportRepository) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *reportRepository) Assign(ctx context.Context, reportID, technicianID string) (*domain.Report, error) {
	query := `
        UPDATE reports
        SET assigned_to=$1, status='working'
        WHERE id=$2 AND status='noticed' AND assigned_to IS NULL
        RETURNING ` + reportColumns
	return r.fetchSingle(ctx, query, technicianID, reportID)
}

func (r *reportRepository) MarkCompleted(ctx context.Context, reportID string) (*domain.Report, error) {
	query := `
        UPDATE reports
        SET status='completed', completed_at=NOW()
        WHERE id=$1 AND status='working'
        RETURNING ` + reportColumns
	return r.fetchSingle(ctx, query, reportID)
}

func (r *reportRepository) MarkEscalated(ctx context.Context, reportID string, now time.Time) (bool, error) {
	const query = `
        UPDATE reports
        SET escalated=TRUE
        WHERE id=$1 AND escalated=FALSE AND status IN ('noticed','working') AND sla_deadline < $2`
	cmd, err := r.pool.Exec(ctx, query, reportID, now)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *reportRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.Report, error) {
	query := `
        SELECT ` + reportColumns + `
        FROM reports
        WHERE sla_deadline < $1 AND status IN ('noticed','working') AND escalated=FALSE
        ORDER BY sla_deadline ASC`
	return r.fetchMany(ctx, query, now)
}

func (r *reportRepository) ListDueToday(ctx context.Context, technicianID *string, now time.Time) ([]domain.Report, error) {
	query := `
        SELECT ` + reportColumns + `
        FROM reports
        WHERE sla_deadline >= $1 AND sla_deadline < $2
        AND status IN ('noticed','working')`
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	args := []any{dayStart, dayStart.AddDate(0, 0, 1)}
	if technicianID != nil {
		args = append(args, *technicianID)
		query += fmt.Sprintf(" AND assigned_to=$%d", len(args))
	}
	query += " ORDER BY sla_deadline ASC"
	return r.fetchMany(ctx, query, args...)
}

func (r *reportRepository) ListUnassigned(ctx context.Context, sector *string) ([]domain.Report, error) {
	query := `
        SELECT ` + reportColumns + `
        FROM reports
        WHERE assigned_to IS NULL AND status='noticed'`
	args := []any{}
	if sector != nil {
		args = append(args, *sector)
		query += fmt.Sprintf(" AND sector=$%d", len(args))
	}
	query += " ORDER BY safety_required DESC, created_at ASC"
	return r.fetchMany(ctx, query, args...)
}

func (r *reportRepository) ListByReporter(ctx context.Context, reporterID string, limit, offset int) ([]domain.Report, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `
        SELECT ` + reportColumns + `
        FROM reports WHERE reporter_id=$1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	return r.fetchMany(ctx, query, reporterID, limit, offset)
}

func (r *reportRepository) ListByAssignee(ctx context.Context, technicianID string, status *domain.ReportStatus) ([]domain.Report, error) {
	query := `
        SELECT ` + reportColumns + `
        FROM reports WHERE assigned_to=$1`
	args := []any{technicianID}
	if status != nil {
		args = append(args, *status)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	return r.fetchMany(ctx, query, args...)
}

func (r *reportRepository) ListEscalated(ctx context.Context) ([]domain.Report, error) {
	query := `
        SELECT ` + reportColumns + `
        FROM reports
        WHERE escalated=TRUE AND status NOT IN ('completed','archived')
        ORDER BY created_at ASC`
	return r.fetchMany(ctx, query)
}

func (r *reportRepository) ArchiveOlderThan(ctx context.Context, daysOld int) (int64, error) {
	const query = `
        UPDATE reports
        SET status='archived'
        WHERE status='completed' AND completed_at < NOW() - make_interval(days => $1)`
	cmd, err := r.pool.Exec(ctx, query, daysOld)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *reportRepository) StatsBySector(ctx context.Context, from, to *time.Time) ([]domain.SectorStats, error) {
	query := `
        SELECT sector, breakdown_type,
               COUNT(*) AS total_reports,
               COUNT(*) FILTER (WHERE status='completed') AS completed_reports,
               COUNT(*) FILTER (WHERE escalated) AS escalated_reports,
               AVG(CASE WHEN completed_at IS NOT NULL
                   THEN EXTRACT(EPOCH FROM (completed_at - created_at))/3600 END) AS avg_completion_hours
        FROM reports`
	args := []any{}
	if from != nil && to != nil {
		args = append(args, *from, *to)
		query += " WHERE created_at BETWEEN $1 AND $2"
	}
	query += " GROUP BY sector, breakdown_type ORDER BY sector, breakdown_type"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SectorStats
	for rows.Next() {
		var stat domain.SectorStats
		if err := rows.Scan(
			&stat.Sector,
			&stat.BreakdownType,
			&stat.TotalReports,
			&stat.CompletedReports,
			&stat.EscalatedReports,
			&stat.AvgCompletionHours,
		); err != nil {
			return nil, err
		}
		result = append(result, stat)
	}
	return result, rows.Err()
}

func (r *reportRepository) DailyCounts(ctx context.Context, day time.Time) (DailyCounts, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status='completed'),
               COUNT(*) FILTER (WHERE escalated),
               COUNT(*) FILTER (WHERE safety_required)
        FROM reports
        WHERE created_at >= $1 AND created_at < $2`
	var counts DailyCounts
	err := r.pool.QueryRow(ctx, query, dayStart, dayStart.AddDate(0, 0, 1)).Scan(
		&counts.TotalReports,
		&counts.CompletedReports,
		&counts.EscalatedReports,
		&counts.SafetyReports,
	)
	return counts, err
}

func (r *reportRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Report, error) {
	var report domain.Report
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&report.ID,
		&report.ReporterID,
		&report.BreakdownType,
		&report.Description,
		&report.SafetyRequired,
		&report.AssistanceRequired,
		&report.LocationMethod,
		&report.Sector,
		&report.GridLocation,
		&report.MachineID,
		&report.ImageURL,
		&report.Status,
		&report.AssignedTo,
		&report.SLADeadline,
		&report.Escalated,
		&report.CreatedAt,
		&report.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *reportRepository) fetchMany(ctx context.Context, query string, args ...any) ([]domain.Report, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReports(rows)
}

func scanReports(rows pgx.Rows) ([]domain.Report, error) {
	var result []domain.Report
	for rows.Next() {
		var report domain.Report
		if err := rows.Scan(
			&report.ID,
			&report.ReporterID,
			&report.BreakdownType,
			&report.Description,
			&report.SafetyRequired,
			&report.AssistanceRequired,
			&report.LocationMethod,
			&report.Sector,
			&report.GridLocation,
			&report.MachineID,
			&report.ImageURL,
			&report.Status,
			&report.AssignedTo,
			&report.SLADeadline,
			&report.Escalated,
			&report.CreatedAt,
			&report.CompletedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, report)
	}
	return result, rows.Err()
}
