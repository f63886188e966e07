package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

const partColumns = `id, part_name, part_number, stock_quantity, minimum_stock, location, is_active, created_at, updated_at`

// PartRepository tracks spare part stock for the low-stock sweep.
type PartRepository interface {
	ListLowStock(ctx context.Context) ([]domain.Part, error)
}

type partRepository struct {
	pool *pgxpool.Pool
}

// NewPartRepository instantiates repository.
func NewPartRepository(pool *pgxpool.Pool) PartRepository {
	return &partRepository{pool: pool}
}

func (r *partRepository) ListLowStock(ctx context.Context) ([]domain.Part, error) {
	query := `
        SELECT ` + partColumns + `
        FROM parts
        WHERE is_active=TRUE AND stock_quantity <= minimum_stock
        ORDER BY stock_quantity ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Part
	for rows.Next() {
		part, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *part)
	}
	return result, rows.Err()
}

func scanPart(row pgx.Row) (*domain.Part, error) {
	var part domain.Part
	if err := row.Scan(
		&part.ID,
		&part.PartName,
		&part.PartNumber,
		&part.StockQuantity,
		&part.MinimumStock,
		&part.Location,
		&part.IsActive,
		&part.CreatedAt,
		&part.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &part, nil
}
