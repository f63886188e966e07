package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

const machineColumns = `id, machine_label, qr_code_value, sector, is_active, created_at`

// MachineRepository resolves QR-coded equipment to its plant sector.
type MachineRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Machine, error)
	GetByQRCode(ctx context.Context, qrCodeValue string) (*domain.Machine, error)
	ListBySector(ctx context.Context, sector string) ([]domain.Machine, error)
}

type machineRepository struct {
	pool *pgxpool.Pool
}

// NewMachineRepository instantiates repository.
func NewMachineRepository(pool *pgxpool.Pool) MachineRepository {
	return &machineRepository{pool: pool}
}

func (r *machineRepository) GetByID(ctx context.Context, id string) (*domain.Machine, error) {
	query := `SELECT ` + machineColumns + ` FROM machine_map WHERE id=$1 AND is_active=TRUE`
	return scanMachine(r.pool.QueryRow(ctx, query, id))
}

func (r *machineRepository) GetByQRCode(ctx context.Context, qrCodeValue string) (*domain.Machine, error) {
	query := `SELECT ` + machineColumns + ` FROM machine_map WHERE qr_code_value=$1 AND is_active=TRUE`
	return scanMachine(r.pool.QueryRow(ctx, query, qrCodeValue))
}

func (r *machineRepository) ListBySector(ctx context.Context, sector string) ([]domain.Machine, error) {
	query := `
        SELECT ` + machineColumns + `
        FROM machine_map
        WHERE sector=$1 AND is_active=TRUE
        ORDER BY machine_label`
	rows, err := r.pool.Query(ctx, query, sector)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Machine
	for rows.Next() {
		machine, err := scanMachine(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *machine)
	}
	return result, rows.Err()
}

func scanMachine(row pgx.Row) (*domain.Machine, error) {
	var machine domain.Machine
	if err := row.Scan(
		&machine.ID,
		&machine.MachineLabel,
		&machine.QRCodeValue,
		&machine.Sector,
		&machine.IsActive,
		&machine.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &machine, nil
}
