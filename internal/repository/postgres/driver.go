package postgres

import (
	"context"
	"database/sql"
	"errors"

	"fleettrack/internal/domain"
	"fleettrack/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	db *sql.DB
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{db: db}
}

const driverColumns = `id, COALESCE(name, ''), rfid_code, status`

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

// GetByRFIDCode retrieves a driver by RFID credential.
func (r *DriverRepository) GetByRFIDCode(ctx context.Context, rfidCode string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE rfid_code = $1`
	return r.scanOne(ctx, query, rfidCode)
}

// LockByID retrieves a driver by ID and locks the row.
func (r *DriverRepository) LockByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1 FOR UPDATE`
	return r.scanOne(ctx, query, id)
}

// LockByRFIDCode retrieves a driver by RFID credential and locks the row.
func (r *DriverRepository) LockByRFIDCode(ctx context.Context, rfidCode string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE rfid_code = $1 FOR UPDATE`
	return r.scanOne(ctx, query, rfidCode)
}

func (r *DriverRepository) scanOne(ctx context.Context, query string, arg string) (*domain.Driver, error) {
	var driver domain.Driver
	err := querier(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(
		&driver.ID,
		&driver.Name,
		&driver.RFIDCode,
		&driver.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, classify(err)
	}

	return &driver, nil
}

// Ensure DriverRepository implements repository.DriverRepository.
var _ repository.DriverRepository = (*DriverRepository)(nil)
