package postgres

import (
	"context"
	"database/sql"
	"errors"

	"fleettrack/internal/domain"
	"fleettrack/internal/repository"
)

// VehicleRepository is a PostgreSQL implementation of repository.VehicleRepository.
type VehicleRepository struct {
	db *sql.DB
}

// NewVehicleRepository creates a new PostgreSQL vehicle repository.
func NewVehicleRepository(db *sql.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// GetByID retrieves a vehicle by ID.
func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	return r.get(ctx, `SELECT id, COALESCE(plate_number, ''), status FROM vehicles WHERE id = $1`, id)
}

// LockByID retrieves a vehicle by ID and locks the row.
func (r *VehicleRepository) LockByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	return r.get(ctx, `SELECT id, COALESCE(plate_number, ''), status FROM vehicles WHERE id = $1 FOR UPDATE`, id)
}

func (r *VehicleRepository) get(ctx context.Context, query, id string) (*domain.Vehicle, error) {
	var vehicle domain.Vehicle
	err := querier(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&vehicle.ID,
		&vehicle.PlateNumber,
		&vehicle.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, classify(err)
	}

	return &vehicle, nil
}

// DeviceRepository is a PostgreSQL implementation of repository.DeviceRepository.
type DeviceRepository struct {
	db *sql.DB
}

// NewDeviceRepository creates a new PostgreSQL device repository.
func NewDeviceRepository(db *sql.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// GetByID retrieves a device by ID.
func (r *DeviceRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	query := `SELECT id, vehicle_id, status FROM devices WHERE id = $1`

	var device domain.Device
	err := querier(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&device.ID,
		&device.VehicleID,
		&device.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, classify(err)
	}

	return &device, nil
}

// Ensure interfaces are satisfied.
var (
	_ repository.VehicleRepository = (*VehicleRepository)(nil)
	_ repository.DeviceRepository  = (*DeviceRepository)(nil)
)
