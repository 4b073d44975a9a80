package repository

import (
	"context"

	"fleettrack/internal/domain"
)

// VehicleRepository defines the read operations the core needs on vehicles.
type VehicleRepository interface {
	// GetByID retrieves a vehicle by ID.
	GetByID(ctx context.Context, id string) (*domain.Vehicle, error)

	// LockByID retrieves a vehicle by ID and, inside a transaction,
	// holds a row lock until the transaction ends.
	LockByID(ctx context.Context, id string) (*domain.Vehicle, error)
}

// DeviceRepository resolves tap terminals to vehicles.
type DeviceRepository interface {
	// GetByID retrieves a device by ID.
	GetByID(ctx context.Context, id string) (*domain.Device, error)
}
