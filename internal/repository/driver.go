package repository

import (
	"context"

	"fleettrack/internal/domain"
)

// DriverRepository defines the read operations the core needs on drivers.
// Drivers are created and edited elsewhere.
type DriverRepository interface {
	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetByRFIDCode retrieves a driver by RFID credential.
	GetByRFIDCode(ctx context.Context, rfidCode string) (*domain.Driver, error)

	// LockByID retrieves a driver by ID and, inside a transaction,
	// holds a row lock until the transaction ends.
	LockByID(ctx context.Context, id string) (*domain.Driver, error)

	// LockByRFIDCode is LockByID keyed by RFID credential.
	LockByRFIDCode(ctx context.Context, rfidCode string) (*domain.Driver, error)
}
