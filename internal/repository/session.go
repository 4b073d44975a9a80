package repository

import (
	"context"

	"fleettrack/internal/domain"
)

// SessionRepository defines the persistence operations for work sessions.
type SessionRepository interface {
	// Create persists a new session. Returns ErrActiveSessionConflict when
	// the driver or the vehicle already has an active session.
	Create(ctx context.Context, session *domain.WorkSession) error

	// GetByID retrieves a session by ID.
	GetByID(ctx context.Context, id string) (*domain.WorkSession, error)

	// LockByID retrieves a session by ID holding a row lock inside a transaction.
	LockByID(ctx context.Context, id string) (*domain.WorkSession, error)

	// GetActiveByDriverID retrieves the active session for a driver.
	// Returns nil if none exists and ErrInvariant if more than one does.
	GetActiveByDriverID(ctx context.Context, driverID string) (*domain.WorkSession, error)

	// GetActiveByVehicleID retrieves the active session for a vehicle.
	// Returns nil if none exists and ErrInvariant if more than one does.
	GetActiveByVehicleID(ctx context.Context, vehicleID string) (*domain.WorkSession, error)

	// ListActive retrieves all active sessions.
	ListActive(ctx context.Context) ([]*domain.WorkSession, error)

	// Complete stamps the end time of an active session and marks it completed.
	Complete(ctx context.Context, session *domain.WorkSession) error

	// IncrementPassengerCount adds one to an active session's passenger count
	// in the store and returns the new value.
	IncrementPassengerCount(ctx context.Context, sessionID string) (int, error)
}

// PassengerEventRepository defines the persistence operations for boardings.
type PassengerEventRepository interface {
	// Create appends a passenger event.
	Create(ctx context.Context, event *domain.PassengerEvent) error

	// CountBySessionID returns the number of events attributed to a session.
	CountBySessionID(ctx context.Context, sessionID string) (int, error)
}
