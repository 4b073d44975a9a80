package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrTransient is returned when the store failed in a way that is safe
	// to retry: lock timeout, deadlock, serialization failure, lost connection.
	ErrTransient = errors.New("transient store error")

	// ErrActiveSessionConflict is returned when a write would leave two active
	// sessions for the same driver or the same vehicle.
	ErrActiveSessionConflict = errors.New("active session already exists")

	// ErrInvariant is returned when stored state contradicts the
	// one-active-session-per-driver/vehicle rule.
	ErrInvariant = errors.New("store invariant violated")
)
