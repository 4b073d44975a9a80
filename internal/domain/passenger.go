package domain

import "time"

// PassengerEvent is one boarding attributed to a work session.
// Events are append-only.
type PassengerEvent struct {
	ID        string
	SessionID string
	RFIDCode  string
	CreatedAt time.Time
}

// Boarding is the outcome of recording a passenger event.
type Boarding struct {
	Event          *PassengerEvent
	VehicleID      string
	PassengerCount int
}
