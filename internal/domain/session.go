package domain

import "time"

// SessionStatus represents the state of a work session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
)

// WorkSession pairs one driver with one vehicle for a span of time.
// EndedAt is zero while the session is active.
type WorkSession struct {
	ID             string
	DriverID       string
	VehicleID      string
	StartedAt      time.Time
	EndedAt        time.Time
	PassengerCount int
	Status         SessionStatus
}

// IsActive reports whether the session is still open.
func (s *WorkSession) IsActive() bool {
	return s.Status == SessionStatusActive
}

// Complete closes the session at the given instant.
// The end time never precedes the start time.
func (s *WorkSession) Complete(at time.Time) {
	if at.Before(s.StartedAt) {
		at = s.StartedAt
	}
	s.EndedAt = at
	s.Status = SessionStatusCompleted
}

// TapAction is the outcome of an RFID tap.
type TapAction string

const (
	TapActionStarted TapAction = "started"
	TapActionEnded   TapAction = "ended"
)

// TapResult is the session touched by a tap and what happened to it.
type TapResult struct {
	Action  TapAction
	Session *WorkSession
}
