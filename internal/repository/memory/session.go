package memory

import (
	"context"
	"fmt"
	"sort"

	"fleettrack/internal/domain"
	"fleettrack/internal/repository"
)

// SessionRepository is an in-memory repository.SessionRepository.
type SessionRepository struct {
	s *Store
}

// Create persists a new session, rejecting a second active session for the
// same driver or vehicle the way the partial unique indexes do.
func (r *SessionRepository) Create(_ context.Context, ws *domain.WorkSession) error {
	if err := r.s.takeFailure(OpSessionCreate); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.data.sessions[ws.ID]; exists {
		return fmt.Errorf("duplicate session id %s", ws.ID)
	}
	if ws.IsActive() {
		for _, other := range r.s.data.sessions {
			if !other.IsActive() {
				continue
			}
			if other.DriverID == ws.DriverID || other.VehicleID == ws.VehicleID {
				return repository.ErrActiveSessionConflict
			}
		}
	}

	r.s.data.sessions[ws.ID] = *ws
	return nil
}

// GetByID retrieves a session by ID.
func (r *SessionRepository) GetByID(_ context.Context, id string) (*domain.WorkSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ws, ok := r.s.data.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ws, nil
}

// LockByID is GetByID; the transaction lock already serializes writers.
func (r *SessionRepository) LockByID(ctx context.Context, id string) (*domain.WorkSession, error) {
	return r.GetByID(ctx, id)
}

// GetActiveByDriverID retrieves the active session for a driver.
func (r *SessionRepository) GetActiveByDriverID(_ context.Context, driverID string) (*domain.WorkSession, error) {
	return r.active(func(ws domain.WorkSession) bool { return ws.DriverID == driverID }, driverID)
}

// GetActiveByVehicleID retrieves the active session for a vehicle.
func (r *SessionRepository) GetActiveByVehicleID(_ context.Context, vehicleID string) (*domain.WorkSession, error) {
	return r.active(func(ws domain.WorkSession) bool { return ws.VehicleID == vehicleID }, vehicleID)
}

func (r *SessionRepository) active(match func(domain.WorkSession) bool, key string) (*domain.WorkSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var found []domain.WorkSession
	for _, ws := range r.s.data.sessions {
		if ws.IsActive() && match(ws) {
			found = append(found, ws)
		}
	}

	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("%w: %d active sessions for %s", repository.ErrInvariant, len(found), key)
	}
}

// ListActive retrieves all active sessions, most recent first.
func (r *SessionRepository) ListActive(_ context.Context) ([]*domain.WorkSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.WorkSession
	for _, ws := range r.s.data.sessions {
		if ws.IsActive() {
			ws := ws
			out = append(out, &ws)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// Complete stamps the end time of an active session.
func (r *SessionRepository) Complete(_ context.Context, ws *domain.WorkSession) error {
	if err := r.s.takeFailure(OpSessionComplete); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.data.sessions[ws.ID]
	if !ok || !stored.IsActive() {
		return repository.ErrNotFound
	}
	stored.EndedAt = ws.EndedAt
	stored.Status = domain.SessionStatusCompleted
	r.s.data.sessions[ws.ID] = stored
	return nil
}

// IncrementPassengerCount adds one boarding to an active session.
func (r *SessionRepository) IncrementPassengerCount(_ context.Context, sessionID string) (int, error) {
	if err := r.s.takeFailure(OpSessionIncrement); err != nil {
		return 0, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.data.sessions[sessionID]
	if !ok || !stored.IsActive() {
		return 0, repository.ErrNotFound
	}
	stored.PassengerCount++
	r.s.data.sessions[sessionID] = stored
	return stored.PassengerCount, nil
}

// PassengerEventRepository is an in-memory repository.PassengerEventRepository.
type PassengerEventRepository struct {
	s *Store
}

// Create appends a passenger event.
func (r *PassengerEventRepository) Create(_ context.Context, e *domain.PassengerEvent) error {
	if err := r.s.takeFailure(OpEventCreate); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.sessions[e.SessionID]; !ok {
		return fmt.Errorf("passenger event references unknown session %s", e.SessionID)
	}
	r.s.data.events = append(r.s.data.events, *e)
	return nil
}

// CountBySessionID returns the number of events attributed to a session.
func (r *PassengerEventRepository) CountBySessionID(_ context.Context, sessionID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, e := range r.s.data.events {
		if e.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

var (
	_ repository.SessionRepository        = (*SessionRepository)(nil)
	_ repository.PassengerEventRepository = (*PassengerEventRepository)(nil)
	_ repository.Transactor               = (*Store)(nil)
)
