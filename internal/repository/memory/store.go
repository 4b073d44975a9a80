// Package memory provides a transactional in-memory store that satisfies the
// repository interfaces. Transactions are serialized by a single mutex and
// rolled back by restoring a snapshot, which is enough to linearize writers
// the way row locks do in PostgreSQL. It backs the service tests.
package memory

import (
	"context"
	"sync"

	"fleettrack/internal/domain"
)

// Op names an injectable store operation.
type Op string

const (
	OpCommit                  Op = "commit"
	OpSessionCreate           Op = "sessions.create"
	OpSessionComplete         Op = "sessions.complete"
	OpSessionIncrement        Op = "sessions.increment"
	OpEventCreate             Op = "events.create"
	OpCountEventsByDay        Op = "reports.count_by_day"
	OpCountEventsBySession    Op = "reports.count_by_session"
	OpListOverlappingSessions Op = "reports.list_overlapping"
)

type ctxKeyTx struct{}

type state struct {
	drivers  map[string]domain.Driver
	vehicles map[string]domain.Vehicle
	devices  map[string]domain.Device
	sessions map[string]domain.WorkSession
	events   []domain.PassengerEvent
}

func (st *state) clone() state {
	c := state{
		drivers:  make(map[string]domain.Driver, len(st.drivers)),
		vehicles: make(map[string]domain.Vehicle, len(st.vehicles)),
		devices:  make(map[string]domain.Device, len(st.devices)),
		sessions: make(map[string]domain.WorkSession, len(st.sessions)),
		events:   make([]domain.PassengerEvent, len(st.events)),
	}
	for k, v := range st.drivers {
		c.drivers[k] = v
	}
	for k, v := range st.vehicles {
		c.vehicles[k] = v
	}
	for k, v := range st.devices {
		c.devices[k] = v
	}
	for k, v := range st.sessions {
		c.sessions[k] = v
	}
	copy(c.events, st.events)
	return c
}

// Store holds every table in memory.
type Store struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	data     state
	failures map[Op][]error
	commits  int
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		data: state{
			drivers:  make(map[string]domain.Driver),
			vehicles: make(map[string]domain.Vehicle),
			devices:  make(map[string]domain.Device),
			sessions: make(map[string]domain.WorkSession),
		},
		failures: make(map[Op][]error),
	}
}

// WithinTx runs fn while holding the store-wide transaction lock.
// Any error from fn, or an injected commit failure, restores the state
// captured when the transaction began.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(ctxKeyTx{}).(bool); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	err := fn(context.WithValue(ctx, ctxKeyTx{}, true))
	if err == nil {
		err = s.takeFailure(OpCommit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.data = snapshot
		return err
	}
	s.commits++
	return nil
}

// Fail makes the next call of op return err. Repeated calls queue errors.
func (s *Store) Fail(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// Commits returns the number of committed transactions.
func (s *Store) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

func (s *Store) takeFailure(op Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.failures[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	s.failures[op] = queue[1:]
	return err
}

// AddDriver inserts or replaces a driver.
func (s *Store) AddDriver(d domain.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.drivers[d.ID] = d
}

// AddVehicle inserts or replaces a vehicle.
func (s *Store) AddVehicle(v domain.Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.vehicles[v.ID] = v
}

// AddDevice inserts or replaces a device.
func (s *Store) AddDevice(d domain.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.devices[d.ID] = d
}

// PutSession writes a session without enforcing the active-session
// uniqueness rule, so tests can build states the service must reject.
func (s *Store) PutSession(ws domain.WorkSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.sessions[ws.ID] = ws
}

// PutEvent appends a passenger event without touching session counters.
func (s *Store) PutEvent(e domain.PassengerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.events = append(s.data.events, e)
}

// Sessions returns a copy of every stored session.
func (s *Store) Sessions() []domain.WorkSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.WorkSession, 0, len(s.data.sessions))
	for _, ws := range s.data.sessions {
		out = append(out, ws)
	}
	return out
}

// Events returns a copy of every stored passenger event.
func (s *Store) Events() []domain.PassengerEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PassengerEvent, len(s.data.events))
	copy(out, s.data.events)
	return out
}

// Drivers returns a DriverRepository view of the store.
func (s *Store) Drivers() *DriverRepository { return &DriverRepository{s: s} }

// Vehicles returns a VehicleRepository view of the store.
func (s *Store) Vehicles() *VehicleRepository { return &VehicleRepository{s: s} }

// Devices returns a DeviceRepository view of the store.
func (s *Store) Devices() *DeviceRepository { return &DeviceRepository{s: s} }

// WorkSessions returns a SessionRepository view of the store.
func (s *Store) WorkSessions() *SessionRepository { return &SessionRepository{s: s} }

// PassengerEvents returns a PassengerEventRepository view of the store.
func (s *Store) PassengerEvents() *PassengerEventRepository {
	return &PassengerEventRepository{s: s}
}

// Reports returns a ReportRepository view of the store.
func (s *Store) Reports() *ReportRepository { return &ReportRepository{s: s} }
