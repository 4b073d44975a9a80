package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fleettrack/internal/clock"
	"fleettrack/internal/domain"
	"fleettrack/internal/logger"
	"fleettrack/internal/repository"
	"fleettrack/internal/repository/memory"
	"fleettrack/internal/service"
)

// ──────────────────────────────────────────────
// CLOCK
// ──────────────────────────────────────────────

// stepClock returns a strictly increasing instant on every call.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newStepClock(start time.Time) *stepClock {
	return &stepClock{now: start, step: time.Minute}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// ──────────────────────────────────────────────
// TRANSACTOR
// ──────────────────────────────────────────────

// countingTx wraps a Transactor and counts top-level attempts.
type countingTx struct {
	inner    repository.Transactor
	Attempts int32
}

func (c *countingTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	atomic.AddInt32(&c.Attempts, 1)
	return c.inner.WithinTx(ctx, fn)
}

// ──────────────────────────────────────────────
// REDIS FAKES
// ──────────────────────────────────────────────

// MockTapGuard is an in-memory TapGuardInterface ignoring TTLs.
type MockTapGuard struct {
	mu     sync.Mutex
	claims map[string]bool

	ReleaseCallCount int32
	AcquireError     error
}

func NewMockTapGuard() *MockTapGuard {
	return &MockTapGuard{claims: make(map[string]bool)}
}

func (m *MockTapGuard) AcquireTap(_ context.Context, deviceID, rfidCode string, _ time.Duration) (bool, error) {
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := deviceID + "|" + rfidCode
	if m.claims[key] {
		return false, nil
	}
	m.claims[key] = true
	return true, nil
}

func (m *MockTapGuard) ReleaseTap(_ context.Context, deviceID, rfidCode string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, deviceID+"|"+rfidCode)
	return nil
}

// Expire drops every claim, as if the debounce window passed.
func (m *MockTapGuard) Expire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims = make(map[string]bool)
}

// MockPresenceStore is an in-memory PresenceStoreInterface.
type MockPresenceStore struct {
	mu   sync.Mutex
	seen map[string]time.Time

	TouchError error
}

func NewMockPresenceStore() *MockPresenceStore {
	return &MockPresenceStore{seen: make(map[string]time.Time)}
}

func (m *MockPresenceStore) Touch(_ context.Context, deviceID string, at time.Time) error {
	if m.TouchError != nil {
		return m.TouchError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if at.After(m.seen[deviceID]) {
		m.seen[deviceID] = at
	}
	return nil
}

func (m *MockPresenceStore) LastSeen(_ context.Context, deviceID string) (*domain.DevicePresence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.seen[deviceID]
	if !ok {
		return nil, nil
	}
	return &domain.DevicePresence{DeviceID: deviceID, LastSeenAt: at}, nil
}

func (m *MockPresenceStore) SeenSince(_ context.Context, since time.Time) ([]domain.DevicePresence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DevicePresence
	for id, at := range m.seen {
		if !at.Before(since) {
			out = append(out, domain.DevicePresence{DeviceID: id, LastSeenAt: at})
		}
	}
	return out, nil
}

// MockReportCache is an in-memory ReportCacheInterface.
type MockReportCache struct {
	mu    sync.Mutex
	daily map[clock.Date]domain.DailyReport

	GetCallCount int32
	SetCallCount int32
}

func NewMockReportCache() *MockReportCache {
	return &MockReportCache{daily: make(map[clock.Date]domain.DailyReport)}
}

func (m *MockReportCache) GetDaily(_ context.Context, date clock.Date) (*domain.DailyReport, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.daily[date]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MockReportCache) SetDaily(_ context.Context, report *domain.DailyReport, _ time.Duration) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	if report.Degraded {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.daily[report.Date] = *report
	return nil
}

func (m *MockReportCache) InvalidateDaily(_ context.Context, date clock.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.daily, date)
	return nil
}

// ──────────────────────────────────────────────
// FIXTURE
// ──────────────────────────────────────────────

var errTransient = errors.New("lock timeout")

// transientErr wraps repository.ErrTransient the way the postgres adapter does.
func transientErr() error {
	return errors.Join(repository.ErrTransient, errTransient)
}

type fixture struct {
	store    *memory.Store
	tx       *countingTx
	clock    *stepClock
	guard    *MockTapGuard
	presence *MockPresenceStore
	cache    *MockReportCache
	sessions *service.SessionService
	boarding *service.BoardingService
}

// newFixture seeds:
//   - drivers D (D-RFID), E (E-RFID) active and X (X-RFID) inactive
//   - vehicles V, V2 active and VM in maintenance
//   - devices Dev1→V, Dev2→V2, DevM→VM
func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	store.AddDriver(domain.Driver{ID: "D", Name: "Dewi", RFIDCode: "D-RFID", Status: domain.DriverStatusActive})
	store.AddDriver(domain.Driver{ID: "E", Name: "Eko", RFIDCode: "E-RFID", Status: domain.DriverStatusActive})
	store.AddDriver(domain.Driver{ID: "X", Name: "Xena", RFIDCode: "X-RFID", Status: domain.DriverStatusInactive})
	store.AddVehicle(domain.Vehicle{ID: "V", PlateNumber: "B 1234 CD", Status: domain.VehicleStatusActive})
	store.AddVehicle(domain.Vehicle{ID: "V2", PlateNumber: "B 5678 EF", Status: domain.VehicleStatusActive})
	store.AddVehicle(domain.Vehicle{ID: "VM", PlateNumber: "B 9999 ZZ", Status: domain.VehicleStatusMaintenance})
	store.AddDevice(domain.Device{ID: "Dev1", VehicleID: "V", Status: domain.DeviceStatusOnline})
	store.AddDevice(domain.Device{ID: "Dev2", VehicleID: "V2", Status: domain.DeviceStatusOnline})
	store.AddDevice(domain.Device{ID: "DevM", VehicleID: "VM", Status: domain.DeviceStatusOnline})

	f := &fixture{
		store:    store,
		tx:       &countingTx{inner: store},
		clock:    newStepClock(time.Date(2025, 6, 30, 8, 0, 0, 0, time.UTC)),
		guard:    NewMockTapGuard(),
		presence: NewMockPresenceStore(),
		cache:    NewMockReportCache(),
	}
	f.sessions = f.newSessionService(service.SessionConfig{MaxRetries: service.DefaultMaxRetries})
	f.boarding = service.NewBoardingService(service.BoardingServiceDeps{
		Tx:       f.tx,
		Devices:  store.Devices(),
		Sessions: store.WorkSessions(),
		Events:   store.PassengerEvents(),
		Clock:    f.clock,
		Presence: f.presence,
		Logger:   logger.Discard(),
	}, service.SessionConfig{MaxRetries: service.DefaultMaxRetries})

	return f
}

func (f *fixture) newSessionService(cfg service.SessionConfig) *service.SessionService {
	return service.NewSessionService(service.SessionServiceDeps{
		Tx:          f.tx,
		Devices:     f.store.Devices(),
		Vehicles:    f.store.Vehicles(),
		Drivers:     f.store.Drivers(),
		Sessions:    f.store.WorkSessions(),
		Clock:       f.clock,
		TapGuard:    f.guard,
		Presence:    f.presence,
		ReportCache: f.cache,
		Logger:      logger.Discard(),
	}, cfg)
}

// assertActiveInvariants fails if any driver or vehicle has more than one active session.
func assertActiveInvariants(t *testing.T, store *memory.Store) {
	t.Helper()
	perDriver := map[string]int{}
	perVehicle := map[string]int{}
	for _, ws := range store.Sessions() {
		if ws.IsActive() {
			perDriver[ws.DriverID]++
			perVehicle[ws.VehicleID]++
			if !ws.EndedAt.IsZero() {
				t.Errorf("active session %s has an end time", ws.ID)
			}
			continue
		}
		if ws.EndedAt.IsZero() {
			t.Errorf("completed session %s has no end time", ws.ID)
		}
		if ws.EndedAt.Before(ws.StartedAt) {
			t.Errorf("session %s ends before it starts", ws.ID)
		}
	}
	for id, n := range perDriver {
		if n > 1 {
			t.Errorf("driver %s has %d active sessions", id, n)
		}
	}
	for id, n := range perVehicle {
		if n > 1 {
			t.Errorf("vehicle %s has %d active sessions", id, n)
		}
	}
}

func assertCode(t *testing.T, err error, want *service.Error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", want.Code)
	}
	if !errors.Is(err, want) {
		t.Fatalf("expected %s, got %v", want.Code, err)
	}
}
