package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleettrack/internal/clock"
	"fleettrack/internal/domain"
	"fleettrack/internal/metrics"
	"fleettrack/internal/redis"
	"fleettrack/internal/repository"
)

// SessionConfig tunes the session arbitrator.
type SessionConfig struct {
	// MaxRetries bounds re-runs after transient store failures.
	MaxRetries int

	// RetryBackoff is the delay before the first retry; it doubles per attempt.
	RetryBackoff time.Duration

	// TapDebounce rejects an identical (device, card) tap inside this window.
	// Zero disables debouncing.
	TapDebounce time.Duration
}

// SessionServiceDeps contains the collaborators of SessionService.
// TapGuard, Presence, ReportCache, Metrics and Logger are optional.
// Calendar maps instants to local dates for cache invalidation.
type SessionServiceDeps struct {
	Tx          repository.Transactor
	Devices     repository.DeviceRepository
	Vehicles    repository.VehicleRepository
	Drivers     repository.DriverRepository
	Sessions    repository.SessionRepository
	Clock       clock.Clock
	Calendar    *clock.Provider
	TapGuard    redis.TapGuardInterface
	Presence    redis.PresenceStoreInterface
	ReportCache redis.ReportCacheInterface
	Metrics     metrics.Recorder
	Logger      *slog.Logger
}

// SessionService arbitrates RFID taps and explicit start/end requests into
// work sessions, keeping at most one active session per driver and per vehicle.
type SessionService struct {
	runner      *txRunner
	devices     repository.DeviceRepository
	vehicles    repository.VehicleRepository
	drivers     repository.DriverRepository
	sessions    repository.SessionRepository
	clock       clock.Clock
	calendar    *clock.Provider
	tapGuard    redis.TapGuardInterface
	presence    redis.PresenceStoreInterface
	reportCache redis.ReportCacheInterface
	metrics     metrics.Recorder
	logger      *slog.Logger
	debounce    time.Duration
}

// NewSessionService creates a new SessionService.
func NewSessionService(deps SessionServiceDeps, cfg SessionConfig) *SessionService {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Calendar == nil {
		deps.Calendar = clock.NewProvider(clock.DefaultOffsetHours)
	}
	if deps.Clock == nil {
		deps.Clock = deps.Calendar
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &SessionService{
		runner: &txRunner{
			tx:         deps.Tx,
			maxRetries: cfg.MaxRetries,
			backoff:    cfg.RetryBackoff,
			metrics:    deps.Metrics,
			logger:     deps.Logger,
		},
		devices:     deps.Devices,
		vehicles:    deps.Vehicles,
		drivers:     deps.Drivers,
		sessions:    deps.Sessions,
		clock:       deps.Clock,
		calendar:    deps.Calendar,
		tapGuard:    deps.TapGuard,
		presence:    deps.Presence,
		reportCache: deps.ReportCache,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		debounce:    cfg.TapDebounce,
	}
}

// HandleTap toggles the work session of the driver owning rfidCode on the
// vehicle behind deviceID.
//
// A driver with an open session always has it closed, whichever vehicle the
// tap came from. Otherwise a session is opened, unless another driver holds
// the vehicle.
func (s *SessionService) HandleTap(ctx context.Context, rfidCode, deviceID string) (*domain.TapResult, error) {
	rfidCode = strings.TrimSpace(rfidCode)
	deviceID = strings.TrimSpace(deviceID)
	if rfidCode == "" {
		return nil, s.fail("handle_tap", ErrInvalidRFIDCode)
	}
	if deviceID == "" {
		return nil, s.fail("handle_tap", ErrInvalidDeviceID)
	}

	claimed, err := s.claimTap(ctx, deviceID, rfidCode)
	if err != nil {
		return nil, s.fail("handle_tap", err)
	}

	var result *domain.TapResult
	err = s.runner.run(ctx, "handle_tap", func(ctx context.Context) error {
		r, err := s.toggle(ctx, rfidCode, deviceID)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		if claimed {
			s.releaseTap(ctx, deviceID, rfidCode)
		}
		return nil, s.fail("handle_tap", err)
	}

	s.touch(ctx, deviceID)
	if result.Action == domain.TapActionEnded {
		s.invalidateReports(ctx, result.Session)
	}
	s.metrics.RecordTap(string(result.Action))
	s.logger.Info("tap handled",
		slog.String("action", string(result.Action)),
		slog.String("session_id", result.Session.ID),
		slog.String("driver_id", result.Session.DriverID),
		slog.String("vehicle_id", result.Session.VehicleID),
		slog.String("device_id", deviceID),
	)

	return result, nil
}

// toggle runs inside a transaction. Vehicle then driver rows are locked, in
// that order, before the active-session lookups.
func (s *SessionService) toggle(ctx context.Context, rfidCode, deviceID string) (*domain.TapResult, error) {
	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil, notFoundAs(err, ErrDeviceNotFound)
	}

	vehicle, err := s.vehicles.LockByID(ctx, device.VehicleID)
	if err != nil {
		return nil, notFoundAs(err, ErrDeviceNotFound)
	}
	if !vehicle.IsActive() {
		return nil, ErrVehicleInactive
	}

	driver, err := s.drivers.LockByRFIDCode(ctx, rfidCode)
	if err != nil {
		return nil, notFoundAs(err, ErrDriverNotFoundOrInactive)
	}
	if !driver.IsActive() {
		return nil, ErrDriverNotFoundOrInactive
	}

	driverActive, vehicleActive, err := s.activeSessions(ctx, driver.ID, vehicle.ID)
	if err != nil {
		return nil, err
	}

	switch {
	case driverActive != nil:
		if err := s.complete(ctx, driverActive); err != nil {
			return nil, err
		}
		return &domain.TapResult{Action: domain.TapActionEnded, Session: driverActive}, nil

	case vehicleActive != nil:
		return nil, ErrVehicleAlreadyInUse

	default:
		session, err := s.open(ctx, driver.ID, vehicle.ID)
		if err != nil {
			return nil, err
		}
		return &domain.TapResult{Action: domain.TapActionStarted, Session: session}, nil
	}
}

// StartSession explicitly opens a session for driverID on vehicleID.
func (s *SessionService) StartSession(ctx context.Context, driverID, vehicleID string) (*domain.WorkSession, error) {
	driverID = strings.TrimSpace(driverID)
	vehicleID = strings.TrimSpace(vehicleID)
	if driverID == "" {
		return nil, s.fail("start_session", ErrInvalidDriverID)
	}
	if vehicleID == "" {
		return nil, s.fail("start_session", ErrInvalidVehicleID)
	}

	var session *domain.WorkSession
	err := s.runner.run(ctx, "start_session", func(ctx context.Context) error {
		vehicle, err := s.vehicles.LockByID(ctx, vehicleID)
		if err != nil {
			return notFoundAs(err, ErrVehicleNotFound)
		}
		if !vehicle.IsActive() {
			return ErrVehicleInactive
		}

		driver, err := s.drivers.LockByID(ctx, driverID)
		if err != nil {
			return notFoundAs(err, ErrDriverNotFound)
		}
		if !driver.IsActive() {
			return ErrDriverInactive
		}

		driverActive, vehicleActive, err := s.activeSessions(ctx, driver.ID, vehicle.ID)
		if err != nil {
			return err
		}
		if driverActive != nil {
			return ErrDriverHasActiveSession
		}
		if vehicleActive != nil {
			return ErrVehicleAlreadyInUse
		}

		session, err = s.open(ctx, driver.ID, vehicle.ID)
		return err
	})
	if err != nil {
		return nil, s.fail("start_session", err)
	}

	s.logger.Info("session started",
		slog.String("session_id", session.ID),
		slog.String("driver_id", session.DriverID),
		slog.String("vehicle_id", session.VehicleID),
	)

	return session, nil
}

// EndSession explicitly closes the session with the given ID.
func (s *SessionService) EndSession(ctx context.Context, sessionID string) (*domain.WorkSession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, s.fail("end_session", ErrInvalidSessionID)
	}

	var session *domain.WorkSession
	err := s.runner.run(ctx, "end_session", func(ctx context.Context) error {
		ws, err := s.sessions.LockByID(ctx, sessionID)
		if err != nil {
			return notFoundAs(err, ErrSessionNotFound)
		}
		if !ws.IsActive() {
			return ErrSessionAlreadyCompleted
		}
		if err := s.complete(ctx, ws); err != nil {
			return err
		}
		session = ws
		return nil
	})
	if err != nil {
		return nil, s.fail("end_session", err)
	}

	s.invalidateReports(ctx, session)
	s.logger.Info("session ended",
		slog.String("session_id", session.ID),
		slog.String("driver_id", session.DriverID),
		slog.String("vehicle_id", session.VehicleID),
	)

	return session, nil
}

// GetSession retrieves a session by ID.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*domain.WorkSession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, classify(notFoundAs(err, ErrSessionNotFound))
	}

	return session, nil
}

// ListActiveSessions returns every open session, most recent first.
func (s *SessionService) ListActiveSessions(ctx context.Context) ([]*domain.WorkSession, error) {
	sessions, err := s.sessions.ListActive(ctx)
	if err != nil {
		return nil, classify(err)
	}

	return sessions, nil
}

// activeSessions looks up the open sessions of a driver and a vehicle and
// cross-checks them against each other.
func (s *SessionService) activeSessions(ctx context.Context, driverID, vehicleID string) (*domain.WorkSession, *domain.WorkSession, error) {
	driverActive, err := s.sessions.GetActiveByDriverID(ctx, driverID)
	if err != nil {
		return nil, nil, err
	}

	vehicleActive, err := s.sessions.GetActiveByVehicleID(ctx, vehicleID)
	if err != nil {
		return nil, nil, err
	}

	// The driver's own session on this vehicle must be found from both sides.
	if driverActive != nil && driverActive.VehicleID == vehicleID &&
		(vehicleActive == nil || vehicleActive.ID != driverActive.ID) {
		return nil, nil, fmt.Errorf("%w: session %s of vehicle %s not returned by vehicle lookup",
			repository.ErrInvariant, driverActive.ID, vehicleID)
	}
	if vehicleActive != nil && vehicleActive.DriverID == driverID &&
		(driverActive == nil || driverActive.ID != vehicleActive.ID) {
		return nil, nil, fmt.Errorf("%w: session %s of driver %s not returned by driver lookup",
			repository.ErrInvariant, vehicleActive.ID, driverID)
	}

	return driverActive, vehicleActive, nil
}

func (s *SessionService) open(ctx context.Context, driverID, vehicleID string) (*domain.WorkSession, error) {
	session := &domain.WorkSession{
		ID:             uuid.New().String(),
		DriverID:       driverID,
		VehicleID:      vehicleID,
		StartedAt:      s.clock.Now(),
		PassengerCount: 0,
		Status:         domain.SessionStatusActive,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

func (s *SessionService) complete(ctx context.Context, session *domain.WorkSession) error {
	session.Complete(s.clock.Now())

	if err := s.sessions.Complete(ctx, session); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// The row was locked as active a moment ago.
			return fmt.Errorf("%w: session %s vanished while locked", repository.ErrInvariant, session.ID)
		}
		return err
	}

	return nil
}

// claimTap reports whether this call claimed the (device, card) pair.
// Redis errors disable debouncing for the call rather than failing it.
func (s *SessionService) claimTap(ctx context.Context, deviceID, rfidCode string) (bool, error) {
	if s.tapGuard == nil || s.debounce <= 0 {
		return false, nil
	}

	ok, err := s.tapGuard.AcquireTap(ctx, deviceID, rfidCode, s.debounce)
	if err != nil {
		s.logger.Warn("tap debounce unavailable",
			slog.String("device_id", deviceID),
			slog.String("error", err.Error()),
		)
		return false, nil
	}
	if !ok {
		return false, ErrDuplicateTap
	}

	return true, nil
}

func (s *SessionService) releaseTap(ctx context.Context, deviceID, rfidCode string) {
	if err := s.tapGuard.ReleaseTap(context.WithoutCancel(ctx), deviceID, rfidCode); err != nil {
		s.logger.Warn("failed to release tap claim",
			slog.String("device_id", deviceID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *SessionService) touch(ctx context.Context, deviceID string) {
	if s.presence == nil {
		return
	}
	if err := s.presence.Touch(ctx, deviceID, s.clock.Now()); err != nil {
		s.logger.Warn("failed to record device presence",
			slog.String("device_id", deviceID),
			slog.String("error", err.Error()),
		)
	}
}

// invalidateReports drops cached daily reports of past dates that listed
// session while it was still open.
func (s *SessionService) invalidateReports(ctx context.Context, session *domain.WorkSession) {
	if s.reportCache == nil || session.EndedAt.IsZero() {
		return
	}

	last := s.calendar.DateOf(session.EndedAt)
	for d := s.calendar.DateOf(session.StartedAt); d.Before(last); d = d.AddDays(1) {
		if err := s.reportCache.InvalidateDaily(ctx, d); err != nil {
			s.logger.Warn("failed to invalidate cached report",
				slog.String("date", d.String()),
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()),
			)
			return
		}
	}
}

// fail classifies err, records it and logs it at a level matching its kind.
func (s *SessionService) fail(op string, err error) error {
	return reportFailure(s.logger, s.metrics, op, err)
}

func reportFailure(logger *slog.Logger, rec metrics.Recorder, op string, err error) error {
	err = classify(err)
	rec.RecordFailure(op, CodeOf(err))

	attrs := []any{
		slog.String("operation", op),
		slog.String("code", CodeOf(err)),
		slog.String("error", err.Error()),
	}

	switch KindOf(err) {
	case KindNotFound, KindPreconditionFailed, KindInvalidArgument:
		logger.Info("operation rejected", attrs...)
	case KindTransient:
		logger.Warn("operation failed on transient store error", attrs...)
	default:
		logger.Error("operation failed", attrs...)
	}

	return err
}

// notFoundAs maps repository.ErrNotFound to target and passes other errors through.
func notFoundAs(err error, target *Error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target
	}
	return err
}
