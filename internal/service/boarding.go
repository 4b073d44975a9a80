package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"fleettrack/internal/clock"
	"fleettrack/internal/domain"
	"fleettrack/internal/metrics"
	"fleettrack/internal/redis"
	"fleettrack/internal/repository"
)

// BoardingServiceDeps contains the collaborators of BoardingService.
// Presence, Metrics and Logger are optional.
type BoardingServiceDeps struct {
	Tx       repository.Transactor
	Devices  repository.DeviceRepository
	Sessions repository.SessionRepository
	Events   repository.PassengerEventRepository
	Clock    clock.Clock
	Presence redis.PresenceStoreInterface
	Metrics  metrics.Recorder
	Logger   *slog.Logger
}

// BoardingService tallies passengers against the active session of a vehicle.
type BoardingService struct {
	runner   *txRunner
	devices  repository.DeviceRepository
	sessions repository.SessionRepository
	events   repository.PassengerEventRepository
	clock    clock.Clock
	presence redis.PresenceStoreInterface
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewBoardingService creates a new BoardingService.
func NewBoardingService(deps BoardingServiceDeps, cfg SessionConfig) *BoardingService {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = clock.NewProvider(clock.DefaultOffsetHours)
	}

	return &BoardingService{
		runner: &txRunner{
			tx:         deps.Tx,
			maxRetries: max(cfg.MaxRetries, 0),
			backoff:    cfg.RetryBackoff,
			metrics:    deps.Metrics,
			logger:     deps.Logger,
		},
		devices:  deps.Devices,
		sessions: deps.Sessions,
		events:   deps.Events,
		clock:    deps.Clock,
		presence: deps.Presence,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// RecordBoarding appends a passenger event to the active session of the
// vehicle behind deviceID and bumps its passenger count in the same transaction.
func (s *BoardingService) RecordBoarding(ctx context.Context, rfidCode, deviceID string) (*domain.Boarding, error) {
	rfidCode = strings.TrimSpace(rfidCode)
	deviceID = strings.TrimSpace(deviceID)
	if rfidCode == "" {
		return nil, reportFailure(s.logger, s.metrics, "record_boarding", ErrInvalidRFIDCode)
	}
	if deviceID == "" {
		return nil, reportFailure(s.logger, s.metrics, "record_boarding", ErrInvalidDeviceID)
	}

	var boarding *domain.Boarding
	err := s.runner.run(ctx, "record_boarding", func(ctx context.Context) error {
		device, err := s.devices.GetByID(ctx, deviceID)
		if err != nil {
			return notFoundAs(err, ErrDeviceNotFound)
		}

		session, err := s.sessions.GetActiveByVehicleID(ctx, device.VehicleID)
		if err != nil {
			return err
		}
		if session == nil {
			return ErrNoActiveSessionForVehicle
		}

		count, err := s.sessions.IncrementPassengerCount(ctx, session.ID)
		if err != nil {
			return notFoundAs(err, ErrNoActiveSessionForVehicle)
		}

		event := &domain.PassengerEvent{
			ID:        uuid.New().String(),
			SessionID: session.ID,
			RFIDCode:  rfidCode,
			CreatedAt: s.clock.Now(),
		}
		if err := s.events.Create(ctx, event); err != nil {
			return err
		}

		boarding = &domain.Boarding{
			Event:          event,
			VehicleID:      device.VehicleID,
			PassengerCount: count,
		}
		return nil
	})
	if err != nil {
		return nil, reportFailure(s.logger, s.metrics, "record_boarding", err)
	}

	if s.presence != nil {
		if err := s.presence.Touch(ctx, deviceID, boarding.Event.CreatedAt); err != nil {
			s.logger.Warn("failed to record device presence",
				slog.String("device_id", deviceID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.metrics.RecordBoarding()
	s.logger.Debug("boarding recorded",
		slog.String("session_id", boarding.Event.SessionID),
		slog.String("vehicle_id", boarding.VehicleID),
		slog.Int("passenger_count", boarding.PassengerCount),
	)

	return boarding, nil
}
