package service

import (
	"context"
	"strings"
	"time"

	"fleettrack/internal/clock"
	"fleettrack/internal/domain"
	"fleettrack/internal/redis"
	"fleettrack/internal/repository"
)

// DeviceService handles device lookups.
type DeviceService struct {
	devices  repository.DeviceRepository
	presence redis.PresenceStoreInterface
	clock    clock.Clock
}

// NewDeviceService creates a new DeviceService. presence may be nil.
func NewDeviceService(devices repository.DeviceRepository, presence redis.PresenceStoreInterface, clk clock.Clock) *DeviceService {
	if clk == nil {
		clk = clock.NewProvider(clock.DefaultOffsetHours)
	}
	return &DeviceService{
		devices:  devices,
		presence: presence,
		clock:    clk,
	}
}

// Presence returns when a device was last heard from.
// LastSeenAt is zero if the device never tapped or counted a boarding.
func (s *DeviceService) Presence(ctx context.Context, deviceID string) (*domain.DevicePresence, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, ErrInvalidDeviceID
	}

	if _, err := s.devices.GetByID(ctx, deviceID); err != nil {
		return nil, classify(notFoundAs(err, ErrDeviceNotFound))
	}

	presence := &domain.DevicePresence{DeviceID: deviceID}
	if s.presence == nil {
		return presence, nil
	}

	seen, err := s.presence.LastSeen(ctx, deviceID)
	if err != nil {
		return nil, ErrTransientStore.withCause(err)
	}
	if seen != nil {
		presence.LastSeenAt = seen.LastSeenAt
	}

	return presence, nil
}

// SeenWithin lists devices heard from during the last window, most recent first.
func (s *DeviceService) SeenWithin(ctx context.Context, window time.Duration) ([]domain.DevicePresence, error) {
	if window <= 0 {
		return nil, ErrInvalidDuration
	}
	if s.presence == nil {
		return []domain.DevicePresence{}, nil
	}

	seen, err := s.presence.SeenSince(ctx, s.clock.Now().Add(-window))
	if err != nil {
		return nil, ErrTransientStore.withCause(err)
	}
	if seen == nil {
		seen = []domain.DevicePresence{}
	}

	return seen, nil
}
