package redis

import (
	"context"
	"time"

	"fleettrack/internal/clock"
	"fleettrack/internal/domain"
)

// TapGuardInterface defines the interface for suppressing repeated taps.
type TapGuardInterface interface {
	AcquireTap(ctx context.Context, deviceID, rfidCode string, ttl time.Duration) (bool, error)
	ReleaseTap(ctx context.Context, deviceID, rfidCode string) error
}

// PresenceStoreInterface defines the interface for device last-seen bookkeeping.
type PresenceStoreInterface interface {
	Touch(ctx context.Context, deviceID string, at time.Time) error
	LastSeen(ctx context.Context, deviceID string) (*domain.DevicePresence, error)
	SeenSince(ctx context.Context, since time.Time) ([]domain.DevicePresence, error)
}

// ReportCacheInterface defines the interface for caching daily reports.
type ReportCacheInterface interface {
	GetDaily(ctx context.Context, date clock.Date) (*domain.DailyReport, error)
	SetDaily(ctx context.Context, report *domain.DailyReport, ttl time.Duration) error
	InvalidateDaily(ctx context.Context, date clock.Date) error
}

// IdempotencyStoreInterface defines the interface for recorded HTTP responses.
type IdempotencyStoreInterface interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Reserve(ctx context.Context, key string, marker []byte, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// Ensure concrete types implement interfaces.
var (
	_ TapGuardInterface      = (*TapGuard)(nil)
	_ PresenceStoreInterface = (*PresenceStore)(nil)
	_ ReportCacheInterface   = (*ReportCache)(nil)

	_ IdempotencyStoreInterface = (*IdempotencyStore)(nil)
)
