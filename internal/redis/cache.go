package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"fleettrack/internal/clock"
	"fleettrack/internal/domain"
)

// DefaultReportCacheTTL is used when a caller passes a zero TTL.
const DefaultReportCacheTTL = 2 * time.Minute

const dailyReportPrefix = "cache:report:daily:"

// ReportCache handles report caching in Redis.
type ReportCache struct {
	client *redis.Client
}

// NewReportCache creates a new ReportCache.
func NewReportCache(client *redis.Client) *ReportCache {
	return &ReportCache{client: client}
}

// GetDaily retrieves a cached daily report. Returns nil on a cache miss.
func (c *ReportCache) GetDaily(ctx context.Context, date clock.Date) (*domain.DailyReport, error) {
	data, err := c.client.Get(ctx, dailyReportPrefix+date.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var report domain.DailyReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// SetDaily stores a daily report. Degraded reports are never cached.
func (c *ReportCache) SetDaily(ctx context.Context, report *domain.DailyReport, ttl time.Duration) error {
	if report.Degraded {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultReportCacheTTL
	}

	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, dailyReportPrefix+report.Date.String(), data, ttl).Err()
}

// InvalidateDaily removes a cached daily report.
func (c *ReportCache) InvalidateDaily(ctx context.Context, date clock.Date) error {
	return c.client.Del(ctx, dailyReportPrefix+date.String()).Err()
}
