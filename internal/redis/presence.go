package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"fleettrack/internal/domain"
)

// devicePresenceKey is a sorted set of device ids scored by last-seen unix milliseconds.
const devicePresenceKey = "devices:last_seen"

// PresenceStore handles device last-seen bookkeeping in Redis.
type PresenceStore struct {
	client *redis.Client
}

// NewPresenceStore creates a new PresenceStore.
func NewPresenceStore(client *redis.Client) *PresenceStore {
	return &PresenceStore{client: client}
}

// Touch records that a device was heard from at the given instant.
// Older instants never overwrite newer ones.
func (s *PresenceStore) Touch(ctx context.Context, deviceID string, at time.Time) error {
	return s.client.ZAddGT(ctx, devicePresenceKey, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: deviceID,
	}).Err()
}

// LastSeen returns when a device was last heard from, or nil if never.
func (s *PresenceStore) LastSeen(ctx context.Context, deviceID string) (*domain.DevicePresence, error) {
	score, err := s.client.ZScore(ctx, devicePresenceKey, deviceID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	return &domain.DevicePresence{
		DeviceID:   deviceID,
		LastSeenAt: time.UnixMilli(int64(score)),
	}, nil
}

// SeenSince returns every device heard from at or after since, most recent first.
func (s *PresenceStore) SeenSince(ctx context.Context, since time.Time) ([]domain.DevicePresence, error) {
	results, err := s.client.ZRevRangeByScoreWithScores(ctx, devicePresenceKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	presences := make([]domain.DevicePresence, 0, len(results))
	for _, z := range results {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		presences = append(presences, domain.DevicePresence{
			DeviceID:   id,
			LastSeenAt: time.UnixMilli(int64(z.Score)),
		})
	}

	return presences, nil
}
