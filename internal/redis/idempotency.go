package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore keeps recorded HTTP responses keyed by the client's
// Idempotency-Key so terminals can safely resend a tap.
type IdempotencyStore struct {
	client *redis.Client
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

func idempotencyKey(key string) string {
	return "idempotency:" + key
}

// Get returns the stored response for key, or nil if none was stored.
func (s *IdempotencyStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, idempotencyKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Reserve claims key with marker for ttl.
// Returns false if a marker or a recorded response already holds the key.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string, marker []byte, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, idempotencyKey(key), marker, ttl).Result()
}

// Set stores a response for key for ttl, replacing any reservation.
func (s *IdempotencyStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.client.Set(ctx, idempotencyKey(key), data, ttl).Err()
}

// Release drops the reservation so the client may retry.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKey(key)).Err()
}
