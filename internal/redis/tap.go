package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TapGuard suppresses the same card being presented twice at the same
// terminal within a short window.
type TapGuard struct {
	client *redis.Client
}

// NewTapGuard creates a new TapGuard.
func NewTapGuard(client *redis.Client) *TapGuard {
	return &TapGuard{client: client}
}

func tapKey(deviceID, rfidCode string) string {
	return fmt.Sprintf("tap:%s:%s", deviceID, rfidCode)
}

// AcquireTap claims the (device, card) pair for ttl.
// Returns false if the pair was already claimed.
func (g *TapGuard) AcquireTap(ctx context.Context, deviceID, rfidCode string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, tapKey(deviceID, rfidCode), "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseTap drops the claim so the tap can be retried immediately.
func (g *TapGuard) ReleaseTap(ctx context.Context, deviceID, rfidCode string) error {
	return g.client.Del(ctx, tapKey(deviceID, rfidCode)).Err()
}
