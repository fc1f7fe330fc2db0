// Package lock implements the Shared Risk Fabric's distributed locks
// (spec §4.6): a single atomic SET-if-not-exists with a TTL, no renewal,
// no fencing token. Lock holders are expected to finish within the TTL;
// per-code work is short, and the brokerage itself rejects duplicate
// orders within a minute, so a legitimate re-acquisition after expiry is
// an accepted risk, not a bug (spec §4.6, §5 "Shared resources").
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Locker struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Locker {
	return &Locker{rdb: rdb}
}

// TryAcquire attempts to set key to "1" with ttl, only if absent. It
// returns false (no error) if the lock is already held — the expected,
// frequent case under duplicate signals (spec §7: "Lock contention ...
// expected under duplicate signals").
func (l *Locker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock: acquire %s: %w", key, err)
	}
	return ok, nil
}

// Release deletes key, making the lock available again immediately. It is
// best-effort: callers do not treat a release failure as fatal, since the
// TTL will reclaim the lock regardless.
func (l *Locker) Release(ctx context.Context, key string) {
	l.rdb.Del(ctx, key)
}

// BuyTTL and SellTTL are the spec's fixed per-code lock durations (§6.2).
const (
	BuyTTL  = 180 * time.Second
	SellTTL = 30 * time.Second
)
