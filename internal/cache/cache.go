// Package cache wraps Redis as the CORE's typed cache (spec §4.6, §6.2):
// JSON-serialized records at deterministic keys with TTLs, generalized
// from the teacher's atomic-JSON-file pattern in internal/storage/storage.go
// to a Redis-backed equivalent every process can share.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Set JSON-encodes value and stores it at key with the given TTL. A ttl of
// zero means no expiry (e.g. emergency:trading_pause, watchlist:manual).
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Get decodes the value stored at key into dest. It returns (false, nil)
// if the key is absent, so callers can apply a documented fallback (e.g.
// model.DefaultTradingContext()) without treating a cache miss as an error.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache: unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Exists reports whether key is present, without decoding its value; used
// for presence-only flags like emergency:trading_pause.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache: exists %s: %w", key, err)
	}
	return n > 0, nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: delete %s: %w", key, err)
	}
	return nil
}

// HGetAll reads a hash stored at key (used for watchlist:manual's
// code -> minscore map).
func (c *Cache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: hgetall %s: %w", key, err)
	}
	return m, nil
}

// Cache key namespace (spec §6.2).
const (
	KeyWatchlistActive    = "watchlist:active"
	KeyMacroTradingCtx    = "macro:trading_context"
	KeyRegimeCurrent      = "regime:current"
	KeyPositionsLive      = "positions:live"
	KeyEmergencyPause     = "emergency:trading_pause"
	KeyWatchlistManual    = "watchlist:manual"
)

func KeyBuyLock(code string) string      { return "lock:buy:" + code }
func KeySellLock(code string) string     { return "lock:sell:" + code }
func KeyCooldownSell(code string) string { return "cooldown:sell:" + code }
func KeyCooldownStop(code string) string { return "cooldown:stoploss:" + code }

// KeyPositionMeta holds the locally-owned Position fields the brokerage
// balance doesn't carry (sector_group, high_watermark, stop_loss_price,
// scale_out_level, bought_at) — supplementing §6.2's cache table, whose
// "positions:live" entry is the Monitor's merged read view, not the
// write-side store the Buy/Sell Executors need (spec §4.3 "merged with
// local metadata").
func KeyPositionMeta(code string) string { return "position:meta:" + code }
func KeyCorrelation(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return "correlation:" + a + ":" + b
}
