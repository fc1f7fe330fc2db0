// Package cooldown implements the Shared Risk Fabric's TTL-based exclusion
// sets (spec §4.6): presence of the key means the cooldown is active.
package cooldown

import (
	"context"
	"time"

	"github.com/korea-trading-core/core/internal/cache"
	"github.com/korea-trading-core/core/internal/model"
)

const (
	SellCooldownTTL     = 24 * time.Hour
	StopLossCooldownTTL = 3 * 24 * time.Hour
)

type Tracker struct {
	c *cache.Cache
}

func New(c *cache.Cache) *Tracker {
	return &Tracker{c: c}
}

// MarkSell records that code was sold, starting the 24h sell cooldown
// that blocks re-entry regardless of the reason for the sell.
func (t *Tracker) MarkSell(ctx context.Context, code model.StockCode) error {
	return t.c.Set(ctx, cache.KeyCooldownSell(code.String()), "1", SellCooldownTTL)
}

// MarkStopLoss records a stop-loss-family exit, starting the 3-day
// stop-loss cooldown. Only called for reasons where
// model.SellReason.StopLossFamily() is true.
func (t *Tracker) MarkStopLoss(ctx context.Context, code model.StockCode) error {
	return t.c.Set(ctx, cache.KeyCooldownStop(code.String()), "1", StopLossCooldownTTL)
}

// InSellCooldown reports whether code had a sell within the last 24h.
func (t *Tracker) InSellCooldown(ctx context.Context, code model.StockCode) (bool, error) {
	return t.c.Exists(ctx, cache.KeyCooldownSell(code.String()))
}

// InStopLossCooldown reports whether code is in the 3-day stop-loss
// cooldown set.
func (t *Tracker) InStopLossCooldown(ctx context.Context, code model.StockCode) (bool, error) {
	return t.c.Exists(ctx, cache.KeyCooldownStop(code.String()))
}
