package monitor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/korea-trading-core/core/internal/cache"
	"github.com/korea-trading-core/core/internal/model"
)

var hundred = decimal.NewFromInt(100)

// livePositions is the positions:live cache payload (spec §6.2).
type livePositions struct {
	Positions []model.Position `json:"positions"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Reconcile reloads the authoritative brokerage balance and merges it
// with locally owned metadata (spec §4.3 "Reconciliation"): codes the
// brokerage no longer holds are purged; codes the brokerage reports but
// local metadata doesn't know get minimal metadata with high_watermark
// seeded from the current price. The merged view is published to
// positions:live and every held code is (re)subscribed for live ticks;
// codes purged from the view are not unsubscribed.
func (e *Engine) Reconcile(ctx context.Context) error {
	balance, err := e.gateway.Balance(ctx)
	if err != nil {
		return err
	}

	merged := make(map[model.StockCode]model.Position, len(balance.Positions))
	for _, held := range balance.Positions {
		meta, found, err := e.loadMeta(ctx, held.StockCode)
		if err != nil {
			e.log.Warn().Str("event", "meta_load_failed").Str("stock_code", held.StockCode.String()).Str("reason", err.Error()).Send()
		}
		pos := held
		if found {
			pos.SectorGroup = meta.SectorGroup
			pos.HighWaterMark = meta.HighWaterMark
			pos.StopLossPrice = meta.StopLossPrice
			pos.BoughtAt = meta.BoughtAt
			pos.ScaleOutLevel = meta.ScaleOutLevel
			pos.Uncertain = meta.Uncertain
		} else {
			pos.HighWaterMark = e.currentPriceOrAvg(ctx, held)
			pos.BoughtAt = time.Now()
			if err := e.cache.Set(ctx, cache.KeyPositionMeta(pos.StockCode.String()), pos, 0); err != nil {
				e.log.Warn().Str("event", "meta_create_failed").Str("stock_code", pos.StockCode.String()).Str("reason", err.Error()).Send()
			}
			e.log.Info().Str("event", "position_discovered").Str("stock_code", pos.StockCode.String()).Send()
		}
		merged[pos.StockCode] = pos
	}

	e.mu.Lock()
	var purged []model.StockCode
	for code := range e.positions {
		if _, stillHeld := merged[code]; !stillHeld {
			purged = append(purged, code)
		}
	}
	e.positions = merged
	e.mu.Unlock()

	for _, code := range purged {
		if err := e.cache.Delete(ctx, cache.KeyPositionMeta(code.String())); err != nil {
			e.log.Warn().Str("event", "meta_purge_failed").Str("stock_code", code.String()).Str("reason", err.Error()).Send()
		}
		e.log.Info().Str("event", "position_purged").Str("stock_code", code.String()).Str("reason", "not in brokerage record").Send()
	}

	live := livePositions{Positions: make([]model.Position, 0, len(merged)), UpdatedAt: time.Now()}
	for _, p := range merged {
		live.Positions = append(live.Positions, p)
	}
	if err := e.cache.Set(ctx, cache.KeyPositionsLive, live, 60*time.Second); err != nil {
		e.log.Warn().Str("event", "positions_live_write_failed").Str("reason", err.Error()).Send()
	}

	if len(merged) > 0 {
		codes := make([]model.StockCode, 0, len(merged))
		for c := range merged {
			codes = append(codes, c)
		}
		if err := e.gateway.Subscribe(ctx, codes); err != nil {
			e.log.Warn().Str("event", "subscribe_failed").Str("reason", err.Error()).Send()
		}
	}
	return nil
}

func (e *Engine) loadMeta(ctx context.Context, code model.StockCode) (model.Position, bool, error) {
	var meta model.Position
	found, err := e.cache.Get(ctx, cache.KeyPositionMeta(code.String()), &meta)
	return meta, found, err
}

// currentPriceOrAvg seeds a discovered position's high watermark from a
// live snapshot, falling back to the average buy price when the snapshot
// is unavailable.
func (e *Engine) currentPriceOrAvg(ctx context.Context, pos model.Position) decimal.Decimal {
	snap, err := e.gateway.Snapshot(ctx, pos.StockCode)
	if err != nil || snap.Price.LessThanOrEqual(decimal.Zero) {
		return pos.AverageBuyPrice
	}
	return snap.Price
}
