// Package monitor implements the Price Monitor (spec §4.3): for every
// held position it evaluates the ordered exit chain on each tick and
// publishes SellOrder messages, reconciling its position view against
// the authoritative brokerage balance every 30 seconds. The consumer
// layout mirrors the scanner's (§5): one reader, a bounded queue, four
// workers, ACK-before-process.
package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/korea-trading-core/core/internal/bar"
	"github.com/korea-trading-core/core/internal/bus"
	"github.com/korea-trading-core/core/internal/cache"
	"github.com/korea-trading-core/core/internal/config"
	"github.com/korea-trading-core/core/internal/exitchain"
	"github.com/korea-trading-core/core/internal/gatewayclient"
	"github.com/korea-trading-core/core/internal/indicator"
	"github.com/korea-trading-core/core/internal/metrics"
	"github.com/korea-trading-core/core/internal/model"
	"github.com/korea-trading-core/core/internal/worker"
)

// Engine holds the monitor's live position view and evaluation machinery.
type Engine struct {
	cfg     *config.Monitor
	log     zerolog.Logger
	bus     *bus.Bus
	cache   *cache.Cache
	gateway *gatewayclient.Client
	rings   *bar.Registry

	mu        sync.RWMutex
	positions map[model.StockCode]model.Position

	consumer string
}

func NewEngine(cfg *config.Monitor, log zerolog.Logger, b *bus.Bus, c *cache.Cache, gw *gatewayclient.Client) *Engine {
	return &Engine{
		cfg:       cfg,
		log:       log,
		bus:       b,
		cache:     c,
		gateway:   gw,
		rings:     bar.NewRegistry(),
		positions: make(map[model.StockCode]model.Position),
		consumer:  "monitor-" + uuid.NewString()[:8],
	}
}

// Run blocks until ctx is cancelled: initial reconciliation, the periodic
// 30s reconcile, the pending-entries reclaim, and the tick worker pool.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.ensureGroupWithRetry(ctx); err != nil {
		return err
	}

	if err := e.Reconcile(ctx); err != nil {
		e.log.Warn().Str("event", "initial_reconcile_failed").Str("reason", err.Error()).Send()
	}

	sched := cron.New()
	sched.Schedule(cron.Every(time.Duration(e.cfg.ReconcileIntervalSec)*time.Second), cron.FuncJob(func() {
		if err := e.Reconcile(ctx); err != nil {
			e.log.Warn().Str("event", "reconcile_failed").Str("reason", err.Error()).Send()
		}
	}))
	sched.Start()
	defer sched.Stop()

	go bus.RunReclaimLoop(ctx, e.bus, bus.StreamTicks, bus.GroupMonitor, e.consumer,
		time.Minute, 5*time.Minute, func(ctx context.Context, payload []byte) error {
			return e.HandleTick(ctx, payload)
		})

	pool := &worker.Pool{
		Component:     "monitor",
		Workers:       e.cfg.WorkerCount,
		QueueCapacity: e.cfg.QueueCapacity,
		RetryStartup:  30 * time.Second,
		Read: func(ctx context.Context) ([]worker.Job, error) {
			msgs, err := e.bus.ReadBatch(ctx, bus.StreamTicks, bus.ConsumeOptions{
				Group:     bus.GroupMonitor,
				Consumer:  e.consumer,
				BatchSize: int64(e.cfg.ReadBatchSize),
				Block:     2 * time.Second,
			})
			if err != nil {
				return nil, err
			}
			jobs := make([]worker.Job, 0, len(msgs))
			for _, m := range msgs {
				payload, perr := bus.Payload(m)
				jobs = append(jobs, worker.Job{Stream: bus.StreamTicks, ID: m.ID, Payload: payload, Err: perr})
			}
			return jobs, nil
		},
		Handle: func(ctx context.Context, job worker.Job) {
			if job.Err != nil {
				_ = e.bus.DeadLetter(ctx, bus.StreamTicks, job.Payload, job.Err.Error())
				return
			}
			if err := e.HandleTick(ctx, job.Payload); err != nil {
				e.log.Warn().Str("event", "tick_failed").Str("reason", err.Error()).Send()
			}
		},
	}
	return pool.Run(ctx)
}

func (e *Engine) ensureGroupWithRetry(ctx context.Context) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		err := e.bus.EnsureGroup(ctx, bus.StreamTicks, bus.GroupMonitor)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (e *Engine) position(code model.StockCode) (model.Position, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.positions[code]
	return p, ok
}

// HandleTick evaluates the exit chain for a tick on a held code.
func (e *Engine) HandleTick(ctx context.Context, payload []byte) error {
	var tick model.PriceTick
	if err := json.Unmarshal(payload, &tick); err != nil {
		return e.bus.DeadLetter(ctx, bus.StreamTicks, payload, "decode: "+err.Error())
	}
	if err := tick.Validate(); err != nil {
		return e.bus.DeadLetter(ctx, bus.StreamTicks, payload, "validate: "+err.Error())
	}

	pos, held := e.position(tick.StockCode)
	if !held {
		return nil
	}

	ring := e.rings.Get(tick.StockCode)
	ring.ApplyTick(tick)

	pos = e.raiseHighWaterMark(ctx, pos, tick)

	pctx := e.buildContext(ctx, pos, tick, ring.Bars())
	result, fired := exitchain.Evaluate(e.cfg, pctx)
	if !fired {
		return nil
	}
	return e.emit(ctx, pos, tick, pctx, result)
}

// raiseHighWaterMark updates high_watermark in place and persists it
// opportunistically — a lost update costs at most one tick's worth of
// watermark, recovered on the next tick above it.
func (e *Engine) raiseHighWaterMark(ctx context.Context, pos model.Position, tick model.PriceTick) model.Position {
	if !tick.Price.GreaterThan(pos.HighWaterMark) {
		return pos
	}
	pos.HighWaterMark = tick.Price

	e.mu.Lock()
	if cur, ok := e.positions[pos.StockCode]; ok && tick.Price.GreaterThan(cur.HighWaterMark) {
		cur.HighWaterMark = tick.Price
		e.positions[pos.StockCode] = cur
	}
	e.mu.Unlock()

	if err := e.cache.Set(ctx, cache.KeyPositionMeta(pos.StockCode.String()), pos, 0); err != nil {
		e.log.Warn().Str("event", "watermark_persist_failed").Str("stock_code", pos.StockCode.String()).Str("reason", err.Error()).Send()
	}
	return pos
}

func (e *Engine) buildContext(ctx context.Context, pos model.Position, tick model.PriceTick, bars []model.MinuteBar) exitchain.PositionContext {
	pctx := exitchain.PositionContext{
		Position:       pos,
		CurrentPrice:   tick.Price,
		TradingContext: e.tradingContext(ctx),
		Now:            tick.Timestamp,
	}
	if len(bars) == 0 {
		return pctx
	}
	closes := bar.Closes(bars)
	highs := bar.Highs(bars)
	lows := bar.Lows(bars)
	pctx.RSI = indicator.RSI(closes, 14)
	pctx.ATR = indicator.ATR(highs, lows, closes, 14)
	pctx.MA5 = indicator.SMA(closes, 5)
	pctx.MA20 = indicator.SMA(closes, 20)
	if len(closes) > 1 {
		pctx.PrevMA5 = indicator.SMA(closes[:len(closes)-1], 5)
		pctx.PrevMA20 = indicator.SMA(closes[:len(closes)-1], 20)
	}
	return pctx
}

func (e *Engine) tradingContext(ctx context.Context) model.TradingContext {
	var tctx model.TradingContext
	found, err := e.cache.Get(ctx, cache.KeyMacroTradingCtx, &tctx)
	if err != nil || !found {
		return model.DefaultTradingContext()
	}
	return tctx
}

// emit turns a fired rule into a published SellOrder. For scale-outs the
// advanced cursor is persisted BEFORE the publish, so a crash between the
// two cannot re-fire the same level (spec §4.3 "Scale-out bookkeeping").
func (e *Engine) emit(ctx context.Context, pos model.Position, tick model.PriceTick, pctx exitchain.PositionContext, result exitchain.Result) error {
	qty := int64(float64(pos.Quantity) * result.Pct)
	if qty <= 0 {
		qty = 1
	}
	if qty > pos.Quantity {
		qty = pos.Quantity
	}

	if result.Reason == model.ScaleOut {
		pos.ScaleOutLevel = result.NewScaleOutLevel
		if err := e.cache.Set(ctx, cache.KeyPositionMeta(pos.StockCode.String()), pos, 0); err != nil {
			return err
		}
		e.mu.Lock()
		if cur, ok := e.positions[pos.StockCode]; ok {
			cur.ScaleOutLevel = result.NewScaleOutLevel
			e.positions[pos.StockCode] = cur
		}
		e.mu.Unlock()
	}

	profitPct, _ := pos.ProfitPct(tick.Price).Mul(hundred).Float64()
	holdingDays := pos.HoldingDays(tick.Timestamp)
	buyPrice := pos.AverageBuyPrice
	order := model.SellOrder{
		StockCode:    pos.StockCode,
		StockName:    pos.StockName,
		SellReason:   result.Reason,
		CurrentPrice: tick.Price,
		Quantity:     qty,
		Timestamp:    tick.Timestamp,
		BuyPrice:     &buyPrice,
		ProfitPct:    &profitPct,
		HoldingDays:  &holdingDays,
	}

	if _, err := e.bus.Publish(ctx, bus.StreamSellOrders, order, bus.MaxLenApprox); err != nil {
		return err
	}
	metrics.ExitRuleFired.WithLabelValues(string(result.Reason)).Inc()
	e.log.Info().
		Str("event", "sell_order_published").
		Str("stock_code", pos.StockCode.String()).
		Str("reason", string(result.Reason)).
		Int64("quantity", qty).
		Float64("profit_pct", profitPct).
		Send()
	return nil
}
