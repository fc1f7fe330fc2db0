// Package scanner implements the Buy Scanner (spec §4.2): it consumes
// ticks for watchlist symbols from the tick stream, maintains per-code
// minute-bar rings and derived indicators, evaluates the strategy
// predicates and the nine-gate risk chain, and publishes BuySignal
// messages. The consumer layout follows the §5 contract: one reader
// goroutine, a bounded queue, four workers, ACK-before-process.
package scanner

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/korea-trading-core/core/internal/bar"
	"github.com/korea-trading-core/core/internal/bus"
	"github.com/korea-trading-core/core/internal/cache"
	"github.com/korea-trading-core/core/internal/config"
	"github.com/korea-trading-core/core/internal/cooldown"
	"github.com/korea-trading-core/core/internal/indicator"
	"github.com/korea-trading-core/core/internal/metrics"
	"github.com/korea-trading-core/core/internal/model"
	"github.com/korea-trading-core/core/internal/riskgate"
	"github.com/korea-trading-core/core/internal/strategy"
	"github.com/korea-trading-core/core/internal/worker"
)

// Engine wires the scanner's moving parts together for one process.
type Engine struct {
	cfg       *config.Scanner
	log       zerolog.Logger
	bus       *bus.Bus
	cache     *cache.Cache
	cooldowns *cooldown.Tracker
	watchlist *Watchlist
	rings     *bar.Registry
	counter   *DailyCounter

	strategies []strategy.Predicate

	mu         sync.Mutex
	lastSignal map[model.StockCode]time.Time

	consumer string
}

func NewEngine(cfg *config.Scanner, log zerolog.Logger, b *bus.Bus, c *cache.Cache, wl *Watchlist) *Engine {
	return &Engine{
		cfg:        cfg,
		log:        log,
		bus:        b,
		cache:      c,
		cooldowns:  cooldown.New(c),
		watchlist:  wl,
		rings:      bar.NewRegistry(),
		counter:    NewDailyCounter(),
		strategies: strategy.All(cfg),
		lastSignal: make(map[model.StockCode]time.Time),
		consumer:   "scanner-" + uuid.NewString()[:8],
	}
}

// Run blocks until ctx is cancelled: consumer-group setup with a bounded
// startup retry, the reader/queue/worker pool, the 5-minute watchlist
// reload, and the 60s pending-entries reclaim.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.ensureGroupWithRetry(ctx); err != nil {
		return err
	}

	if err := e.watchlist.Reload(ctx); err != nil {
		e.log.Warn().Str("event", "watchlist_initial_reload_failed").Str("reason", err.Error()).Send()
	}

	sched := cron.New()
	sched.Schedule(cron.Every(time.Duration(e.cfg.WatchlistReloadSec)*time.Second), cron.FuncJob(func() {
		if err := e.watchlist.Reload(ctx); err != nil {
			e.log.Warn().Str("event", "watchlist_reload_failed").Str("reason", err.Error()).Send()
		}
	}))
	sched.Start()
	defer sched.Stop()

	go bus.RunReclaimLoop(ctx, e.bus, bus.StreamTicks, bus.GroupScanner, e.consumer,
		time.Minute, 5*time.Minute, func(ctx context.Context, payload []byte) error {
			return e.HandleTick(ctx, payload)
		})

	pool := &worker.Pool{
		Component:     "scanner",
		Workers:       e.cfg.WorkerCount,
		QueueCapacity: e.cfg.QueueCapacity,
		RetryStartup:  30 * time.Second,
		Read: func(ctx context.Context) ([]worker.Job, error) {
			msgs, err := e.bus.ReadBatch(ctx, bus.StreamTicks, bus.ConsumeOptions{
				Group:     bus.GroupScanner,
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

// ensureGroupWithRetry retries group creation for up to 30s, covering the
// bus's BusyLoadingError window after a Redis restart (spec §4.2).
func (e *Engine) ensureGroupWithRetry(ctx context.Context) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		err := e.bus.EnsureGroup(ctx, bus.StreamTicks, bus.GroupScanner)
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

// HandleTick is the per-message pipeline: decode, validate, aggregate,
// evaluate strategies and gates, publish at most one signal.
func (e *Engine) HandleTick(ctx context.Context, payload []byte) error {
	var tick model.PriceTick
	if err := json.Unmarshal(payload, &tick); err != nil {
		return e.bus.DeadLetter(ctx, bus.StreamTicks, payload, "decode: "+err.Error())
	}
	if err := tick.Validate(); err != nil {
		return e.bus.DeadLetter(ctx, bus.StreamTicks, payload, "validate: "+err.Error())
	}

	entry, onList := e.watchlist.Lookup(tick.StockCode)
	if !onList {
		return nil
	}

	ring := e.rings.Get(tick.StockCode)
	ring.ApplyTick(tick)
	bars := ring.Bars()
	if len(bars) < e.cfg.MinRequiredBars {
		return nil
	}

	tctx := e.tradingContext(ctx)
	now := tick.Timestamp

	closes := bar.Closes(bars)
	volumes := bar.Volumes(bars)
	rsi := indicator.RSI(closes, 14)
	vwapF := indicator.VWAP(closes, volumes)
	var vwap *decimal.Decimal
	if vwapF != nil {
		d := decimal.NewFromFloat(*vwapF)
		vwap = &d
	}

	for _, pred := range e.strategies {
		cand, hit := pred(e.cfg, bars, entry, tctx, now)
		if !hit {
			continue
		}

		verdict := riskgate.Evaluate(e.cfg, riskgate.Input{
			Now:                now,
			Entry:              entry,
			SignalType:         cand.SignalType,
			Regime:             tctx.Regime,
			CurrentPrice:       cand.Price,
			VWAP:               vwap,
			RSI:                rsi,
			DailyBuyCount:      e.counter.Count(now),
			LastSignalAt:       e.lastSignalAt(tick.StockCode),
			InStopLossCooldown: e.inCooldown(ctx, e.cooldowns.InStopLossCooldown, tick.StockCode),
			InSellCooldown:     e.inCooldown(ctx, e.cooldowns.InSellCooldown, tick.StockCode),
		})
		if !verdict.Pass {
			metrics.RiskGateRejections.WithLabelValues(gateLabel(verdict.Reason)).Inc()
			e.log.Info().
				Str("event", "signal_rejected").
				Str("stock_code", tick.StockCode.String()).
				Str("signal_type", string(cand.SignalType)).
				Str("reason", verdict.Reason).
				Send()
			return nil
		}

		return e.publish(ctx, entry, cand, tctx, rsi, vwap, now)
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, entry model.WatchlistEntry, cand strategy.Candidate, tctx model.TradingContext, rsi *float64, vwap *decimal.Decimal, now time.Time) error {
	signal, err := model.NewBuySignal(entry, cand.SignalType, cand.Price, tctx.Regime, model.SourceScanner, clampMultiplier(tctx.PositionMultiplier), now)
	if err != nil {
		e.log.Info().Str("event", "signal_rejected").Str("stock_code", entry.StockCode.String()).Str("reason", err.Error()).Send()
		return nil
	}
	if cand.RSI != nil {
		signal.RSIValue = cand.RSI
	} else {
		signal.RSIValue = rsi
	}
	signal.VolumeRatio = cand.VolumeRatio
	signal.VWAP = vwap

	started := time.Now()
	if _, err := e.bus.Publish(ctx, bus.StreamBuySignals, signal, bus.MaxLenApprox); err != nil {
		return err
	}

	e.mu.Lock()
	e.lastSignal[entry.StockCode] = now
	e.mu.Unlock()
	e.counter.Inc(now)

	metrics.SignalsPublished.WithLabelValues(string(cand.SignalType)).Inc()
	e.log.Info().
		Str("event", "signal_published").
		Str("stock_code", entry.StockCode.String()).
		Str("signal_type", string(cand.SignalType)).
		Dur("duration_ms", time.Since(started)).
		Send()
	return nil
}

// tradingContext reads the live macro context on every tick batch; a miss
// falls back to the documented default (spec §3 TradingContext).
func (e *Engine) tradingContext(ctx context.Context) model.TradingContext {
	var tctx model.TradingContext
	found, err := e.cache.Get(ctx, cache.KeyMacroTradingCtx, &tctx)
	if err != nil || !found {
		return model.DefaultTradingContext()
	}
	return tctx
}

func (e *Engine) lastSignalAt(code model.StockCode) *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.lastSignal[code]; ok {
		return &t
	}
	return nil
}

func (e *Engine) inCooldown(ctx context.Context, check func(context.Context, model.StockCode) (bool, error), code model.StockCode) bool {
	active, err := check(ctx, code)
	if err != nil {
		// Fail closed: an unreadable cooldown set blocks entries rather
		// than risking a re-entry the cooldown was meant to prevent.
		return true
	}
	return active
}

func clampMultiplier(m float64) float64 {
	if m < 0.3 {
		return 0.3
	}
	if m > 2.0 {
		return 2.0
	}
	return m
}

// gateLabel reduces a verdict reason like "RSI_GUARD 80.0 >= 75.0" to its
// leading token for bounded metric cardinality.
func gateLabel(reason string) string {
	for i := 0; i < len(reason); i++ {
		if reason[i] == ' ' {
			return reason[:i]
		}
	}
	return reason
}
