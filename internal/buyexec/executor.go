// Package buyexec implements the Buy Executor (spec §4.4): it consumes
// BuySignals, enforces the nine ordered pre-order checks, sizes the
// position, places the order through the Gateway, confirms the fill, and
// persists the resulting Position. Unlike the scanner's pure
// at-most-once consumption, this executor defers its ACK so that
// brokerage transport failures stay pending and are re-delivered by the
// 300s pending-entries recovery (spec §4.4 "Failure classification").
package buyexec

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/korea-trading-core/core/internal/broker/confirm"
	"github.com/korea-trading-core/core/internal/bus"
	"github.com/korea-trading-core/core/internal/cache"
	"github.com/korea-trading-core/core/internal/config"
	"github.com/korea-trading-core/core/internal/errs"
	"github.com/korea-trading-core/core/internal/guard"
	"github.com/korea-trading-core/core/internal/keyedmutex"
	"github.com/korea-trading-core/core/internal/metrics"
	"github.com/korea-trading-core/core/internal/model"
	"github.com/korea-trading-core/core/internal/telegram"
	"github.com/korea-trading-core/core/internal/worker"
)

// Gateway is the slice of the Gateway HTTP client this executor needs;
// satisfied by *gatewayclient.Client in production and a mock in tests.
type Gateway interface {
	IsTradingDay(ctx context.Context, date string) (model.TradingDayStatus, error)
	Balance(ctx context.Context) (model.PortfolioState, error)
	Cash(ctx context.Context) (model.CashStatus, error)
	PlaceBuy(ctx context.Context, req model.OrderRequest) (model.OrderResult, error)
	OrderStatus(ctx context.Context, orderNo string) (model.OrderStatus, error)
	Cancel(ctx context.Context, orderNo string) (model.CancelResult, error)
}

// Locks is the distributed lock surface (internal/lock.Locker).
type Locks interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string)
}

// Cooldowns is the cooldown surface (internal/cooldown.Tracker).
type Cooldowns interface {
	InSellCooldown(ctx context.Context, code model.StockCode) (bool, error)
	InStopLossCooldown(ctx context.Context, code model.StockCode) (bool, error)
}

// TradeLog is the local append-only trade store (internal/storage.Store).
type TradeLog interface {
	HasRecentTrade(ctx context.Context, code model.StockCode, now time.Time, window time.Duration) (bool, error)
	RecordTrade(ctx context.Context, rec model.TradeRecord) error
}

// StateCache is the typed-cache surface (internal/cache.Cache).
type StateCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Correlator is the correlation guard (internal/correlation.Checker).
type Correlator interface {
	Pearson(ctx context.Context, a, b model.StockCode) (float64, error)
}

// Executor processes BuySignals one at a time per code, fully parallel
// across codes.
type Executor struct {
	cfg         *config.BuyExec
	log         zerolog.Logger
	bus         *bus.Bus
	cache       StateCache
	locks       Locks
	cooldowns   Cooldowns
	trades      TradeLog
	gateway     Gateway
	correlation Correlator
	codes       *keyedmutex.Map

	mu       sync.Mutex
	buyDay   string
	buyCount int

	consumer string
}

func New(cfg *config.BuyExec, log zerolog.Logger, b *bus.Bus, c StateCache, locks Locks, cd Cooldowns, trades TradeLog, gw Gateway, corr Correlator) *Executor {
	return &Executor{
		cfg:         cfg,
		log:         log,
		bus:         b,
		cache:       c,
		locks:       locks,
		cooldowns:   cd,
		trades:      trades,
		gateway:     gw,
		correlation: corr,
		codes:       keyedmutex.New(),
		consumer:    "buyexec-" + uuid.NewString()[:8],
	}
}

// Run blocks until ctx is cancelled: consumer-group setup, the
// deferred-ACK worker pool, and the pending-entries reclaim.
func (x *Executor) Run(ctx context.Context) error {
	if err := x.ensureGroupWithRetry(ctx); err != nil {
		return err
	}

	go bus.RunReclaimLoop(ctx, x.bus, bus.StreamBuySignals, bus.GroupBuyExecutor, x.consumer,
		time.Minute, 5*time.Minute, func(ctx context.Context, payload []byte) error {
			// Re-delivered signals re-run every pre-condition, so an
			// already-processed one is rejected as a duplicate (spec §5
			// "Delivery guarantees").
			err := x.HandleSignal(ctx, payload)
			x.logOutcome(err, codeFrom(payload))
			return nil
		})

	pool := &worker.Pool{
		Component:     "buyexec",
		Workers:       x.cfg.WorkerCount,
		QueueCapacity: x.cfg.QueueCapacity,
		RetryStartup:  30 * time.Second,
		Read: func(ctx context.Context) ([]worker.Job, error) {
			msgs, err := x.bus.ReadBatchPending(ctx, bus.StreamBuySignals, bus.ConsumeOptions{
				Group:     bus.GroupBuyExecutor,
				Consumer:  x.consumer,
				BatchSize: int64(x.cfg.ReadBatchSize),
				Block:     2 * time.Second,
			})
			if err != nil {
				return nil, err
			}
			jobs := make([]worker.Job, 0, len(msgs))
			for _, m := range msgs {
				payload, perr := bus.Payload(m)
				jobs = append(jobs, worker.Job{Stream: bus.StreamBuySignals, ID: m.ID, Payload: payload, Err: perr})
			}
			return jobs, nil
		},
		Handle: x.handleJob,
	}
	return pool.Run(ctx)
}

func (x *Executor) ensureGroupWithRetry(ctx context.Context) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		err := x.bus.EnsureGroup(ctx, bus.StreamBuySignals, bus.GroupBuyExecutor)
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

// handleJob applies the §4.4/§7 ACK policy around HandleSignal: every
// outcome is ACKed except brokerage transport errors and circuit-open,
// which stay pending for the 300s recovery to re-deliver.
func (x *Executor) handleJob(ctx context.Context, job worker.Job) {
	ack := func() {
		if err := x.bus.Ack(ctx, bus.StreamBuySignals, bus.GroupBuyExecutor, job.ID); err != nil {
			x.log.Warn().Str("event", "ack_failed").Str("reason", err.Error()).Send()
		}
	}

	if job.Err != nil {
		_ = x.bus.DeadLetter(ctx, bus.StreamBuySignals, job.Payload, job.Err.Error())
		ack()
		return
	}

	err := x.HandleSignal(ctx, job.Payload)
	if err == nil {
		ack()
		return
	}

	kind := errs.KindOf(err)
	x.logOutcome(err, codeFrom(job.Payload))
	if kind == errs.Validation {
		_ = x.bus.DeadLetter(ctx, bus.StreamBuySignals, job.Payload, err.Error())
	}
	if errs.ShouldAck(kind) && kind != errs.CircuitOpen {
		ack()
	}
}

// codeFrom best-effort extracts the stock code from a raw payload for
// alert/log attribution; a malformed payload just yields an empty code.
func codeFrom(payload []byte) string {
	var partial struct {
		StockCode string `json:"stock_code"`
	}
	_ = json.Unmarshal(payload, &partial)
	return partial.StockCode
}

func (x *Executor) logOutcome(err error, code string) {
	if err == nil {
		return
	}
	kind := errs.KindOf(err)
	switch kind {
	case errs.Precondition, errs.LockContention:
		x.log.Info().Str("event", "buy_rejected").Str("stock_code", code).Str("reason", err.Error()).Send()
	case errs.BrokerageBusiness:
		x.log.Warn().Str("event", "buy_failed").Str("stock_code", code).Str("reason", err.Error()).Send()
		telegram.Notify(telegram.Alert{
			Severity:  telegram.SevWarning,
			Service:   "buyexec",
			Event:     "brokerage_rejection",
			StockCode: code,
			Reason:    err.Error(),
		})
	case errs.ConfirmationFailure:
		x.log.Error().Str("event", "buy_confirmation_failed").Str("stock_code", code).Str("reason", err.Error()).Send()
		telegram.Notify(telegram.Alert{
			Severity:  telegram.SevCritical,
			Service:   "buyexec",
			Event:     "confirmation_failure",
			StockCode: code,
			Reason:    err.Error(),
		})
	default:
		x.log.Warn().Str("event", "buy_transport_error").Str("stock_code", code).Str("reason", err.Error()).Send()
	}
	metrics.BuyRejections.WithLabelValues(string(kind)).Inc()
}

// HandleSignal runs one BuySignal through the full §4.4 pipeline. The
// returned error's Kind drives the caller's ACK decision.
func (x *Executor) HandleSignal(ctx context.Context, payload []byte) error {
	var signal model.BuySignal
	if err := json.Unmarshal(payload, &signal); err != nil {
		return errs.Wrap(errs.Validation, "buyexec: malformed signal", err)
	}
	if err := signal.Validate(); err != nil {
		return errs.Wrap(errs.Validation, "buyexec: invalid signal", err)
	}

	// Per-code serialization; concurrent signals for different codes
	// proceed in parallel.
	codeLock := x.codes.Get(signal.StockCode.String())
	codeLock.Lock()
	defer codeLock.Unlock()

	now := time.Now()

	if err := x.checkMarketSession(ctx, signal, now); err != nil {
		return err
	}
	if err := x.checkEmergencyStop(ctx); err != nil {
		return err
	}

	acquired, err := x.locks.TryAcquire(ctx, cache.KeyBuyLock(signal.StockCode.String()), time.Duration(x.cfg.BuyLockTTLSec)*time.Second)
	if err != nil {
		return errs.Wrap(errs.BrokerageTransport, "buyexec: lock acquire", err)
	}
	if !acquired {
		return errs.New(errs.LockContention, "buyexec: buy lock held for "+signal.StockCode.String())
	}
	// The lock is released on success and on pre-check rejection; on
	// transport errors it is left to expire so the 300s redelivery can't
	// double-order inside the TTL.

	portfolio, err := x.gateway.Balance(ctx)
	if err != nil {
		return err
	}

	if cerr := checkAlreadyHeld(signal, portfolio); cerr != nil {
		x.locks.Release(ctx, cache.KeyBuyLock(signal.StockCode.String()))
		return cerr
	}
	if cerr := x.checkDuplicateWindow(ctx, signal, now); cerr != nil {
		x.locks.Release(ctx, cache.KeyBuyLock(signal.StockCode.String()))
		return cerr
	}
	if cerr := x.checkScoutVeto(signal); cerr != nil {
		x.locks.Release(ctx, cache.KeyBuyLock(signal.StockCode.String()))
		return cerr
	}
	if cerr := x.checkCooldowns(ctx, signal); cerr != nil {
		x.locks.Release(ctx, cache.KeyBuyLock(signal.StockCode.String()))
		return cerr
	}
	if cerr := x.checkCorrelation(ctx, signal, portfolio); cerr != nil {
		x.locks.Release(ctx, cache.KeyBuyLock(signal.StockCode.String()))
		return cerr
	}

	tctx := x.tradingContext(ctx)
	if cerr := x.checkGuard(signal, portfolio, tctx, x.dailyBuyCount(now)); cerr != nil {
		x.locks.Release(ctx, cache.KeyBuyLock(signal.StockCode.String()))
		return cerr
	}

	cash, err := x.gateway.Cash(ctx)
	if err != nil {
		return err
	}
	qty := guard.TargetQuantity(x.cfg, signal.HybridScore, portfolio.TotalAsset, cash.BuyingPower, signal.SignalPrice, signal.PositionMultiplier, tctx.PositionMultiplier)
	if qty <= 0 {
		x.locks.Release(ctx, cache.KeyBuyLock(signal.StockCode.String()))
		return reject("TOO_SMALL")
	}

	return x.placeAndConfirm(ctx, signal, tctx, qty, now)
}

func (x *Executor) placeAndConfirm(ctx context.Context, signal model.BuySignal, tctx model.TradingContext, qty int64, now time.Time) error {
	req := buildOrder(x.cfg, signal, qty)

	result, err := x.gateway.PlaceBuy(ctx, req)
	if err != nil {
		if errs.KindOf(err) == errs.BrokerageBusiness {
			x.locks.Release(ctx, cache.KeyBuyLock(signal.StockCode.String()))
		}
		return err
	}
	if !result.Success {
		x.locks.Release(ctx, cache.KeyBuyLock(signal.StockCode.String()))
		return errs.New(errs.BrokerageBusiness, "buyexec: order rejected: "+result.Message)
	}

	confirmCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	outcome, err := confirm.Poll(confirmCtx, x.gateway, result.OrderNo,
		x.cfg.ConfirmPollCount, time.Duration(x.cfg.ConfirmPollInterval)*time.Second)
	if err != nil {
		return errs.Wrap(errs.ConfirmationFailure, "buyexec: confirm poll for "+result.OrderNo, err)
	}
	if outcome.Uncertain {
		return errs.New(errs.ConfirmationFailure, "buyexec: order "+result.OrderNo+" neither confirmed nor cancelled")
	}
	if !outcome.Filled {
		x.locks.Release(ctx, cache.KeyBuyLock(signal.StockCode.String()))
		return errs.New(errs.ConfirmationFailure, "buyexec: order "+result.OrderNo+" not filled, cancelled")
	}

	filledQty := outcome.FilledQty
	avgPrice := outcome.AvgPrice
	if result.OrderNo == confirm.DryRunOrderNo {
		filledQty = qty
		avgPrice = signal.SignalPrice
	}
	return x.persistFill(ctx, signal, tctx, filledQty, avgPrice, result.OrderNo, now)
}

// persistFill creates the Position with its initial watermark and stop,
// records the trade, releases the buy lock, and counts the buy.
func (x *Executor) persistFill(ctx context.Context, signal model.BuySignal, tctx model.TradingContext, qty int64, avgPrice decimal.Decimal, orderNo string, now time.Time) error {
	sector := signal.SectorGroup
	if sector == "" {
		sector = x.sectorFor(ctx, signal.StockCode)
	}
	pos, err := model.NewPosition(signal.StockCode, signal.StockName, qty, avgPrice, sector, now)
	if err != nil {
		return errs.Wrap(errs.ConfirmationFailure, "buyexec: persist fill", err)
	}
	stopFraction := decimal.NewFromFloat(1 - x.cfg.StopLossPct/100*tctx.StopLossMultiplier)
	pos.StopLossPrice = avgPrice.Mul(stopFraction).Floor()

	if err := x.cache.Set(ctx, cache.KeyPositionMeta(pos.StockCode.String()), pos, 0); err != nil {
		return errs.Wrap(errs.ConfirmationFailure, "buyexec: persist position", err)
	}
	if err := x.trades.RecordTrade(ctx, model.TradeRecord{
		StockCode:  pos.StockCode,
		Side:       model.SideBuy,
		Quantity:   qty,
		Price:      avgPrice,
		OrderNo:    orderNo,
		ExecutedAt: now.UnixMilli(),
	}); err != nil {
		x.log.Warn().Str("event", "trade_record_failed").Str("stock_code", pos.StockCode.String()).Str("reason", err.Error()).Send()
	}

	x.locks.Release(ctx, cache.KeyBuyLock(signal.StockCode.String()))
	x.incDailyBuy(now)

	metrics.OrdersPlaced.WithLabelValues("buy", "filled").Inc()
	x.log.Info().
		Str("event", "buy_filled").
		Str("stock_code", pos.StockCode.String()).
		Str("signal_type", string(signal.SignalType)).
		Int64("quantity", qty).
		Str("avg_price", avgPrice.String()).
		Send()
	return nil
}

// sectorFor copies the sector group from the active watchlist entry,
// falling back to an empty group when the entry is gone by fill time.
func (x *Executor) sectorFor(ctx context.Context, code model.StockCode) string {
	var hot model.HotWatchlist
	found, err := x.cache.Get(ctx, cache.KeyWatchlistActive, &hot)
	if err != nil || !found {
		return ""
	}
	if entry, ok := hot.Lookup(code); ok {
		return entry.SectorGroup
	}
	return ""
}

func (x *Executor) tradingContext(ctx context.Context) model.TradingContext {
	var tctx model.TradingContext
	found, err := x.cache.Get(ctx, cache.KeyMacroTradingCtx, &tctx)
	if err != nil || !found {
		return model.DefaultTradingContext()
	}
	return tctx
}

func (x *Executor) dailyBuyCount(now time.Time) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.rolloverLocked(now)
	return x.buyCount
}

func (x *Executor) incDailyBuy(now time.Time) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.rolloverLocked(now)
	x.buyCount++
}

func (x *Executor) rolloverLocked(now time.Time) {
	day := now.Format("2006-01-02")
	if x.buyDay != day {
		x.buyDay = day
		x.buyCount = 0
	}
}
