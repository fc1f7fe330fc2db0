// Package sellexec implements the Sell Executor (spec §4.5): it consumes
// SellOrders, places the sell through the Gateway under the per-code sell
// lock, confirms the fill with the same polling protocol as the buy side,
// applies the partial/full state transition, and writes the cooldown
// markers. Venue failures are not retried here — the monitor re-emits on
// the next tick if the exit condition still holds — except Hard Stops,
// which are retried in place.
package sellexec

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/korea-trading-core/core/internal/broker/confirm"
	"github.com/korea-trading-core/core/internal/bus"
	"github.com/korea-trading-core/core/internal/cache"
	"github.com/korea-trading-core/core/internal/config"
	"github.com/korea-trading-core/core/internal/errs"
	"github.com/korea-trading-core/core/internal/keyedmutex"
	"github.com/korea-trading-core/core/internal/metrics"
	"github.com/korea-trading-core/core/internal/model"
	"github.com/korea-trading-core/core/internal/telegram"
	"github.com/korea-trading-core/core/internal/worker"
)

// Gateway is the slice of the Gateway HTTP client this executor needs.
type Gateway interface {
	PlaceSell(ctx context.Context, req model.OrderRequest) (model.OrderResult, error)
	OrderStatus(ctx context.Context, orderNo string) (model.OrderStatus, error)
	Cancel(ctx context.Context, orderNo string) (model.CancelResult, error)
}

// Locks is the distributed lock surface (internal/lock.Locker).
type Locks interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string)
}

// CooldownWriter is the cooldown surface (internal/cooldown.Tracker).
type CooldownWriter interface {
	MarkSell(ctx context.Context, code model.StockCode) error
	MarkStopLoss(ctx context.Context, code model.StockCode) error
}

// TradeLog is the local append-only trade store (internal/storage.Store).
type TradeLog interface {
	RecordTrade(ctx context.Context, rec model.TradeRecord) error
}

// StateCache is the typed-cache surface (internal/cache.Cache).
type StateCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Executor processes SellOrders one at a time per code.
type Executor struct {
	cfg       *config.SellExec
	log       zerolog.Logger
	bus       *bus.Bus
	cache     StateCache
	locks     Locks
	cooldowns CooldownWriter
	trades    TradeLog
	gateway   Gateway
	codes     *keyedmutex.Map

	consumer string
}

func New(cfg *config.SellExec, log zerolog.Logger, b *bus.Bus, c StateCache, locks Locks, cd CooldownWriter, trades TradeLog, gw Gateway) *Executor {
	return &Executor{
		cfg:       cfg,
		log:       log,
		bus:       b,
		cache:     c,
		locks:     locks,
		cooldowns: cd,
		trades:    trades,
		gateway:   gw,
		codes:     keyedmutex.New(),
		consumer:  "sellexec-" + uuid.NewString()[:8],
	}
}

// Run blocks until ctx is cancelled.
func (x *Executor) Run(ctx context.Context) error {
	if err := x.ensureGroupWithRetry(ctx); err != nil {
		return err
	}

	go bus.RunReclaimLoop(ctx, x.bus, bus.StreamSellOrders, bus.GroupSellExecutor, x.consumer,
		time.Minute, 5*time.Minute, func(ctx context.Context, payload []byte) error {
			err := x.HandleOrder(ctx, payload)
			x.logOutcome(err, codeFrom(payload))
			return nil
		})

	pool := &worker.Pool{
		Component:     "sellexec",
		Workers:       x.cfg.WorkerCount,
		QueueCapacity: x.cfg.QueueCapacity,
		RetryStartup:  30 * time.Second,
		Read: func(ctx context.Context) ([]worker.Job, error) {
			msgs, err := x.bus.ReadBatchPending(ctx, bus.StreamSellOrders, bus.ConsumeOptions{
				Group:     bus.GroupSellExecutor,
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
				jobs = append(jobs, worker.Job{Stream: bus.StreamSellOrders, ID: m.ID, Payload: payload, Err: perr})
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
		err := x.bus.EnsureGroup(ctx, bus.StreamSellOrders, bus.GroupSellExecutor)
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

func (x *Executor) handleJob(ctx context.Context, job worker.Job) {
	ack := func() {
		if err := x.bus.Ack(ctx, bus.StreamSellOrders, bus.GroupSellExecutor, job.ID); err != nil {
			x.log.Warn().Str("event", "ack_failed").Str("reason", err.Error()).Send()
		}
	}

	if job.Err != nil {
		_ = x.bus.DeadLetter(ctx, bus.StreamSellOrders, job.Payload, job.Err.Error())
		ack()
		return
	}

	err := x.HandleOrder(ctx, job.Payload)
	if err == nil {
		ack()
		return
	}

	kind := errs.KindOf(err)
	x.logOutcome(err, codeFrom(job.Payload))
	if kind == errs.Validation {
		_ = x.bus.DeadLetter(ctx, bus.StreamSellOrders, job.Payload, err.Error())
	}
	// The monitor re-emits on the next tick if the condition still holds
	// (spec §4.5 "Failure semantics"), so even transport errors are ACKed
	// here — pending redelivery would only race the monitor's re-emission.
	ack()
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
		x.log.Info().Str("event", "sell_rejected").Str("stock_code", code).Str("reason", err.Error()).Send()
	case errs.BrokerageBusiness:
		x.log.Warn().Str("event", "sell_failed").Str("stock_code", code).Str("reason", err.Error()).Send()
		telegram.Notify(telegram.Alert{
			Severity:  telegram.SevWarning,
			Service:   "sellexec",
			Event:     "brokerage_rejection",
			StockCode: code,
			Reason:    err.Error(),
		})
	case errs.ConfirmationFailure:
		x.log.Error().Str("event", "sell_confirmation_failed").Str("stock_code", code).Str("reason", err.Error()).Send()
		telegram.Notify(telegram.Alert{
			Severity:  telegram.SevCritical,
			Service:   "sellexec",
			Event:     "confirmation_failure",
			StockCode: code,
			Reason:    err.Error(),
		})
	default:
		x.log.Warn().Str("event", "sell_transport_error").Str("stock_code", code).Str("reason", err.Error()).Send()
	}
}

// HandleOrder runs one SellOrder through the §4.5 pipeline.
func (x *Executor) HandleOrder(ctx context.Context, payload []byte) error {
	var order model.SellOrder
	if err := json.Unmarshal(payload, &order); err != nil {
		return errs.Wrap(errs.Validation, "sellexec: malformed sell order", err)
	}
	if err := order.Validate(); err != nil {
		return errs.Wrap(errs.Validation, "sellexec: invalid sell order", err)
	}

	codeLock := x.codes.Get(order.StockCode.String())
	codeLock.Lock()
	defer codeLock.Unlock()

	acquired, err := x.locks.TryAcquire(ctx, cache.KeySellLock(order.StockCode.String()), time.Duration(x.cfg.SellLockTTLSec)*time.Second)
	if err != nil {
		return errs.Wrap(errs.BrokerageTransport, "sellexec: lock acquire", err)
	}
	if !acquired {
		return errs.New(errs.LockContention, "sellexec: sell lock held for "+order.StockCode.String())
	}
	defer x.locks.Release(ctx, cache.KeySellLock(order.StockCode.String()))

	var pos model.Position
	found, err := x.cache.Get(ctx, cache.KeyPositionMeta(order.StockCode.String()), &pos)
	if err != nil {
		return errs.Wrap(errs.BrokerageTransport, "sellexec: load position", err)
	}
	if !found || pos.Quantity <= 0 {
		return errs.New(errs.Precondition, "NOT_HELD "+order.StockCode.String())
	}

	// Quantity is clamped to the current holding (spec §4.5 "Holdings check").
	qty := order.Quantity
	if qty > pos.Quantity {
		qty = pos.Quantity
	}

	result, err := x.placeWithRetry(ctx, order, qty)
	if err != nil {
		return err
	}

	confirmCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	outcome, err := confirm.Poll(confirmCtx, x.gateway, result.OrderNo,
		x.cfg.ConfirmPollCount, time.Duration(x.cfg.ConfirmPollInterval)*time.Second)
	if err != nil {
		return errs.Wrap(errs.ConfirmationFailure, "sellexec: confirm poll for "+result.OrderNo, err)
	}
	if outcome.Uncertain {
		pos.Uncertain = true
		if err := x.cache.Set(ctx, cache.KeyPositionMeta(pos.StockCode.String()), pos, 0); err != nil {
			x.log.Warn().Str("event", "uncertain_mark_failed").Str("stock_code", pos.StockCode.String()).Str("reason", err.Error()).Send()
		}
		return errs.New(errs.ConfirmationFailure, "sellexec: order "+result.OrderNo+" uncertain; reconciliation takes over")
	}
	if !outcome.Filled {
		return errs.New(errs.ConfirmationFailure, "sellexec: order "+result.OrderNo+" not filled, cancelled")
	}

	filledQty := outcome.FilledQty
	fillPrice := outcome.AvgPrice
	if result.OrderNo == confirm.DryRunOrderNo {
		filledQty = qty
		fillPrice = order.CurrentPrice
	}
	return x.applyFill(ctx, order, pos, filledQty, fillPrice, result.OrderNo)
}

// placeWithRetry places the market sell; Hard Stops retry transport
// failures up to the configured count with backoff (spec §4.5 "Hard Stop
// is exempt and must be retried").
func (x *Executor) placeWithRetry(ctx context.Context, order model.SellOrder, qty int64) (model.OrderResult, error) {
	req := model.OrderRequest{
		StockCode: order.StockCode,
		Side:      model.SideSell,
		Quantity:  qty,
		OrderType: model.OrderMarket,
	}

	attempts := 1
	if order.SellReason == model.StopLoss {
		attempts = x.cfg.HardStopRetries
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return model.OrderResult{}, ctx.Err()
			case <-time.After(time.Duration(x.cfg.HardStopBackoffSec) * time.Second):
			}
		}
		result, err := x.gateway.PlaceSell(ctx, req)
		if err != nil {
			lastErr = err
			if errs.KindOf(err) == errs.BrokerageBusiness {
				return model.OrderResult{}, err
			}
			continue
		}
		if !result.Success {
			return model.OrderResult{}, errs.New(errs.BrokerageBusiness, "sellexec: order rejected: "+result.Message)
		}
		return result, nil
	}
	return model.OrderResult{}, lastErr
}

// applyFill performs the partial/full state transition and cooldown
// writes (spec §4.5 "State transitions").
func (x *Executor) applyFill(ctx context.Context, order model.SellOrder, pos model.Position, filledQty int64, fillPrice decimal.Decimal, orderNo string) error {
	now := time.Now()
	fullExit := filledQty >= pos.Quantity

	profitPct, _ := pos.ProfitPct(fillPrice).Mul(decimal.NewFromInt(100)).Float64()
	profitAmount := fillPrice.Sub(pos.AverageBuyPrice).Mul(decimal.NewFromInt(filledQty))
	holdingDays := pos.HoldingDays(now)

	if fullExit {
		if err := x.cache.Delete(ctx, cache.KeyPositionMeta(pos.StockCode.String())); err != nil {
			x.log.Warn().Str("event", "position_delete_failed").Str("stock_code", pos.StockCode.String()).Str("reason", err.Error()).Send()
		}
		if err := x.cooldowns.MarkSell(ctx, pos.StockCode); err != nil {
			x.log.Warn().Str("event", "cooldown_write_failed").Str("stock_code", pos.StockCode.String()).Str("reason", err.Error()).Send()
		}
		if order.SellReason.StopLossFamily() {
			if err := x.cooldowns.MarkStopLoss(ctx, pos.StockCode); err != nil {
				x.log.Warn().Str("event", "cooldown_write_failed").Str("stock_code", pos.StockCode.String()).Str("reason", err.Error()).Send()
			}
		}
	} else {
		updated := applyPartialFill(pos, filledQty)
		if err := x.cache.Set(ctx, cache.KeyPositionMeta(pos.StockCode.String()), updated, 0); err != nil {
			return errs.Wrap(errs.ConfirmationFailure, "sellexec: persist partial fill", err)
		}
	}

	if err := x.trades.RecordTrade(ctx, model.TradeRecord{
		StockCode:    pos.StockCode,
		Side:         model.SideSell,
		Quantity:     filledQty,
		Price:        fillPrice,
		SellReason:   order.SellReason,
		OrderNo:      orderNo,
		ProfitPct:    profitPct,
		ProfitAmount: profitAmount,
		HoldingDays:  holdingDays,
		ExecutedAt:   now.UnixMilli(),
	}); err != nil {
		x.log.Warn().Str("event", "trade_record_failed").Str("stock_code", pos.StockCode.String()).Str("reason", err.Error()).Send()
	}

	metrics.OrdersPlaced.WithLabelValues("sell", "filled").Inc()
	x.log.Info().
		Str("event", "sell_filled").
		Str("stock_code", pos.StockCode.String()).
		Str("reason", string(order.SellReason)).
		Int64("quantity", filledQty).
		Float64("profit_pct", profitPct).
		Bool("full_exit", fullExit).
		Send()
	return nil
}
