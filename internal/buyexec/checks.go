package buyexec

import (
	"context"
	"fmt"
	"time"

	"github.com/korea-trading-core/core/internal/cache"
	"github.com/korea-trading-core/core/internal/errs"
	"github.com/korea-trading-core/core/internal/guard"
	"github.com/korea-trading-core/core/internal/model"
)

// reject builds the uniform precondition-rejection error every check
// returns: ACKed, logged at info level, no alert (spec §7).
func reject(reason string) *errs.Error {
	return errs.New(errs.Precondition, reason)
}

// checkMarketSession is pre-order check 1: local time within the trading
// window on a trading day. MANUAL signals bypass it.
func (x *Executor) checkMarketSession(ctx context.Context, signal model.BuySignal, now time.Time) *errs.Error {
	if signal.Source == model.SourceManual {
		return nil
	}
	openAt := clockOn(now, x.cfg.MarketOpenTime)
	closeAt := clockOn(now, x.cfg.MarketCloseTime)
	if now.Before(openAt) || !now.Before(closeAt) {
		return reject(fmt.Sprintf("MARKET_CLOSED %s outside %s-%s", now.Format("15:04"), x.cfg.MarketOpenTime, x.cfg.MarketCloseTime))
	}
	day, err := x.gateway.IsTradingDay(ctx, now.Format("2006-01-02"))
	if err != nil {
		// Gateway unreachable is a transport problem, not a rejection;
		// surfaced by the caller so the message stays pending.
		return errs.Wrap(errs.BrokerageTransport, "buyexec: trading-day check", err)
	}
	if !day.Trading {
		return reject("NOT_TRADING_DAY")
	}
	return nil
}

// checkEmergencyStop is check 2: the operator's global pause flag.
func (x *Executor) checkEmergencyStop(ctx context.Context) *errs.Error {
	paused, err := x.cache.Exists(ctx, cache.KeyEmergencyPause)
	if err != nil {
		// Fail closed: if the flag is unreadable, assume it is set.
		return reject("EMERGENCY_PAUSE_UNREADABLE")
	}
	if paused {
		return reject("EMERGENCY_PAUSE")
	}
	return nil
}

// checkAlreadyHeld is check 4.
func checkAlreadyHeld(signal model.BuySignal, portfolio model.PortfolioState) *errs.Error {
	if _, held := portfolio.Holding(signal.StockCode); held {
		return reject("ALREADY_HELD")
	}
	return nil
}

// checkDuplicateWindow is check 5: any trade record for this code within
// the last N minutes.
func (x *Executor) checkDuplicateWindow(ctx context.Context, signal model.BuySignal, now time.Time) *errs.Error {
	window := time.Duration(x.cfg.DuplicateOrderWindowMin) * time.Minute
	recent, err := x.trades.HasRecentTrade(ctx, signal.StockCode, now, window)
	if err != nil {
		return reject("TRADE_LOG_UNREADABLE")
	}
	if recent {
		return reject(fmt.Sprintf("DUPLICATE_ORDER_WINDOW %dm", x.cfg.DuplicateOrderWindowMin))
	}
	return nil
}

// checkScoutVeto is check 6: blocked tier or hybrid score under the hard
// floor.
func (x *Executor) checkScoutVeto(signal model.BuySignal) *errs.Error {
	if signal.TradeTier == model.Blocked {
		return reject("SCOUT_VETO trade_tier=BLOCKED")
	}
	if signal.HybridScore < x.cfg.HybridScoreFloor {
		return reject(fmt.Sprintf("HYBRID_FLOOR %.1f < %.1f", signal.HybridScore, x.cfg.HybridScoreFloor))
	}
	return nil
}

// checkCooldowns is check 7.
func (x *Executor) checkCooldowns(ctx context.Context, signal model.BuySignal) *errs.Error {
	if active, err := x.cooldowns.InStopLossCooldown(ctx, signal.StockCode); err != nil || active {
		if err != nil {
			return reject("COOLDOWN_UNREADABLE")
		}
		return reject("STOP_LOSS_COOLDOWN")
	}
	if active, err := x.cooldowns.InSellCooldown(ctx, signal.StockCode); err != nil || active {
		if err != nil {
			return reject("COOLDOWN_UNREADABLE")
		}
		return reject("SELL_COOLDOWN")
	}
	return nil
}

// checkCorrelation is check 8: Pearson over the lookback window against
// every held position; any coefficient at or above the limit rejects.
func (x *Executor) checkCorrelation(ctx context.Context, signal model.BuySignal, portfolio model.PortfolioState) *errs.Error {
	for _, held := range portfolio.Positions {
		coef, err := x.correlation.Pearson(ctx, signal.StockCode, held.StockCode)
		if err != nil {
			// A fetch failure leaves the pair unknown; skipping the pair is
			// preferable to blocking every buy while the Gateway hiccups.
			continue
		}
		if coef >= x.cfg.CorrelationLimit {
			return reject(fmt.Sprintf("CORRELATION %.2f >= %.2f with %s", coef, x.cfg.CorrelationLimit, held.StockCode))
		}
	}
	return nil
}

// checkGuard is check 9: the Shared Risk Fabric's portfolio guard.
func (x *Executor) checkGuard(signal model.BuySignal, portfolio model.PortfolioState, tctx model.TradingContext, dailyCount int) *errs.Error {
	verdict := guard.Evaluate(x.cfg, signal, portfolio, tctx, dailyCount)
	if !verdict.Pass {
		return reject(verdict.Reason)
	}
	return nil
}

func clockOn(now time.Time, hhmm string) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return now
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
}
