// Package riskgate implements the Buy Scanner's risk gate chain (spec
// §4.2): nine ordered pre-checks a candidate signal must clear before a
// strategy predicate is even evaluated. Grounded on the same
// checkRisk-style ordered-boolean-chain idiom as internal/guard and
// internal/exitchain, generalizing the teacher's single stagnation check
// (internal/watcher/risk.go) into the scanner's windowed/cooldown chain.
package riskgate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/korea-trading-core/core/internal/config"
	"github.com/korea-trading-core/core/internal/model"
)

// Verdict is Pass or Block(reason), mirroring internal/guard.Verdict.
type Verdict struct {
	Pass   bool
	Reason string
}

func pass() Verdict               { return Verdict{Pass: true} }
func block(reason string) Verdict { return Verdict{Pass: false, Reason: reason} }

// Input bundles everything the gate chain needs about one candidate tick,
// gathered by the scanner before evaluating any strategy predicate.
type Input struct {
	Now                time.Time
	Entry              model.WatchlistEntry
	SignalType         model.SignalType
	Regime             model.MarketRegime
	CurrentPrice       decimal.Decimal
	VWAP               *decimal.Decimal
	RSI                *float64
	DailyBuyCount      int
	LastSignalAt       *time.Time
	InStopLossCooldown bool
	InSellCooldown     bool
}

// Evaluate runs every gate in spec order, short-circuiting at the first
// block. A candidate that clears all nine gates is eligible for strategy
// evaluation, not yet a guaranteed signal.
func Evaluate(cfg *config.Scanner, in Input) Verdict {
	if v := checkNoTradeWindow(cfg, in.Now); !v.Pass {
		return v
	}
	if v := checkDangerWindow(cfg, in.Now); !v.Pass {
		return v
	}
	if v := checkDailyBuyCap(cfg, in.Regime, in.DailyBuyCount); !v.Pass {
		return v
	}
	if v := checkRSIGuard(cfg, in); !v.Pass {
		return v
	}
	if v := checkVWAPDeviation(cfg, in); !v.Pass {
		return v
	}
	if v := checkSignalCooldown(cfg, in.Now, in.LastSignalAt); !v.Pass {
		return v
	}
	if v := checkStopLossCooldown(in); !v.Pass {
		return v
	}
	if v := checkSellCooldown(in); !v.Pass {
		return v
	}
	if v := checkScoutVeto(in.Entry); !v.Pass {
		return v
	}
	return pass()
}

func parseClock(now time.Time, hhmm string) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return now
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
}

func inWindow(now time.Time, start, end string) bool {
	s := parseClock(now, start)
	e := parseClock(now, end)
	return !now.Before(s) && now.Before(e)
}

// Gate 1: No-trade window — the first minutes after the open are too
// volatile for entries.
func checkNoTradeWindow(cfg *config.Scanner, now time.Time) Verdict {
	if inWindow(now, cfg.NoTradeWindowStart, cfg.NoTradeWindowEnd) {
		return block(fmt.Sprintf("NO_TRADE_WINDOW %s-%s", cfg.NoTradeWindowStart, cfg.NoTradeWindowEnd))
	}
	return pass()
}

// Gate 2: Danger-zone window — late-session entries carry overnight gap
// risk disproportionate to the intraday edge.
func checkDangerWindow(cfg *config.Scanner, now time.Time) Verdict {
	if inWindow(now, cfg.DangerWindowStart, cfg.DangerWindowEnd) {
		return block(fmt.Sprintf("DANGER_WINDOW %s-%s", cfg.DangerWindowStart, cfg.DangerWindowEnd))
	}
	return pass()
}

func dailyBuyCapFor(cfg *config.Scanner, regime model.MarketRegime) int {
	switch regime {
	case model.RegimeBull, model.RegimeStrongBull:
		return cfg.DailyBuyCapBull
	case model.RegimeBear, model.RegimeStrongBear:
		return cfg.DailyBuyCapBear
	default:
		return cfg.DailyBuyCapSideways
	}
}

// Gate 3: Daily buy cap — the scanner's own counter, independent of the
// executor-side portfolio-size guard.
func checkDailyBuyCap(cfg *config.Scanner, regime model.MarketRegime, dailyBuyCount int) Verdict {
	cap := dailyBuyCapFor(cfg, regime)
	if dailyBuyCount >= cap {
		return block(fmt.Sprintf("DAILY_BUY_CAP %d >= %d", dailyBuyCount, cap))
	}
	return pass()
}

// Gate 4: RSI guard — rejects chasing an already-overbought stock.
// Bypassed for the three strategies whose own entry conditions already
// bound RSI or whose premise overrides it: MOMENTUM_CONTINUATION checks
// RSI<75 itself, WATCHLIST_CONVICTION carries the Scout's sign-off, and
// ORB_BREAKOUT trades the opening range before RSI stabilizes.
func checkRSIGuard(cfg *config.Scanner, in Input) Verdict {
	switch in.SignalType {
	case model.MomentumContinuation, model.WatchlistConviction, model.ORBBreakout:
		return pass()
	}
	if in.RSI == nil {
		return pass()
	}
	max := cfg.RSIGuardMaxSideways
	if in.Regime == model.RegimeBull || in.Regime == model.RegimeStrongBull {
		max = cfg.RSIGuardMaxBull
	}
	if *in.RSI >= max {
		return block(fmt.Sprintf("RSI_GUARD %.1f >= %.1f", *in.RSI, max))
	}
	return pass()
}

// Gate 5: VWAP deviation guard — rejects a price that has already run
// too far above the session's volume-weighted average.
func checkVWAPDeviation(cfg *config.Scanner, in Input) Verdict {
	if in.VWAP == nil || in.VWAP.IsZero() {
		return pass()
	}
	deviation, _ := in.CurrentPrice.Sub(*in.VWAP).Div(*in.VWAP).Float64()
	if deviation > cfg.VWAPDeviationWarning {
		return block(fmt.Sprintf("VWAP_DEVIATION %.4f > %.4f", deviation, cfg.VWAPDeviationWarning))
	}
	return pass()
}

// Gate 6: Signal cooldown — suppresses re-firing on the same code within
// the configured window, regardless of strategy.
func checkSignalCooldown(cfg *config.Scanner, now time.Time, lastSignalAt *time.Time) Verdict {
	if lastSignalAt == nil {
		return pass()
	}
	elapsed := now.Sub(*lastSignalAt)
	cooldown := time.Duration(cfg.SignalCooldownSec) * time.Second
	if elapsed < cooldown {
		return block(fmt.Sprintf("SIGNAL_COOLDOWN %s < %s", elapsed, cooldown))
	}
	return pass()
}

// Gate 7: Stop-loss cooldown — a code that was just stopped out is
// excluded for the configured period (spec §4.5).
func checkStopLossCooldown(in Input) Verdict {
	if in.InStopLossCooldown {
		return block("STOP_LOSS_COOLDOWN")
	}
	return pass()
}

// Gate 8: Sell cooldown — a code that was just sold (any reason) is
// excluded for the configured period.
func checkSellCooldown(in Input) Verdict {
	if in.InSellCooldown {
		return block("SELL_COOLDOWN")
	}
	return pass()
}

// Gate 9: Scout veto — the watchlist entry itself marks the code
// untradable; this is the final authority from the external Scout
// component and cannot be overridden by any strategy.
func checkScoutVeto(entry model.WatchlistEntry) Verdict {
	if entry.TradeTier == model.Blocked || !entry.IsTradable || entry.VetoApplied {
		return block(fmt.Sprintf("SCOUT_VETO trade_tier=%s is_tradable=%v veto_applied=%v", entry.TradeTier, entry.IsTradable, entry.VetoApplied))
	}
	return pass()
}
