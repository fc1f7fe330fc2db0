// Package strategy implements the Buy Scanner's eight buy strategies
// (spec §4.2): pure predicates from a code's accumulated minute bars plus
// watchlist/context state to an optional trade candidate. Each predicate
// is independent and side-effect free, following the same "one function
// per check, compose in the caller" shape as internal/guard and
// internal/riskgate — grounded on the indicator usage in aristath-sentinel
// (trader-go/pkg/formulas) for the technical half of each predicate.
package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/korea-trading-core/core/internal/bar"
	"github.com/korea-trading-core/core/internal/config"
	"github.com/korea-trading-core/core/internal/indicator"
	"github.com/korea-trading-core/core/internal/model"
)

// Candidate is a strategy's raw hit, before the scanner wraps it into a
// model.BuySignal (which also needs the source watchlist entry, regime,
// and position multiplier — not this package's concern).
type Candidate struct {
	SignalType  model.SignalType
	Price       decimal.Decimal
	RSI         *float64
	VolumeRatio *float64
	VWAP        *decimal.Decimal
}

// Predicate evaluates one strategy against the current bar history.
// bars are oldest-first and span the current session only.
type Predicate func(cfg *config.Scanner, bars []model.MinuteBar, entry model.WatchlistEntry, ctx model.TradingContext, now time.Time) (Candidate, bool)

// All returns every enabled strategy predicate in spec §4.2's table
// order. Regime gating lives inside each predicate, since the active set
// changes with the live TradingContext, not at startup.
func All(cfg *config.Scanner) []Predicate {
	preds := []Predicate{
		GoldenCross,
		RSIRebound,
		Momentum,
		MomentumContinuation,
		DipBuy,
		VolumeBreakout,
	}
	if cfg.EnableWatchlistConviction {
		preds = append(preds, WatchlistConviction)
	}
	if cfg.EnableORBBreakout {
		preds = append(preds, ORBBreakout)
	}
	return preds
}

func lastClose(bars []model.MinuteBar) decimal.Decimal {
	return bars[len(bars)-1].Close
}

// intradayGainPct returns the percent move from the session's first bar
// open to the latest close: 2.5 means +2.5%.
func intradayGainPct(bars []model.MinuteBar) (float64, bool) {
	open, _ := bars[0].Open.Float64()
	last, _ := lastClose(bars).Float64()
	if open <= 0 {
		return 0, false
	}
	return (last - open) / open * 100, true
}

func inClockWindow(now time.Time, startH, startM, endH, endM int) bool {
	s := time.Date(now.Year(), now.Month(), now.Day(), startH, startM, 0, 0, now.Location())
	e := time.Date(now.Year(), now.Month(), now.Day(), endH, endM, 0, 0, now.Location())
	return !now.Before(s) && now.Before(e)
}

func isBullish(r model.MarketRegime) bool {
	return r == model.RegimeBull || r == model.RegimeStrongBull
}

func isBearish(r model.MarketRegime) bool {
	return r == model.RegimeBear || r == model.RegimeStrongBear
}

// GoldenCross fires when SMA5 crosses above SMA20 on the latest closed
// bar. Active in BULL, STRONG_BULL, and SIDEWAYS.
func GoldenCross(cfg *config.Scanner, bars []model.MinuteBar, entry model.WatchlistEntry, ctx model.TradingContext, now time.Time) (Candidate, bool) {
	if isBearish(ctx.Regime) {
		return Candidate{}, false
	}
	if len(bars) < cfg.MinRequiredBars+1 {
		return Candidate{}, false
	}
	closes := bar.Closes(bars)
	sma5Now := indicator.SMA(closes, 5)
	sma20Now := indicator.SMA(closes, 20)
	sma5Prev := indicator.SMA(closes[:len(closes)-1], 5)
	sma20Prev := indicator.SMA(closes[:len(closes)-1], 20)
	if sma5Now == nil || sma20Now == nil || sma5Prev == nil || sma20Prev == nil {
		return Candidate{}, false
	}
	crossedUp := *sma5Prev <= *sma20Prev && *sma5Now > *sma20Now
	if !crossedUp {
		return Candidate{}, false
	}
	return Candidate{SignalType: model.GoldenCross, Price: lastClose(bars)}, true
}

// RSIRebound fires when RSI(14) has crossed up through 30 and is now
// confirming above 35 — a two-stage recovery, not a single touch of the
// oversold line. Active in SIDEWAYS and BEAR.
func RSIRebound(cfg *config.Scanner, bars []model.MinuteBar, entry model.WatchlistEntry, ctx model.TradingContext, now time.Time) (Candidate, bool) {
	if isBullish(ctx.Regime) {
		return Candidate{}, false
	}
	const oversold, confirm = 30.0, 35.0
	if len(bars) < cfg.MinRequiredBars+1 {
		return Candidate{}, false
	}
	closes := bar.Closes(bars)
	rsiNow := indicator.RSI(closes, 14)
	rsiPrev := indicator.RSI(closes[:len(closes)-1], 14)
	if rsiNow == nil || rsiPrev == nil {
		return Candidate{}, false
	}
	rebounded := *rsiPrev >= oversold && *rsiPrev < confirm && *rsiNow >= confirm
	if !rebounded {
		return Candidate{}, false
	}
	return Candidate{SignalType: model.RSIRebound, Price: lastClose(bars), RSI: rsiNow}, true
}

// Momentum fires on a positive intraday gain within (0, momentum_cap],
// confirmed by volume ratio at or above threshold. Active in all regimes.
func Momentum(cfg *config.Scanner, bars []model.MinuteBar, entry model.WatchlistEntry, ctx model.TradingContext, now time.Time) (Candidate, bool) {
	if len(bars) < cfg.MinRequiredBars {
		return Candidate{}, false
	}
	gain, ok := intradayGainPct(bars)
	if !ok || gain <= 0 || gain > cfg.MomentumCapPct*100 {
		return Candidate{}, false
	}
	volumes := bar.Volumes(bars)
	ratio := indicator.VolumeRatio(volumes, 20)
	if ratio == nil || *ratio < cfg.VolumeRatioThreshold {
		return Candidate{}, false
	}
	return Candidate{SignalType: model.Momentum, Price: lastClose(bars), VolumeRatio: ratio}, true
}

// MomentumContinuation fires on a 2-5% intraday gain between 09:15 and
// 10:30 with RSI under 75 — a trend already underway, not one starting.
// Active in BULL and STRONG_BULL only.
func MomentumContinuation(cfg *config.Scanner, bars []model.MinuteBar, entry model.WatchlistEntry, ctx model.TradingContext, now time.Time) (Candidate, bool) {
	if !isBullish(ctx.Regime) {
		return Candidate{}, false
	}
	if !inClockWindow(now, 9, 15, 10, 30) {
		return Candidate{}, false
	}
	if len(bars) < cfg.MinRequiredBars {
		return Candidate{}, false
	}
	gain, ok := intradayGainPct(bars)
	if !ok || gain < 2 || gain > 5 {
		return Candidate{}, false
	}
	closes := bar.Closes(bars)
	rsi := indicator.RSI(closes, 14)
	if rsi != nil && *rsi >= 75 {
		return Candidate{}, false
	}
	return Candidate{SignalType: model.MomentumContinuation, Price: lastClose(bars), RSI: rsi}, true
}

// DipBuy fires on a shallow intraday dip, with the acceptable dip band
// parameterized by regime: -0.5% to -3% in bullish regimes, -2% to -5%
// in bearish ones.
func DipBuy(cfg *config.Scanner, bars []model.MinuteBar, entry model.WatchlistEntry, ctx model.TradingContext, now time.Time) (Candidate, bool) {
	if len(bars) < cfg.MinRequiredBars {
		return Candidate{}, false
	}
	gain, ok := intradayGainPct(bars)
	if !ok {
		return Candidate{}, false
	}
	lo, hi := -3.0, -0.5
	if isBearish(ctx.Regime) {
		lo, hi = -5.0, -2.0
	}
	if gain < lo || gain > hi {
		return Candidate{}, false
	}
	closes := bar.Closes(bars)
	rsi := indicator.RSI(closes, 14)
	return Candidate{SignalType: model.DipBuy, Price: lastClose(bars), RSI: rsi}, true
}

// VolumeBreakout fires when the latest bar's volume is at least 3x the
// 20-bar mean and the price prints a new intraday high. Active in all
// regimes.
func VolumeBreakout(cfg *config.Scanner, bars []model.MinuteBar, entry model.WatchlistEntry, ctx model.TradingContext, now time.Time) (Candidate, bool) {
	const breakoutVolumeRatio = 3.0
	if len(bars) < cfg.MinRequiredBars+1 {
		return Candidate{}, false
	}
	cur := bars[len(bars)-1]
	curF, _ := cur.Close.Float64()
	highs := bar.Highs(bars[:len(bars)-1])
	sessionHigh := highs[0]
	for _, h := range highs {
		if h > sessionHigh {
			sessionHigh = h
		}
	}
	if curF <= sessionHigh {
		return Candidate{}, false
	}
	volumes := bar.Volumes(bars)
	ratio := indicator.VolumeRatio(volumes, 20)
	if ratio == nil || *ratio < breakoutVolumeRatio {
		return Candidate{}, false
	}
	return Candidate{SignalType: model.VolumeBreakout, Price: cur.Close, VolumeRatio: ratio}, true
}

// WatchlistConviction fires on the Scout's own highest-conviction ranking
// in the early session, with no technical confirmation — gated off by
// default (cfg.EnableWatchlistConviction) since it bypasses all other
// signal logic.
func WatchlistConviction(cfg *config.Scanner, bars []model.MinuteBar, entry model.WatchlistEntry, ctx model.TradingContext, now time.Time) (Candidate, bool) {
	const convictionScore = 90.0
	if !inClockWindow(now, 9, 15, 11, 0) {
		return Candidate{}, false
	}
	if len(bars) == 0 || entry.LLMScore < convictionScore || entry.Rank > 3 {
		return Candidate{}, false
	}
	return Candidate{SignalType: model.WatchlistConviction, Price: lastClose(bars)}, true
}

// ORBBreakout fires on a break above the 09:00-09:15 opening range during
// the 09:15-10:30 breakout window, gated off by default
// (cfg.EnableORBBreakout).
func ORBBreakout(cfg *config.Scanner, bars []model.MinuteBar, entry model.WatchlistEntry, ctx model.TradingContext, now time.Time) (Candidate, bool) {
	if !inClockWindow(now, 9, 15, 10, 30) {
		return Candidate{}, false
	}
	rangeEnd := time.Date(now.Year(), now.Month(), now.Day(), 9, 15, 0, 0, now.Location())
	var rangeHigh float64
	var haveRange bool
	for _, b := range bars {
		if !b.MinuteTS.Before(rangeEnd) {
			continue
		}
		h, _ := b.High.Float64()
		if !haveRange || h > rangeHigh {
			rangeHigh = h
			haveRange = true
		}
	}
	if !haveRange || len(bars) == 0 {
		return Candidate{}, false
	}
	cur := bars[len(bars)-1]
	if cur.MinuteTS.Before(rangeEnd) {
		return Candidate{}, false
	}
	curF, _ := cur.Close.Float64()
	if curF <= rangeHigh {
		return Candidate{}, false
	}
	return Candidate{SignalType: model.ORBBreakout, Price: cur.Close}, true
}
