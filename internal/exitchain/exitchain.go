// Package exitchain implements the Price Monitor's 12-rule exit chain
// (spec §4.3): an ordered, first-match-wins set of rules evaluated
// against a position's live PositionContext on every tick. The ordering
// in Evaluate is a hard contract — spec §8 requires "given any
// PositionContext, either exactly one rule fires or none does".
//
// Grounded on the teacher's checkRisk (internal/watcher/risk.go), which
// the spec generalizes from a single stagnation check into an ordered
// rule list; the decimal-heavy profit/floor arithmetic follows the same
// shopspring/decimal style used throughout internal/watcher for money math.
package exitchain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/korea-trading-core/core/internal/config"
	"github.com/korea-trading-core/core/internal/model"
)

// PositionContext is the per-tick evaluation frame spec §4.3 names.
type PositionContext struct {
	Position       model.Position
	CurrentPrice   decimal.Decimal
	RSI            *float64
	ATR            *float64
	MA5            *float64
	MA20           *float64
	PrevMA5        *float64
	PrevMA20       *float64
	TradingContext model.TradingContext
	Now            time.Time
}

func (c PositionContext) profitPct() float64 {
	v, _ := c.Position.ProfitPct(c.CurrentPrice).Float64()
	return v * 100
}

func (c PositionContext) highProfitPct() float64 {
	v, _ := c.Position.HighProfitPct().Float64()
	return v * 100
}

func (c PositionContext) holdingDays() int {
	return c.Position.HoldingDays(c.Now)
}

// Result describes a fired rule: the reason to publish, and the fraction
// of the current quantity to sell (1.0 for a full exit).
type Result struct {
	Reason        model.SellReason
	Pct           float64
	NewScaleOutLevel int // only meaningful when Reason == model.ScaleOut
}

// ScaleOutLevel is one rung of a regime's scale-out ladder.
type ScaleOutLevel struct {
	ActivationPct float64
	SellPct       float64
}

var scaleOutLadders = map[model.MarketRegime][]ScaleOutLevel{
	model.RegimeBull:       {{7, 0.25}, {15, 0.25}, {25, 0.15}},
	model.RegimeStrongBull: {{7, 0.25}, {15, 0.25}, {25, 0.15}},
	model.RegimeSideways:   {{3, 0.25}, {7, 0.25}, {12, 0.25}, {18, 0.15}},
	model.RegimeBear:       {{2, 0.25}, {5, 0.25}, {8, 0.25}, {12, 0.15}},
	model.RegimeStrongBear: {{2, 0.25}, {5, 0.25}, {8, 0.25}, {12, 0.15}},
}

// Evaluate runs every rule in spec order and returns the first match.
func Evaluate(cfg *config.Monitor, ctx PositionContext) (Result, bool) {
	if r, ok := hardStop(cfg, ctx); ok {
		return r, true
	}
	if r, ok := profitFloor(cfg, ctx); ok {
		return r, true
	}
	if r, ok := profitLock(cfg, ctx); ok {
		return r, true
	}
	if r, ok := breakevenStop(cfg, ctx); ok {
		return r, true
	}
	if r, ok := atrStop(cfg, ctx); ok {
		return r, true
	}
	if r, ok := fixedStop(cfg, ctx); ok {
		return r, true
	}
	trailingActivated := ctx.highProfitPct() >= cfg.TrailingActivationPct
	if r, ok := trailingTP(cfg, ctx, trailingActivated); ok {
		return r, true
	}
	if r, ok := scaleOut(cfg, ctx); ok {
		return r, true
	}
	if r, ok := rsiOverbought(cfg, ctx, trailingActivated); ok {
		return r, true
	}
	if r, ok := targetProfit(cfg, ctx, trailingActivated); ok {
		return r, true
	}
	if r, ok := deathCross(cfg, ctx); ok {
		return r, true
	}
	if r, ok := timeExit(cfg, ctx); ok {
		return r, true
	}
	return Result{}, false
}

// Rule 0: Hard Stop — profit_pct <= -10%, always, any regime.
func hardStop(cfg *config.Monitor, ctx PositionContext) (Result, bool) {
	if ctx.profitPct() <= -cfg.HardStopPct {
		return Result{Reason: model.StopLoss, Pct: 1.0}, true
	}
	return Result{}, false
}

// Rule 1: Profit Floor — after reaching +15%, pulls back below +10%.
func profitFloor(cfg *config.Monitor, ctx PositionContext) (Result, bool) {
	if ctx.highProfitPct() >= cfg.ProfitFloorActivationPct && ctx.profitPct() < cfg.ProfitFloorRetracePct {
		return Result{Reason: model.ProfitFloor, Pct: 1.0}, true
	}
	return Result{}, false
}

// Rule 2: Profit Lock L1/L2 — tighter floors than Profit Floor, active
// once the position has banked a smaller profit peak.
func profitLock(cfg *config.Monitor, ctx PositionContext) (Result, bool) {
	high := ctx.highProfitPct()
	profit := ctx.profitPct()
	if high >= cfg.ProfitLockL2Activation && profit < cfg.ProfitLockL2Floor {
		return Result{Reason: model.ProfitLock, Pct: 1.0}, true
	}
	if high >= cfg.ProfitLockL1Activation && profit < cfg.ProfitLockL1Floor {
		return Result{Reason: model.ProfitLock, Pct: 1.0}, true
	}
	return Result{}, false
}

// Rule 2.5: Breakeven Stop — reached +3% high, retraced to under +0.3%.
func breakevenStop(cfg *config.Monitor, ctx PositionContext) (Result, bool) {
	if ctx.highProfitPct() >= cfg.BreakevenActivationPct && ctx.profitPct() < cfg.BreakevenFloorPct {
		return Result{Reason: model.BreakevenStop, Pct: 1.0}, true
	}
	return Result{}, false
}

// Rule 3: ATR Stop — price <= avg_buy - ATR*multiplier.
func atrStop(cfg *config.Monitor, ctx PositionContext) (Result, bool) {
	if ctx.ATR == nil {
		return Result{}, false
	}
	atr := decimal.NewFromFloat(*ctx.ATR)
	floor := ctx.Position.AverageBuyPrice.Sub(atr.Mul(decimal.NewFromFloat(cfg.ATRMultiplier)))
	if ctx.CurrentPrice.LessThanOrEqual(floor) {
		return Result{Reason: model.ATRStop, Pct: 1.0}, true
	}
	return Result{}, false
}

// Rule 4: Fixed Stop — profit_pct <= -(stop_loss_pct * macro_stop_mult),
// tightened over time (spec §4.3 "Time-tightening of Fixed Stop").
func fixedStop(cfg *config.Monitor, ctx PositionContext) (Result, bool) {
	startDays := cfg.TimeTightenStartDaysDefault
	if ctx.TradingContext.Regime == model.RegimeBull || ctx.TradingContext.Regime == model.RegimeStrongBull {
		startDays = cfg.TimeTightenStartDaysBull
	}

	threshold := cfg.StopLossPct * ctx.TradingContext.StopLossMultiplier
	holdingDays := ctx.holdingDays()
	if holdingDays > startDays {
		span := cfg.MaxHoldingDays - startDays
		tighten := 2.0
		if span > 0 {
			tighten = 2.0 * float64(holdingDays-startDays) / float64(span)
			if tighten > 2.0 {
				tighten = 2.0
			}
		}
		threshold -= tighten
		if threshold < 0 {
			threshold = 0
		}
	}

	if ctx.profitPct() <= -threshold {
		return Result{Reason: model.StopLoss, Pct: 1.0}, true
	}
	return Result{}, false
}

// Rule 5: Trailing TP — after activation, drop from high by the
// configured percentage.
func trailingTP(cfg *config.Monitor, ctx PositionContext, activated bool) (Result, bool) {
	if !activated {
		return Result{}, false
	}
	dropFromHigh := ctx.highProfitPct() - ctx.profitPct()
	if dropFromHigh >= cfg.TrailingDropFromHighPct {
		return Result{Reason: model.TrailingStop, Pct: 1.0}, true
	}
	return Result{}, false
}

// Rule 6: Scale-Out — tiered partial exits; advances at most one level
// per firing.
func scaleOut(cfg *config.Monitor, ctx PositionContext) (Result, bool) {
	ladder, ok := scaleOutLadders[ctx.TradingContext.Regime]
	if !ok {
		ladder = scaleOutLadders[model.RegimeSideways]
	}
	level := ctx.Position.ScaleOutLevel
	if level >= len(ladder) {
		return Result{}, false
	}
	rung := ladder[level]
	if ctx.profitPct() >= rung.ActivationPct {
		return Result{Reason: model.ScaleOut, Pct: rung.SellPct, NewScaleOutLevel: level + 1}, true
	}
	return Result{}, false
}

// Rule 7: RSI Overbought — skipped once Trailing TP is active, since
// the trailing mechanism already owns the exit from here.
func rsiOverbought(cfg *config.Monitor, ctx PositionContext, trailingActivated bool) (Result, bool) {
	if trailingActivated || ctx.RSI == nil {
		return Result{}, false
	}
	if *ctx.RSI >= cfg.RSIOverboughtThreshold && ctx.profitPct() >= cfg.RSIOverboughtMinProfit {
		return Result{Reason: model.RSIOverbought, Pct: 0.5}, true
	}
	return Result{}, false
}

// Rule 8: Target Profit — only when trailing hasn't taken over.
func targetProfit(cfg *config.Monitor, ctx PositionContext, trailingActivated bool) (Result, bool) {
	if trailingActivated {
		return Result{}, false
	}
	if ctx.profitPct() >= cfg.TargetProfitPct {
		return Result{Reason: model.ProfitTarget, Pct: 1.0}, true
	}
	return Result{}, false
}

// Rule 9: Death Cross — MA5 crosses below MA20 while losing; disabled in
// BULL/STRONG_BULL when cfg.DeathCrossBearOnly.
func deathCross(cfg *config.Monitor, ctx PositionContext) (Result, bool) {
	if cfg.DeathCrossBearOnly && (ctx.TradingContext.Regime == model.RegimeBull || ctx.TradingContext.Regime == model.RegimeStrongBull) {
		return Result{}, false
	}
	if ctx.MA5 == nil || ctx.MA20 == nil || ctx.PrevMA5 == nil || ctx.PrevMA20 == nil {
		return Result{}, false
	}
	crossedDown := *ctx.PrevMA5 >= *ctx.PrevMA20 && *ctx.MA5 < *ctx.MA20
	if crossedDown && ctx.profitPct() < 0 {
		return Result{Reason: model.DeathCross, Pct: 1.0}, true
	}
	return Result{}, false
}

// Rule 10: Time Exit — holding period exceeded.
func timeExit(cfg *config.Monitor, ctx PositionContext) (Result, bool) {
	if ctx.holdingDays() > cfg.MaxHoldingDays {
		return Result{Reason: model.TimeExit, Pct: 1.0}, true
	}
	return Result{}, false
}
