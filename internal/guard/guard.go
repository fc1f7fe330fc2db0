// Package guard implements the Shared Risk Fabric's Portfolio Guard (spec
// §4.6): a pure function of (candidate signal, portfolio state, trading
// context, daily buy counter) to Pass/Block(reason), called only from the
// Buy Executor. Grounded on the ad hoc inline checks inside the teacher's
// handleBuyCommand/handleUpdateCommand (internal/watcher/commands.go),
// extracted here into one function per spec's explicit request that the
// guard be "implemented once".
package guard

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/korea-trading-core/core/internal/config"
	"github.com/korea-trading-core/core/internal/model"
)

// Verdict is the guard's result: Pass, or Block with a machine-checkable
// reason string matching the literal codes used in spec §8's scenarios
// (e.g. "CASH_FLOOR").
type Verdict struct {
	Pass   bool
	Reason string
}

func pass() Verdict             { return Verdict{Pass: true} }
func block(reason string) Verdict { return Verdict{Pass: false, Reason: reason} }

// Evaluate runs the five portfolio-guard checks from spec §4.4 step 9, in
// the order listed there, short-circuiting on the first failure.
func Evaluate(cfg *config.BuyExec, signal model.BuySignal, portfolio model.PortfolioState, ctx model.TradingContext, dailyBuyCount int) Verdict {
	if v := checkPortfolioSize(cfg, portfolio); !v.Pass {
		return v
	}
	if v := checkCashFloor(cfg, portfolio, ctx.Regime); !v.Pass {
		return v
	}
	if v := checkSectorConcentration(cfg, signal, portfolio, ctx, ctx.Regime); !v.Pass {
		return v
	}
	if v := checkStockConcentration(cfg, signal, portfolio, ctx, ctx.Regime); !v.Pass {
		return v
	}
	if v := checkDailyBuyCounter(cfg, ctx.Regime, dailyBuyCount); !v.Pass {
		return v
	}
	return pass()
}

func checkPortfolioSize(cfg *config.BuyExec, portfolio model.PortfolioState) Verdict {
	if portfolio.PositionCount >= cfg.MaxPortfolioSize {
		return block(fmt.Sprintf("PORTFOLIO_SIZE %d >= %d", portfolio.PositionCount, cfg.MaxPortfolioSize))
	}
	return pass()
}

func cashFloorFor(cfg *config.BuyExec, regime model.MarketRegime) float64 {
	switch regime {
	case model.RegimeBull, model.RegimeStrongBull:
		return cfg.CashFloorBull
	case model.RegimeSideways:
		return cfg.CashFloorSideways
	case model.RegimeBear:
		return cfg.CashFloorBear
	case model.RegimeStrongBear:
		return cfg.CashFloorStrongBear
	default:
		return cfg.CashFloorSideways
	}
}

func checkCashFloor(cfg *config.BuyExec, portfolio model.PortfolioState, regime model.MarketRegime) Verdict {
	floor := cashFloorFor(cfg, regime)
	ratio, _ := portfolio.CashRatio().Float64()
	if ratio < floor {
		return block(fmt.Sprintf("CASH_FLOOR %.2f%% < %.2f%%", ratio*100, floor*100))
	}
	return pass()
}

func sectorCapFor(cfg *config.BuyExec, regime model.MarketRegime) float64 {
	if regime == model.RegimeStrongBull {
		return cfg.SectorCapStrongBull
	}
	return cfg.SectorCapDefault
}

func stockCapFor(cfg *config.BuyExec, regime model.MarketRegime) float64 {
	if regime == model.RegimeStrongBull {
		return cfg.StockCapStrongBull
	}
	return cfg.StockCapDefault
}

// prospectiveNotional estimates what the candidate buy would add to the
// portfolio: the same tier-times-multipliers formula the sizing step uses,
// before the cash clamp. The guard runs before sizing, so this estimate is
// the ceiling of what could actually be bought — evaluating the caps
// against it can only be as strict or stricter than the eventual order.
func prospectiveNotional(cfg *config.BuyExec, signal model.BuySignal, portfolio model.PortfolioState, ctx model.TradingContext) decimal.Decimal {
	baseWeight := SizeTier(cfg, signal.HybridScore)
	return portfolio.TotalAsset.
		Mul(decimal.NewFromFloat(baseWeight)).
		Mul(decimal.NewFromFloat(signal.PositionMultiplier)).
		Mul(decimal.NewFromFloat(ctx.PositionMultiplier))
}

// checkSectorConcentration measures the candidate's own sector (carried on
// the signal from its watchlist entry) plus the prospective buy against
// the regime's sector cap. The already-held check upstream guarantees the
// candidate code is not in the portfolio, so its sector exposure is purely
// the sum of its peers plus the new notional.
func checkSectorConcentration(cfg *config.BuyExec, signal model.BuySignal, portfolio model.PortfolioState, ctx model.TradingContext, regime model.MarketRegime) Verdict {
	if portfolio.TotalAsset.IsZero() {
		return pass()
	}
	cap := sectorCapFor(cfg, regime)
	sectorValue := portfolio.SectorValue(signal.SectorGroup).
		Add(prospectiveNotional(cfg, signal, portfolio, ctx))
	ratio, _ := sectorValue.Div(portfolio.TotalAsset).Float64()
	if ratio > cap {
		return block(fmt.Sprintf("SECTOR_CAP %.2f%% > %.2f%%", ratio*100, cap*100))
	}
	return pass()
}

func checkStockConcentration(cfg *config.BuyExec, signal model.BuySignal, portfolio model.PortfolioState, ctx model.TradingContext, regime model.MarketRegime) Verdict {
	if portfolio.TotalAsset.IsZero() {
		return pass()
	}
	cap := stockCapFor(cfg, regime)
	ratio, _ := prospectiveNotional(cfg, signal, portfolio, ctx).Div(portfolio.TotalAsset).Float64()
	if ratio > cap {
		return block(fmt.Sprintf("STOCK_CAP %.2f%% > %.2f%%", ratio*100, cap*100))
	}
	return pass()
}

func dailyBuyCapFor(cfg *config.BuyExec, regime model.MarketRegime) int {
	switch regime {
	case model.RegimeBull, model.RegimeStrongBull:
		return cfg.DailyBuyCapBull
	case model.RegimeSideways:
		return cfg.DailyBuyCapSideways
	case model.RegimeBear:
		return cfg.DailyBuyCapBear
	case model.RegimeStrongBear:
		return cfg.DailyBuyCapStrongBear
	default:
		return cfg.DailyBuyCapSideways
	}
}

func checkDailyBuyCounter(cfg *config.BuyExec, regime model.MarketRegime, dailyBuyCount int) Verdict {
	cap := dailyBuyCapFor(cfg, regime)
	if dailyBuyCount >= cap {
		return block(fmt.Sprintf("DAILY_BUY_CAP %d >= %d", dailyBuyCount, cap))
	}
	return pass()
}

// SizeTier returns the base position weight for hybridScore, per spec
// §4.4's tiered sizing table (>=80: 12%, >=70: 9%, >=60: 6%, else 0 —
// the caller rejects with TOO_SMALL when the tier yields zero).
func SizeTier(cfg *config.BuyExec, hybridScore float64) float64 {
	switch {
	case hybridScore >= cfg.SizeTierHighScore:
		return cfg.SizeTierHighPct
	case hybridScore >= cfg.SizeTierMidScore:
		return cfg.SizeTierMidPct
	case hybridScore >= cfg.SizeTierLowScore:
		return cfg.SizeTierLowPct
	default:
		return 0
	}
}

// TargetQuantity computes the integer share count for a buy sized between
// the base-weight notional and the cash-available constraint (spec
// §4.4 "Position sizing"). It returns 0 if the computed quantity is below
// minViableQty (the TOO_SMALL rejection threshold derived from
// cfg.MinViableNotional and price).
func TargetQuantity(cfg *config.BuyExec, hybridScore float64, totalAsset, cashAvailable, price decimal.Decimal, strategyPositionMult, contextPositionMult float64) int64 {
	baseWeight := SizeTier(cfg, hybridScore)
	if baseWeight == 0 || price.IsZero() {
		return 0
	}
	notional := totalAsset.
		Mul(decimal.NewFromFloat(baseWeight)).
		Mul(decimal.NewFromFloat(strategyPositionMult)).
		Mul(decimal.NewFromFloat(contextPositionMult))
	if notional.GreaterThan(cashAvailable) {
		notional = cashAvailable
	}
	qty := notional.Div(price).Floor().IntPart()
	if qty <= 0 {
		return 0
	}
	minQty := decimal.NewFromFloat(cfg.MinViableNotional).Div(price).Floor().IntPart()
	if qty < minQty {
		return 0
	}
	return qty
}
