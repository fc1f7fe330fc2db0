package guard

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/korea-trading-core/core/internal/config"
	"github.com/korea-trading-core/core/internal/model"
)

func buyExecConfig() *config.BuyExec {
	return &config.BuyExec{
		MaxPortfolioSize:      10,
		CashFloorBull:         0.10,
		CashFloorSideways:     0.15,
		CashFloorBear:         0.25,
		CashFloorStrongBear:   0.25,
		SectorCapDefault:      0.30,
		SectorCapStrongBull:   0.50,
		StockCapDefault:       0.15,
		StockCapStrongBull:    0.25,
		DailyBuyCapBull:       8,
		DailyBuyCapSideways:   5,
		DailyBuyCapBear:       2,
		DailyBuyCapStrongBear: 1,
		SizeTierHighScore:     80,
		SizeTierHighPct:       0.12,
		SizeTierMidScore:      70,
		SizeTierMidPct:        0.09,
		SizeTierLowScore:      60,
		SizeTierLowPct:        0.06,
		MinViableNotional:     100000,
	}
}

func signalFor(code model.StockCode, score float64) model.BuySignal {
	return model.BuySignal{
		StockCode:          code,
		SignalType:         model.GoldenCross,
		SignalPrice:        decimal.NewFromInt(72100),
		HybridScore:        score,
		TradeTier:          model.Tier1,
		PositionMultiplier: 1.0,
	}
}

func portfolio(cash, total int64, positions ...model.Position) model.PortfolioState {
	return model.PortfolioState{
		Positions:     positions,
		CashBalance:   decimal.NewFromInt(cash),
		TotalAsset:    decimal.NewFromInt(total),
		PositionCount: len(positions),
		Timestamp:     time.Now(),
	}
}

func TestCashFloorBlocksBuyInBear(t *testing.T) {
	// Spec scenario 4: total 10M, cash 2.4M (24%), BEAR floor is 25%.
	v := Evaluate(buyExecConfig(), signalFor("005930", 78),
		portfolio(2_400_000, 10_000_000),
		model.TradingContext{Regime: model.RegimeBear}, 0)
	if v.Pass || !strings.Contains(v.Reason, "CASH_FLOOR") {
		t.Fatalf("expected CASH_FLOOR block in BEAR, got %+v", v)
	}

	// The same portfolio passes in BULL (floor 10%).
	v = Evaluate(buyExecConfig(), signalFor("005930", 78),
		portfolio(2_400_000, 10_000_000),
		model.TradingContext{Regime: model.RegimeBull}, 0)
	if !v.Pass {
		t.Fatalf("24%% cash should pass the BULL floor, blocked: %s", v.Reason)
	}
}

func TestPortfolioSizeCap(t *testing.T) {
	positions := make([]model.Position, 10)
	for i := range positions {
		positions[i] = model.Position{StockCode: "000001", Quantity: 1}
	}
	v := Evaluate(buyExecConfig(), signalFor("005930", 78),
		portfolio(5_000_000, 10_000_000, positions...),
		model.TradingContext{Regime: model.RegimeBull}, 0)
	if v.Pass || !strings.Contains(v.Reason, "PORTFOLIO_SIZE") {
		t.Fatalf("expected PORTFOLIO_SIZE block at 10 positions, got %+v", v)
	}
}

func TestDailyBuyCounterCap(t *testing.T) {
	v := Evaluate(buyExecConfig(), signalFor("005930", 78),
		portfolio(5_000_000, 10_000_000),
		model.TradingContext{Regime: model.RegimeBear}, 2)
	if v.Pass || !strings.Contains(v.Reason, "DAILY_BUY_CAP") {
		t.Fatalf("expected DAILY_BUY_CAP block at BEAR limit, got %+v", v)
	}
}

func TestSectorConcentrationCap(t *testing.T) {
	// Four semiconductor positions already sum to 40% of total_asset;
	// a new semiconductor candidate must hit the 30% cap regardless of
	// its own notional.
	positions := make([]model.Position, 4)
	for i := range positions {
		p, _ := model.NewPosition("000001", "x", 10, decimal.NewFromInt(100000), "semiconductor", time.Now())
		positions[i] = p
	}
	signal := signalFor("005930", 78)
	signal.SectorGroup = "semiconductor"

	v := Evaluate(buyExecConfig(), signal,
		portfolio(6_000_000, 10_000_000, positions...),
		model.TradingContext{Regime: model.RegimeBull, PositionMultiplier: 1.0}, 0)
	if v.Pass || !strings.Contains(v.Reason, "SECTOR_CAP") {
		t.Fatalf("expected SECTOR_CAP block at 40%% held + candidate, got %+v", v)
	}

	// A candidate in a different sector is unaffected.
	signal.SectorGroup = "construction"
	v = Evaluate(buyExecConfig(), signal,
		portfolio(6_000_000, 10_000_000, positions...),
		model.TradingContext{Regime: model.RegimeBull, PositionMultiplier: 1.0}, 0)
	if !v.Pass {
		t.Fatalf("different sector should pass, blocked: %s", v.Reason)
	}

	// STRONG_BULL relaxes the cap to 50%: 40% + 9% candidate fits.
	signal.SectorGroup = "semiconductor"
	v = Evaluate(buyExecConfig(), signal,
		portfolio(6_000_000, 10_000_000, positions...),
		model.TradingContext{Regime: model.RegimeStrongBull, PositionMultiplier: 1.0}, 0)
	if !v.Pass {
		t.Fatalf("49%% should pass the STRONG_BULL 50%% cap, blocked: %s", v.Reason)
	}
}

func TestStockConcentrationCap(t *testing.T) {
	// Score 85 (12% tier) at 2.0x strategy and 1.0x context multipliers
	// is a 24% prospective single-stock weight, over the 15% default cap.
	signal := signalFor("005930", 85)
	signal.PositionMultiplier = 2.0

	v := Evaluate(buyExecConfig(), signal,
		portfolio(10_000_000, 10_000_000),
		model.TradingContext{Regime: model.RegimeBull, PositionMultiplier: 1.0}, 0)
	if v.Pass || !strings.Contains(v.Reason, "STOCK_CAP") {
		t.Fatalf("expected STOCK_CAP block at 24%% prospective weight, got %+v", v)
	}

	// STRONG_BULL relaxes the cap to 25%.
	v = Evaluate(buyExecConfig(), signal,
		portfolio(10_000_000, 10_000_000),
		model.TradingContext{Regime: model.RegimeStrongBull, PositionMultiplier: 1.0}, 0)
	if !v.Pass {
		t.Fatalf("24%% should pass the STRONG_BULL 25%% cap, blocked: %s", v.Reason)
	}
}

func TestSizeTiers(t *testing.T) {
	cfg := buyExecConfig()
	cases := []struct {
		score float64
		want  float64
	}{
		{85, 0.12},
		{80, 0.12},
		{75, 0.09},
		{65, 0.06},
		{59, 0},
	}
	for _, c := range cases {
		if got := SizeTier(cfg, c.score); got != c.want {
			t.Errorf("SizeTier(%v) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestTargetQuantity(t *testing.T) {
	cfg := buyExecConfig()
	total := decimal.NewFromInt(10_000_000)
	cash := decimal.NewFromInt(10_000_000)
	price := decimal.NewFromInt(72100)

	// score 78 -> 9% tier: 900,000 notional / 72,100 = 12 shares.
	qty := TargetQuantity(cfg, 78, total, cash, price, 1.0, 1.0)
	if qty != 12 {
		t.Errorf("quantity = %d, want 12", qty)
	}

	// Cash constraint caps the notional.
	qty = TargetQuantity(cfg, 78, total, decimal.NewFromInt(200_000), price, 1.0, 1.0)
	if qty != 2 {
		t.Errorf("cash-capped quantity = %d, want 2", qty)
	}

	// Below the minimum viable notional: rejected as zero. At 30,000/share
	// the 80,000 cash buys 2 shares, but 100,000 viability needs 3.
	qty = TargetQuantity(cfg, 78, total, decimal.NewFromInt(80_000), decimal.NewFromInt(30_000), 1.0, 1.0)
	if qty != 0 {
		t.Errorf("sub-viable quantity = %d, want 0", qty)
	}

	// Score under the lowest tier yields zero.
	if qty := TargetQuantity(cfg, 50, total, cash, price, 1.0, 1.0); qty != 0 {
		t.Errorf("tierless quantity = %d, want 0", qty)
	}

	// Multipliers compound: 9% * 0.5 * 0.8 = 3.6% -> 360,000 / 72,100 = 4.
	if qty := TargetQuantity(cfg, 78, total, cash, price, 0.5, 0.8); qty != 4 {
		t.Errorf("multiplied quantity = %d, want 4", qty)
	}
}
