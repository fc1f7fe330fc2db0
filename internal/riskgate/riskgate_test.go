package riskgate

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/korea-trading-core/core/internal/config"
	"github.com/korea-trading-core/core/internal/model"
)

func scannerConfig() *config.Scanner {
	return &config.Scanner{
		MinRequiredBars:      20,
		SignalCooldownSec:    600,
		RSIGuardMaxSideways:  75,
		RSIGuardMaxBull:      85,
		VWAPDeviationWarning: 0.02,
		NoTradeWindowStart:   "09:00",
		NoTradeWindowEnd:     "09:15",
		DangerWindowStart:    "14:00",
		DangerWindowEnd:      "15:00",
		DailyBuyCapBull:      8,
		DailyBuyCapSideways:  5,
		DailyBuyCapBear:      2,
	}
}

func at(hhmm string) time.Time {
	t, _ := time.Parse("15:04", hhmm)
	return time.Date(2025, 3, 14, t.Hour(), t.Minute(), 0, 0, time.Local)
}

func cleanInput(now time.Time) Input {
	return Input{
		Now: now,
		Entry: model.WatchlistEntry{
			StockCode:   "005930",
			IsTradable:  true,
			TradeTier:   model.Tier1,
			RiskTag:     model.RiskNeutral,
			HybridScore: 78,
		},
		SignalType:   model.GoldenCross,
		Regime:       model.RegimeSideways,
		CurrentPrice: decimal.NewFromInt(72100),
	}
}

func TestCleanInputPasses(t *testing.T) {
	v := Evaluate(scannerConfig(), cleanInput(at("10:00")))
	if !v.Pass {
		t.Fatalf("clean input should pass, blocked: %s", v.Reason)
	}
}

func TestNoTradeWindow(t *testing.T) {
	cfg := scannerConfig()
	for _, hhmm := range []string{"09:00", "09:14"} {
		if v := Evaluate(cfg, cleanInput(at(hhmm))); v.Pass {
			t.Errorf("%s should be inside the no-trade window", hhmm)
		}
	}
	if v := Evaluate(cfg, cleanInput(at("09:15"))); !v.Pass {
		t.Errorf("09:15 should be outside the no-trade window, blocked: %s", v.Reason)
	}
}

func TestDangerWindow(t *testing.T) {
	cfg := scannerConfig()
	if v := Evaluate(cfg, cleanInput(at("14:30"))); v.Pass {
		t.Error("14:30 should be inside the danger window")
	}
	if v := Evaluate(cfg, cleanInput(at("15:00"))); !v.Pass {
		t.Errorf("15:00 should be outside the danger window, blocked: %s", v.Reason)
	}
}

func TestDailyBuyCap(t *testing.T) {
	cfg := scannerConfig()
	in := cleanInput(at("10:00"))
	in.DailyBuyCount = 5 // SIDEWAYS cap
	if v := Evaluate(cfg, in); v.Pass {
		t.Error("count at cap should be blocked")
	}
	in.DailyBuyCount = 4
	if v := Evaluate(cfg, in); !v.Pass {
		t.Errorf("count under cap should pass, blocked: %s", v.Reason)
	}
}

func TestRSIGuardBoundary(t *testing.T) {
	cfg := scannerConfig()

	// Exactly 75 in SIDEWAYS is rejected; 74.99 is accepted (spec §8).
	in := cleanInput(at("10:00"))
	rsi := 75.0
	in.RSI = &rsi
	if v := Evaluate(cfg, in); v.Pass {
		t.Error("RSI 75.00 in SIDEWAYS must be rejected")
	}
	rsi = 74.99
	if v := Evaluate(cfg, in); !v.Pass {
		t.Errorf("RSI 74.99 in SIDEWAYS must pass, blocked: %s", v.Reason)
	}

	// The symmetric case at 85 in BULL.
	in.Regime = model.RegimeBull
	rsi = 85.0
	if v := Evaluate(cfg, in); v.Pass {
		t.Error("RSI 85.00 in BULL must be rejected")
	}
	rsi = 84.99
	if v := Evaluate(cfg, in); !v.Pass {
		t.Errorf("RSI 84.99 in BULL must pass, blocked: %s", v.Reason)
	}
}

func TestRSIGuardPartialBypass(t *testing.T) {
	cfg := scannerConfig()
	rsi := 90.0
	for _, st := range []model.SignalType{model.MomentumContinuation, model.WatchlistConviction, model.ORBBreakout} {
		in := cleanInput(at("10:00"))
		in.SignalType = st
		in.RSI = &rsi
		if v := Evaluate(cfg, in); !v.Pass {
			t.Errorf("%s should bypass the RSI guard, blocked: %s", st, v.Reason)
		}
	}
}

func TestVWAPDeviationGuard(t *testing.T) {
	cfg := scannerConfig()
	in := cleanInput(at("10:00"))
	vwap := decimal.NewFromInt(70000)
	in.VWAP = &vwap
	in.CurrentPrice = decimal.NewFromInt(71500) // +2.14% above VWAP
	if v := Evaluate(cfg, in); v.Pass {
		t.Error("price stretched past the VWAP deviation warning must be rejected")
	}
	in.CurrentPrice = decimal.NewFromInt(71000) // +1.43%
	if v := Evaluate(cfg, in); !v.Pass {
		t.Errorf("price within the VWAP band should pass, blocked: %s", v.Reason)
	}
}

func TestSignalCooldown(t *testing.T) {
	cfg := scannerConfig()
	in := cleanInput(at("10:00"))
	last := in.Now.Add(-5 * time.Minute)
	in.LastSignalAt = &last
	if v := Evaluate(cfg, in); v.Pass {
		t.Error("signal 5 minutes after the last one must be blocked by the 600s cooldown")
	}
	last = in.Now.Add(-11 * time.Minute)
	if v := Evaluate(cfg, in); !v.Pass {
		t.Errorf("signal past the cooldown should pass, blocked: %s", v.Reason)
	}
}

func TestCooldownGates(t *testing.T) {
	cfg := scannerConfig()
	in := cleanInput(at("10:00"))
	in.InStopLossCooldown = true
	if v := Evaluate(cfg, in); v.Pass || !strings.Contains(v.Reason, "STOP_LOSS_COOLDOWN") {
		t.Errorf("stop-loss cooldown must block, got %+v", v)
	}
	in.InStopLossCooldown = false
	in.InSellCooldown = true
	if v := Evaluate(cfg, in); v.Pass || !strings.Contains(v.Reason, "SELL_COOLDOWN") {
		t.Errorf("sell cooldown must block, got %+v", v)
	}
}

func TestScoutVeto(t *testing.T) {
	// Spec scenario 2: a BLOCKED non-tradable entry never emits.
	cfg := scannerConfig()
	in := cleanInput(at("10:00"))
	in.Entry.TradeTier = model.Blocked
	in.Entry.IsTradable = false
	v := Evaluate(cfg, in)
	if v.Pass || !strings.Contains(v.Reason, "SCOUT_VETO") {
		t.Errorf("BLOCKED entry must be vetoed, got %+v", v)
	}
}
