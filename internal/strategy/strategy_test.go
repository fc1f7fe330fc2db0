package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/korea-trading-core/core/internal/config"
	"github.com/korea-trading-core/core/internal/model"
)

func scannerConfig() *config.Scanner {
	return &config.Scanner{
		MinRequiredBars:      20,
		MomentumCapPct:       0.05,
		VolumeRatioThreshold: 2.0,
	}
}

func entry() model.WatchlistEntry {
	return model.WatchlistEntry{
		StockCode:   "005930",
		IsTradable:  true,
		TradeTier:   model.Tier1,
		HybridScore: 78,
		LLMScore:    80,
		Rank:        1,
	}
}

func tctx(regime model.MarketRegime) model.TradingContext {
	return model.TradingContext{Regime: regime, PositionMultiplier: 1.0, StopLossMultiplier: 1.0}
}

// barsFrom builds one-minute bars from close prices, starting at the
// session open. Opens chain from the prior close; volumes default flat.
func barsFrom(closes []float64, volumes []int64) []model.MinuteBar {
	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.Local)
	bars := make([]model.MinuteBar, len(closes))
	prev := closes[0]
	for i, c := range closes {
		vol := int64(1000)
		if volumes != nil {
			vol = volumes[i]
		}
		open := decimal.NewFromFloat(prev)
		close := decimal.NewFromFloat(c)
		high, low := open, close
		if close.GreaterThan(open) {
			high, low = close, open
		}
		bars[i] = model.MinuteBar{
			StockCode: "005930",
			MinuteTS:  start.Add(time.Duration(i) * time.Minute),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    vol,
		}
		prev = c
	}
	return bars
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestGoldenCrossFires(t *testing.T) {
	closes := append(flat(21, 100), 110) // SMA5 jumps above SMA20 on the last bar
	bars := barsFrom(closes, nil)
	now := bars[len(bars)-1].MinuteTS

	cand, hit := GoldenCross(scannerConfig(), bars, entry(), tctx(model.RegimeBull), now)
	if !hit {
		t.Fatal("expected a golden cross on the breakout bar")
	}
	if cand.SignalType != model.GoldenCross {
		t.Errorf("signal type = %s", cand.SignalType)
	}
}

func TestGoldenCrossGatedInBear(t *testing.T) {
	closes := append(flat(21, 100), 110)
	bars := barsFrom(closes, nil)
	now := bars[len(bars)-1].MinuteTS

	if _, hit := GoldenCross(scannerConfig(), bars, entry(), tctx(model.RegimeBear), now); hit {
		t.Fatal("golden cross must be inactive in BEAR")
	}
}

func TestMomentumFiresWithinCap(t *testing.T) {
	// +3% intraday with a 3x volume spike on the last bar.
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100 + 3*float64(i)/float64(len(closes)-1)
	}
	volumes := make([]int64, 25)
	for i := range volumes {
		volumes[i] = 1000
	}
	volumes[24] = 3000
	bars := barsFrom(closes, volumes)
	now := bars[len(bars)-1].MinuteTS

	cand, hit := Momentum(scannerConfig(), bars, entry(), tctx(model.RegimeSideways), now)
	if !hit {
		t.Fatal("expected a momentum hit at +3% with volume confirmation")
	}
	if cand.VolumeRatio == nil || *cand.VolumeRatio < 2.0 {
		t.Errorf("volume ratio = %v, want >= 2.0", cand.VolumeRatio)
	}
}

func TestMomentumRejectsBlowOffTop(t *testing.T) {
	// +8% intraday exceeds the 5% cap.
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100 + 8*float64(i)/float64(len(closes)-1)
	}
	volumes := make([]int64, 25)
	for i := range volumes {
		volumes[i] = 1000
	}
	volumes[24] = 3000
	bars := barsFrom(closes, volumes)
	now := bars[len(bars)-1].MinuteTS

	if _, hit := Momentum(scannerConfig(), bars, entry(), tctx(model.RegimeSideways), now); hit {
		t.Fatal("momentum must not chase a move past the cap")
	}
}

func TestDipBuyRegimeBands(t *testing.T) {
	// -1% intraday: inside the bullish band (-3, -0.5), outside the
	// bearish band (-5, -2).
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100 - 1*float64(i)/float64(len(closes)-1)
	}
	bars := barsFrom(closes, nil)
	now := bars[len(bars)-1].MinuteTS
	cfg := scannerConfig()

	if _, hit := DipBuy(cfg, bars, entry(), tctx(model.RegimeBull), now); !hit {
		t.Error("-1% dip should fire in BULL")
	}
	if _, hit := DipBuy(cfg, bars, entry(), tctx(model.RegimeBear), now); hit {
		t.Error("-1% dip is too shallow for BEAR")
	}
}

func TestMomentumContinuationWindowAndRegime(t *testing.T) {
	// +2.4% intraday inside the 09:15-10:30 window. The path oscillates
	// (two up-ticks for every down-tick) so RSI stays well under 75.
	closes := make([]float64, 25)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		if i%2 == 1 {
			closes[i] = closes[i-1] + 0.4
		} else {
			closes[i] = closes[i-1] - 0.2
		}
	}
	bars := barsFrom(closes, nil)
	inWindow := time.Date(2025, 3, 14, 9, 40, 0, 0, time.Local)
	cfg := scannerConfig()

	if _, hit := MomentumContinuation(cfg, bars, entry(), tctx(model.RegimeBull), inWindow); !hit {
		t.Error("continuation should fire in BULL inside the window")
	}
	if _, hit := MomentumContinuation(cfg, bars, entry(), tctx(model.RegimeSideways), inWindow); hit {
		t.Error("continuation is BULL-only")
	}
	late := time.Date(2025, 3, 14, 11, 0, 0, 0, time.Local)
	if _, hit := MomentumContinuation(cfg, bars, entry(), tctx(model.RegimeBull), late); hit {
		t.Error("continuation must not fire after 10:30")
	}
}

func TestVolumeBreakoutNeedsNewHighAndVolume(t *testing.T) {
	closes := append(flat(24, 100), 101) // new intraday high on the last bar
	volumes := make([]int64, 25)
	for i := range volumes {
		volumes[i] = 1000
	}
	volumes[24] = 3500
	bars := barsFrom(closes, volumes)
	now := bars[len(bars)-1].MinuteTS
	cfg := scannerConfig()

	if _, hit := VolumeBreakout(cfg, bars, entry(), tctx(model.RegimeSideways), now); !hit {
		t.Error("3.5x volume on a new high should fire")
	}

	// Same shape without the volume spike.
	volumes[24] = 1500
	bars = barsFrom(closes, volumes)
	if _, hit := VolumeBreakout(cfg, bars, entry(), tctx(model.RegimeSideways), now); hit {
		t.Error("a new high without 3x volume must not fire")
	}
}

func TestStrategySetRespectsFeatureFlags(t *testing.T) {
	cfg := scannerConfig()
	if n := len(All(cfg)); n != 6 {
		t.Errorf("default strategy set size = %d, want 6", n)
	}
	cfg.EnableWatchlistConviction = true
	cfg.EnableORBBreakout = true
	if n := len(All(cfg)); n != 8 {
		t.Errorf("fully enabled strategy set size = %d, want 8", n)
	}
}
