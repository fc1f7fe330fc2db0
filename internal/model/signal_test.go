package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func tradableEntry() WatchlistEntry {
	return WatchlistEntry{
		StockCode:   "005930",
		StockName:   "Samsung Electronics",
		HybridScore: 78,
		LLMScore:    80,
		IsTradable:  true,
		TradeTier:   Tier1,
		RiskTag:     RiskNeutral,
		Rank:        1,
		SectorGroup: "semiconductor",
	}
}

func TestNewBuySignalRejectsBlockedTier(t *testing.T) {
	entry := tradableEntry()
	entry.TradeTier = Blocked
	entry.IsTradable = false

	_, err := NewBuySignal(entry, GoldenCross, decimal.NewFromInt(72100), RegimeBull, SourceScanner, 1.0, time.Now())
	if err == nil {
		t.Fatal("expected BLOCKED entry to be rejected before publish")
	}
}

func TestNewBuySignalRejectsNonTradable(t *testing.T) {
	entry := tradableEntry()
	entry.IsTradable = false

	_, err := NewBuySignal(entry, GoldenCross, decimal.NewFromInt(72100), RegimeBull, SourceScanner, 1.0, time.Now())
	if err == nil {
		t.Fatal("expected non-tradable entry to be rejected")
	}
}

func TestNewBuySignalRejectsOutOfRangeMultiplier(t *testing.T) {
	for _, mult := range []float64{0.29, 2.01} {
		_, err := NewBuySignal(tradableEntry(), Momentum, decimal.NewFromInt(10000), RegimeBull, SourceScanner, mult, time.Now())
		if err == nil {
			t.Fatalf("expected multiplier %v to be rejected", mult)
		}
	}
}

func TestBuySignalJSONRoundTrip(t *testing.T) {
	signal, err := NewBuySignal(tradableEntry(), GoldenCross, decimal.NewFromInt(72100), RegimeBull, SourceScanner, 1.0, time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewBuySignal: %v", err)
	}
	rsi := 55.2
	signal.RSIValue = &rsi

	data, err := json.Marshal(signal)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded BuySignal
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.StockCode != signal.StockCode ||
		decoded.SignalType != signal.SignalType ||
		!decoded.SignalPrice.Equal(signal.SignalPrice) ||
		decoded.MarketRegime != signal.MarketRegime ||
		decoded.SectorGroup != "semiconductor" ||
		!decoded.Timestamp.Equal(signal.Timestamp) {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, signal)
	}
	if decoded.RSIValue == nil || *decoded.RSIValue != rsi {
		t.Fatalf("rsi_value lost in round trip")
	}
	if err := decoded.Validate(); err != nil {
		t.Fatalf("decoded signal should validate: %v", err)
	}
}

func TestBuySignalValidateCatchesTampering(t *testing.T) {
	signal, _ := NewBuySignal(tradableEntry(), Momentum, decimal.NewFromInt(10000), RegimeBull, SourceScanner, 1.0, time.Now())

	tampered := signal
	tampered.TradeTier = Blocked
	if err := tampered.Validate(); err == nil {
		t.Fatal("BLOCKED tier must fail consumer-side validation")
	}

	tampered = signal
	tampered.StockCode = "12345"
	if err := tampered.Validate(); err == nil {
		t.Fatal("5-digit code must fail validation")
	}

	tampered = signal
	tampered.SignalPrice = decimal.Zero
	if err := tampered.Validate(); err == nil {
		t.Fatal("zero price must fail validation")
	}
}

func TestSellReasonStopLossFamily(t *testing.T) {
	inFamily := []SellReason{StopLoss, ATRStop, DeathCross, BreakevenStop}
	for _, r := range inFamily {
		if !r.StopLossFamily() {
			t.Errorf("%s should be in the stop-loss family", r)
		}
	}
	outOfFamily := []SellReason{ProfitTarget, TrailingStop, ScaleOut, RSIOverbought, TimeExit, ManualExit}
	for _, r := range outOfFamily {
		if r.StopLossFamily() {
			t.Errorf("%s should not be in the stop-loss family", r)
		}
	}
}

func TestWatchlistEntryInvariants(t *testing.T) {
	entry := tradableEntry()
	entry.TradeTier = Blocked
	if err := entry.Validate(); err == nil {
		t.Fatal("BLOCKED + tradable must fail validation")
	}

	entry = tradableEntry()
	entry.RiskTag = RiskDistribution
	if err := entry.Validate(); err == nil {
		t.Fatal("DISTRIBUTION_RISK without veto must fail validation")
	}
	entry.VetoApplied = true
	entry.IsTradable = false
	if err := entry.Validate(); err != nil {
		t.Fatalf("vetoed non-tradable DISTRIBUTION_RISK entry should validate: %v", err)
	}
}
