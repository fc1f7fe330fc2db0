package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewPositionInvariants(t *testing.T) {
	pos, err := NewPosition("005930", "Samsung Electronics", 12, decimal.NewFromInt(72120), "semiconductor", time.Now())
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	wantTotal := decimal.NewFromInt(72120 * 12)
	if !pos.TotalBuyAmount.Equal(wantTotal) {
		t.Errorf("total_buy_amount = %s, want %s", pos.TotalBuyAmount, wantTotal)
	}
	if !pos.HighWaterMark.Equal(pos.AverageBuyPrice) {
		t.Errorf("high_watermark at creation = %s, want avg buy price %s", pos.HighWaterMark, pos.AverageBuyPrice)
	}
}

func TestNewPositionRejectsBadInputs(t *testing.T) {
	if _, err := NewPosition("005930", "x", 0, decimal.NewFromInt(100), "", time.Now()); err == nil {
		t.Error("zero quantity must be rejected")
	}
	if _, err := NewPosition("005930", "x", 10, decimal.Zero, "", time.Now()); err == nil {
		t.Error("zero price must be rejected")
	}
	if _, err := NewPosition("93", "x", 10, decimal.NewFromInt(100), "", time.Now()); err == nil {
		t.Error("malformed code must be rejected")
	}
}

func TestProfitPct(t *testing.T) {
	pos, _ := NewPosition("047040", "Daewoo E&C", 100, decimal.NewFromInt(10000), "", time.Now())
	got, _ := pos.ProfitPct(decimal.NewFromInt(10400)).Float64()
	if got != 0.04 {
		t.Errorf("profit pct = %v, want 0.04", got)
	}
	pos.HighWaterMark = decimal.NewFromInt(10400)
	high, _ := pos.HighProfitPct().Float64()
	if high != 0.04 {
		t.Errorf("high profit pct = %v, want 0.04", high)
	}
}

func TestHoldingDays(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	pos, _ := NewPosition("005930", "x", 1, decimal.NewFromInt(100), "", now.Add(-11*24*time.Hour))
	if got := pos.HoldingDays(now); got != 11 {
		t.Errorf("holding days = %d, want 11", got)
	}
}

func TestPortfolioStateHelpers(t *testing.T) {
	a, _ := NewPosition("005930", "a", 10, decimal.NewFromInt(70000), "semiconductor", time.Now())
	b, _ := NewPosition("000660", "b", 20, decimal.NewFromInt(100000), "semiconductor", time.Now())
	state := PortfolioState{
		Positions:   []Position{a, b},
		CashBalance: decimal.NewFromInt(2_400_000),
		TotalAsset:  decimal.NewFromInt(10_000_000),
	}

	ratio, _ := state.CashRatio().Float64()
	if ratio != 0.24 {
		t.Errorf("cash ratio = %v, want 0.24", ratio)
	}
	if _, held := state.Holding("005930"); !held {
		t.Error("expected 005930 to be held")
	}
	if _, held := state.Holding("035720"); held {
		t.Error("did not expect 035720 to be held")
	}
	sector := state.SectorValue("semiconductor")
	want := a.TotalBuyAmount.Add(b.TotalBuyAmount)
	if !sector.Equal(want) {
		t.Errorf("sector value = %s, want %s", sector, want)
	}
}
