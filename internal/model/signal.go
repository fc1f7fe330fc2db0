package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type SignalType string

const (
	GoldenCross           SignalType = "GOLDEN_CROSS"
	RSIRebound            SignalType = "RSI_REBOUND"
	Momentum              SignalType = "MOMENTUM"
	MomentumContinuation  SignalType = "MOMENTUM_CONTINUATION"
	DipBuy                SignalType = "DIP_BUY"
	VolumeBreakout        SignalType = "VOLUME_BREAKOUT"
	WatchlistConviction   SignalType = "WATCHLIST_CONVICTION"
	ORBBreakout           SignalType = "ORB_BREAKOUT"
)

type SignalSource string

const (
	SourceScanner    SignalSource = "scanner"
	SourceConviction SignalSource = "conviction"
	SourceManual     SignalSource = "manual"
)

// BuySignal is published to the buy-signal stream. Construction enforces
// the invariant that a BLOCKED/non-tradable entry is rejected before it
// ever reaches the bus.
type BuySignal struct {
	StockCode          StockCode       `json:"stock_code"`
	StockName          string          `json:"stock_name"`
	SignalType         SignalType      `json:"signal_type"`
	SignalPrice        decimal.Decimal `json:"signal_price"`
	LLMScore           float64         `json:"llm_score"`
	HybridScore        float64         `json:"hybrid_score"`
	TradeTier          TradeTier       `json:"trade_tier"`
	RiskTag            RiskTag         `json:"risk_tag"`
	SectorGroup        string          `json:"sector_group"`
	MarketRegime       MarketRegime    `json:"market_regime"`
	Source             SignalSource    `json:"source"`
	Timestamp          time.Time       `json:"timestamp"`
	RSIValue           *float64        `json:"rsi_value,omitempty"`
	VolumeRatio        *float64        `json:"volume_ratio,omitempty"`
	VWAP               *decimal.Decimal `json:"vwap,omitempty"`
	PositionMultiplier float64         `json:"position_multiplier"`
}

// NewBuySignal validates the entry against the watchlist gate before
// constructing a publishable signal; a BLOCKED or non-tradable entry
// returns an error instead of a signal, matching §3's invariant
// "trade_tier == BLOCKED ⇒ rejected before publish".
func NewBuySignal(entry WatchlistEntry, signalType SignalType, price decimal.Decimal, regime MarketRegime, source SignalSource, posMult float64, now time.Time) (BuySignal, error) {
	if entry.TradeTier == Blocked || !entry.IsTradable {
		return BuySignal{}, fmt.Errorf("model: signal rejected for %s: trade_tier=%s is_tradable=%v", entry.StockCode, entry.TradeTier, entry.IsTradable)
	}
	if posMult < 0.3 || posMult > 2.0 {
		return BuySignal{}, fmt.Errorf("model: position_multiplier %.2f out of range [0.3,2.0]", posMult)
	}
	return BuySignal{
		StockCode:          entry.StockCode,
		StockName:          entry.StockName,
		SignalType:         signalType,
		SignalPrice:        price,
		LLMScore:           entry.LLMScore,
		HybridScore:        entry.HybridScore,
		TradeTier:          entry.TradeTier,
		RiskTag:            entry.RiskTag,
		SectorGroup:        entry.SectorGroup,
		MarketRegime:       regime,
		Source:             source,
		Timestamp:          now,
		PositionMultiplier: posMult,
	}, nil
}

// Validate is the boundary re-check every bus consumer runs before
// trusting a decoded BuySignal — an executor never assumes a signal is
// correct just because the scanner published it (spec §7 "Fail-fast
// boundaries").
func (s BuySignal) Validate() error {
	if !s.StockCode.Valid() {
		return fmt.Errorf("model: buy signal has invalid stock code %q", s.StockCode)
	}
	if s.TradeTier == Blocked {
		return fmt.Errorf("model: buy signal for %s has trade_tier BLOCKED", s.StockCode)
	}
	if s.SignalPrice.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("model: buy signal for %s has non-positive price %s", s.StockCode, s.SignalPrice)
	}
	if s.PositionMultiplier < 0.3 || s.PositionMultiplier > 2.0 {
		return fmt.Errorf("model: buy signal for %s has out-of-range position_multiplier %.2f", s.StockCode, s.PositionMultiplier)
	}
	return nil
}

type SellReason string

const (
	ProfitTarget   SellReason = "PROFIT_TARGET"
	ProfitFloor    SellReason = "PROFIT_FLOOR"
	ProfitLock     SellReason = "PROFIT_LOCK"
	BreakevenStop  SellReason = "BREAKEVEN_STOP"
	StopLoss       SellReason = "STOP_LOSS"
	ATRStop        SellReason = "ATR_STOP"
	TrailingStop   SellReason = "TRAILING_STOP"
	ScaleOut       SellReason = "SCALE_OUT"
	RSIOverbought  SellReason = "RSI_OVERBOUGHT"
	DeathCross     SellReason = "DEATH_CROSS"
	TimeExit       SellReason = "TIME_EXIT"
	ManualExit     SellReason = "MANUAL"
)

// StopLossFamily reports whether reason is one of the four reasons that
// trigger a stop-loss cooldown on full exit (§4.5).
func (r SellReason) StopLossFamily() bool {
	switch r {
	case StopLoss, ATRStop, DeathCross, BreakevenStop:
		return true
	}
	return false
}

// SellOrder is published to the sell-order stream by the Price Monitor
// (or, in principle, an external operator tool using reason=MANUAL — no
// CORE component in this repository publishes that case).
type SellOrder struct {
	StockCode   StockCode       `json:"stock_code"`
	StockName   string          `json:"stock_name"`
	SellReason  SellReason      `json:"sell_reason"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Quantity    int64           `json:"quantity"`
	Timestamp   time.Time       `json:"timestamp"`
	BuyPrice    *decimal.Decimal `json:"buy_price,omitempty"`
	ProfitPct   *float64        `json:"profit_pct,omitempty"`
	HoldingDays *int            `json:"holding_days,omitempty"`
}

func (s SellOrder) Validate() error {
	if !s.StockCode.Valid() {
		return fmt.Errorf("model: sell order has invalid stock code %q", s.StockCode)
	}
	if s.Quantity <= 0 {
		return fmt.Errorf("model: sell order quantity must be positive, got %d", s.Quantity)
	}
	return nil
}
