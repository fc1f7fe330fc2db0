package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Position is exclusively owned by the executor that last mutated it;
// concurrent readers (monitor, guard) get point-in-time snapshots.
type Position struct {
	StockCode       StockCode       `json:"stock_code"`
	StockName       string          `json:"stock_name"`
	Quantity        int64           `json:"quantity"`
	AverageBuyPrice decimal.Decimal `json:"average_buy_price"`
	TotalBuyAmount  decimal.Decimal `json:"total_buy_amount"`
	SectorGroup     string          `json:"sector_group"`
	HighWaterMark   decimal.Decimal `json:"high_watermark"`
	StopLossPrice   decimal.Decimal `json:"stop_loss_price"`
	BoughtAt        time.Time       `json:"bought_at"`

	// ScaleOutLevel is the cursor into the regime's scale-out ladder (§4.3);
	// Rule 6 advances it by at most one level per firing.
	ScaleOutLevel int `json:"scale_out_level"`

	// Uncertain is set by the Sell Executor when a sell order can neither be
	// confirmed nor cancelled; reconciliation takes over from there.
	Uncertain bool `json:"uncertain"`
}

// NewPosition constructs a Position from a confirmed fill, enforcing the
// invariants from spec §3 and §8: quantity>0, total_buy_amount ==
// quantity*average_buy_price, high_watermark >= average_buy_price.
func NewPosition(code StockCode, name string, qty int64, avgBuyPrice decimal.Decimal, sector string, boughtAt time.Time) (Position, error) {
	if !code.Valid() {
		return Position{}, fmt.Errorf("model: invalid stock code %q", code)
	}
	if qty <= 0 {
		return Position{}, fmt.Errorf("model: position quantity must be positive, got %d", qty)
	}
	if avgBuyPrice.LessThanOrEqual(decimal.Zero) {
		return Position{}, fmt.Errorf("model: average_buy_price must be positive")
	}
	return Position{
		StockCode:       code,
		StockName:       name,
		Quantity:        qty,
		AverageBuyPrice: avgBuyPrice,
		TotalBuyAmount:  avgBuyPrice.Mul(decimal.NewFromInt(qty)),
		SectorGroup:     sector,
		HighWaterMark:   avgBuyPrice,
		StopLossPrice:   decimal.Zero,
		BoughtAt:        boughtAt,
	}, nil
}

// ProfitPct returns (current - avg_buy) / avg_buy, as a fraction (not a
// percentage): 0.05 means +5%.
func (p Position) ProfitPct(current decimal.Decimal) decimal.Decimal {
	if p.AverageBuyPrice.IsZero() {
		return decimal.Zero
	}
	return current.Sub(p.AverageBuyPrice).Div(p.AverageBuyPrice)
}

// HighProfitPct returns (high_watermark - avg_buy) / avg_buy.
func (p Position) HighProfitPct() decimal.Decimal {
	return p.ProfitPct(p.HighWaterMark)
}

// HoldingDays returns the number of whole days since BoughtAt, relative to now.
func (p Position) HoldingDays(now time.Time) int {
	return int(now.Sub(p.BoughtAt).Hours() / 24)
}

// PortfolioState is derived from brokerage + local state; never stored
// authoritatively — always reconstructed on read.
type PortfolioState struct {
	Positions       []Position      `json:"positions"`
	CashBalance     decimal.Decimal `json:"cash_balance"`
	TotalAsset      decimal.Decimal `json:"total_asset"`
	StockEvalAmount decimal.Decimal `json:"stock_eval_amount"`
	PositionCount   int             `json:"position_count"`
	Timestamp       time.Time       `json:"timestamp"`
}

// CashRatio returns cash_balance / total_asset, or zero if total_asset is zero.
func (s PortfolioState) CashRatio() decimal.Decimal {
	if s.TotalAsset.IsZero() {
		return decimal.Zero
	}
	return s.CashBalance.Div(s.TotalAsset)
}

// Holding returns the position for code, if currently held.
func (s PortfolioState) Holding(code StockCode) (Position, bool) {
	for _, p := range s.Positions {
		if p.StockCode == code {
			return p, true
		}
	}
	return Position{}, false
}

// SectorValue sums the market value (at average buy price; the guard
// operates on book value, not mark-to-market, since ticks for non-held
// sectors are not always available) of every held position in the sector.
func (s PortfolioState) SectorValue(sector string) decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Positions {
		if p.SectorGroup == sector {
			total = total.Add(p.TotalBuyAmount)
		}
	}
	return total
}
