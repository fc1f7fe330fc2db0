package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceTick is produced by the Gateway's WebSocket ingester at a rate
// bounded by the venue (typically sub-second).
type PriceTick struct {
	StockCode StockCode       `json:"stock_code"`
	Price     decimal.Decimal `json:"price"`
	Volume    int64           `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

// Validate is the boundary check every bus consumer runs before trusting a
// decoded tick (spec §7 "fail-fast boundaries").
func (t PriceTick) Validate() error {
	if !t.StockCode.Valid() {
		return fmt.Errorf("model: tick has invalid stock code %q", t.StockCode)
	}
	if t.Price.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("model: tick price must be positive, got %s", t.Price)
	}
	if t.Volume < 0 {
		return fmt.Errorf("model: tick volume must be non-negative, got %d", t.Volume)
	}
	return nil
}

// MinuteBar is derived by the scanner from ticks and stored in an
// in-process ring per stock code.
type MinuteBar struct {
	StockCode StockCode       `json:"stock_code"`
	MinuteTS  time.Time       `json:"minute_ts"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
}

// ApplyTick folds a tick arriving within this bar's minute into the OHLCV
// aggregate, following the teacher's pattern of updating high-water marks
// in place.
func (b *MinuteBar) ApplyTick(t PriceTick) {
	if b.Open.IsZero() {
		b.Open = t.Price
		b.High = t.Price
		b.Low = t.Price
	}
	if t.Price.GreaterThan(b.High) {
		b.High = t.Price
	}
	if b.Low.IsZero() || t.Price.LessThan(b.Low) {
		b.Low = t.Price
	}
	b.Close = t.Price
	b.Volume += t.Volume
}
