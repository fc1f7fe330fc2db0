package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockSnapshot is the Gateway's snapshot(stock_code) response: current
// price, intraday OHLC, and optional fundamentals.
type StockSnapshot struct {
	StockCode     StockCode       `json:"stock_code"`
	Price         decimal.Decimal `json:"price"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	PrevClose     decimal.Decimal `json:"prev_close"`
	Volume        int64           `json:"volume"`
	MarketCap     *decimal.Decimal `json:"market_cap,omitempty"`
	PER           *float64        `json:"per,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// DailyPrice is one bar in a daily_prices(stock_code, days) history window.
type DailyPrice struct {
	Date   string          `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// MinutePrice is one bar in a minute_prices(stock_code, count) response.
type MinutePrice struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
}

// MarketOpenStatus is the is_market_open() response.
type MarketOpenStatus struct {
	Open    bool   `json:"open"`
	Session string `json:"session"`
}

// TradingDayStatus is the is_trading_day(date) response.
type TradingDayStatus struct {
	Trading bool `json:"trading"`
}

// CashStatus is the cash() response — the venue's "purchasable amount"
// field, not a locally stored cash figure.
type CashStatus struct {
	BuyingPower decimal.Decimal `json:"buying_power"`
}

// CancelResult is the cancel(order_no) response.
type CancelResult struct {
	Success bool `json:"success"`
}

// APIError is the Gateway HTTP surface's uniform error envelope (spec §6.3).
type APIError struct {
	Error     string    `json:"error"`
	Detail    string    `json:"detail"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}
