package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderRequest is sent to the Gateway's place_buy/place_sell operations.
type OrderRequest struct {
	StockCode StockCode        `json:"stock_code"`
	Side      OrderSide        `json:"side"`
	Quantity  int64            `json:"quantity"`
	OrderType OrderType        `json:"order_type"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

func (r OrderRequest) Validate() error {
	if !r.StockCode.Valid() {
		return fmt.Errorf("model: order request has invalid stock code %q", r.StockCode)
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("model: order request quantity must be positive, got %d", r.Quantity)
	}
	if r.OrderType == OrderLimit && r.Price == nil {
		return fmt.Errorf("model: order_type=limit requires a price")
	}
	return nil
}

// OrderResult is the Gateway's response to place_buy/place_sell.
type OrderResult struct {
	Success        bool            `json:"success"`
	OrderNo        string          `json:"order_no,omitempty"`
	FilledQuantity int64           `json:"filled_quantity"`
	AvgFillPrice   decimal.Decimal `json:"avg_fill_price"`
	Message        string          `json:"message,omitempty"`
}

// OrderStatus is the Gateway's response to order_status.
type OrderStatus struct {
	Filled       bool            `json:"filled"`
	FilledQty    int64           `json:"filled_qty"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
	Cancellable  bool            `json:"cancellable"`
}

// TradeRecord is the append-only log of every executed trade, including
// sell attribution, used by cooldown reconstruction after restart.
type TradeRecord struct {
	StockCode    StockCode       `json:"stock_code"`
	Side         OrderSide       `json:"side"`
	Quantity     int64           `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	SellReason   SellReason      `json:"sell_reason,omitempty"`
	OrderNo      string          `json:"order_no"`
	ProfitPct    float64         `json:"profit_pct,omitempty"`
	ProfitAmount decimal.Decimal `json:"profit_amount,omitempty"`
	HoldingDays  int             `json:"holding_days,omitempty"`
	ExecutedAt   int64           `json:"executed_at"`
}
