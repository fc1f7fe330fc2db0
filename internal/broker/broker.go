// Package broker defines the Gateway's sole process-level contract with
// the external brokerage venue, generalized from the teacher's
// internal/market.MarketProvider interface to the operations spec §4.1
// names. Only the Gateway process ever imports an implementation of this
// interface; every other CORE component reaches the venue indirectly
// through the Gateway's HTTP surface (internal/gatewayclient).
package broker

import (
	"context"

	"github.com/korea-trading-core/core/internal/model"
)

// Client is implemented once per venue (internal/broker/kis is the only
// implementation in this repository).
type Client interface {
	Snapshot(ctx context.Context, code model.StockCode) (model.StockSnapshot, error)
	DailyPrices(ctx context.Context, code model.StockCode, days int) ([]model.DailyPrice, error)
	MinutePrices(ctx context.Context, code model.StockCode, count int) ([]model.MinutePrice, error)

	PlaceBuy(ctx context.Context, req model.OrderRequest) (model.OrderResult, error)
	PlaceSell(ctx context.Context, req model.OrderRequest) (model.OrderResult, error)
	Cancel(ctx context.Context, orderNo string) (model.CancelResult, error)
	OrderStatus(ctx context.Context, orderNo string) (model.OrderStatus, error)

	Balance(ctx context.Context) (model.PortfolioState, error)
	Cash(ctx context.Context) (model.CashStatus, error)

	IsMarketOpen(ctx context.Context) (model.MarketOpenStatus, error)
	IsTradingDay(ctx context.Context, date string) (model.TradingDayStatus, error)
}

// Subscriber is implemented by the Gateway's WebSocket streamer
// (internal/ws.Streamer), kept separate from Client because subscription
// management lives on the live connection, not the REST surface.
type Subscriber interface {
	Subscribe(codes []model.StockCode) error
	Unsubscribe(codes []model.StockCode) error
}
