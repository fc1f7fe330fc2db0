package buyexec

import (
	"github.com/shopspring/decimal"

	"github.com/korea-trading-core/core/internal/config"
	"github.com/korea-trading-core/core/internal/model"
)

// tickSteps is the venue's price-step ladder: orders below each bound
// must be priced in multiples of the paired step.
var tickSteps = []struct {
	upperBound int64
	step       int64
}{
	{2000, 1},
	{5000, 5},
	{20000, 10},
	{50000, 50},
	{200000, 100},
	{500000, 500},
}

const maxTickStep = 1000

// AlignToTick rounds price down to the venue's price step for its band.
func AlignToTick(price decimal.Decimal) decimal.Decimal {
	p := price.IntPart()
	step := int64(maxTickStep)
	for _, band := range tickSteps {
		if p < band.upperBound {
			step = band.step
			break
		}
	}
	return decimal.NewFromInt(p - p%step)
}

// buildOrder selects the order type for a signal (spec §4.4 "Order type
// selection"): the momentum family goes out as a limit order at the
// signal price plus a small premium, tick-aligned; everything else is a
// market order.
func buildOrder(cfg *config.BuyExec, signal model.BuySignal, qty int64) model.OrderRequest {
	req := model.OrderRequest{
		StockCode: signal.StockCode,
		Side:      model.SideBuy,
		Quantity:  qty,
		OrderType: model.OrderMarket,
	}
	switch signal.SignalType {
	case model.Momentum, model.MomentumContinuation:
		premium := decimal.NewFromFloat(1 + cfg.MomentumLimitPremium)
		price := AlignToTick(signal.SignalPrice.Mul(premium))
		req.OrderType = model.OrderLimit
		req.Price = &price
	}
	return req
}
