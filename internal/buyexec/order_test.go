package buyexec

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/korea-trading-core/core/internal/config"
	"github.com/korea-trading-core/core/internal/model"
)

func TestAlignToTick(t *testing.T) {
	cases := []struct {
		in   int64
		want int64
	}{
		{1999, 1999},   // under 2,000: 1-won steps
		{4997, 4995},   // under 5,000: 5-won steps
		{19994, 19990}, // under 20,000: 10-won steps
		{49960, 49950}, // under 50,000: 50-won steps
		{72316, 72300}, // under 200,000: 100-won steps
		{499700, 499500},
		{1234999, 1234000}, // 500,000 and over: 1,000-won steps
	}
	for _, c := range cases {
		got := AlignToTick(decimal.NewFromInt(c.in))
		if !got.Equal(decimal.NewFromInt(c.want)) {
			t.Errorf("AlignToTick(%d) = %s, want %d", c.in, got, c.want)
		}
	}
}

func TestBuildOrderMomentumFamilyIsLimit(t *testing.T) {
	cfg := &config.BuyExec{MomentumLimitPremium: 0.003}

	for _, st := range []model.SignalType{model.Momentum, model.MomentumContinuation} {
		signal := model.BuySignal{
			StockCode:   "005930",
			SignalType:  st,
			SignalPrice: decimal.NewFromInt(72100),
		}
		req := buildOrder(cfg, signal, 12)
		if req.OrderType != model.OrderLimit {
			t.Errorf("%s order type = %s, want limit", st, req.OrderType)
			continue
		}
		if req.Price == nil {
			t.Errorf("%s limit order has no price", st)
			continue
		}
		// 72,100 * 1.003 = 72,316.3, tick-aligned down to 72,300.
		if !req.Price.Equal(decimal.NewFromInt(72300)) {
			t.Errorf("%s limit price = %s, want 72300", st, req.Price)
		}
	}
}

func TestBuildOrderOthersAreMarket(t *testing.T) {
	cfg := &config.BuyExec{MomentumLimitPremium: 0.003}
	for _, st := range []model.SignalType{model.GoldenCross, model.RSIRebound, model.DipBuy, model.VolumeBreakout, model.WatchlistConviction, model.ORBBreakout} {
		req := buildOrder(cfg, model.BuySignal{StockCode: "005930", SignalType: st, SignalPrice: decimal.NewFromInt(72100)}, 12)
		if req.OrderType != model.OrderMarket {
			t.Errorf("%s order type = %s, want market", st, req.OrderType)
		}
		if req.Price != nil {
			t.Errorf("%s market order must carry no price", st)
		}
	}
}
