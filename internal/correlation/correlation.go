// Package correlation implements the Buy Executor's correlation guard
// (spec §4.4 step 8): Pearson correlation of daily closes between a
// candidate code and each currently held code over a lookback window,
// cached per pair with a 12h TTL (spec §4.6). Grounded on
// aristath-sentinel's gonum.org/v1/gonum/stat usage (pkg/formulas/stats.go)
// — no in-pack precedent computes Pearson correlation directly, so this
// is the closest analogue: the same package, applied to a different
// statistic.
package correlation

import (
	"context"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/korea-trading-core/core/internal/cache"
	"github.com/korea-trading-core/core/internal/gatewayclient"
	"github.com/korea-trading-core/core/internal/model"
)

const TTL = 12 * time.Hour

// PriceFetcher resolves a stock code's recent daily closes; satisfied by
// *gatewayclient.Client in production and a fake in tests.
type PriceFetcher interface {
	DailyPrices(ctx context.Context, code model.StockCode, days int) ([]model.DailyPrice, error)
}

var _ PriceFetcher = (*gatewayclient.Client)(nil)

type Checker struct {
	cache   *cache.Cache
	fetcher PriceFetcher
	days    int
}

func New(c *cache.Cache, fetcher PriceFetcher, lookbackDays int) *Checker {
	return &Checker{cache: c, fetcher: fetcher, days: lookbackDays}
}

// Pearson returns the correlation coefficient between a and b's daily
// closes over the configured lookback, computing and caching it on a
// cache miss.
func (c *Checker) Pearson(ctx context.Context, a, b model.StockCode) (float64, error) {
	key := cache.KeyCorrelation(a.String(), b.String())

	var cached float64
	if ok, err := c.cache.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	closesA, err := c.closes(ctx, a)
	if err != nil {
		return 0, err
	}
	closesB, err := c.closes(ctx, b)
	if err != nil {
		return 0, err
	}

	n := len(closesA)
	if len(closesB) < n {
		n = len(closesB)
	}
	if n < 2 {
		return 0, nil
	}
	coef := stat.Correlation(closesA[len(closesA)-n:], closesB[len(closesB)-n:], nil)

	_ = c.cache.Set(ctx, key, coef, TTL)
	return coef, nil
}

func (c *Checker) closes(ctx context.Context, code model.StockCode) ([]float64, error) {
	daily, err := c.fetcher.DailyPrices(ctx, code, c.days)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(daily))
	for i, d := range daily {
		out[i], _ = d.Close.Float64()
	}
	return out, nil
}
