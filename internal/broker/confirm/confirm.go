// Package confirm implements the confirm-then-poll protocol shared by the
// Buy Executor and Sell Executor (spec §4.4 "Confirmation protocol", §4.5
// "identical polling pattern"): after an order is placed, poll
// order_status up to Count times at Interval seconds apart.
package confirm

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/korea-trading-core/core/internal/model"
)

// DryRunOrderNo is the sentinel order number that skips polling entirely
// (spec §4.4 "DRYRUN mode (order_no sentinel value) skips polling").
const DryRunOrderNo = "DRYRUN"

// StatusCanceller is the narrow slice of gatewayclient.Client this package
// needs; satisfied by *gatewayclient.Client in production and a fake in
// tests.
type StatusCanceller interface {
	OrderStatus(ctx context.Context, orderNo string) (model.OrderStatus, error)
	Cancel(ctx context.Context, orderNo string) (model.CancelResult, error)
}

// Outcome is the result of a confirm loop.
type Outcome struct {
	Filled    bool
	FilledQty int64
	AvgPrice  decimal.Decimal
	Uncertain bool // could neither confirm nor cancel; caller must mark the position uncertain
}

// Poll runs the shared confirmation loop for orderNo: up to count polls of
// order_status at interval apart. On a terminal non-fill, it attempts a
// cancel; if cancel also fails (the order filled in the race between the
// last poll and the cancel attempt), it polls once more. If that still
// doesn't resolve, Outcome.Uncertain is set and the caller must treat the
// position as requiring reconciliation.
func Poll(ctx context.Context, client StatusCanceller, orderNo string, count int, interval time.Duration) (Outcome, error) {
	if orderNo == DryRunOrderNo {
		return Outcome{Filled: true}, nil
	}

	var last model.OrderStatus
	for i := 0; i < count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return Outcome{}, ctx.Err()
			case <-time.After(interval):
			}
		}
		st, err := client.OrderStatus(ctx, orderNo)
		if err != nil {
			return Outcome{}, err
		}
		last = st
		if st.Filled {
			return Outcome{Filled: true, FilledQty: st.FilledQty, AvgPrice: st.AvgPrice}, nil
		}
	}

	cancelRes, cancelErr := client.Cancel(ctx, orderNo)
	if cancelErr == nil && cancelRes.Success {
		return Outcome{Filled: false}, nil
	}

	// Cancel failed — most likely the order filled in the race window.
	// Poll once more to find out.
	st, err := client.OrderStatus(ctx, orderNo)
	if err != nil {
		return Outcome{Uncertain: true}, nil
	}
	if st.Filled {
		return Outcome{Filled: true, FilledQty: st.FilledQty, AvgPrice: st.AvgPrice}, nil
	}
	_ = last
	return Outcome{Uncertain: true}, nil
}
