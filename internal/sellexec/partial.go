package sellexec

import (
	"github.com/shopspring/decimal"

	"github.com/korea-trading-core/core/internal/model"
)

// applyPartialFill returns the position after a partial scale-out fill
// (spec §4.5 "State transitions"): quantity decremented, total_buy_amount
// recomputed at the unchanged average buy price, high_watermark and
// stop_loss_price preserved. The scale_out_level cursor was already
// advanced and persisted by the monitor before the SellOrder was
// published, so it is carried through untouched here.
func applyPartialFill(pos model.Position, soldQty int64) model.Position {
	pos.Quantity -= soldQty
	if pos.Quantity < 0 {
		pos.Quantity = 0
	}
	pos.TotalBuyAmount = pos.AverageBuyPrice.Mul(decimal.NewFromInt(pos.Quantity))
	return pos
}
