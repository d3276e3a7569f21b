package aggregate

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"minidex/internal/amm"
)

const ratioScale = 18

var yearSeconds = decimal.NewFromInt(int64(365 * 24 * time.Hour / time.Second))

// feeRate is fee / reserve for one side of the pool, or nil when either is
// zero.
func feeRate(fee *big.Int, reserve uint64) *decimal.Decimal {
	if fee == nil || fee.Sign() == 0 || reserve == 0 {
		return nil
	}
	rate := decimal.NewFromBigInt(fee, 0).DivRound(amm.DecimalFromUint64(reserve), ratioScale)
	return &rate
}

// computeAPR annualizes the combined per-side fee rates of one window.
func computeAPR(rateA, rateB *decimal.Decimal, windowSeconds uint64) *string {
	if windowSeconds == 0 || (rateA == nil && rateB == nil) {
		return nil
	}
	total := decimal.Zero
	if rateA != nil {
		total = total.Add(*rateA)
	}
	if rateB != nil {
		total = total.Add(*rateB)
	}
	apr := total.Mul(yearSeconds).DivRound(decimal.NewFromInt(int64(windowSeconds)), ratioScale)
	return decimalString(&apr)
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(ratioScale)
	return &s
}

func spotPrice(reserveA, reserveB uint64) *string {
	if reserveA == 0 || reserveB == 0 {
		return nil
	}
	price := amm.Ratio(reserveB, reserveA)
	return decimalString(&price)
}
