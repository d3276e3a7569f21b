package amm

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"minidex/internal/safemath"
)

const priceScale = 18

// Quote previews a swap without touching any balance.
type Quote struct {
	AmountIn       uint64          `json:"amount_in,string"`
	FeeAdjustedIn  uint64          `json:"fee_adjusted_in,string"`
	Fee            uint64          `json:"fee,string"`
	AmountOut      uint64          `json:"amount_out,string"`
	SpotPrice      decimal.Decimal `json:"spot_price"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
	// PriceImpact is 1 - ExecutionPrice/SpotPrice, fee included.
	PriceImpact decimal.Decimal `json:"price_impact"`
}

// QuoteSwap prices a swap of amountIn in direction d against p.
func QuoteSwap(p Pool, amountIn uint64, d Direction) (Quote, error) {
	in, out, err := p.sides(d)
	if err != nil {
		return Quote{}, err
	}
	if amountIn == 0 {
		return Quote{}, ErrZeroSwapAmount
	}
	if in.reserve == 0 || out.reserve == 0 {
		return Quote{}, fmt.Errorf("%w: reserves %d/%d", ErrInsufficientLiquidity, p.ReserveA, p.ReserveB)
	}

	amountOut, feeAdjusted, err := swapOutput(amountIn, in.reserve, out.reserve, p.FeeRateBps)
	if err != nil {
		return Quote{}, err
	}
	if amountOut >= out.reserve {
		return Quote{}, fmt.Errorf("%w: out %d drains reserve %d", ErrInsufficientLiquidity, amountOut, out.reserve)
	}

	spot := Ratio(out.reserve, in.reserve)
	exec := Ratio(amountOut, amountIn)
	impact := decimal.Zero
	if !spot.IsZero() {
		impact = decimal.NewFromInt(1).Sub(exec.DivRound(spot, priceScale))
	}

	return Quote{
		AmountIn:       amountIn,
		FeeAdjustedIn:  feeAdjusted,
		Fee:            amountIn - feeAdjusted,
		AmountOut:      amountOut,
		SpotPrice:      spot,
		ExecutionPrice: exec,
		PriceImpact:    impact,
	}, nil
}

// MinAmountOut applies a slippage tolerance in basis points to a quoted
// output: out * (10000 - slippage) / 10000.
func MinAmountOut(amountOut uint64, slippageBps uint64) (uint64, error) {
	if slippageBps > FeeDenominator {
		return 0, fmt.Errorf("%w: %d bps", ErrInvalidSlippage, slippageBps)
	}
	min, err := safemath.MulDiv(amountOut, FeeDenominator-slippageBps, FeeDenominator)
	if err != nil {
		return 0, overflow(err, "min amount out")
	}
	return min, nil
}

// Ratio returns num/den as a decimal rounded to 18 places, or zero when den
// is zero.
func Ratio(num, den uint64) decimal.Decimal {
	if den == 0 {
		return decimal.Zero
	}
	return DecimalFromUint64(num).DivRound(DecimalFromUint64(den), priceScale)
}

// DecimalFromUint64 converts v without going through int64.
func DecimalFromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
