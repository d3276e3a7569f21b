package amm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"minidex/internal/safemath"
)

// SwapParams are the inputs of a swap. HeldAmountIn is the trader's current
// balance of the input token as reported by custody.
type SwapParams struct {
	Trader       common.Address
	AmountIn     uint64
	MinAmountOut uint64
	Direction    Direction
	HeldAmountIn uint64
}

// SwapResult is the outcome of a swap.
type SwapResult struct {
	AmountOut     uint64
	FeeAdjustedIn uint64
	Fee           uint64
	Instructions  []Instruction
}

// Swap trades AmountIn of one token for the other along x*y=k after taking
// the fee from the input. The whole input, fee included, is added to the
// input reserve.
func Swap(p Pool, params SwapParams) (Pool, SwapResult, error) {
	in, out, err := p.sides(params.Direction)
	if err != nil {
		return Pool{}, SwapResult{}, err
	}
	if params.AmountIn == 0 {
		return Pool{}, SwapResult{}, ErrZeroSwapAmount
	}
	if p.ReserveA == 0 || p.ReserveB == 0 {
		return Pool{}, SwapResult{}, fmt.Errorf("%w: reserves %d/%d", ErrInsufficientLiquidity, p.ReserveA, p.ReserveB)
	}
	if params.HeldAmountIn < params.AmountIn {
		return Pool{}, SwapResult{}, fmt.Errorf("%w: held %d < %d", ErrInsufficientUserBalance, params.HeldAmountIn, params.AmountIn)
	}

	amountOut, feeAdjusted, err := swapOutput(params.AmountIn, in.reserve, out.reserve, p.FeeRateBps)
	if err != nil {
		return Pool{}, SwapResult{}, err
	}

	if amountOut < params.MinAmountOut {
		return Pool{}, SwapResult{}, fmt.Errorf("%w: out %d < min %d", ErrSlippageExceeded, amountOut, params.MinAmountOut)
	}
	if amountOut >= out.reserve {
		return Pool{}, SwapResult{}, fmt.Errorf("%w: out %d drains reserve %d", ErrInsufficientLiquidity, amountOut, out.reserve)
	}

	newIn, err := safemath.Add64(in.reserve, params.AmountIn)
	if err != nil {
		return Pool{}, SwapResult{}, overflow(err, "input reserve")
	}
	newOut, err := safemath.Sub64(out.reserve, amountOut)
	if err != nil {
		return Pool{}, SwapResult{}, overflow(err, "output reserve")
	}

	return p.withReserves(params.Direction, newIn, newOut), SwapResult{
		AmountOut:     amountOut,
		FeeAdjustedIn: feeAdjusted,
		Fee:           params.AmountIn - feeAdjusted,
		Instructions: []Instruction{
			transfer(in.token, params.Trader, in.vault, params.Trader, params.AmountIn),
			transfer(out.token, out.vault, params.Trader, p.Address, amountOut),
		},
	}, nil
}

// swapOutput returns the output amount and fee-adjusted input of a swap:
//
//	adj = in * (10000 - fee) / 10000
//	out = adj * reserveOut / (reserveIn + adj)
func swapOutput(amountIn, reserveIn, reserveOut uint64, feeBps uint16) (uint64, uint64, error) {
	feeAdjusted, err := safemath.MulDiv(amountIn, FeeDenominator-uint64(feeBps), FeeDenominator)
	if err != nil {
		return 0, 0, overflow(err, "fee adjusted input")
	}

	numerator := safemath.Mul(feeAdjusted, reserveOut)
	denominator := new(uint256.Int).Add(uint256.NewInt(reserveIn), uint256.NewInt(feeAdjusted))
	amountOut, err := safemath.Div(numerator, denominator)
	if err != nil {
		return 0, 0, overflow(err, "amount out")
	}
	return amountOut, feeAdjusted, nil
}
