package amm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"minidex/internal/safemath"
)

// AddLiquidityParams are the inputs of a deposit.
type AddLiquidityParams struct {
	Provider    common.Address
	AmountA     uint64
	AmountB     uint64
	MinLPTokens uint64
}

// AddLiquidityResult is the outcome of a deposit.
type AddLiquidityResult struct {
	LPMinted     uint64
	Locked       uint64
	Instructions []Instruction
}

// RemoveLiquidityParams are the inputs of a withdrawal. HeldLPTokens is the
// provider's current LP balance as reported by custody.
type RemoveLiquidityParams struct {
	Provider     common.Address
	LPTokens     uint64
	MinAmountA   uint64
	MinAmountB   uint64
	HeldLPTokens uint64
}

// RemoveLiquidityResult is the outcome of a withdrawal.
type RemoveLiquidityResult struct {
	AmountA      uint64
	AmountB      uint64
	Instructions []Instruction
}

// AddLiquidity deposits both tokens and mints LP shares to the provider.
//
// The first deposit mints sqrt(a*b) minus MinimumLiquidity, which stays in
// the supply forever. Later deposits mint the smaller of the two
// proportional shares; any excess of the other token is donated to the pool.
func AddLiquidity(p Pool, params AddLiquidityParams) (Pool, AddLiquidityResult, error) {
	if params.AmountA == 0 || params.AmountB == 0 {
		return Pool{}, AddLiquidityResult{}, ErrZeroAmount
	}

	var minted, locked uint64
	if p.TotalLPSupply == 0 {
		raw := safemath.SqrtProduct(params.AmountA, params.AmountB)
		if raw <= MinimumLiquidity {
			return Pool{}, AddLiquidityResult{}, fmt.Errorf("%w: initial liquidity %d <= minimum %d", ErrInsufficientLiquidity, raw, MinimumLiquidity)
		}
		minted = raw - MinimumLiquidity
		locked = MinimumLiquidity
	} else {
		lpA, err := safemath.MulDiv(params.AmountA, p.TotalLPSupply, p.ReserveA)
		if err != nil {
			return Pool{}, AddLiquidityResult{}, overflow(err, "lp share of a")
		}
		lpB, err := safemath.MulDiv(params.AmountB, p.TotalLPSupply, p.ReserveB)
		if err != nil {
			return Pool{}, AddLiquidityResult{}, overflow(err, "lp share of b")
		}
		minted = safemath.Min(lpA, lpB)
	}

	if minted < params.MinLPTokens {
		return Pool{}, AddLiquidityResult{}, fmt.Errorf("%w: minted %d < min %d", ErrSlippageExceeded, minted, params.MinLPTokens)
	}
	if minted == 0 {
		return Pool{}, AddLiquidityResult{}, ErrZeroLPTokens
	}

	next := p
	var err error
	if next.ReserveA, err = safemath.Add64(p.ReserveA, params.AmountA); err != nil {
		return Pool{}, AddLiquidityResult{}, overflow(err, "reserve a")
	}
	if next.ReserveB, err = safemath.Add64(p.ReserveB, params.AmountB); err != nil {
		return Pool{}, AddLiquidityResult{}, overflow(err, "reserve b")
	}
	if next.TotalLPSupply, err = safemath.Add64(p.TotalLPSupply, minted); err != nil {
		return Pool{}, AddLiquidityResult{}, overflow(err, "lp supply")
	}
	if next.TotalLPSupply, err = safemath.Add64(next.TotalLPSupply, locked); err != nil {
		return Pool{}, AddLiquidityResult{}, overflow(err, "lp supply")
	}

	return next, AddLiquidityResult{
		LPMinted: minted,
		Locked:   locked,
		Instructions: []Instruction{
			transfer(p.TokenA, params.Provider, p.VaultA, params.Provider, params.AmountA),
			transfer(p.TokenB, params.Provider, p.VaultB, params.Provider, params.AmountB),
			mintTo(p.LPToken, params.Provider, p.Address, minted),
		},
	}, nil
}

// RemoveLiquidity burns LP shares and pays out the proportional reserves.
func RemoveLiquidity(p Pool, params RemoveLiquidityParams) (Pool, RemoveLiquidityResult, error) {
	if params.LPTokens == 0 {
		return Pool{}, RemoveLiquidityResult{}, ErrZeroLPTokens
	}
	if p.TotalLPSupply == 0 {
		return Pool{}, RemoveLiquidityResult{}, ErrEmptyPool
	}
	if p.ReserveA == 0 || p.ReserveB == 0 {
		return Pool{}, RemoveLiquidityResult{}, fmt.Errorf("%w: reserves %d/%d", ErrInsufficientLiquidity, p.ReserveA, p.ReserveB)
	}
	if params.HeldLPTokens < params.LPTokens {
		return Pool{}, RemoveLiquidityResult{}, fmt.Errorf("%w: held %d < %d", ErrInsufficientLPTokens, params.HeldLPTokens, params.LPTokens)
	}

	amountA, err := safemath.MulDiv(params.LPTokens, p.ReserveA, p.TotalLPSupply)
	if err != nil {
		return Pool{}, RemoveLiquidityResult{}, overflow(err, "amount a")
	}
	amountB, err := safemath.MulDiv(params.LPTokens, p.ReserveB, p.TotalLPSupply)
	if err != nil {
		return Pool{}, RemoveLiquidityResult{}, overflow(err, "amount b")
	}

	if amountA < params.MinAmountA {
		return Pool{}, RemoveLiquidityResult{}, fmt.Errorf("%w: amount a %d < min %d", ErrSlippageExceeded, amountA, params.MinAmountA)
	}
	if amountB < params.MinAmountB {
		return Pool{}, RemoveLiquidityResult{}, fmt.Errorf("%w: amount b %d < min %d", ErrSlippageExceeded, amountB, params.MinAmountB)
	}
	if amountA > p.ReserveA || amountB > p.ReserveB {
		return Pool{}, RemoveLiquidityResult{}, fmt.Errorf("%w: payout %d/%d exceeds reserves", ErrInsufficientLiquidity, amountA, amountB)
	}

	next := p
	if next.ReserveA, err = safemath.Sub64(p.ReserveA, amountA); err != nil {
		return Pool{}, RemoveLiquidityResult{}, overflow(err, "reserve a")
	}
	if next.ReserveB, err = safemath.Sub64(p.ReserveB, amountB); err != nil {
		return Pool{}, RemoveLiquidityResult{}, overflow(err, "reserve b")
	}
	if next.TotalLPSupply, err = safemath.Sub64(p.TotalLPSupply, params.LPTokens); err != nil {
		return Pool{}, RemoveLiquidityResult{}, overflow(err, "lp supply")
	}

	return next, RemoveLiquidityResult{
		AmountA: amountA,
		AmountB: amountB,
		Instructions: []Instruction{
			burn(p.LPToken, params.Provider, params.Provider, params.LPTokens),
			transfer(p.TokenA, p.VaultA, params.Provider, p.Address, amountA),
			transfer(p.TokenB, p.VaultB, params.Provider, p.Address, amountB),
		},
	}, nil
}
