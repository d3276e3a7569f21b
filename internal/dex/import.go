package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"minidex/internal/amm"
	"minidex/internal/exchange"
)

// ImportOptions controls how a chain pair is mirrored locally.
type ImportOptions struct {
	Authority  common.Address
	Provider   common.Address
	FeeRateBps uint16
}

// Imported is the local pool seeded from a pair.
type Imported struct {
	Source PairState
	Pool   amm.Pool
	Minted uint64
}

// ImportPair creates a pool for the pair's tokens and deposits its reserves
// on behalf of the provider, who is credited the tokens first. Reserves
// must fit in uint64.
func ImportPair(ex *exchange.Exchange, state PairState, opts ImportOptions) (Imported, error) {
	if state.Reserve0 == nil || state.Reserve1 == nil || state.Reserve0.Sign() == 0 || state.Reserve1.Sign() == 0 {
		return Imported{}, fmt.Errorf("%w: %s", ErrEmptyPair, state.Pair.Hex())
	}
	if !state.Reserve0.IsUint64() || !state.Reserve1.IsUint64() {
		return Imported{}, fmt.Errorf("pair %s: reserves %s/%s exceed uint64", state.Pair.Hex(), state.Reserve0, state.Reserve1)
	}
	r0, r1 := state.Reserve0.Uint64(), state.Reserve1.Uint64()

	pool, err := ex.CreatePool(opts.Authority, state.Token0, state.Token1, opts.FeeRateBps)
	if err != nil {
		return Imported{}, fmt.Errorf("create pool: %w", err)
	}
	if err := ex.Credit(state.Token0, opts.Provider, r0); err != nil {
		return Imported{}, fmt.Errorf("credit token0: %w", err)
	}
	if err := ex.Credit(state.Token1, opts.Provider, r1); err != nil {
		return Imported{}, fmt.Errorf("credit token1: %w", err)
	}

	pool, res, err := ex.AddLiquidity(pool.Address, amm.AddLiquidityParams{
		Provider: opts.Provider,
		AmountA:  r0,
		AmountB:  r1,
	})
	if err != nil {
		return Imported{}, fmt.Errorf("seed liquidity: %w", err)
	}
	return Imported{Source: state, Pool: pool, Minted: res.LPMinted}, nil
}
