package amm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// InitParams describes a new pool. The identifiers are derived by the caller.
type InitParams struct {
	Address    common.Address
	Authority  common.Address
	TokenA     common.Address
	TokenB     common.Address
	VaultA     common.Address
	VaultB     common.Address
	LPToken    common.Address
	FeeRateBps uint16
}

// Initialize returns an empty pool for the given token pair.
func Initialize(params InitParams) (Pool, error) {
	if params.FeeRateBps > MaxFeeRateBps {
		return Pool{}, fmt.Errorf("%w: %d > %d", ErrInvalidFeeRate, params.FeeRateBps, MaxFeeRateBps)
	}
	if params.TokenA == params.TokenB {
		return Pool{}, fmt.Errorf("%w: %s", ErrIdenticalMints, params.TokenA.Hex())
	}

	return Pool{
		Address:    params.Address,
		Authority:  params.Authority,
		TokenA:     params.TokenA,
		TokenB:     params.TokenB,
		VaultA:     params.VaultA,
		VaultB:     params.VaultB,
		LPToken:    params.LPToken,
		FeeRateBps: params.FeeRateBps,
	}, nil
}
