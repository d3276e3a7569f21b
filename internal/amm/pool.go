// Package amm implements the state transitions of a two-token
// constant-product pool. Every operation is a pure function from a pool value
// and its inputs to a new pool value plus the custody instructions that make
// the transition real.
package amm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"minidex/internal/safemath"
)

const (
	// MaxFeeRateBps caps the swap fee at 10%.
	MaxFeeRateBps uint16 = 1000
	// MinimumLiquidity LP units are minted to nobody on the first deposit and
	// can never be redeemed.
	MinimumLiquidity uint64 = 100
	FeeDenominator   uint64 = 10_000
)

// Pool is the full state of one pool.
type Pool struct {
	Address       common.Address `json:"address"`
	Authority     common.Address `json:"authority"`
	TokenA        common.Address `json:"token_a"`
	TokenB        common.Address `json:"token_b"`
	VaultA        common.Address `json:"vault_a"`
	VaultB        common.Address `json:"vault_b"`
	LPToken       common.Address `json:"lp_token"`
	FeeRateBps    uint16         `json:"fee_rate_bps"`
	ReserveA      uint64         `json:"reserve_a,string"`
	ReserveB      uint64         `json:"reserve_b,string"`
	TotalLPSupply uint64         `json:"total_lp_supply,string"`
}

// Locked returns the LP units that belong to no holder.
func (p Pool) Locked() uint64 {
	if p.TotalLPSupply == 0 {
		return 0
	}
	return MinimumLiquidity
}

// K returns ReserveA*ReserveB.
func (p Pool) K() *uint256.Int {
	return safemath.Mul(p.ReserveA, p.ReserveB)
}

// Validate reports whether p satisfies the pool invariants.
func (p Pool) Validate() error {
	if p.TokenA == p.TokenB {
		return fmt.Errorf("%w: identical tokens %s", ErrCorruptPool, p.TokenA.Hex())
	}
	if p.FeeRateBps > MaxFeeRateBps {
		return fmt.Errorf("%w: fee %d", ErrCorruptPool, p.FeeRateBps)
	}
	if p.TotalLPSupply == 0 {
		if p.ReserveA != 0 || p.ReserveB != 0 {
			return fmt.Errorf("%w: reserves %d/%d without lp supply", ErrCorruptPool, p.ReserveA, p.ReserveB)
		}
		return nil
	}
	if p.ReserveA == 0 || p.ReserveB == 0 {
		return fmt.Errorf("%w: zero reserve with lp supply %d", ErrCorruptPool, p.TotalLPSupply)
	}
	if p.TotalLPSupply < MinimumLiquidity {
		return fmt.Errorf("%w: lp supply %d below locked minimum", ErrCorruptPool, p.TotalLPSupply)
	}
	return nil
}

type side struct {
	token   common.Address
	vault   common.Address
	reserve uint64
}

// sides returns the input and output side of a swap in direction d.
func (p Pool) sides(d Direction) (in side, out side, err error) {
	a := side{token: p.TokenA, vault: p.VaultA, reserve: p.ReserveA}
	b := side{token: p.TokenB, vault: p.VaultB, reserve: p.ReserveB}
	switch d {
	case AToB:
		return a, b, nil
	case BToA:
		return b, a, nil
	default:
		return side{}, side{}, fmt.Errorf("%w: %d", ErrInvalidDirection, uint8(d))
	}
}

func (p Pool) withReserves(d Direction, in, out uint64) Pool {
	if d == AToB {
		p.ReserveA, p.ReserveB = in, out
	} else {
		p.ReserveB, p.ReserveA = in, out
	}
	return p
}
