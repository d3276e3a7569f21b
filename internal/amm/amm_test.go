package amm

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	poolAddr  = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	tokenA    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB    = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	vaultA    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	vaultB    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	lpToken   = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	alice     = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	authority = common.HexToAddress("0x0000000000000000000000000000000000000001")
)

func newPool(t *testing.T, fee uint16) Pool {
	t.Helper()
	p, err := Initialize(InitParams{
		Address:    poolAddr,
		Authority:  authority,
		TokenA:     tokenA,
		TokenB:     tokenB,
		VaultA:     vaultA,
		VaultB:     vaultB,
		LPToken:    lpToken,
		FeeRateBps: fee,
	})
	require.NoError(t, err)
	return p
}

func seeded(t *testing.T, fee uint16, a, b uint64) Pool {
	t.Helper()
	p, _, err := AddLiquidity(newPool(t, fee), AddLiquidityParams{Provider: alice, AmountA: a, AmountB: b})
	require.NoError(t, err)
	return p
}

func TestInitialize(t *testing.T) {
	p := newPool(t, 30)
	assert.Zero(t, p.ReserveA)
	assert.Zero(t, p.ReserveB)
	assert.Zero(t, p.TotalLPSupply)
	assert.Equal(t, uint16(30), p.FeeRateBps)
	require.NoError(t, p.Validate())

	_, err := Initialize(InitParams{TokenA: tokenA, TokenB: tokenB, FeeRateBps: MaxFeeRateBps})
	require.NoError(t, err)

	_, err = Initialize(InitParams{TokenA: tokenA, TokenB: tokenB, FeeRateBps: MaxFeeRateBps + 1})
	assert.ErrorIs(t, err, ErrInvalidFeeRate)

	_, err = Initialize(InitParams{TokenA: tokenA, TokenB: tokenA, FeeRateBps: 30})
	assert.ErrorIs(t, err, ErrIdenticalMints)

	// fee is checked before the token pair
	_, err = Initialize(InitParams{TokenA: tokenA, TokenB: tokenA, FeeRateBps: 5000})
	assert.ErrorIs(t, err, ErrInvalidFeeRate)
}

func TestFirstDeposit(t *testing.T) {
	p := newPool(t, 30)
	next, res, err := AddLiquidity(p, AddLiquidityParams{Provider: alice, AmountA: 1000, AmountB: 1000})
	require.NoError(t, err)

	assert.Equal(t, 1000-MinimumLiquidity, res.LPMinted)
	assert.Equal(t, MinimumLiquidity, res.Locked)
	assert.Equal(t, uint64(1000), next.ReserveA)
	assert.Equal(t, uint64(1000), next.ReserveB)
	assert.Equal(t, uint64(1000), next.TotalLPSupply)
	require.NoError(t, next.Validate())

	// input value is untouched
	assert.Zero(t, p.TotalLPSupply)

	require.Len(t, res.Instructions, 3)
	assert.Equal(t, Instruction{Kind: KindTransfer, Token: tokenA, From: alice, To: vaultA, Authority: alice, Amount: 1000}, res.Instructions[0])
	assert.Equal(t, Instruction{Kind: KindTransfer, Token: tokenB, From: alice, To: vaultB, Authority: alice, Amount: 1000}, res.Instructions[1])
	assert.Equal(t, Instruction{Kind: KindMint, Token: lpToken, To: alice, Authority: poolAddr, Amount: 900}, res.Instructions[2])
}

func TestFirstDepositMinimumBoundary(t *testing.T) {
	p := newPool(t, 30)

	// sqrt(100*100) == MinimumLiquidity
	_, _, err := AddLiquidity(p, AddLiquidityParams{Provider: alice, AmountA: 100, AmountB: 100})
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)

	next, res, err := AddLiquidity(p, AddLiquidityParams{Provider: alice, AmountA: 101, AmountB: 101})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.LPMinted)
	assert.Equal(t, uint64(101), next.TotalLPSupply)
}

func TestSubsequentDeposit(t *testing.T) {
	p := seeded(t, 30, 1000, 1000)

	next, res, err := AddLiquidity(p, AddLiquidityParams{Provider: alice, AmountA: 500, AmountB: 500})
	require.NoError(t, err)
	assert.Equal(t, uint64(500), res.LPMinted)
	assert.Zero(t, res.Locked)
	assert.Equal(t, uint64(1500), next.ReserveA)
	assert.Equal(t, uint64(1500), next.TotalLPSupply)

	// unbalanced deposit mints the smaller share and keeps the excess
	next, res, err = AddLiquidity(p, AddLiquidityParams{Provider: alice, AmountA: 500, AmountB: 100})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), res.LPMinted)
	assert.Equal(t, uint64(1500), next.ReserveA)
	assert.Equal(t, uint64(1100), next.ReserveB)
}

func TestAddLiquidityErrors(t *testing.T) {
	p := seeded(t, 30, 1000, 1000)

	_, _, err := AddLiquidity(p, AddLiquidityParams{Provider: alice, AmountA: 0, AmountB: 10})
	assert.ErrorIs(t, err, ErrZeroAmount)
	_, _, err = AddLiquidity(p, AddLiquidityParams{Provider: alice, AmountA: 10, AmountB: 0})
	assert.ErrorIs(t, err, ErrZeroAmount)

	_, _, err = AddLiquidity(p, AddLiquidityParams{Provider: alice, AmountA: 500, AmountB: 500, MinLPTokens: 501})
	assert.ErrorIs(t, err, ErrSlippageExceeded)

	// supply 1000 over reserve a 1000000: a share of 1 rounds to zero
	big := seeded(t, 30, 1_000_000, 1)
	_, _, err = AddLiquidity(big, AddLiquidityParams{Provider: alice, AmountA: 1, AmountB: 1})
	assert.ErrorIs(t, err, ErrZeroLPTokens)

	// slippage is checked before the zero-mint rule
	_, _, err = AddLiquidity(big, AddLiquidityParams{Provider: alice, AmountA: 1, AmountB: 1, MinLPTokens: 1})
	assert.ErrorIs(t, err, ErrSlippageExceeded)
}

func TestAddLiquidityOverflow(t *testing.T) {
	p := seeded(t, 30, math.MaxUint64-10, 1000)

	_, _, err := AddLiquidity(p, AddLiquidityParams{Provider: alice, AmountA: math.MaxUint64 - 10, AmountB: 1000})
	assert.ErrorIs(t, err, ErrMathOverflow)
	assert.Equal(t, ClassArithmetic, ClassOf(err))

	// supply 31622 over reserve a 1000: the share of a does not fit in 64 bits
	skewed := seeded(t, 30, 1000, 1_000_000)
	_, _, err = AddLiquidity(skewed, AddLiquidityParams{Provider: alice, AmountA: math.MaxUint64, AmountB: 1})
	assert.ErrorIs(t, err, ErrMathOverflow)
}

func TestRemoveLiquidity(t *testing.T) {
	p := seeded(t, 30, 1000, 1000)

	next, res, err := RemoveLiquidity(p, RemoveLiquidityParams{Provider: alice, LPTokens: 450, HeldLPTokens: 900})
	require.NoError(t, err)
	assert.Equal(t, uint64(450), res.AmountA)
	assert.Equal(t, uint64(450), res.AmountB)
	assert.Equal(t, uint64(550), next.ReserveA)
	assert.Equal(t, uint64(550), next.ReserveB)
	assert.Equal(t, uint64(550), next.TotalLPSupply)

	require.Len(t, res.Instructions, 3)
	assert.Equal(t, Instruction{Kind: KindBurn, Token: lpToken, From: alice, Authority: alice, Amount: 450}, res.Instructions[0])
	assert.Equal(t, Instruction{Kind: KindTransfer, Token: tokenA, From: vaultA, To: alice, Authority: poolAddr, Amount: 450}, res.Instructions[1])
	assert.Equal(t, Instruction{Kind: KindTransfer, Token: tokenB, From: vaultB, To: alice, Authority: poolAddr, Amount: 450}, res.Instructions[2])

	// withdrawing every circulating share leaves the locked minimum behind
	next, res, err = RemoveLiquidity(p, RemoveLiquidityParams{Provider: alice, LPTokens: 900, HeldLPTokens: 900})
	require.NoError(t, err)
	assert.Equal(t, uint64(900), res.AmountA)
	assert.Equal(t, MinimumLiquidity, next.TotalLPSupply)
	assert.Equal(t, uint64(100), next.ReserveA)
	require.NoError(t, next.Validate())
}

func TestRemoveLiquidityErrors(t *testing.T) {
	empty := newPool(t, 30)
	p := seeded(t, 30, 1000, 1000)

	cases := []struct {
		name   string
		pool   Pool
		params RemoveLiquidityParams
		want   error
	}{
		{"zero lp", p, RemoveLiquidityParams{LPTokens: 0, HeldLPTokens: 10}, ErrZeroLPTokens},
		{"zero lp on empty pool", empty, RemoveLiquidityParams{LPTokens: 0}, ErrZeroLPTokens},
		{"empty pool", empty, RemoveLiquidityParams{LPTokens: 1, HeldLPTokens: 1}, ErrEmptyPool},
		{"zero reserve", Pool{TotalLPSupply: 1000, ReserveA: 0, ReserveB: 10}, RemoveLiquidityParams{LPTokens: 1, HeldLPTokens: 1}, ErrInsufficientLiquidity},
		{"not enough held", p, RemoveLiquidityParams{LPTokens: 901, HeldLPTokens: 900}, ErrInsufficientLPTokens},
		{"slippage a", p, RemoveLiquidityParams{LPTokens: 100, HeldLPTokens: 900, MinAmountA: 101}, ErrSlippageExceeded},
		{"slippage b", p, RemoveLiquidityParams{LPTokens: 100, HeldLPTokens: 900, MinAmountB: 101}, ErrSlippageExceeded},
		{"payout above reserve", p, RemoveLiquidityParams{LPTokens: 2000, HeldLPTokens: 2000}, ErrInsufficientLiquidity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := RemoveLiquidity(tc.pool, tc.params)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSwapScenario(t *testing.T) {
	p := seeded(t, 30, 1000, 1000)

	next, res, err := Swap(p, SwapParams{Trader: alice, AmountIn: 100, Direction: AToB, HeldAmountIn: 100})
	require.NoError(t, err)
	assert.Equal(t, uint64(99), res.FeeAdjustedIn)
	assert.Equal(t, uint64(1), res.Fee)
	assert.Equal(t, uint64(90), res.AmountOut)
	assert.Equal(t, uint64(1100), next.ReserveA)
	assert.Equal(t, uint64(910), next.ReserveB)
	assert.Equal(t, p.TotalLPSupply, next.TotalLPSupply)

	require.Len(t, res.Instructions, 2)
	assert.Equal(t, Instruction{Kind: KindTransfer, Token: tokenA, From: alice, To: vaultA, Authority: alice, Amount: 100}, res.Instructions[0])
	assert.Equal(t, Instruction{Kind: KindTransfer, Token: tokenB, From: vaultB, To: alice, Authority: poolAddr, Amount: 90}, res.Instructions[1])

	back, res, err := Swap(next, SwapParams{Trader: alice, AmountIn: 90, Direction: BToA, HeldAmountIn: 90})
	require.NoError(t, err)
	assert.Equal(t, uint64(89), res.FeeAdjustedIn)
	// 89*1100/(910+89) = 97
	assert.Equal(t, uint64(97), res.AmountOut)
	assert.Equal(t, uint64(1003), back.ReserveA)
	assert.Equal(t, uint64(1000), back.ReserveB)
	assert.Equal(t, tokenB, res.Instructions[0].Token)
	assert.Equal(t, vaultB, res.Instructions[0].To)
	assert.Equal(t, vaultA, res.Instructions[1].From)
}

func TestSwapErrors(t *testing.T) {
	p := seeded(t, 30, 1000, 1000)
	empty := newPool(t, 30)

	cases := []struct {
		name   string
		pool   Pool
		params SwapParams
		want   error
	}{
		{"bad direction", p, SwapParams{AmountIn: 1, HeldAmountIn: 1}, ErrInvalidDirection},
		{"zero amount", p, SwapParams{AmountIn: 0, Direction: AToB}, ErrZeroSwapAmount},
		{"empty pool", empty, SwapParams{AmountIn: 1, Direction: AToB, HeldAmountIn: 1}, ErrInsufficientLiquidity},
		{"not enough held", p, SwapParams{AmountIn: 100, Direction: AToB, HeldAmountIn: 99}, ErrInsufficientUserBalance},
		{"slippage", p, SwapParams{AmountIn: 100, Direction: AToB, HeldAmountIn: 100, MinAmountOut: 91}, ErrSlippageExceeded},
		{"input reserve overflow", p, SwapParams{AmountIn: math.MaxUint64, Direction: AToB, HeldAmountIn: math.MaxUint64}, ErrMathOverflow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Swap(tc.pool, tc.params)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSwapZeroOutputAllowedWithoutFloor(t *testing.T) {
	p := seeded(t, 30, 1_000_000, 1000)

	next, res, err := Swap(p, SwapParams{Trader: alice, AmountIn: 10, Direction: AToB, HeldAmountIn: 10})
	require.NoError(t, err)
	assert.Zero(t, res.AmountOut)
	assert.Equal(t, uint64(1_000_010), next.ReserveA)
	assert.Equal(t, uint64(1000), next.ReserveB)
}

func TestSwapNeverDrainsReserve(t *testing.T) {
	p := seeded(t, 0, 1000, 1000)
	next, res, err := Swap(p, SwapParams{Trader: alice, AmountIn: math.MaxUint64 - 1000, Direction: AToB, HeldAmountIn: math.MaxUint64})
	require.NoError(t, err)
	assert.Less(t, res.AmountOut, p.ReserveB)
	assert.NotZero(t, next.ReserveB)
}

func TestSwapFeeBounds(t *testing.T) {
	free := seeded(t, 0, 1000, 1000)
	_, res, err := Swap(free, SwapParams{AmountIn: 100, Direction: AToB, HeldAmountIn: 100})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), res.FeeAdjustedIn)
	assert.Equal(t, uint64(90), res.AmountOut) // 100*1000/1100

	capped := seeded(t, MaxFeeRateBps, 1000, 1000)
	_, res, err = Swap(capped, SwapParams{AmountIn: 100, Direction: AToB, HeldAmountIn: 100})
	require.NoError(t, err)
	assert.Equal(t, uint64(90), res.FeeAdjustedIn)
	assert.Equal(t, uint64(10), res.Fee)
	assert.Equal(t, uint64(82), res.AmountOut) // 90*1000/1090
}

func TestErrorTaxonomy(t *testing.T) {
	cases := map[*Error]Class{
		ErrInvalidFeeRate:          ClassConfiguration,
		ErrIdenticalMints:          ClassConfiguration,
		ErrZeroAmount:              ClassInput,
		ErrZeroSwapAmount:          ClassInput,
		ErrZeroLPTokens:            ClassInput,
		ErrEmptyPool:               ClassState,
		ErrInsufficientLiquidity:   ClassState,
		ErrInsufficientLPTokens:    ClassBalance,
		ErrInsufficientUserBalance: ClassBalance,
		ErrSlippageExceeded:        ClassSlippage,
		ErrMathOverflow:            ClassArithmetic,
	}
	for e, class := range cases {
		wrapped := errors.Join(errors.New("context"), e)
		assert.Equal(t, class, ClassOf(wrapped), e.Code())
		assert.Equal(t, e.Code(), CodeOf(wrapped))
	}
	assert.Equal(t, ClassUnknown, ClassOf(errors.New("other")))
	assert.Empty(t, CodeOf(nil))
}

func TestDirectionText(t *testing.T) {
	d, err := ParseDirection("A-to-B")
	require.NoError(t, err)
	assert.Equal(t, AToB, d)

	var parsed Direction
	require.NoError(t, parsed.UnmarshalText([]byte("b_to_a")))
	assert.Equal(t, BToA, parsed)

	_, err = ParseDirection("sideways")
	assert.ErrorIs(t, err, ErrInvalidDirection)

	_, err = Direction(7).MarshalText()
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestDeterminism(t *testing.T) {
	p := seeded(t, 25, 123_456, 654_321)
	params := SwapParams{Trader: alice, AmountIn: 777, Direction: BToA, HeldAmountIn: 1000}
	a, ra, errA := Swap(p, params)
	b, rb, errB := Swap(p, params)
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, a, b)
	assert.Equal(t, ra, rb)
}

// TestRandomSequencePreservesInvariants drives a pool through random
// operations and checks the pool invariants, k monotonicity on swaps and the
// bound on proportional withdrawals after every successful step.
func TestRandomSequencePreservesInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	p := seeded(t, 30, 50_000, 80_000)
	held := p.TotalLPSupply - p.Locked()

	for i := 0; i < 5000; i++ {
		switch rng.Intn(3) {
		case 0:
			a := uint64(rng.Int63n(10_000))
			b := uint64(rng.Int63n(10_000))
			proportional := rng.Intn(2) == 0
			if proportional {
				b = a * p.ReserveB / p.ReserveA
			}
			next, res, err := AddLiquidity(p, AddLiquidityParams{Provider: alice, AmountA: a, AmountB: b})
			if err != nil {
				requireKnown(t, err)
				continue
			}
			// minted share never exceeds either proportional share
			assert.LessOrEqual(t, res.LPMinted, a*p.TotalLPSupply/p.ReserveA)
			assert.LessOrEqual(t, res.LPMinted, b*p.TotalLPSupply/p.ReserveB)
			if proportional {
				requireRatioKept(t, p, next, i)
			}
			held += res.LPMinted
			p = next
		case 1:
			if held == 0 {
				continue
			}
			lp := uint64(rng.Int63n(int64(held))) + 1
			next, res, err := RemoveLiquidity(p, RemoveLiquidityParams{Provider: alice, LPTokens: lp, HeldLPTokens: held})
			if err != nil {
				requireKnown(t, err)
				continue
			}
			assert.LessOrEqual(t, res.AmountA, lp*p.ReserveA/p.TotalLPSupply)
			assert.LessOrEqual(t, res.AmountB, lp*p.ReserveB/p.TotalLPSupply)
			if next.ReserveA > 0 && next.ReserveB > 0 {
				requireRatioKept(t, p, next, i)
			}
			held -= lp
			p = next
		case 2:
			dir := AToB
			if rng.Intn(2) == 1 {
				dir = BToA
			}
			amount := uint64(rng.Int63n(20_000))
			next, _, err := Swap(p, SwapParams{Trader: alice, AmountIn: amount, Direction: dir, HeldAmountIn: amount})
			if err != nil {
				requireKnown(t, err)
				continue
			}
			assert.True(t, next.K().Cmp(p.K()) >= 0, "k decreased at step %d", i)
			assert.Equal(t, p.TotalLPSupply, next.TotalLPSupply)
			p = next
		}
		require.NoError(t, p.Validate(), "step %d", i)
		require.Equal(t, p.TotalLPSupply, held+p.Locked(), "step %d", i)
	}
}

// requireRatioKept checks that after keeps the reserve ratio of before up to
// flooring: |ra'*rb - ra*rb'| < ra + rb.
func requireRatioKept(t *testing.T, before, after Pool, step int) {
	t.Helper()
	lhs := new(uint256.Int).Mul(uint256.NewInt(after.ReserveA), uint256.NewInt(before.ReserveB))
	rhs := new(uint256.Int).Mul(uint256.NewInt(before.ReserveA), uint256.NewInt(after.ReserveB))
	drift := new(uint256.Int)
	if lhs.Cmp(rhs) >= 0 {
		drift.Sub(lhs, rhs)
	} else {
		drift.Sub(rhs, lhs)
	}
	bound := uint256.NewInt(before.ReserveA + before.ReserveB)
	require.True(t, drift.Lt(bound), "step %d: ratio drift %s from %d/%d to %d/%d", step, drift, before.ReserveA, before.ReserveB, after.ReserveA, after.ReserveB)
}

func TestRatioKeptOnProportionalFlows(t *testing.T) {
	p := seeded(t, 30, 50_000, 80_000)

	added, _, err := AddLiquidity(p, AddLiquidityParams{Provider: alice, AmountA: 5_000, AmountB: 8_000})
	require.NoError(t, err)
	requireRatioKept(t, p, added, 0)

	removed, _, err := RemoveLiquidity(added, RemoveLiquidityParams{Provider: alice, LPTokens: 12_345, HeldLPTokens: added.TotalLPSupply - added.Locked()})
	require.NoError(t, err)
	requireRatioKept(t, added, removed, 1)
}

func requireKnown(t *testing.T, err error) {
	t.Helper()
	require.NotEmpty(t, CodeOf(err), "unclassified error: %v", err)
	require.NotErrorIs(t, err, ErrMathOverflow)
}
