// Package exchange runs pool operations against a custody ledger. It keeps
// the registry of pools, serializes operations per pool and applies each
// operation's custody instructions all-or-nothing.
package exchange

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"minidex/internal/addressing"
	"minidex/internal/amm"
	"minidex/internal/custody"
	"minidex/internal/metrics"
)

const (
	OpCreatePool      = "create_pool"
	OpAddLiquidity    = "add_liquidity"
	OpRemoveLiquidity = "remove_liquidity"
	OpSwap            = "swap"
	OpCredit          = "credit"
)

var (
	ErrPoolExists   = errors.New("pool already exists")
	ErrPoolNotFound = errors.New("pool not found")
	ErrCustody      = errors.New("custody failure")
)

// Config holds exchange-wide settings.
type Config struct {
	// Namespace scopes derived pool identifiers.
	Namespace common.Address
}

type entry struct {
	mu   sync.Mutex
	pool amm.Pool
}

type pairKey struct {
	a common.Address
	b common.Address
}

// Exchange is safe for concurrent use. Operations on different pools run in
// parallel; operations on the same pool are serialized.
type Exchange struct {
	cfg     Config
	ledger  *custody.Ledger
	metrics *metrics.Recorder
	logger  *zap.Logger

	mu    sync.RWMutex
	pools map[common.Address]*entry
	pairs map[pairKey]common.Address
}

// New builds an empty Exchange. A nil ledger or recorder is replaced by a
// fresh one.
func New(cfg Config, ledger *custody.Ledger, recorder *metrics.Recorder, logger *zap.Logger) *Exchange {
	if ledger == nil {
		ledger = custody.NewLedger()
	}
	if recorder == nil {
		recorder = metrics.NewRecorder(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exchange{
		cfg:     cfg,
		ledger:  ledger,
		metrics: recorder,
		logger:  logger,
		pools:   make(map[common.Address]*entry),
		pairs:   make(map[pairKey]common.Address),
	}
}

// Ledger returns the custody ledger backing the exchange.
func (e *Exchange) Ledger() *custody.Ledger {
	return e.ledger
}

// Credit funds holder with an external token.
func (e *Exchange) Credit(token, holder common.Address, amount uint64) error {
	if err := e.ledger.Credit(token, holder, amount); err != nil {
		err = fmt.Errorf("%w: %w", ErrCustody, err)
		e.fail(OpCredit, err)
		return err
	}
	e.metrics.Success(OpCredit)
	e.logger.Debug("credit", zap.String("token", token.Hex()), zap.String("holder", holder.Hex()), zap.Uint64("amount", amount))
	return nil
}

// CreatePool initializes a pool for the ordered pair (tokenA, tokenB). Only
// one pool may exist per unordered pair.
func (e *Exchange) CreatePool(authority, tokenA, tokenB common.Address, feeRateBps uint16) (amm.Pool, error) {
	accounts := addressing.Derive(e.cfg.Namespace, tokenA, tokenB)
	pool, err := amm.Initialize(amm.InitParams{
		Address:    accounts.Pool,
		Authority:  authority,
		TokenA:     tokenA,
		TokenB:     tokenB,
		VaultA:     accounts.VaultA,
		VaultB:     accounts.VaultB,
		LPToken:    accounts.LPToken,
		FeeRateBps: feeRateBps,
	})
	if err != nil {
		e.fail(OpCreatePool, err)
		return amm.Pool{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.pairs[pairKey{tokenB, tokenA}]; ok {
		err := fmt.Errorf("%w: %s serves the reversed pair", ErrPoolExists, existing.Hex())
		e.fail(OpCreatePool, err)
		return amm.Pool{}, err
	}
	if _, ok := e.pools[pool.Address]; ok {
		err := fmt.Errorf("%w: %s", ErrPoolExists, pool.Address.Hex())
		e.fail(OpCreatePool, err)
		return amm.Pool{}, err
	}

	e.register(pool)
	e.metrics.Success(OpCreatePool)
	e.metrics.PoolState(pool.Address.Hex(), 0, 0, 0)
	e.logger.Info("pool created",
		zap.String("pool", pool.Address.Hex()),
		zap.String("token_a", tokenA.Hex()),
		zap.String("token_b", tokenB.Hex()),
		zap.Uint16("fee_rate_bps", feeRateBps),
	)
	return pool, nil
}

// register wires the pool's custody accounts and indexes it. Callers hold e.mu.
func (e *Exchange) register(pool amm.Pool) {
	e.ledger.SetOwner(pool.VaultA, pool.Address)
	e.ledger.SetOwner(pool.VaultB, pool.Address)
	e.ledger.SetMintAuthority(pool.LPToken, pool.Address)
	e.pools[pool.Address] = &entry{pool: pool}
	e.pairs[pairKey{pool.TokenA, pool.TokenB}] = pool.Address
}

// AddLiquidity deposits into a pool on behalf of params.Provider.
func (e *Exchange) AddLiquidity(poolAddr common.Address, params amm.AddLiquidityParams) (amm.Pool, amm.AddLiquidityResult, error) {
	ent, err := e.entry(poolAddr)
	if err != nil {
		e.fail(OpAddLiquidity, err)
		return amm.Pool{}, amm.AddLiquidityResult{}, err
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	next, res, err := amm.AddLiquidity(ent.pool, params)
	if err == nil {
		err = e.apply(res.Instructions)
	}
	if err != nil {
		e.fail(OpAddLiquidity, err)
		return amm.Pool{}, amm.AddLiquidityResult{}, err
	}

	e.commit(ent, next, OpAddLiquidity)
	e.logger.Debug("liquidity added",
		zap.String("pool", poolAddr.Hex()),
		zap.String("provider", params.Provider.Hex()),
		zap.Uint64("amount_a", params.AmountA),
		zap.Uint64("amount_b", params.AmountB),
		zap.Uint64("lp_minted", res.LPMinted),
	)
	return next, res, nil
}

// RemoveLiquidity withdraws from a pool. The held LP balance is read from
// the ledger and overrides params.HeldLPTokens.
func (e *Exchange) RemoveLiquidity(poolAddr common.Address, params amm.RemoveLiquidityParams) (amm.Pool, amm.RemoveLiquidityResult, error) {
	ent, err := e.entry(poolAddr)
	if err != nil {
		e.fail(OpRemoveLiquidity, err)
		return amm.Pool{}, amm.RemoveLiquidityResult{}, err
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	params.HeldLPTokens = e.ledger.BalanceOf(ent.pool.LPToken, params.Provider)
	next, res, err := amm.RemoveLiquidity(ent.pool, params)
	if err == nil {
		err = e.apply(res.Instructions)
	}
	if err != nil {
		e.fail(OpRemoveLiquidity, err)
		return amm.Pool{}, amm.RemoveLiquidityResult{}, err
	}

	e.commit(ent, next, OpRemoveLiquidity)
	e.logger.Debug("liquidity removed",
		zap.String("pool", poolAddr.Hex()),
		zap.String("provider", params.Provider.Hex()),
		zap.Uint64("lp_tokens", params.LPTokens),
		zap.Uint64("amount_a", res.AmountA),
		zap.Uint64("amount_b", res.AmountB),
	)
	return next, res, nil
}

// Swap trades against a pool. The trader's input balance is read from the
// ledger and overrides params.HeldAmountIn.
func (e *Exchange) Swap(poolAddr common.Address, params amm.SwapParams) (amm.Pool, amm.SwapResult, error) {
	ent, err := e.entry(poolAddr)
	if err != nil {
		e.fail(OpSwap, err)
		return amm.Pool{}, amm.SwapResult{}, err
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	tokenIn := ent.pool.TokenA
	if params.Direction == amm.BToA {
		tokenIn = ent.pool.TokenB
	}
	params.HeldAmountIn = e.ledger.BalanceOf(tokenIn, params.Trader)

	next, res, err := amm.Swap(ent.pool, params)
	if err == nil {
		err = e.apply(res.Instructions)
	}
	if err != nil {
		e.fail(OpSwap, err)
		return amm.Pool{}, amm.SwapResult{}, err
	}

	e.commit(ent, next, OpSwap)
	e.metrics.Swap(poolAddr.Hex(), tokenIn.Hex(), params.AmountIn, res.Fee)
	e.logger.Debug("swap",
		zap.String("pool", poolAddr.Hex()),
		zap.String("trader", params.Trader.Hex()),
		zap.Stringer("direction", params.Direction),
		zap.Uint64("amount_in", params.AmountIn),
		zap.Uint64("amount_out", res.AmountOut),
		zap.Uint64("fee", res.Fee),
	)
	return next, res, nil
}

// Pool returns the current state of a pool.
func (e *Exchange) Pool(poolAddr common.Address) (amm.Pool, error) {
	ent, err := e.entry(poolAddr)
	if err != nil {
		return amm.Pool{}, err
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.pool, nil
}

// PoolFor resolves the pool of the ordered pair (tokenA, tokenB).
func (e *Exchange) PoolFor(tokenA, tokenB common.Address) (common.Address, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	addr, ok := e.pairs[pairKey{tokenA, tokenB}]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: pair %s/%s", ErrPoolNotFound, tokenA.Hex(), tokenB.Hex())
	}
	return addr, nil
}

// Pools returns every pool ordered by address.
func (e *Exchange) Pools() []amm.Pool {
	entries := e.sortedEntries()
	out := make([]amm.Pool, 0, len(entries))
	for _, ent := range entries {
		ent.mu.Lock()
		out = append(out, ent.pool)
		ent.mu.Unlock()
	}
	return out
}

func (e *Exchange) entry(poolAddr common.Address) (*entry, error) {
	e.mu.RLock()
	ent, ok := e.pools[poolAddr]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, poolAddr.Hex())
	}
	return ent, nil
}

func (e *Exchange) sortedEntries() []*entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	addrs := make([]common.Address, 0, len(e.pools))
	for addr := range e.pools {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i].Bytes(), addrs[j].Bytes()) < 0 })
	out := make([]*entry, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, e.pools[addr])
	}
	return out
}

func (e *Exchange) apply(instructions []amm.Instruction) error {
	if err := e.ledger.Apply(instructions); err != nil {
		return fmt.Errorf("%w: %w", ErrCustody, err)
	}
	return nil
}

func (e *Exchange) commit(ent *entry, next amm.Pool, op string) {
	ent.pool = next
	e.metrics.Success(op)
	e.metrics.PoolState(next.Address.Hex(), next.ReserveA, next.ReserveB, next.TotalLPSupply)
}

func (e *Exchange) fail(op string, err error) {
	code, class := Classify(err)
	e.metrics.Failure(op, code, class)
	e.logger.Debug("operation rejected", zap.String("op", op), zap.String("code", code), zap.Error(err))
}

// Classify returns a stable code and class for an operation error.
func Classify(err error) (code string, class string) {
	switch {
	case err == nil:
		return "", ""
	case amm.CodeOf(err) != "":
		return amm.CodeOf(err), string(amm.ClassOf(err))
	case errors.Is(err, ErrPoolNotFound):
		return "PoolNotFound", string(amm.ClassInput)
	case errors.Is(err, ErrPoolExists):
		return "PoolExists", string(amm.ClassConfiguration)
	case errors.Is(err, custody.ErrInsufficientBalance):
		return "InsufficientBalance", "custody"
	case errors.Is(err, custody.ErrUnauthorized):
		return "Unauthorized", "custody"
	case errors.Is(err, ErrCustody):
		return "Custody", "custody"
	default:
		return "Unknown", string(amm.ClassUnknown)
	}
}
