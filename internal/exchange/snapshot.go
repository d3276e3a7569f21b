package exchange

import (
	"fmt"

	"go.uber.org/zap"

	"minidex/internal/amm"
	"minidex/internal/custody"
	"minidex/internal/metrics"
)

// Snapshot is a consistent copy of every pool and the ledger.
type Snapshot struct {
	Pools  []amm.Pool    `json:"pools"`
	Ledger custody.State `json:"ledger"`
}

// Snapshot captures all pools and balances at a single point in time.
func (e *Exchange) Snapshot() Snapshot {
	entries := e.sortedEntries()
	for _, ent := range entries {
		ent.mu.Lock()
	}
	defer func() {
		for _, ent := range entries {
			ent.mu.Unlock()
		}
	}()

	pools := make([]amm.Pool, 0, len(entries))
	for _, ent := range entries {
		pools = append(pools, ent.pool)
	}
	return Snapshot{Pools: pools, Ledger: e.ledger.Export()}
}

// Restore rebuilds an Exchange from a snapshot. Every pool must satisfy the
// pool invariants and its vaults must cover its reserves.
func Restore(cfg Config, snap Snapshot, recorder *metrics.Recorder, logger *zap.Logger) (*Exchange, error) {
	ledger, err := custody.Restore(snap.Ledger)
	if err != nil {
		return nil, err
	}
	e := New(cfg, ledger, recorder, logger)

	for _, pool := range snap.Pools {
		if err := pool.Validate(); err != nil {
			return nil, fmt.Errorf("pool %s: %w", pool.Address.Hex(), err)
		}
		if _, ok := e.pools[pool.Address]; ok {
			return nil, fmt.Errorf("%w: %s", ErrPoolExists, pool.Address.Hex())
		}
		if got := ledger.BalanceOf(pool.TokenA, pool.VaultA); got < pool.ReserveA {
			return nil, fmt.Errorf("pool %s: vault a holds %d, reserve is %d", pool.Address.Hex(), got, pool.ReserveA)
		}
		if got := ledger.BalanceOf(pool.TokenB, pool.VaultB); got < pool.ReserveB {
			return nil, fmt.Errorf("pool %s: vault b holds %d, reserve is %d", pool.Address.Hex(), got, pool.ReserveB)
		}
		if got := ledger.Supply(pool.LPToken); got+pool.Locked() != pool.TotalLPSupply {
			return nil, fmt.Errorf("pool %s: lp supply %d does not match %d", pool.Address.Hex(), got, pool.TotalLPSupply)
		}
		e.register(pool)
		e.metrics.PoolState(pool.Address.Hex(), pool.ReserveA, pool.ReserveB, pool.TotalLPSupply)
	}
	return e, nil
}
