// Package addressing derives the identifiers of a pool and its sub-accounts
// from the token pair, so the same pair always maps to the same accounts.
package addressing

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	seedPool   = "pool"
	seedVaultA = "vault_a"
	seedVaultB = "vault_b"
	seedLPMint = "lp_mint"
)

// PoolAccounts groups every identifier owned by a pool.
type PoolAccounts struct {
	Pool    common.Address
	VaultA  common.Address
	VaultB  common.Address
	LPToken common.Address
}

// Derive returns the accounts for the ordered pair (tokenA, tokenB) under
// the given namespace. Swapping the tokens yields a different pool.
func Derive(namespace common.Address, tokenA, tokenB common.Address) PoolAccounts {
	pool := derive(namespace, []byte(seedPool), tokenA.Bytes(), tokenB.Bytes())
	return PoolAccounts{
		Pool:    pool,
		VaultA:  derive(namespace, []byte(seedVaultA), pool.Bytes()),
		VaultB:  derive(namespace, []byte(seedVaultB), pool.Bytes()),
		LPToken: derive(namespace, []byte(seedLPMint), pool.Bytes()),
	}
}

// derive hashes length-prefixed seeds so ("ab","c") and ("a","bc") differ.
func derive(namespace common.Address, seeds ...[]byte) common.Address {
	parts := make([][]byte, 0, 2*len(seeds)+1)
	parts = append(parts, namespace.Bytes())
	for _, seed := range seeds {
		parts = append(parts, []byte{byte(len(seed))}, seed)
	}
	return common.BytesToAddress(crypto.Keccak256(parts...))
}
