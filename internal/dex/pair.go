// Package dex reads Uniswap V2 style pairs and ERC20 metadata from a chain
// and seeds local pools with them.
package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Storage layout of a UniswapV2Pair: factory in slot 5, token0 and token1 in
// slots 6 and 7, and (reserve0 uint112 | reserve1 uint112 | ts uint32) packed
// into slot 8.
const (
	slotToken0   = 6
	slotToken1   = 7
	slotReserves = 8
)

var ErrEmptyPair = errors.New("pair has an empty reserve")

// Caller is the subset of chain access the importer needs. Both
// *chain.Client and *ethclient.Client satisfy it.
type Caller interface {
	BlockNumber(ctx context.Context) (uint64, error)
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// PairState is a pair's tokens and reserves at one block.
type PairState struct {
	Pair               common.Address
	Block              uint64
	Token0             common.Address
	Token1             common.Address
	Reserve0           *big.Int
	Reserve1           *big.Int
	BlockTimestampLast uint32
}

// FetchPairState reads tokens and reserves from pair storage. A zero block
// means the latest one.
func FetchPairState(ctx context.Context, caller Caller, pair common.Address, block uint64) (PairState, error) {
	if caller == nil {
		return PairState{}, fmt.Errorf("chain client is nil")
	}
	if block == 0 {
		latest, err := caller.BlockNumber(ctx)
		if err != nil {
			return PairState{}, fmt.Errorf("block number: %w", err)
		}
		block = latest
	}
	blockNum := new(big.Int).SetUint64(block)

	read := func(slot uint64) ([]byte, error) {
		key := common.BigToHash(new(big.Int).SetUint64(slot))
		b, err := caller.StorageAt(ctx, pair, key, blockNum)
		if err != nil {
			return nil, fmt.Errorf("storageAt slot %d (pair %s, block %d): %w", slot, pair.Hex(), block, err)
		}
		return b, nil
	}

	b0, err := read(slotToken0)
	if err != nil {
		return PairState{}, err
	}
	b1, err := read(slotToken1)
	if err != nil {
		return PairState{}, err
	}
	br, err := read(slotReserves)
	if err != nil {
		return PairState{}, err
	}

	state := PairState{
		Pair:   pair,
		Block:  block,
		Token0: common.BytesToAddress(b0),
		Token1: common.BytesToAddress(b1),
	}
	state.Reserve0, state.Reserve1, state.BlockTimestampLast = unpackReserves(br)
	if state.Token0 == (common.Address{}) || state.Token1 == (common.Address{}) {
		return PairState{}, fmt.Errorf("pair %s has no tokens at block %d", pair.Hex(), block)
	}
	return state, nil
}

// unpackReserves splits the packed reserve word, low bits first.
func unpackReserves(b []byte) (reserve0, reserve1 *big.Int, ts uint32) {
	v := new(big.Int).SetBytes(b)
	mask112 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 112), big.NewInt(1))

	reserve0 = new(big.Int).And(v, mask112)
	v.Rsh(v, 112)
	reserve1 = new(big.Int).And(v, mask112)
	v.Rsh(v, 112)
	ts = uint32(v.Uint64())
	return
}
