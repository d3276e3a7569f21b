package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"minidex/internal/model"
)

// TokenMetaCache memoizes successful metadata lookups for the lifetime of an
// import run.
type TokenMetaCache struct {
	mu    sync.Mutex
	known map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{known: make(map[common.Address]model.TokenMeta)}
}

// Lookup returns cached metadata or fetches it. Failed fetches are retried on
// the next call.
func (c *TokenMetaCache) Lookup(ctx context.Context, caller Caller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	c.mu.Lock()
	meta, ok := c.known[token]
	c.mu.Unlock()
	if ok {
		return meta, nil
	}

	meta, err := FetchTokenMeta(ctx, caller, token, logger)
	if err != nil {
		return meta, err
	}
	c.mu.Lock()
	c.known[token] = meta
	c.mu.Unlock()
	return meta, nil
}

// erc20Reader issues single-value view calls against one token contract.
type erc20Reader struct {
	caller Caller
	token  common.Address
}

func (r erc20Reader) read(ctx context.Context, parsed abi.ABI, method string) (interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	to := r.token
	resp, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s returned %d values", method, len(out))
	}
	return out[0], nil
}

// text reads a string getter, retrying with the bytes32 layout some older
// tokens use. It returns "" when both fail.
func (r erc20Reader) text(ctx context.Context, method string, stringABI, bytes32ABI abi.ABI) (string, error) {
	if v, err := r.read(ctx, stringABI, method); err == nil {
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	v, err := r.read(ctx, bytes32ABI, method)
	if err != nil {
		return "", err
	}
	return trimBytes32(v), nil
}

// FetchTokenMeta loads decimals, symbol and name for token. Only decimals is
// required.
func FetchTokenMeta(ctx context.Context, caller Caller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if caller == nil {
		return meta, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	stringABI, err := erc20StringABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20Bytes32ABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	r := erc20Reader{caller: caller, token: token}
	raw, err := r.read(ctx, stringABI, "decimals")
	if err != nil {
		return meta, err
	}
	if meta.Decimals, err = toDecimals(raw); err != nil {
		return meta, err
	}

	for _, field := range []struct {
		method string
		dst    *string
	}{
		{"symbol", &meta.Symbol},
		{"name", &meta.Name},
	} {
		s, err := r.text(ctx, field.method, stringABI, bytes32ABI)
		if err != nil {
			logger.Debug("token text unavailable", zap.String("token", token.Hex()), zap.String("method", field.method), zap.Error(err))
			continue
		}
		*field.dst = s
	}
	return meta, nil
}

func trimBytes32(value interface{}) string {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00"))
	case []byte:
		return string(bytes.TrimRight(v, "\x00"))
	}
	return ""
}

func toDecimals(value interface{}) (uint8, error) {
	if v, ok := value.(uint8); ok {
		return v, nil
	}
	n, ok := value.(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unsupported decimals type %T", value)
	}
	if !n.IsUint64() || n.Uint64() > 255 {
		return 0, fmt.Errorf("decimals out of range: %s", n)
	}
	return uint8(n.Uint64()), nil
}
