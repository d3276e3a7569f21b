package main

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minidex/internal/amm"
	"minidex/internal/exchange"
)

func execQuote(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newQuoteCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		return nil, err
	}
	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	return got, nil
}

func TestQuoteFromReserves(t *testing.T) {
	got, err := execQuote(t, "--reserve-a", "1000", "--reserve-b", "1000", "--fee-rate-bps", "30", "--amount", "100")
	require.NoError(t, err)
	assert.Equal(t, "100", got["amount_in"])
	assert.Equal(t, "99", got["fee_adjusted_in"])
	assert.Equal(t, "1", got["fee"])
	assert.Equal(t, "90", got["amount_out"])
	assert.Equal(t, "89", got["min_amount_out"])
	assert.Equal(t, "a_to_b", got["direction"])

	_, err = execQuote(t, "--reserve-a", "1000", "--reserve-b", "1000", "--fee-rate-bps", "2000", "--amount", "100")
	assert.ErrorIs(t, err, amm.ErrInvalidFeeRate)

	_, err = execQuote(t, "--reserve-a", "1000", "--reserve-b", "1000", "--amount", "100", "--direction", "up")
	assert.Error(t, err)
}

func TestQuoteFromSnapshot(t *testing.T) {
	tokenA := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokenB := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	alice := common.HexToAddress("0x00000000000000000000000000000000000a11ce")

	ex := exchange.New(exchange.Config{}, nil, nil, nil)
	require.NoError(t, ex.Credit(tokenA, alice, 1000))
	require.NoError(t, ex.Credit(tokenB, alice, 1000))
	pool, err := ex.CreatePool(alice, tokenA, tokenB, 30)
	require.NoError(t, err)
	_, _, err = ex.AddLiquidity(pool.Address, amm.AddLiquidityParams{Provider: alice, AmountA: 1000, AmountB: 1000})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, writeJSONFile(path, ex.Snapshot()))

	got, err := execQuote(t, "--snapshot", path, "--pool", pool.Address.Hex(), "--amount", "100", "--direction", "b_to_a")
	require.NoError(t, err)
	assert.Equal(t, "90", got["amount_out"])
	assert.Equal(t, "b_to_a", got["direction"])

	_, err = execQuote(t, "--snapshot", path, "--pool", "0x00000000000000000000000000000000000000ff", "--amount", "100")
	assert.ErrorIs(t, err, exchange.ErrPoolNotFound)
}
