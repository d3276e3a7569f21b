package aggregate

import (
	"bufio"
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"minidex/internal/amm"
	"minidex/internal/model"
	"minidex/internal/storage"
)

const testPool = "0x00000000000000000000000000000000000000Cc"

func readLines[T any](t *testing.T, path string) []T {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var out []T
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var item T
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &item))
		out = append(out, item)
	}
	require.NoError(t, scanner.Err())
	return out
}

func testEvents() []model.EventRecord {
	base := model.EventRecord{Pool: testPool, TokenA: "0xa", TokenB: "0xb", FeeRateBps: 30}
	credit := model.EventRecord{Seq: 1, Timestamp: 50, Kind: model.EventCredit, Amount: 5}

	added := base
	added.Seq, added.Timestamp, added.Kind = 2, 100, model.EventLiquidityAdded
	added.ReserveA, added.ReserveB, added.TotalLPSupply = 100_000, 100_000, 100_000

	first := base
	first.Seq, first.Timestamp, first.Kind, first.Direction = 3, 200, model.EventSwap, "a_to_b"
	first.AmountIn, first.AmountOut, first.Fee = 1000, 987, 3
	first.ReserveA, first.ReserveB, first.TotalLPSupply = 101_000, 99_013, 100_000

	second := base
	second.Seq, second.Timestamp, second.Kind, second.Direction = 4, 3700, model.EventSwap, "b_to_a"
	second.AmountIn, second.AmountOut, second.Fee = 500, 490, 1
	second.ReserveA, second.ReserveB, second.TotalLPSupply = 100_510, 99_513, 100_000

	return []model.EventRecord{credit, added, first, second}
}

func TestAggregatorWindows(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "events.jsonl")
	require.NoError(t, storage.WriteJSONL(input, testEvents()))

	sink := &JSONLSink{PoolsPath: filepath.Join(dir, "pools.jsonl"), MetricsPath: filepath.Join(dir, "metrics.jsonl")}
	state := &FileStateStore{Path: filepath.Join(dir, "state", "aggregate.json")}
	agg := NewAggregator(Config{WindowSeconds: 3600, StateStore: state}, sink, nil)
	require.NoError(t, agg.Run(context.Background(), input))

	metrics := readLines[model.PoolWindowMetrics](t, sink.MetricsPath)
	require.Len(t, metrics, 2)

	w0 := metrics[0]
	require.Equal(t, int64(0), w0.WindowStart.Unix())
	require.Equal(t, int64(3600), w0.WindowEnd.Unix())
	require.Equal(t, uint64(1), w0.SwapCount)
	require.Equal(t, uint64(1), w0.LiquidityEvents)
	require.Equal(t, "1000", w0.VolumeA)
	require.Equal(t, "987", w0.VolumeB)
	require.Equal(t, "3", w0.FeeA)
	require.Equal(t, "0", w0.FeeB)
	require.Equal(t, "101000", w0.ReserveA)
	require.Equal(t, "99013", w0.ReserveB)
	require.NotNil(t, w0.Price)
	require.Equal(t, amm.Ratio(99_013, 101_000).StringFixed(ratioScale), *w0.Price)
	require.NotNil(t, w0.FeeRateA)
	require.Nil(t, w0.FeeRateB)
	require.NotNil(t, w0.APR)

	w1 := metrics[1]
	require.Equal(t, int64(3600), w1.WindowStart.Unix())
	require.Equal(t, "490", w1.VolumeA)
	require.Equal(t, "500", w1.VolumeB)
	require.Equal(t, "1", w1.FeeB)
	require.Equal(t, uint64(0), w1.LiquidityEvents)

	pools := readLines[model.PoolRecord](t, sink.PoolsPath)
	require.Len(t, pools, 1)
	require.Equal(t, uint64(2), pools[0].FirstSeenSeq)
	require.Equal(t, uint16(30), pools[0].FeeRateBps)

	last, ok, err := state.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(3599), last, "cursor stays before the newest window")

	again := NewAggregator(Config{WindowSeconds: 3600, StateStore: state}, sink, nil)
	require.NoError(t, again.Run(context.Background(), input))
	rerun := readLines[model.PoolWindowMetrics](t, sink.MetricsPath)
	require.Len(t, rerun, 3)
	require.Equal(t, w1, rerun[2])
}

func TestAggregatorRebuildsGrowingWindow(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "events.jsonl")
	events := testEvents()[:3]
	require.NoError(t, storage.WriteJSONL(input, events))

	sink := &JSONLSink{PoolsPath: filepath.Join(dir, "pools.jsonl"), MetricsPath: filepath.Join(dir, "metrics.jsonl")}
	state := &FileStateStore{Path: filepath.Join(dir, "cursor.json")}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 3600, StateStore: state}, sink, nil).Run(context.Background(), input))

	late := events[2]
	late.Seq, late.Timestamp = 5, 300
	late.AmountIn, late.AmountOut, late.Fee = 2000, 1900, 6
	late.ReserveA, late.ReserveB = 103_000, 97_113
	require.NoError(t, storage.WriteJSONL(input, []model.EventRecord{late}))
	require.NoError(t, NewAggregator(Config{WindowSeconds: 3600, StateStore: state}, sink, nil).Run(context.Background(), input))

	metrics := readLines[model.PoolWindowMetrics](t, sink.MetricsPath)
	require.Len(t, metrics, 2)
	latest := metrics[1]
	require.Equal(t, int64(0), latest.WindowStart.Unix())
	require.Equal(t, uint64(2), latest.SwapCount)
	require.Equal(t, uint64(1), latest.LiquidityEvents)
	require.Equal(t, "3000", latest.VolumeA)
	require.Equal(t, "2887", latest.VolumeB)
	require.Equal(t, "9", latest.FeeA)
	require.Equal(t, "103000", latest.ReserveA)
}

func TestAggregatorRequiresWindow(t *testing.T) {
	agg := NewAggregator(Config{}, &JSONLSink{}, nil)
	require.Error(t, agg.Run(context.Background(), "missing.jsonl"))
}

func TestComputeAPR(t *testing.T) {
	rate := feeRate(bigInt(36), 1000)
	require.NotNil(t, rate)
	require.Equal(t, "0.036000000000000000", rate.StringFixed(ratioScale))

	apr := computeAPR(rate, nil, 365*24*3600)
	require.NotNil(t, apr)
	require.Equal(t, "0.036000000000000000", *apr)

	require.Nil(t, computeAPR(nil, nil, 3600))
	require.Nil(t, feeRate(bigInt(0), 1000))
	require.Nil(t, feeRate(bigInt(5), 0))
}

func bigInt(v int64) *big.Int {
	return big.NewInt(v)
}
