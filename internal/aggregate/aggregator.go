// Package aggregate folds simulator events into per-pool time windows.
package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"minidex/internal/model"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

type runStats struct {
	total, windows, skipped, failed int
}

// Aggregator turns an event stream into window metrics. Each pool has at most
// one open window; it is flushed when an event of a later window arrives or
// the input ends.
type Aggregator struct {
	cfg    Config
	sink   Sink
	logger *zap.Logger

	open     map[string]*Accumulator
	poolSeen map[string]model.PoolRecord

	pendingMetrics []model.PoolWindowMetrics
	pendingPools   []model.PoolRecord
	stats          runStats
}

func NewAggregator(cfg Config, sink Sink, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &Aggregator{
		cfg:      cfg,
		sink:     sink,
		logger:   logger,
		open:     make(map[string]*Accumulator),
		poolSeen: make(map[string]model.PoolRecord),
	}
}

// Run aggregates every event newer than the stored cursor.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.sink == nil {
		return fmt.Errorf("sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}

	after, err := a.cursor(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	a.stats = runStats{}
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		a.stats.total++

		var record model.EventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			a.stats.failed++
			a.logger.Warn("decode event", zap.Error(err))
			continue
		}
		if record.Pool == "" || record.Timestamp <= after {
			a.stats.skipped++
			continue
		}

		if err := a.fold(record); err != nil {
			a.stats.failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", record.Pool), zap.Uint64("seq", record.Seq))
			continue
		}

		if len(a.pendingMetrics) >= a.cfg.BatchSize {
			if err := a.flush(ctx); err != nil {
				return err
			}
			if err := a.saveCursor(ctx, after); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	// The newest windows may still grow, so they are written now but the
	// cursor stays before them and the next run rebuilds them in full.
	for _, acc := range a.open {
		a.close(acc)
	}
	if err := a.flush(ctx); err != nil {
		return err
	}
	if err := a.saveCursor(ctx, after); err != nil {
		return err
	}
	a.open = make(map[string]*Accumulator)

	a.logger.Info("aggregate complete",
		zap.Int("total", a.stats.total),
		zap.Int("windows", a.stats.windows),
		zap.Int("skipped", a.stats.skipped),
		zap.Int("failed", a.stats.failed),
	)
	return nil
}

// fold adds record to its pool's open window, closing the previous window
// first when record belongs to a later one.
func (a *Aggregator) fold(record model.EventRecord) error {
	start := record.Timestamp - record.Timestamp%a.cfg.WindowSeconds
	key := strings.ToLower(record.Pool)

	acc := a.open[key]
	if acc != nil && acc.WindowStart != start {
		a.close(acc)
		acc = nil
	}
	if acc == nil {
		acc = NewAccumulator(record, start, start+a.cfg.WindowSeconds)
		a.open[key] = acc
	}
	return acc.AddEvent(record)
}

func (a *Aggregator) close(acc *Accumulator) {
	rateA := feeRate(acc.FeeA, acc.ReserveA)
	rateB := feeRate(acc.FeeB, acc.ReserveB)

	a.pendingMetrics = append(a.pendingMetrics, model.PoolWindowMetrics{
		PoolAddress:     acc.PoolAddress,
		WindowSizeSecs:  int64(a.cfg.WindowSeconds),
		WindowStart:     time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:       time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:       acc.SwapCount,
		LiquidityEvents: acc.LiquidityEvents,
		VolumeA:         acc.VolumeA.String(),
		VolumeB:         acc.VolumeB.String(),
		FeeA:            acc.FeeA.String(),
		FeeB:            acc.FeeB.String(),
		ReserveA:        strconv.FormatUint(acc.ReserveA, 10),
		ReserveB:        strconv.FormatUint(acc.ReserveB, 10),
		LPSupply:        strconv.FormatUint(acc.LPSupply, 10),
		Price:           spotPrice(acc.ReserveA, acc.ReserveB),
		FeeRateA:        decimalString(rateA),
		FeeRateB:        decimalString(rateB),
		APR:             computeAPR(rateA, rateB, a.cfg.WindowSeconds),
	})
	a.stats.windows++

	if pool, ok := a.firstSighting(acc); ok {
		a.pendingPools = append(a.pendingPools, pool)
	}
}

// firstSighting reports the pool row when the pool is new to this run or was
// seen earlier than previously recorded.
func (a *Aggregator) firstSighting(acc *Accumulator) (model.PoolRecord, bool) {
	key := strings.ToLower(acc.PoolAddress)
	if existing, ok := a.poolSeen[key]; ok && existing.FirstSeenSeq <= acc.FirstSeq {
		return model.PoolRecord{}, false
	}
	pool := model.PoolRecord{
		Address:      acc.PoolAddress,
		TokenA:       acc.TokenA,
		TokenB:       acc.TokenB,
		FeeRateBps:   acc.FeeRateBps,
		FirstSeenSeq: acc.FirstSeq,
		FirstSeenTS:  acc.FirstTS,
	}
	a.poolSeen[key] = pool
	return pool, true
}

func (a *Aggregator) flush(ctx context.Context) error {
	if len(a.pendingPools) > 0 {
		if err := a.sink.UpsertPools(ctx, a.pendingPools); err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
		a.pendingPools = a.pendingPools[:0]
	}
	if len(a.pendingMetrics) > 0 {
		if err := a.sink.UpsertWindowMetrics(ctx, a.pendingMetrics); err != nil {
			return fmt.Errorf("upsert window metrics: %w", err)
		}
		a.pendingMetrics = a.pendingMetrics[:0]
	}
	return nil
}

// cursor returns the timestamp at or before which events are already
// aggregated.
func (a *Aggregator) cursor(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, _, err := a.cfg.StateStore.Load(ctx)
	return last, err
}

// saveCursor stores one second before the oldest open window, or fallback
// when no window is open. Windows share global boundaries, so the next run
// either skips a window entirely or rebuilds it from its first event.
func (a *Aggregator) saveCursor(ctx context.Context, fallback uint64) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	var oldest uint64
	found := false
	for _, acc := range a.open {
		if !found || acc.WindowStart < oldest {
			oldest, found = acc.WindowStart, true
		}
	}
	safe := fallback
	if found {
		safe = 0
		if oldest > 0 {
			safe = oldest - 1
		}
	}
	return a.cfg.StateStore.Save(ctx, safe)
}
