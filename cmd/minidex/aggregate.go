package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"minidex/internal/aggregate"
	"minidex/internal/config"
	"minidex/internal/storage/postgres"
)

func newAggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate events into pool window metrics",
		RunE:  runAggregate,
	}

	f := cmd.Flags()
	f.String("in", "./data/events.jsonl", "input events JSONL")
	f.String("window", "1h", "aggregation window (e.g. 1m, 5m, 1h)")
	f.String("pg-dsn", "", "Postgres DSN, JSONL outputs are used when empty")
	f.Int("batch-size", 1000, "windows per write")
	f.String("state-file", "", "cursor file; defaults to a Postgres row when pg-dsn is set")
	f.String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	f.String("pools-out", "./data/pools.jsonl", "pools JSONL path without Postgres")
	f.String("metrics-out", "./data/window_metrics.jsonl", "window metrics JSONL path without Postgres")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runAggregate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAggregate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, state, closeFn, err := aggregateOutputs(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	logger.Info("aggregate start",
		zap.String("input", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint64("window_seconds", cfg.WindowSeconds),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Uint64("recompute_from", cfg.RecomputeFrom),
	)

	agg := aggregate.NewAggregator(aggregate.Config{
		WindowSeconds: cfg.WindowSeconds,
		BatchSize:     cfg.BatchSize,
		RecomputeFrom: cfg.RecomputeFrom,
		StateStore:    state,
	}, sink, logger)
	return agg.Run(ctx, cfg.Input)
}

// aggregateOutputs picks Postgres when a DSN is configured and JSONL files
// otherwise. The cursor lives in the state file if one is given.
func aggregateOutputs(ctx context.Context, cfg config.AggregateConfig) (aggregate.Sink, aggregate.StateStore, func(), error) {
	var state aggregate.StateStore
	if cfg.StateFile != "" {
		state = &aggregate.FileStateStore{Path: cfg.StateFile}
	}
	if cfg.PGDSN == "" {
		return &aggregate.JSONLSink{PoolsPath: cfg.PoolsOut, MetricsPath: cfg.MetricsOut}, state, func() {}, nil
	}

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	if state == nil {
		state = &aggregate.DBStateStore{Store: store, Name: fmt.Sprintf("aggregator:%d", cfg.WindowSeconds)}
	}
	return store, state, store.Close, nil
}
