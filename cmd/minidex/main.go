package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"minidex/internal/config"
	"minidex/internal/exchange"
	"minidex/internal/metrics"
	"minidex/internal/runner"
	"minidex/internal/storage"
	"minidex/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "minidex",
		Short:        "Constant-product pool simulator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay an operations script against local pools",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("in", "", "input operations JSONL")
	simulateCmd.Flags().String("events-out", "./data/events.jsonl", "events JSONL path")
	simulateCmd.Flags().String("rejections-out", "./data/rejections.jsonl", "rejections JSONL path, empty to drop")
	simulateCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for events and rejections")
	simulateCmd.Flags().Uint64("batch-size", 500, "operations per batch")
	simulateCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	simulateCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	simulateCmd.Flags().Int("max-retries", 5, "maximum retry attempts for storage writes")
	simulateCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	simulateCmd.Flags().String("namespace", "", "address that scopes derived pool identifiers")
	simulateCmd.Flags().String("initial-state", "", "snapshot JSON to start from when there is no checkpoint")
	simulateCmd.Flags().String("pools-out", "", "write the final snapshot JSON here")
	simulateCmd.Flags().String("metrics-out", "", "write Prometheus text metrics here")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd, newQuoteCmd(), newAggregateCmd(), newImportCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	namespace, err := parseOptionalAddress("namespace", cfg.Namespace)
	if err != nil {
		return err
	}

	var initial *exchange.Snapshot
	if cfg.InitialState != "" {
		var snap exchange.Snapshot
		if err := readJSONFile(cfg.InitialState, &snap); err != nil {
			return err
		}
		initial = &snap
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks := storage.Fanout{storage.NewJsonlStorage(cfg.EventsOut, cfg.RejectionsOut)}
	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store)
	}

	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)

	run := runner.NewRunner(runner.RunConfig{
		InputPath:         cfg.Input,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		Namespace:         namespace,
		Initial:           initial,
	}, sinks, recorder, logger)

	logger.Info("simulate start",
		zap.String("input", cfg.Input),
		zap.String("events_out", cfg.EventsOut),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	if err := run.Run(ctx); err != nil {
		return err
	}

	ex := run.Exchange()
	var outErr error
	if store != nil {
		outErr = multierr.Append(outErr, store.UpsertPools(ctx, run.PoolRecords()))
	}
	if cfg.PoolsOut != "" {
		outErr = multierr.Append(outErr, writeJSONFile(cfg.PoolsOut, ex.Snapshot()))
	}
	if cfg.MetricsOut != "" {
		outErr = multierr.Append(outErr, prometheus.WriteToTextfile(cfg.MetricsOut, registry))
	}
	if outErr != nil {
		return outErr
	}

	logger.Info("simulate complete", zap.Int("pools", len(ex.Pools())))
	return nil
}

func parseOptionalAddress(field, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s %q is not an address", field, value)
	}
	return common.HexToAddress(value), nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
