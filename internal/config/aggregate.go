package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// AggregateConfig holds settings of the aggregate command. Window and
// RecomputeFrom are already parsed into unix seconds.
type AggregateConfig struct {
	Input         string
	WindowSeconds uint64
	RecomputeFrom uint64
	PGDSN         string
	BatchSize     int
	StateFile     string
	PoolsOut      string
	MetricsOut    string
	LogLevel      string
}

func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"in":          "./data/events.jsonl",
		"batch-size":  1000,
		"window":      "1h",
		"pools-out":   "./data/pools.jsonl",
		"metrics-out": "./data/window_metrics.jsonl",
		"log-level":   "info",
	})
	if err != nil {
		return AggregateConfig{}, err
	}

	window, err := time.ParseDuration(v.GetString("window"))
	if err != nil {
		return AggregateConfig{}, fmt.Errorf("invalid window: %w", err)
	}
	if window < time.Second {
		return AggregateConfig{}, fmt.Errorf("window must be at least 1s")
	}
	from, err := ParseTimestamp(v.GetString("recompute-from"))
	if err != nil {
		return AggregateConfig{}, fmt.Errorf("parse recompute-from: %w", err)
	}

	cfg := AggregateConfig{
		Input:         strings.TrimSpace(v.GetString("in")),
		WindowSeconds: uint64(window / time.Second),
		RecomputeFrom: from,
		PGDSN:         v.GetString("pg-dsn"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		PoolsOut:      v.GetString("pools-out"),
		MetricsOut:    v.GetString("metrics-out"),
		LogLevel:      v.GetString("log-level"),
	}
	if cfg.Input == "" {
		return AggregateConfig{}, fmt.Errorf("input path is required")
	}
	return cfg, nil
}

// ParseTimestamp accepts unix seconds or RFC3339. Blank input yields zero.
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseUint(input, 10, 64); err == nil {
		return secs, nil
	}
	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	if tm.Unix() < 0 {
		return 0, fmt.Errorf("timestamp %q is before the unix epoch", input)
	}
	return uint64(tm.Unix()), nil
}
