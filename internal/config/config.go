// Package config loads command settings from flags, MINIDEX_* environment
// variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "MINIDEX"

// Config holds settings of the simulate command.
type Config struct {
	Input             string
	EventsOut         string
	RejectionsOut     string
	PGDSN             string
	BatchSize         uint64
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	Namespace         string
	InitialState      string
	PoolsOut          string
	MetricsOut        string
	LogLevel          string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"batch-size":         uint64(500),
		"events-out":         "./data/events.jsonl",
		"rejections-out":     "./data/rejections.jsonl",
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": true,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"log-level":          "info",
	})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Input:             v.GetString("in"),
		EventsOut:         v.GetString("events-out"),
		RejectionsOut:     v.GetString("rejections-out"),
		PGDSN:             v.GetString("pg-dsn"),
		BatchSize:         v.GetUint64("batch-size"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Namespace:         v.GetString("namespace"),
		InitialState:      v.GetString("initial-state"),
		PoolsOut:          v.GetString("pools-out"),
		MetricsOut:        v.GetString("metrics-out"),
		LogLevel:          v.GetString("log-level"),
	}
	if cfg.BatchSize == 0 {
		return Config{}, fmt.Errorf("batch-size must be greater than zero")
	}
	return cfg, nil
}

// newViper layers sources in viper's order: flags over MINIDEX_* env over the
// config file over defaults. Without cfgFile a ./minidex.* file is optional.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile == "" {
		v.SetConfigName("minidex")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(cfgFile)
	}
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && (cfgFile != "" || !errors.As(err, &notFound)) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// getStringSlice accepts a YAML list or a comma separated string and drops
// blank entries.
func getStringSlice(v *viper.Viper, key string) []string {
	var raw []string
	switch typed := v.Get(key).(type) {
	case string:
		raw = strings.Split(typed, ",")
	case []string:
		raw = typed
	case []interface{}:
		for _, item := range typed {
			raw = append(raw, fmt.Sprint(item))
		}
	}

	var out []string
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
