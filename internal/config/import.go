package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// ImportConfig holds configuration of the import command.
type ImportConfig struct {
	RPCURL     string
	Pairs      []string
	Block      uint64
	FeeRateBps uint16
	Provider   string
	Namespace  string
	Out        string
	LogLevel   string
}

// LoadImport merges config file, environment variables, and flags into ImportConfig.
func LoadImport(cfgFile string, flags *pflag.FlagSet) (ImportConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"fee-rate-bps": 30,
		"out":          "./data/imported.json",
		"log-level":    "info",
	})
	if err != nil {
		return ImportConfig{}, err
	}

	fee := v.GetUint("fee-rate-bps")
	if fee > 0xffff {
		return ImportConfig{}, fmt.Errorf("fee-rate-bps %d out of range", fee)
	}

	return ImportConfig{
		RPCURL:     v.GetString("rpc"),
		Pairs:      getStringSlice(v, "pair"),
		Block:      v.GetUint64("block"),
		FeeRateBps: uint16(fee),
		Provider:   v.GetString("provider"),
		Namespace:  v.GetString("namespace"),
		Out:        v.GetString("out"),
		LogLevel:   v.GetString("log-level"),
	}, nil
}
