package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"minidex/internal/chain"
	"minidex/internal/config"
	"minidex/internal/dex"
	"minidex/internal/exchange"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Seed local pools from Uniswap V2 style pairs",
		RunE:  runImport,
	}

	cmd.Flags().String("rpc", "", "JSON-RPC URL")
	cmd.Flags().StringSlice("pair", nil, "pair addresses (comma-separated)")
	cmd.Flags().Uint64("block", 0, "block to read, 0 means latest")
	cmd.Flags().Uint16("fee-rate-bps", 30, "fee of the local pools in basis points")
	cmd.Flags().String("provider", "", "account that receives the seeded LP tokens")
	cmd.Flags().String("namespace", "", "address that scopes derived pool identifiers")
	cmd.Flags().String("out", "./data/imported.json", "snapshot JSON output")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runImport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadImport(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if len(cfg.Pairs) == 0 {
		return fmt.Errorf("pair list is required")
	}
	pairs := make([]common.Address, 0, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		addr, err := parseOptionalAddress("pair", p)
		if err != nil {
			return err
		}
		pairs = append(pairs, addr)
	}
	provider, err := parseOptionalAddress("provider", cfg.Provider)
	if err != nil {
		return err
	}
	namespace, err := parseOptionalAddress("namespace", cfg.Namespace)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	ex := exchange.New(exchange.Config{Namespace: namespace}, nil, nil, logger)
	tokens := dex.NewTokenMetaCache()

	for _, pair := range pairs {
		if err := importOne(ctx, chainClient, ex, tokens, pair, cfg, provider, logger); err != nil {
			return err
		}
	}

	if err := writeJSONFile(cfg.Out, ex.Snapshot()); err != nil {
		return err
	}
	logger.Info("import complete", zap.Int("pools", len(pairs)), zap.String("out", cfg.Out))
	return nil
}

func importOne(ctx context.Context, client *chain.Client, ex *exchange.Exchange, tokens *dex.TokenMetaCache, pair common.Address, cfg config.ImportConfig, provider common.Address, logger *zap.Logger) error {
	state, err := dex.FetchPairState(ctx, client, pair, cfg.Block)
	if err != nil {
		return err
	}

	imported, err := dex.ImportPair(ex, state, dex.ImportOptions{
		Authority:  provider,
		Provider:   provider,
		FeeRateBps: cfg.FeeRateBps,
	})
	if err != nil {
		return fmt.Errorf("import %s: %w", pair.Hex(), err)
	}

	fields := []zap.Field{
		zap.String("pair", pair.Hex()),
		zap.Uint64("block", state.Block),
		zap.String("pool", imported.Pool.Address.Hex()),
		zap.Uint64("reserve_a", imported.Pool.ReserveA),
		zap.Uint64("reserve_b", imported.Pool.ReserveB),
		zap.Uint64("lp_minted", imported.Minted),
	}
	for _, token := range []common.Address{state.Token0, state.Token1} {
		meta, err := tokens.Lookup(ctx, client, token, logger)
		if err != nil {
			logger.Warn("token metadata fetch failed", zap.String("token", token.Hex()), zap.Error(err))
			continue
		}
		fields = append(fields, zap.String(meta.Address, fmt.Sprintf("%s (%d decimals)", meta.Symbol, meta.Decimals)))
	}
	logger.Info("pair imported", fields...)
	return nil
}
