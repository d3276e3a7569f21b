package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"minidex/internal/amm"
	"minidex/internal/exchange"
)

type quoteOutput struct {
	amm.Quote
	Direction    amm.Direction `json:"direction"`
	SlippageBps  uint64        `json:"slippage_bps"`
	MinAmountOut uint64        `json:"min_amount_out,string"`
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a swap against given reserves or a snapshot pool",
		Args:  cobra.NoArgs,
		RunE:  runQuote,
	}

	cmd.Flags().Uint64("reserve-a", 0, "reserve of token a")
	cmd.Flags().Uint64("reserve-b", 0, "reserve of token b")
	cmd.Flags().Uint16("fee-rate-bps", 30, "pool fee in basis points")
	cmd.Flags().String("snapshot", "", "snapshot JSON to read the pool from instead of reserve flags")
	cmd.Flags().String("pool", "", "pool address inside the snapshot")
	cmd.Flags().Uint64("amount", 0, "amount in")
	cmd.Flags().String("direction", "a_to_b", "a_to_b or b_to_a")
	cmd.Flags().Uint64("slippage-bps", 50, "slippage tolerance for min_amount_out")
	return cmd
}

func runQuote(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	amount, _ := flags.GetUint64("amount")
	dirText, _ := flags.GetString("direction")
	slippage, _ := flags.GetUint64("slippage-bps")
	snapshotPath, _ := flags.GetString("snapshot")

	dir, err := amm.ParseDirection(dirText)
	if err != nil {
		return err
	}

	var pool amm.Pool
	if snapshotPath != "" {
		poolText, _ := flags.GetString("pool")
		pool, err = poolFromSnapshot(snapshotPath, poolText)
		if err != nil {
			return err
		}
	} else {
		pool.ReserveA, _ = flags.GetUint64("reserve-a")
		pool.ReserveB, _ = flags.GetUint64("reserve-b")
		pool.FeeRateBps, _ = flags.GetUint16("fee-rate-bps")
		if pool.FeeRateBps > amm.MaxFeeRateBps {
			return amm.ErrInvalidFeeRate
		}
	}

	quote, err := amm.QuoteSwap(pool, amount, dir)
	if err != nil {
		return err
	}
	minOut, err := amm.MinAmountOut(quote.AmountOut, slippage)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(quoteOutput{Quote: quote, Direction: dir, SlippageBps: slippage, MinAmountOut: minOut}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func poolFromSnapshot(path, poolText string) (amm.Pool, error) {
	var snap exchange.Snapshot
	if err := readJSONFile(path, &snap); err != nil {
		return amm.Pool{}, err
	}
	addr, err := parseOptionalAddress("pool", poolText)
	if err != nil {
		return amm.Pool{}, err
	}
	for _, p := range snap.Pools {
		if p.Address == addr || (poolText == "" && len(snap.Pools) == 1) {
			return p, nil
		}
	}
	return amm.Pool{}, fmt.Errorf("%w: %q in %s", exchange.ErrPoolNotFound, poolText, path)
}
