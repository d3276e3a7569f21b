package model

import "time"

// PoolWindowMetrics stores aggregated metrics for a pool window. Amounts are
// raw token units; rates are decimal strings.
type PoolWindowMetrics struct {
	PoolAddress     string    `json:"pool"`
	WindowSizeSecs  int64     `json:"window_size_seconds"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
	SwapCount       uint64    `json:"swap_count"`
	LiquidityEvents uint64    `json:"liquidity_events"`
	VolumeA         string    `json:"volume_a"`
	VolumeB         string    `json:"volume_b"`
	FeeA            string    `json:"fee_a"`
	FeeB            string    `json:"fee_b"`
	ReserveA        string    `json:"reserve_a"`
	ReserveB        string    `json:"reserve_b"`
	LPSupply        string    `json:"lp_supply"`
	Price           *string   `json:"price,omitempty"`
	FeeRateA        *string   `json:"fee_rate_a,omitempty"`
	FeeRateB        *string   `json:"fee_rate_b,omitempty"`
	APR             *string   `json:"apr,omitempty"`
}
