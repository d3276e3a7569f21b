package model

// EventKind names a state change recorded by the simulator.
type EventKind string

const (
	EventCredit           EventKind = "credit"
	EventPoolCreated      EventKind = "pool_created"
	EventLiquidityAdded   EventKind = "liquidity_added"
	EventLiquidityRemoved EventKind = "liquidity_removed"
	EventSwap             EventKind = "swap"
)

// EventRecord is the outcome of one successful operation. Reserve and supply
// fields hold the pool state after the operation.
type EventRecord struct {
	Seq           uint64    `json:"seq"`
	Timestamp     uint64    `json:"ts"`
	Kind          EventKind `json:"kind"`
	Pool          string    `json:"pool,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	Token         string    `json:"token,omitempty"`
	TokenA        string    `json:"token_a,omitempty"`
	TokenB        string    `json:"token_b,omitempty"`
	FeeRateBps    uint16    `json:"fee_rate_bps,omitempty"`
	Direction     string    `json:"direction,omitempty"`
	Amount        uint64    `json:"amount,string,omitempty"`
	AmountA       uint64    `json:"amount_a,string,omitempty"`
	AmountB       uint64    `json:"amount_b,string,omitempty"`
	LPTokens      uint64    `json:"lp_tokens,string,omitempty"`
	AmountIn      uint64    `json:"amount_in,string,omitempty"`
	AmountOut     uint64    `json:"amount_out,string,omitempty"`
	Fee           uint64    `json:"fee,string,omitempty"`
	ReserveA      uint64    `json:"reserve_a,string"`
	ReserveB      uint64    `json:"reserve_b,string"`
	TotalLPSupply uint64    `json:"total_lp_supply,string"`
	IngestedAt    string    `json:"ingested_at"`
}

// Rejection records an operation that failed. Nothing changed.
type Rejection struct {
	Seq       uint64 `json:"seq"`
	Timestamp uint64 `json:"ts"`
	Op        OpKind `json:"op"`
	Pool      string `json:"pool,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Code      string `json:"code"`
	Class     string `json:"class"`
	Error     string `json:"error"`
}
