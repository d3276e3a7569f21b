package model

// OpKind names a scripted operation.
type OpKind string

const (
	OpCredit          OpKind = "credit"
	OpCreatePool      OpKind = "create_pool"
	OpAddLiquidity    OpKind = "add_liquidity"
	OpRemoveLiquidity OpKind = "remove_liquidity"
	OpSwap            OpKind = "swap"
)

// Operation is one line of a simulation script. A pool is addressed either
// by Pool or by its (TokenA, TokenB) pair. Amounts are decimal strings.
type Operation struct {
	Seq          uint64 `json:"seq"`
	Timestamp    uint64 `json:"ts,omitempty"`
	Op           OpKind `json:"op"`
	Actor        string `json:"actor,omitempty"`
	Pool         string `json:"pool,omitempty"`
	TokenA       string `json:"token_a,omitempty"`
	TokenB       string `json:"token_b,omitempty"`
	Token        string `json:"token,omitempty"`
	FeeRateBps   uint16 `json:"fee_rate_bps,omitempty"`
	Amount       uint64 `json:"amount,string,omitempty"`
	AmountA      uint64 `json:"amount_a,string,omitempty"`
	AmountB      uint64 `json:"amount_b,string,omitempty"`
	LPTokens     uint64 `json:"lp_tokens,string,omitempty"`
	MinLPTokens  uint64 `json:"min_lp_tokens,string,omitempty"`
	MinAmountA   uint64 `json:"min_amount_a,string,omitempty"`
	MinAmountB   uint64 `json:"min_amount_b,string,omitempty"`
	MinAmountOut uint64 `json:"min_amount_out,string,omitempty"`
	Direction    string `json:"direction,omitempty"`
}
