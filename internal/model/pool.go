package model

// PoolRecord is the storage row of a pool.
type PoolRecord struct {
	Address      string `json:"address"`
	TokenA       string `json:"token_a"`
	TokenB       string `json:"token_b"`
	FeeRateBps   uint16 `json:"fee_rate_bps"`
	FirstSeenSeq uint64 `json:"first_seen_seq"`
	FirstSeenTS  uint64 `json:"first_seen_ts"`
}

// TokenMeta captures ERC20 metadata of an imported token.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol,omitempty"`
	Name     string `json:"name,omitempty"`
}
