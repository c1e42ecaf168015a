package model

// Side marks the trade direction of a classified transaction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ClassifiedTransaction is the enriched output of the swap classifier.
// Reserve fields are present only when the receipt carried a reserve
// update for a WETH pool.
type ClassifiedTransaction struct {
	TxHash        string   `json:"tx_hash"`
	Side          Side     `json:"side"`
	Token         string   `json:"token"`
	Name          string   `json:"name"`
	Symbol        string   `json:"symbol"`
	Decimals      uint8    `json:"decimals"`
	TotalSupply   float64  `json:"total_supply"`
	TokenAmount   float64  `json:"token_amount"`
	EthAmount     float64  `json:"eth_amount"`
	USDValue      float64  `json:"usd_value"`
	TokenPriceUSD float64  `json:"token_price_usd"`
	BlockNumber   uint64   `json:"block_number"`
	Timestamp     int64    `json:"timestamp"`
	MultiSwap     bool     `json:"multi_swap"`
	EthReserve    *float64 `json:"eth_reserve,omitempty"`
	TokenReserve  *float64 `json:"token_reserve,omitempty"`
	EthPrice      float64  `json:"eth_price"`
	BtcPrice      float64  `json:"btc_price"`
}
