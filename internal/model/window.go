package model

import "time"

// Window aggregates classified transactions over one fixed-width bucket.
type Window struct {
	Start              int64    `json:"window_start"`
	End                int64    `json:"window_end"`
	TotalTxns          int      `json:"total_txns"`
	BuyCount           int      `json:"buy_count"`
	SellCount          int      `json:"sell_count"`
	ActiveAddressCount int      `json:"active_address_count"`
	LastTokenPrice     float64  `json:"last_token_price"`
	LatestTokenPrice   float64  `json:"latest_token_price"`
	AvgTokenPrice      float64  `json:"avg_token_price"`
	TokenVolume        float64  `json:"token_volume"`
	TokenVolumeUSD     float64  `json:"token_volume_usd"`
	EthPrice           float64  `json:"eth_price"`
	BtcPrice           float64  `json:"btc_price"`
	StartBlock         uint64   `json:"start_block"`
	EndBlock           uint64   `json:"end_block"`
	TransactionHashes  []string `json:"transaction_hashes,omitempty"`
	MultiSwap          bool     `json:"multi_swap"`
}

// StartTime returns the window start as UTC wall-clock time.
func (w Window) StartTime() time.Time {
	return time.Unix(w.Start, 0).UTC()
}

// EndTime returns the window end as UTC wall-clock time.
func (w Window) EndTime() time.Time {
	return time.Unix(w.End, 0).UTC()
}
