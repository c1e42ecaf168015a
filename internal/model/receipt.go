package model

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Receipt is a transaction execution record as returned by the node.
// It keeps the sender and recipient, which the classifier needs for
// last-resort transfer matching.
type Receipt struct {
	Status      uint64
	BlockNumber uint64
	TxHash      common.Hash
	From        common.Address
	To          *common.Address
	Logs        []types.Log
}

// Succeeded reports whether the transaction executed without revert.
func (r *Receipt) Succeeded() bool {
	return r.Status == types.ReceiptStatusSuccessful
}

// UnmarshalJSON decodes the raw eth_getTransactionReceipt payload.
func (r *Receipt) UnmarshalJSON(data []byte) error {
	var raw struct {
		Status      hexutil.Uint64  `json:"status"`
		BlockNumber hexutil.Uint64  `json:"blockNumber"`
		TxHash      common.Hash     `json:"transactionHash"`
		From        common.Address  `json:"from"`
		To          *common.Address `json:"to"`
		Logs        []types.Log     `json:"logs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Status = uint64(raw.Status)
	r.BlockNumber = uint64(raw.BlockNumber)
	r.TxHash = raw.TxHash
	r.From = raw.From
	r.To = raw.To
	r.Logs = raw.Logs
	return nil
}
