package dex

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"tokenpulse/internal/model"
)

// TransferMatch is a transfer-class log identified as one leg of a swap.
type TransferMatch struct {
	Log   *types.Log
	Value *big.Int
}

func isTransferLog(log *types.Log) bool {
	return len(log.Topics) > 0 && log.Topics[0] == TransferTopic() && len(log.Data) > 0
}

func decodeTransferValue(data []byte) *big.Int {
	if len(data) < 32 {
		return nil
	}
	return new(big.Int).SetBytes(data[:32])
}

// matchAssetTransfer finds a transfer of the given asset whose value equals
// one of the two decoded swap amounts.
func matchAssetTransfer(logs []types.Log, asset common.Address, amounts SwapAmounts) *TransferMatch {
	for i := range logs {
		log := &logs[i]
		if !isTransferLog(log) || log.Address != asset {
			continue
		}
		value := decodeTransferValue(log.Data)
		if value == nil {
			continue
		}
		if value.Cmp(amounts.Amount0) == 0 || value.Cmp(amounts.Amount1) == 0 {
			return &TransferMatch{Log: log, Value: value}
		}
	}
	return nil
}

// firstStableTransfer returns the first transfer of any stable asset.
func firstStableTransfer(logs []types.Log, stables map[common.Address]struct{}) *TransferMatch {
	for i := range logs {
		log := &logs[i]
		if !isTransferLog(log) {
			continue
		}
		if _, ok := stables[log.Address]; !ok {
			continue
		}
		value := decodeTransferValue(log.Data)
		if value == nil {
			continue
		}
		return &TransferMatch{Log: log, Value: value}
	}
	return nil
}

// withinTolerance reports whether two values differ by strictly less than
// tolerancePct percent of the larger one.
func withinTolerance(a, b *big.Int, tolerancePct float64) bool {
	if a == nil || b == nil || tolerancePct <= 0 {
		return false
	}
	max, min := a, b
	if max.Cmp(min) < 0 {
		max, min = min, max
	}
	if max.Sign() == 0 {
		return false
	}

	variance := new(big.Float).SetInt(new(big.Int).Sub(max, min))
	ratio := new(big.Float).Quo(variance, new(big.Float).SetInt(max))
	pct, _ := new(big.Float).Mul(ratio, big.NewFloat(100)).Float64()
	return pct < tolerancePct
}

// matchTokenTransfer locates the primary token's transfer log: an exact
// match against the expected counter-amount, a near match within the
// tolerance, or, as last resort, a transfer naming the transaction sender
// or recipient.
func matchTokenTransfer(
	receipt *model.Receipt,
	amounts SwapAmounts,
	counterValue *big.Int,
	excluded map[common.Address]struct{},
	multiAsset bool,
	tolerancePct float64,
) *TransferMatch {
	expected := amounts.Amount1
	if counterValue != nil && amounts.Amount0.Cmp(counterValue) != 0 {
		expected = amounts.Amount0
	}

	for i := range receipt.Logs {
		log := &receipt.Logs[i]
		if !isTransferLog(log) {
			continue
		}
		if _, skip := excluded[log.Address]; skip {
			continue
		}
		value := decodeTransferValue(log.Data)
		if value == nil {
			continue
		}
		if value.Cmp(expected) == 0 || withinTolerance(value, expected, tolerancePct) {
			return &TransferMatch{Log: log, Value: value}
		}
	}

	for i := range receipt.Logs {
		log := &receipt.Logs[i]
		if !isTransferLog(log) || len(log.Topics) < 3 {
			continue
		}
		if _, skip := excluded[log.Address]; skip {
			continue
		}

		from := common.BytesToAddress(log.Topics[1].Bytes())
		to := common.BytesToAddress(log.Topics[2].Bytes())

		if multiAsset {
			if receipt.To != nil && to == *receipt.To {
				return &TransferMatch{Log: log, Value: new(big.Int).Set(expected)}
			}
			continue
		}
		if from == receipt.From || to == receipt.From {
			return &TransferMatch{Log: log, Value: new(big.Int).Set(expected)}
		}
	}

	return nil
}
