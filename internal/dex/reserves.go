package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Reserves holds a WETH pair's decimal-adjusted pool balances.
type Reserves struct {
	Eth   float64
	Token float64
}

func decodeSyncReserves(data []byte) (*big.Int, *big.Int, error) {
	poolABI, err := V2PoolABI()
	if err != nil {
		return nil, nil, err
	}
	values, err := poolABI.Events["Sync"].Inputs.Unpack(data)
	if err != nil {
		return nil, nil, fmt.Errorf("unpack sync: %w", err)
	}
	if len(values) != 2 {
		return nil, nil, fmt.Errorf("unexpected sync values: %d", len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return nil, nil, err
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return nil, nil, err
	}
	return reserve0, reserve1, nil
}

// fetchReserves scans the receipt's logs for a reserve update of a WETH
// pair and normalizes both sides by their decimals. Pools without a WETH
// leg yield nil.
func (c *Classifier) fetchReserves(ctx context.Context, logs []types.Log, tokenDecimals uint8) *Reserves {
	for i := range logs {
		log := &logs[i]
		if len(log.Topics) == 0 || log.Topics[0] != SyncTopic() {
			continue
		}

		reserve0, reserve1, err := decodeSyncReserves(log.Data)
		if err != nil {
			c.logger.Debug("decode reserves failed", zap.String("pool", log.Address.Hex()), zap.Error(err))
			continue
		}

		token0, token1, err := c.pairs.poolTokens(ctx, log.Address)
		if err != nil {
			c.logger.Debug("reserve pool tokens failed", zap.String("pool", log.Address.Hex()), zap.Error(err))
			continue
		}

		var ethSide, tokenSide *big.Int
		switch c.cfg.WETH {
		case token0:
			ethSide, tokenSide = reserve0, reserve1
		case token1:
			ethSide, tokenSide = reserve1, reserve0
		default:
			continue
		}

		return &Reserves{
			Eth:   NormalizeAmount(ethSide, 18),
			Token: NormalizeAmount(tokenSide, tokenDecimals),
		}
	}
	return nil
}
