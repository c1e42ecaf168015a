package dex

import (
	"fmt"
	"math/big"

	"tokenpulse/internal/model"
)

// ProtocolVersion identifies the swap-pool encoding of a log.
type ProtocolVersion string

const (
	VersionV2 ProtocolVersion = "V2"
	VersionV3 ProtocolVersion = "V3"
)

// SwapAmounts holds the two decoded swap legs as positive magnitudes.
// Amount0 is the leg that left the pool in the V3 encoding; for V2 it is
// the input leg of the fired direction.
type SwapAmounts struct {
	Version ProtocolVersion
	Amount0 *big.Int
	Amount1 *big.Int
}

// DecodeV3Swap unpacks a V3 Swap payload. The two signed amounts are
// normalized to magnitudes, keeping the original pairing.
func DecodeV3Swap(data []byte) (SwapAmounts, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return SwapAmounts{}, err
	}

	values, err := poolABI.Events["Swap"].Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return SwapAmounts{}, fmt.Errorf("unpack v3 swap: %w", err)
	}
	if len(values) != 5 {
		return SwapAmounts{}, fmt.Errorf("unexpected v3 swap values: %d", len(values))
	}

	amount0, ok := values[0].(*big.Int)
	if !ok {
		return SwapAmounts{}, fmt.Errorf("unexpected amount0 type %T", values[0])
	}
	amount1, ok := values[1].(*big.Int)
	if !ok {
		return SwapAmounts{}, fmt.Errorf("unexpected amount1 type %T", values[1])
	}

	out := SwapAmounts{Version: VersionV3}
	if amount0.Sign() > 0 {
		out.Amount0 = new(big.Int).Set(amount0)
		out.Amount1 = new(big.Int).Neg(amount1)
	} else {
		out.Amount0 = new(big.Int).Neg(amount0)
		out.Amount1 = new(big.Int).Set(amount1)
	}
	return out, nil
}

// DecodeV2Swap unpacks a V2 Swap payload. Only one direction carries
// non-zero amounts; the fired direction's (in, out) pair is returned.
func DecodeV2Swap(data []byte) (SwapAmounts, error) {
	poolABI, err := V2PoolABI()
	if err != nil {
		return SwapAmounts{}, err
	}

	values, err := poolABI.Events["Swap"].Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return SwapAmounts{}, fmt.Errorf("unpack v2 swap: %w", err)
	}
	if len(values) != 4 {
		return SwapAmounts{}, fmt.Errorf("unexpected v2 swap values: %d", len(values))
	}

	amounts := make([]*big.Int, 4)
	for i, value := range values {
		parsed, ok := value.(*big.Int)
		if !ok {
			return SwapAmounts{}, fmt.Errorf("unexpected v2 swap value type %T", value)
		}
		amounts[i] = parsed
	}
	amount0In, amount1In, amount0Out, amount1Out := amounts[0], amounts[1], amounts[2], amounts[3]

	out := SwapAmounts{Version: VersionV2}
	if amount0Out.Sign() > 0 {
		out.Amount0 = new(big.Int).Set(amount1In)
		out.Amount1 = new(big.Int).Set(amount0Out)
	} else {
		out.Amount0 = new(big.Int).Set(amount0In)
		out.Amount1 = new(big.Int).Set(amount1Out)
	}
	return out, nil
}

// sideOf derives the trade direction from whether the matched counter-asset
// value equals the decoded primary amount. The two protocol versions encode
// direction with opposite conventions.
func sideOf(version ProtocolVersion, counterValue, amount0 *big.Int) model.Side {
	equal := counterValue != nil && amount0 != nil && counterValue.Cmp(amount0) == 0
	switch version {
	case VersionV3:
		if equal {
			return model.SideSell
		}
		return model.SideBuy
	default:
		if equal {
			return model.SideBuy
		}
		return model.SideSell
	}
}
