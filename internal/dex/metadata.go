package dex

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// TokenInfo captures ERC20 metadata for one token.
type TokenInfo struct {
	Address     common.Address
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply float64
}

// TokenInfoCache caches token metadata by address.
type TokenInfoCache struct {
	mu   sync.RWMutex
	data map[common.Address]TokenInfo
}

func NewTokenInfoCache() *TokenInfoCache {
	return &TokenInfoCache{data: make(map[common.Address]TokenInfo)}
}

func (c *TokenInfoCache) Get(address common.Address) (TokenInfo, bool) {
	c.mu.RLock()
	info, ok := c.data[address]
	c.mu.RUnlock()
	return info, ok
}

func (c *TokenInfoCache) Set(address common.Address, info TokenInfo) {
	c.mu.Lock()
	c.data[address] = info
	c.mu.Unlock()
}

// FetchTokenInfo loads token metadata via ERC20 calls, trying the dynamic
// string profile first and falling back to the bytes32 profile used by a
// handful of non-standard tokens.
func FetchTokenInfo(ctx context.Context, chainClient ChainBackend, token common.Address, logger *zap.Logger) (TokenInfo, error) {
	if chainClient == nil {
		return TokenInfo{}, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return TokenInfo{}, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return TokenInfo{}, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	info, err := fetchWithProfile(ctx, chainClient, token, stringABI, false)
	if err == nil {
		return info, nil
	}
	logger.Debug("string abi metadata failed, trying bytes32",
		zap.String("token", token.Hex()), zap.Error(err))

	info, err = fetchWithProfile(ctx, chainClient, token, bytes32ABI, true)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("token metadata %s: %w", token.Hex(), err)
	}
	return info, nil
}

func fetchWithProfile(ctx context.Context, chainClient ChainBackend, token common.Address, parsed abi.ABI, fixedStrings bool) (TokenInfo, error) {
	call := func(method string) ([]interface{}, error) {
		data, err := parsed.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		msg := ethereum.CallMsg{To: &token, Data: data}
		resp, err := chainClient.CallContract(ctx, msg, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		return values, nil
	}

	info := TokenInfo{Address: token}

	values, err := call("decimals")
	if err != nil {
		return TokenInfo{}, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return TokenInfo{}, err
	}
	info.Decimals = decimals

	values, err = call("symbol")
	if err != nil {
		return TokenInfo{}, err
	}
	symbol, err := asText(values[0], fixedStrings)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("symbol: %w", err)
	}
	info.Symbol = symbol

	values, err = call("name")
	if err != nil {
		return TokenInfo{}, err
	}
	name, err := asText(values[0], fixedStrings)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("name: %w", err)
	}
	info.Name = name

	values, err = call("totalSupply")
	if err != nil {
		return TokenInfo{}, err
	}
	supply, err := asBigInt(values[0])
	if err != nil {
		return TokenInfo{}, fmt.Errorf("total supply: %w", err)
	}
	info.TotalSupply = NormalizeAmount(supply, decimals)

	return info, nil
}

// NormalizeAmount converts a raw integer token amount into a decimal-
// adjusted float.
func NormalizeAmount(value *big.Int, decimals uint8) float64 {
	if value == nil {
		return 0
	}
	raw, _ := new(big.Float).SetInt(value).Float64()
	return raw / math.Pow10(int(decimals))
}

func asText(value interface{}, fixedStrings bool) (string, error) {
	if fixedStrings {
		switch v := value.(type) {
		case [32]byte:
			return string(bytes.TrimRight(v[:], "\x00")), nil
		case []byte:
			return string(bytes.TrimRight(v, "\x00")), nil
		default:
			return "", fmt.Errorf("unsupported bytes32 type %T", value)
		}
	}
	text, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("unsupported string type %T", value)
	}
	return text, nil
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
