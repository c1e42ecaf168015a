package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const v2PoolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount0In", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount1In", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount0Out", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount1Out", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"}
    ],
    "name": "Swap",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint112", "name": "reserve0", "type": "uint112"},
      {"indexed": false, "internalType": "uint112", "name": "reserve1", "type": "uint112"}
    ],
    "name": "Sync",
    "type": "event"
  },
  {
    "inputs": [],
    "name": "token0",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "token1",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const v3PoolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "recipient", "type": "address"},
      {"indexed": false, "internalType": "int256", "name": "amount0", "type": "int256"},
      {"indexed": false, "internalType": "int256", "name": "amount1", "type": "int256"},
      {"indexed": false, "internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"indexed": false, "internalType": "uint128", "name": "liquidity", "type": "uint128"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"}
    ],
    "name": "Swap",
    "type": "event"
  },
  {
    "inputs": [],
    "name": "token0",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "token1",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	v2PoolABI     abi.ABI
	v2PoolABIOnce sync.Once
	v2PoolABIErr  error
	v3PoolABI     abi.ABI
	v3PoolABIOnce sync.Once
	v3PoolABIErr  error
)

// V2PoolABI returns the parsed V2 pair ABI.
func V2PoolABI() (abi.ABI, error) {
	v2PoolABIOnce.Do(func() {
		v2PoolABI, v2PoolABIErr = abi.JSON(strings.NewReader(v2PoolABIJSON))
	})
	return v2PoolABI, v2PoolABIErr
}

// V3PoolABI returns the parsed V3 pool ABI.
func V3PoolABI() (abi.ABI, error) {
	v3PoolABIOnce.Do(func() {
		v3PoolABI, v3PoolABIErr = abi.JSON(strings.NewReader(v3PoolABIJSON))
	})
	return v3PoolABI, v3PoolABIErr
}

// V2SwapTopic is the topic0 of the V2 pair Swap event.
func V2SwapTopic() common.Hash {
	poolABI, err := V2PoolABI()
	if err != nil {
		return common.Hash{}
	}
	return poolABI.Events["Swap"].ID
}

// V3SwapTopic is the topic0 of the V3 pool Swap event.
func V3SwapTopic() common.Hash {
	poolABI, err := V3PoolABI()
	if err != nil {
		return common.Hash{}
	}
	return poolABI.Events["Swap"].ID
}

// SyncTopic is the topic0 of the V2 pair Sync (reserve update) event.
func SyncTopic() common.Hash {
	poolABI, err := V2PoolABI()
	if err != nil {
		return common.Hash{}
	}
	return poolABI.Events["Sync"].ID
}

// TransferTopic is the topic0 of the ERC20 Transfer event.
func TransferTopic() common.Hash {
	tokenABI, err := erc20ABIStringInstance()
	if err != nil {
		return common.Hash{}
	}
	return tokenABI.Events["Transfer"].ID
}
