package dex

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"tokenpulse/internal/model"
)

// ChainBackend is the node access this package needs. *chain.Client
// satisfies it.
type ChainBackend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*model.Receipt, error)
	BlockTimestamp(ctx context.Context, number uint64) (int64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}
