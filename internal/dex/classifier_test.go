package dex

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"tokenpulse/internal/model"
)

type fakeBackend struct {
	receipts  map[common.Hash]*model.Receipt
	timestamp int64
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, txHash common.Hash) (*model.Receipt, error) {
	receipt, ok := f.receipts[txHash]
	if !ok {
		return nil, fmt.Errorf("receipt not found")
	}
	return receipt, nil
}

func (f *fakeBackend) BlockTimestamp(context.Context, uint64) (int64, error) {
	return f.timestamp, nil
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, fmt.Errorf("no contract calls in tests")
}

type fakePrices struct{}

func (fakePrices) Resolve(_ context.Context, asset string, _ int64, _ bool) float64 {
	switch asset {
	case "ETH":
		return 2000
	case "BTC":
		return 40000
	}
	return 0
}

func units(n int64, decimals uint) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Int).Mul(big.NewInt(n), scale)
}

func newTestClassifier(backend ChainBackend) (*Classifier, *TokenInfoCache) {
	pairs := NewPairResolver(backend, nil, nil)
	tokens := NewTokenInfoCache()
	cfg := Config{
		WETH:         testWETH,
		WBTC:         common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"),
		Stables:      []common.Address{testUSDC},
		TolerancePct: 10,
	}
	return NewClassifier(cfg, backend, pairs, tokens, fakePrices{}, nil), tokens
}

func swapLogV2(pool common.Address, data []byte) types.Log {
	return types.Log{
		Address: pool,
		Topics: []common.Hash{
			V2SwapTopic(),
			common.BytesToHash(testSender.Bytes()),
			common.BytesToHash(testSender.Bytes()),
		},
		Data: data,
	}
}

func TestClassifyReceiptEthTrade(t *testing.T) {
	pool := common.HexToAddress("0x8888888888888888888888888888888888888888")
	backend := &fakeBackend{timestamp: 1700000500}

	classifier, tokens := newTestClassifier(backend)
	classifier.pairs.Seed(pool, PairTokens{Pool: pool, Base: testToken, Quote: testWETH, Valid: true})
	tokens.Set(testToken, TokenInfo{
		Address: testToken, Name: "Test Token", Symbol: "TT", Decimals: 18, TotalSupply: 1e9,
	})

	// 1 WETH in, 500 TT out.
	swapData := packV2Swap(t, units(1, 18), big.NewInt(0), big.NewInt(0), units(500, 18))

	receipt := &model.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: 18000000,
		TxHash:      common.HexToHash("0x01"),
		From:        testSender,
		Logs: []types.Log{
			transferLog(testWETH, testSender, pool, units(1, 18)),
			transferLog(testToken, pool, testSender, units(500, 18)),
			swapLogV2(pool, swapData),
		},
	}

	txns, err := classifier.ClassifyReceipt(context.Background(), receipt, false)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("txns = %d, want 1", len(txns))
	}

	txn := txns[0]
	if txn.Side != model.SideBuy {
		t.Fatalf("side = %s, want BUY", txn.Side)
	}
	if txn.EthAmount != 1 {
		t.Fatalf("ethAmount = %f, want 1", txn.EthAmount)
	}
	if txn.TokenAmount != 500 {
		t.Fatalf("tokenAmount = %f, want 500", txn.TokenAmount)
	}
	if txn.USDValue != 2000 {
		t.Fatalf("usdValue = %f, want 2000", txn.USDValue)
	}
	if txn.TokenPriceUSD != 4 {
		t.Fatalf("tokenPriceUSD = %f, want 4", txn.TokenPriceUSD)
	}
	if txn.MultiSwap {
		t.Fatal("direct ETH trade must not flag multiSwap")
	}
	if txn.Timestamp != 1700000500 {
		t.Fatalf("timestamp = %d, want 1700000500", txn.Timestamp)
	}
	if txn.Symbol != "TT" || txn.Decimals != 18 {
		t.Fatalf("metadata = %s/%d, want TT/18", txn.Symbol, txn.Decimals)
	}
}

func TestClassifyReceiptStableTrade(t *testing.T) {
	pool := common.HexToAddress("0x9999999999999999999999999999999999999999")
	backend := &fakeBackend{timestamp: 1700000500}

	classifier, tokens := newTestClassifier(backend)
	classifier.pairs.Seed(pool, PairTokens{Pool: pool, Base: testToken, Quote: testUSDC, Valid: true})
	tokens.Set(testToken, TokenInfo{Address: testToken, Symbol: "TT", Decimals: 18})
	tokens.Set(testUSDC, TokenInfo{Address: testUSDC, Symbol: "USDC", Decimals: 6})

	// 1000 USDC in, 500 TT out.
	swapData := packV2Swap(t, units(1000, 6), big.NewInt(0), big.NewInt(0), units(500, 18))

	receipt := &model.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: 18000001,
		TxHash:      common.HexToHash("0x02"),
		From:        testSender,
		Logs: []types.Log{
			transferLog(testUSDC, testSender, pool, units(1000, 6)),
			transferLog(testToken, pool, testSender, units(500, 18)),
			swapLogV2(pool, swapData),
		},
	}

	txns, err := classifier.ClassifyReceipt(context.Background(), receipt, false)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("txns = %d, want 1", len(txns))
	}

	txn := txns[0]
	if txn.Side != model.SideBuy {
		t.Fatalf("side = %s, want BUY", txn.Side)
	}
	if txn.USDValue != 1000 {
		t.Fatalf("usdValue = %f, want 1000", txn.USDValue)
	}
	if txn.EthAmount != 0 {
		t.Fatalf("ethAmount = %f, want 0", txn.EthAmount)
	}
	if txn.TokenPriceUSD != 2 {
		t.Fatalf("tokenPriceUSD = %f, want 2", txn.TokenPriceUSD)
	}
	if !txn.MultiSwap {
		t.Fatal("stable-quoted trade must flag multiSwap")
	}
}

func TestClassifyReceiptRejectsNonSwaps(t *testing.T) {
	backend := &fakeBackend{timestamp: 1700000500}
	classifier, _ := newTestClassifier(backend)
	ctx := context.Background()

	// Reverted transaction.
	failed := &model.Receipt{Status: 0, Logs: []types.Log{
		transferLog(testToken, testSender, testRouter, big.NewInt(1)),
		transferLog(testToken, testSender, testRouter, big.NewInt(2)),
	}}
	txns, err := classifier.ClassifyReceipt(ctx, failed, false)
	if err != nil || txns != nil {
		t.Fatalf("failed receipt: txns=%v err=%v, want nil/nil", txns, err)
	}

	// Plain transfer: exactly one transfer log.
	plain := &model.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs:   []types.Log{transferLog(testToken, testSender, testRouter, big.NewInt(1))},
	}
	txns, err = classifier.ClassifyReceipt(ctx, plain, false)
	if err != nil || txns != nil {
		t.Fatalf("plain transfer: txns=%v err=%v, want nil/nil", txns, err)
	}

	// No swap log at all.
	noSwap := &model.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs: []types.Log{
			transferLog(testToken, testSender, testRouter, big.NewInt(1)),
			transferLog(testWETH, testSender, testRouter, big.NewInt(2)),
		},
	}
	txns, err = classifier.ClassifyReceipt(ctx, noSwap, false)
	if err != nil || txns != nil {
		t.Fatalf("no swap log: txns=%v err=%v, want nil/nil", txns, err)
	}
}
