package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"tokenpulse/internal/model"
)

var (
	testWETH   = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	testUSDC   = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	testToken  = common.HexToAddress("0x4444444444444444444444444444444444444444")
	testSender = common.HexToAddress("0x5555555555555555555555555555555555555555")
	testRouter = common.HexToAddress("0x6666666666666666666666666666666666666666")
)

func transferLog(asset, from, to common.Address, value *big.Int) types.Log {
	data := make([]byte, 32)
	value.FillBytes(data)
	return types.Log{
		Address: asset,
		Topics: []common.Hash{
			TransferTopic(),
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: data,
	}
}

func TestMatchAssetTransfer(t *testing.T) {
	amounts := SwapAmounts{
		Version: VersionV2,
		Amount0: big.NewInt(1000),
		Amount1: big.NewInt(2000),
	}
	logs := []types.Log{
		transferLog(testToken, testSender, testRouter, big.NewInt(9999)),
		transferLog(testWETH, testRouter, testSender, big.NewInt(2000)),
	}

	match := matchAssetTransfer(logs, testWETH, amounts)
	if match == nil {
		t.Fatal("expected a WETH transfer match")
	}
	if match.Value.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("value = %s, want 2000", match.Value)
	}

	if matchAssetTransfer(logs, testUSDC, amounts) != nil {
		t.Fatal("no USDC transfer should match")
	}
}

func TestMatchTokenTransferExact(t *testing.T) {
	amounts := SwapAmounts{
		Version: VersionV2,
		Amount0: big.NewInt(1000),
		Amount1: big.NewInt(500000),
	}
	receipt := &model.Receipt{
		From: testSender,
		Logs: []types.Log{
			transferLog(testWETH, testSender, testRouter, big.NewInt(1000)),
			transferLog(testToken, testRouter, testSender, big.NewInt(500000)),
		},
	}
	excluded := map[common.Address]struct{}{testWETH: {}}

	match := matchTokenTransfer(receipt, amounts, big.NewInt(1000), excluded, false, 10)
	if match == nil {
		t.Fatal("expected a token transfer match")
	}
	if match.Log.Address != testToken {
		t.Fatalf("matched %s, want token", match.Log.Address.Hex())
	}
	if match.Value.Cmp(big.NewInt(500000)) != 0 {
		t.Fatalf("value = %s, want 500000", match.Value)
	}
}

func TestMatchTokenTransferTolerance(t *testing.T) {
	amounts := SwapAmounts{
		Version: VersionV2,
		Amount0: big.NewInt(1000),
		Amount1: big.NewInt(100000),
	}
	// The token transfer carries a 2% fee, so it lands 2% under the
	// decoded amount.
	receipt := &model.Receipt{
		From: testSender,
		Logs: []types.Log{
			transferLog(testWETH, testSender, testRouter, big.NewInt(1000)),
			transferLog(testToken, testRouter, testSender, big.NewInt(98000)),
		},
	}
	excluded := map[common.Address]struct{}{testWETH: {}}

	match := matchTokenTransfer(receipt, amounts, big.NewInt(1000), excluded, false, 10)
	if match == nil {
		t.Fatal("expected a near match within tolerance")
	}
	if match.Value.Cmp(big.NewInt(98000)) != 0 {
		t.Fatalf("value = %s, want 98000", match.Value)
	}

	// A tighter tolerance, with no fallback candidate, rejects it.
	tight := &model.Receipt{
		From: common.HexToAddress("0x7777777777777777777777777777777777777777"),
		Logs: receipt.Logs,
	}
	if matchTokenTransfer(tight, amounts, big.NewInt(1000), excluded, false, 1) != nil {
		t.Fatal("2% variance should not match a 1% tolerance")
	}
}

func TestMatchTokenTransferFallbackToSender(t *testing.T) {
	amounts := SwapAmounts{
		Version: VersionV2,
		Amount0: big.NewInt(1000),
		Amount1: big.NewInt(100000),
	}
	// No exact or near value, but the transfer goes to the transaction
	// sender.
	receipt := &model.Receipt{
		From: testSender,
		Logs: []types.Log{
			transferLog(testWETH, testSender, testRouter, big.NewInt(1000)),
			transferLog(testToken, testRouter, testSender, big.NewInt(42)),
		},
	}
	excluded := map[common.Address]struct{}{testWETH: {}}

	match := matchTokenTransfer(receipt, amounts, big.NewInt(1000), excluded, false, 10)
	if match == nil {
		t.Fatal("expected fallback match on the sender")
	}
	if match.Log.Address != testToken {
		t.Fatalf("matched %s, want token", match.Log.Address.Hex())
	}
	// The fallback reports the decoded amount, not the log value.
	if match.Value.Cmp(big.NewInt(100000)) != 0 {
		t.Fatalf("value = %s, want 100000", match.Value)
	}
}

func TestMatchTokenTransferMultiAssetFallback(t *testing.T) {
	amounts := SwapAmounts{
		Version: VersionV2,
		Amount0: big.NewInt(1000),
		Amount1: big.NewInt(100000),
	}
	contract := testRouter
	receipt := &model.Receipt{
		From: testSender,
		To:   &contract,
		Logs: []types.Log{
			transferLog(testUSDC, testSender, testRouter, big.NewInt(1000)),
			transferLog(testToken, testSender, testRouter, big.NewInt(77)),
		},
	}
	excluded := map[common.Address]struct{}{testWETH: {}, testUSDC: {}}

	match := matchTokenTransfer(receipt, amounts, big.NewInt(1000), excluded, true, 10)
	if match == nil {
		t.Fatal("expected multi-asset fallback match on the recipient")
	}
	if match.Log.Address != testToken {
		t.Fatalf("matched %s, want token", match.Log.Address.Hex())
	}
}
