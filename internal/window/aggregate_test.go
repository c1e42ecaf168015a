package window

import (
	"testing"

	"tokenpulse/internal/model"
)

func txn(hash string, side model.Side, ts int64, block uint64, tokenAmount, usdValue float64) model.ClassifiedTransaction {
	return model.ClassifiedTransaction{
		TxHash:      hash,
		Side:        side,
		Timestamp:   ts,
		BlockNumber: block,
		TokenAmount: tokenAmount,
		USDValue:    usdValue,
	}
}

func TestSummarizeCounts(t *testing.T) {
	start := int64(1700000000) - 1700000000%3600
	txns := []model.ClassifiedTransaction{
		txn("0xa", model.SideBuy, start+100, 100, 10, 50),
		txn("0xb", model.SideSell, start+200, 101, 5, 25),
		txn("0xc", model.SideBuy, start+300, 102, 20, 100),
		// Outside the window, must be ignored.
		txn("0xd", model.SideBuy, start+3700, 103, 1, 1),
	}

	win := Summarize(start, 3600, txns)

	if win.TotalTxns != 3 {
		t.Fatalf("totalTxns = %d, want 3", win.TotalTxns)
	}
	if win.BuyCount != 2 || win.SellCount != 1 {
		t.Fatalf("buy/sell = %d/%d, want 2/1", win.BuyCount, win.SellCount)
	}
	if win.ActiveAddressCount != win.BuyCount+win.SellCount {
		t.Fatalf("activeAddressCount = %d, want %d", win.ActiveAddressCount, win.BuyCount+win.SellCount)
	}
	if win.TokenVolume != 35 {
		t.Fatalf("tokenVolume = %f, want 35", win.TokenVolume)
	}
	if win.TokenVolumeUSD != 175 {
		t.Fatalf("tokenVolumeUSD = %f, want 175", win.TokenVolumeUSD)
	}
	if win.StartBlock != 100 || win.EndBlock != 102 {
		t.Fatalf("blocks = %d..%d, want 100..102", win.StartBlock, win.EndBlock)
	}
	if len(win.TransactionHashes) != 3 {
		t.Fatalf("hashes = %d, want 3", len(win.TransactionHashes))
	}
}

func TestBuildIsGapFree(t *testing.T) {
	from := int64(1700000000)
	to := from + 5*3600
	txns := []model.ClassifiedTransaction{
		txn("0xa", model.SideBuy, from+10, 1, 1, 1),
		txn("0xb", model.SideSell, to-10, 2, 1, 1),
	}

	windows := Build(txns, 3600, from, to)

	firstStart := from - from%3600
	lastStart := to - to%3600
	wantCount := int((lastStart-firstStart)/3600 + 1)
	if len(windows) != wantCount {
		t.Fatalf("windows = %d, want %d", len(windows), wantCount)
	}

	// Newest first, consecutive, no gaps.
	for i, win := range windows {
		wantStart := lastStart - int64(i)*3600
		if win.Start != wantStart {
			t.Fatalf("window %d start = %d, want %d", i, win.Start, wantStart)
		}
		if win.End != win.Start+3600 {
			t.Fatalf("window %d end = %d, want %d", i, win.End, win.Start+3600)
		}
	}

	nonEmpty := NonEmpty(windows)
	if len(nonEmpty) != 2 {
		t.Fatalf("non-empty windows = %d, want 2", len(nonEmpty))
	}
	if nonEmpty[0].Start <= nonEmpty[1].Start {
		t.Fatal("non-empty windows should stay newest first")
	}
}

func TestTxnPricePrecedence(t *testing.T) {
	ethReserve := 100.0
	tokenReserve := 50000.0

	withReserves := model.ClassifiedTransaction{
		EthReserve:    &ethReserve,
		TokenReserve:  &tokenReserve,
		EthPrice:      2000,
		TokenPriceUSD: 99,
		TokenAmount:   10,
		USDValue:      55,
	}
	if got := TxnPrice(withReserves); got != 100*2000/50000.0 {
		t.Fatalf("reserve price = %f, want 4", got)
	}

	withClassified := model.ClassifiedTransaction{
		TokenPriceUSD: 99,
		TokenAmount:   10,
		USDValue:      55,
	}
	if got := TxnPrice(withClassified); got != 99 {
		t.Fatalf("classified price = %f, want 99", got)
	}

	withRatio := model.ClassifiedTransaction{
		TokenAmount: 10,
		USDValue:    55,
	}
	if got := TxnPrice(withRatio); got != 5.5 {
		t.Fatalf("ratio price = %f, want 5.5", got)
	}

	if got := TxnPrice(model.ClassifiedTransaction{}); got != 0 {
		t.Fatalf("empty price = %f, want 0", got)
	}
}

func TestSummarizeEdgePrices(t *testing.T) {
	start := int64(1700000000) - 1700000000%3600

	first := txn("0xa", model.SideBuy, start+10, 1, 10, 20)
	first.EthPrice = 1800
	last := txn("0xb", model.SideSell, start+20, 2, 10, 50)
	last.EthPrice = 1900
	last.BtcPrice = 40000

	win := Summarize(start, 3600, []model.ClassifiedTransaction{last, first})

	if win.LastTokenPrice != 2 {
		t.Fatalf("lastTokenPrice = %f, want 2", win.LastTokenPrice)
	}
	if win.LatestTokenPrice != 5 {
		t.Fatalf("latestTokenPrice = %f, want 5", win.LatestTokenPrice)
	}
	if win.AvgTokenPrice != 3.5 {
		t.Fatalf("avgTokenPrice = %f, want 3.5", win.AvgTokenPrice)
	}
	// Reference prices come from the chronologically last trade.
	if win.EthPrice != 1900 || win.BtcPrice != 40000 {
		t.Fatalf("eth/btc = %f/%f, want 1900/40000", win.EthPrice, win.BtcPrice)
	}
}
