package window

import (
	"sort"

	"tokenpulse/internal/model"
)

// DefaultWidth is the summary window width in seconds. Dataset exports
// bucket at MinuteWidth instead.
const (
	DefaultWidth int64 = 3600
	MinuteWidth  int64 = 60
)

// TxnPrice derives the per-trade token price. Pool reserves are the
// preferred basis, then the classified price, then the USD value ratio.
func TxnPrice(txn model.ClassifiedTransaction) float64 {
	if txn.EthReserve != nil && txn.TokenReserve != nil &&
		*txn.TokenReserve > 0 && txn.EthPrice > 0 {
		return *txn.EthReserve * txn.EthPrice / *txn.TokenReserve
	}
	if txn.TokenPriceUSD > 0 {
		return txn.TokenPriceUSD
	}
	if txn.TokenAmount > 0 {
		return txn.USDValue / txn.TokenAmount
	}
	return 0
}

// Summarize folds transactions into a single window starting at start.
// Transactions outside [start, start+width) are ignored.
func Summarize(start, width int64, txns []model.ClassifiedTransaction) model.Window {
	if width <= 0 {
		width = DefaultWidth
	}
	win := model.Window{Start: start, End: start + width}

	var inWindow []model.ClassifiedTransaction
	for _, txn := range txns {
		if txn.Timestamp >= start && txn.Timestamp < start+width {
			inWindow = append(inWindow, txn)
		}
	}
	sort.SliceStable(inWindow, func(i, j int) bool {
		return inWindow[i].Timestamp < inWindow[j].Timestamp
	})

	fill(&win, inWindow)
	return win
}

// Build partitions transactions into consecutive windows covering
// [fromTS, toTS], aligned to the width. Every bucket in the range is
// emitted, empty or not, newest first.
func Build(txns []model.ClassifiedTransaction, width, fromTS, toTS int64) []model.Window {
	if width <= 0 {
		width = DefaultWidth
	}
	if toTS < fromTS {
		return nil
	}

	firstStart := fromTS - fromTS%width
	lastStart := toTS - toTS%width

	sorted := make([]model.ClassifiedTransaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	buckets := make(map[int64][]model.ClassifiedTransaction)
	for _, txn := range sorted {
		if txn.Timestamp < firstStart || txn.Timestamp >= lastStart+width {
			continue
		}
		key := txn.Timestamp - txn.Timestamp%width
		buckets[key] = append(buckets[key], txn)
	}

	count := (lastStart-firstStart)/width + 1
	out := make([]model.Window, 0, count)
	for start := lastStart; start >= firstStart; start -= width {
		win := model.Window{Start: start, End: start + width}
		fill(&win, buckets[start])
		out = append(out, win)
	}
	return out
}

// NonEmpty filters out windows with no transactions.
func NonEmpty(windows []model.Window) []model.Window {
	out := make([]model.Window, 0, len(windows))
	for _, win := range windows {
		if win.TotalTxns > 0 {
			out = append(out, win)
		}
	}
	return out
}

// fill computes the aggregate fields from chronologically sorted
// transactions.
func fill(win *model.Window, txns []model.ClassifiedTransaction) {
	if len(txns) == 0 {
		return
	}

	var priceSum float64
	priceCount := 0

	for i, txn := range txns {
		win.TotalTxns++
		switch txn.Side {
		case model.SideBuy:
			win.BuyCount++
		case model.SideSell:
			win.SellCount++
		}

		win.TokenVolume += txn.TokenAmount
		win.TokenVolumeUSD += txn.USDValue
		win.TransactionHashes = append(win.TransactionHashes, txn.TxHash)
		if txn.MultiSwap {
			win.MultiSwap = true
		}

		if win.StartBlock == 0 || txn.BlockNumber < win.StartBlock {
			win.StartBlock = txn.BlockNumber
		}
		if txn.BlockNumber > win.EndBlock {
			win.EndBlock = txn.BlockNumber
		}

		price := TxnPrice(txn)
		if price > 0 {
			priceSum += price
			priceCount++
		}
		if i == 0 {
			win.LastTokenPrice = price
		}
		if i == len(txns)-1 {
			win.LatestTokenPrice = price
			win.EthPrice = txn.EthPrice
			win.BtcPrice = txn.BtcPrice
		}
	}

	win.ActiveAddressCount = win.BuyCount + win.SellCount
	if priceCount > 0 {
		win.AvgTokenPrice = priceSum / float64(priceCount)
	}
}
