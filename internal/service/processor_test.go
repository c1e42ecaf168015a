package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"tokenpulse/internal/dataset"
	"tokenpulse/internal/model"
	"tokenpulse/internal/transfers"
)

type fakeCollector struct {
	recent *transfers.Result
	full   *transfers.Result
}

func (f *fakeCollector) Recent(context.Context, string) (*transfers.Result, error) {
	return f.recent, nil
}

func (f *fakeCollector) Range(context.Context, string, time.Time, time.Time) (*transfers.Result, error) {
	return f.full, nil
}

// fakeClassifier returns the pre-registered trades for each hash.
type fakeClassifier struct {
	trades map[string][]model.ClassifiedTransaction
}

func (f *fakeClassifier) Classify(_ context.Context, txHash common.Hash, _ bool) ([]model.ClassifiedTransaction, error) {
	trades, ok := f.trades[txHash.Hex()]
	if !ok {
		return nil, nil
	}
	return trades, nil
}

func hashHex(i int) string {
	return common.HexToHash(fmt.Sprintf("0x%x", i+1)).Hex()
}

func newTestProcessor(t *testing.T, collector HashCollector, classifier Classifier) *Processor {
	t.Helper()
	p, err := NewProcessor(Options{
		Collector:         collector,
		Classifier:        classifier,
		Exporter:          dataset.NewExporter(t.TempDir()),
		HourlyConcurrency: 4,
		DatasetBatchSize:  2,
	})
	require.NoError(t, err)
	return p
}

func TestHourlySummarySlidesToLastTrade(t *testing.T) {
	// The newest trade is three hours old, so the window must slide back
	// to cover it instead of reporting an empty hour.
	tradeTime := time.Now().UTC().Add(-3 * time.Hour)

	hash := hashHex(0)
	collector := &fakeCollector{recent: &transfers.Result{
		Hashes:     []string{hash},
		MostRecent: tradeTime,
	}}
	classifier := &fakeClassifier{trades: map[string][]model.ClassifiedTransaction{
		hash: {{
			TxHash:      hash,
			Side:        model.SideBuy,
			Timestamp:   tradeTime.Unix() - 30,
			TokenAmount: 10,
			USDValue:    100,
		}},
	}}

	p := newTestProcessor(t, collector, classifier)
	win, err := p.HourlySummary(context.Background(), "0xtoken")
	require.NoError(t, err)

	require.Equal(t, 1, win.TotalTxns)
	require.Equal(t, 1, win.BuyCount)
	require.Equal(t, tradeTime.Unix()-3600, win.Start)
}

func TestHistoricalSummaryPagination(t *testing.T) {
	from := time.Date(2023, 11, 14, 0, 0, 0, 0, time.UTC)

	// One trade per hour for 25 hours: 25 non-empty windows.
	hashes := make([]string, 25)
	trades := make(map[string][]model.ClassifiedTransaction, 25)
	for i := range hashes {
		hashes[i] = hashHex(i)
		trades[hashes[i]] = []model.ClassifiedTransaction{{
			TxHash:      hashes[i],
			Side:        model.SideSell,
			Timestamp:   from.Unix() + int64(i)*3600 + 10,
			TokenAmount: 1,
			USDValue:    2,
		}}
	}

	collector := &fakeCollector{full: &transfers.Result{Hashes: hashes}}
	p := newTestProcessor(t, collector, &fakeClassifier{trades: trades})

	result, err := p.HistoricalSummary(context.Background(), "0xtoken", "2023-11-14", "2023-11-15", 1, 10)
	require.NoError(t, err)
	require.Equal(t, 25, result.TotalItems)
	require.Equal(t, 3, result.TotalPages)
	require.Len(t, result.Items, 10)
	// Newest window first.
	require.Greater(t, result.Items[0].Start, result.Items[1].Start)

	// Out-of-range pages clamp instead of erroring.
	result, err = p.HistoricalSummary(context.Background(), "0xtoken", "2023-11-14", "2023-11-15", 99, 10)
	require.NoError(t, err)
	require.Equal(t, 3, result.CurrentPage)
	require.Len(t, result.Items, 5)
}

func TestHistoricalSummaryRejectsBadDates(t *testing.T) {
	p := newTestProcessor(t, &fakeCollector{}, &fakeClassifier{})

	_, err := p.HistoricalSummary(context.Background(), "0xtoken", "not-a-date", "2023-11-15", 1, 10)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidInput))

	_, err = p.HistoricalSummary(context.Background(), "0xtoken", "2023-11-15", "2023-11-14", 1, 10)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidInput))
}

func TestGenerateDatasetSkipsExistingBatches(t *testing.T) {
	hashes := []string{hashHex(0), hashHex(1), hashHex(2)}
	trades := make(map[string][]model.ClassifiedTransaction)
	for i, hash := range hashes {
		trades[hash] = []model.ClassifiedTransaction{{
			TxHash:      hash,
			Side:        model.SideBuy,
			Timestamp:   1700000000 + int64(i)*60,
			TokenAmount: 1,
			USDValue:    2,
		}}
	}

	dir := t.TempDir()
	hashesPath := filepath.Join(dir, "hashes.csv")
	content := "transaction_hash\n"
	for _, hash := range hashes {
		content += hash + "\n"
	}
	require.NoError(t, os.WriteFile(hashesPath, []byte(content), 0o644))

	p, err := NewProcessor(Options{
		Collector:        &fakeCollector{},
		Classifier:       &fakeClassifier{trades: trades},
		Exporter:         dataset.NewExporter(dir),
		DatasetBatchSize: 2,
	})
	require.NoError(t, err)

	first, err := p.GenerateDataset(context.Background(), "0xtoken", "2023-11-14", "2023-11-15", hashesPath)
	require.NoError(t, err)
	require.NotEmpty(t, first.RunID)
	require.Equal(t, 3, first.TotalHashes)
	require.Equal(t, 2, first.Batches)
	require.Equal(t, 0, first.SkippedBatches)
	require.Len(t, first.Files, 2)

	// A rerun finds both batch files on disk and writes nothing.
	second, err := p.GenerateDataset(context.Background(), "0xtoken", "2023-11-14", "2023-11-15", hashesPath)
	require.NoError(t, err)
	require.Equal(t, 2, second.SkippedBatches)
	require.Empty(t, second.Files)
}

func TestGenerateDatasetBucketsByMinute(t *testing.T) {
	hash := hashHex(0)
	collector := &fakeCollector{full: &transfers.Result{Hashes: []string{hash}}}
	classifier := &fakeClassifier{trades: map[string][]model.ClassifiedTransaction{
		hash: {{
			TxHash:      hash,
			Side:        model.SideBuy,
			Timestamp:   1700000030,
			TokenAmount: 10,
			USDValue:    100,
		}},
	}}

	p := newTestProcessor(t, collector, classifier)

	result, err := p.GenerateDataset(context.Background(), "0xtoken", "2023-11-14", "2023-11-15", "")
	require.NoError(t, err)
	require.Len(t, result.Files, 1)

	f, err := os.Open(result.Files[0])
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	start, err := time.Parse("2006-01-02 15:04:05", rows[1][0])
	require.NoError(t, err)
	end, err := time.Parse("2006-01-02 15:04:05", rows[1][1])
	require.NoError(t, err)
	require.Equal(t, time.Minute, end.Sub(start))
	require.Equal(t, int64(1700000000-1700000000%60), start.Unix())
}

func TestGenerateDatasetRejectsBadDates(t *testing.T) {
	p := newTestProcessor(t, &fakeCollector{}, &fakeClassifier{})

	_, err := p.GenerateDataset(context.Background(), "0xtoken", "2023-13-40", "2023-11-15", "")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = p.GenerateDataset(context.Background(), "0xtoken", "2023-11-15", "2023-11-14", "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestGenerateDatasetCollectsWhenNoFile(t *testing.T) {
	hash := hashHex(0)
	collector := &fakeCollector{full: &transfers.Result{Hashes: []string{hash}}}
	classifier := &fakeClassifier{trades: map[string][]model.ClassifiedTransaction{
		hash: {{
			TxHash:      hash,
			Side:        model.SideSell,
			Timestamp:   1700000000,
			TokenAmount: 5,
			USDValue:    10,
		}},
	}}

	p := newTestProcessor(t, collector, classifier)

	result, err := p.GenerateDataset(context.Background(), "0xtoken", "2023-11-14", "2023-11-15", "")
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalHashes)
	require.Len(t, result.Files, 1)
}
