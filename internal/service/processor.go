package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tokenpulse/internal/dataset"
	"tokenpulse/internal/model"
	"tokenpulse/internal/pipeline"
	"tokenpulse/internal/storage/postgres"
	"tokenpulse/internal/transfers"
	"tokenpulse/internal/window"
)

const dateLayout = "2006-01-02"

// ErrInvalidInput marks failures caused by caller-supplied parameters.
var ErrInvalidInput = errors.New("invalid input")

// Classifier turns a transaction hash into classified trades.
type Classifier interface {
	Classify(ctx context.Context, txHash common.Hash, historical bool) ([]model.ClassifiedTransaction, error)
}

// HashCollector walks a token's transfer feed.
type HashCollector interface {
	Recent(ctx context.Context, token string) (*transfers.Result, error)
	Range(ctx context.Context, token string, from, to time.Time) (*transfers.Result, error)
}

// Options wires the processor's dependencies and tuning knobs.
type Options struct {
	Collector         HashCollector
	Classifier        Classifier
	DatasetClassifier Classifier
	Exporter          *dataset.Exporter
	Store             *postgres.Store
	Logger            *zap.Logger

	HourlyConcurrency     int
	HistoricalConcurrency int
	DatasetConcurrency    int
	DatasetBatchSize      int
}

// Processor implements the summary and dataset operations.
type Processor struct {
	opts   Options
	logger *zap.Logger
}

func NewProcessor(opts Options) (*Processor, error) {
	if opts.Collector == nil {
		return nil, fmt.Errorf("collector is required")
	}
	if opts.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DatasetClassifier == nil {
		opts.DatasetClassifier = opts.Classifier
	}
	if opts.HourlyConcurrency <= 0 {
		opts.HourlyConcurrency = 70
	}
	if opts.HistoricalConcurrency <= 0 {
		opts.HistoricalConcurrency = 60
	}
	if opts.DatasetConcurrency <= 0 {
		opts.DatasetConcurrency = 2000
	}
	if opts.DatasetBatchSize <= 0 {
		opts.DatasetBatchSize = 10000
	}
	return &Processor{opts: opts, logger: opts.Logger}, nil
}

func (p *Processor) enrichFunc(classifier Classifier, historical bool) pipeline.EnrichFunc {
	return func(ctx context.Context, txHash string) ([]model.ClassifiedTransaction, error) {
		return classifier.Classify(ctx, common.HexToHash(txHash), historical)
	}
}

// HourlySummary aggregates the trailing hour of trades for a token. The
// window slides back from the most recent trade when the feed is quiet,
// so the summary is never empty just because the last swap happened 61
// minutes ago.
func (p *Processor) HourlySummary(ctx context.Context, token string) (*model.Window, error) {
	collected, err := p.opts.Collector.Recent(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("collect recent transfers: %w", err)
	}

	txns := pipeline.Enrich(ctx, collected.Hashes, p.opts.HourlyConcurrency,
		p.enrichFunc(p.opts.Classifier, false), p.logger)

	end := time.Now().UTC().Unix()
	if !collected.MostRecent.IsZero() && collected.MostRecent.Unix() < end-window.DefaultWidth {
		end = collected.MostRecent.Unix()
	}
	start := end - window.DefaultWidth

	win := window.Summarize(start, window.DefaultWidth, txns)

	if p.opts.Store != nil {
		if err := p.opts.Store.UpsertTokenWindows(ctx, token, []model.Window{win}); err != nil {
			p.logger.Warn("persist hourly window failed", zap.String("token", token), zap.Error(err))
		}
	}

	p.logger.Info("hourly summary built",
		zap.String("token", token),
		zap.Int("txns", win.TotalTxns),
		zap.Int64("window_start", win.Start))
	return &win, nil
}

// HistoricalResult is one page of historical windows.
type HistoricalResult struct {
	CurrentPage int            `json:"current_page"`
	TotalPages  int            `json:"total_pages"`
	TotalItems  int            `json:"total_items"`
	PerPage     int            `json:"per_page"`
	Items       []model.Window `json:"items"`
}

// HistoricalSummary aggregates hourly windows over a date range and
// returns one page, newest window first. Pages outside the valid range
// are clamped rather than rejected.
func (p *Processor) HistoricalSummary(ctx context.Context, token, fromDate, toDate string, page, perPage int) (*HistoricalResult, error) {
	from, to, err := parseDateRange(fromDate, toDate)
	if err != nil {
		return nil, err
	}
	if perPage <= 0 {
		perPage = 10
	}

	collected, err := p.opts.Collector.Range(ctx, token, time.Unix(from, 0).UTC(), time.Unix(to, 0).UTC())
	if err != nil {
		return nil, fmt.Errorf("collect transfer range: %w", err)
	}

	txns := pipeline.Enrich(ctx, collected.Hashes, p.opts.HistoricalConcurrency,
		p.enrichFunc(p.opts.Classifier, true), p.logger)

	windows := window.NonEmpty(window.Build(txns, window.DefaultWidth, from, to))

	if p.opts.Store != nil && len(windows) > 0 {
		if err := p.opts.Store.UpsertTokenWindows(ctx, token, windows); err != nil {
			p.logger.Warn("persist historical windows failed", zap.String("token", token), zap.Error(err))
		}
	}

	totalItems := len(windows)
	totalPages := (totalItems + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	lo := (page - 1) * perPage
	hi := lo + perPage
	if lo > totalItems {
		lo = totalItems
	}
	if hi > totalItems {
		hi = totalItems
	}

	p.logger.Info("historical summary built",
		zap.String("token", token),
		zap.Int("windows", totalItems),
		zap.Int("page", page),
		zap.Int("total_pages", totalPages))

	return &HistoricalResult{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  totalItems,
		PerPage:     perPage,
		Items:       windows[lo:hi],
	}, nil
}

// DatasetResult reports one dataset generation run.
type DatasetResult struct {
	RunID          string   `json:"run_id"`
	Token          string   `json:"token"`
	TotalHashes    int      `json:"total_hashes"`
	Batches        int      `json:"batches"`
	SkippedBatches int      `json:"skipped_batches"`
	Files          []string `json:"files"`
}

// GenerateDataset classifies transaction hashes in fixed-size batches
// and writes one minute-bucketed CSV per batch. Hashes come from
// hashesPath when given, otherwise from walking the token's transfer
// feed over the date range. Batches whose output file already exists
// are skipped, so an interrupted run resumes where it stopped.
func (p *Processor) GenerateDataset(ctx context.Context, token, fromDate, toDate, hashesPath string) (*DatasetResult, error) {
	if p.opts.Exporter == nil {
		return nil, fmt.Errorf("exporter is required for dataset runs")
	}

	from, to, err := parseDateRange(fromDate, toDate)
	if err != nil {
		return nil, err
	}

	var hashes []string
	if hashesPath != "" {
		loaded, err := dataset.LoadHashesCSV(hashesPath)
		if err != nil {
			return nil, err
		}
		hashes = loaded
	} else {
		collected, err := p.opts.Collector.Range(ctx, token, time.Unix(from, 0).UTC(), time.Unix(to, 0).UTC())
		if err != nil {
			return nil, fmt.Errorf("collect transfer range: %w", err)
		}
		hashes = collected.Hashes
	}

	result := &DatasetResult{
		RunID:       uuid.NewString(),
		Token:       token,
		TotalHashes: len(hashes),
	}

	batchSize := p.opts.DatasetBatchSize
	for batch, offset := 0, 0; offset < len(hashes); batch, offset = batch+1, offset+batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Batches++

		if p.opts.Exporter.BatchExists(token, batch) {
			result.SkippedBatches++
			p.logger.Info("batch already exported",
				zap.String("run_id", result.RunID), zap.Int("batch", batch))
			continue
		}

		hi := offset + batchSize
		if hi > len(hashes) {
			hi = len(hashes)
		}

		txns := pipeline.Enrich(ctx, hashes[offset:hi], p.opts.DatasetConcurrency,
			p.enrichFunc(p.opts.DatasetClassifier, true), p.logger)
		if len(txns) == 0 {
			p.logger.Info("batch produced no trades",
				zap.String("run_id", result.RunID), zap.Int("batch", batch))
			continue
		}

		// Minute buckets are absolute-aligned, so clamping the build
		// range to the batch's own trades yields the same non-empty
		// windows as covering all of [from, to] would.
		winLo, winHi := timestampBounds(txns)
		if winLo < from {
			winLo = from
		}
		if winHi > to {
			winHi = to
		}
		windows := window.Build(txns, window.MinuteWidth, winLo, winHi)

		path, err := p.opts.Exporter.WriteBatch(token, batch, windows)
		if err != nil {
			return nil, fmt.Errorf("write batch %d: %w", batch, err)
		}
		result.Files = append(result.Files, path)

		p.logger.Info("batch exported",
			zap.String("run_id", result.RunID),
			zap.Int("batch", batch),
			zap.Int("txns", len(txns)),
			zap.String("file", path))
	}

	return result, nil
}

func timestampBounds(txns []model.ClassifiedTransaction) (int64, int64) {
	from, to := txns[0].Timestamp, txns[0].Timestamp
	for _, txn := range txns[1:] {
		if txn.Timestamp < from {
			from = txn.Timestamp
		}
		if txn.Timestamp > to {
			to = txn.Timestamp
		}
	}
	return from, to
}

func parseDateRange(fromDate, toDate string) (int64, int64, error) {
	from, err := time.ParseInLocation(dateLayout, fromDate, time.UTC)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad from date %q", ErrInvalidInput, fromDate)
	}
	to, err := time.ParseInLocation(dateLayout, toDate, time.UTC)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad to date %q", ErrInvalidInput, toDate)
	}
	if to.Before(from) {
		return 0, 0, fmt.Errorf("%w: to date %s precedes from date %s", ErrInvalidInput, toDate, fromDate)
	}
	// The range is inclusive of the final day.
	return from.Unix(), to.Add(24*time.Hour - time.Second).Unix(), nil
}
