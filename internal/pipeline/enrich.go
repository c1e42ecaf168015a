package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"tokenpulse/internal/model"
)

// EnrichFunc classifies one transaction hash. An error or an empty
// result means the hash contributed no trades.
type EnrichFunc func(ctx context.Context, txHash string) ([]model.ClassifiedTransaction, error)

// Enrich runs fn over hashes with at most concurrency workers. The
// flattened output preserves input order regardless of which worker
// finished first, and one failing hash never aborts the batch.
func Enrich(ctx context.Context, hashes []string, concurrency int, fn EnrichFunc, logger *zap.Logger) []model.ClassifiedTransaction {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(hashes) == 0 {
		return nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > len(hashes) {
		concurrency = len(hashes)
	}

	slots := make([][]model.ClassifiedTransaction, len(hashes))
	var cursor atomic.Int64
	var failed atomic.Int64

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				idx := int(cursor.Add(1)) - 1
				if idx >= len(hashes) {
					return
				}
				if ctx.Err() != nil {
					return
				}

				txns, err := runOne(ctx, hashes[idx], fn)
				if err != nil {
					failed.Add(1)
					logger.Debug("enrichment failed",
						zap.String("tx_hash", hashes[idx]), zap.Error(err))
					continue
				}
				slots[idx] = txns
			}
		}()
	}
	wg.Wait()

	var out []model.ClassifiedTransaction
	for _, txns := range slots {
		out = append(out, txns...)
	}

	logger.Info("enrichment complete",
		zap.Int("hashes", len(hashes)),
		zap.Int("classified", len(out)),
		zap.Int64("failed", failed.Load()))
	return out
}

// runOne isolates a panicking classifier to the hash that triggered it.
func runOne(ctx context.Context, txHash string, fn EnrichFunc) (txns []model.ClassifiedTransaction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classify %s panicked: %v", txHash, r)
		}
	}()
	return fn(ctx, txHash)
}
