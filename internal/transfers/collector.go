package transfers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PageFetcher is the slice of Client the collector needs.
type PageFetcher interface {
	FetchPage(ctx context.Context, token, cursor string, from, to time.Time) (*Page, error)
}

// Result is the collected transaction set for one token.
type Result struct {
	// Hashes preserves feed order (newest first) with duplicates removed.
	// One hash can appear in several transfer rows of the same swap.
	Hashes []string
	// MostRecent is the timestamp of the newest transfer seen, zero when
	// the feed returned nothing.
	MostRecent time.Time
}

// Collector walks the transfer feed and extracts unique transaction
// hashes for classification.
type Collector struct {
	feed           PageFetcher
	maxRecentPages int
	pageSize       int
	recencyWindow  time.Duration
	maxRetries     int
	retryBackoff   time.Duration
	logger         *zap.Logger
}

func NewCollector(feed PageFetcher, maxRecentPages, pageSize int, logger *zap.Logger) *Collector {
	if maxRecentPages <= 0 {
		maxRecentPages = 5
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		feed:           feed,
		maxRecentPages: maxRecentPages,
		pageSize:       pageSize,
		recencyWindow:  time.Hour,
		maxRetries:     3,
		retryBackoff:   500 * time.Millisecond,
		logger:         logger,
	}
}

// Recent collects hashes from the newest feed pages. It keeps paging
// only while the oldest event on the current page is still inside the
// recency window, and never fetches more than maxRecentPages pages.
func (c *Collector) Recent(ctx context.Context, token string) (*Result, error) {
	result := &Result{}
	seen := make(map[string]struct{})
	cursor := ""

	for pageNum := 0; pageNum < c.maxRecentPages; pageNum++ {
		page, err := c.fetchPage(ctx, token, cursor, time.Time{}, time.Time{})
		if err != nil {
			return nil, err
		}
		if len(page.Result) == 0 {
			break
		}

		c.appendHashes(result, seen, page.Result)

		oldest, err := page.Result[len(page.Result)-1].Timestamp()
		if err != nil {
			c.logger.Warn("bad event timestamp", zap.String("token", token), zap.Error(err))
			break
		}
		if time.Since(oldest) > c.recencyWindow {
			break
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	c.logger.Info("recent transfers collected",
		zap.String("token", token),
		zap.Int("hashes", len(result.Hashes)))
	return result, nil
}

// Range collects every hash the feed reports between from and to,
// stopping on a short page or an exhausted cursor.
func (c *Collector) Range(ctx context.Context, token string, from, to time.Time) (*Result, error) {
	result := &Result{}
	seen := make(map[string]struct{})
	cursor := ""

	for {
		page, err := c.fetchPage(ctx, token, cursor, from, to)
		if err != nil {
			return nil, err
		}
		if len(page.Result) == 0 {
			break
		}

		c.appendHashes(result, seen, page.Result)

		if len(page.Result) < c.pageSize {
			break
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	c.logger.Info("transfer range collected",
		zap.String("token", token),
		zap.Int("hashes", len(result.Hashes)))
	return result, nil
}

func (c *Collector) fetchPage(ctx context.Context, token, cursor string, from, to time.Time) (*Page, error) {
	var page *Page
	err := withRetry(ctx, c.maxRetries, c.retryBackoff, func(ctx context.Context) error {
		var err error
		page, err = c.feed.FetchPage(ctx, token, cursor, from, to)
		if err != nil {
			c.logger.Warn("transfer page fetch failed", zap.String("token", token), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (c *Collector) appendHashes(result *Result, seen map[string]struct{}, events []TransferEvent) {
	for _, event := range events {
		if ts, err := event.Timestamp(); err == nil && ts.After(result.MostRecent) {
			result.MostRecent = ts
		}
		if _, ok := seen[event.TransactionHash]; ok {
			continue
		}
		seen[event.TransactionHash] = struct{}{}
		result.Hashes = append(result.Hashes, event.TransactionHash)
	}
}
