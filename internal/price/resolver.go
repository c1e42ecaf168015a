package price

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DefaultCutoff is the unix timestamp separating the historical sample
// tables from the live API. Trades at or after the cutoff are priced live.
const DefaultCutoff int64 = 1751922000

// Resolver answers price queries for the reference assets. At or below
// the cutoff it reads the loaded sample tables, falling back to the
// live API when no sample covers the timestamp; after the cutoff it
// goes straight to the live API. A failed live lookup resolves to zero
// so that callers can degrade instead of aborting.
type Resolver struct {
	store  *Store
	live   *LiveClient
	cutoff int64
	logger *zap.Logger

	mu   sync.Mutex
	memo map[string]float64
}

func NewResolver(store *Store, live *LiveClient, cutoff int64, logger *zap.Logger) *Resolver {
	if cutoff == 0 {
		cutoff = DefaultCutoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		store:  store,
		live:   live,
		cutoff: cutoff,
		logger: logger,
		memo:   make(map[string]float64),
	}
}

// Resolve returns the USD price of "ETH" or "BTC" at the given
// timestamp. Historical runs memoize per asset and hour so the same
// bucket is never resolved twice.
func (r *Resolver) Resolve(ctx context.Context, asset string, timestamp int64, historical bool) float64 {
	var memoKey string
	if historical {
		memoKey = fmt.Sprintf("%s-%d", asset, hourFloor(timestamp))
		r.mu.Lock()
		if price, ok := r.memo[memoKey]; ok {
			r.mu.Unlock()
			return price
		}
		r.mu.Unlock()
	}

	price := r.resolve(ctx, asset, timestamp)

	if historical {
		r.mu.Lock()
		r.memo[memoKey] = price
		r.mu.Unlock()
	}
	return price
}

func (r *Resolver) resolve(ctx context.Context, asset string, timestamp int64) float64 {
	if timestamp <= r.cutoff {
		var price float64
		var ok bool
		switch asset {
		case "ETH":
			price, ok = r.store.EthHourly(timestamp)
		case "BTC":
			price, ok = r.store.BtcHourly(timestamp)
		}
		if ok {
			return price
		}
		r.logger.Warn("no historical price sample, using live price",
			zap.String("asset", asset), zap.Int64("timestamp", timestamp))
	}
	return r.resolveLive(ctx, asset)
}

func (r *Resolver) resolveLive(ctx context.Context, asset string) float64 {
	if r.live == nil {
		return 0
	}

	var price float64
	var err error
	switch asset {
	case "ETH":
		price, err = r.live.EthUSD(ctx)
	case "BTC":
		price, err = r.live.BtcUSD(ctx)
	default:
		err = fmt.Errorf("unknown asset %q", asset)
	}
	if err != nil {
		r.logger.Warn("live price unavailable", zap.String("asset", asset), zap.Error(err))
		return 0
	}
	return price
}

// MinuteSource resolves ETH at minute precision and everything else
// through the hourly tables. Dataset runs use it in place of the plain
// resolver.
type MinuteSource struct {
	Resolver *Resolver
}

func (m MinuteSource) Resolve(ctx context.Context, asset string, timestamp int64, historical bool) float64 {
	if asset == "ETH" {
		return m.Resolver.ResolveEthMinute(ctx, timestamp)
	}
	return m.Resolver.Resolve(ctx, asset, timestamp, historical)
}

// ResolveEthMinute returns the minute-resolution ETH price nearest the
// timestamp, falling back to the hourly table and then to the live API.
func (r *Resolver) ResolveEthMinute(ctx context.Context, timestamp int64) float64 {
	if timestamp <= r.cutoff {
		if price, ok := r.store.EthMinuteNearest(timestamp); ok {
			return price
		}
		if price, ok := r.store.EthHourly(timestamp); ok {
			return price
		}
		r.logger.Warn("no minute price sample, using live price",
			zap.Int64("timestamp", timestamp))
	}
	return r.resolveLive(ctx, "ETH")
}
