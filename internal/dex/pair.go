package dex

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// PairTokens is the base/quote resolution of a pool. Valid is false when
// the pool holds two quote-class assets, or none.
type PairTokens struct {
	Pool  common.Address
	Base  common.Address
	Quote common.Address
	Valid bool
}

// PairResolver resolves and caches pool base/quote token pairs.
type PairResolver struct {
	chain  ChainBackend
	quotes map[common.Address]struct{}
	logger *zap.Logger

	mu     sync.RWMutex
	cache  map[common.Address]PairTokens
	tokens map[common.Address][2]common.Address
}

// NewPairResolver builds a resolver over the quote-asset allow-list.
func NewPairResolver(chainClient ChainBackend, quotes []common.Address, logger *zap.Logger) *PairResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	quoteSet := make(map[common.Address]struct{}, len(quotes))
	for _, quote := range quotes {
		quoteSet[quote] = struct{}{}
	}
	return &PairResolver{
		chain:  chainClient,
		quotes: quoteSet,
		logger: logger,
		cache:  make(map[common.Address]PairTokens),
		tokens: make(map[common.Address][2]common.Address),
	}
}

// Resolve returns the base/quote pair for a pool, consulting the cache
// first. The token0/token1 accessors are shared by both pool versions.
func (r *PairResolver) Resolve(ctx context.Context, pool common.Address) (PairTokens, error) {
	r.mu.RLock()
	pair, ok := r.cache[pool]
	r.mu.RUnlock()
	if ok {
		return pair, nil
	}

	token0, token1, err := r.poolTokens(ctx, pool)
	if err != nil {
		return PairTokens{}, err
	}

	pair = r.classify(pool, token0, token1)

	r.mu.Lock()
	r.cache[pool] = pair
	r.mu.Unlock()

	return pair, nil
}

func (r *PairResolver) classify(pool, token0, token1 common.Address) PairTokens {
	_, quote0 := r.quotes[token0]
	_, quote1 := r.quotes[token1]

	switch {
	case quote0 && quote1:
		r.logger.Warn("pool holds two quote assets", zap.String("pool", pool.Hex()))
		return PairTokens{Pool: pool}
	case quote0:
		return PairTokens{Pool: pool, Base: token1, Quote: token0, Valid: true}
	case quote1:
		return PairTokens{Pool: pool, Base: token0, Quote: token1, Valid: true}
	default:
		r.logger.Warn("pool holds no quote asset", zap.String("pool", pool.Hex()))
		return PairTokens{Pool: pool}
	}
}

// poolTokens returns the raw token0/token1 of a pool, cached. Both pool
// versions expose the same accessors.
func (r *PairResolver) poolTokens(ctx context.Context, pool common.Address) (common.Address, common.Address, error) {
	r.mu.RLock()
	pair, ok := r.tokens[pool]
	r.mu.RUnlock()
	if ok {
		return pair[0], pair[1], nil
	}

	poolABI, err := V2PoolABI()
	if err != nil {
		return common.Address{}, common.Address{}, err
	}

	token0, err := r.callTokenMethod(ctx, pool, poolABI, "token0")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token1, err := r.callTokenMethod(ctx, pool, poolABI, "token1")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}

	r.mu.Lock()
	r.tokens[pool] = [2]common.Address{token0, token1}
	r.mu.Unlock()

	return token0, token1, nil
}

func (r *PairResolver) callTokenMethod(ctx context.Context, pool common.Address, poolABI abi.ABI, method string) (common.Address, error) {
	data, err := poolABI.Pack(method)
	if err != nil {
		return common.Address{}, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &pool, Data: data}
	resp, err := r.chain.CallContract(ctx, msg, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := poolABI.Unpack(method, resp)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return common.Address{}, fmt.Errorf("unexpected %s values: %d", method, len(values))
	}
	return asAddress(values[0])
}

// Seed primes the pair cache, used by tests and warm starts.
func (r *PairResolver) Seed(pool common.Address, pair PairTokens) {
	r.mu.Lock()
	r.cache[pool] = pair
	r.mu.Unlock()
}

// SeedTokens primes the raw token cache.
func (r *PairResolver) SeedTokens(pool, token0, token1 common.Address) {
	r.mu.Lock()
	r.tokens[pool] = [2]common.Address{token0, token1}
	r.mu.Unlock()
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
