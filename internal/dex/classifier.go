package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"tokenpulse/internal/model"
)

// PriceSource resolves a USD price for a reference asset at a timestamp.
type PriceSource interface {
	Resolve(ctx context.Context, asset string, timestamp int64, historical bool) float64
}

// Config holds the quote-asset allow-list and matching parameters.
type Config struct {
	WETH         common.Address
	WBTC         common.Address
	Stables      []common.Address
	TolerancePct float64
}

// Classifier turns transaction receipts into classified trades.
type Classifier struct {
	chain  ChainBackend
	pairs  *PairResolver
	tokens *TokenInfoCache
	prices PriceSource
	cfg    Config
	logger *zap.Logger

	stables       map[common.Address]struct{}
	excludedMulti map[common.Address]struct{}
}

// NewClassifier builds a classifier with its dependencies.
func NewClassifier(cfg Config, chainClient ChainBackend, pairs *PairResolver, tokens *TokenInfoCache, prices PriceSource, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TolerancePct == 0 {
		cfg.TolerancePct = 10
	}
	if tokens == nil {
		tokens = NewTokenInfoCache()
	}

	stables := make(map[common.Address]struct{}, len(cfg.Stables))
	excludedMulti := make(map[common.Address]struct{}, len(cfg.Stables)+2)
	for _, stable := range cfg.Stables {
		stables[stable] = struct{}{}
		excludedMulti[stable] = struct{}{}
	}
	excludedMulti[cfg.WETH] = struct{}{}
	excludedMulti[cfg.WBTC] = struct{}{}

	return &Classifier{
		chain:         chainClient,
		pairs:         pairs,
		tokens:        tokens,
		prices:        prices,
		cfg:           cfg,
		logger:        logger,
		stables:       stables,
		excludedMulti: excludedMulti,
	}
}

// Classify fetches the receipt for a transaction and classifies every swap
// it contains. A receipt that is not a swap, or cannot be matched, yields
// an empty result rather than an error.
func (c *Classifier) Classify(ctx context.Context, txHash common.Hash, historical bool) ([]model.ClassifiedTransaction, error) {
	receipt, err := c.chain.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("fetch receipt: %w", err)
	}
	return c.ClassifyReceipt(ctx, receipt, historical)
}

// ClassifyReceipt classifies an already-fetched receipt. A receipt routed
// through multiple pools yields one trade per valid pool pair.
func (c *Classifier) ClassifyReceipt(ctx context.Context, receipt *model.Receipt, historical bool) ([]model.ClassifiedTransaction, error) {
	if receipt == nil || !receipt.Succeeded() {
		return nil, nil
	}
	// A lone transfer log is a plain token transfer, not a swap.
	if len(receipt.Logs) == 1 && isTransferLog(&receipt.Logs[0]) {
		return nil, nil
	}
	if len(receipt.Logs) < 2 {
		return nil, nil
	}

	var swapLogs []*types.Log
	for i := range receipt.Logs {
		log := &receipt.Logs[i]
		if len(log.Topics) == 0 {
			continue
		}
		if log.Topics[0] == V2SwapTopic() || log.Topics[0] == V3SwapTopic() {
			swapLogs = append(swapLogs, log)
		}
	}
	if len(swapLogs) == 0 {
		return nil, nil
	}
	if len(swapLogs) > 1 {
		c.logger.Debug("multiple pools in receipt",
			zap.Int("pools", len(swapLogs)),
			zap.String("tx_hash", receipt.TxHash.Hex()))
	}

	var out []model.ClassifiedTransaction
	for _, swapLog := range swapLogs {
		pair, err := c.pairs.Resolve(ctx, swapLog.Address)
		if err != nil {
			c.logger.Debug("pair resolution failed",
				zap.String("pool", swapLog.Address.Hex()), zap.Error(err))
			continue
		}
		if !pair.Valid {
			continue
		}

		txn, err := c.classifyPool(ctx, receipt, swapLog, historical)
		if err != nil {
			c.logger.Debug("classification skipped",
				zap.String("tx_hash", receipt.TxHash.Hex()),
				zap.String("pool", swapLog.Address.Hex()),
				zap.Error(err))
			continue
		}
		if txn != nil {
			out = append(out, *txn)
		}
	}
	return out, nil
}

func (c *Classifier) classifyPool(ctx context.Context, receipt *model.Receipt, swapLog *types.Log, historical bool) (*model.ClassifiedTransaction, error) {
	var amounts SwapAmounts
	var err error
	switch swapLog.Topics[0] {
	case V3SwapTopic():
		amounts, err = DecodeV3Swap(swapLog.Data)
	case V2SwapTopic():
		amounts, err = DecodeV2Swap(swapLog.Data)
	default:
		return nil, fmt.Errorf("unsupported swap topic: %s", swapLog.Topics[0].Hex())
	}
	if err != nil {
		return nil, err
	}

	timestamp, err := c.chain.BlockTimestamp(ctx, receipt.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("block timestamp: %w", err)
	}

	ethTx := matchAssetTransfer(receipt.Logs, c.cfg.WETH, amounts)
	usdTx := firstStableTransfer(receipt.Logs, c.stables)

	// Counter-asset precedence: direct ETH trade, ETH+stable multi-hop,
	// BTC+stable multi-hop, stable-only trade.
	switch {
	case ethTx != nil && usdTx == nil:
		return c.buildTransaction(ctx, receipt, amounts, ethTx, nil, false, timestamp, historical)
	case ethTx != nil && usdTx != nil:
		return c.buildTransaction(ctx, receipt, amounts, ethTx, usdTx, true, timestamp, historical)
	}

	btcTx := matchAssetTransfer(receipt.Logs, c.cfg.WBTC, amounts)
	if btcTx != nil && usdTx != nil {
		return c.buildTransaction(ctx, receipt, amounts, btcTx, usdTx, true, timestamp, historical)
	}
	if usdTx != nil {
		return c.buildTransaction(ctx, receipt, amounts, nil, usdTx, true, timestamp, historical)
	}
	return nil, nil
}

// buildTransaction assembles the classified trade for one matched branch.
// referenceTx is the wrapped-ETH or wrapped-BTC leg when present; usdTx is
// the stable-asset leg, always the price basis when present.
func (c *Classifier) buildTransaction(
	ctx context.Context,
	receipt *model.Receipt,
	amounts SwapAmounts,
	referenceTx *TransferMatch,
	usdTx *TransferMatch,
	multiSwap bool,
	timestamp int64,
	historical bool,
) (*model.ClassifiedTransaction, error) {
	var counterValue *big.Int
	if referenceTx != nil {
		counterValue = referenceTx.Value
	} else if usdTx != nil {
		counterValue = usdTx.Value
	}

	excluded := map[common.Address]struct{}{c.cfg.WETH: {}}
	if multiSwap {
		excluded = c.excludedMulti
	}

	tokenTx := matchTokenTransfer(receipt, amounts, counterValue, excluded, multiSwap, c.cfg.TolerancePct)
	if tokenTx == nil {
		return nil, nil
	}

	tokenMeta, err := c.tokenInfo(ctx, tokenTx.Log.Address)
	if err != nil {
		return nil, err
	}

	usdAmount := 0.0
	if usdTx != nil {
		usdMeta, err := c.tokenInfo(ctx, usdTx.Log.Address)
		if err != nil {
			return nil, err
		}
		usdAmount = NormalizeAmount(usdTx.Value, usdMeta.Decimals)
	}

	ethPrice := c.prices.Resolve(ctx, "ETH", timestamp, historical)
	btcPrice := c.prices.Resolve(ctx, "BTC", timestamp, historical)

	ethAmount := 0.0
	if referenceTx != nil && referenceTx.Log.Address == c.cfg.WETH {
		ethAmount = NormalizeAmount(referenceTx.Value, 18)
	}

	tokenAmount := NormalizeAmount(tokenTx.Value, tokenMeta.Decimals)

	usdValue := usdAmount
	if usdValue == 0 {
		usdValue = ethAmount * ethPrice
	}

	tokenPrice := 0.0
	if tokenAmount > 0 {
		tokenPrice = usdValue / tokenAmount
	}

	// The stable leg drives direction when present; otherwise the
	// reference-asset leg does.
	primary := counterValue
	if usdTx != nil && usdTx.Value.Sign() > 0 {
		primary = usdTx.Value
	}

	txn := &model.ClassifiedTransaction{
		TxHash:        receipt.TxHash.Hex(),
		Side:          sideOf(amounts.Version, primary, amounts.Amount0),
		Token:         tokenTx.Log.Address.Hex(),
		Name:          tokenMeta.Name,
		Symbol:        tokenMeta.Symbol,
		Decimals:      tokenMeta.Decimals,
		TotalSupply:   tokenMeta.TotalSupply,
		TokenAmount:   tokenAmount,
		EthAmount:     ethAmount,
		USDValue:      usdValue,
		TokenPriceUSD: tokenPrice,
		BlockNumber:   receipt.BlockNumber,
		Timestamp:     timestamp,
		MultiSwap:     multiSwap,
		EthPrice:      ethPrice,
		BtcPrice:      btcPrice,
	}

	if reserves := c.fetchReserves(ctx, receipt.Logs, tokenMeta.Decimals); reserves != nil {
		txn.EthReserve = &reserves.Eth
		txn.TokenReserve = &reserves.Token
	}

	return txn, nil
}

func (c *Classifier) tokenInfo(ctx context.Context, token common.Address) (TokenInfo, error) {
	if info, ok := c.tokens.Get(token); ok {
		return info, nil
	}
	info, err := FetchTokenInfo(ctx, c.chain, token, c.logger)
	if err != nil {
		return TokenInfo{}, err
	}
	c.tokens.Set(token, info)
	return info, nil
}
