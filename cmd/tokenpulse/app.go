package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"tokenpulse/internal/chain"
	"tokenpulse/internal/config"
	"tokenpulse/internal/dataset"
	"tokenpulse/internal/dex"
	"tokenpulse/internal/price"
	"tokenpulse/internal/service"
	"tokenpulse/internal/storage/postgres"
	"tokenpulse/internal/transfers"
)

// app holds the wired dependency graph for one command invocation.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	chain     *chain.Client
	store     *postgres.Store
	processor *service.Processor
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.TransferAPI == "" {
		return nil, fmt.Errorf("transfer api url is required")
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	priceStore := price.NewStore()
	if cfg.EthMinuteCSV != "" {
		if err := price.LoadEthMinuteCSV(priceStore, cfg.EthMinuteCSV); err != nil {
			chainClient.Close()
			return nil, err
		}
	}
	if cfg.EthHourlyCSV != "" {
		if err := price.LoadEthHourlyCSV(priceStore, cfg.EthHourlyCSV); err != nil {
			chainClient.Close()
			return nil, err
		}
	}
	if cfg.BtcHourlyCSV != "" {
		if err := price.LoadBtcHourlyCSV(priceStore, cfg.BtcHourlyCSV); err != nil {
			chainClient.Close()
			return nil, err
		}
	}

	live := price.NewLiveClient(cfg.PriceAPI, logger)
	resolver := price.NewResolver(priceStore, live, cfg.PriceCutoff, logger)

	weth := common.HexToAddress(cfg.WETH)
	wbtc := common.HexToAddress(cfg.WBTC)
	stables := make([]common.Address, 0, len(cfg.Stables))
	for _, raw := range cfg.Stables {
		stables = append(stables, common.HexToAddress(raw))
	}

	// Every quote asset ends a valid pair: the reference assets plus
	// the stables.
	quotes := append([]common.Address{weth, wbtc}, stables...)
	pairs := dex.NewPairResolver(chainClient, quotes, logger)
	tokens := dex.NewTokenInfoCache()

	classifierCfg := dex.Config{
		WETH:         weth,
		WBTC:         wbtc,
		Stables:      stables,
		TolerancePct: cfg.TolerancePct,
	}
	classifier := dex.NewClassifier(classifierCfg, chainClient, pairs, tokens, resolver, logger)
	datasetClassifier := dex.NewClassifier(classifierCfg, chainClient, pairs, tokens,
		price.MinuteSource{Resolver: resolver}, logger)

	feed := transfers.NewClient(cfg.TransferAPI, cfg.TransferAPIKey, cfg.PageSize)
	collector := transfers.NewCollector(feed, cfg.MaxRecentPages, cfg.PageSize, logger)

	var store *postgres.Store
	if cfg.PgDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			chainClient.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
	}

	processor, err := service.NewProcessor(service.Options{
		Collector:             collector,
		Classifier:            classifier,
		DatasetClassifier:     datasetClassifier,
		Exporter:              dataset.NewExporter(cfg.OutDir),
		Store:                 store,
		Logger:                logger,
		HourlyConcurrency:     cfg.HourlyConcurrency,
		HistoricalConcurrency: cfg.HistoricalConcurrency,
		DatasetConcurrency:    cfg.DatasetConcurrency,
		DatasetBatchSize:      cfg.DatasetBatchSize,
	})
	if err != nil {
		chainClient.Close()
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		chain:     chainClient,
		store:     store,
		processor: processor,
	}, nil
}

func (a *app) Close() {
	if a.chain != nil {
		a.chain.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
