package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Mainnet addresses of the reference and quote assets.
const (
	DefaultWETH = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	DefaultWBTC = "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"
)

// DefaultStables are the accepted stable quote assets: DAI, USDT, USDC,
// TUSD, USDP.
var DefaultStables = []string{
	"0x6B175474E89094C44Da98b954EedeAC495271d0F",
	"0xdAC17F958D2ee523a2206206994597C13D831ec7",
	"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
	"0x0000000000085d4780B73119b644AE5ecd22b376",
	"0x8E870D67F660D95d5be530380D0eC0bd388289E1",
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL         string
	Listen         string
	PriceAPI       string
	TransferAPI    string
	TransferAPIKey string
	PageSize       int
	MaxRecentPages int

	EthMinuteCSV string
	EthHourlyCSV string
	BtcHourlyCSV string
	PriceCutoff  int64

	OutDir string
	PgDSN  string

	WETH    string
	WBTC    string
	Stables []string

	TolerancePct          float64
	HourlyConcurrency     int
	HistoricalConcurrency int
	DatasetConcurrency    int
	DatasetBatchSize      int

	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TOKENPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", ":8080")
	v.SetDefault("page-size", 100)
	v.SetDefault("max-recent-pages", 5)
	v.SetDefault("price-cutoff", int64(1751922000))
	v.SetDefault("out-dir", "./data/datasets")
	v.SetDefault("weth", DefaultWETH)
	v.SetDefault("wbtc", DefaultWBTC)
	v.SetDefault("stables", DefaultStables)
	v.SetDefault("tolerance-pct", 10.0)
	v.SetDefault("hourly-concurrency", 70)
	v.SetDefault("historical-concurrency", 60)
	v.SetDefault("dataset-concurrency", 2000)
	v.SetDefault("dataset-batch-size", 10000)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:         v.GetString("rpc"),
		Listen:         v.GetString("listen"),
		PriceAPI:       v.GetString("price-api"),
		TransferAPI:    v.GetString("transfer-api"),
		TransferAPIKey: v.GetString("transfer-api-key"),
		PageSize:       v.GetInt("page-size"),
		MaxRecentPages: v.GetInt("max-recent-pages"),

		EthMinuteCSV: v.GetString("eth-minute-csv"),
		EthHourlyCSV: v.GetString("eth-hourly-csv"),
		BtcHourlyCSV: v.GetString("btc-hourly-csv"),
		PriceCutoff:  v.GetInt64("price-cutoff"),

		OutDir: v.GetString("out-dir"),
		PgDSN:  v.GetString("pg-dsn"),

		WETH:    v.GetString("weth"),
		WBTC:    v.GetString("wbtc"),
		Stables: getStringSlice(v, "stables"),

		TolerancePct:          v.GetFloat64("tolerance-pct"),
		HourlyConcurrency:     v.GetInt("hourly-concurrency"),
		HistoricalConcurrency: v.GetInt("historical-concurrency"),
		DatasetConcurrency:    v.GetInt("dataset-concurrency"),
		DatasetBatchSize:      v.GetInt("dataset-batch-size"),

		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
