package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Local development keeps API keys in a .env file.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "tokenpulse",
		Short:        "DEX trade classifier and window aggregator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
	addCommonFlags(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "listen address")

	summaryCmd := &cobra.Command{
		Use:   "summary <token-address>",
		Short: "Print the trailing-hour summary for a token",
		Args:  cobra.ExactArgs(1),
		RunE:  runSummary,
	}
	addCommonFlags(summaryCmd)

	historicalCmd := &cobra.Command{
		Use:   "historical <token-address>",
		Short: "Print hourly windows over a date range",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistorical,
	}
	addCommonFlags(historicalCmd)
	historicalCmd.Flags().String("from", "", "range start date (YYYY-MM-DD)")
	historicalCmd.Flags().String("to", "", "range end date (YYYY-MM-DD)")
	historicalCmd.Flags().Int("page", 1, "result page")
	historicalCmd.Flags().Int("per-page", 10, "windows per page")

	datasetCmd := &cobra.Command{
		Use:   "dataset <token-address>",
		Short: "Generate window dataset CSVs from a hash export",
		Args:  cobra.ExactArgs(1),
		RunE:  runDataset,
	}
	addCommonFlags(datasetCmd)
	datasetCmd.Flags().String("from", "", "range start date (YYYY-MM-DD)")
	datasetCmd.Flags().String("to", "", "range end date (YYYY-MM-DD)")
	datasetCmd.Flags().String("hashes", "", "CSV file with a transaction_hash column")

	root.AddCommand(serveCmd, summaryCmd, historicalCmd, datasetCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Ethereum RPC URL")
	cmd.Flags().String("price-api", "", "live price API base URL")
	cmd.Flags().String("transfer-api", "", "transfer feed base URL")
	cmd.Flags().String("transfer-api-key", "", "transfer feed API key")
	cmd.Flags().Int("page-size", 100, "transfer feed page size")
	cmd.Flags().Int("max-recent-pages", 5, "max pages for recent collection")
	cmd.Flags().String("eth-minute-csv", "", "minute-resolution ETH price samples")
	cmd.Flags().String("eth-hourly-csv", "", "hourly ETH price samples")
	cmd.Flags().String("btc-hourly-csv", "", "hourly BTC price samples")
	cmd.Flags().Int64("price-cutoff", 0, "unix cutoff between sample tables and live prices")
	cmd.Flags().String("out-dir", "./data/datasets", "dataset output directory")
	cmd.Flags().String("pg-dsn", "", "optional Postgres DSN for window persistence")
	cmd.Flags().Float64("tolerance-pct", 10, "transfer match tolerance percent")
	cmd.Flags().Int("hourly-concurrency", 70, "workers for hourly summaries")
	cmd.Flags().Int("historical-concurrency", 60, "workers for historical summaries")
	cmd.Flags().Int("dataset-concurrency", 2000, "workers for dataset runs")
	cmd.Flags().Int("dataset-batch-size", 10000, "hashes per dataset batch")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func printJSON(value interface{}) error {
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
