package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tokenpulse/internal/model"
)

// Header is the dataset CSV column order. Consumers depend on it, so it
// never changes shape between runs.
var Header = []string{
	"minStartUTC",
	"minEndUTC",
	"startBlock",
	"endBlock",
	"totalTxns",
	"buyCount",
	"sellCount",
	"activeAddressCount",
	"lastTokenPrice",
	"latestTokenPrice",
	"avgTokenPrice",
	"tokenVolume",
	"tokenVolumeUSD",
	"ethPrice",
	"btcPrice",
}

const timeLayout = "2006-01-02 15:04:05"

// Exporter writes window batches as CSV files under a per-token
// directory.
type Exporter struct {
	outDir string
}

func NewExporter(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// BatchPath returns the file path for a token's batch.
func (e *Exporter) BatchPath(token string, batch int) string {
	return filepath.Join(e.outDir, strings.ToLower(token), fmt.Sprintf("batch_%d.csv", batch))
}

// BatchExists reports whether a batch file was already written, so reruns
// can skip completed batches.
func (e *Exporter) BatchExists(token string, batch int) bool {
	info, err := os.Stat(e.BatchPath(token, batch))
	return err == nil && !info.IsDir()
}

// WriteBatch writes one batch of windows. Empty windows are dropped.
func (e *Exporter) WriteBatch(token string, batch int, windows []model.Window) (string, error) {
	path := e.BatchPath(token, batch)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dataset dir: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create batch file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(Header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	for _, win := range windows {
		if win.TotalTxns == 0 {
			continue
		}
		if err := writer.Write(row(win)); err != nil {
			return "", fmt.Errorf("write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("flush batch file: %w", err)
	}
	return path, nil
}

func row(win model.Window) []string {
	return []string{
		win.StartTime().Format(timeLayout),
		win.EndTime().Format(timeLayout),
		strconv.FormatUint(win.StartBlock, 10),
		strconv.FormatUint(win.EndBlock, 10),
		strconv.Itoa(win.TotalTxns),
		strconv.Itoa(win.BuyCount),
		strconv.Itoa(win.SellCount),
		strconv.Itoa(win.ActiveAddressCount),
		formatPrice(win.LastTokenPrice),
		formatPrice(win.LatestTokenPrice),
		formatPrice(win.AvgTokenPrice),
		fmt.Sprintf("%.2f", win.TokenVolume),
		fmt.Sprintf("%.2f", win.TokenVolumeUSD),
		formatRefPrice(win.EthPrice),
		formatRefPrice(win.BtcPrice),
	}
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}

// formatRefPrice renders a reference-asset price, with N/A standing in
// when no price could be resolved.
func formatRefPrice(price float64) string {
	if price == 0 {
		return "N/A"
	}
	return strconv.FormatFloat(price, 'f', -1, 64)
}

// LoadHashesCSV reads transaction hashes from a CSV export with a
// transaction_hash column, deduplicated in file order.
func LoadHashesCSV(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hashes file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}

	hashCol := -1
	for i, name := range header {
		if strings.TrimSpace(name) == "transaction_hash" {
			hashCol = i
			break
		}
	}
	if hashCol < 0 {
		return nil, fmt.Errorf("hashes file %s: missing transaction_hash column", path)
	}

	var hashes []string
	seen := make(map[string]struct{})
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %s: %w", path, err)
		}
		if hashCol >= len(record) {
			continue
		}
		hash := strings.TrimSpace(record[hashCol])
		if hash == "" {
			continue
		}
		if _, ok := seen[hash]; ok {
			continue
		}
		seen[hash] = struct{}{}
		hashes = append(hashes, hash)
	}
	return hashes, nil
}
