package price

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Historical price samples ship as CSV exports with a timestamp column
// named either "Open time" or "Datetime" and a "Close" price column.
// Timestamps may be unix seconds, unix milliseconds, or a datetime string.

type sampleAdder func(ts int64, price float64)

// LoadEthMinuteCSV loads minute-resolution ETH samples into the store.
func LoadEthMinuteCSV(store *Store, path string) error {
	return loadSamples(path, store.AddEthMinute)
}

// LoadEthHourlyCSV loads hourly ETH samples into the store.
func LoadEthHourlyCSV(store *Store, path string) error {
	return loadSamples(path, store.AddEthHourly)
}

// LoadBtcHourlyCSV loads hourly BTC samples into the store.
func LoadBtcHourlyCSV(store *Store, path string) error {
	return loadSamples(path, store.AddBtcHourly)
}

func loadSamples(path string, add sampleAdder) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open price file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read header %s: %w", path, err)
	}

	tsCol, closeCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "Open time", "Datetime":
			tsCol = i
		case "Close":
			closeCol = i
		}
	}
	if tsCol < 0 || closeCol < 0 {
		return fmt.Errorf("price file %s: missing timestamp or Close column", path)
	}

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read row %s: %w", path, err)
		}
		if tsCol >= len(record) || closeCol >= len(record) {
			continue
		}

		ts, err := parseTimestamp(record[tsCol])
		if err != nil {
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(record[closeCol]), 64)
		if err != nil {
			continue
		}
		add(ts, price)
		rows++
	}
	if rows == 0 {
		return fmt.Errorf("price file %s: no usable rows", path)
	}
	return nil
}

var datetimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02",
}

func parseTimestamp(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty timestamp")
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// Millisecond epochs are 13 digits for contemporary dates.
		if n > 1e12 {
			return n / 1000, nil
		}
		return n, nil
	}

	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized timestamp %q", raw)
}
