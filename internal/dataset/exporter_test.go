package dataset

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tokenpulse/internal/model"
)

func sampleWindow(start int64) model.Window {
	return model.Window{
		Start:              start,
		End:                start + 3600,
		StartBlock:         18000000,
		EndBlock:           18000120,
		TotalTxns:          3,
		BuyCount:           2,
		SellCount:          1,
		ActiveAddressCount: 3,
		LastTokenPrice:     1.25,
		LatestTokenPrice:   1.5,
		AvgTokenPrice:      1.375,
		TokenVolume:        1234.5678,
		TokenVolumeUSD:     987.6543,
		EthPrice:           1850.5,
		BtcPrice:           0,
	}
}

func TestWriteBatchColumnOrder(t *testing.T) {
	exporter := NewExporter(t.TempDir())

	path, err := exporter.WriteBatch("0xToken", 0, []model.Window{sampleWindow(1700000000 - 1700000000%3600)})
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, Header, rows[0])

	row := rows[1]
	require.Equal(t, "2023-11-14 22:00:00", row[0])
	require.Equal(t, "2023-11-14 23:00:00", row[1])
	require.Equal(t, "18000000", row[2])
	require.Equal(t, "18000120", row[3])
	require.Equal(t, "3", row[4])
	require.Equal(t, "2", row[5])
	require.Equal(t, "1", row[6])
	require.Equal(t, "3", row[7])
	require.Equal(t, "1.25", row[8])
	require.Equal(t, "1.5", row[9])
	require.Equal(t, "1.375", row[10])
	require.Equal(t, "1234.57", row[11])
	require.Equal(t, "987.65", row[12])
	require.Equal(t, "1850.5", row[13])
	// Missing reference price renders as N/A, not zero.
	require.Equal(t, "N/A", row[14])
}

func TestWriteBatchDropsEmptyWindows(t *testing.T) {
	exporter := NewExporter(t.TempDir())

	empty := model.Window{Start: 1700000000, End: 1700003600}
	path, err := exporter.WriteBatch("0xToken", 1, []model.Window{empty, sampleWindow(1700003600)})
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestBatchExists(t *testing.T) {
	exporter := NewExporter(t.TempDir())

	require.False(t, exporter.BatchExists("0xToken", 0))
	_, err := exporter.WriteBatch("0xToken", 0, []model.Window{sampleWindow(1700000000)})
	require.NoError(t, err)
	require.True(t, exporter.BatchExists("0xToken", 0))
	// Address casing does not split the output directory.
	require.True(t, exporter.BatchExists("0xTOKEN", 0))
}

func TestLoadHashesCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hashes.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"block_timestamp,transaction_hash\n"+
			"2023-11-14T22:00:00Z,0xaaa\n"+
			"2023-11-14T22:01:00Z,0xbbb\n"+
			"2023-11-14T22:02:00Z,0xaaa\n"+
			"2023-11-14T22:03:00Z,\n"), 0o644))

	hashes, err := LoadHashesCSV(path)
	require.NoError(t, err)
	require.Equal(t, []string{"0xaaa", "0xbbb"}, hashes)

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("foo,bar\n1,2\n"), 0o644))
	_, err = LoadHashesCSV(bad)
	require.Error(t, err)
}
