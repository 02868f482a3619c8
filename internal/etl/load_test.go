package etl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankcap/internal/config"
	"bankcap/internal/exporter"
	"bankcap/internal/pipeline"
	"bankcap/internal/storage"
)

func transformedFixture(t *testing.T) []Record {
	t.Helper()
	records, err := ParseTable(readFixture(t, "banks.html"), bankSelector, DefaultColumns, config.DefaultPlaceholder)
	require.NoError(t, err)
	out, err := Transform(records, testRates, defaultTransformOptions())
	require.NoError(t, err)
	return out
}

func newTestLoader(t *testing.T, dir string) (*Loader, *storage.TableSink) {
	t.Helper()
	sink, err := storage.OpenTableSink(filepath.Join(dir, config.DefaultDBPath), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	cfg := config.Default()
	cfg.Load.XLSXPath = "Largest_banks.xlsx"
	opts := LoadOptionsFromConfig(cfg.Load, cfg.Transform)
	return NewLoader(exporter.NewCSVWriter(dir, nil), exporter.NewXLSXWriter(dir, nil), sink, opts, nil), sink
}

func TestLoaderWritesEverySink(t *testing.T) {
	dir := t.TempDir()
	loader, sink := newTestLoader(t, dir)
	ctx := context.Background()

	receipt, err := loader.Load(ctx, transformedFixture(t))
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.Rows)
	assert.Equal(t, config.DefaultTableName, receipt.Table)
	assert.Equal(t, []string{"Rank", "BankName", "MC_USD_Billion", "MC_GBP_Billion", "MC_EUR_Billion", "MC_INR_Billion"}, receipt.Columns)

	csvData, err := os.ReadFile(receipt.CSVPath)
	require.NoError(t, err)
	assert.Equal(t,
		"Rank,BankName,MC_USD_Billion,MC_GBP_Billion,MC_EUR_Billion,MC_INR_Billion\n"+
			"1,Bank A,1.00,0.79,0.93,83.10\n"+
			"3,Bank C,0.50,"+exporter.FormatCell(transformedFixture(t)[1].Values["GBP"])+","+
			exporter.FormatCell(transformedFixture(t)[1].Values["EUR"])+","+
			exporter.FormatCell(transformedFixture(t)[1].Values["INR"])+"\n",
		string(csvData))

	rows, err := exporter.ReadXLSX(receipt.XLSXPath, config.DefaultTableName)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	out, err := sink.Query(ctx, "SELECT Rank, BankName, MC_USD_Billion FROM Largest_banks")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), "Bank A", 1.0}, {int64(3), "Bank C", 0.5}}, out.Rows)
}

func TestLoaderIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	loader, sink := newTestLoader(t, dir)
	ctx := context.Background()
	records := transformedFixture(t)

	first, err := loader.Load(ctx, records)
	require.NoError(t, err)
	csv1, err := os.ReadFile(first.CSVPath)
	require.NoError(t, err)
	table1, err := sink.Query(ctx, "SELECT * FROM Largest_banks")
	require.NoError(t, err)

	second, err := loader.Load(ctx, records)
	require.NoError(t, err)
	csv2, err := os.ReadFile(second.CSVPath)
	require.NoError(t, err)
	table2, err := sink.Query(ctx, "SELECT * FROM Largest_banks")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, csv1, csv2)
	assert.Equal(t, table1, table2)
}

type failingTable struct{}

func (failingTable) Replace(ctx context.Context, table string, columns []storage.Column, rows [][]any) error {
	return errors.New("database is locked")
}

func TestLoaderSinkFailure(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	loader := NewLoader(exporter.NewCSVWriter(dir, nil), nil, failingTable{}, LoadOptionsFromConfig(cfg.Load, cfg.Transform), nil)

	_, err := loader.Load(context.Background(), transformedFixture(t))
	require.Error(t, err)
	assert.True(t, pipeline.IsType(err, pipeline.ErrorTypeSinkWrite))
	assert.Contains(t, err.Error(), "table")

	// the CSV written before the failing sink stays in place
	_, statErr := os.Stat(filepath.Join(dir, config.DefaultCSVPath))
	assert.NoError(t, statErr)
}

func TestLoaderRejectsRecordWithoutCurrency(t *testing.T) {
	cfg := config.Default()
	loader := NewLoader(nil, nil, nil, LoadOptionsFromConfig(cfg.Load, cfg.Transform), nil)

	_, err := loader.Load(context.Background(), []Record{{Rank: 1, Name: "A", Values: map[string]float64{"USD": 1}}})
	assert.True(t, pipeline.IsType(err, pipeline.ErrorTypeValidation))
}
