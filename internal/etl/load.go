package etl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bankcap/internal/config"
	"bankcap/internal/exporter"
	"bankcap/internal/pipeline"
	"bankcap/internal/storage"
)

// Fixed leading columns of every sink
const (
	ColumnRank = "Rank"
	ColumnName = "BankName"
)

// TableWriter replaces a whole table in the tabular sink
type TableWriter interface {
	Replace(ctx context.Context, table string, columns []storage.Column, rows [][]any) error
}

// LoadOptions names the sinks and the currency columns
type LoadOptions struct {
	CSVPath      string   `json:"csv_path"`
	XLSXPath     string   `json:"xlsx_path,omitempty"`
	Table        string   `json:"table"`
	BaseCurrency string   `json:"base_currency"`
	Currencies   []string `json:"currencies"`
}

// LoadOptionsFromConfig builds load options from the load and transform settings
func LoadOptionsFromConfig(load config.LoadConfig, transform config.TransformConfig) LoadOptions {
	return LoadOptions{
		CSVPath:      load.CSVPath,
		XLSXPath:     load.XLSXPath,
		Table:        load.Table,
		BaseCurrency: transform.BaseCurrency,
		Currencies:   transform.Currencies,
	}
}

// currencies returns the base currency followed by the derived ones
func (o LoadOptions) currencies() []string {
	out := []string{strings.ToUpper(o.BaseCurrency)}
	for _, c := range o.Currencies {
		out = append(out, strings.ToUpper(c))
	}
	return out
}

// Headers returns the column names written to every sink
func (o LoadOptions) Headers() []string {
	headers := []string{ColumnRank, ColumnName}
	for _, c := range o.currencies() {
		headers = append(headers, ValueColumn(c))
	}
	return headers
}

// LoadReceipt describes what the load stage wrote
type LoadReceipt struct {
	CSVPath  string   `json:"csv_path"`
	XLSXPath string   `json:"xlsx_path,omitempty"`
	Table    string   `json:"table"`
	Rows     int      `json:"rows"`
	Columns  []string `json:"columns"`
}

// Loader writes transformed records to the file sinks and the table sink
type Loader struct {
	csv    *exporter.CSVWriter
	xlsx   *exporter.XLSXWriter
	table  TableWriter
	opts   LoadOptions
	logger *slog.Logger
}

// NewLoader creates a loader. xlsx may be nil to skip the workbook.
func NewLoader(csv *exporter.CSVWriter, xlsx *exporter.XLSXWriter, table TableWriter, opts LoadOptions, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		csv:    csv,
		xlsx:   xlsx,
		table:  table,
		opts:   opts,
		logger: logger.With(slog.String("component", "loader")),
	}
}

// Options returns the loader settings
func (l *Loader) Options() LoadOptions {
	return l.opts
}

// Rows converts records into table rows in rank order as received
func (l *Loader) Rows(records []Record) ([][]any, error) {
	currencies := l.opts.currencies()
	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, 0, len(currencies)+2)
		row = append(row, rec.Rank, rec.Name)
		for _, c := range currencies {
			v, ok := rec.Values[c]
			if !ok {
				return nil, pipeline.NewValidationError(fmt.Sprintf("rank %d has no %s value", rec.Rank, c))
			}
			row = append(row, v)
		}
		rows[i] = row
	}
	return rows, nil
}

// Load overwrites the CSV file, the optional workbook and the table.
// A failing sink stops the load; sinks written before it are left as written.
func (l *Loader) Load(ctx context.Context, records []Record) (LoadReceipt, error) {
	rows, err := l.Rows(records)
	if err != nil {
		return LoadReceipt{}, err
	}
	headers := l.opts.Headers()

	receipt := LoadReceipt{
		Table:   l.opts.Table,
		Rows:    len(rows),
		Columns: headers,
	}

	if l.csv != nil && l.opts.CSVPath != "" {
		if err := l.csv.WriteCSV(l.opts.CSVPath, exporter.WriteOptions{
			Headers: headers,
			Records: exporter.FormatRows(rows),
		}); err != nil {
			return LoadReceipt{}, pipeline.NewSinkWriteError("csv", err)
		}
		receipt.CSVPath = l.csv.ResolvePath(l.opts.CSVPath)
	}

	if l.xlsx != nil && l.opts.XLSXPath != "" {
		if err := l.xlsx.WriteXLSX(l.opts.XLSXPath, l.opts.Table, headers, rows); err != nil {
			return LoadReceipt{}, pipeline.NewSinkWriteError("xlsx", err)
		}
		receipt.XLSXPath = l.xlsx.ResolvePath(l.opts.XLSXPath)
	}

	if l.table != nil {
		columns := make([]storage.Column, len(headers))
		columns[0] = storage.Column{Name: ColumnRank, Type: storage.TypeInteger}
		columns[1] = storage.Column{Name: ColumnName, Type: storage.TypeText}
		for i := 2; i < len(headers); i++ {
			columns[i] = storage.Column{Name: headers[i], Type: storage.TypeReal}
		}
		if err := l.table.Replace(ctx, l.opts.Table, columns, rows); err != nil {
			return LoadReceipt{}, pipeline.NewSinkWriteError("table", err)
		}
	}

	l.logger.InfoContext(ctx, "load_complete",
		slog.String("csv_path", receipt.CSVPath),
		slog.String("xlsx_path", receipt.XLSXPath),
		slog.String("table", receipt.Table),
		slog.Int("rows", receipt.Rows))
	return receipt, nil
}
