package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// DefaultSheetName is used when no sheet name is given
const DefaultSheetName = "Sheet1"

// XLSXWriter writes single-sheet Excel workbooks
type XLSXWriter struct {
	baseDir string
	logger  *slog.Logger
}

// NewXLSXWriter creates a writer that resolves relative paths against baseDir
func NewXLSXWriter(baseDir string, logger *slog.Logger) *XLSXWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXWriter{baseDir: baseDir, logger: logger}
}

// WriteXLSX replaces the workbook at filePath with one sheet holding headers and rows.
// Numeric cells keep their numeric type. The workbook is renamed into place.
func (w *XLSXWriter) WriteXLSX(filePath, sheet string, headers []string, rows [][]any) error {
	fullPath := w.ResolvePath(filePath)
	if sheet == "" {
		sheet = DefaultSheetName
	}

	w.logger.Info("Writing XLSX file",
		slog.String("file_path", filePath),
		slog.String("sheet", sheet),
		slog.Int("record_count", len(rows)))

	f := excelize.NewFile()
	defer f.Close()

	if sheet != DefaultSheetName {
		if err := f.SetSheetName(DefaultSheetName, sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i, err)
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	return replaceFile(fullPath, func(file *os.File) error {
		if err := f.Write(file); err != nil {
			return fmt.Errorf("failed to save workbook: %w", err)
		}
		return nil
	})
}

// ResolvePath returns the location a relative path is written to
func (w *XLSXWriter) ResolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.baseDir == "" {
		return filepath.Clean(filePath)
	}
	return filepath.Join(w.baseDir, filePath)
}

// ReadXLSX returns every row of a sheet as strings
func ReadXLSX(filePath, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}
