// Package exporter writes tabular pipeline output to files.
//
// CSVWriter: full-overwrite CSV files, optionally prefixed with a UTF-8 BOM
// for Excel compatibility.
//
// XLSXWriter: single-sheet Excel workbooks built with excelize.
//
// Example usage:
//
//	w := exporter.NewCSVWriter("data", logger)
//	err := w.WriteCSV("Largest_banks_data.csv", exporter.WriteOptions{
//		Headers: []string{"Rank", "BankName", "MC_USD_Billion"},
//		Records: [][]string{{"1", "Bank A", "1.00"}},
//	})
package exporter
