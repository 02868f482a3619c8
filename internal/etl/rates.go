package etl

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadRates reads an exchange rate table from a CSV file with a Currency,Rate header
func LoadRates(path string) (RateTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rates file: %w", err)
	}
	defer file.Close()

	rates, err := ParseRates(file)
	if err != nil {
		return nil, fmt.Errorf("rates file %s: %w", path, err)
	}
	return rates, nil
}

// ParseRates reads Currency,Rate rows. Columns are found by header name; rates must be positive.
func ParseRates(r io.Reader) (RateTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty rates file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	currencyCol, rateCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "currency":
			currencyCol = i
		case "rate":
			rateCol = i
		}
	}
	if currencyCol < 0 || rateCol < 0 {
		return nil, fmt.Errorf("header must contain Currency and Rate, got %v", header)
	}

	rates := make(RateTable)
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(row) <= currencyCol || len(row) <= rateCol {
			return nil, fmt.Errorf("line %d: expected at least %d fields", line, max(currencyCol, rateCol)+1)
		}

		currency := strings.ToUpper(strings.TrimSpace(row[currencyCol]))
		if currency == "" {
			return nil, fmt.Errorf("line %d: empty currency", line)
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(row[rateCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid rate %q for %s", line, row[rateCol], currency)
		}
		if rate <= 0 {
			return nil, fmt.Errorf("line %d: rate for %s must be positive", line, currency)
		}
		if _, dup := rates[currency]; dup {
			return nil, fmt.Errorf("line %d: duplicate currency %s", line, currency)
		}
		rates[currency] = rate
	}
	return rates, nil
}
