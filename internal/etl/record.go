package etl

import (
	"strings"
	"time"

	"bankcap/internal/pipeline"
)

// Page is a fetched source document
type Page struct {
	URL       string    `json:"url"`
	Body      string    `json:"body"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Record is one ranked bank row. Values are keyed by currency code and rounded to 2 decimals.
type Record struct {
	Rank      int                `json:"rank"`
	Name      string             `json:"name"`
	RawMetric string             `json:"raw_metric,omitempty"`
	Values    map[string]float64 `json:"values,omitempty"`
}

// RateTable maps a currency code to its multiplier against the base currency
type RateTable map[string]float64

// Rate returns the multiplier of a currency
func (t RateTable) Rate(currency string) (float64, error) {
	rate, ok := t[strings.ToUpper(currency)]
	if !ok {
		return 0, pipeline.NewMissingRateError(currency)
	}
	return rate, nil
}

// ValueColumn names the column holding a currency value, e.g. MC_GBP_Billion
func ValueColumn(currency string) string {
	return "MC_" + strings.ToUpper(currency) + "_Billion"
}
