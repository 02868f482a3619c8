package etl

import (
	"strconv"
	"strings"

	"bankcap/internal/config"
	"bankcap/internal/pipeline"
)

// TransformOptions controls currency derivation
type TransformOptions struct {
	BaseCurrency string   `json:"base_currency"`
	Currencies   []string `json:"currencies"`
	Divisor      float64  `json:"divisor"`
	Rounding     string   `json:"rounding"`
}

// TransformOptionsFromConfig builds transform options from the transform settings
func TransformOptionsFromConfig(cfg config.TransformConfig) TransformOptions {
	return TransformOptions{
		BaseCurrency: cfg.BaseCurrency,
		Currencies:   cfg.Currencies,
		Divisor:      cfg.Divisor,
		Rounding:     cfg.Rounding,
	}
}

// Transform parses each raw metric, rescales it into the base currency and derives
// the configured currencies. Output order and length equal the input's. Any bad
// metric or missing rate fails the whole batch.
func Transform(records []Record, rates RateTable, opts TransformOptions) ([]Record, error) {
	round, err := RounderFor(opts.Rounding)
	if err != nil {
		return nil, pipeline.NewValidationError(err.Error())
	}
	divisor := opts.Divisor
	if divisor <= 0 {
		divisor = 1
	}
	base := strings.ToUpper(opts.BaseCurrency)
	if base == "" {
		base = "USD"
	}

	multipliers := make([]float64, len(opts.Currencies))
	for i, c := range opts.Currencies {
		rate, err := rates.Rate(c)
		if err != nil {
			return nil, err
		}
		multipliers[i] = rate
	}

	out := make([]Record, len(records))
	for i, rec := range records {
		value, err := ParseMetric(rec.RawMetric)
		if err != nil {
			return nil, pipeline.NewMetricParseError(rec.Rank, rec.RawMetric, err)
		}

		baseValue := round(value / divisor)
		values := make(map[string]float64, len(opts.Currencies)+1)
		values[base] = baseValue
		for j, c := range opts.Currencies {
			values[strings.ToUpper(c)] = round(baseValue * multipliers[j])
		}

		out[i] = Record{
			Rank:      rec.Rank,
			Name:      rec.Name,
			RawMetric: rec.RawMetric,
			Values:    values,
		}
	}
	return out, nil
}

// ParseMetric parses a number that may contain thousands separators
func ParseMetric(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	return strconv.ParseFloat(cleaned, 64)
}
