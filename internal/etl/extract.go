package etl

import (
	"context"
	"time"

	"bankcap/internal/config"
)

// ExtractOptions locates and filters the source table
type ExtractOptions struct {
	Selector    Selector `json:"selector"`
	Columns     Columns  `json:"columns"`
	Placeholder string   `json:"placeholder"`
}

// ExtractOptionsFromConfig builds extract options from the source settings
func ExtractOptionsFromConfig(cfg config.SourceConfig) ExtractOptions {
	return ExtractOptions{
		Selector:    Selector{Tag: cfg.TableTag, Class: cfg.TableClass},
		Columns:     Columns{Rank: cfg.RankColumn, Name: cfg.NameColumn, Metric: cfg.MetricColumn},
		Placeholder: cfg.Placeholder,
	}
}

// Crawl fetches the source document
func Crawl(ctx context.Context, fetcher Fetcher, url string) (Page, error) {
	body, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return Page{}, err
	}
	return Page{URL: url, Body: string(body), FetchedAt: time.Now().UTC()}, nil
}

// ExtractPage parses the records out of an already fetched page
func ExtractPage(page Page, opts ExtractOptions) ([]Record, error) {
	return ParseTable([]byte(page.Body), opts.Selector, opts.Columns, opts.Placeholder)
}

// Extract fetches url and parses its table in one step
func Extract(ctx context.Context, fetcher Fetcher, url string, opts ExtractOptions) ([]Record, error) {
	page, err := Crawl(ctx, fetcher, url)
	if err != nil {
		return nil, err
	}
	return ExtractPage(page, opts)
}
