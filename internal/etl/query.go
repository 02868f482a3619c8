package etl

import (
	"context"
	"fmt"
	"strings"

	"bankcap/internal/storage"
)

// Query is a named read-only statement
type Query struct {
	Name string `json:"name"`
	SQL  string `json:"sql"`
}

// DefaultQueries returns the fixed report queries over table
func DefaultQueries(table, averageCurrency string) []Query {
	return []Query{
		{Name: "full_table", SQL: fmt.Sprintf("SELECT * FROM %s", table)},
		{Name: "average_" + strings.ToLower(averageCurrency), SQL: fmt.Sprintf("SELECT AVG(%s) FROM %s", ValueColumn(averageCurrency), table)},
		{Name: "top_names", SQL: fmt.Sprintf("SELECT %s FROM %s LIMIT 5", ColumnName, table)},
	}
}

// QueryResult is the outcome of one query. Error is set instead of rows when it failed.
type QueryResult struct {
	Name    string   `json:"name"`
	SQL     string   `json:"sql"`
	Columns []string `json:"columns,omitempty"`
	Rows    [][]any  `json:"rows,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// QueryRunner executes read-only statements against the tabular sink
type QueryRunner interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, query string) (*storage.QueryOutput, error)
}

// RunQueries executes every query in order. A failing query records its error and the
// rest still run; only an unreachable sink returns an error. note, when set, is called
// before each query.
func RunQueries(ctx context.Context, runner QueryRunner, queries []Query, note func(string)) ([]QueryResult, error) {
	if err := runner.Ping(ctx); err != nil {
		return nil, fmt.Errorf("open table sink: %w", err)
	}

	results := make([]QueryResult, 0, len(queries))
	for _, q := range queries {
		if note != nil {
			note(fmt.Sprintf("Running query %s", q.Name))
		}

		result := QueryResult{Name: q.Name, SQL: q.SQL}
		out, err := runner.Query(ctx, q.SQL)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Columns = out.Columns
			result.Rows = out.Rows
		}
		results = append(results, result)
	}
	return results, nil
}
