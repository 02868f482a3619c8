package etl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankcap/internal/config"
	"bankcap/internal/storage"
)

func TestDefaultQueries(t *testing.T) {
	assert.Equal(t, []Query{
		{Name: "full_table", SQL: "SELECT * FROM Largest_banks"},
		{Name: "average_gbp", SQL: "SELECT AVG(MC_GBP_Billion) FROM Largest_banks"},
		{Name: "top_names", SQL: "SELECT BankName FROM Largest_banks LIMIT 5"},
	}, DefaultQueries(config.DefaultTableName, "GBP"))
}

func TestRunQueriesCollectsErrors(t *testing.T) {
	dir := t.TempDir()
	loader, sink := newTestLoader(t, dir)
	ctx := context.Background()
	_, err := loader.Load(ctx, transformedFixture(t))
	require.NoError(t, err)

	queries := append(DefaultQueries(config.DefaultTableName, "GBP")[:1],
		Query{Name: "broken", SQL: "SELECT nope FROM Largest_banks"},
		Query{Name: "average_gbp", SQL: "SELECT AVG(MC_USD_Billion) FROM Largest_banks"},
	)

	var notes []string
	results, err := RunQueries(ctx, sink, queries, func(msg string) { notes = append(notes, msg) })
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Empty(t, results[0].Error)
	assert.Len(t, results[0].Rows, 2)
	assert.NotEmpty(t, results[1].Error)
	assert.Nil(t, results[1].Rows)
	assert.InDelta(t, 0.75, results[2].Rows[0][0], 1e-9)
	assert.Equal(t, []string{"Running query full_table", "Running query broken", "Running query average_gbp"}, notes)
}

type downRunner struct{}

func (downRunner) Ping(ctx context.Context) error { return errors.New("unable to open database file") }

func (downRunner) Query(ctx context.Context, q string) (*storage.QueryOutput, error) {
	return nil, errors.New("unreachable")
}

func TestRunQueriesFailsWhenSinkUnavailable(t *testing.T) {
	_, err := RunQueries(context.Background(), downRunner{}, DefaultQueries("t", "GBP"), nil)
	assert.ErrorContains(t, err, "open table sink")
}
