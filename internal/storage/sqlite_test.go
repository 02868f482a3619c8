package storage_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankcap/internal/storage"
)

var bankColumns = []storage.Column{
	{Name: "Rank", Type: storage.TypeInteger},
	{Name: "BankName", Type: storage.TypeText},
	{Name: "MC_USD_Billion", Type: storage.TypeReal},
	{Name: "MC_GBP_Billion", Type: storage.TypeReal},
}

func openSink(t *testing.T) *storage.TableSink {
	t.Helper()
	sink, err := storage.OpenTableSink(filepath.Join(t.TempDir(), "db", "Banks.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })
	return sink
}

func TestReplaceAndQuery(t *testing.T) {
	ctx := context.Background()
	sink := openSink(t)

	rows := [][]any{
		{1, "Bank A", 1.0, 0.79},
		{3, "Bank C", 0.5, 0.4},
	}
	require.NoError(t, sink.Replace(ctx, "Largest_banks", bankColumns, rows))

	out, err := sink.Query(ctx, "SELECT * FROM Largest_banks")
	require.NoError(t, err)
	assert.Equal(t, []string{"Rank", "BankName", "MC_USD_Billion", "MC_GBP_Billion"}, out.Columns)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, []any{int64(1), "Bank A", 1.0, 0.79}, out.Rows[0])

	avg, err := sink.Query(ctx, "SELECT AVG(MC_GBP_Billion) FROM Largest_banks")
	require.NoError(t, err)
	require.Len(t, avg.Rows, 1)
	assert.InDelta(t, 0.595, avg.Rows[0][0], 1e-9)
}

func TestReplaceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	sink := openSink(t)
	rows := [][]any{{1, "Bank A", 1.0, 0.79}}

	require.NoError(t, sink.Replace(ctx, "Largest_banks", bankColumns, rows))
	first, err := sink.Query(ctx, "SELECT * FROM Largest_banks")
	require.NoError(t, err)

	require.NoError(t, sink.Replace(ctx, "Largest_banks", bankColumns, rows))
	second, err := sink.Query(ctx, "SELECT * FROM Largest_banks")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestReplaceDropsPreviousSchema(t *testing.T) {
	ctx := context.Background()
	sink := openSink(t)

	require.NoError(t, sink.Replace(ctx, "Largest_banks", []storage.Column{{Name: "Old", Type: storage.TypeText}}, [][]any{{"x"}, {"y"}}))
	require.NoError(t, sink.Replace(ctx, "Largest_banks", bankColumns, nil))

	out, err := sink.Query(ctx, "SELECT * FROM Largest_banks")
	require.NoError(t, err)
	assert.Equal(t, []string{"Rank", "BankName", "MC_USD_Billion", "MC_GBP_Billion"}, out.Columns)
	assert.Empty(t, out.Rows)
}

func TestReplaceRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	sink := openSink(t)

	tests := []struct {
		name    string
		table   string
		columns []storage.Column
		rows    [][]any
		wantErr string
	}{
		{"bad table", "Largest banks; DROP", bankColumns, nil, "invalid table name"},
		{"no columns", "t", nil, nil, "at least one column"},
		{"bad column", "t", []storage.Column{{Name: "a b"}}, nil, "invalid column name"},
		{"short row", "t", bankColumns, [][]any{{1}}, "row 0 has 1 values"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, sink.Replace(ctx, tt.table, tt.columns, tt.rows), tt.wantErr)
		})
	}
}

func TestConcurrentReplaceLeavesOneCompleteTable(t *testing.T) {
	ctx := context.Background()
	sink := openSink(t)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rows := make([][]any, 10)
			for i := range rows {
				rows[i] = []any{i + 1, fmt.Sprintf("writer-%d", w), float64(i), float64(i)}
			}
			assert.NoError(t, sink.Replace(ctx, "Largest_banks", bankColumns, rows))
		}(w)
	}
	wg.Wait()

	out, err := sink.Query(ctx, "SELECT DISTINCT BankName FROM Largest_banks")
	require.NoError(t, err)
	assert.Len(t, out.Rows, 1)

	count, err := sink.Query(ctx, "SELECT COUNT(*) FROM Largest_banks")
	require.NoError(t, err)
	assert.Equal(t, int64(10), count.Rows[0][0])
}

func TestQueryErrors(t *testing.T) {
	sink := openSink(t)
	_, err := sink.Query(context.Background(), "SELECT * FROM missing_table")
	assert.Error(t, err)
	assert.NoError(t, sink.Ping(context.Background()))
}
