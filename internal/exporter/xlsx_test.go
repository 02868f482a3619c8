package exporter

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteXLSX(t *testing.T) {
	dir := t.TempDir()
	w := NewXLSXWriter(dir, nil)

	headers := []string{"Rank", "BankName", "MC_USD_Billion"}
	rows := [][]any{{1, "Bank A", 1.0}, {3, "Bank C", 0.5}}
	require.NoError(t, w.WriteXLSX("banks.xlsx", "Largest_banks", headers, rows))

	got, err := ReadXLSX(filepath.Join(dir, "banks.xlsx"), "Largest_banks")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, headers, got[0])
	assert.Equal(t, []string{"1", "Bank A"}, got[1][:2])
	assert.Equal(t, "Bank C", got[2][1])
	assert.Equal(t, "0.5", got[2][2])

	// rewriting with fewer rows leaves no stale rows behind
	require.NoError(t, w.WriteXLSX("banks.xlsx", "Largest_banks", headers, rows[:1]))
	got, err = ReadXLSX(filepath.Join(dir, "banks.xlsx"), "")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestWriteXLSXConcurrentWritersLastOneWins(t *testing.T) {
	dir := t.TempDir()
	w := NewXLSXWriter(dir, nil)

	headers := []string{"Rank", "BankName"}
	large := make([][]any, 500)
	for i := range large {
		large[i] = []any{i + 1, "Bank"}
	}
	small := [][]any{{1, "Only Bank"}}

	for i := 0; i < 10; i++ {
		var wg sync.WaitGroup
		for _, rows := range [][][]any{large, small} {
			wg.Add(1)
			go func(rows [][]any) {
				defer wg.Done()
				assert.NoError(t, w.WriteXLSX("banks.xlsx", "", headers, rows))
			}(rows)
		}
		wg.Wait()

		got, err := ReadXLSX(filepath.Join(dir, "banks.xlsx"), "")
		require.NoError(t, err)
		assert.Contains(t, []int{len(large) + 1, len(small) + 1}, len(got))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
