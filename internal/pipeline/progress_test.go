package pipeline_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankcap/internal/pipeline"
)

func TestFormatProgressLine(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)
	assert.Equal(t, "2024-Mar-05-14:07:09 : Stage crawl started\n", pipeline.FormatProgressLine(ts, "Stage crawl started"))
}

func TestFileProgressLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "code_log.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("existing line\n"), 0644))

	log, err := pipeline.OpenFileProgressLog(path)
	require.NoError(t, err)
	log.SetClock(func() time.Time { return time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC) })

	require.NoError(t, log.Append("first"))
	require.NoError(t, log.Append("second"))
	require.NoError(t, log.Close())
	assert.Error(t, log.Append("after close"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"existing line\n2024-Jan-02-03:04:05 : first\n2024-Jan-02-03:04:05 : second\n",
		string(data))
}

func TestFileProgressLogConcurrentLinesStayWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "code_log.txt")
	log, err := pipeline.OpenFileProgressLog(path)
	require.NoError(t, err)
	defer log.Close()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_ = log.Append("[run] Stage load attempt 1/2")
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	assert.Len(t, lines, 200)
	for _, line := range lines {
		assert.True(t, strings.HasSuffix(line, " : [run] Stage load attempt 1/2"), line)
	}
}
