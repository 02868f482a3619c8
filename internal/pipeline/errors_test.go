package pipeline_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"bankcap/internal/pipeline"
)

func TestPipelineErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "fetch with cause",
			err:      pipeline.NewFetchError("http://x", errors.New("refused")),
			expected: "[fetch] fetch http://x failed: refused",
		},
		{
			name:     "metric parse",
			err:      pipeline.NewMetricParseError(4, "n/a", nil),
			expected: `[metric_parse] rank 4: cannot parse metric "n/a"`,
		},
		{
			name:     "missing rate",
			err:      pipeline.NewMissingRateError("JPY"),
			expected: "[missing_rate] no exchange rate for JPY",
		},
		{
			name:     "with stage",
			err:      pipeline.NewTimeoutError("load", "1s"),
			expected: "[timeout] load: attempt exceeded timeout of 1s",
		},
		{
			name:     "stage failed",
			err:      &pipeline.StageFailedError{Stage: "load", Attempts: 2, Cause: errors.New("disk full")},
			expected: "[stage_failed] stage load failed after 2 attempt(s): disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorClassification(t *testing.T) {
	sinkErr := pipeline.NewSinkWriteError("table", errors.New("locked"))
	wrapped := fmt.Errorf("load: %w", &pipeline.StageFailedError{Stage: "load", Attempts: 1, Cause: sinkErr})

	assert.Equal(t, pipeline.ErrorTypeSinkWrite, pipeline.GetErrorType(wrapped))
	assert.True(t, pipeline.IsType(wrapped, pipeline.ErrorTypeSinkWrite))
	assert.True(t, pipeline.IsType(wrapped, pipeline.ErrorTypeStageFailed))
	assert.False(t, pipeline.IsType(wrapped, pipeline.ErrorTypeFetch))

	bare := &pipeline.StageFailedError{Stage: "crawl", Attempts: 1, Cause: errors.New("plain")}
	assert.Equal(t, pipeline.ErrorTypeStageFailed, pipeline.GetErrorType(bare))
	assert.Equal(t, pipeline.ErrorType(""), pipeline.GetErrorType(errors.New("plain")))
	assert.Equal(t, pipeline.ErrorType(""), pipeline.GetErrorType(nil))
}
