package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestLivenessCheck(t *testing.T) {
	runs := NewRunService(newFakeRunner(), RunServiceOptions{MaxConcurrentRuns: 1, HistorySize: 5}, nil, nil)
	hs := NewHealthService("1.2.3", runs, nil, func() int { return 3 }, nil)

	status := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Equal(t, 3, status.Runtime["websocket_clients"])
	assert.Equal(t, 0, status.Runtime["remembered_runs"])
	assert.Contains(t, status.Runtime, "goroutines")
}

func TestReadinessCheck(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Pinger
		wantStatus string
		notReady   []string
	}{
		{
			name:       "no dependencies",
			wantStatus: "ready",
		},
		{
			name: "all reachable",
			checks: map[string]Pinger{
				"table_sink": pingFunc(func(context.Context) error { return nil }),
				"handoff":    pingFunc(func(context.Context) error { return nil }),
			},
			wantStatus: "ready",
		},
		{
			name: "one unreachable",
			checks: map[string]Pinger{
				"table_sink": pingFunc(func(context.Context) error { return nil }),
				"handoff":    pingFunc(func(context.Context) error { return errors.New("connection refused") }),
			},
			wantStatus: "not_ready",
			notReady:   []string{"handoff"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := NewHealthService("dev", nil, tt.checks, nil, nil)

			status := hs.ReadinessCheck(context.Background())
			assert.Equal(t, tt.wantStatus, status.Status)
			require.Len(t, status.Services, len(tt.checks))
			for _, name := range tt.notReady {
				assert.Equal(t, "not_ready", status.Services[name].Status)
				assert.Contains(t, status.Services[name].Message, "connection refused")
			}
		})
	}
}
