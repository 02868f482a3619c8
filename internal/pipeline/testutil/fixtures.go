package testutil

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"bankcap/internal/pipeline"
)

// CreateSuccessfulStage creates a stage that always succeeds
func CreateSuccessfulStage(id, name string, deps ...string) *MockStage {
	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
	}
}

// CreateFailingStage creates a stage that always fails with err
func CreateFailingStage(id, name string, err error, deps ...string) *MockStage {
	if err == nil {
		err = errors.New("stage failed")
	}
	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, in pipeline.Inputs) (any, error) {
			return nil, err
		},
	}
}

// CreateFlakyStage creates a stage that fails the first failures attempts and then succeeds
func CreateFlakyStage(id, name string, failures int, deps ...string) *MockStage {
	var calls int32
	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, in pipeline.Inputs) (any, error) {
			n := atomic.AddInt32(&calls, 1)
			if int(n) <= failures {
				return nil, errors.New("transient failure")
			}
			return map[string]int{"attempt": int(n)}, nil
		},
	}
}

// CreateSlowStage creates a stage that blocks for d unless its context ends first
func CreateSlowStage(id, name string, d time.Duration, deps ...string) *MockStage {
	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, in pipeline.Inputs) (any, error) {
			select {
			case <-time.After(d):
				return "done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
}

// FastConfig returns a scheduler config with no retry delay
func FastConfig(maxAttempts int) *pipeline.Config {
	return pipeline.NewConfigBuilder().
		WithRetryPolicy(maxAttempts, 0).
		WithAttemptTimeout(5 * time.Second).
		Build()
}
