package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// TaskResult is the recorded outcome of one stage execution within one run
type TaskResult struct {
	RunID       string          `json:"run_id"`
	Stage       string          `json:"stage"`
	Attempt     int             `json:"attempt"`
	Status      StageStatus     `json:"status"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Error       string          `json:"error,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// HandoffStore holds stage outputs keyed by (run id, stage id).
// Each key is written at most once.
type HandoffStore interface {
	Put(ctx context.Context, result TaskResult) error
	Get(ctx context.Context, runID, stage string) (TaskResult, error)
	// Release drops every entry of a run
	Release(ctx context.Context, runID string) error
}

type handoffKey struct {
	runID string
	stage string
}

// MemoryHandoffStore is an in-process HandoffStore
type MemoryHandoffStore struct {
	mu      sync.RWMutex
	results map[handoffKey]TaskResult
}

// NewMemoryHandoffStore creates an empty in-memory store
func NewMemoryHandoffStore() *MemoryHandoffStore {
	return &MemoryHandoffStore{
		results: make(map[handoffKey]TaskResult),
	}
}

// Put records a result, refusing to overwrite an existing one
func (s *MemoryHandoffStore) Put(ctx context.Context, result TaskResult) error {
	if result.RunID == "" || result.Stage == "" {
		return NewValidationError("task result requires run id and stage")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := handoffKey{runID: result.RunID, stage: result.Stage}
	if _, exists := s.results[key]; exists {
		return ErrResultExists
	}
	s.results[key] = result
	return nil
}

// Get returns the result for a run and stage
func (s *MemoryHandoffStore) Get(ctx context.Context, runID, stage string) (TaskResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.results[handoffKey{runID: runID, stage: stage}]
	if !ok {
		return TaskResult{}, ErrResultNotFound
	}
	return result, nil
}

// Release drops every entry of a run
func (s *MemoryHandoffStore) Release(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.results {
		if key.runID == runID {
			delete(s.results, key)
		}
	}
	return nil
}

// Len returns the number of stored results
func (s *MemoryHandoffStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
