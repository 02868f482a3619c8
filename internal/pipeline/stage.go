package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Stage is a named unit of pipeline work
type Stage interface {
	// ID returns the unique identifier for this stage
	ID() string

	// Name returns the human-readable name for this stage
	Name() string

	// Dependencies returns the IDs of stages that must succeed before this stage
	Dependencies() []string

	// Execute runs the stage against the upstream payloads and returns its own payload
	Execute(ctx context.Context, in Inputs) (any, error)
}

// Inputs is the read-only view of upstream results handed to a stage
type Inputs struct {
	RunID   string
	results map[string]TaskResult
}

// NewInputs builds an Inputs view over the given upstream results
func NewInputs(runID string, results map[string]TaskResult) Inputs {
	if results == nil {
		results = make(map[string]TaskResult)
	}
	return Inputs{RunID: runID, results: results}
}

// Result returns the upstream result for a stage
func (in Inputs) Result(stageID string) (TaskResult, bool) {
	r, ok := in.results[stageID]
	return r, ok
}

// Decode unmarshals the payload of an upstream stage into v
func (in Inputs) Decode(stageID string, v any) error {
	r, ok := in.results[stageID]
	if !ok {
		return NewDependencyError("", stageID, fmt.Sprintf("no input from stage %s", stageID))
	}
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", stageID, err)
	}
	return nil
}

// StageStatus represents the current status of a stage within a run
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusSucceeded StageStatus = "succeeded"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// StageState represents the runtime state of a stage within a run
type StageState struct {
	mu        sync.RWMutex
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Status    StageStatus `json:"status"`
	Attempts  int         `json:"attempts"`
	StartTime *time.Time  `json:"start_time,omitempty"`
	EndTime   *time.Time  `json:"end_time,omitempty"`
	Message   string      `json:"message,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// NewStageState creates a pending stage state
func NewStageState(id, name string) *StageState {
	return &StageState{
		ID:     id,
		Name:   name,
		Status: StageStatusPending,
	}
}

// BeginAttempt marks the stage as running and counts the attempt
func (s *StageState) BeginAttempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.StartTime == nil {
		now := time.Now()
		s.StartTime = &now
	}
	s.Status = StageStatusRunning
	s.Attempts++
	return s.Attempts
}

// Succeed marks the stage as succeeded
func (s *StageState) Succeed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusSucceeded
	s.Error = ""
}

// Fail marks the stage as failed with the given error
func (s *StageState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusFailed
	if err != nil {
		s.Error = err.Error()
	}
}

// Skip marks the stage as skipped with the given reason
func (s *StageState) Skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusSkipped
	s.Message = reason
}

// GetStatus returns the current status
func (s *StageState) GetStatus() StageStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// GetAttempts returns the number of attempts made so far
func (s *StageState) GetAttempts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Attempts
}

// Duration returns how long the stage has been running
func (s *StageState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

func (s *StageState) clone() *StageState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &StageState{
		ID:        s.ID,
		Name:      s.Name,
		Status:    s.Status,
		Attempts:  s.Attempts,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Message:   s.Message,
		Error:     s.Error,
	}
}

// BaseStage provides the identity half of a Stage implementation
type BaseStage struct {
	id           string
	name         string
	dependencies []string
}

// NewBaseStage creates a new base stage
func NewBaseStage(id, name string, dependencies []string) BaseStage {
	if dependencies == nil {
		dependencies = []string{}
	}
	return BaseStage{
		id:           id,
		name:         name,
		dependencies: dependencies,
	}
}

// ID returns the stage ID
func (b *BaseStage) ID() string {
	return b.id
}

// Name returns the stage name
func (b *BaseStage) Name() string {
	return b.name
}

// Dependencies returns the stage dependencies
func (b *BaseStage) Dependencies() []string {
	return b.dependencies
}

// StageFunc adapts a function into a Stage
type StageFunc struct {
	BaseStage
	fn func(ctx context.Context, in Inputs) (any, error)
}

// NewStageFunc creates a stage that runs fn
func NewStageFunc(id, name string, dependencies []string, fn func(ctx context.Context, in Inputs) (any, error)) *StageFunc {
	return &StageFunc{
		BaseStage: NewBaseStage(id, name, dependencies),
		fn:        fn,
	}
}

// Execute runs the wrapped function
func (s *StageFunc) Execute(ctx context.Context, in Inputs) (any, error) {
	return s.fn(ctx, in)
}
