package pipeline

import (
	"sync"
	"time"
)

// RunStatus is the overall status of a run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal reports whether no further transitions can happen
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// Run is one execution of the stage graph
type Run struct {
	mu sync.RWMutex

	ID          string                 `json:"id"`
	Trigger     Trigger                `json:"trigger"`
	Status      RunStatus              `json:"status"`
	StartTime   time.Time              `json:"start_time"`
	EndTime     *time.Time             `json:"end_time,omitempty"`
	Stages      map[string]*StageState `json:"stages"`
	StageOrder  []string               `json:"stage_order"`
	FailedStage string                 `json:"failed_stage,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// NewRun creates a pending run
func NewRun(id string, trigger Trigger) *Run {
	return &Run{
		ID:        id,
		Trigger:   trigger,
		Status:    RunStatusPending,
		StartTime: time.Now(),
		Stages:    make(map[string]*StageState),
	}
}

// addStage registers a pending stage state, in execution order
func (r *Run) addStage(state *StageState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stages[state.ID] = state
	r.StageOrder = append(r.StageOrder, state.ID)
}

// Stage returns the state of a stage
func (r *Run) Stage(stageID string) *StageState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Stages[stageID]
}

// start marks the run as running
func (r *Run) start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status != RunStatusPending {
		return
	}
	r.Status = RunStatusRunning
	r.StartTime = time.Now()
}

// succeed marks the run as succeeded unless it is already terminal
func (r *Run) succeed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status.IsTerminal() {
		return
	}
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusSucceeded
}

// fail marks the run as failed, recording the first failing stage
func (r *Run) fail(stageID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status.IsTerminal() {
		return
	}
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusFailed
	r.FailedStage = stageID
	if err != nil {
		r.Error = err.Error()
	}
}

// GetStatus returns the current run status
func (r *Run) GetStatus() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// Duration returns the elapsed time of the run
func (r *Run) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime)
	}
	return time.Since(r.StartTime)
}

// Snapshot returns a deep copy safe to read without locks
func (r *Run) Snapshot() *Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clone := &Run{
		ID:          r.ID,
		Trigger:     r.Trigger,
		Status:      r.Status,
		StartTime:   r.StartTime,
		Stages:      make(map[string]*StageState, len(r.Stages)),
		StageOrder:  append([]string(nil), r.StageOrder...),
		FailedStage: r.FailedStage,
		Error:       r.Error,
	}
	if r.EndTime != nil {
		end := *r.EndTime
		clone.EndTime = &end
	}
	for id, s := range r.Stages {
		clone.Stages[id] = s.clone()
	}
	return clone
}
