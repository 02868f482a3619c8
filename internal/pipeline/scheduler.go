package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"bankcap/internal/infrastructure"
)

// Scheduler executes the registered stages of a run in dependency order
type Scheduler struct {
	registry  *Registry
	handoff   HandoffStore
	progress  ProgressLog
	config    *Config
	events    EventSink
	logger    *slog.Logger
	telemetry *runTelemetry

	mu   sync.RWMutex
	runs map[string]*Run
}

// Option customises a Scheduler
type Option func(*Scheduler)

// WithEventSink publishes run transitions to sink
func WithEventSink(sink EventSink) Option {
	return func(s *Scheduler) {
		if sink != nil {
			s.events = sink
		}
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates a scheduler over a stage registry
func NewScheduler(registry *Registry, handoff HandoffStore, progress ProgressLog, config *Config, opts ...Option) *Scheduler {
	if registry == nil {
		registry = NewRegistry()
	}
	if handoff == nil {
		handoff = NewMemoryHandoffStore()
	}
	if progress == nil {
		progress = NewMemoryProgressLog()
	}
	if config == nil {
		config = NewConfig()
	}

	s := &Scheduler{
		registry:  registry,
		handoff:   handoff,
		progress:  progress,
		config:    config,
		events:    discardEvents{},
		logger:    slog.Default(),
		telemetry: newRunTelemetry(),
		runs:      make(map[string]*Run),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "scheduler"))
	return s
}

// Registry returns the stage registry
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Config returns the execution settings
func (s *Scheduler) Config() *Config {
	return s.config
}

// Run executes every stage once in dependency order and returns the terminal run snapshot.
// The returned error is nil only when the run succeeded.
func (s *Scheduler) Run(ctx context.Context, req RunRequest) (*Run, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Trigger == "" {
		req.Trigger = TriggerManual
	}

	order, err := s.registry.DependencyOrder()
	if err != nil {
		verr := NewValidationError(err.Error())
		run := NewRun(req.ID, req.Trigger)
		run.fail("", verr)
		s.logRunError(ctx, run.ID, verr)
		return run.Snapshot(), verr
	}

	run := NewRun(req.ID, req.Trigger)
	for _, stage := range order {
		run.addStage(NewStageState(stage.ID(), stage.Name()))
	}

	if !s.track(run) {
		verr := NewValidationError(fmt.Sprintf("run %s is already active", run.ID))
		return run.Snapshot(), verr
	}
	defer s.untrack(run.ID)

	ctx = infrastructure.WithRunID(ctx, run.ID)
	ctx, span := s.telemetry.startRun(ctx, run)

	run.start()
	s.logRunStart(ctx, run)
	s.note(ctx, run.ID, "Preliminaries complete. Initiating ETL process")
	s.publish(Event{Type: EventRunStarted, RunID: run.ID, Status: string(RunStatusRunning)})

	runErr := s.executeSequential(ctx, run, order)
	if runErr != nil {
		s.logRunError(ctx, run.ID, runErr)
	} else {
		run.succeed()
		s.note(ctx, run.ID, "Process Complete.")
	}

	s.telemetry.endRun(ctx, span, run)
	s.logRunComplete(ctx, run)
	s.publish(Event{Type: EventRunFinished, RunID: run.ID, Status: string(run.GetStatus())})

	return run.Snapshot(), runErr
}

// executeSequential runs the ordered stages one at a time and halts on the first failure
func (s *Scheduler) executeSequential(ctx context.Context, run *Run, order []Stage) error {
	for i, stage := range order {
		if ctx.Err() != nil {
			err := NewCancellationError(stage.ID())
			s.logger.WarnContext(ctx, "run_cancelled",
				slog.String("run_id", run.ID),
				slog.String("stage", stage.ID()))
			s.note(ctx, run.ID, fmt.Sprintf("Run cancelled before stage %s", stage.ID()))
			s.skipRemaining(run, order[i:], "run cancelled")
			run.fail(stage.ID(), err)
			return err
		}

		inputs, err := s.gatherInputs(ctx, run, stage)
		if err != nil {
			s.logger.ErrorContext(ctx, "dependencies_not_met",
				slog.String("run_id", run.ID),
				slog.String("stage", stage.ID()),
				slog.String("error", err.Error()))
			s.skipRemaining(run, order[i:], err.Error())
			run.fail(stage.ID(), err)
			return err
		}

		s.logger.InfoContext(ctx, "executing_stage",
			slog.String("run_id", run.ID),
			slog.String("stage", stage.ID()),
			slog.Int("stage_number", i+1),
			slog.Int("total_stages", len(order)))

		if err := s.executeStage(ctx, run, stage, inputs); err != nil {
			s.logStageError(ctx, run.ID, stage.ID(), err)
			s.skipRemaining(run, order[i+1:], fmt.Sprintf("upstream stage %s failed", stage.ID()))
			run.fail(stage.ID(), err)
			return err
		}
	}
	return nil
}

// gatherInputs reads the succeeded result of every dependency from the handoff store
func (s *Scheduler) gatherInputs(ctx context.Context, run *Run, stage Stage) (Inputs, error) {
	results := make(map[string]TaskResult, len(stage.Dependencies()))
	readCtx := context.WithoutCancel(ctx)

	for _, dep := range stage.Dependencies() {
		depState := run.Stage(dep)
		if depState == nil || depState.GetStatus() != StageStatusSucceeded {
			return Inputs{}, NewDependencyError(stage.ID(), dep, fmt.Sprintf("dependency %s has not succeeded", dep))
		}

		result, err := s.handoff.Get(readCtx, run.ID, dep)
		if err != nil {
			dErr := NewDependencyError(stage.ID(), dep, fmt.Sprintf("no result for dependency %s", dep))
			dErr.Cause = err
			return Inputs{}, dErr
		}
		if result.Status != StageStatusSucceeded {
			return Inputs{}, NewDependencyError(stage.ID(), dep, fmt.Sprintf("dependency %s result is %s", dep, result.Status))
		}
		results[dep] = result
	}
	return NewInputs(run.ID, results), nil
}

// executeStage runs the attempt loop of one stage and records its final result
func (s *Scheduler) executeStage(ctx context.Context, run *Run, stage Stage, inputs Inputs) error {
	id := stage.ID()
	state := run.Stage(id)
	policy := s.config.PolicyFor(id)
	timeout := s.config.TimeoutFor(id)

	stageCtx, span := s.telemetry.startStage(ctx, run.ID, id)
	// Caller cancellation takes effect between stages only
	execCtx := context.WithoutCancel(stageCtx)

	s.logStageStart(ctx, run.ID, id, policy)
	s.note(ctx, run.ID, fmt.Sprintf("Stage %s started", id))
	s.publish(Event{Type: EventStageStarted, RunID: run.ID, Stage: id, Status: string(StageStatusRunning)})

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		state.BeginAttempt()
		s.note(ctx, run.ID, fmt.Sprintf("Stage %s attempt %d/%d", id, attempt, policy.MaxAttempts))
		s.publish(Event{Type: EventStageAttempt, RunID: run.ID, Stage: id, Attempt: attempt})

		payload, err := s.attempt(execCtx, stage, inputs, timeout)
		if err == nil {
			err = s.record(execCtx, run.ID, id, attempt, payload)
		}
		s.telemetry.recordAttempt(execCtx, span, id, attempt, err)

		if err == nil {
			duration := time.Since(start)
			state.Succeed()
			s.logStageComplete(ctx, run.ID, id, attempt, duration)
			s.note(ctx, run.ID, fmt.Sprintf("Stage %s succeeded after %d attempt(s)", id, attempt))
			s.publish(Event{Type: EventStageSucceeded, RunID: run.ID, Stage: id, Attempt: attempt, Status: string(StageStatusSucceeded)})
			s.telemetry.endStage(execCtx, span, id, duration, attempt, nil)
			return nil
		}

		lastErr = err
		s.note(ctx, run.ID, fmt.Sprintf("Stage %s attempt %d failed: %v", id, attempt, err))

		if attempt < policy.MaxAttempts {
			s.logger.WarnContext(ctx, "stage_retry",
				slog.String("run_id", run.ID),
				slog.String("stage", id),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", policy.MaxAttempts),
				slog.Duration("delay", policy.Delay),
				slog.String("error_type", string(GetErrorType(err))),
				slog.String("error", err.Error()))
			s.publish(Event{Type: EventStageRetry, RunID: run.ID, Stage: id, Attempt: attempt, Message: err.Error()})
			wait(policy.Delay)
		}
	}

	failed := &StageFailedError{Stage: id, Attempts: policy.MaxAttempts, Cause: lastErr}
	state.Fail(failed)
	s.note(ctx, run.ID, fmt.Sprintf("Stage %s failed after %d attempt(s): %v", id, policy.MaxAttempts, lastErr))
	s.publish(Event{Type: EventStageFailed, RunID: run.ID, Stage: id, Attempt: policy.MaxAttempts, Status: string(StageStatusFailed), Message: lastErr.Error()})
	s.telemetry.endStage(execCtx, span, id, time.Since(start), policy.MaxAttempts, failed)
	return failed
}

// attempt executes the stage once under the per-attempt timeout.
// On timeout the stage goroutine is abandoned and may still finish later;
// its payload is dropped, and the file sinks rename complete files into place
// so a late writer never leaves a torn file.
func (s *Scheduler) attempt(ctx context.Context, stage Stage, inputs Inputs, timeout time.Duration) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		payload any
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("stage %s panicked: %v", stage.ID(), r)}
			}
		}()
		payload, err := stage.Execute(attemptCtx, inputs)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			tErr := NewTimeoutError(stage.ID(), timeout.String())
			tErr.Cause = o.err
			return nil, tErr
		}
		return o.payload, o.err
	case <-attemptCtx.Done():
		return nil, NewTimeoutError(stage.ID(), timeout.String())
	}
}

// record encodes the payload and writes the authoritative result for the stage
func (s *Scheduler) record(ctx context.Context, runID, stageID string, attempt int, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", stageID, err)
	}

	result := TaskResult{
		RunID:       runID,
		Stage:       stageID,
		Attempt:     attempt,
		Status:      StageStatusSucceeded,
		Payload:     data,
		CompletedAt: time.Now(),
	}
	if err := s.handoff.Put(ctx, result); err != nil {
		return fmt.Errorf("store %s result: %w", stageID, err)
	}
	return nil
}

// skipRemaining marks every pending stage in stages as skipped
func (s *Scheduler) skipRemaining(run *Run, stages []Stage, reason string) {
	for _, stage := range stages {
		state := run.Stage(stage.ID())
		if state != nil && state.GetStatus() == StageStatusPending {
			state.Skip(reason)
			s.publish(Event{Type: EventStageSkipped, RunID: run.ID, Stage: stage.ID(), Status: string(StageStatusSkipped), Message: reason})
		}
	}
}

// Result returns the authoritative result of a stage in a run
func (s *Scheduler) Result(ctx context.Context, runID, stageID string) (TaskResult, error) {
	return s.handoff.Get(ctx, runID, stageID)
}

// Release drops the handoff entries of a finished run
func (s *Scheduler) Release(ctx context.Context, runID string) error {
	return s.handoff.Release(ctx, runID)
}

// GetRun returns a snapshot of an active run
func (s *Scheduler) GetRun(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run.Snapshot(), nil
}

// ActiveRuns returns snapshots of the runs currently executing
func (s *Scheduler) ActiveRuns() []*Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run.Snapshot())
	}
	return runs
}

func (s *Scheduler) track(run *Run) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return false
	}
	s.runs[run.ID] = run
	return true
}

func (s *Scheduler) untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
}

// note appends to the progress log; a failing log never fails the run
func (s *Scheduler) note(ctx context.Context, runID, message string) {
	if err := s.progress.Append(fmt.Sprintf("[%s] %s", runID, message)); err != nil {
		s.logger.WarnContext(ctx, "progress_log_write_failed",
			slog.String("run_id", runID),
			slog.String("error", err.Error()))
	}
}

func (s *Scheduler) publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.events.Publish(event)
}

// wait pauses for d without observing cancellation
func wait(d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	<-timer.C
}
