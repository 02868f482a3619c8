package pipeline

import (
	"context"
	"log/slog"
	"time"
)

func (s *Scheduler) logRunStart(ctx context.Context, run *Run) {
	s.logger.InfoContext(ctx, "run_start",
		slog.String("run_id", run.ID),
		slog.String("trigger", string(run.Trigger)),
		slog.Int("stage_count", len(run.StageOrder)))
}

func (s *Scheduler) logRunComplete(ctx context.Context, run *Run) {
	snap := run.Snapshot()
	s.logger.InfoContext(ctx, "run_complete",
		slog.String("run_id", snap.ID),
		slog.String("status", string(snap.Status)),
		slog.String("failed_stage", snap.FailedStage),
		slog.Duration("duration", run.Duration()))
}

func (s *Scheduler) logRunError(ctx context.Context, runID string, err error) {
	errorMsg := "unknown error"
	if err != nil {
		errorMsg = err.Error()
	}
	s.logger.ErrorContext(ctx, "run_error",
		slog.String("run_id", runID),
		slog.String("error", errorMsg))
}

func (s *Scheduler) logStageStart(ctx context.Context, runID, stageID string, policy RetryPolicy) {
	s.logger.InfoContext(ctx, "stage_start",
		slog.String("run_id", runID),
		slog.String("stage", stageID),
		slog.Int("max_attempts", policy.MaxAttempts),
		slog.Duration("retry_delay", policy.Delay))
}

func (s *Scheduler) logStageComplete(ctx context.Context, runID, stageID string, attempts int, duration time.Duration) {
	s.logger.InfoContext(ctx, "stage_complete",
		slog.String("run_id", runID),
		slog.String("stage", stageID),
		slog.Int("attempts", attempts),
		slog.Duration("duration", duration))
}

func (s *Scheduler) logStageError(ctx context.Context, runID, stageID string, err error) {
	errorMsg := "unknown error"
	if err != nil {
		errorMsg = err.Error()
	}
	s.logger.ErrorContext(ctx, "stage_error",
		slog.String("run_id", runID),
		slog.String("stage", stageID),
		slog.String("error_type", string(GetErrorType(err))),
		slog.String("error", errorMsg))
}
