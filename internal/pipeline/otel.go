package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName = "bankcap.pipeline"
	MeterName  = "bankcap.pipeline"
)

// runTelemetry holds the otel tracer and instruments used by the scheduler
type runTelemetry struct {
	tracer        trace.Tracer
	runsTotal     metric.Int64Counter
	attemptsTotal metric.Int64Counter
	stageDuration metric.Float64Histogram
	runDuration   metric.Float64Histogram
}

// newRunTelemetry builds instruments on the global providers; failed instruments stay nil
func newRunTelemetry() *runTelemetry {
	meter := otel.Meter(MeterName)
	t := &runTelemetry{tracer: otel.Tracer(TracerName)}

	t.runsTotal, _ = meter.Int64Counter("bankcap_runs_total",
		metric.WithDescription("Completed pipeline runs by status"))
	t.attemptsTotal, _ = meter.Int64Counter("bankcap_stage_attempts_total",
		metric.WithDescription("Stage attempts by stage and outcome"))
	t.stageDuration, _ = meter.Float64Histogram("bankcap_stage_duration_seconds",
		metric.WithDescription("Duration of terminal stage outcomes"),
		metric.WithUnit("s"))
	t.runDuration, _ = meter.Float64Histogram("bankcap_run_duration_seconds",
		metric.WithDescription("Duration of pipeline runs"),
		metric.WithUnit("s"))
	return t
}

func (t *runTelemetry) startRun(ctx context.Context, run *Run) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", run.ID),
			attribute.String("run.trigger", string(run.Trigger)),
		),
	)
}

func (t *runTelemetry) startStage(ctx context.Context, runID, stageID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "pipeline.stage."+stageID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("stage.id", stageID),
		),
	)
}

func (t *runTelemetry) recordAttempt(ctx context.Context, span trace.Span, stageID string, attempt int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
		span.AddEvent("attempt_failed", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.String("error", err.Error()),
		))
	}
	if t.attemptsTotal != nil {
		t.attemptsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", stageID),
			attribute.String("outcome", outcome),
		))
	}
}

func (t *runTelemetry) endStage(ctx context.Context, span trace.Span, stageID string, duration time.Duration, attempts int, err error) {
	status := "succeeded"
	if err != nil {
		status = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.Int("stage.attempts", attempts))
	span.End()

	if t.stageDuration != nil {
		t.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("stage", stageID),
			attribute.String("status", status),
		))
	}
}

func (t *runTelemetry) endRun(ctx context.Context, span trace.Span, run *Run) {
	status := run.GetStatus()
	span.SetAttributes(attribute.String("run.status", string(status)))
	if status == RunStatusFailed {
		span.SetStatus(codes.Error, "run failed")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	attrs := metric.WithAttributes(attribute.String("status", string(status)))
	if t.runsTotal != nil {
		t.runsTotal.Add(ctx, 1, attrs)
	}
	if t.runDuration != nil {
		t.runDuration.Record(ctx, run.Duration().Seconds(), attrs)
	}
}
