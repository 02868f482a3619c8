// Package pipeline runs a static graph of stages for one run at a time.
//
// Core Components:
//
// Scheduler: resolves the stage graph into an execution order, gates every stage
// on the success of its upstream stages, applies the retry policy and writes the
// final result of each stage into the HandoffStore. Every stage transition is
// appended to the ProgressLog.
//
// Registry: holds the stages and their declared dependencies. DependencyOrder
// performs a topological sort that keeps registration order among stages that
// become ready together and rejects cycles.
//
// HandoffStore: per-run key/value store of TaskResults keyed by (run id, stage id).
// A key is written at most once. MemoryHandoffStore serves a single process;
// RedisHandoffStore lets several processes share results.
//
// ProgressLog: append-only timestamped text log of run and stage transitions.
//
// Example usage:
//
//	registry := pipeline.NewRegistry()
//	registry.Register(crawlStage)
//	registry.Register(extractStage)
//
//	config := pipeline.NewConfigBuilder().
//		WithRetryPolicy(2, 5*time.Minute).
//		WithAttemptTimeout(time.Minute).
//		Build()
//
//	scheduler := pipeline.NewScheduler(registry, pipeline.NewMemoryHandoffStore(), progressLog, config)
//	run, err := scheduler.Run(ctx, pipeline.RunRequest{Trigger: pipeline.TriggerManual})
//
// Stage payloads cross the store as JSON; a stage reads its inputs with
// Inputs.Decode and returns any JSON-encodable value.
package pipeline
