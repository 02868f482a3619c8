// Package services sits between the transports (HTTP, CLI, interval trigger) and the
// pipeline scheduler.
//
// # Available Services
//
//	- RunService: triggers runs, caps how many execute at once and keeps a bounded
//	  history of finished runs together with their query results
//	- HealthService: liveness and readiness reporting
//
// # Concurrency
//
// RunService admits at most MaxConcurrentRuns runs through a weighted semaphore.
// Trigger never blocks: it returns ErrAtCapacity when every slot is taken. Execute
// waits for a slot and is what the one-shot CLI uses.
//
// Runs started by Trigger are detached from the caller's context. Close cancels
// them cooperatively, so a run stops at its next stage boundary.
package services
