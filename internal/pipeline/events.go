package pipeline

import "time"

// EventType names a scheduler transition
type EventType string

const (
	EventRunStarted     EventType = "run:started"
	EventRunFinished    EventType = "run:finished"
	EventStageStarted   EventType = "stage:started"
	EventStageAttempt   EventType = "stage:attempt"
	EventStageRetry     EventType = "stage:retry"
	EventStageSucceeded EventType = "stage:succeeded"
	EventStageFailed    EventType = "stage:failed"
	EventStageSkipped   EventType = "stage:skipped"
)

// Event is a transition published while a run executes
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventSink receives scheduler events. Implementations must not block.
type EventSink interface {
	Publish(event Event)
}

type discardEvents struct{}

func (discardEvents) Publish(Event) {}
