package testutil

import (
	"context"
	"sync"
	"time"

	"bankcap/internal/pipeline"
)

// MockStage is a configurable mock implementation of the stage interface
type MockStage struct {
	IDValue           string
	NameValue         string
	DependenciesValue []string

	ExecuteFunc func(ctx context.Context, in pipeline.Inputs) (any, error)

	mu           sync.Mutex
	ExecuteCalls int
	ExecuteTimes []time.Time
}

// ID returns the stage ID
func (m *MockStage) ID() string {
	return m.IDValue
}

// Name returns the stage name
func (m *MockStage) Name() string {
	return m.NameValue
}

// Dependencies returns the stage dependencies
func (m *MockStage) Dependencies() []string {
	if m.DependenciesValue == nil {
		return []string{}
	}
	return m.DependenciesValue
}

// Execute runs the mock execute function
func (m *MockStage) Execute(ctx context.Context, in pipeline.Inputs) (any, error) {
	m.mu.Lock()
	m.ExecuteCalls++
	m.ExecuteTimes = append(m.ExecuteTimes, time.Now())
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, in)
	}
	return map[string]string{"stage": m.IDValue}, nil
}

// GetExecuteCalls returns the number of Execute calls
func (m *MockStage) GetExecuteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExecuteCalls
}

// MockEventSink captures scheduler events
type MockEventSink struct {
	mu     sync.Mutex
	Events []pipeline.Event
}

// Publish records the event
func (m *MockEventSink) Publish(event pipeline.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

// OfType returns the captured events of one type
func (m *MockEventSink) OfType(t pipeline.EventType) []pipeline.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []pipeline.Event
	for _, e := range m.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
