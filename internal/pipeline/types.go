package pipeline

import (
	"time"
)

// Stage IDs of the bank capitalisation pipeline
const (
	StageIDCrawl     = "crawl"
	StageIDExtract   = "extract"
	StageIDTransform = "transform"
	StageIDLoad      = "load"
	StageIDQuery     = "query"
)

// Stage names
const (
	StageNameCrawl     = "Crawl Source"
	StageNameExtract   = "Extract Table"
	StageNameTransform = "Transform Currencies"
	StageNameLoad      = "Load Sinks"
	StageNameQuery     = "Run Queries"
)

// Default timeouts and retry settings
const (
	DefaultAttemptTimeout = 2 * time.Minute
	DefaultMaxAttempts    = 2
	DefaultRetryDelay     = 5 * time.Minute
)

// RetryPolicy bounds the attempts of a stage and fixes the pause between them
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts"`
	Delay       time.Duration `json:"delay"`
}

// NewRetryPolicy returns the default retry policy
func NewRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultRetryDelay,
	}
}

// normalize guarantees at least one attempt and a non-negative delay
func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// Trigger identifies what started a run
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerSchedule Trigger = "schedule"
	TriggerAPI      Trigger = "api"
)

// RunRequest describes a run to execute
type RunRequest struct {
	// ID is generated when empty
	ID      string  `json:"id,omitempty"`
	Trigger Trigger `json:"trigger"`
}
