package pipeline

import (
	"time"
)

// Config holds the scheduler's execution settings
type Config struct {
	// Retry policy applied to stages without an override
	RetryPolicy RetryPolicy `json:"retry_policy"`

	// Per-stage retry overrides
	StagePolicies map[string]RetryPolicy `json:"stage_policies"`

	// Timeout applied to each attempt of a stage without an override
	AttemptTimeout time.Duration `json:"attempt_timeout"`

	// Per-stage attempt timeouts
	StageTimeouts map[string]time.Duration `json:"stage_timeouts"`
}

// NewConfig returns the default scheduler configuration
func NewConfig() *Config {
	return &Config{
		RetryPolicy:    NewRetryPolicy(),
		StagePolicies:  make(map[string]RetryPolicy),
		AttemptTimeout: DefaultAttemptTimeout,
		StageTimeouts:  make(map[string]time.Duration),
	}
}

// PolicyFor returns the retry policy of a stage
func (c *Config) PolicyFor(stageID string) RetryPolicy {
	if p, ok := c.StagePolicies[stageID]; ok {
		return p.normalize()
	}
	return c.RetryPolicy.normalize()
}

// TimeoutFor returns the per-attempt timeout of a stage
func (c *Config) TimeoutFor(stageID string) time.Duration {
	if t, ok := c.StageTimeouts[stageID]; ok && t > 0 {
		return t
	}
	if c.AttemptTimeout > 0 {
		return c.AttemptTimeout
	}
	return DefaultAttemptTimeout
}

// ConfigBuilder provides a fluent interface for building scheduler configurations
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a builder seeded with defaults
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: NewConfig()}
}

// WithRetryPolicy sets the default retry policy
func (b *ConfigBuilder) WithRetryPolicy(maxAttempts int, delay time.Duration) *ConfigBuilder {
	b.config.RetryPolicy = RetryPolicy{MaxAttempts: maxAttempts, Delay: delay}
	return b
}

// WithStagePolicy overrides the retry policy of one stage
func (b *ConfigBuilder) WithStagePolicy(stageID string, maxAttempts int, delay time.Duration) *ConfigBuilder {
	b.config.StagePolicies[stageID] = RetryPolicy{MaxAttempts: maxAttempts, Delay: delay}
	return b
}

// WithAttemptTimeout sets the default per-attempt timeout
func (b *ConfigBuilder) WithAttemptTimeout(timeout time.Duration) *ConfigBuilder {
	b.config.AttemptTimeout = timeout
	return b
}

// WithStageTimeout overrides the per-attempt timeout of one stage
func (b *ConfigBuilder) WithStageTimeout(stageID string, timeout time.Duration) *ConfigBuilder {
	b.config.StageTimeouts[stageID] = timeout
	return b
}

// Build returns the built configuration
func (b *ConfigBuilder) Build() *Config {
	return b.config
}
