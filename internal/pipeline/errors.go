package pipeline

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of a pipeline error
type ErrorType string

const (
	ErrorTypeFetch         ErrorType = "fetch"
	ErrorTypeTableNotFound ErrorType = "table_not_found"
	ErrorTypeMetricParse   ErrorType = "metric_parse"
	ErrorTypeMissingRate   ErrorType = "missing_rate"
	ErrorTypeSinkWrite     ErrorType = "sink_write"
	ErrorTypeStageFailed   ErrorType = "stage_failed"
	ErrorTypeDependency    ErrorType = "dependency"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeCancellation  ErrorType = "cancellation"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeNotFound      ErrorType = "not_found"
)

// PipelineError is the error type produced by stages and the scheduler
type PipelineError struct {
	Type    ErrorType              `json:"type"`
	Stage   string                 `json:"stage,omitempty"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e == nil {
		return "unknown pipeline error"
	}
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Stage != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Type, e.Stage, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewFetchError reports that the source could not be retrieved
func NewFetchError(url string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeFetch,
		Message: fmt.Sprintf("fetch %s failed", url),
		Cause:   cause,
		Context: map[string]interface{}{"url": url},
	}
}

// NewTableNotFoundError reports that no table matched the selector
func NewTableNotFoundError(selector string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeTableNotFound,
		Message: fmt.Sprintf("no table matches selector %q", selector),
		Context: map[string]interface{}{"selector": selector},
	}
}

// NewMetricParseError reports a metric cell that is not numeric
func NewMetricParseError(rank int, raw string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeMetricParse,
		Message: fmt.Sprintf("rank %d: cannot parse metric %q", rank, raw),
		Cause:   cause,
		Context: map[string]interface{}{"rank": rank, "raw": raw},
	}
}

// NewMissingRateError reports a currency absent from the rate table
func NewMissingRateError(currency string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeMissingRate,
		Message: fmt.Sprintf("no exchange rate for %s", currency),
		Context: map[string]interface{}{"currency": currency},
	}
}

// NewSinkWriteError reports an I/O failure while persisting to a sink
func NewSinkWriteError(sink string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeSinkWrite,
		Message: fmt.Sprintf("write to %s sink failed", sink),
		Cause:   cause,
		Context: map[string]interface{}{"sink": sink},
	}
}

// NewDependencyError reports an upstream stage without a successful result
func NewDependencyError(stage, dependsOn, message string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeDependency,
		Stage:   stage,
		Message: message,
		Context: map[string]interface{}{"depends_on": dependsOn},
	}
}

// NewTimeoutError reports an attempt that exceeded its deadline
func NewTimeoutError(stage string, timeout string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeTimeout,
		Stage:   stage,
		Message: fmt.Sprintf("attempt exceeded timeout of %s", timeout),
		Context: map[string]interface{}{"timeout": timeout},
	}
}

// NewCancellationError reports a run aborted before the stage started
func NewCancellationError(stage string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeCancellation,
		Stage:   stage,
		Message: "run was cancelled",
	}
}

// NewValidationError reports invalid scheduler input
func NewValidationError(message string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// StageFailedError is the terminal error of a stage whose attempts are exhausted
type StageFailedError struct {
	Stage    string `json:"stage"`
	Attempts int    `json:"attempts"`
	Cause    error  `json:"-"`
}

// Error implements the error interface
func (e *StageFailedError) Error() string {
	return fmt.Sprintf("[%s] stage %s failed after %d attempt(s): %v", ErrorTypeStageFailed, e.Stage, e.Attempts, e.Cause)
}

// Unwrap returns the last attempt's error
func (e *StageFailedError) Unwrap() error {
	return e.Cause
}

// GetErrorType returns the type of the innermost pipeline error in the chain
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var pErr *PipelineError
	if errors.As(err, &pErr) {
		return pErr.Type
	}
	var sErr *StageFailedError
	if errors.As(err, &sErr) {
		return ErrorTypeStageFailed
	}
	return ""
}

// IsType reports whether any error in the chain has the given type
func IsType(err error, t ErrorType) bool {
	for err != nil {
		switch e := err.(type) {
		case *PipelineError:
			if e.Type == t {
				return true
			}
		case *StageFailedError:
			if t == ErrorTypeStageFailed {
				return true
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}

var (
	// ErrRunNotFound is returned when a run id is unknown
	ErrRunNotFound = &PipelineError{
		Type:    ErrorTypeNotFound,
		Message: "run not found",
	}

	// ErrResultNotFound is returned when the handoff store has no entry for a key
	ErrResultNotFound = &PipelineError{
		Type:    ErrorTypeNotFound,
		Message: "task result not found",
	}

	// ErrResultExists is returned when a second result is written for the same run and stage
	ErrResultExists = errors.New("task result already recorded for run and stage")
)
