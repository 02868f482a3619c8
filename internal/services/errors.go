package services

import "errors"

// Run service errors
var (
	// Lookup errors
	ErrRunNotFound     = errors.New("run not found")
	ErrRunNotSucceeded = errors.New("run has not succeeded")

	// Trigger errors
	ErrAtCapacity    = errors.New("maximum concurrent runs reached")
	ErrServiceClosed = errors.New("run service closed")
)
