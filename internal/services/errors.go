package services

import "errors"

// Operation errors
var (
	ErrOperationNotFound = errors.New("operation not found")
	ErrOperationRunning  = errors.New("operation already running")
	ErrOperationFinished = errors.New("operation already finished")
	ErrUnknownOperation  = errors.New("unknown operation type")

	// Run and model errors
	ErrRunNotFound   = errors.New("run not found")
	ErrModelNotFound = errors.New("model not found")
	ErrNoStagedModel = errors.New("no staged model available")

	// General errors
	ErrInvalidInput       = errors.New("invalid input")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)
