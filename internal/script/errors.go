package script

import "errors"

// Errors returned by the script host.
var (
	// ErrRuntimeClosed is returned when using a runtime after it was discarded.
	ErrRuntimeClosed = errors.New("script runtime is closed")

	// ErrDuplicateScript is returned when two scripts normalize to the same name.
	ErrDuplicateScript = errors.New("duplicate script name")

	// ErrExecutorClosed is returned when attempting to use a closed executor.
	ErrExecutorClosed = errors.New("script executor is closed")

	// ErrExecutorQueueFull is returned by Submit when the queue has no room.
	ErrExecutorQueueFull = errors.New("script executor queue full")
)
