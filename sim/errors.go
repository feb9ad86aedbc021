package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when a simulator or model is set up
	// incorrectly, e.g. a logger is added after initialization.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvariantViolation is returned when an event or rate function breaks a
	// model invariant: an event applied to an entity in the wrong state, or a
	// negative or NaN rate. It aborts the run.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrFinished is returned by stepping operations after Finish.
	ErrFinished = errors.New("simulation finished")
)

// LoggingError wraps a failure returned by a logger. Phase is one of
// "start", "periodic", "event" or "end".
type LoggingError struct {
	Phase string
	Err   error
}

func (e *LoggingError) Error() string {
	return fmt.Sprintf("logger failed during %s: %v", e.Phase, e.Err)
}

func (e *LoggingError) Unwrap() error {
	return e.Err
}
