package gorawronion

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	// ErrNotList is returned when the value passed to [ComposeAny] is not a
	// slice or an array.
	ErrNotList = errors.New("middleware stack must be a list")

	// ErrNotCallable is returned when an element of the middleware stack is
	// nil or cannot be used as a handler.
	ErrNotCallable = errors.New("middleware must be composed of functions")

	// ErrNextCalledMultipleTimes is the failure produced when a handler calls
	// its continuation more than once.
	ErrNextCalledMultipleTimes = errors.New("next() called multiple times")
)

// ConfigError reports a malformed middleware stack. It is returned at
// construction time, before any handler runs.
type ConfigError struct {
	// Index is the position of the offending element, or -1 when the stack
	// itself is malformed.
	Index int
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Index < 0 {
		return "gorawronion: " + e.Err.Error()
	}
	return fmt.Sprintf("gorawronion: middleware[%d]: %v", e.Index, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ProtocolError is the failure surfaced when a continuation is invoked for a
// position the run has already entered.
type ProtocolError struct {
	// Position is the pipeline position the rejected continuation tried to
	// enter.
	Position int
}

func (e *ProtocolError) Error() string {
	return ErrNextCalledMultipleTimes.Error()
}

func (e *ProtocolError) Is(target error) bool {
	return target == ErrNextCalledMultipleTimes
}

// PanicError wraps a non-error value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("gorawronion: handler panicked: %v", e.Value)
}

// panicError converts a recovered value into the error that travels through
// the failure channel. Error values are passed on untouched.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &PanicError{Value: r, Stack: debug.Stack()}
}
