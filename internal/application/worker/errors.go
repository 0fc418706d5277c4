package worker

import (
	"context"
	"errors"
	"fmt"
)

// ShutdownFailureMessage is recorded on jobs interrupted by worker shutdown.
// The job re-enters pending through the normal retry path so another worker
// can pick it up.
const ShutdownFailureMessage = "worker shutdown during execution"

// ShutdownError indicates a handler was aborted by cooperative shutdown
// rather than by a fault of its own.
type ShutdownError struct{}

func (ShutdownError) Error() string { return "shutdown requested" }

// IsShutdown reports whether err comes from cooperative cancellation: either
// an explicit ShutdownError or a context cancelled by the signal handler.
func IsShutdown(err error) bool {
	var shutdown ShutdownError
	return errors.As(err, &shutdown) || errors.Is(err, context.Canceled)
}

// PanicError indicates a panic occurred during handler execution. The panic
// is converted to a normal handler failure so the retry policy applies; the
// stack trace is logged, not stored.
type PanicError struct {
	Value      any
	StackTrace string
}

func (e PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// IsPanic reports whether the error wraps a recovered panic.
func IsPanic(err error) bool {
	var panicErr PanicError
	return errors.As(err, &panicErr)
}
