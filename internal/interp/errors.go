package interp

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotInitialized is returned when the gateway is used before Host.Initialize.
	ErrNotInitialized = errors.New("interpreter not initialized")

	// ErrClosed is returned after Host.Close.
	ErrClosed = errors.New("interpreter closed")

	// ErrReentrantLock is returned when WithLock is called from inside a body
	// that already holds the execution lock. The lock is not reentrant.
	ErrReentrantLock = errors.New("execution lock is already held by this call chain")

	// ErrSearchPathsSealed is returned when a new search path is added after
	// the first interpreter execution.
	ErrSearchPathsSealed = errors.New("search paths are sealed after the first execution")

	// ErrRuntimeReleased is returned when a Runtime is used after its WithLock body returned.
	ErrRuntimeReleased = errors.New("runtime used outside of its execution lock")

	// ErrEvalInFlight is returned by Eval while an evaluation whose caller
	// gave up is still running.
	ErrEvalInFlight = errors.New("a previous evaluation is still running")
)

// InitError reports that the interpreter environment could not start.
// The host stays uninitialized so Initialize may be retried.
type InitError struct {
	Reason string
	Err    error
}

func (e *InitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("interpreter init failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("interpreter init failed: %s", e.Reason)
}

func (e *InitError) Unwrap() error { return e.Err }

// ModuleResolutionError reports that a module could not be found or loaded
// from the configured search paths.
type ModuleResolutionError struct {
	Module      string
	SearchPaths []string
	Reason      string
	Err         error
}

func (e *ModuleResolutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %q", e.Module)
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.SearchPaths) > 0 {
		fmt.Fprintf(&b, " (searched: %s)", strings.Join(e.SearchPaths, ", "))
	}
	return b.String()
}

func (e *ModuleResolutionError) Unwrap() error { return e.Err }

// IsRecoverable reports whether err leaves the interpreter usable for the next call.
// Init failures are fatal until Initialize is retried; everything else is per-call.
func IsRecoverable(err error) bool {
	var initErr *InitError
	if errors.As(err, &initErr) {
		return false
	}
	return !errors.Is(err, ErrNotInitialized) && !errors.Is(err, ErrClosed)
}
