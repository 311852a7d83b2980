package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/plexsphere/platctl/internal/systemd"
)

// Sentinel errors.
var (
	// ErrTimeout matches every error reporting that a wait ran out of time.
	ErrTimeout = errors.New("services: timed out")

	// ErrUnknownService matches *UnknownServiceError.
	ErrUnknownService = errors.New("services: unknown service")
)

// CommandError is returned when the init-system control program exits
// non-zero. It carries the captured stdout, stderr and exit code.
type CommandError = systemd.CommandError

// StartError is returned when a start or restart request is rejected by the
// init system. Err is the underlying *CommandError or D-Bus job error.
type StartError struct {
	Service string
	Unit    string
	Err     error
}

// Error returns the formatted error string.
func (e *StartError) Error() string {
	return fmt.Sprintf("services: start %s (%s): %v", e.Service, e.Unit, e.Err)
}

// Unwrap returns the underlying error.
func (e *StartError) Unwrap() error { return e.Err }

// TimeoutError is returned when a unit did not settle, or its ports did not
// open, within the allowed time.
type TimeoutError struct {
	Service string
	Unit    string
	Op      string
	Timeout time.Duration
}

// Error returns the formatted error string.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("services: %s %s: timed out after %s", e.Op, e.Unit, e.Timeout)
}

// Is matches ErrTimeout.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// DidNotStartError is returned when the CA status endpoint did not report
// "running" before the startup timeout.
type DidNotStartError struct {
	Service    string
	Timeout    time.Duration
	LastStatus string
}

// Error returns the formatted error string.
func (e *DidNotStartError) Error() string {
	return fmt.Sprintf("services: CA did not start in %s", e.Timeout)
}

// Is matches ErrTimeout.
func (e *DidNotStartError) Is(target error) bool { return target == ErrTimeout }

// Unwrap exposes the generic timeout, so errors.As with *TimeoutError
// matches too.
func (e *DidNotStartError) Unwrap() error {
	return &TimeoutError{Service: e.Service, Unit: e.Service, Op: "wait for", Timeout: e.Timeout}
}

// StatusCheckError describes one failed readiness check. It is logged and the
// check is retried; it is never returned to callers.
type StatusCheckError struct {
	URL string
	Err error
}

// Error returns the formatted error string.
func (e *StatusCheckError) Error() string {
	return fmt.Sprintf("check interrupted due to error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StatusCheckError) Unwrap() error { return e.Err }

// UnknownServiceError is returned for a name no handle can be built for.
type UnknownServiceError struct {
	Name string
}

// Error returns the formatted error string.
func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("services: unknown service %q", e.Name)
}

// Is matches ErrUnknownService.
func (e *UnknownServiceError) Is(target error) bool { return target == ErrUnknownService }
