package services

import (
	"context"
	"errors"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
)

// errPending is returned by a poll check that should run again.
var errPending = errors.New("services: not ready")

// errDeadline is returned by poll when the timeout elapsed.
var errDeadline = errors.New("services: deadline exceeded")

// poll runs check every interval until it reports done. It returns
// errDeadline when timeout elapses first, ctx.Err() when ctx ends, and any
// error check returns. A zero timeout allows a single check.
func poll(ctx context.Context, clk clock.Clock, interval, timeout time.Duration,
	check func(ctx context.Context) (bool, error), notify func(attempt int)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = time.Nanosecond
	}
	var fatal error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			done, err := check(ctx)
			if err != nil {
				return err
			}
			if !done {
				return errPending
			}
			return nil
		},
		IsFatalError: func(err error) bool {
			if errors.Is(err, errPending) {
				return false
			}
			fatal = err
			return true
		},
		NotifyFunc: func(_ error, attempt int) {
			if notify != nil {
				notify(attempt)
			}
		},
		Attempts:    -1,
		Delay:       interval,
		MaxDuration: timeout,
		Clock:       clk,
		Stop:        ctx.Done(),
	})
	switch {
	case err == nil:
		return nil
	case retry.IsDurationExceeded(err):
		return errDeadline
	case retry.IsRetryStopped(err):
		return ctx.Err()
	case fatal != nil:
		return fatal
	default:
		return err
	}
}
