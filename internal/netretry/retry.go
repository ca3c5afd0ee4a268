// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package netretry retries operations that fail because the network or
// TLS session underneath them broke, and nothing else.
package netretry

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"
)

var logger = loggo.GetLogger("helpcenterbackup.netretry")

const (
	// DefaultAttempts is the total number of tries, the first included.
	DefaultAttempts = 5

	// DefaultDelay is the wait before the first retry.
	DefaultDelay = time.Second

	// DefaultMaxDelay caps the exponential backoff.
	DefaultMaxDelay = 30 * time.Second
)

// Args holds the parameters for Call.
type Args struct {
	// Func is the operation to run.
	Func func() error

	// IsRetryable decides whether a failure is worth another attempt.
	// IsTransient is used when nil.
	IsRetryable func(error) bool

	// Attempts is the total number of tries, the first included.
	Attempts int

	// Delay is the wait before the first retry. Each later wait doubles
	// until it reaches MaxDelay.
	Delay    time.Duration
	MaxDelay time.Duration

	Clock clock.Clock

	// Notify, if set, is told about every failed attempt.
	Notify func(err error, attempt int)
}

// Validate checks the arguments.
func (a Args) Validate() error {
	if a.Func == nil {
		return errors.NotValidf("missing Func")
	}
	if a.Attempts < 1 {
		return errors.NotValidf("Attempts %d", a.Attempts)
	}
	if a.Delay <= 0 {
		return errors.NotValidf("Delay %v", a.Delay)
	}
	if a.MaxDelay != 0 && a.MaxDelay < a.Delay {
		return errors.NotValidf("MaxDelay %v shorter than Delay %v", a.MaxDelay, a.Delay)
	}
	if a.Clock == nil {
		return errors.NotValidf("missing Clock")
	}
	return nil
}

// ExhaustedError is returned by Call when every attempt failed with a
// retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

// Error implements error.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the error from the last attempt.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Call runs args.Func until it succeeds, fails with an error that is not
// retryable, runs out of attempts or ctx is done. A non-retryable error
// is returned as is; running out of attempts yields *ExhaustedError.
func Call(ctx context.Context, args Args) error {
	if err := args.Validate(); err != nil {
		return errors.Trace(err)
	}
	isRetryable := args.IsRetryable
	if isRetryable == nil {
		isRetryable = IsTransient
	}
	maxDelay := args.MaxDelay
	if maxDelay == 0 {
		maxDelay = args.Delay
	}

	var attempts int
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			attempts++
			return args.Func()
		},
		IsFatalError: func(err error) bool {
			return !isRetryable(err)
		},
		NotifyFunc: func(err error, attempt int) {
			if attempt < args.Attempts {
				logger.Warningf("attempt %d of %d failed, retrying: %v", attempt, args.Attempts, err)
			}
			if args.Notify != nil {
				args.Notify(err, attempt)
			}
		},
		Attempts:    args.Attempts,
		Delay:       args.Delay,
		MaxDelay:    maxDelay,
		BackoffFunc: doubling(args.Delay, maxDelay),
		Clock:       args.Clock,
		Stop:        ctx.Done(),
	})
	switch {
	case err == nil:
		return nil
	case retry.IsAttemptsExceeded(err):
		return &ExhaustedError{Attempts: attempts, Err: retry.LastError(err)}
	case ctx.Err() != nil:
		return errors.Annotatef(ctx.Err(), "stopped after %d attempts", attempts)
	}
	return err
}

// doubling returns a backoff that waits delay before the first retry and
// twice the previous wait before each later one, never more than
// maxDelay. It counts its own waits.
func doubling(delay, maxDelay time.Duration) func(time.Duration, int) time.Duration {
	next := delay
	return func(time.Duration, int) time.Duration {
		wait := next
		if next < maxDelay {
			next *= 2
			if next > maxDelay {
				next = maxDelay
			}
		}
		return wait
	}
}
