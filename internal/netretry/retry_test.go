// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package netretry_test

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/url"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/helpcenter-backup/internal/netretry"
)

type retrySuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&retrySuite{})

var errReset = &net.OpError{Op: "write", Net: "tcp", Err: syscall.ECONNRESET}

func fastArgs(f func() error) netretry.Args {
	return netretry.Args{
		Func:     f,
		Attempts: 5,
		Delay:    time.Millisecond,
		MaxDelay: 4 * time.Millisecond,
		Clock:    clock.WallClock,
	}
}

func (s *retrySuite) TestSucceedsOnLastAttempt(c *gc.C) {
	calls := 0
	err := netretry.Call(context.Background(), fastArgs(func() error {
		calls++
		if calls < 5 {
			return errReset
		}
		return nil
	}))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(calls, gc.Equals, 5)
}

func (s *retrySuite) TestGivesUpAfterAttempts(c *gc.C) {
	calls := 0
	var notified []int
	args := fastArgs(func() error {
		calls++
		return errReset
	})
	args.Notify = func(err error, attempt int) {
		notified = append(notified, attempt)
	}

	err := netretry.Call(context.Background(), args)
	c.Check(calls, gc.Equals, 5)
	c.Assert(len(notified) >= 4, jc.IsTrue)
	c.Check(notified[:4], jc.DeepEquals, []int{1, 2, 3, 4})

	var exhausted *netretry.ExhaustedError
	c.Assert(errors.As(err, &exhausted), jc.IsTrue)
	c.Check(exhausted.Attempts, gc.Equals, 5)
	c.Check(exhausted.Err, gc.Equals, errReset)
	c.Check(err, gc.ErrorMatches, `giving up after 5 attempts: write tcp: .*`)
}

func (s *retrySuite) TestNonRetryableErrorReturnsAtOnce(c *gc.C) {
	calls := 0
	denied := errors.New("403 forbidden")
	err := netretry.Call(context.Background(), fastArgs(func() error {
		calls++
		return denied
	}))
	c.Check(errors.Cause(err), gc.Equals, denied)
	c.Check(calls, gc.Equals, 1)
}

func (s *retrySuite) TestCustomRetryablePredicate(c *gc.C) {
	calls := 0
	flaky := errors.New("flaky")
	args := fastArgs(func() error {
		calls++
		if calls < 3 {
			return flaky
		}
		return nil
	})
	args.IsRetryable = func(err error) bool {
		return err == flaky
	}
	err := netretry.Call(context.Background(), args)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(calls, gc.Equals, 3)
}

func (s *retrySuite) TestStopsWhenContextDone(c *gc.C) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	args := fastArgs(func() error {
		calls++
		cancel()
		return errReset
	})
	args.Delay = time.Minute
	args.MaxDelay = time.Minute

	err := netretry.Call(ctx, args)
	c.Check(calls, gc.Equals, 1)
	c.Check(errors.Is(err, context.Canceled), jc.IsTrue)
}

// attemptTimes runs Call with args against a test clock, stepping the
// clock through each of waits, and returns the clock time of every
// attempt. The clock is stopped one millisecond short of each wait
// first, so an attempt made early is recorded at the wrong time.
func attemptTimes(c *gc.C, args netretry.Args, waits []time.Duration) ([]time.Time, error) {
	clk := testclock.NewClock(time.Date(2024, 3, 7, 5, 0, 0, 0, time.UTC))
	attempts := make(chan time.Time, len(waits)+1)
	f := args.Func
	args.Func = func() error {
		attempts <- clk.Now()
		return f()
	}
	args.Clock = clk

	result := make(chan error, 1)
	go func() {
		result <- netretry.Call(context.Background(), args)
	}()
	for i, wait := range waits {
		c.Logf("wait %d: %v", i, wait)
		err := clk.WaitAdvance(wait-time.Millisecond, testing.LongWait, 1)
		c.Assert(err, jc.ErrorIsNil)
		clk.Advance(time.Millisecond)
	}

	var err error
	select {
	case err = <-result:
	case <-time.After(testing.LongWait):
		c.Fatalf("Call did not return")
	}
	close(attempts)
	var times []time.Time
	for t := range attempts {
		times = append(times, t)
	}
	return times, err
}

func gaps(times []time.Time) []time.Duration {
	var out []time.Duration
	for i := 1; i < len(times); i++ {
		out = append(out, times[i].Sub(times[i-1]))
	}
	return out
}

func (s *retrySuite) TestBackoffDoubles(c *gc.C) {
	args := netretry.Args{
		Func:     func() error { return errReset },
		Attempts: netretry.DefaultAttempts,
		Delay:    netretry.DefaultDelay,
		MaxDelay: netretry.DefaultMaxDelay,
	}
	waits := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	times, err := attemptTimes(c, args, waits)

	var exhausted *netretry.ExhaustedError
	c.Assert(errors.As(err, &exhausted), jc.IsTrue)
	c.Check(exhausted.Attempts, gc.Equals, 5)
	c.Check(gaps(times), jc.DeepEquals, waits)
}

func (s *retrySuite) TestBackoffCapped(c *gc.C) {
	args := netretry.Args{
		Func:     func() error { return errReset },
		Attempts: 6,
		Delay:    time.Second,
		MaxDelay: 5 * time.Second,
	}
	waits := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	times, err := attemptTimes(c, args, waits)

	var exhausted *netretry.ExhaustedError
	c.Assert(errors.As(err, &exhausted), jc.IsTrue)
	c.Check(exhausted.Attempts, gc.Equals, 6)
	c.Check(gaps(times), jc.DeepEquals, waits)
}

func (s *retrySuite) TestBackoffSucceedsAfterWaits(c *gc.C) {
	calls := 0
	args := netretry.Args{
		Func: func() error {
			calls++
			if calls < 3 {
				return errReset
			}
			return nil
		},
		Attempts: netretry.DefaultAttempts,
		Delay:    netretry.DefaultDelay,
		MaxDelay: netretry.DefaultMaxDelay,
	}
	waits := []time.Duration{time.Second, 2 * time.Second}
	times, err := attemptTimes(c, args, waits)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(gaps(times), jc.DeepEquals, waits)
}

func (s *retrySuite) TestDoubling(c *gc.C) {
	for i, test := range []struct {
		delay, maxDelay time.Duration
		expect          []time.Duration
	}{{
		delay:    time.Second,
		maxDelay: 30 * time.Second,
		expect: []time.Duration{
			time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
			16 * time.Second, 30 * time.Second, 30 * time.Second,
		},
	}, {
		delay:    3 * time.Second,
		maxDelay: 3 * time.Second,
		expect:   []time.Duration{3 * time.Second, 3 * time.Second, 3 * time.Second},
	}, {
		delay:    100 * time.Millisecond,
		maxDelay: 250 * time.Millisecond,
		expect:   []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 250 * time.Millisecond},
	}} {
		c.Logf("test %d", i)
		backoff := netretry.Doubling(test.delay, test.maxDelay)
		var got []time.Duration
		for attempt := range test.expect {
			// The arguments are ignored.
			got = append(got, backoff(time.Hour, attempt+7))
		}
		c.Check(got, jc.DeepEquals, test.expect)
	}
}

func (s *retrySuite) TestValidate(c *gc.C) {
	for i, test := range []struct {
		mutate func(*netretry.Args)
		expect string
	}{{
		mutate: func(a *netretry.Args) { a.Func = nil },
		expect: `missing Func not valid`,
	}, {
		mutate: func(a *netretry.Args) { a.Attempts = 0 },
		expect: `Attempts 0 not valid`,
	}, {
		mutate: func(a *netretry.Args) { a.Delay = 0 },
		expect: `Delay 0s not valid`,
	}, {
		mutate: func(a *netretry.Args) { a.MaxDelay = time.Microsecond },
		expect: `MaxDelay 1µs shorter than Delay 1ms not valid`,
	}, {
		mutate: func(a *netretry.Args) { a.Clock = nil },
		expect: `missing Clock not valid`,
	}} {
		c.Logf("test %d", i)
		args := fastArgs(func() error { return nil })
		test.mutate(&args)
		err := netretry.Call(context.Background(), args)
		c.Check(err, gc.ErrorMatches, test.expect)
		c.Check(errors.Is(err, errors.NotValid), jc.IsTrue)
	}
}

type causer struct {
	cause error
}

func (e causer) Error() string { return "wrapped: " + e.cause.Error() }
func (e causer) Cause() error  { return e.cause }

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func (s *retrySuite) TestIsTransient(c *gc.C) {
	for i, test := range []struct {
		err       error
		transient bool
	}{
		{nil, false},
		{errors.New("boom"), false},
		{errReset, true},
		{syscall.ECONNREFUSED, true},
		{syscall.ENOENT, false},
		{io.ErrUnexpectedEOF, true},
		{errors.Annotate(io.EOF, "reading response"), true},
		{tls.RecordHeaderError{Msg: "first record does not look like a TLS handshake"}, true},
		{tls.AlertError(40), true},
		{timeoutError{}, true},
		{causer{cause: errReset}, true},
		{causer{cause: errors.New("not found")}, false},
		{&url.Error{Op: "Put", URL: "https://objects/c/o", Err: errReset}, true},
		{&url.Error{Op: "Put", URL: "https://objects/c/o", Err: x509.UnknownAuthorityError{}}, false},
		{&url.Error{Op: "Put", URL: "https://objects/c/o", Err: context.Canceled}, false},
	} {
		c.Logf("test %d: %v", i, test.err)
		c.Check(netretry.IsTransient(test.err), gc.Equals, test.transient)
	}
}
