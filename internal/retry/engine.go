package retry

import (
	"context"
	"time"

	"github.com/yanun0323/errors"

	"main/pkg/exception"
)

// Attempt describes one retry decision that resulted in a re-invocation.
type Attempt struct {
	Number int
	Delay  time.Duration
	Err    error
}

// Observer receives an event per retry, after the delay has been decided
// but before it elapses.
type Observer func(Attempt)

// Engine gates re-invocation of fallible operations. It performs none of
// the operation's side effects itself; it only decides whether and when
// to call again.
type Engine struct {
	observe Observer
	sleep   func(context.Context, time.Duration) error
}

func New(observe Observer) *Engine {
	return &Engine{
		observe: observe,
		sleep:   sleepContext,
	}
}

// Do runs op and retries per policy. The error returned is the last
// operation error; a context cancellation during the delay wraps it.
func (e *Engine) Do(ctx context.Context, policy Policy, op func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		effective := policy.merged(exception.OverrideOf(err))
		code, name := exception.CodeOf(err), exception.NameOf(err)
		if exception.IsPermanent(err) ||
			!effective.included(code, name) ||
			attempt > effective.MaxAttempts ||
			effective.excluded(code, name) {
			return err
		}

		delay := effective.delay(attempt)
		if e.observe != nil {
			e.observe(Attempt{Number: attempt, Delay: delay, Err: err})
		}
		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return errors.Wrapf(err, "retry canceled: %v", sleepErr)
		}
	}
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, e *Engine, policy Policy, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := e.Do(ctx, policy, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
