// Package retry runs an operation under an explicit retry policy.
//
// A Policy names its attempt budget, backoff and the classifier that decides
// which errors are worth another attempt. Errors the classifier rejects are
// returned at once; when the budget is exhausted the last error is returned
// exactly as the operation produced it.
package retry

import (
	"context"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 500 * time.Millisecond
	DefaultBackoff     = 1.0
	DefaultMaxDelay    = 5 * time.Second
)

// Policy describes how an operation is retried. The zero value retries every
// error three times without waiting.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     float64
	MaxDelay    time.Duration

	// Retryable decides whether err is worth another attempt. Nil retries every error.
	Retryable func(err error) bool

	// BeforeRetry runs after failed attempt n (1-based) and before the delay.
	// A hook error does not end the retry: the next attempt still runs and the
	// hook error is reported in Result.HookErr, never in place of Result.Err.
	BeforeRetry func(ctx context.Context, attempt int, err error) error

	// Sleep waits between attempts; tests replace it. Defaults to a timer bound to ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy retries every error three times, 500ms apart.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultDelay,
		Backoff:     DefaultBackoff,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Result reports how an operation fared under a policy.
type Result struct {
	Attempts int
	Err      error
	// HookErr is the last error returned by BeforeRetry, if any.
	HookErr error
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// policy's attempts are used up.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) Result {
	p = p.withDefaults()
	delay := p.Delay

	var res Result
	for {
		res.Attempts++
		res.Err = op(ctx)
		if res.Err == nil {
			return res
		}
		if res.Attempts >= p.MaxAttempts || !p.retryable(res.Err) || ctx.Err() != nil {
			return res
		}

		if p.BeforeRetry != nil {
			if err := p.BeforeRetry(ctx, res.Attempts, res.Err); err != nil {
				res.HookErr = err
			}
		}
		if err := p.Sleep(ctx, delay); err != nil {
			return res
		}
		delay = p.next(delay)
	}
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, Result) {
	var out T
	res := Do(ctx, p, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, res
}

func (p Policy) retryable(err error) bool {
	return p.Retryable == nil || p.Retryable(err)
}

func (p Policy) next(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * p.Backoff)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.Backoff < 1 {
		p.Backoff = 1
	}
	if p.Sleep == nil {
		p.Sleep = sleep
	}
	return p
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
