package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod/lib/utils"
)

const (
	pollInitInterval = 50 * time.Millisecond
	pollMaxInterval  = 500 * time.Millisecond
)

// Condition is a predicate polled by Until.
type Condition func(ctx context.Context) (bool, error)

// Until polls cond with exponential backoff until it reports true, returns an
// error, or timeout elapses. Errors from cond that are transient are treated as
// "not yet" and polling continues. On timeout the returned error wraps
// ErrWaitTimeout and the last transient error, if any.
func Until(ctx context.Context, timeout time.Duration, what string, cond Condition) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sleep := utils.BackoffSleeper(pollInitInterval, pollMaxInterval, func(d time.Duration) time.Duration {
		return d * 2
	})

	var lastErr error
	for {
		ok, err := cond(ctx)
		switch {
		case err == nil && ok:
			return nil
		case err != nil && !IsTransient(err):
			return err
		case err != nil:
			lastErr = err
		}

		if err := sleep(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				if lastErr != nil {
					return fmt.Errorf("%w: %s: %w", ErrWaitTimeout, what, lastErr)
				}
				return fmt.Errorf("%w: %s", ErrWaitTimeout, what)
			}
			return err
		}
	}
}
