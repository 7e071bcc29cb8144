// Package bound wraps asynchronous operations with explicit timeouts.
//
// Every LLM agent call and ledger query in the resolution pipeline goes
// through Run; no unbounded wait is permitted.
package bound

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutError reports that a bounded operation exceeded its deadline.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.Timeout)
}

// IsTimeout reports whether err carries a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// Run executes fn under the given timeout. fn receives a context that is
// cancelled at the deadline; an operation that runs past it is abandoned
// (its result is never read) and must release its own resources by honoring
// the context. A deadline hit yields *TimeoutError carrying the operation
// label; any other outcome of fn is propagated unchanged. Cancellation of
// the parent context propagates as the parent's error, not as a timeout.
func Run[T any](ctx context.Context, timeout time.Duration, operation string, fn func(context.Context) (T, error)) (T, error) {
	boundCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	// Buffered so the goroutine can exit even when the result is abandoned.
	done := make(chan outcome, 1)

	go func() {
		value, err := fn(boundCtx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		// fn may observe the deadline itself and return the context error;
		// that is still this operation's timeout, not the caller's.
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil {
			var zero T
			return zero, &TimeoutError{Operation: operation, Timeout: timeout}
		}
		return out.value, out.err
	case <-boundCtx.Done():
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, &TimeoutError{Operation: operation, Timeout: timeout}
	}
}
