// Package waitutil provides bounded polling against external readiness
// signals (docker daemon, container health endpoints). Exhausting the retry
// budget is a hard failure, never a retry-forever loop.
package waitutil

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when the condition never held within the budget.
var ErrExhausted = errors.New("condition not met within retry budget")

// Condition probes an external signal once. Returning (true, nil) stops the
// poll; a non-nil error aborts immediately.
type Condition func(ctx context.Context) (bool, error)

// Poll invokes cond up to maxAttempts times, sleeping interval between
// attempts. The first attempt runs immediately.
func Poll(ctx context.Context, interval time.Duration, maxAttempts int, cond Condition) error {
	if maxAttempts < 1 {
		return fmt.Errorf("poll: maxAttempts must be at least 1, got %d", maxAttempts)
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	return fmt.Errorf("%w after %d attempts", ErrExhausted, maxAttempts)
}
