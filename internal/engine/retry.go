package engine

import (
	"context"
	"log"
	"time"

	"github.com/councilhq/council/pkg/models"
)

// invokeWithRetry runs fn under the action's retry policy: one initial
// attempt plus policy.Count retries with a fixed delay between attempts.
// Cancellation is observed between attempts so an abort never waits out
// a retry delay.
func invokeWithRetry(ctx context.Context, actionID string, policy models.RetryPolicy, fn func(context.Context) (string, error)) (string, error) {
	attempts := policy.Count + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if attempt < attempts {
			log.Printf("[engine] action %s: attempt %d/%d failed, retrying in %s: %v",
				actionID, attempt, attempts, policy.Delay, err)
			select {
			case <-time.After(policy.Delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	log.Printf("[engine] action %s: retries exhausted after %d attempt(s)", actionID, attempts)
	return "", lastErr
}
