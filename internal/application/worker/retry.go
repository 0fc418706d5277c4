package worker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// CallWithRetry invokes fn until it succeeds or the wall-clock budget is
// spent, doubling the delay after each failure from 1s up to a 300s cap.
// Sleeps abort immediately on context cancellation, surfacing ShutdownError
// so the worker re-queues the job instead of charging it a genuine failure.
func CallWithRetry(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.Multiplier = 2
	policy.MaxInterval = 5 * time.Minute
	policy.MaxElapsedTime = timeout
	policy.RandomizationFactor = 0

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ShutdownError{})
		}
		return fn(ctx)
	}

	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	if err != nil && ctx.Err() != nil {
		return ShutdownError{}
	}
	return err
}
