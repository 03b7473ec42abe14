package fn

import (
	"context"
	"math/rand"
	"time"
)

// RetryOpts configures retry behavior. MaxAttempts counts the first call, so
// 1 means no retry.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
	// RetryIf reports whether err is worth another attempt. Nil retries
	// every error.
	RetryIf func(error) bool
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error)
}

// DefaultRetry is a single attempt with backoff settings ready for callers
// that raise MaxAttempts.
var DefaultRetry = RetryOpts{
	MaxAttempts: 1,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     10 * time.Second,
	Jitter:      true,
}

// Retry calls f up to MaxAttempts times with exponential backoff.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	var result Result[T]
	wait := opts.InitialWait

	for attempt := 1; ; attempt++ {
		result = f(ctx)
		err := result.Error()
		if err == nil || attempt >= opts.MaxAttempts {
			return result
		}
		if opts.RetryIf != nil && !opts.RetryIf(err) {
			return result
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err)
		}

		sleep := wait
		if opts.Jitter {
			sleep = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if opts.MaxWait > 0 && sleep > opts.MaxWait {
			sleep = opts.MaxWait
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Err[T](ctx.Err())
		case <-timer.C:
		}

		wait *= 2
		if opts.MaxWait > 0 && wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
}
