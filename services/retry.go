package services

import (
	"context"
	"log/slog"
	"time"
)

// Retryer re-runs platform calls that failed only because the platform was
// throttling. Any other failure is returned to the caller on the spot.
type Retryer struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Log         *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryer(maxAttempts int, baseDelay time.Duration, log *slog.Logger) *Retryer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retryer{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Log:         log,
		sleep:       sleepCtx,
	}
}

// Do runs fn up to MaxAttempts times. The delay doubles after each throttled
// attempt; the last throttle error comes back unchanged when attempts run out.
func (r *Retryer) Do(ctx context.Context, op string, fn func() error) error {
	delay := r.BaseDelay
	var err error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !IsRateLimited(err) {
			return err
		}
		if attempt == r.MaxAttempts {
			break
		}
		r.Log.Warn("🔁 rate limited, backing off", "op", op, "attempt", attempt, "delay", delay)
		if serr := r.sleep(ctx, delay); serr != nil {
			return serr
		}
		delay *= 2
	}
	return err
}

// CallWithRetry wraps a value-returning platform call in the retry policy.
func CallWithRetry[T any](ctx context.Context, r *Retryer, op string, fn func() (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, op, func() error {
		var ferr error
		out, ferr = fn()
		return ferr
	})
	return out, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
