// Package retry runs an operation with exponential backoff and full jitter.
// It is used for calls to external systems that fail transiently, such as a
// warehouse query or the first ping of a shared annotation store.
package retry

import (
	"context"
	"errors"
	"log"
	"math"
	"math/rand"
	"time"
)

// Policy configures retries. The zero value makes a single attempt.
type Policy struct {
	// MaxRetries is the number of attempts after the first.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// New returns a policy with maxRetries retries (default 3), a 1s base delay
// and a 30s cap.
func New(maxRetries int) Policy {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return Policy{
		MaxRetries: maxRetries,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, the context is
// done, or the retries are used up. name labels the retry log lines.
func (p Policy) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.delay(attempt)
			log.Printf("[retry] %s: attempt %d/%d after %v (waiting %s)", name, attempt, p.MaxRetries, lastErr, delay)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return lastErr
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctx.Err() != nil {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// delay is random(0, min(MaxDelay, BaseDelay * 2^(attempt-1))) with a small
// floor so retries never busy-loop.
func (p Policy) delay(attempt int) time.Duration {
	exp := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if p.MaxDelay > 0 && exp > float64(p.MaxDelay) {
		exp = float64(p.MaxDelay)
	}
	jittered := time.Duration(rand.Float64() * exp)

	floor := 100 * time.Millisecond
	if p.BaseDelay < floor {
		floor = p.BaseDelay
	}
	if jittered < floor {
		jittered = floor
	}
	return jittered
}
