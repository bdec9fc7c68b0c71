package apperr

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"time"
)

// RetryPolicy retries an operation with exponential backoff and jitter.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration

	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns a value in [0, 1).
	Jitter func() float64
}

// DefaultRetry is the policy used for client-side mutations.
var DefaultRetry = RetryPolicy{
	MaxAttempts: 3,
	Base:        time.Second,
	Cap:         10 * time.Second,
}

// Retry runs fn under DefaultRetry.
func Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	return DefaultRetry.Do(ctx, fn)
}

// Do calls fn until it succeeds, returns an error that should not be
// retried, or MaxAttempts is reached. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !ShouldRetry(err) || attempt == attempts-1 {
			return err
		}
		if serr := sleep(ctx, p.Backoff(attempt)); serr != nil {
			return err
		}
	}
	return err
}

// Backoff returns the delay before retry number attempt (zero based):
// base*2^attempt capped at Cap, with the upper half randomized.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.Base << attempt
	if d <= 0 || (p.Cap > 0 && d > p.Cap) {
		d = p.Cap
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = rand.Float64
	}
	half := d / 2
	return half + time.Duration(jitter()*float64(half))
}

// ShouldRetry reports whether err is worth another attempt. Requests
// rejected with 400, 401 or 404 and errors marked non-retryable are not.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch StatusOf(err) {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound:
		return false
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return true
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
