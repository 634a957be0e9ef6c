// Package retrier implements bounded retries with exponential backoff and an
// independent per-attempt timeout, so a hung call can never stall the loop.
package retrier

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultBaseDelay      = 1 * time.Second
	defaultMaxDelay       = 30 * time.Second
	defaultMultiplier     = 2.0
	defaultMaxAttempts    = 3
	defaultJitter         = 0.1
	defaultAttemptTimeout = 5 * time.Second
)

// Retrier runs an operation up to a fixed number of attempts, sleeping an
// exponentially growing delay between them.
type Retrier struct {
	baseDelay      time.Duration
	maxDelay       time.Duration
	multiplier     float64
	maxAttempts    int
	jitter         float64
	attemptTimeout time.Duration
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithBaseDelay sets the delay before the first retry.
func WithBaseDelay(d time.Duration) Option {
	return func(r *Retrier) {
		r.baseDelay = d
	}
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(r *Retrier) {
		r.maxDelay = d
	}
}

// WithMultiplier sets the backoff growth factor.
func WithMultiplier(m float64) Option {
	return func(r *Retrier) {
		r.multiplier = m
	}
}

// WithMaxAttempts sets the total number of attempts, including the first.
func WithMaxAttempts(n int) Option {
	return func(r *Retrier) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithJitter sets the jitter factor (0.0 to 1.0).
func WithJitter(j float64) Option {
	return func(r *Retrier) {
		r.jitter = j
	}
}

// WithAttemptTimeout bounds every single attempt with its own deadline,
// independent of the retry loop. Zero disables the per-attempt timeout.
func WithAttemptTimeout(d time.Duration) Option {
	return func(r *Retrier) {
		r.attemptTimeout = d
	}
}

// New creates a Retrier with default values and optional overrides.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		baseDelay:      defaultBaseDelay,
		maxDelay:       defaultMaxDelay,
		multiplier:     defaultMultiplier,
		maxAttempts:    defaultMaxAttempts,
		jitter:         defaultJitter,
		attemptTimeout: defaultAttemptTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Do runs fn until it succeeds, attempts are exhausted, or ctx is cancelled.
// The last attempt's error is returned on exhaustion.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	delay := r.baseDelay

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			jitter := (rand.Float64()*2 - 1) * r.jitter * float64(delay)
			sleep := time.Duration(float64(delay) + jitter)
			if sleep < 0 {
				sleep = 0
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}

			delay = time.Duration(float64(delay) * r.multiplier)
			if delay > r.maxDelay {
				delay = r.maxDelay
			}
		}

		err = r.runAttempt(ctx, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return err
}

func (r *Retrier) runAttempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.attemptTimeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()
	return fn(attemptCtx)
}

// DoWithData runs fn with retries and returns its value.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}
