// Package retrier wraps transient RPC failures in exponential backoff.
// Market snapshot reads hit public endpoints that rate-limit and flap, so
// every on-chain call in this module goes through a Retrier.
package retrier

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second
	defaultFactor     = 2.0
	defaultMaxRetries = 5
	defaultJitter     = 0.1
)

// Retrier retries a failing call with exponentially growing, jittered delays.
type Retrier struct {
	baseDelay  time.Duration
	maxDelay   time.Duration
	factor     float64
	maxRetries int
	jitter     float64
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithBaseDelay sets the delay before the first retry.
func WithBaseDelay(d time.Duration) Option {
	return func(r *Retrier) { r.baseDelay = d }
}

// WithMaxDelay caps the delay between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(r *Retrier) { r.maxDelay = d }
}

// WithFactor sets the delay growth factor.
func WithFactor(f float64) Option {
	return func(r *Retrier) { r.factor = f }
}

// WithMaxRetries sets how many retries follow the initial attempt.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) { r.maxRetries = n }
}

// WithJitter sets the random delay spread as a fraction of the delay.
func WithJitter(j float64) Option {
	return func(r *Retrier) { r.jitter = j }
}

// New creates a Retrier with the given overrides applied to the defaults.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
		factor:     defaultFactor,
		maxRetries: defaultMaxRetries,
		jitter:     defaultJitter,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do runs fn until it succeeds, the retry budget is exhausted, or ctx is
// cancelled. The last error from fn is returned; a cancelled context wins
// over it.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt >= r.maxRetries {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.delay(attempt)):
		}
	}
}

// delay computes the sleep before retry number attempt (0-based), jittered
// symmetrically around the exponential value.
func (r *Retrier) delay(attempt int) time.Duration {
	d := float64(r.baseDelay)
	for i := 0; i < attempt; i++ {
		d *= r.factor
		if d >= float64(r.maxDelay) {
			d = float64(r.maxDelay)
			break
		}
	}

	d += (rand.Float64()*2 - 1) * r.jitter * d
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// DoWithData is Do for calls that return a value alongside the error.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = fn(ctx)
		return callErr
	})
	return result, err
}
