// Package retry runs fallible remote calls with a bounded number of attempts and a
// randomized wait between them.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	// Attempts is the total number of invocations, including the first one.
	Attempts    int
	MinInterval time.Duration
	MaxInterval time.Duration
	// OnRetry, when set, is called before every wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultPolicy is used when a zero Policy is supplied.
var DefaultPolicy = Policy{
	Attempts:    3,
	MinInterval: 500 * time.Millisecond,
	MaxInterval: 3 * time.Second,
}

func (p Policy) normalize() Policy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultPolicy.Attempts
	}
	if p.MinInterval < 0 {
		p.MinInterval = 0
	}
	if p.MaxInterval < p.MinInterval {
		p.MaxInterval = p.MinInterval
	}
	return p
}

// Interval draws a wait uniformly at random from [MinInterval, MaxInterval].
func (p Policy) Interval() time.Duration {
	p = p.normalize()
	span := int64(p.MaxInterval - p.MinInterval)
	if span <= 0 {
		return p.MinInterval
	}
	return p.MinInterval + time.Duration(rand.Int64N(span+1))
}

// Do invokes op until it succeeds or the attempt budget is exhausted, in which case
// the last failure is returned. Context cancellation is never retried.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	p = p.normalize()

	var (
		attempt int
		lastErr error
	)
	backoff := goretry.WithMaxRetries(uint64(p.Attempts-1), goretry.BackoffFunc(func() (time.Duration, bool) {
		wait := p.Interval()
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, lastErr)
		}
		return wait, false
	}))

	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return goretry.RetryableError(err)
	})
	if err != nil && lastErr != nil && errors.Is(err, lastErr) && attempt >= p.Attempts {
		return fmt.Errorf("failed after %d attempts: %w", attempt, lastErr)
	}
	return err
}

// Value is Do for operations producing a result.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, func(ctx context.Context) error {
		value, err := op(ctx)
		if err != nil {
			return err
		}
		out = value
		return nil
	})
	return out, err
}
