package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_SucceedsOnThirdAttempt(t *testing.T) {
	var waits []time.Duration
	policy := Policy{
		Attempts:    3,
		MinInterval: 2 * time.Millisecond,
		MaxInterval: 8 * time.Millisecond,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			waits = append(waits, wait)
		},
	}

	calls := 0
	got, err := Value(context.Background(), policy, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("temporary")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	require.Len(t, waits, 2)
	for _, wait := range waits {
		assert.GreaterOrEqual(t, wait, policy.MinInterval)
		assert.LessOrEqual(t, wait, policy.MaxInterval)
	}
}

func TestDo_ReturnsLastErrorAfterExhaustion(t *testing.T) {
	policy := Policy{Attempts: 3, MinInterval: time.Millisecond, MaxInterval: time.Millisecond}
	calls := 0
	last := errors.New("third failure")

	err := Do(context.Background(), policy, func(ctx context.Context) error {
		calls++
		if calls == 3 {
			return last
		}
		return errors.New("earlier failure")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, last)
	assert.Equal(t, 3, calls)
}

func TestDo_FirstAttemptSuccessDoesNotWait(t *testing.T) {
	retries := 0
	policy := Policy{
		Attempts:    5,
		MinInterval: time.Second,
		MaxInterval: time.Second,
		OnRetry:     func(int, time.Duration, error) { retries++ },
	}
	require.NoError(t, Do(context.Background(), policy, func(ctx context.Context) error { return nil }))
	assert.Zero(t, retries)
}

func TestDo_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{Attempts: 10, MinInterval: time.Hour, MaxInterval: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, policy, func(ctx context.Context) error {
			calls++
			return errors.New("boom")
		})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestPolicy_IntervalWithinBounds(t *testing.T) {
	policy := Policy{Attempts: 1, MinInterval: 10 * time.Millisecond, MaxInterval: 20 * time.Millisecond}
	for i := 0; i < 1000; i++ {
		wait := policy.Interval()
		if wait < policy.MinInterval || wait > policy.MaxInterval {
			t.Fatalf("interval %s out of bounds", wait)
		}
	}

	fixed := Policy{MinInterval: 5 * time.Millisecond, MaxInterval: time.Millisecond}
	assert.Equal(t, 5*time.Millisecond, fixed.Interval())
}
