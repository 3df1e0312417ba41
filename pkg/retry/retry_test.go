package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetrier(opts ...Option) *Retrier {
	base := []Option{
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(5 * time.Millisecond),
	}
	return New(append(base, opts...)...)
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := fastRetrier().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := fastRetrier().Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("conflict"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := fastRetrier().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDoUnwrapsAfterLastAttempt(t *testing.T) {
	inner := errors.New("still conflicting")
	calls := 0
	err := fastRetrier().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(inner)
	})

	assert.Equal(t, 3, calls)
	// The marker is stripped so callers see the underlying error.
	require.Equal(t, inner, err)
}

func TestRetryIfOverridesMarker(t *testing.T) {
	conflict := errors.New("serialization failure")
	calls := 0
	r := fastRetrier(WithRetryIf(func(err error) bool {
		return errors.Is(err, conflict)
	}))

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return conflict
	})

	require.ErrorIs(t, err, conflict)
	assert.Equal(t, 3, calls)
}

func TestOnRetryObservesAttempts(t *testing.T) {
	var attempts []int
	r := fastRetrier(WithOnRetry(func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}))

	_ = r.Do(context.Background(), func(ctx context.Context) error {
		return Retryable(errors.New("conflict"))
	})

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := fastRetrier().Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return Retryable(errors.New("conflict"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCalculateDelayIsCapped(t *testing.T) {
	r := New(
		WithInitialDelay(time.Second),
		WithMaxDelay(2*time.Second),
	)

	for attempt := 1; attempt <= 10; attempt++ {
		d := r.calculateDelay(attempt)
		assert.LessOrEqual(t, d, 2*time.Second+2*time.Second/5)
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}
}
