package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsWithoutRetry(t *testing.T) {
	e := New(Config{Name: "test", MaxRetries: 3})
	calls := 0
	err := e.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateClosed, e.State())
}

func TestDo_RetriesRetryableError(t *testing.T) {
	e := New(Config{Name: "test", MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})
	calls := 0
	err := e.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("timeout talking to upstream")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_DoesNotRetryPermanentError(t *testing.T) {
	e := New(Config{Name: "test", MaxRetries: 3, BaseDelay: time.Millisecond})
	calls := 0
	permanent := errors.New("invalid api key")
	err := e.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return permanent
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_OpensCircuitAfterThreshold(t *testing.T) {
	e := New(Config{
		Name:             "test",
		MaxRetries:       0,
		FailureThreshold: 2,
		OpenDuration:     50 * time.Millisecond,
		BaseDelay:        time.Millisecond,
	})
	fail := func(ctx context.Context) error { return errors.New("500 internal error") }

	require.Error(t, e.Do(context.Background(), fail))
	require.Error(t, e.Do(context.Background(), fail))
	assert.Equal(t, StateOpen, e.State())

	err := e.Do(context.Background(), func(ctx context.Context) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StateClosed, e.State())
	require.NoError(t, e.Do(context.Background(), func(ctx context.Context) error { return nil }))
}

func TestDefaultIsRetryable(t *testing.T) {
	assert.True(t, DefaultIsRetryable(errors.New("429 too many requests")))
	assert.True(t, DefaultIsRetryable(errors.New("ECONNRESET")))
	assert.False(t, DefaultIsRetryable(errors.New("invalid argument")))
	assert.False(t, DefaultIsRetryable(context.DeadlineExceeded))
}

func TestMetrics(t *testing.T) {
	e := New(Config{Name: "test", MaxRetries: 1, BaseDelay: time.Millisecond})
	require.NoError(t, e.Do(context.Background(), func(ctx context.Context) error { return nil }))
	m := e.Metrics()
	assert.Equal(t, int64(1), m.Successes)
	assert.Equal(t, int64(1), m.Attempts)
}
