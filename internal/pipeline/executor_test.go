package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastProfile keeps retry tests quick.
func fastProfile(attempts int) Profile {
	return Profile{
		Timeout:           time.Second,
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestExecute_SuccessFirstAttempt(t *testing.T) {
	var calls atomic.Int32
	fn := func(ctx context.Context, in string) (string, error) {
		calls.Add(1)
		return in + "-done", nil
	}

	result := Execute(context.Background(), fastProfile(3), WorkItem[string]{ID: "a", Payload: "work"}, fn)

	require.True(t, result.OK())
	assert.Equal(t, "a", result.ItemID)
	assert.Equal(t, "work-done", result.Value)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecute_PermanentErrorFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	fn := func(ctx context.Context, in string) (string, error) {
		calls.Add(1)
		return "", errors.New("malformed input")
	}

	result := Execute(context.Background(), fastProfile(3), WorkItem[string]{ID: "a", Payload: "x"}, fn)

	require.False(t, result.OK())
	assert.Equal(t, FailurePermanent, result.Failure.Kind)
	assert.Contains(t, result.Failure.Message, "malformed input")
	assert.Equal(t, int32(1), calls.Load(), "permanent errors must not be retried")
}

func TestExecute_TransientErrorRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	fn := func(ctx context.Context, in string) (int, error) {
		if calls.Add(1) < 3 {
			return 0, Transient(errors.New("rate limited"))
		}
		return 42, nil
	}

	result := Execute(context.Background(), fastProfile(3), WorkItem[string]{ID: "a", Payload: "x"}, fn)

	require.True(t, result.OK())
	assert.Equal(t, 42, result.Value)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecute_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	fn := func(ctx context.Context, in string) (string, error) {
		calls.Add(1)
		return "", Transient(errors.New("still down"))
	}

	result := Execute(context.Background(), fastProfile(3), WorkItem[string]{ID: "a", Payload: "x"}, fn)

	require.False(t, result.OK())
	assert.Equal(t, FailureTransient, result.Failure.Kind)
	assert.Contains(t, result.Failure.Message, "retries exhausted after 3 attempts")
	assert.Contains(t, result.Failure.Message, "still down")
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecute_AttemptTimeoutIsTransient(t *testing.T) {
	profile := fastProfile(2)
	profile.Timeout = 10 * time.Millisecond

	fn := func(ctx context.Context, in string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	result := Execute(context.Background(), profile, WorkItem[string]{ID: "slow", Payload: "x"}, fn)

	require.False(t, result.OK())
	assert.Equal(t, FailureTransient, result.Failure.Kind)
}

func TestExecute_ParentCancellationStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	profile := fastProfile(5)
	profile.InitialBackoff = 500 * time.Millisecond

	var calls atomic.Int32
	fn := func(ctx context.Context, in string) (string, error) {
		calls.Add(1)
		cancel()
		return "", Transient(errors.New("flaky"))
	}

	start := time.Now()
	result := Execute(ctx, profile, WorkItem[string]{ID: "a", Payload: "x"}, fn)

	require.False(t, result.OK())
	assert.Equal(t, FailureTransient, result.Failure.Kind)
	assert.Equal(t, int32(1), calls.Load())
	assert.Less(t, time.Since(start), 400*time.Millisecond, "cancellation should cut the backoff short")
}

func TestExecute_CancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	fn := func(ctx context.Context, in string) (string, error) {
		calls.Add(1)
		return "never", nil
	}

	result := Execute(ctx, fastProfile(3), WorkItem[string]{ID: "a", Payload: "x"}, fn)

	require.False(t, result.OK())
	assert.Equal(t, FailureTransient, result.Failure.Kind)
	assert.Equal(t, int32(0), calls.Load())
}

func TestExecute_ZeroProfileGetsDefaults(t *testing.T) {
	fn := func(ctx context.Context, in string) (string, error) {
		deadline, ok := ctx.Deadline()
		require.True(t, ok, "attempt context must carry a deadline")
		assert.WithinDuration(t, time.Now().Add(DefaultCheapTimeout), deadline, time.Second)
		return "ok", nil
	}

	result := Execute(context.Background(), Profile{}, WorkItem[string]{ID: "a", Payload: "x"}, fn)
	require.True(t, result.OK())
}

func TestProfile_WithDefaults(t *testing.T) {
	p := Profile{}.withDefaults()

	assert.Equal(t, DefaultCheapTimeout, p.Timeout)
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	assert.Equal(t, DefaultInitialBackoff, p.InitialBackoff)
	assert.Equal(t, DefaultMaxBackoff, p.MaxBackoff)
	assert.Equal(t, DefaultBackoffFactor, p.BackoffMultiplier)
}

func TestExpensiveProfile(t *testing.T) {
	p := ExpensiveProfile()

	assert.Equal(t, DefaultExpensiveTimeout, p.Timeout)
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	assert.Greater(t, p.InitialBackoff, CheapProfile().InitialBackoff)
}

func TestExecute_CancelInsideAttemptClassifiesTransient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	fn := func(ctx context.Context, in string) (string, error) {
		calls.Add(1)
		cancel()
		return "", fmt.Errorf("reading response: %w", context.Canceled)
	}

	result := Execute(ctx, fastProfile(3), WorkItem[string]{ID: "a", Payload: "work"}, fn)

	require.False(t, result.OK())
	// Same kind as an item whose cancel was observed before the
	// attempt started.
	assert.Equal(t, FailureTransient, result.Failure.Kind)
	assert.Equal(t, int32(1), calls.Load())
}
