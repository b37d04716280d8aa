package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/echoscribe/echoscribe-api/internal/provider"
	"github.com/echoscribe/echoscribe-api/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxAttempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestNewExecutorValidation(t *testing.T) {
	tests := []struct {
		name   string
		policy retry.Policy
	}{
		{
			name:   "zero max attempts",
			policy: retry.Policy{MaxAttempts: 0, InitialBackoff: time.Millisecond, Multiplier: 2},
		},
		{
			name:   "zero initial backoff",
			policy: retry.Policy{MaxAttempts: 3, InitialBackoff: 0, Multiplier: 2},
		},
		{
			name:   "multiplier below one",
			policy: retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, Multiplier: 0.5},
		},
		{
			name: "negative attempt timeout",
			policy: retry.Policy{
				MaxAttempts:    3,
				InitialBackoff: time.Millisecond,
				Multiplier:     2,
				AttemptTimeout: -time.Second,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := retry.NewExecutor(tc.policy)
			assert.Error(t, err)
		})
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	exec, err := retry.NewExecutor(fastPolicy(3))
	require.NoError(t, err)

	calls := 0
	err = exec.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls, "a successful call should not be repeated")
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	exec, err := retry.NewExecutor(fastPolicy(3))
	require.NoError(t, err)

	calls := 0
	err = exec.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return provider.Transient("openai", errors.New("503 service unavailable"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoExhaustsBudgetOnPersistentTransientFailure(t *testing.T) {
	exec, err := retry.NewExecutor(fastPolicy(3))
	require.NoError(t, err)

	cause := errors.New("connection reset")
	calls := 0
	err = exec.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return provider.Transient("openai", cause)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls, "budget of 3 means exactly 3 attempts")

	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, cause, "final attempt error should be preserved")
	assert.True(t, retry.IsExhausted(err))
}

func TestDoStopsImmediatelyOnPermanentError(t *testing.T) {
	exec, err := retry.NewExecutor(fastPolicy(5))
	require.NoError(t, err)

	permErr := provider.Permanent("openai", errors.New("400 bad request"))
	calls := 0
	err = exec.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return permErr
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "permanent failures must not be retried")
	assert.False(t, retry.IsExhausted(err))
	assert.True(t, provider.IsPermanent(err))
}

func TestDoRetriesRateLimitDenials(t *testing.T) {
	exec, err := retry.NewExecutor(fastPolicy(3))
	require.NoError(t, err)

	calls := 0
	err = exec.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &provider.RateLimitError{Provider: "gemini", RetryAfter: time.Millisecond}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls, "rate limit denials should be retried after backoff")
}

func TestDoAppliesPerAttemptTimeout(t *testing.T) {
	policy := fastPolicy(2)
	policy.AttemptTimeout = 10 * time.Millisecond
	exec, err := retry.NewExecutor(policy)
	require.NoError(t, err)

	calls := 0
	err = exec.Do(context.Background(), func(ctx context.Context) error {
		calls++
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls, "a timed out attempt counts against the budget")
	assert.True(t, retry.IsExhausted(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoStopsWhenCallerContextEnds(t *testing.T) {
	policy := retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: 200 * time.Millisecond,
		Multiplier:     2.0,
	}
	exec, err := retry.NewExecutor(policy)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	calls := 0
	err = exec.Do(ctx, func(ctx context.Context) error {
		calls++
		return provider.Transient("openai", errors.New("flaky"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "cancellation during backoff should stop further attempts")
	assert.False(t, retry.IsExhausted(err))
	assert.ErrorIs(t, err, context.Canceled)
}
