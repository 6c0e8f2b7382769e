package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Idle keep-alive connections of the genai HTTP client in gemini_test.go.
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

var fastPolicy = RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond}

func TestRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), fastPolicy, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	for k := 0; k < fastPolicy.MaxRetries; k++ {
		t.Run(fmt.Sprintf("fails %d times", k), func(t *testing.T) {
			calls := 0
			result, err := Retry(context.Background(), fastPolicy, func(ctx context.Context) (int, error) {
				calls++
				if calls <= k {
					return 0, errors.New("transient")
				}
				return 42, nil
			})

			require.NoError(t, err)
			assert.Equal(t, 42, result)
			assert.Equal(t, k+1, calls)
		})
	}
}

func TestRetry_AlwaysFailsPropagatesLastError(t *testing.T) {
	calls := 0
	var lastErr error
	_, err := Retry(context.Background(), fastPolicy, func(ctx context.Context) (int, error) {
		calls++
		lastErr = fmt.Errorf("attempt %d failed", calls)
		return 0, lastErr
	})

	assert.Equal(t, fastPolicy.MaxRetries+1, calls)
	assert.Same(t, lastErr, err)
}

func TestRetry_ZeroRetries(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryPolicy{}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	})

	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, calls)
}

func TestRetry_DelayDoubles(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, InitialDelay: 10 * time.Millisecond}
	var stamps []time.Time
	_, _ = Retry(context.Background(), policy, func(ctx context.Context) (int, error) {
		stamps = append(stamps, time.Now())
		return 0, errors.New("boom")
	})

	require.Len(t, stamps, 4)
	expected := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
	for i, want := range expected {
		got := stamps[i+1].Sub(stamps[i])
		assert.GreaterOrEqual(t, got, want, "wait before retry %d", i+1)
	}
}

func TestRetry_PermanentErrorStopsImmediately(t *testing.T) {
	cause := errors.New("bad request")
	calls := 0
	_, err := Retry(context.Background(), fastPolicy, func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(cause)
	})

	assert.Equal(t, 1, calls)
	assert.Same(t, cause, err)
	assert.False(t, IsPermanent(err))
}

func TestRetry_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxRetries: 3, InitialDelay: time.Hour}

	calls := 0
	_, err := Retry(ctx, policy, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("boom")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}

func TestIsPermanent_Wrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", Permanent(errors.New("inner")))
	assert.True(t, IsPermanent(err))
	assert.False(t, IsPermanent(errors.New("plain")))
}
