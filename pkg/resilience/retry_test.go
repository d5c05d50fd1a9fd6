package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("connection reset")
	errPermanent = errors.New("schema mismatch")
)

// fastRetryConfig keeps test backoffs in the millisecond range.
func fastRetryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	cfg.EnableJitter = false
	return cfg
}

func TestRetry_ReturnsFirstSuccess(t *testing.T) {
	attempts := 0
	result, err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) (interface{}, error) {
		attempts++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, attempts)
}

func TestRetry_RecoversAfterTransientFailures(t *testing.T) {
	attempts := 0
	result, err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) (interface{}, error) {
		attempts++
		if attempts < 3 {
			return nil, errTransient
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestRetry_GivesUpWithLastError(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.MaxAttempts = 3

	attempts := 0
	result, err := Retry(context.Background(), cfg, func(ctx context.Context) (interface{}, error) {
		attempts++
		return nil, fmt.Errorf("attempt %d: %w", attempts, errTransient)
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 3, attempts)
	// The final attempt's error comes back unwrapped by the retry loop.
	assert.EqualError(t, err, "attempt 3: connection reset")
	assert.ErrorIs(t, err, errTransient)
}

func TestRetry_WrappedErrorMatchesRetryableList(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.RetryableErrors = []error{errTransient}

	attempts := 0
	_, err := Retry(context.Background(), cfg, func(ctx context.Context) (interface{}, error) {
		attempts++
		return nil, fmt.Errorf("dial tcp: %w", errTransient)
	})

	require.Error(t, err)
	assert.Equal(t, cfg.MaxAttempts, attempts)
}

func TestRetry_UnlistedErrorFailsFast(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.RetryableErrors = []error{errTransient}

	attempts := 0
	result, err := Retry(context.Background(), cfg, func(ctx context.Context) (interface{}, error) {
		attempts++
		return nil, errPermanent
	})

	require.ErrorIs(t, err, errPermanent)
	assert.Nil(t, result)
	assert.Equal(t, 1, attempts)
}

func TestRetry_CheckerOverridesRetryableList(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.MaxAttempts = 3
	cfg.RetryableErrors = []error{errTransient}
	cfg.RetryableChecker = func(err error) bool { return false }

	attempts := 0
	_, err := Retry(context.Background(), cfg, func(ctx context.Context) (interface{}, error) {
		attempts++
		return nil, errTransient
	})

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, attempts, "checker verdict wins even when the list allows a retry")

	cfg.RetryableChecker = func(err error) bool { return true }
	attempts = 0
	_, err = Retry(context.Background(), cfg, func(ctx context.Context) (interface{}, error) {
		attempts++
		return nil, errPermanent
	})

	require.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 3, attempts, "checker verdict wins even when the list would refuse")
}

func TestRetry_ContextErrorsNeverRetried(t *testing.T) {
	for _, ctxErr := range []error{context.Canceled, context.DeadlineExceeded} {
		attempts := 0
		_, err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) (interface{}, error) {
			attempts++
			return nil, fmt.Errorf("query aborted: %w", ctxErr)
		})

		require.ErrorIs(t, err, ctxErr)
		assert.Equal(t, 1, attempts)
	}
}

func TestRetry_PreCancelledContextSkipsOperation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	result, err := Retry(ctx, fastRetryConfig(), func(ctx context.Context) (interface{}, error) {
		attempts++
		return "ok", nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
	assert.Zero(t, attempts)
}

func TestRetry_CancellationAbortsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetryConfig()
	cfg.InitialBackoff = 5 * time.Second
	cfg.MaxBackoff = 5 * time.Second

	attempts := 0
	start := time.Now()
	_, err := Retry(ctx, cfg, func(ctx context.Context) (interface{}, error) {
		attempts++
		cancel()
		return nil, errTransient
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), time.Second, "cancellation must interrupt the backoff sleep")
}

func TestRetry_CoercesMaxAttempts(t *testing.T) {
	for _, max := range []int{0, -5} {
		cfg := fastRetryConfig()
		cfg.MaxAttempts = max

		attempts := 0
		result, err := Retry(context.Background(), cfg, func(ctx context.Context) (interface{}, error) {
			attempts++
			return "ok", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, 1, attempts, "MaxAttempts=%d still runs the operation once", max)
	}
}

func TestCalculateBackoff_DoublesUpToCeiling(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}

	for _, tc := range []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{12, 30 * time.Second},
	} {
		assert.Equal(t, tc.want, calculateBackoff(tc.attempt, cfg), "attempt %d", tc.attempt)
	}
}

func TestCalculateBackoff_JitterStaysUnderExponential(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		EnableJitter:      true,
	}

	seen := make(map[time.Duration]bool)
	for i := 0; i < 20; i++ {
		backoff := calculateBackoff(3, cfg)
		assert.GreaterOrEqual(t, backoff, time.Duration(0))
		assert.LessOrEqual(t, backoff, 4*time.Second)
		seen[backoff] = true
	}
	assert.Greater(t, len(seen), 1, "jitter should vary the delay")
}

func TestAddJitter_Bounds(t *testing.T) {
	for i := 0; i < 20; i++ {
		jittered := addJitter(10 * time.Second)
		assert.GreaterOrEqual(t, jittered, time.Duration(0))
		assert.LessOrEqual(t, jittered, 10*time.Second)
	}

	assert.Equal(t, time.Duration(0), addJitter(0))
	assert.Equal(t, time.Duration(0), addJitter(-time.Second))
}

func TestShouldRetry_NilError(t *testing.T) {
	assert.False(t, shouldRetry(nil, DefaultRetryConfig()))
}

func TestRetryPresets(t *testing.T) {
	def := DefaultRetryConfig()
	assert.Equal(t, 3, def.MaxAttempts)
	assert.True(t, def.EnableJitter)

	cons := ConservativeRetryConfig()
	assert.Equal(t, 2, cons.MaxAttempts)
	assert.Greater(t, cons.InitialBackoff, def.InitialBackoff, "conservative preset spaces attempts further apart")
	assert.Less(t, cons.MaxBackoff, def.MaxBackoff)
}
