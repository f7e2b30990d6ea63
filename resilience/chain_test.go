package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/sibyl/breaker"
	"github.com/poiesic/sibyl/cache"
	"github.com/poiesic/sibyl/core"
)

var errPrimary = errors.New("primary down")

func newTestChain(t *testing.T, opts ...ChainOption[string]) *Chain[string] {
	t.Helper()
	b, err := breaker.New("test-dependency", breaker.WithFailureThreshold(100))
	require.NoError(t, err)
	opts = append([]ChainOption[string]{
		WithMaxAttempts[string](3),
		WithBackoff[string](time.Millisecond, 5*time.Millisecond),
	}, opts...)
	c, err := NewChain(b, opts...)
	require.NoError(t, err)
	return c
}

func TestNewChain(t *testing.T) {
	t.Run("nil breaker", func(t *testing.T) {
		_, err := NewChain[string](nil)
		assert.Equal(t, ErrBreakerRequired, err)
	})

	t.Run("invalid attempts", func(t *testing.T) {
		b, err := breaker.New("dep")
		require.NoError(t, err)
		_, err = NewChain(b, WithMaxAttempts[string](0))
		assert.Equal(t, ErrInvalidAttempts, err)
	})
}

func TestRunPrimarySucceedsAfterRetries(t *testing.T) {
	c := newTestChain(t)

	calls := 0
	primary := func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errPrimary
		}
		return "recovered", nil
	}

	got, mode, err := c.Run(context.Background(), "", primary)
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, core.ModeFull, mode, "a retried success is still full service")
	assert.Equal(t, 3, calls)
}

func TestRunFirstFallbackIsDegraded(t *testing.T) {
	c := newTestChain(t)

	primary := func(context.Context) (string, error) { return "", errPrimary }
	fallback := func(context.Context) (string, error) { return "from fallback", nil }

	got, mode, err := c.Run(context.Background(), "", primary, fallback)
	require.NoError(t, err)
	assert.Equal(t, "from fallback", got)
	assert.Equal(t, core.ModeDegraded, mode)
}

func TestRunLaterFallbackIsMinimal(t *testing.T) {
	c := newTestChain(t)

	primary := func(context.Context) (string, error) { return "", errPrimary }
	first := func(context.Context) (string, error) { return "", errors.New("also down") }
	second := func(context.Context) (string, error) { return "bare minimum", nil }

	got, mode, err := c.Run(context.Background(), "", primary, first, second)
	require.NoError(t, err)
	assert.Equal(t, "bare minimum", got)
	assert.Equal(t, core.ModeMinimal, mode)
}

func TestRunAllFallbacksFailReturnsPrimaryError(t *testing.T) {
	c := newTestChain(t)

	primary := func(context.Context) (string, error) { return "", errPrimary }
	fallback := func(context.Context) (string, error) { return "", errors.New("also down") }

	_, mode, err := c.Run(context.Background(), "", primary, fallback)
	require.Error(t, err)
	assert.ErrorIs(t, err, errPrimary, "the primary's error must surface, not the fallback's")
	assert.Equal(t, core.ModeMinimal, mode)
}

func TestRunRespectsAttemptBudget(t *testing.T) {
	c := newTestChain(t)

	calls := 0
	primary := func(context.Context) (string, error) {
		calls++
		return "", errPrimary
	}

	_, _, err := c.Run(context.Background(), "", primary)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRunNonRetryableAbortsImmediately(t *testing.T) {
	c := newTestChain(t, WithRetryable[string](func(err error) bool {
		return !errors.Is(err, errPrimary)
	}))

	calls := 0
	primary := func(context.Context) (string, error) {
		calls++
		return "", errPrimary
	}

	_, _, err := c.Run(context.Background(), "", primary)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-retryable failure must not be retried")
}

func TestRunOpenCircuitSkipsToFallback(t *testing.T) {
	b, err := breaker.New("flaky",
		breaker.WithFailureThreshold(1),
		breaker.WithRecoveryTimeout(time.Hour))
	require.NoError(t, err)
	c, err := NewChain(b,
		WithMaxAttempts[string](5),
		WithBackoff[string](time.Millisecond, 5*time.Millisecond))
	require.NoError(t, err)

	// Trip the breaker.
	_, _, err = c.Run(context.Background(), "", func(context.Context) (string, error) {
		return "", errPrimary
	})
	require.Error(t, err)
	require.Equal(t, breaker.Open, b.State())

	calls := 0
	primary := func(context.Context) (string, error) {
		calls++
		return "never", nil
	}
	fallback := func(context.Context) (string, error) { return "stale copy", nil }

	got, mode, err := c.Run(context.Background(), "", primary, fallback)
	require.NoError(t, err)
	assert.Equal(t, 0, calls, "open circuit must not invoke the primary")
	assert.Equal(t, "stale copy", got)
	assert.Equal(t, core.ModeDegraded, mode)
}

func TestRunCache(t *testing.T) {
	results, err := cache.New[core.ID, string](8, time.Minute)
	require.NoError(t, err)
	c := newTestChain(t, WithCache[string](results, time.Minute))

	calls := 0
	primary := func(context.Context) (string, error) {
		calls++
		return "computed", nil
	}

	t.Run("success is written back", func(t *testing.T) {
		got, mode, err := c.Run(context.Background(), "query-1", primary)
		require.NoError(t, err)
		assert.Equal(t, "computed", got)
		assert.Equal(t, core.ModeFull, mode)
		assert.Equal(t, 1, calls)
	})

	t.Run("hit bypasses the primary entirely", func(t *testing.T) {
		got, mode, err := c.Run(context.Background(), "query-1", primary)
		require.NoError(t, err)
		assert.Equal(t, "computed", got)
		assert.Equal(t, core.ModeFull, mode)
		assert.Equal(t, 1, calls, "cached run must not call the primary")
	})

	t.Run("empty key disables caching", func(t *testing.T) {
		_, _, err := c.Run(context.Background(), "", primary)
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})
}

func TestRunCancelledContextStopsFallbacks(t *testing.T) {
	c := newTestChain(t)

	ctx, cancel := context.WithCancel(context.Background())
	primary := func(context.Context) (string, error) {
		cancel()
		return "", errPrimary
	}
	fallbackCalls := 0
	fallback := func(context.Context) (string, error) {
		fallbackCalls++
		return "late", nil
	}

	_, _, err := c.Run(ctx, "", primary, fallback)
	require.Error(t, err)
	assert.Equal(t, 0, fallbackCalls, "fallbacks must not run after cancellation")
}
