package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/sibyl/core"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	current time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.current
}

func (f *fakeClock) Advance(d time.Duration) {
	f.current = f.current.Add(d)
}

func newTestBreaker(t *testing.T, opts ...Option) (*Breaker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{
		WithClock(clock.Now),
		WithFailureThreshold(3),
		WithSuccessThreshold(2),
		WithRecoveryTimeout(30 * time.Second),
	}, opts...)
	b, err := New("test-dependency", opts...)
	require.NoError(t, err)
	return b, clock
}

func fail(context.Context) error    { return errBoom }
func succeed(context.Context) error { return nil }

func tripOpen(t *testing.T, b *Breaker) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.Error(t, b.Execute(ctx, fail))
	}
	require.Equal(t, Open, b.State())
}

func TestNew(t *testing.T) {
	t.Run("empty name", func(t *testing.T) {
		_, err := New("")
		assert.Equal(t, ErrEmptyName, err)
	})

	t.Run("invalid threshold", func(t *testing.T) {
		_, err := New("dep", WithFailureThreshold(0))
		assert.Equal(t, ErrInvalidThreshold, err)
	})

	t.Run("invalid timeout", func(t *testing.T) {
		_, err := New("dep", WithRecoveryTimeout(0))
		assert.Equal(t, ErrInvalidTimeout, err)
	})

	t.Run("defaults", func(t *testing.T) {
		b, err := New("dep")
		require.NoError(t, err)
		assert.Equal(t, Closed, b.State())
		assert.Equal(t, "dep", b.Name())
	})
}

func TestOpensAtFailureThreshold(t *testing.T) {
	b, _ := newTestBreaker(t)
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, fail))
	require.Error(t, b.Execute(ctx, fail))
	assert.Equal(t, Closed, b.State(), "still below threshold")

	require.Error(t, b.Execute(ctx, fail))
	assert.Equal(t, Open, b.State())
}

func TestOpenRejectsWithoutInvoking(t *testing.T) {
	b, _ := newTestBreaker(t)
	tripOpen(t, b)

	invoked := false
	err := b.Execute(context.Background(), func(context.Context) error {
		invoked = true
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrCircuitOpen)
	assert.False(t, invoked, "wrapped function must not run while open")
}

func TestSuccessDecrementsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(t)
	ctx := context.Background()

	// Two failures, one success, two more failures: still below the
	// threshold of 3 because the success pulled the counter back.
	require.Error(t, b.Execute(ctx, fail))
	require.Error(t, b.Execute(ctx, fail))
	require.NoError(t, b.Execute(ctx, succeed))
	require.Error(t, b.Execute(ctx, fail))
	assert.Equal(t, Closed, b.State())

	require.Error(t, b.Execute(ctx, fail))
	assert.Equal(t, Open, b.State())
}

func TestRecoveryToHalfOpen(t *testing.T) {
	b, clock := newTestBreaker(t)
	tripOpen(t, b)

	clock.Advance(29 * time.Second)
	assert.ErrorIs(t, b.Execute(context.Background(), succeed), core.ErrCircuitOpen)

	clock.Advance(2 * time.Second)
	assert.Equal(t, HalfOpen, b.State())

	invoked := false
	err := b.Execute(context.Background(), func(context.Context) error {
		invoked = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, invoked, "trial call must reach the dependency")
}

func TestHalfOpenClosesAfterConsecutiveSuccesses(t *testing.T) {
	b, clock := newTestBreaker(t)
	tripOpen(t, b)

	clock.Advance(31 * time.Second)
	ctx := context.Background()

	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, HalfOpen, b.State(), "one success is not enough")

	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, Closed, b.State())
}

func TestHalfOpenReopensOnFailure(t *testing.T) {
	b, clock := newTestBreaker(t)
	tripOpen(t, b)

	clock.Advance(31 * time.Second)
	ctx := context.Background()

	require.NoError(t, b.Execute(ctx, succeed))
	require.Error(t, b.Execute(ctx, fail))
	assert.Equal(t, Open, b.State())

	// Re-opening restarts the recovery timer.
	assert.ErrorIs(t, b.Execute(ctx, succeed), core.ErrCircuitOpen)
}

func TestContextCancellationIsNotAFailure(t *testing.T) {
	b, _ := newTestBreaker(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 5; i++ {
		err := b.Execute(ctx, fail)
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, Closed, b.State(), "cancelled calls must not trip the breaker")
}

func TestDo(t *testing.T) {
	b, _ := newTestBreaker(t)
	ctx := context.Background()

	t.Run("returns value on success", func(t *testing.T) {
		got, err := Do(ctx, b, func(context.Context) (string, error) {
			return "hello", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "hello", got)
	})

	t.Run("returns zero value when rejected", func(t *testing.T) {
		tripOpen(t, b)
		got, err := Do(ctx, b, func(context.Context) (string, error) {
			return "hello", nil
		})
		require.ErrorIs(t, err, core.ErrCircuitOpen)
		assert.Equal(t, "", got)
	})
}
