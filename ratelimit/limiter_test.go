package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/sibyl/core"
)

type fakeClock struct {
	current time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.current
}

func (f *fakeClock) Advance(d time.Duration) {
	f.current = f.current.Add(d)
}

func newTestLimiter(t *testing.T, perMinute, perHour int, opts ...Option) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	l, err := New(perMinute, perHour, opts...)
	require.NoError(t, err)
	return l, clock
}

func TestNew(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		l, err := New(60, 600)
		require.NoError(t, err)
		assert.NotNil(t, l)
	})

	t.Run("invalid minute capacity", func(t *testing.T) {
		_, err := New(0, 600)
		assert.Equal(t, ErrInvalidCapacity, err)
	})

	t.Run("invalid hour capacity", func(t *testing.T) {
		_, err := New(60, 0)
		assert.Equal(t, ErrInvalidCapacity, err)
	})
}

func TestCheckBurstThenReject(t *testing.T) {
	// Capacity 6 per minute refills at 0.1 tokens/sec, so one token
	// takes 10 seconds to come back.
	l, clock := newTestLimiter(t, 6, 1000)

	for i := 0; i < 6; i++ {
		require.NoError(t, l.Check("alice", 1), "call %d within capacity", i+1)
	}

	err := l.Check("alice", 1)
	require.Error(t, err)
	rle, ok := core.AsRateLimitError(err)
	require.True(t, ok)
	assert.Equal(t, "minute", rle.Window)
	assert.Equal(t, 10*time.Second, rle.RetryAfter)

	// Waiting the advertised retry-after admits the call.
	clock.Advance(rle.RetryAfter)
	assert.NoError(t, l.Check("alice", 1))
}

func TestCheckHourWindow(t *testing.T) {
	// Minute window is generous; the hour window (3) is the binding one.
	l, _ := newTestLimiter(t, 100, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Check("bob", 1))
	}

	err := l.Check("bob", 1)
	require.Error(t, err)
	rle, ok := core.AsRateLimitError(err)
	require.True(t, ok)
	assert.Equal(t, "hour", rle.Window)
	assert.Equal(t, 20*time.Minute, rle.RetryAfter)
}

func TestCheckRejectionConsumesNothing(t *testing.T) {
	l, _ := newTestLimiter(t, 100, 2)

	require.NoError(t, l.Check("carol", 1))
	require.NoError(t, l.Check("carol", 1))

	// Repeated rejections must not drain the minute window.
	for i := 0; i < 50; i++ {
		err := l.Check("carol", 1)
		require.Error(t, err)
	}

	// A different client is unaffected.
	assert.NoError(t, l.Check("dave", 1))
}

func TestCheckClientsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, 2, 1000)

	require.NoError(t, l.Check("alice", 1))
	require.NoError(t, l.Check("alice", 1))
	require.Error(t, l.Check("alice", 1))

	assert.NoError(t, l.Check("bob", 1))
}

func TestCheckCostValidation(t *testing.T) {
	l, _ := newTestLimiter(t, 5, 1000)

	t.Run("empty client id", func(t *testing.T) {
		assert.Equal(t, ErrEmptyClientId, l.Check("", 1))
	})

	t.Run("cost above capacity", func(t *testing.T) {
		assert.Equal(t, ErrCostExceedsCapacity, l.Check("alice", 6))
	})

	t.Run("multi-token cost", func(t *testing.T) {
		require.NoError(t, l.Check("eve", 5))
		assert.Error(t, l.Check("eve", 1))
	})
}

func TestStaleClientPruning(t *testing.T) {
	l, clock := newTestLimiter(t, 10, 1000, WithStaleAfter(5*time.Minute))

	require.NoError(t, l.Check("alice", 1))
	require.NoError(t, l.Check("bob", 1))
	assert.Equal(t, 2, l.ClientCount())

	// Alice keeps calling; bob goes idle past the staleness threshold.
	clock.Advance(4 * time.Minute)
	require.NoError(t, l.Check("alice", 1))
	clock.Advance(4 * time.Minute)
	require.NoError(t, l.Check("alice", 1))

	assert.Equal(t, 1, l.ClientCount(), "idle client buckets should be collected")
	assert.NoError(t, l.Check("bob", 1), "pruned client starts over with fresh buckets")
}
