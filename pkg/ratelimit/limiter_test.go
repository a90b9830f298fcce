package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestTokenBucket(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	tb := NewTokenBucket(5, time.Second)
	tb.now = clock.Now
	tb.lastRefill = clock.Now()

	for i := 0; i < 5; i++ {
		assert.True(t, tb.Allow(), "token %d", i+1)
	}
	assert.False(t, tb.Allow())
	assert.Equal(t, 0, tb.Remaining())

	clock.Advance(time.Second)
	assert.True(t, tb.Allow())
	assert.Equal(t, 4, tb.Remaining())

	tb.tokens = 0
	tb.Reset()
	assert.Equal(t, tb.capacity, tb.Remaining())
}

func TestSlidingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	sw := NewSlidingWindow(3, time.Second)
	sw.now = clock.Now

	for i := 0; i < 3; i++ {
		assert.True(t, sw.Allow(), "request %d", i+1)
	}
	assert.False(t, sw.Allow())

	clock.Advance(500 * time.Millisecond)
	assert.False(t, sw.Allow())

	clock.Advance(500 * time.Millisecond)
	assert.True(t, sw.Allow())

	sw.Reset()
	assert.Empty(t, sw.requests)
}

func TestWaitReturnsWhenAllowed(t *testing.T) {
	sw := NewPerMinute(1)
	require.NoError(t, sw.Wait(context.Background()))

	tb := NewTokenBucket(1, time.Hour)
	require.NoError(t, tb.Wait(context.Background()))
}

func TestWaitHonoursContext(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	require.True(t, sw.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sw.Wait(ctx), context.DeadlineExceeded)

	tb := NewTokenBucket(1, time.Hour)
	require.True(t, tb.Allow())

	ctx2, cancel2 := context.WithCancel(context.Background())
	cancel2()
	assert.ErrorIs(t, tb.Wait(ctx2), context.Canceled)
}
