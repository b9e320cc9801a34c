package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRateLimiterBurstThenRefill(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rl := NewRateLimiter()
	rl.now = clock.now
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "1.2.3.4", 3, 3*time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "request %d within burst", i)
	}
	ok, _ := rl.Allow(ctx, "1.2.3.4", 3, 3*time.Second)
	assert.False(t, ok, "fourth request exceeds burst")

	ok, _ = rl.Allow(ctx, "5.6.7.8", 3, 3*time.Second)
	assert.True(t, ok, "keys are independent")

	clock.advance(time.Second)
	ok, _ = rl.Allow(ctx, "1.2.3.4", 3, 3*time.Second)
	assert.True(t, ok, "one token refilled after window/limit")
	ok, _ = rl.Allow(ctx, "1.2.3.4", 3, 3*time.Second)
	assert.False(t, ok)
}

func TestRateLimiterDisabledLimits(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter()
	for i := 0; i < 10; i++ {
		ok, err := rl.Allow(context.Background(), "k", 0, time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 0, rl.Len())
}

func TestRateLimiterSweepsIdleKeys(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rl := NewRateLimiter()
	rl.now = clock.now
	ctx := context.Background()

	_, _ = rl.Allow(ctx, "a", 5, time.Second)
	_, _ = rl.Allow(ctx, "b", 5, time.Second)
	assert.Equal(t, 2, rl.Len())

	clock.advance(idleTTL + time.Second)
	_, _ = rl.Allow(ctx, "c", 5, time.Second)
	assert.Equal(t, 1, rl.Len())
}
