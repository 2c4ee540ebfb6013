package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(burst int, interval time.Duration) (*rateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rl := newRateLimiter(RateLimitConfig{Burst: burst, RefillInterval: interval})
	rl.now = clock.now
	rl.lastCheck = clock.t
	return rl, clock
}

func TestRateLimiter_Burst(t *testing.T) {
	req := require.New(t)
	rl, _ := newTestLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		req.True(rl.allow(), "frame %d", i)
	}
	req.False(rl.allow())
}

func TestRateLimiter_Refill(t *testing.T) {
	req := require.New(t)
	rl, clock := newTestLimiter(2, time.Second)

	// Given an empty bucket
	req.True(rl.allow())
	req.True(rl.allow())
	req.False(rl.allow())

	// When half an interval passes, one token is back
	clock.advance(500 * time.Millisecond)
	req.True(rl.allow())
	req.False(rl.allow())

	// Then a long pause never overfills the bucket
	clock.advance(time.Hour)
	req.True(rl.allow())
	req.True(rl.allow())
	req.False(rl.allow())
}

func TestRateLimiter_InvalidConfig(t *testing.T) {
	rl, _ := newTestLimiter(0, 0)

	require.True(t, rl.allow())
	require.False(t, rl.allow())
}
