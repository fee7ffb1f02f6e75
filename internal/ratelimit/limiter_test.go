package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances manually and turns sleeps into clock jumps so tests
// never block on wall time.
type fakeClock struct {
	mu  sync.Mutex
	t   time.Time
	cur time.Time
}

func newFakeClock() *fakeClock {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &fakeClock{t: start, cur: start}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

func newTestLimiter(capacity int, rate float64) (*Limiter, *fakeClock) {
	clock := newFakeClock()
	l := New(capacity, rate)
	l.now = clock.now
	l.sleep = clock.sleep
	l.lastRefill = clock.now()
	return l, clock
}

func TestAcquireBurst(t *testing.T) {
	l, _ := newTestLimiter(10, 10)

	// Full bucket allows a burst of exactly capacity
	for i := 0; i < 10; i++ {
		assert.True(t, l.Acquire(false), "acquire %d should succeed", i)
	}
	assert.False(t, l.Acquire(false), "bucket should be empty after burst")
}

func TestNonBlockingDoesNotConsume(t *testing.T) {
	l, clock := newTestLimiter(1, 1)

	require.True(t, l.Acquire(false))
	require.False(t, l.Acquire(false))

	// A failed non-blocking acquire must not eat into the refill
	clock.advance(time.Second)
	assert.True(t, l.Acquire(false))
}

func TestLazyRefill(t *testing.T) {
	l, clock := newTestLimiter(10, 10)

	for i := 0; i < 10; i++ {
		require.True(t, l.Acquire(false))
	}
	require.False(t, l.Acquire(false))

	// 500ms at 10/s refills 5 tokens
	clock.advance(500 * time.Millisecond)
	granted := 0
	for l.Acquire(false) {
		granted++
	}
	assert.Equal(t, 5, granted)
}

func TestRefillNeverExceedsCapacity(t *testing.T) {
	l, clock := newTestLimiter(10, 10)

	clock.advance(time.Hour)
	granted := 0
	for l.Acquire(false) {
		granted++
	}
	assert.Equal(t, 10, granted, "idle time must not accumulate beyond capacity")
}

func TestBlockingAcquireWaitsForDeficit(t *testing.T) {
	l, clock := newTestLimiter(1, 1)

	require.True(t, l.Acquire(true))

	start := clock.now()
	assert.True(t, l.Acquire(true))
	waited := clock.now().Sub(start)

	// Deficit of one token at 1/s means roughly a one second wait
	assert.InDelta(t, time.Second.Seconds(), waited.Seconds(), 0.05)

	stats := l.GetStats()
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.DelayedRequests)
}

func TestThroughputBound(t *testing.T) {
	// Property: successful acquires over any window never exceed
	// capacity + elapsed*rate.
	l, clock := newTestLimiter(10, 10)

	granted := 0
	for i := 0; i < 100; i++ {
		if l.Acquire(false) {
			granted++
		}
		clock.advance(10 * time.Millisecond)
	}

	elapsed := 1.0 // 100 * 10ms
	maxAllowed := 10 + int(elapsed*10) + 1
	assert.LessOrEqual(t, granted, maxAllowed)
}

func TestConcurrentAcquireNeverOversubscribes(t *testing.T) {
	l, _ := newTestLimiter(5, 0.001) // effectively no refill during the test

	var granted int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Acquire(false) {
				atomic.AddInt64(&granted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), granted, "concurrent acquires must not oversubscribe the bucket")
}

func TestTimeUntilNextSlot(t *testing.T) {
	l, clock := newTestLimiter(1, 1)

	assert.Equal(t, time.Duration(0), l.TimeUntilNextSlot())

	require.True(t, l.Acquire(false))
	assert.Equal(t, time.Second, l.TimeUntilNextSlot())

	clock.advance(500 * time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, l.TimeUntilNextSlot())

	clock.advance(500 * time.Millisecond)
	assert.Equal(t, time.Duration(0), l.TimeUntilNextSlot())
}

func TestReset(t *testing.T) {
	l, _ := newTestLimiter(3, 1)

	for i := 0; i < 3; i++ {
		require.True(t, l.Acquire(false))
	}
	require.False(t, l.Acquire(false))

	l.Reset()
	assert.True(t, l.Acquire(false))
	assert.Equal(t, int64(1), l.GetStats().TotalRequests)
}

func TestAdaptiveBackoffAndRestore(t *testing.T) {
	clock := newFakeClock()
	a := NewAdaptive(10, 10, zerolog.Nop())
	a.Limiter.now = clock.now
	a.Limiter.sleep = clock.sleep
	a.Limiter.lastRefill = clock.now()

	require.Equal(t, 10.0, a.Rate())

	a.RecordRateLimitHit()
	assert.Equal(t, 5.0, a.Rate(), "rate should halve on rate-limit signal")

	a.RecordRateLimitHit()
	assert.Equal(t, 2.5, a.Rate())
	assert.Equal(t, int64(2), a.RateLimitHits())

	// Inside the cooldown the reduced rate holds
	clock.advance(DefaultCooldown / 2)
	a.Acquire(false)
	assert.Equal(t, 2.5, a.Rate())

	// Past the cooldown the original rate is restored
	clock.advance(DefaultCooldown)
	a.Acquire(false)
	assert.Equal(t, 10.0, a.Rate())
}

func TestAdaptiveRateFloor(t *testing.T) {
	a := NewAdaptive(10, 10, zerolog.Nop())

	for i := 0; i < 10; i++ {
		a.RecordRateLimitHit()
	}
	assert.Equal(t, 1.0, a.Rate(), "rate must never drop below the floor")
}
