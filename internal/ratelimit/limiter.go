// Package ratelimit provides a token bucket rate limiter for EDGAR API requests.
// The SEC enforces a hard ceiling of 10 requests per second; exceeding it gets
// the client IP blocked, so the check-and-decrement must be atomic across
// concurrent callers.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultMaxRequestsPerSecond is the SEC's published rate limit.
// This is an external contract, not a tunable default.
const DefaultMaxRequestsPerSecond = 10

// Stats holds rate limiter performance counters.
type Stats struct {
	TotalRequests   int64         `json:"total_requests"`
	DelayedRequests int64         `json:"delayed_requests"`
	TotalDelay      time.Duration `json:"total_delay_ns"`
	CurrentTokens   float64       `json:"current_tokens"`
	LastRequestAt   time.Time     `json:"last_request_at"`
}

// Limiter is a token bucket rate limiter. Tokens refill continuously at
// refillRate per second up to capacity; refill is computed lazily at acquire
// time from elapsed wall time, so no background goroutine is needed.
type Limiter struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
	stats      Stats

	// Test hooks. Default to time.Now and time.Sleep.
	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a limiter with the given capacity and refill rate (tokens/sec).
// The bucket starts full, allowing an initial burst up to capacity.
func New(capacity int, refillRate float64) *Limiter {
	if capacity <= 0 {
		capacity = DefaultMaxRequestsPerSecond
	}
	if refillRate <= 0 {
		refillRate = DefaultMaxRequestsPerSecond
	}

	l := &Limiter{
		capacity:   float64(capacity),
		refillRate: refillRate,
		tokens:     float64(capacity),
		now:        time.Now,
		sleep:      time.Sleep,
	}
	l.lastRefill = l.now()
	return l
}

// NewDefault creates a limiter configured for the SEC's 10/s limit.
func NewDefault() *Limiter {
	return New(DefaultMaxRequestsPerSecond, DefaultMaxRequestsPerSecond)
}

// Acquire obtains permission to make one request. With blocking=true it
// sleeps until a token is available and always returns true; with
// blocking=false it returns immediately, reporting whether a token was
// consumed.
func (l *Limiter) Acquire(blocking bool) bool {
	l.mu.Lock()

	for {
		l.refill()

		if l.tokens >= 1 {
			l.tokens--
			l.stats.TotalRequests++
			l.stats.LastRequestAt = l.now()
			l.stats.CurrentTokens = l.tokens
			l.mu.Unlock()
			return true
		}

		if !blocking {
			l.mu.Unlock()
			return false
		}

		// Sleep off the deficit outside the lock so other callers can
		// hand back rate-limit signals or take the non-blocking path.
		wait := time.Duration((1 - l.tokens) / l.refillRate * float64(time.Second))
		l.stats.DelayedRequests++
		l.stats.TotalDelay += wait
		l.mu.Unlock()

		l.sleep(wait)

		l.mu.Lock()
		// Loop re-checks with the lock held: another caller may have
		// consumed the refilled token while we slept.
	}
}

// refill adds tokens for the elapsed time since the last refill.
// Caller must hold l.mu.
func (l *Limiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	l.tokens += elapsed * l.refillRate
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
	l.lastRefill = now
}

// setRate changes the refill rate, used by the adaptive limiter.
// Pending tokens are refilled at the old rate first so a rate change
// never retroactively grants or revokes tokens.
func (l *Limiter) setRate(rate float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	l.refillRate = rate
}

// Rate returns the current refill rate in tokens per second.
func (l *Limiter) Rate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refillRate
}

// GetStats returns a snapshot of the limiter counters.
func (l *Limiter) GetStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	s := l.stats
	s.CurrentTokens = l.tokens
	return s
}

// Reset refills the bucket and clears counters. Useful in tests and when
// switching API contexts.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tokens = l.capacity
	l.lastRefill = l.now()
	l.stats = Stats{}
}

// TimeUntilNextSlot estimates how long until a token will be available.
// Returns 0 if a token is available now.
func (l *Limiter) TimeUntilNextSlot() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		return 0
	}
	return time.Duration((1 - l.tokens) / l.refillRate * float64(time.Second))
}
