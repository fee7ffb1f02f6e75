package ratelimit

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AdaptiveLimiter wraps a Limiter and backs off when the server pushes back.
// A 403/429 signal halves the refill rate for a cooldown window; once the
// window passes the original rate is restored on the next acquire.
type AdaptiveLimiter struct {
	*Limiter

	mu            sync.Mutex
	initialRate   float64
	minRate       float64
	cooldown      time.Duration
	cooldownUntil time.Time
	rateLimitHits int64
	log           zerolog.Logger
}

// DefaultCooldown is how long a reduced rate stays in effect after a
// rate-limit rejection before the full rate is restored.
const DefaultCooldown = 30 * time.Second

// NewAdaptive creates an adaptive limiter around the given base configuration.
func NewAdaptive(capacity int, refillRate float64, log zerolog.Logger) *AdaptiveLimiter {
	l := New(capacity, refillRate)
	return &AdaptiveLimiter{
		Limiter:     l,
		initialRate: l.Rate(),
		minRate:     1,
		cooldown:    DefaultCooldown,
		log:         log.With().Str("component", "rate_limiter").Logger(),
	}
}

// Acquire restores the full rate if the cooldown has expired, then delegates
// to the underlying token bucket.
func (a *AdaptiveLimiter) Acquire(blocking bool) bool {
	a.maybeRestore()
	return a.Limiter.Acquire(blocking)
}

// RecordRateLimitHit registers a 429/403 from the server. The refill rate is
// halved (never below minRate) and the cooldown window restarts.
func (a *AdaptiveLimiter) RecordRateLimitHit() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.rateLimitHits++
	a.cooldownUntil = a.Limiter.now().Add(a.cooldown)

	current := a.Limiter.Rate()
	reduced := current / 2
	if reduced < a.minRate {
		reduced = a.minRate
	}
	if reduced < current {
		a.Limiter.setRate(reduced)
		a.log.Warn().
			Float64("rate", reduced).
			Dur("cooldown", a.cooldown).
			Msg("Rate limit hit, backing off")
	}
}

// RateLimitHits returns how many rate-limit rejections have been recorded.
func (a *AdaptiveLimiter) RateLimitHits() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rateLimitHits
}

func (a *AdaptiveLimiter) maybeRestore() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cooldownUntil.IsZero() || a.Limiter.now().Before(a.cooldownUntil) {
		return
	}

	if a.Limiter.Rate() < a.initialRate {
		a.Limiter.setRate(a.initialRate)
		a.log.Info().Float64("rate", a.initialRate).Msg("Rate limit restored")
	}
	a.cooldownUntil = time.Time{}
}
