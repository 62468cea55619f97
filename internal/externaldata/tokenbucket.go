package externaldata

import (
	"sync"
	"time"
)

// TokenBucket rate-limits one provider: capacity tokens, refilled at
// refillRate tokens/sec, with a buffer fraction that throttles just before
// exhaustion to smooth bursts.
type TokenBucket struct {
	mu           sync.Mutex
	capacity     float64
	refillRate   float64
	buffer       float64
	tokens       float64
	lastRefill   time.Time
}

// NewTokenBucket returns a full TokenBucket.
func NewTokenBucket(capacity, refillRate, buffer float64, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		refillRate: refillRate,
		buffer:     buffer,
		tokens:     capacity,
		lastRefill: now,
	}
}

func (b *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// TryConsume refills the bucket for elapsed time, then deducts n tokens if
// available. Returns whether the consumption succeeded and whether the
// caller is now inside the soft-throttle buffer zone (remaining tokens
// below buffer·capacity), a signal to induce a small smoothing delay.
func (b *TokenBucket) TryConsume(n float64, now time.Time) (consumed bool, throttled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	if b.tokens < n {
		return false, true
	}
	b.tokens -= n
	throttled = b.tokens < b.buffer*b.capacity
	return true, throttled
}

// Remaining reports the current token count without consuming, refilling
// first so callers see an up-to-date value.
func (b *TokenBucket) Remaining(now time.Time) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(now)
	return b.tokens
}
