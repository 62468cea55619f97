package externaldata

import (
	"time"

	"github.com/ajitpratap0/marketoracle/internal/config"
)

// BuildProviders constructs one ProviderEntry per configured provider,
// wiring config.ProviderConfig's cache/rate-limit/circuit-breaker/retry
// specs into the concrete Cache/TokenBucket/gobreaker/RetryPolicy types.
// A provider whose BaseURL is empty gets a nil Client, so Fetcher treats it
// as "not configured" per the decision order's step (3).
func BuildProviders(cfg map[string]config.ProviderConfig, now time.Time) (map[string]*ProviderEntry, error) {
	out := make(map[string]*ProviderEntry, len(cfg))
	for name, pc := range cfg {
		cache, err := NewCache(pc.MaxCacheSize, EvictionPolicy(pc.EvictionPolicy), true, 1024)
		if err != nil {
			return nil, err
		}

		entry := &ProviderEntry{
			Name:     name,
			Cache:    cache,
			Bucket:   NewTokenBucket(float64(pc.RateLimit.Capacity), pc.RateLimit.RefillPerSec, pc.RateLimit.SoftThrottleAt, now),
			Breaker:  NewBreaker(name, BreakerSpec{MaxFailures: pc.CircuitBreaker.MaxFailures, OpenTimeout: pc.CircuitBreaker.OpenTimeout, HalfOpenReqs: pc.CircuitBreaker.HalfOpenReqs}),
			Retry:    RetryPolicy{MaxAttempts: pc.Retry.MaxAttempts, BaseDelay: time.Duration(pc.Retry.BaseDelayMs) * time.Millisecond, MaxDelay: time.Duration(pc.Retry.MaxDelayMs) * time.Millisecond},
			TTL:      time.Duration(pc.TTLSeconds) * time.Second,
			StaleTTL: time.Duration(pc.StaleTTLSeconds) * time.Second,
		}
		if pc.BaseURL != "" {
			entry.Client = NewHTTPProvider(pc.BaseURL, 10*time.Second, nil)
		}
		out[name] = entry
	}
	return out, nil
}
