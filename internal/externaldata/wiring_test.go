package externaldata

import (
	"testing"
	"time"

	"github.com/ajitpratap0/marketoracle/internal/config"
)

func TestBuildProviders(t *testing.T) {
	cfg := map[string]config.ProviderConfig{
		"newsapi": {
			BaseURL:         "https://newsapi.example.com",
			TTLSeconds:      300,
			StaleTTLSeconds: 600,
			MaxCacheSize:    100,
			EvictionPolicy:  "lru",
			RateLimit:       config.RateLimitSpec{Capacity: 10, RefillPerSec: 1, SoftThrottleAt: 0.2},
			CircuitBreaker:  config.BreakerSpec{MaxFailures: 3, OpenTimeout: time.Minute, HalfOpenReqs: 1},
			Retry:           config.RetrySpec{MaxAttempts: 3, BaseDelayMs: 100, MaxDelayMs: 5000},
		},
		"unconfigured": {
			MaxCacheSize:   50,
			EvictionPolicy: "lfu",
			RateLimit:      config.RateLimitSpec{Capacity: 5, RefillPerSec: 0.5, SoftThrottleAt: 0.1},
			CircuitBreaker: config.BreakerSpec{MaxFailures: 5, OpenTimeout: time.Minute, HalfOpenReqs: 1},
			Retry:          config.RetrySpec{MaxAttempts: 2, BaseDelayMs: 50, MaxDelayMs: 1000},
		},
	}

	entries, err := BuildProviders(cfg, time.Now())
	if err != nil {
		t.Fatalf("BuildProviders() error = %v", err)
	}

	news, ok := entries["newsapi"]
	if !ok {
		t.Fatal("expected a \"newsapi\" entry")
	}
	if news.Client == nil {
		t.Error("expected a configured HTTP client for a provider with a BaseURL")
	}
	if news.TTL != 300*time.Second {
		t.Errorf("TTL = %v, want 300s", news.TTL)
	}

	unconfigured, ok := entries["unconfigured"]
	if !ok {
		t.Fatal("expected an \"unconfigured\" entry")
	}
	if unconfigured.Client != nil {
		t.Error("expected a nil Client for a provider with no BaseURL")
	}
}
