package externaldata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sony/gobreaker"
)

// SourceNews, SourcePolling, and SourceSocial name the three fetch
// surfaces the intelligence agents consume, per spec.md §4.6.
const (
	SourceNews    = "news"
	SourcePolling = "polling"
	SourceSocial  = "social"
)

// TelemetryEvent is the structured record emitted on every fetch decision
// branch, per spec.md §4.6.
type TelemetryEvent struct {
	Source    string
	Provider  string
	Cached    bool
	Stale     bool
	Freshness Freshness
	ItemCount int
	Duration  time.Duration
	Error     string
}

// EventSink receives one TelemetryEvent per fetch; internal/telemetry's
// Sink satisfies this without externaldata importing it directly.
type EventSink interface {
	Emit(TelemetryEvent)
}

type noopSink struct{}

func (noopSink) Emit(TelemetryEvent) {}

// ProviderEntry bundles one provider's cache, limiter, breaker, and retry
// policy, wired from config.ProviderConfig.
type ProviderEntry struct {
	Name     string
	Cache    *Cache
	Bucket   *TokenBucket
	Breaker  *gobreaker.CircuitBreaker
	Retry    RetryPolicy
	Client   Provider
	TTL      time.Duration
	StaleTTL time.Duration
}

// Fetcher is the external-data layer's entry point: one ProviderEntry per
// configured provider, dispatched by fetch kind.
type Fetcher struct {
	Providers map[string]*ProviderEntry
	Sink      EventSink
}

// NewFetcher returns a Fetcher. A nil sink discards telemetry events.
func NewFetcher(providers map[string]*ProviderEntry, sink EventSink) *Fetcher {
	if sink == nil {
		sink = noopSink{}
	}
	return &Fetcher{Providers: providers, Sink: sink}
}

// FetchNews retrieves news articles for a market within the given lookback
// window, applying the fetch decision order from spec.md §4.6.
func (f *Fetcher) FetchNews(ctx context.Context, marketID string, window time.Duration) (json.RawMessage, error) {
	return f.fetch(ctx, SourceNews, marketID, map[string]interface{}{"windowSeconds": int(window.Seconds())}, "/news", map[string]string{"market": marketID})
}

// FetchPolling retrieves aggregated polling data for a market.
func (f *Fetcher) FetchPolling(ctx context.Context, marketID string) (json.RawMessage, error) {
	return f.fetch(ctx, SourcePolling, marketID, nil, "/polling", map[string]string{"market": marketID})
}

// FetchSocial retrieves social-sentiment snippets for a market across the
// given platforms.
func (f *Fetcher) FetchSocial(ctx context.Context, marketID string, platforms []string) (json.RawMessage, error) {
	return f.fetch(ctx, SourceSocial, marketID, map[string]interface{}{"platforms": platforms}, "/social", map[string]string{"market": marketID})
}

// CheckAvailability reports whether a provider's circuit is usable right
// now (closed or half-open), without performing a fetch.
func (f *Fetcher) CheckAvailability(source string) bool {
	entry, ok := f.Providers[source]
	if !ok || entry == nil {
		return false
	}
	return entry.Breaker.State() != gobreaker.StateOpen
}

func (f *Fetcher) fetch(ctx context.Context, source, marketID string, keyParams map[string]interface{}, path string, queryParams map[string]string) (json.RawMessage, error) {
	start := time.Now()
	now := start
	key := Key(source, marketID, keyParams)

	entry, configured := f.Providers[source]

	// (1) fresh cache hit.
	if configured && entry.Cache != nil {
		if payload, fresh, ok := entry.Cache.Get(key, now); ok && fresh == FreshnessFresh {
			f.emit(source, "", true, false, fresh, payload, time.Since(start), nil)
			return payload, nil
		}
	}

	// (2) rate limit.
	if configured && entry.Bucket != nil {
		if consumed, _ := entry.Bucket.TryConsume(1, now); !consumed {
			payload, stale := f.staleOrEmpty(entry, key, now)
			f.emit(source, entry.Name, false, stale, FreshnessStale, payload, time.Since(start), nil)
			return payload, nil
		}
	}

	// (3) provider configured?
	if !configured || entry.Client == nil {
		payload, stale := f.staleOrEmpty(entry, key, now)
		f.emit(source, "", false, stale, FreshnessMiss, payload, time.Since(start), nil)
		return payload, nil
	}

	// (4) call provider through breaker + retry.
	var result json.RawMessage
	callErr := entry.Retry.Run(ctx, entry.Name, func(ctx context.Context) error {
		out, err := entry.Breaker.Execute(func() (interface{}, error) {
			return entry.Client.Fetch(ctx, path, queryParams)
		})
		if err != nil {
			return err
		}
		result = out.(json.RawMessage)
		return nil
	})

	if callErr == nil {
		// (5) success: cache & return.
		if entry.Cache != nil {
			ttl, staleTTL := entry.cacheTTLs()
			entry.Cache.Set(key, result, ttl, staleTTL, now)
		}
		f.emit(source, entry.Name, false, false, FreshnessFresh, result, time.Since(start), nil)
		return result, nil
	}

	// (6) failure: stale if any, else empty/null.
	payload, stale := f.staleOrEmpty(entry, key, now)
	f.emit(source, entry.Name, false, stale, FreshnessMiss, payload, time.Since(start), callErr)
	return payload, callErr
}

func (f *Fetcher) staleOrEmpty(entry *ProviderEntry, key string, now time.Time) (json.RawMessage, bool) {
	if entry == nil || entry.Cache == nil {
		return nil, false
	}
	if payload, fresh, ok := entry.Cache.Get(key, now); ok && fresh == FreshnessStale {
		return payload, true
	}
	return nil, false
}

func (f *Fetcher) emit(source, provider string, cached, stale bool, fresh Freshness, payload json.RawMessage, duration time.Duration, err error) {
	count := 0
	if len(payload) > 0 {
		var arr []json.RawMessage
		if jsonErr := json.Unmarshal(payload, &arr); jsonErr == nil {
			count = len(arr)
		} else {
			count = 1
		}
	}
	evt := TelemetryEvent{
		Source:    source,
		Provider:  provider,
		Cached:    cached,
		Stale:     stale,
		Freshness: fresh,
		ItemCount: count,
		Duration:  duration,
	}
	if err != nil {
		evt.Error = err.Error()
	}
	f.Sink.Emit(evt)
}

// cacheTTLs is a placeholder accessor so ProviderEntry can carry its own
// ttl/staleTtl without a dependency back on config; set by the caller that
// builds the ProviderEntry.
func (e *ProviderEntry) cacheTTLs() (time.Duration, time.Duration) {
	return e.TTL, e.StaleTTL
}
