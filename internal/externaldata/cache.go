// Package externaldata fronts the news/polling/social providers the
// intelligence agents consume with a per-provider cache, token bucket,
// circuit breaker, and retry policy (spec.md §4.6).
package externaldata

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// EvictionPolicy selects which entry a full cache drops first.
type EvictionPolicy string

const (
	EvictionLRU          EvictionPolicy = "lru"
	EvictionLFU          EvictionPolicy = "lfu"
	EvictionShortestTTL  EvictionPolicy = "ttl"
)

// Freshness describes a cache lookup's result relative to ttl/staleTtl.
type Freshness string

const (
	FreshnessFresh Freshness = "fresh"
	FreshnessStale Freshness = "stale"
	FreshnessMiss  Freshness = "miss"
)

// CachedData is one cache slot: the stored payload (raw or compressed) plus
// the bookkeeping an eviction policy and freshness check need.
type CachedData struct {
	Payload      []byte
	Compressed   bool
	StoredAt     time.Time
	TTL          time.Duration
	StaleTTL     time.Duration
	lastAccessed time.Time
	hitCount     int
}

func (c *CachedData) freshness(now time.Time) Freshness {
	age := now.Sub(c.StoredAt)
	switch {
	case age <= c.TTL:
		return FreshnessFresh
	case age <= c.TTL+c.StaleTTL:
		return FreshnessStale
	default:
		return FreshnessMiss
	}
}

// CompressionMinSavings is the fraction of size a compressed payload must
// save versus raw to be worth storing compressed, per spec.md §4.6.
const CompressionMinSavings = 0.20

// Cache is a process-wide, mutex-guarded map from a deterministic key to a
// CachedData entry, bounded by maxSize and evicted per policy.
type Cache struct {
	mu             sync.Mutex
	entries        map[string]*CachedData
	maxSize        int
	policy         EvictionPolicy
	compress       bool
	compressMinLen int
	encoder        *zstd.Encoder
	decoder        *zstd.Decoder
}

// NewCache returns a Cache bounded to maxSize entries under policy. When
// compress is true, payloads at or above compressMinLen bytes are
// compressed if doing so saves at least CompressionMinSavings.
func NewCache(maxSize int, policy EvictionPolicy, compress bool, compressMinLen int) (*Cache, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Cache{
		entries:        make(map[string]*CachedData),
		maxSize:        maxSize,
		policy:         policy,
		compress:       compress,
		compressMinLen: compressMinLen,
		encoder:        enc,
		decoder:        dec,
	}, nil
}

// Key builds a deterministic cache key from a source, marketId, and a
// params map; arrays inside params are sorted before hashing so that
// request permutations producing the same logical query hit the same key.
func Key(source, marketID string, params map[string]interface{}) string {
	normalized := make(map[string]interface{}, len(params))
	for k, v := range params {
		if arr, ok := v.([]string); ok {
			sorted := append([]string(nil), arr...)
			sort.Strings(sorted)
			normalized[k] = sorted
			continue
		}
		normalized[k] = v
	}
	blob, _ := json.Marshal(normalized)
	h := sha256.Sum256(append([]byte(source+"|"+marketID+"|"), blob...))
	return source + ":" + marketID + ":" + hex.EncodeToString(h[:8])
}

// Get looks up a key, returning the decompressed payload, its freshness,
// and whether it was found at all (a miss returns ok=false).
func (c *Cache) Get(key string, now time.Time) (payload []byte, fresh Freshness, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, found := c.entries[key]
	if !found {
		return nil, FreshnessMiss, false
	}

	fresh = entry.freshness(now)
	if fresh == FreshnessMiss {
		delete(c.entries, key)
		return nil, FreshnessMiss, false
	}

	entry.lastAccessed = now
	entry.hitCount++

	raw := entry.Payload
	if entry.Compressed {
		decoded, err := c.decoder.DecodeAll(raw, nil)
		if err != nil {
			return nil, FreshnessMiss, false
		}
		raw = decoded
	}
	return raw, fresh, true
}

// Set stores payload under key with the given ttl/staleTtl, compressing it
// first if the cache is configured to and doing so saves enough space.
func (c *Cache) Set(key string, payload []byte, ttl, staleTTL time.Duration, now time.Time) {
	stored := payload
	compressed := false
	if c.compress && len(payload) >= c.compressMinLen {
		candidate := c.encoder.EncodeAll(payload, nil)
		if float64(len(payload)-len(candidate))/float64(len(payload)) >= CompressionMinSavings {
			stored = candidate
			compressed = true
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize && c.maxSize > 0 {
		c.evictOne(now)
	}

	c.entries[key] = &CachedData{
		Payload:      stored,
		Compressed:   compressed,
		StoredAt:     now,
		TTL:          ttl,
		StaleTTL:     staleTTL,
		lastAccessed: now,
	}
}

func (c *Cache) evictOne(now time.Time) {
	var victim string
	switch c.policy {
	case EvictionLFU:
		best := -1
		for k, e := range c.entries {
			if best == -1 || e.hitCount < best {
				best = e.hitCount
				victim = k
			}
		}
	case EvictionShortestTTL:
		var soonest time.Time
		for k, e := range c.entries {
			expiry := e.StoredAt.Add(e.TTL)
			if victim == "" || expiry.Before(soonest) {
				soonest = expiry
				victim = k
			}
		}
	default: // LRU
		var oldest time.Time
		for k, e := range c.entries {
			if victim == "" || e.lastAccessed.Before(oldest) {
				oldest = e.lastAccessed
				victim = k
			}
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}

// Encode is a convenience for callers to JSON-marshal a payload before
// handing it to Set.
func Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	err := json.NewEncoder(&buf).Encode(v)
	return buf.Bytes(), err
}
