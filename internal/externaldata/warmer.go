package externaldata

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// WarmRequest is one entry in a cache-warming queue: a key to populate, the
// factory that computes its value, the ttl/staleTtl to store it with, a
// priority (higher runs first within its topological layer), and the keys
// it depends on.
type WarmRequest struct {
	Key          string
	Factory      func(ctx context.Context) ([]byte, error)
	TTL          time.Duration
	StaleTTL     time.Duration
	Priority     int
	Dependencies []string
}

// WarmResult records one request's outcome.
type WarmResult struct {
	Key     string
	Success bool
	Err     error
}

// Warmer drains a warming queue into a Cache: it topologically sorts
// requests by Dependencies (Kahn's algorithm, silently skipping requests
// whose dependency cycle can never be satisfied), then processes each
// topological layer by priority descending in bounded-size batches with a
// small inter-batch delay.
type Warmer struct {
	Cache         *Cache
	BatchSize     int
	BatchInterval time.Duration
}

// NewWarmer returns a Warmer with sane batch defaults.
func NewWarmer(cache *Cache, batchSize int, batchInterval time.Duration) *Warmer {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Warmer{Cache: cache, BatchSize: batchSize, BatchInterval: batchInterval}
}

// Run processes every request in dependency-then-priority order, returning
// one WarmResult per request that was attempted (cyclic requests are
// skipped and do not appear in the result slice).
func (w *Warmer) Run(ctx context.Context, requests []WarmRequest, now time.Time) []WarmResult {
	layers := topoLayers(requests)

	var results []WarmResult
	for _, layer := range layers {
		sort.Slice(layer, func(i, j int) bool { return layer[i].Priority > layer[j].Priority })

		for start := 0; start < len(layer); start += w.BatchSize {
			end := start + w.BatchSize
			if end > len(layer) {
				end = len(layer)
			}
			for _, req := range layer[start:end] {
				results = append(results, w.runOne(ctx, req, now))
			}
			if end < len(layer) && w.BatchInterval > 0 {
				select {
				case <-ctx.Done():
					return results
				case <-time.After(w.BatchInterval):
				}
			}
		}
	}
	return results
}

func (w *Warmer) runOne(ctx context.Context, req WarmRequest, now time.Time) WarmResult {
	payload, err := req.Factory(ctx)
	if err != nil {
		log.Warn().Str("key", req.Key).Err(err).Msg("cache warming factory failed")
		return WarmResult{Key: req.Key, Success: false, Err: err}
	}
	w.Cache.Set(req.Key, payload, req.TTL, req.StaleTTL, now)
	return WarmResult{Key: req.Key, Success: true}
}

// topoLayers groups requests into dependency layers via Kahn's algorithm:
// layer 0 has no unresolved dependencies, layer 1 depends only on layer 0,
// and so on. Requests caught in a dependency cycle are silently skipped; a
// dependency naming a key outside the request set is ignored.
func topoLayers(requests []WarmRequest) [][]WarmRequest {
	byKey := make(map[string]WarmRequest, len(requests))
	inDegree := make(map[string]int, len(requests))
	dependents := make(map[string][]string)

	for _, r := range requests {
		byKey[r.Key] = r
		inDegree[r.Key] = 0
	}
	for _, r := range requests {
		for _, dep := range r.Dependencies {
			if _, ok := byKey[dep]; !ok {
				continue
			}
			inDegree[r.Key]++
			dependents[dep] = append(dependents[dep], r.Key)
		}
	}

	var layers [][]WarmRequest
	ready := make([]string, 0, len(requests))
	for k, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, k)
		}
	}
	sort.Strings(ready)

	visited := make(map[string]bool, len(requests))
	for len(ready) > 0 {
		layer := make([]WarmRequest, 0, len(ready))
		var next []string
		for _, k := range ready {
			layer = append(layer, byKey[k])
			visited[k] = true
			for _, dep := range dependents[k] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		layers = append(layers, layer)
		sort.Strings(next)
		ready = next
	}

	return layers
}
