package market

import (
	"context"
	"sync"
)

// MockClient is an in-memory Client used by tests and by any harness that
// exercises the graph without a live market connection, grounded on the
// teacher's in-memory MockExchange shape (map-backed state behind a mutex,
// seeded directly by the caller instead of over the wire).
type MockClient struct {
	mu          sync.RWMutex
	markets     map[string]*RawMarket
	resolutions map[string]*Resolution
	summaries   []MarketSummary
	healthErr   error
	fetchErr    map[string]error
}

// NewMockClient returns an empty MockClient ready for tests to seed.
func NewMockClient() *MockClient {
	return &MockClient{
		markets:     make(map[string]*RawMarket),
		resolutions: make(map[string]*Resolution),
		fetchErr:    make(map[string]error),
	}
}

// SeedMarket registers raw market data to be returned for conditionID.
func (m *MockClient) SeedMarket(conditionID string, raw *RawMarket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets[conditionID] = raw
}

// SeedResolution registers the resolution CheckMarketResolution returns.
func (m *MockClient) SeedResolution(conditionID string, res *Resolution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolutions[conditionID] = res
}

// SeedDiscovery sets the listing DiscoverMarkets returns.
func (m *MockClient) SeedDiscovery(summaries []MarketSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = summaries
}

// SeedFetchError forces FetchMarketData to fail for conditionID.
func (m *MockClient) SeedFetchError(conditionID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr[conditionID] = err
}

// SeedHealthError forces HealthCheck to fail.
func (m *MockClient) SeedHealthError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthErr = err
}

func (m *MockClient) FetchMarketData(_ context.Context, conditionID string) (*RawMarket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.fetchErr[conditionID]; ok {
		return nil, err
	}
	raw, ok := m.markets[conditionID]
	if !ok {
		return nil, ErrInvalidMarketID
	}
	return raw, nil
}

func (m *MockClient) CheckMarketResolution(_ context.Context, conditionID string) (*Resolution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if res, ok := m.resolutions[conditionID]; ok {
		return res, nil
	}
	return &Resolution{Resolved: false}, nil
}

func (m *MockClient) DiscoverMarkets(_ context.Context, limit int) ([]MarketSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit >= 0 && limit < len(m.summaries) {
		return append([]MarketSummary(nil), m.summaries[:limit]...), nil
	}
	return append([]MarketSummary(nil), m.summaries...), nil
}

func (m *MockClient) HealthCheck(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthErr
}

var _ Client = (*MockClient)(nil)
