// Package market ingests prediction-market contracts from the external
// market client and transforms their raw order-book shape into the
// marketmodel.MBD every downstream node operates on.
package market

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy returned by Client methods and classified by the ingestion
// node per spec.md §4.2/§6.
var (
	ErrAPIUnavailable    = errors.New("market: API unavailable")
	ErrRateLimitExceeded = errors.New("market: rate limit exceeded")
	ErrInvalidMarketID   = errors.New("market: invalid market id")
)

// ResolutionOutcome is the settled side of a resolved binary market.
type ResolutionOutcome string

const (
	OutcomeYes     ResolutionOutcome = "YES"
	OutcomeNo      ResolutionOutcome = "NO"
	OutcomeUnknown ResolutionOutcome = "UNKNOWN"
)

// Resolution is the result of CheckMarketResolution.
type Resolution struct {
	Resolved   bool
	Outcome    ResolutionOutcome
	ResolvedAt time.Time
}

// MarketSummary is one entry of a DiscoverMarkets listing, enough to queue
// the market for a full ingestion pass without yet fetching its order book.
type MarketSummary struct {
	MarketID    string
	ConditionID string
	Question    string
}

// RawCatalyst is an unparsed dated event as returned by the market client,
// before it is folded into marketmodel.Catalyst by BuildMBD.
type RawCatalyst struct {
	Event     string
	Timestamp time.Time
}

// RawMarket is the wire shape returned by fetching a market and its order
// book: a two-call pattern (market, then book) grounded on the Polymarket
// gamma/clob client split, collapsed here into one result value.
type RawMarket struct {
	MarketID           string
	ConditionID        string
	Question           string
	ResolutionCriteria string
	ExpiryTimestamp    time.Time
	BestBid            float64
	BestAsk            float64
	OrderBookSizes     []float64
	Volume24h          float64
	AmbiguityFlags     []string
	KeyCatalysts       []RawCatalyst
	// PriceHistory is the market's recent midpoint-price series, oldest
	// first, used to derive momentum/volatility indicators. May be empty
	// when a client can't supply history; BuildMBD tolerates that.
	PriceHistory []float64
}

// Client is the external prediction-market collaborator (spec.md §6). A
// Polymarket-shaped implementation and a MockClient for tests both satisfy
// it; the ingestion node depends only on this contract.
type Client interface {
	FetchMarketData(ctx context.Context, conditionID string) (*RawMarket, error)
	CheckMarketResolution(ctx context.Context, conditionID string) (*Resolution, error)
	DiscoverMarkets(ctx context.Context, limit int) ([]MarketSummary, error)
	HealthCheck(ctx context.Context) error
}
