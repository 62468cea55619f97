package market

import (
	"math"
	"time"

	"github.com/ajitpratap0/marketoracle/internal/marketmodel"
)

// BuildMBD transforms a fetched RawMarket into an immutable MBD, applying
// the ingestion transforms from spec.md §4.2: liquidityScore from the
// log-compressed order-book depth, bidAskSpread in cents, volatilityRegime
// derived from that spread, and eventType by keyword match over the
// question text.
func BuildMBD(raw RawMarket, ingestedAt time.Time) (*marketmodel.MBD, error) {
	liquidityScore := liquidityScoreFromSizes(raw.OrderBookSizes)
	bidAskSpread := (raw.BestAsk - raw.BestBid) * 100
	if bidAskSpread < 0 {
		bidAskSpread = 0
	}
	currentProbability := (raw.BestBid + raw.BestAsk) / 2

	catalysts := make([]marketmodel.Catalyst, 0, len(raw.KeyCatalysts))
	for _, c := range raw.KeyCatalysts {
		catalysts = append(catalysts, marketmodel.Catalyst{Event: c.Event, Timestamp: c.Timestamp})
	}

	return marketmodel.NewMBD(
		raw.MarketID,
		raw.ConditionID,
		ClassifyEventType(raw.Question),
		raw.Question,
		raw.ResolutionCriteria,
		raw.ExpiryTimestamp,
		currentProbability,
		liquidityScore,
		bidAskSpread,
		raw.Volume24h,
		marketmodel.Metadata{
			AmbiguityFlags: raw.AmbiguityFlags,
			KeyCatalysts:   catalysts,
		},
		ingestedAt,
		raw.PriceHistory,
	)
}

// liquidityScoreFromSizes computes min(10, log10(1+Σsizes)·2) per spec.md
// §4.2, clamped to the [0,10] range NewMBD requires.
func liquidityScoreFromSizes(sizes []float64) float64 {
	sum := 0.0
	for _, s := range sizes {
		if s > 0 {
			sum += s
		}
	}
	score := math.Log10(1+sum) * 2
	if score > 10 {
		return 10
	}
	if score < 0 {
		return 0
	}
	return score
}
