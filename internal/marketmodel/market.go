// Package marketmodel defines the core prediction-market data types shared
// across a graph run: the market briefing document, theses, debate records,
// consensus, and the terminal trade recommendation.
package marketmodel

import (
	"errors"
	"fmt"
	"time"
)

// EventType classifies the subject matter of a market's question.
type EventType string

const (
	EventTypeElection     EventType = "election"
	EventTypePolicy       EventType = "policy"
	EventTypeCourt        EventType = "court"
	EventTypeGeopolitical EventType = "geopolitical"
	EventTypeEconomic     EventType = "economic"
	EventTypeOther        EventType = "other"
)

// VolatilityRegime buckets a market's bid/ask spread into a coarse regime.
type VolatilityRegime string

const (
	VolatilityLow    VolatilityRegime = "low"
	VolatilityMedium VolatilityRegime = "medium"
	VolatilityHigh   VolatilityRegime = "high"
)

// ClassifyVolatilityRegime maps a bid/ask spread in cents to a regime per
// the thresholds fixed by the analysis core: <2c low, <5c medium, else high.
func ClassifyVolatilityRegime(bidAskSpread float64) VolatilityRegime {
	switch {
	case bidAskSpread < 2:
		return VolatilityLow
	case bidAskSpread < 5:
		return VolatilityMedium
	default:
		return VolatilityHigh
	}
}

// Catalyst is a dated event cited as relevant to a market's resolution.
type Catalyst struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// Metadata carries the free-form annotations attached to an MBD.
type Metadata struct {
	AmbiguityFlags []string   `json:"ambiguityFlags"`
	KeyCatalysts   []Catalyst `json:"keyCatalysts"`
}

// MBD is the Market Briefing Document: the immutable per-run snapshot of a
// market produced by the ingestion node. Every field is set once and never
// mutated for the lifetime of a graph run.
type MBD struct {
	MarketID           string           `json:"marketId"`
	ConditionID        string           `json:"conditionId"`
	EventType          EventType        `json:"eventType"`
	Question           string           `json:"question"`
	ResolutionCriteria string           `json:"resolutionCriteria"`
	ExpiryTimestamp    time.Time        `json:"expiryTimestamp"`
	CurrentProbability float64          `json:"currentProbability"`
	LiquidityScore     float64          `json:"liquidityScore"`
	BidAskSpread       float64          `json:"bidAskSpread"`
	VolatilityRegime   VolatilityRegime `json:"volatilityRegime"`
	Volume24h          float64          `json:"volume24h"`
	Metadata           Metadata         `json:"metadata"`
	IngestedAt         time.Time        `json:"ingestedAt"`
	// PriceHistory is the market's recent midpoint-price series, oldest
	// first. It feeds momentum/volatility indicators for the
	// Microstructure and Price Action agents; it is not itself a
	// validated invariant since a market may have too little history to
	// carry one.
	PriceHistory []float64 `json:"priceHistory,omitempty"`
}

var (
	ErrExpiryNotFuture       = errors.New("marketmodel: expiryTimestamp must be after ingestion time")
	ErrProbabilityOutOfRange = errors.New("marketmodel: currentProbability must be in [0,1]")
	ErrLiquidityOutOfRange   = errors.New("marketmodel: liquidityScore must be in [0,10]")
	ErrNegativeSpread        = errors.New("marketmodel: bidAskSpread must be >= 0")
)

// NewMBD validates the invariants from the data model before returning a
// usable MBD: expiry must be strictly after ingestion, currentProbability
// and liquidityScore must be in range, and bidAskSpread must be
// non-negative. VolatilityRegime is derived, not taken as input, so it
// cannot be constructed inconsistently with the spread.
func NewMBD(marketID, conditionID string, eventType EventType, question, resolutionCriteria string,
	expiryTimestamp time.Time, currentProbability, liquidityScore, bidAskSpread, volume24h float64,
	metadata Metadata, ingestedAt time.Time, priceHistory []float64) (*MBD, error) {
	if !expiryTimestamp.After(ingestedAt) {
		return nil, fmt.Errorf("%w: expiry=%s ingested=%s", ErrExpiryNotFuture, expiryTimestamp, ingestedAt)
	}
	if currentProbability < 0 || currentProbability > 1 {
		return nil, fmt.Errorf("%w: got %f", ErrProbabilityOutOfRange, currentProbability)
	}
	if liquidityScore < 0 || liquidityScore > 10 {
		return nil, fmt.Errorf("%w: got %f", ErrLiquidityOutOfRange, liquidityScore)
	}
	if bidAskSpread < 0 {
		return nil, fmt.Errorf("%w: got %f", ErrNegativeSpread, bidAskSpread)
	}
	if metadata.AmbiguityFlags == nil {
		metadata.AmbiguityFlags = []string{}
	}
	if metadata.KeyCatalysts == nil {
		metadata.KeyCatalysts = []Catalyst{}
	}
	return &MBD{
		MarketID:           marketID,
		ConditionID:        conditionID,
		EventType:          eventType,
		Question:           question,
		ResolutionCriteria: resolutionCriteria,
		ExpiryTimestamp:    expiryTimestamp,
		CurrentProbability: currentProbability,
		LiquidityScore:     liquidityScore,
		BidAskSpread:       bidAskSpread,
		VolatilityRegime:   ClassifyVolatilityRegime(bidAskSpread),
		Volume24h:          volume24h,
		Metadata:           metadata,
		IngestedAt:         ingestedAt,
		PriceHistory:       priceHistory,
	}, nil
}
