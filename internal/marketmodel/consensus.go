package marketmodel

import "fmt"

// Regime buckets a consensus's spread of opinion (standard deviation) into
// a coarse band used to drive downstream explanation and alerting.
type Regime string

const (
	RegimeLow  Regime = "low"
	RegimeMid  Regime = "mid"
	RegimeHigh Regime = "high"
)

// Consensus is the fused probability estimate across surviving agent
// signals, with an associated confidence band and disagreement measure.
type Consensus struct {
	Point             float64 `json:"point"`
	ConfidenceLow     float64 `json:"confidenceLow"`
	ConfidenceHigh    float64 `json:"confidenceHigh"`
	DisagreementIndex float64 `json:"disagreementIndex"`
	Regime            Regime  `json:"regime"`
	AgentCount        int     `json:"agentCount"`
}

// NewConsensus validates Point and the confidence band before returning.
func NewConsensus(point, confidenceLow, confidenceHigh, disagreementIndex float64, regime Regime, agentCount int) (*Consensus, error) {
	if point < 0 || point > 1 {
		return nil, fmt.Errorf("marketmodel: consensus point must be in [0,1], got %f", point)
	}
	if confidenceLow > confidenceHigh {
		return nil, fmt.Errorf("marketmodel: confidence band low (%f) exceeds high (%f)", confidenceLow, confidenceHigh)
	}
	return &Consensus{
		Point:             point,
		ConfidenceLow:     clip01(confidenceLow),
		ConfidenceHigh:    clip01(confidenceHigh),
		DisagreementIndex: disagreementIndex,
		Regime:            regime,
		AgentCount:        agentCount,
	}, nil
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Action is the terminal trade direction a recommendation carries.
type Action string

const (
	ActionLongYes Action = "LONG_YES"
	ActionLongNo  Action = "LONG_NO"
	ActionNoTrade Action = "NO_TRADE"
)

// LiquidityRisk buckets a market's liquidity score for the recommendation's
// risk-facing explanation.
type LiquidityRisk string

const (
	LiquidityRiskLow    LiquidityRisk = "low"
	LiquidityRiskMedium LiquidityRisk = "medium"
	LiquidityRiskHigh   LiquidityRisk = "high"
)

// Zone is an inclusive [lo, hi] price range.
type Zone struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Explanation is the human-facing narrative attached to a recommendation.
type Explanation struct {
	Summary          string   `json:"summary"`
	CoreThesis       string   `json:"coreThesis"`
	KeyCatalysts     []string `json:"keyCatalysts"`
	FailureScenarios []string `json:"failureScenarios"`
	UncertaintyNote  string   `json:"uncertaintyNote,omitempty"`
}

// RecommendationMetadata carries the numbers behind a recommendation so
// downstream consumers can audit the decision without recomputing it.
type RecommendationMetadata struct {
	MarketProbability    float64  `json:"marketProbability"`
	ConsensusProbability float64  `json:"consensusProbability"`
	Edge                 float64  `json:"edge"`
	ConfidenceBand       Zone     `json:"confidenceBand"`
	DisagreementIndex    *float64 `json:"disagreementIndex,omitempty"`
	AgentCount           int      `json:"agentCount"`
}

// Recommendation is the terminal artifact of a graph run.
type Recommendation struct {
	Action         Action                 `json:"action"`
	ExpectedValue  float64                `json:"expectedValue"`
	WinProbability float64                `json:"winProbability"`
	EntryZone      Zone                   `json:"entryZone"`
	TargetZone     *Zone                  `json:"targetZone,omitempty"`
	LiquidityRisk  LiquidityRisk          `json:"liquidityRisk"`
	Explanation    Explanation            `json:"explanation"`
	Metadata       RecommendationMetadata `json:"metadata"`
}
