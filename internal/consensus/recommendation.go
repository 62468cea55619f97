package consensus

import (
	"context"

	"github.com/ajitpratap0/marketoracle/internal/graph"
	"github.com/ajitpratap0/marketoracle/internal/marketmodel"
)

// Recommender turns a fused Consensus into the terminal trade recommendation
// (spec.md §4.10).
type Recommender struct {
	MinEdgeThreshold          float64
	HighDisagreementThreshold float64
}

// NewRecommender returns a Recommender using the given thresholds.
func NewRecommender(minEdgeThreshold, highDisagreementThreshold float64) *Recommender {
	return &Recommender{MinEdgeThreshold: minEdgeThreshold, HighDisagreementThreshold: highDisagreementThreshold}
}

// Recommend computes the recommendation for one market, given its MBD, the
// fused consensus, and the cross-examination debate that informs the
// explanation (the side that survived cross-examination better, if either).
func (r *Recommender) Recommend(mbd *marketmodel.MBD, cons *marketmodel.Consensus, bull, bear *marketmodel.Thesis, debate marketmodel.DebateRecord) *marketmodel.Recommendation {
	edge := cons.Point - mbd.CurrentProbability
	sigma := (cons.ConfidenceHigh - cons.ConfidenceLow) / 2

	action := marketmodel.ActionNoTrade
	if absFloat(edge) >= r.MinEdgeThreshold {
		if edge > 0 {
			action = marketmodel.ActionLongYes
		} else {
			action = marketmodel.ActionLongNo
		}
	}

	var expectedValue float64
	if mbd.CurrentProbability != 0 {
		expectedValue = edge / mbd.CurrentProbability
	}

	entryZone := marketmodel.Zone{
		Lo: clipPrice(mbd.CurrentProbability - mbd.BidAskSpread/100),
		Hi: clipPrice(mbd.CurrentProbability + mbd.BidAskSpread/100),
	}
	targetZone := &marketmodel.Zone{
		Lo: clipPrice(cons.Point - sigma),
		Hi: clipPrice(cons.Point + sigma),
	}

	explanation := r.explain(action, mbd, bull, bear, debate, cons)

	disagreement := cons.DisagreementIndex
	return &marketmodel.Recommendation{
		Action:         action,
		ExpectedValue:  expectedValue,
		WinProbability: cons.Point,
		EntryZone:      entryZone,
		TargetZone:     targetZone,
		LiquidityRisk:  liquidityRisk(mbd.LiquidityScore),
		Explanation:    explanation,
		Metadata: marketmodel.RecommendationMetadata{
			MarketProbability:    mbd.CurrentProbability,
			ConsensusProbability: cons.Point,
			Edge:                 edge,
			ConfidenceBand:       marketmodel.Zone{Lo: cons.ConfidenceLow, Hi: cons.ConfidenceHigh},
			DisagreementIndex:    &disagreement,
			AgentCount:           cons.AgentCount,
		},
	}
}

func (r *Recommender) explain(action marketmodel.Action, mbd *marketmodel.MBD, bull, bear *marketmodel.Thesis, debate marketmodel.DebateRecord, cons *marketmodel.Consensus) marketmodel.Explanation {
	surviving, opposing := survivingSide(action, bull, bear, debate)

	exp := marketmodel.Explanation{
		Summary: summaryFor(action, mbd, cons),
	}
	if surviving != nil {
		exp.CoreThesis = joinOr(surviving.Claims, "no distinguishing claim recorded")
		exp.KeyCatalysts = surviving.KeyCatalysts
	}
	if opposing != nil {
		exp.FailureScenarios = opposing.Claims
	}
	if cons.DisagreementIndex > r.HighDisagreementThreshold {
		exp.UncertaintyNote = "agents disagree substantially on fair value; treat the consensus point estimate with caution"
	}
	return exp
}

func survivingSide(action marketmodel.Action, bull, bear *marketmodel.Thesis, debate marketmodel.DebateRecord) (surviving, opposing *marketmodel.Thesis) {
	switch action {
	case marketmodel.ActionLongYes:
		return bull, bear
	case marketmodel.ActionLongNo:
		return bear, bull
	default:
		if debate.BullSurvival >= debate.BearSurvival {
			return bull, bear
		}
		return bear, bull
	}
}

func summaryFor(action marketmodel.Action, mbd *marketmodel.MBD, cons *marketmodel.Consensus) string {
	switch action {
	case marketmodel.ActionLongYes:
		return "consensus fair value exceeds the market price; favors YES"
	case marketmodel.ActionLongNo:
		return "consensus fair value falls short of the market price; favors NO"
	default:
		return "consensus fair value sits within the no-trade band around the market price"
	}
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	out := items[0]
	for _, it := range items[1:] {
		out += "; " + it
	}
	return out
}

func liquidityRisk(liquidityScore float64) marketmodel.LiquidityRisk {
	switch {
	case liquidityScore >= 7:
		return marketmodel.LiquidityRiskLow
	case liquidityScore >= 3:
		return marketmodel.LiquidityRiskMedium
	default:
		return marketmodel.LiquidityRiskHigh
	}
}

func clipPrice(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// RecommendationNode is the graph node that renders the terminal
// recommendation from the fused consensus and cross-examined theses.
type RecommendationNode struct {
	Recommender *Recommender
}

// NewRecommendationNode returns a RecommendationNode.
func NewRecommendationNode(recommender *Recommender) *RecommendationNode {
	return &RecommendationNode{Recommender: recommender}
}

func (n *RecommendationNode) Name() string    { return "recommendation" }
func (n *RecommendationNode) Skippable() bool { return true }

func (n *RecommendationNode) Precondition(state *graph.GraphState) bool {
	return state.MBD != nil && state.Consensus != nil
}

func (n *RecommendationNode) Run(_ context.Context, state *graph.GraphState) (graph.PartialState, error) {
	debate := marketmodel.DebateRecord{}
	if state.Debate != nil {
		debate = *state.Debate
	}

	rec := n.Recommender.Recommend(state.MBD, state.Consensus, state.BullThesis, state.BearThesis, debate)

	return graph.PartialState{
		Recommendation: rec,
		AuditLog: []graph.AuditEntry{graph.Audit("recommendation", map[string]interface{}{
			"action":        rec.Action,
			"edge":          rec.Metadata.Edge,
			"liquidityRisk": rec.LiquidityRisk,
		})},
	}, nil
}

var _ graph.Node = (*RecommendationNode)(nil)
