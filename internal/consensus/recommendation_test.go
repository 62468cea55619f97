package consensus

import (
	"testing"
	"time"

	"github.com/ajitpratap0/marketoracle/internal/graph"
	"github.com/ajitpratap0/marketoracle/internal/marketmodel"
)

func mustConsensus(t *testing.T, point, lo, hi, disagreement float64, regime marketmodel.Regime, agentCount int) *marketmodel.Consensus {
	t.Helper()
	cons, err := marketmodel.NewConsensus(point, lo, hi, disagreement, regime, agentCount)
	if err != nil {
		t.Fatalf("NewConsensus() error = %v", err)
	}
	return cons
}

func TestRecommender_Recommend_LongYesWhenEdgePositive(t *testing.T) {
	r := NewRecommender(0.05, 0.3)
	mbd := &marketmodel.MBD{CurrentProbability: 0.4, LiquidityScore: 8, BidAskSpread: 1}
	cons := mustConsensus(t, 0.6, 0.5, 0.7, 0.1, marketmodel.RegimeLow, 3)

	rec := r.Recommend(mbd, cons, nil, nil, marketmodel.DebateRecord{})

	if rec.Action != marketmodel.ActionLongYes {
		t.Errorf("Action = %v, want LongYes when consensus exceeds market price by more than the threshold", rec.Action)
	}
	if rec.Metadata.Edge <= 0 {
		t.Errorf("Edge = %v, want positive", rec.Metadata.Edge)
	}
}

func TestRecommender_Recommend_LongNoWhenEdgeNegative(t *testing.T) {
	r := NewRecommender(0.05, 0.3)
	mbd := &marketmodel.MBD{CurrentProbability: 0.6, LiquidityScore: 8, BidAskSpread: 1}
	cons := mustConsensus(t, 0.4, 0.3, 0.5, 0.1, marketmodel.RegimeLow, 3)

	rec := r.Recommend(mbd, cons, nil, nil, marketmodel.DebateRecord{})

	if rec.Action != marketmodel.ActionLongNo {
		t.Errorf("Action = %v, want LongNo when consensus falls short of market price", rec.Action)
	}
}

func TestRecommender_Recommend_NoTradeWithinBand(t *testing.T) {
	r := NewRecommender(0.1, 0.3)
	mbd := &marketmodel.MBD{CurrentProbability: 0.5, LiquidityScore: 8, BidAskSpread: 1}
	cons := mustConsensus(t, 0.52, 0.45, 0.59, 0.1, marketmodel.RegimeLow, 3)

	rec := r.Recommend(mbd, cons, nil, nil, marketmodel.DebateRecord{})

	if rec.Action != marketmodel.ActionNoTrade {
		t.Errorf("Action = %v, want NoTrade when the edge is within the threshold band", rec.Action)
	}
}

func TestRecommender_Recommend_UncertaintyNoteAboveDisagreementThreshold(t *testing.T) {
	r := NewRecommender(0.05, 0.2)
	mbd := &marketmodel.MBD{CurrentProbability: 0.4, LiquidityScore: 8, BidAskSpread: 1}
	cons := mustConsensus(t, 0.6, 0.3, 0.9, 0.5, marketmodel.RegimeHigh, 3)

	rec := r.Recommend(mbd, cons, nil, nil, marketmodel.DebateRecord{})

	if rec.Explanation.UncertaintyNote == "" {
		t.Error("Explanation.UncertaintyNote = \"\", want a caution note above the disagreement threshold")
	}
}

func TestRecommender_Recommend_ExplainsFromSurvivingThesis(t *testing.T) {
	r := NewRecommender(0.05, 0.3)
	mbd := &marketmodel.MBD{CurrentProbability: 0.4, LiquidityScore: 8, BidAskSpread: 1}
	cons := mustConsensus(t, 0.6, 0.5, 0.7, 0.1, marketmodel.RegimeLow, 3)

	bull, err := marketmodel.NewThesis(marketmodel.SideBull, []string{"strong earnings"}, []string{"earnings beat"}, []string{"a"}, nil, 0.6)
	if err != nil {
		t.Fatalf("NewThesis() error = %v", err)
	}
	bear, err := marketmodel.NewThesis(marketmodel.SideBear, []string{"regulatory risk"}, nil, []string{"b"}, nil, 0.3)
	if err != nil {
		t.Fatalf("NewThesis() error = %v", err)
	}

	rec := r.Recommend(mbd, cons, bull, bear, marketmodel.DebateRecord{})

	if rec.Explanation.CoreThesis != "strong earnings" {
		t.Errorf("CoreThesis = %q, want the bull thesis's claim for a LongYes recommendation", rec.Explanation.CoreThesis)
	}
	if len(rec.Explanation.FailureScenarios) != 1 || rec.Explanation.FailureScenarios[0] != "regulatory risk" {
		t.Errorf("FailureScenarios = %v, want the opposing bear claim", rec.Explanation.FailureScenarios)
	}
}

func TestRecommender_Recommend_LiquidityRiskBands(t *testing.T) {
	r := NewRecommender(0.05, 0.3)
	cons := mustConsensus(t, 0.5, 0.4, 0.6, 0.1, marketmodel.RegimeLow, 1)

	cases := []struct {
		score float64
		want  marketmodel.LiquidityRisk
	}{
		{8, marketmodel.LiquidityRiskLow},
		{5, marketmodel.LiquidityRiskMedium},
		{1, marketmodel.LiquidityRiskHigh},
	}
	for _, c := range cases {
		mbd := &marketmodel.MBD{CurrentProbability: 0.5, LiquidityScore: c.score}
		rec := r.Recommend(mbd, cons, nil, nil, marketmodel.DebateRecord{})
		if rec.LiquidityRisk != c.want {
			t.Errorf("LiquidityRisk(score=%v) = %v, want %v", c.score, rec.LiquidityRisk, c.want)
		}
	}
}

func TestRecommendationNode_Precondition(t *testing.T) {
	node := NewRecommendationNode(NewRecommender(0.05, 0.3))
	state := graph.NewGraphState("0xabc")
	if node.Precondition(state) {
		t.Error("Precondition() = true with no MBD or consensus, want false")
	}
	state.MBD = &marketmodel.MBD{}
	state.Consensus = mustConsensus(t, 0.5, 0.4, 0.6, 0.1, marketmodel.RegimeLow, 1)
	if !node.Precondition(state) {
		t.Error("Precondition() = false with MBD and consensus present, want true")
	}
}

func TestRecommendationNode_Run_PopulatesRecommendation(t *testing.T) {
	node := NewRecommendationNode(NewRecommender(0.05, 0.3))
	state := graph.NewGraphState("0xabc")
	state.MBD = &marketmodel.MBD{CurrentProbability: 0.4, LiquidityScore: 8, BidAskSpread: 1, ExpiryTimestamp: time.Now().Add(24 * time.Hour)}
	state.Consensus = mustConsensus(t, 0.6, 0.5, 0.7, 0.1, marketmodel.RegimeLow, 3)

	partial, err := node.Run(nil, state)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if partial.Recommendation == nil {
		t.Fatal("partial.Recommendation = nil, want a rendered recommendation")
	}
	if len(partial.AuditLog) != 1 {
		t.Errorf("AuditLog = %v, want 1 entry", partial.AuditLog)
	}
}
