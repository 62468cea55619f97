package consensus

import (
	"context"
	"strings"

	"github.com/ajitpratap0/marketoracle/internal/graph"
	"github.com/ajitpratap0/marketoracle/internal/marketmodel"
	"github.com/ajitpratap0/marketoracle/internal/signal"
)

// RiskPhilosophyAgentName is the agent whose dissenting opinion feeds the
// Tail Risk test.
const RiskPhilosophyAgentName = "risk_philosophy"

// correlationKeywords flags drivers that describe a statistical association
// rather than a causal mechanism, per the Causality test's keyword match.
var correlationKeywords = []string{"correlat", "coincide", "tracks", "tends to move with"}

// Examiner runs the five fixed cross-examination tests against a thesis.
type Examiner struct {
	EvidenceConfidenceThreshold float64
	TailRiskConfidenceThreshold float64
	LiquidityThreshold          float64
	SpreadThreshold             float64
}

// NewExaminer returns an Examiner using spec.md §4.8's fixed thresholds.
func NewExaminer() *Examiner {
	return &Examiner{
		EvidenceConfidenceThreshold: 0.6,
		TailRiskConfidenceThreshold: 0.7,
		LiquidityThreshold:          5,
		SpreadThreshold:             5,
	}
}

// Examine cross-examines a single thesis against the MBD and the full set of
// surviving signals (needed for the Tail Risk test's opposite-direction
// check), returning one TestResult per fixed test.
func (e *Examiner) Examine(thesis *marketmodel.Thesis, mbd *marketmodel.MBD, signals []signal.AgentSignal) []marketmodel.TestResult {
	supporting := supportingSignals(thesis, signals)
	return []marketmodel.TestResult{
		e.evidence(supporting),
		e.causality(supporting),
		e.timing(thesis, mbd),
		e.liquidity(mbd),
		e.tailRisk(thesis, signals),
	}
}

func supportingSignals(thesis *marketmodel.Thesis, signals []signal.AgentSignal) []signal.AgentSignal {
	names := make(map[string]struct{}, len(thesis.SupportingSignals))
	for _, n := range thesis.SupportingSignals {
		names[n] = struct{}{}
	}
	out := make([]signal.AgentSignal, 0, len(names))
	for _, s := range signals {
		if _, ok := names[s.AgentName]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (e *Examiner) evidence(supporting []signal.AgentSignal) marketmodel.TestResult {
	drivers := make(map[string]struct{})
	qualifying := 0
	for _, s := range supporting {
		if s.Confidence < e.EvidenceConfidenceThreshold {
			continue
		}
		qualifying++
		for _, d := range s.KeyDrivers {
			drivers[d] = struct{}{}
		}
	}
	if qualifying >= 2 && len(drivers) >= 2 {
		return marketmodel.TestResult{
			Test:          marketmodel.TestEvidence,
			Verdict:       marketmodel.VerdictHolds,
			Justification: "at least two supporting signals at or above the confidence threshold cite distinct drivers",
		}
	}
	return marketmodel.TestResult{
		Test:          marketmodel.TestEvidence,
		Verdict:       marketmodel.VerdictWeakens,
		Justification: "fewer than two qualifying signals cite distinct drivers",
	}
}

func (e *Examiner) causality(supporting []signal.AgentSignal) marketmodel.TestResult {
	for _, s := range supporting {
		for _, d := range s.KeyDrivers {
			if isCorrelationOnly(d) {
				return marketmodel.TestResult{
					Test:          marketmodel.TestCausality,
					Verdict:       marketmodel.VerdictWeakens,
					Justification: "driver \"" + d + "\" describes a correlation rather than a causal mechanism",
				}
			}
		}
	}
	return marketmodel.TestResult{
		Test:          marketmodel.TestCausality,
		Verdict:       marketmodel.VerdictHolds,
		Justification: "no supporting driver matches the correlation-only keyword set",
	}
}

func isCorrelationOnly(driver string) bool {
	lower := strings.ToLower(driver)
	for _, kw := range correlationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (e *Examiner) timing(thesis *marketmodel.Thesis, mbd *marketmodel.MBD) marketmodel.TestResult {
	if mbd == nil {
		return marketmodel.TestResult{Test: marketmodel.TestTiming, Verdict: marketmodel.VerdictWeakens, Justification: "no market briefing available"}
	}
	for _, c := range mbd.Metadata.KeyCatalysts {
		if !c.Timestamp.After(mbd.ExpiryTimestamp) {
			return marketmodel.TestResult{
				Test:          marketmodel.TestTiming,
				Verdict:       marketmodel.VerdictHolds,
				Justification: "catalyst \"" + c.Event + "\" falls on or before expiry",
			}
		}
	}
	return marketmodel.TestResult{
		Test:          marketmodel.TestTiming,
		Verdict:       marketmodel.VerdictWeakens,
		Justification: "no recorded catalyst falls on or before expiry",
	}
}

func (e *Examiner) liquidity(mbd *marketmodel.MBD) marketmodel.TestResult {
	if mbd == nil {
		return marketmodel.TestResult{Test: marketmodel.TestLiquidity, Verdict: marketmodel.VerdictWeakens, Justification: "no market briefing available"}
	}
	if mbd.LiquidityScore >= e.LiquidityThreshold && mbd.BidAskSpread <= e.SpreadThreshold {
		return marketmodel.TestResult{
			Test:          marketmodel.TestLiquidity,
			Verdict:       marketmodel.VerdictHolds,
			Justification: "liquidityScore and bidAskSpread both within bounds",
		}
	}
	return marketmodel.TestResult{
		Test:          marketmodel.TestLiquidity,
		Verdict:       marketmodel.VerdictWeakens,
		Justification: "liquidityScore or bidAskSpread outside bounds",
	}
}

func (e *Examiner) tailRisk(thesis *marketmodel.Thesis, signals []signal.AgentSignal) marketmodel.TestResult {
	opposite := oppositeDirection(thesis.Side)
	for _, s := range signals {
		if s.AgentName != RiskPhilosophyAgentName {
			continue
		}
		if s.Direction == opposite && s.Confidence >= e.TailRiskConfidenceThreshold {
			return marketmodel.TestResult{
				Test:          marketmodel.TestTailRisk,
				Verdict:       marketmodel.VerdictWeakens,
				Justification: "risk-philosophy agent signals the opposite direction with high confidence",
			}
		}
	}
	return marketmodel.TestResult{
		Test:          marketmodel.TestTailRisk,
		Verdict:       marketmodel.VerdictHolds,
		Justification: "no high-confidence opposing risk-philosophy signal",
	}
}

func oppositeDirection(side marketmodel.Side) signal.Direction {
	if side == marketmodel.SideBull {
		return signal.DirectionNo
	}
	return signal.DirectionYes
}

// Debate cross-examines both theses (a nil thesis is skipped, leaving its
// results empty and its survival score 0) and assembles the DebateRecord.
func (e *Examiner) Debate(bull, bear *marketmodel.Thesis, mbd *marketmodel.MBD, signals []signal.AgentSignal) marketmodel.DebateRecord {
	record := marketmodel.DebateRecord{}
	if bull != nil {
		record.BullResults = e.Examine(bull, mbd, signals)
		record.BullSurvival = marketmodel.SurvivalScore(record.BullResults)
	}
	if bear != nil {
		record.BearResults = e.Examine(bear, mbd, signals)
		record.BearSurvival = marketmodel.SurvivalScore(record.BearResults)
	}
	return record
}

// CrossExamNode is the graph node that cross-examines both theses.
type CrossExamNode struct {
	Examiner *Examiner
}

// NewCrossExamNode returns a CrossExamNode.
func NewCrossExamNode(examiner *Examiner) *CrossExamNode {
	return &CrossExamNode{Examiner: examiner}
}

func (n *CrossExamNode) Name() string    { return "crossexam" }
func (n *CrossExamNode) Skippable() bool { return true }

func (n *CrossExamNode) Precondition(state *graph.GraphState) bool {
	return state.MBD != nil && (state.BullThesis != nil || state.BearThesis != nil)
}

func (n *CrossExamNode) Run(_ context.Context, state *graph.GraphState) (graph.PartialState, error) {
	record := n.Examiner.Debate(state.BullThesis, state.BearThesis, state.MBD, state.Signals)

	return graph.PartialState{
		Debate: &record,
		AuditLog: []graph.AuditEntry{graph.Audit("crossexam", map[string]interface{}{
			"bullSurvival": record.BullSurvival,
			"bearSurvival": record.BearSurvival,
		})},
	}, nil
}

var _ graph.Node = (*CrossExamNode)(nil)
