package consensus

import (
	"context"
	"math"

	"github.com/ajitpratap0/marketoracle/internal/alerts"
	"github.com/ajitpratap0/marketoracle/internal/graph"
	"github.com/ajitpratap0/marketoracle/internal/marketmodel"
	"github.com/ajitpratap0/marketoracle/internal/signal"
)

// PerformanceSource supplies an agent's accuracy-based performance
// adjustment; the performance.Tracker satisfies this.
type PerformanceSource interface {
	Accuracy(agentName string) (accuracy float64, totalAnalyses int)
}

// Weigher computes trust weights and the weighted statistics fusion needs,
// per spec.md §4.9: w_a = baseWeight(a) · perfAdjustment(a) · (1+contextBonus).
type Weigher struct {
	BaseWeights       map[string]float64
	DefaultBaseWeight float64
	Performance       PerformanceSource
	MinSampleSize     int
	ContextBonus      float64
	ConflictThreshold float64
}

// NewWeigher returns a Weigher; a nil Performance source makes perfAdjustment
// always 1.0.
func NewWeigher(baseWeights map[string]float64, defaultBaseWeight float64, perf PerformanceSource, minSampleSize int, contextBonus, conflictThreshold float64) *Weigher {
	return &Weigher{
		BaseWeights:       baseWeights,
		DefaultBaseWeight: defaultBaseWeight,
		Performance:       perf,
		MinSampleSize:     minSampleSize,
		ContextBonus:      contextBonus,
		ConflictThreshold: conflictThreshold,
	}
}

func (w *Weigher) baseWeight(agentName string) float64 {
	if v, ok := w.BaseWeights[agentName]; ok {
		return v
	}
	if w.DefaultBaseWeight > 0 {
		return w.DefaultBaseWeight
	}
	return 1.0
}

func (w *Weigher) perfAdjustment(agentName string) float64 {
	if w.Performance == nil {
		return 1.0
	}
	accuracy, total := w.Performance.Accuracy(agentName)
	if total < w.MinSampleSize {
		return 1.0
	}
	adj := 0.5 + accuracy
	if adj < 0.5 {
		adj = 0.5
	}
	if adj > 1.5 {
		adj = 1.5
	}
	return adj
}

// Weights computes every signal's trust weight, given the majority direction
// across the surviving set (spec.md §4.9's contextBonus term).
func (w *Weigher) Weights(signals []signal.AgentSignal) []float64 {
	majority := majorityDirection(signals)
	weights := make([]float64, len(signals))
	for i, s := range signals {
		bonus := -w.ConflictThreshold
		if s.Direction == majority {
			bonus = w.ContextBonus
		}
		weights[i] = w.baseWeight(s.AgentName) * w.perfAdjustment(s.AgentName) * (1 + bonus)
		if weights[i] < 0 {
			weights[i] = 0
		}
	}
	return weights
}

// WeightedMean computes the trust-weighted mean of fairProbability.
func (w *Weigher) WeightedMean(signals []signal.AgentSignal) float64 {
	if len(signals) == 0 {
		return 0.5
	}
	weights := w.Weights(signals)
	return weightedMean(signals, weights)
}

func weightedMean(signals []signal.AgentSignal, weights []float64) float64 {
	sumW, sumWP := 0.0, 0.0
	for i, s := range signals {
		sumW += weights[i]
		sumWP += weights[i] * s.FairProbability
	}
	if sumW == 0 {
		return simpleMean(signals)
	}
	return sumWP / sumW
}

func weightedStdDev(signals []signal.AgentSignal, weights []float64, mean float64) float64 {
	sumW, sumWSq := 0.0, 0.0
	for i, s := range signals {
		d := s.FairProbability - mean
		sumWSq += weights[i] * d * d
		sumW += weights[i]
	}
	if sumW == 0 {
		return 0
	}
	return math.Sqrt(sumWSq / sumW)
}

func majorityDirection(signals []signal.AgentSignal) signal.Direction {
	counts := map[signal.Direction]int{}
	for _, s := range signals {
		counts[s.Direction]++
	}
	best := signal.DirectionNeutral
	bestCount := -1
	for d, c := range counts {
		if c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}

// RegimeThresholds buckets the weighted standard deviation into the
// Consensus.Regime band; the spec leaves the exact cutoffs to the
// implementation, so these mirror the disagreementIndex = σ/0.5 relation at
// low/mid/high disagreement.
var (
	RegimeLowMax = 0.05
	RegimeMidMax = 0.15
)

func classifyRegime(sigma float64) marketmodel.Regime {
	switch {
	case sigma < RegimeLowMax:
		return marketmodel.RegimeLow
	case sigma < RegimeMidMax:
		return marketmodel.RegimeMid
	default:
		return marketmodel.RegimeHigh
	}
}

// Fuse computes the Consensus from surviving signals (spec.md §4.9).
func (w *Weigher) Fuse(signals []signal.AgentSignal) (*marketmodel.Consensus, error) {
	if len(signals) == 0 {
		return marketmodel.NewConsensus(0.5, 0.5, 0.5, 0, marketmodel.RegimeLow, 0)
	}

	weights := w.Weights(signals)
	mean := weightedMean(signals, weights)
	sigma := weightedStdDev(signals, weights, mean)

	return marketmodel.NewConsensus(
		mean,
		mean-sigma,
		mean+sigma,
		sigma/0.5,
		classifyRegime(sigma),
		len(signals),
	)
}

// FusionNode is the graph node that fuses surviving signals into a
// Consensus, independent of (and ahead of) the recommendation node.
type FusionNode struct {
	Weigher *Weigher
}

// NewFusionNode returns a FusionNode.
func NewFusionNode(weigher *Weigher) *FusionNode {
	return &FusionNode{Weigher: weigher}
}

func (n *FusionNode) Name() string    { return "fusion" }
func (n *FusionNode) Skippable() bool { return true }

func (n *FusionNode) Precondition(state *graph.GraphState) bool {
	return state.MBD != nil && state.IngestionError == nil && len(state.Signals) > 0
}

func (n *FusionNode) Run(ctx context.Context, state *graph.GraphState) (graph.PartialState, error) {
	consensus, err := n.Weigher.Fuse(state.Signals)
	if err != nil {
		return graph.PartialState{
			AuditLog: []graph.AuditEntry{graph.Audit("fusion", map[string]interface{}{"error": err.Error()})},
		}, nil
	}

	if n.Weigher.ConflictThreshold > 0 && consensus.DisagreementIndex >= n.Weigher.ConflictThreshold {
		conditionID := ""
		if state.MBD != nil {
			conditionID = state.MBD.ConditionID
		}
		alerts.AlertHighDisagreement(ctx, conditionID, consensus.DisagreementIndex)
	}

	return graph.PartialState{
		Consensus: consensus,
		AuditLog: []graph.AuditEntry{graph.Audit("fusion", map[string]interface{}{
			"point":             consensus.Point,
			"disagreementIndex": consensus.DisagreementIndex,
			"regime":            consensus.Regime,
		})},
	}, nil
}

var _ graph.Node = (*FusionNode)(nil)
