// Package consensus builds the bull/bear theses, cross-examines them,
// fuses surviving signals into a consensus probability, and renders the
// terminal trade recommendation (spec.md §4.7-§4.10).
package consensus

import (
	"context"

	"github.com/ajitpratap0/marketoracle/internal/graph"
	"github.com/ajitpratap0/marketoracle/internal/marketmodel"
	"github.com/ajitpratap0/marketoracle/internal/signal"
)

// ThesisBuilder constructs the bull and bear theses from surviving agent
// signals (spec.md §4.7).
type ThesisBuilder struct {
	ConfidenceThreshold float64
	TopKDrivers         int
	Weigher             *Weigher
}

// NewThesisBuilder returns a ThesisBuilder using the given confidence
// threshold and driver count.
func NewThesisBuilder(confidenceThreshold float64, topKDrivers int, weigher *Weigher) *ThesisBuilder {
	if topKDrivers <= 0 {
		topKDrivers = 3
	}
	return &ThesisBuilder{ConfidenceThreshold: confidenceThreshold, TopKDrivers: topKDrivers, Weigher: weigher}
}

// Build selects the signals aligned with each side, keeps only those
// meeting the confidence threshold, and assembles a Thesis per side. A side
// with no qualifying signals returns a nil thesis for that side.
func (tb *ThesisBuilder) Build(signals []signal.AgentSignal) (bull, bear *marketmodel.Thesis, err error) {
	yes := tb.filterSide(signals, signal.DirectionYes)
	no := tb.filterSide(signals, signal.DirectionNo)

	if len(yes) > 0 {
		bull, err = tb.assemble(marketmodel.SideBull, yes)
		if err != nil {
			return nil, nil, err
		}
	}
	if len(no) > 0 {
		bear, err = tb.assemble(marketmodel.SideBear, no)
		if err != nil {
			return nil, nil, err
		}
	}
	return bull, bear, nil
}

func (tb *ThesisBuilder) filterSide(signals []signal.AgentSignal, direction signal.Direction) []signal.AgentSignal {
	out := make([]signal.AgentSignal, 0, len(signals))
	for _, s := range signals {
		if s.Direction == direction && s.Confidence >= tb.ConfidenceThreshold {
			out = append(out, s)
		}
	}
	return out
}

func (tb *ThesisBuilder) assemble(side marketmodel.Side, signals []signal.AgentSignal) (*marketmodel.Thesis, error) {
	claims := make([]string, 0, len(signals))
	supporting := make([]string, 0, len(signals))
	catalystSet := make(map[string]struct{})
	var catalysts []string

	driverCounts := make(map[string]int)
	for _, s := range signals {
		claims = append(claims, s.KeyDrivers...)
		supporting = append(supporting, s.AgentName)
		for _, d := range s.KeyDrivers {
			driverCounts[d]++
		}
	}

	topDrivers := topKByCount(driverCounts, tb.TopKDrivers)

	for _, d := range topDrivers {
		if _, ok := catalystSet[d]; !ok {
			catalystSet[d] = struct{}{}
			catalysts = append(catalysts, d)
		}
	}

	var impliedProbability float64
	if tb.Weigher != nil {
		impliedProbability = tb.Weigher.WeightedMean(signals)
	} else {
		impliedProbability = simpleMean(signals)
	}

	return marketmodel.NewThesis(side, dedupe(claims), catalysts, supporting, []string{}, impliedProbability)
}

func topKByCount(counts map[string]int, k int) []string {
	type kv struct {
		key   string
		count int
	}
	kvs := make([]kv, 0, len(counts))
	for key, count := range counts {
		kvs = append(kvs, kv{key, count})
	}
	// stable-ish selection sort by count descending, good enough for the
	// small driver sets a single graph run produces.
	for i := 0; i < len(kvs); i++ {
		max := i
		for j := i + 1; j < len(kvs); j++ {
			if kvs[j].count > kvs[max].count {
				max = j
			}
		}
		kvs[i], kvs[max] = kvs[max], kvs[i]
	}
	if k > len(kvs) {
		k = len(kvs)
	}
	out := make([]string, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, kvs[i].key)
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

func simpleMean(signals []signal.AgentSignal) float64 {
	if len(signals) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, s := range signals {
		sum += s.FairProbability
	}
	return sum / float64(len(signals))
}

// ThesisNode is the graph node that constructs both theses from the
// surviving fan-out signals.
type ThesisNode struct {
	Builder *ThesisBuilder
}

// NewThesisNode returns a ThesisNode.
func NewThesisNode(builder *ThesisBuilder) *ThesisNode {
	return &ThesisNode{Builder: builder}
}

func (n *ThesisNode) Name() string    { return "thesis" }
func (n *ThesisNode) Skippable() bool { return true }

func (n *ThesisNode) Precondition(state *graph.GraphState) bool {
	return state.MBD != nil && state.IngestionError == nil && len(state.Signals) > 0
}

func (n *ThesisNode) Run(_ context.Context, state *graph.GraphState) (graph.PartialState, error) {
	bull, bear, err := n.Builder.Build(state.Signals)
	if err != nil {
		return graph.PartialState{
			AuditLog: []graph.AuditEntry{graph.Audit("thesis", map[string]interface{}{"error": err.Error()})},
		}, nil
	}

	return graph.PartialState{
		BullThesis: bull,
		BearThesis: bear,
		AuditLog: []graph.AuditEntry{graph.Audit("thesis", map[string]interface{}{
			"hasBull": bull != nil,
			"hasBear": bear != nil,
		})},
	}, nil
}

var _ graph.Node = (*ThesisNode)(nil)
