package consensus

import (
	"testing"

	"github.com/ajitpratap0/marketoracle/internal/graph"
	"github.com/ajitpratap0/marketoracle/internal/marketmodel"
	"github.com/ajitpratap0/marketoracle/internal/signal"
)

func sig(name string, direction signal.Direction, confidence, fairProb float64, drivers ...string) signal.AgentSignal {
	return signal.AgentSignal{
		AgentName:       name,
		Direction:       direction,
		Confidence:      confidence,
		FairProbability: fairProb,
		KeyDrivers:      drivers,
	}
}

func TestThesisBuilder_Build_SplitsBySide(t *testing.T) {
	tb := NewThesisBuilder(0.5, 3, nil)
	signals := []signal.AgentSignal{
		sig("a", signal.DirectionYes, 0.8, 0.7, "strong earnings"),
		sig("b", signal.DirectionYes, 0.6, 0.65, "strong earnings", "insider buying"),
		sig("c", signal.DirectionNo, 0.9, 0.2, "regulatory risk"),
	}

	bull, bear, err := tb.Build(signals)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if bull == nil || bull.Side != marketmodel.SideBull {
		t.Fatalf("bull = %+v, want a bull-side thesis", bull)
	}
	if bear == nil || bear.Side != marketmodel.SideBear {
		t.Fatalf("bear = %+v, want a bear-side thesis", bear)
	}
	if len(bull.SupportingSignals) != 2 {
		t.Errorf("bull.SupportingSignals = %v, want 2 agents", bull.SupportingSignals)
	}
}

func TestThesisBuilder_Build_FiltersBelowConfidenceThreshold(t *testing.T) {
	tb := NewThesisBuilder(0.75, 3, nil)
	signals := []signal.AgentSignal{
		sig("a", signal.DirectionYes, 0.5, 0.6, "weak catalyst"),
	}

	bull, bear, err := tb.Build(signals)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if bull != nil {
		t.Errorf("bull = %+v, want nil when no signal clears the confidence threshold", bull)
	}
	if bear != nil {
		t.Errorf("bear = %+v, want nil", bear)
	}
}

func TestThesisBuilder_Build_TopKDriversByFrequency(t *testing.T) {
	tb := NewThesisBuilder(0.0, 2, nil)
	signals := []signal.AgentSignal{
		sig("a", signal.DirectionYes, 0.6, 0.6, "common-driver", "rare-a"),
		sig("b", signal.DirectionYes, 0.6, 0.6, "common-driver", "rare-b"),
		sig("c", signal.DirectionYes, 0.6, 0.6, "common-driver"),
	}

	bull, _, err := tb.Build(signals)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(bull.KeyCatalysts) != 2 {
		t.Fatalf("KeyCatalysts = %v, want exactly 2 (TopKDrivers)", bull.KeyCatalysts)
	}
	if bull.KeyCatalysts[0] != "common-driver" {
		t.Errorf("KeyCatalysts[0] = %q, want the most frequent driver first", bull.KeyCatalysts[0])
	}
}

func TestThesisBuilder_Build_UsesWeigherWhenProvided(t *testing.T) {
	weigher := NewWeigher(nil, 1.0, nil, 0, 0, 1.0)
	tb := NewThesisBuilder(0.0, 3, weigher)
	signals := []signal.AgentSignal{
		sig("a", signal.DirectionYes, 0.6, 0.9, "x"),
	}

	bull, _, err := tb.Build(signals)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if bull.ImpliedProbability != 0.9 {
		t.Errorf("ImpliedProbability = %v, want 0.9 from the single weighted signal", bull.ImpliedProbability)
	}
}

func TestThesisNode_Precondition(t *testing.T) {
	node := NewThesisNode(NewThesisBuilder(0.5, 3, nil))

	state := graph.NewGraphState("0xabc")
	if node.Precondition(state) {
		t.Error("Precondition() = true with no MBD or signals, want false")
	}

	state.MBD = &marketmodel.MBD{}
	state.Signals = []signal.AgentSignal{sig("a", signal.DirectionYes, 0.8, 0.7, "x")}
	if !node.Precondition(state) {
		t.Error("Precondition() = false with MBD and signals present, want true")
	}
}

func TestThesisNode_Run_PopulatesBothTheses(t *testing.T) {
	node := NewThesisNode(NewThesisBuilder(0.5, 3, nil))
	state := graph.NewGraphState("0xabc")
	state.MBD = &marketmodel.MBD{}
	state.Signals = []signal.AgentSignal{
		sig("a", signal.DirectionYes, 0.8, 0.7, "x"),
		sig("b", signal.DirectionNo, 0.8, 0.2, "y"),
	}

	partial, err := node.Run(nil, state)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if partial.BullThesis == nil || partial.BearThesis == nil {
		t.Fatalf("partial = %+v, want both theses populated", partial)
	}
	if len(partial.AuditLog) != 1 {
		t.Errorf("AuditLog = %v, want 1 entry", partial.AuditLog)
	}
}
