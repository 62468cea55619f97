package graph

import (
	"context"
	"errors"
	"testing"
)

// fakeNode is a scripted Node used to exercise Graph.Run's orchestration
// rules without depending on any real pipeline stage.
type fakeNode struct {
	name         string
	skippable    bool
	precondition bool
	partial      PartialState
	err          error
	calls        int
}

func (n *fakeNode) Name() string    { return n.name }
func (n *fakeNode) Skippable() bool { return n.skippable }
func (n *fakeNode) Precondition(*GraphState) bool {
	return n.precondition
}
func (n *fakeNode) Run(_ context.Context, _ *GraphState) (PartialState, error) {
	n.calls++
	return n.partial, n.err
}

func TestGraph_Run_ExecutesNodesInOrderAndMarksCompleted(t *testing.T) {
	a := &fakeNode{name: "a"}
	b := &fakeNode{name: "b"}

	g := New([]Node{a, b}, 0)
	state, err := g.Run(context.Background(), "0xabc", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("calls = a:%d b:%d, want 1 each", a.calls, b.calls)
	}
	if !state.CompletedNodes["a"] || !state.CompletedNodes["b"] {
		t.Error("CompletedNodes missing a and/or b after a full run")
	}
}

func TestGraph_Run_SkipsNodeWhenPreconditionFails(t *testing.T) {
	skipped := &fakeNode{name: "cross-exam", skippable: true, precondition: false}

	g := New([]Node{skipped}, 0)
	state, err := g.Run(context.Background(), "0xabc", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if skipped.calls != 0 {
		t.Error("Run() dispatched a node whose precondition failed")
	}
	if len(state.AuditLog) != 1 || !state.AuditLog[0].Skipped {
		t.Errorf("AuditLog = %+v, want one skipped entry", state.AuditLog)
	}
	if !state.CompletedNodes["cross-exam"] {
		t.Error("a skipped node must still be marked completed")
	}
}

func TestGraph_Run_SkippableNodeWithPassingPreconditionRuns(t *testing.T) {
	node := &fakeNode{name: "cross-exam", skippable: true, precondition: true}

	g := New([]Node{node}, 0)
	if _, err := g.Run(context.Background(), "0xabc", nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if node.calls != 1 {
		t.Error("Run() did not dispatch a skippable node whose precondition held")
	}
}

func TestGraph_Run_HaltsAfterIngestionError(t *testing.T) {
	ingestion := &fakeNode{name: "ingestion", partial: PartialState{
		IngestionError: &IngestionError{Code: ErrAPIUnavailable, Message: "down"},
	}}
	downstream := &fakeNode{name: "memory"}

	g := New([]Node{ingestion, downstream}, 0)
	state, err := g.Run(context.Background(), "0xabc", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if downstream.calls != 0 {
		t.Error("Run() dispatched a node after an ingestion error, want the run halted")
	}
	if state.IngestionError == nil {
		t.Error("state.IngestionError = nil, want it populated from the ingestion node")
	}
}

func TestGraph_Run_AbortsFanOutWhenBelowMinAgentsRequired(t *testing.T) {
	fanout := &fakeNode{name: FanOutNodeName}
	downstream := &fakeNode{name: "thesis"}

	g := New([]Node{fanout, downstream}, 3)
	state, err := g.Run(context.Background(), "0xabc", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if downstream.calls != 0 {
		t.Error("Run() dispatched thesis construction despite too few surviving signals")
	}
	found := false
	for _, entry := range state.AuditLog {
		if entry.Stage == "fan-in" && entry.Data["aborted"] == true {
			found = true
		}
	}
	if !found {
		t.Error("AuditLog missing the fan-in abort entry")
	}
}

func TestGraph_Run_ContinuesPastNodeErrorWithAuditEntry(t *testing.T) {
	failing := &fakeNode{name: "thesis", err: errors.New("llm timeout")}
	downstream := &fakeNode{name: "cross-exam"}

	g := New([]Node{failing, downstream}, 0)
	state, err := g.Run(context.Background(), "0xabc", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if downstream.calls != 1 {
		t.Error("Run() stopped dispatching after a non-ingestion node error, want it to continue")
	}
	found := false
	for _, entry := range state.AuditLog {
		if entry.Stage == "thesis" && entry.Data["error"] == "llm timeout" {
			found = true
		}
	}
	if !found {
		t.Error("AuditLog missing the error entry for the failing node")
	}
}

func TestGraph_Run_RecursionLimitExceeded(t *testing.T) {
	nodes := []Node{&fakeNode{name: "a"}, &fakeNode{name: "b"}, &fakeNode{name: "c"}}

	g := New(nodes, 0)
	g.RecursionLimit = 2

	_, err := g.Run(context.Background(), "0xabc", nil)
	if err == nil {
		t.Fatal("Run() error = nil, want a recursion-limit error")
	}
}

func TestGraph_Run_ResumesFromCheckpointSkippingCompletedNodes(t *testing.T) {
	cp := NewMemoryCheckpointer()
	checkpointed := NewGraphState("0xabc")
	checkpointed.CompletedNodes["a"] = true
	if err := cp.Save(context.Background(), "0xabc", checkpointed); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	a := &fakeNode{name: "a"}
	b := &fakeNode{name: "b"}

	g := New([]Node{a, b}, 0)
	if _, err := g.Run(context.Background(), "0xabc", cp); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if a.calls != 0 {
		t.Error("Run() re-executed a node already marked completed in the loaded checkpoint")
	}
	if b.calls != 1 {
		t.Error("Run() did not execute the node not yet completed")
	}
}
