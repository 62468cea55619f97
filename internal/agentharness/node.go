package agentharness

import (
	"context"

	"github.com/ajitpratap0/marketoracle/internal/graph"
)

// FanOutNode runs the Harness as the graph's fan-out step, named to match
// graph.FanOutNodeName so Graph.Run can apply the minAgentsRequired abort
// check immediately after it completes.
type FanOutNode struct {
	Harness *Harness
}

// NewFanOutNode returns a FanOutNode wrapping harness.
func NewFanOutNode(harness *Harness) *FanOutNode {
	return &FanOutNode{Harness: harness}
}

func (n *FanOutNode) Name() string    { return graph.FanOutNodeName }
func (n *FanOutNode) Skippable() bool { return true }

func (n *FanOutNode) Precondition(state *graph.GraphState) bool {
	return state.MBD != nil && state.IngestionError == nil
}

func (n *FanOutNode) Run(ctx context.Context, state *graph.GraphState) (graph.PartialState, error) {
	results := n.Harness.Run(ctx, state)

	partial := graph.PartialState{}
	succeeded := 0
	for _, r := range results {
		if r.Signal != nil {
			partial.Signals = append(partial.Signals, *r.Signal)
			succeeded++
			continue
		}
		partial.AgentErrors = append(partial.AgentErrors, graph.AgentError{
			AgentName: r.AgentName,
			Err:       r.Err,
			TimedOut:  r.TimedOut,
		})
	}

	partial.AuditLog = []graph.AuditEntry{graph.Audit(graph.FanOutNodeName, map[string]interface{}{
		"agentCount": len(results),
		"succeeded":  succeeded,
		"failed":     len(results) - succeeded,
	})}

	return partial, nil
}

var _ graph.Node = (*FanOutNode)(nil)
