// Package intelligence hosts the ten named agents that analyze a market
// briefing document from a distinct angle and each emit a signal.AgentSignal,
// plus the Registry they are looked up by for fan-out.
package intelligence

import (
	"context"

	"github.com/ajitpratap0/marketoracle/internal/graph"
	"github.com/ajitpratap0/marketoracle/internal/marketmodel"
	"github.com/ajitpratap0/marketoracle/internal/signal"
)

// Agent is the common shape every intelligence agent implements: prepare its
// LLM input from the shared graph state, invoke the LLM, and post-process
// the raw response into a validated signal.AgentSignal. Splitting the three
// steps (rather than one opaque Run) lets the harness time out or isolate a
// panic at each stage independently and keeps agents testable without a
// live LLM.
type Agent interface {
	Name() string
	PrepareInput(ctx context.Context, state *graph.GraphState) (Input, error)
	InvokeLLM(ctx context.Context, input Input) (string, error)
	PostProcess(ctx context.Context, input Input, rawResponse string) (*signal.AgentSignal, error)
}

// Input is the agent-agnostic payload PrepareInput assembles; concrete
// agents type-assert or re-derive whatever subset of the MBD/memory context
// they need from it.
type Input struct {
	AgentName     string
	MBD           *marketmodel.MBD
	MemoryContext string
	Truncated     bool
}

// Registry is the tagged-variant lookup of every agent by name: a flat map
// rather than an inheritance hierarchy, so the fan-out node can iterate its
// values without knowing each agent's concrete type.
type Registry map[string]Agent

// NewRegistry builds a Registry from a list of agents, keyed by Name().
func NewRegistry(agents ...Agent) Registry {
	r := make(Registry, len(agents))
	for _, a := range agents {
		r[a.Name()] = a
	}
	return r
}

// Names returns the registry's agent names in no particular order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	return names
}
