package memory

import (
	"context"

	"github.com/ajitpratap0/marketoracle/internal/graph"
)

// RetrievalNode is the graph's second node: it fans the memory retriever out
// across every configured agent name before the intelligence agents run.
type RetrievalNode struct {
	Retriever  *Retriever
	AgentNames []string
}

// NewRetrievalNode returns a RetrievalNode for the given agent roster.
func NewRetrievalNode(retriever *Retriever, agentNames []string) *RetrievalNode {
	return &RetrievalNode{Retriever: retriever, AgentNames: agentNames}
}

func (n *RetrievalNode) Name() string    { return "memory" }
func (n *RetrievalNode) Skippable() bool { return true }

// Precondition requires ingestion to have produced an MBD; memory retrieval
// is pointless once ingestion has already failed.
func (n *RetrievalNode) Precondition(state *graph.GraphState) bool {
	return state.MBD != nil && state.IngestionError == nil
}

func (n *RetrievalNode) Run(ctx context.Context, state *graph.GraphState) (graph.PartialState, error) {
	contexts, err := n.Retriever.Context(ctx, state.ConditionID, n.AgentNames)
	if err != nil {
		return graph.PartialState{
			AuditLog: []graph.AuditEntry{graph.Audit("memory", map[string]interface{}{"error": err.Error()})},
		}, nil
	}

	return graph.PartialState{
		MemoryContext: contexts,
		AuditLog: []graph.AuditEntry{graph.Audit("memory", map[string]interface{}{
			"agentCount": len(contexts),
		})},
	}, nil
}

var _ graph.Node = (*RetrievalNode)(nil)
