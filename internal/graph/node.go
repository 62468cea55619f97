package graph

import "context"

// Node is one stage of the workflow graph. Implementations are grouped into
// the non-fan-out pipeline (Ingestion, Memory, Thesis, CrossExam, Consensus,
// Recommendation) and the fan-out layer, which is a single Node that runs
// every intelligence agent concurrently (see internal/agentharness).
type Node interface {
	// Name identifies the node in audit entries and checkpoint state.
	Name() string

	// Skippable reports whether this node may decline to run when its
	// Precondition fails, producing only a skipped audit entry instead of
	// an error.
	Skippable() bool

	// Precondition reports whether the node's required inputs are present
	// in the current state. Only consulted when Skippable() is true.
	Precondition(state *GraphState) bool

	// Run executes the node against the current state and returns the
	// partial update it contributes.
	Run(ctx context.Context, state *GraphState) (PartialState, error)
}
