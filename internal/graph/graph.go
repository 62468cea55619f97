package graph

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// DefaultRecursionLimit bounds the number of node executions in a single run,
// terminating pathological cycles per spec.md §4.1.
const DefaultRecursionLimit = 25

// Graph is an ordered list of nodes executed in declared topological order.
// The agent fan-out layer is itself one Node (see internal/agentharness)
// that dispatches its members concurrently and merges their results before
// returning, so Graph.Run never needs to special-case concurrency.
type Graph struct {
	Nodes          []Node
	RecursionLimit int

	// MinAgentsRequired aborts the run at fan-in if fewer signals survive.
	// Checked against state.Signals immediately after the node named
	// FanOutNodeName completes.
	MinAgentsRequired int
}

// FanOutNodeName is the well-known name of the agent fan-out node, used to
// check the minAgentsRequired abort condition right after it runs.
const FanOutNodeName = "agent-fanout"

// New returns a Graph with the default recursion limit.
func New(nodes []Node, minAgentsRequired int) *Graph {
	return &Graph{
		Nodes:             nodes,
		RecursionLimit:    DefaultRecursionLimit,
		MinAgentsRequired: minAgentsRequired,
	}
}

// Run walks the node list in order against a fresh or checkpoint-resumed
// state for conditionID. After each node it checkpoints via checkpointer
// (a nil checkpointer disables checkpointing). On resume, nodes already
// present in the loaded checkpoint's CompletedNodes are skipped.
func (g *Graph) Run(ctx context.Context, conditionID string, checkpointer Checkpointer) (*GraphState, error) {
	state := NewGraphState(conditionID)

	if checkpointer != nil {
		if loaded, ok, err := checkpointer.Load(ctx, conditionID); err != nil {
			log.Warn().Err(err).Str("condition_id", conditionID).Msg("checkpoint load failed, starting fresh")
		} else if ok {
			state = loaded
		}
	}

	limit := g.RecursionLimit
	if limit <= 0 {
		limit = DefaultRecursionLimit
	}

	steps := 0
	for _, node := range g.Nodes {
		if steps >= limit {
			return state, fmt.Errorf("graph: recursion limit %d exceeded at node %q", limit, node.Name())
		}
		steps++

		if state.CompletedNodes[node.Name()] {
			continue
		}

		if state.IngestionError != nil && node.Name() != "ingestion" {
			break
		}

		if node.Skippable() && !node.Precondition(state) {
			PartialState{AuditLog: []AuditEntry{SkippedAudit(node.Name(), "precondition not met")}}.MergeInto(state)
			state.CompletedNodes[node.Name()] = true
			if checkpointer != nil {
				if err := checkpointer.Save(ctx, conditionID, state); err != nil {
					log.Warn().Err(err).Str("condition_id", conditionID).Msg("checkpoint save failed")
				}
			}
			continue
		}

		partial, err := node.Run(ctx, state)
		if err != nil {
			partial.AuditLog = append(partial.AuditLog, Audit(node.Name(), map[string]interface{}{"error": err.Error()}))
		}
		partial.MergeInto(state)
		state.CompletedNodes[node.Name()] = true

		if checkpointer != nil {
			if cpErr := checkpointer.Save(ctx, conditionID, state); cpErr != nil {
				log.Warn().Err(cpErr).Str("condition_id", conditionID).Msg("checkpoint save failed")
			}
		}

		if node.Name() == "ingestion" && state.IngestionError != nil {
			break
		}

		if node.Name() == FanOutNodeName && len(state.Signals) < g.MinAgentsRequired {
			PartialState{AuditLog: []AuditEntry{Audit("fan-in", map[string]interface{}{
				"aborted":            true,
				"reason":             "fewer than minAgentsRequired surviving signals",
				"min_agents_required": g.MinAgentsRequired,
				"surviving":          len(state.Signals),
			})}}.MergeInto(state)
			break
		}
	}

	return state, nil
}
