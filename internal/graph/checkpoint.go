package graph

import (
	"context"
	"sync"

	"github.com/ajitpratap0/marketoracle/internal/signal"
)

// Checkpointer persists GraphState at node boundaries keyed by conditionId,
// so a crashed or restarted run can resume from the last completed node
// instead of re-running the whole graph (spec.md §4.1).
type Checkpointer interface {
	Save(ctx context.Context, conditionID string, state *GraphState) error
	Load(ctx context.Context, conditionID string) (*GraphState, bool, error)
}

// MemoryCheckpointer is an in-memory Checkpointer, used in tests and in any
// deployment that accepts losing in-flight runs on process restart.
type MemoryCheckpointer struct {
	mu    sync.Mutex
	store map[string]*GraphState
}

// NewMemoryCheckpointer returns an empty in-memory checkpointer.
func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{store: make(map[string]*GraphState)}
}

func (m *MemoryCheckpointer) Save(_ context.Context, conditionID string, state *GraphState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[conditionID] = cloneState(state)
	return nil
}

func (m *MemoryCheckpointer) Load(_ context.Context, conditionID string) (*GraphState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.store[conditionID]
	if !ok {
		return nil, false, nil
	}
	return cloneState(state), true, nil
}

// cloneState returns a shallow copy so callers cannot mutate a checkpointer's
// stored state through the pointer they were handed.
func cloneState(state *GraphState) *GraphState {
	clone := *state
	clone.MemoryContext = make(map[string]AgentMemoryContext, len(state.MemoryContext))
	for k, v := range state.MemoryContext {
		clone.MemoryContext[k] = v
	}
	clone.CompletedNodes = make(map[string]bool, len(state.CompletedNodes))
	for k, v := range state.CompletedNodes {
		clone.CompletedNodes[k] = v
	}
	clone.Signals = append([]signal.AgentSignal(nil), state.Signals...)
	clone.AgentErrors = append([]AgentError(nil), state.AgentErrors...)
	clone.AuditLog = append([]AuditEntry(nil), state.AuditLog...)
	return &clone
}
