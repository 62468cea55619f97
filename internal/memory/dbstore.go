package memory

import (
	"context"
	"encoding/json"

	"github.com/ajitpratap0/marketoracle/internal/db"
)

// DecisionStore is the subset of *db.DB the retriever depends on.
type DecisionStore interface {
	GetRecentSignalsForAgent(ctx context.Context, agentName, conditionID string, limit int) ([]*db.LLMDecision, error)
}

// DBSignalStore adapts a DecisionStore to SignalStore, decoding each
// decision's recorded response as the signal payload.
type DBSignalStore struct {
	DB DecisionStore
}

// NewDBSignalStore returns a SignalStore backed by the llm_decisions table.
func NewDBSignalStore(store DecisionStore) *DBSignalStore {
	return &DBSignalStore{DB: store}
}

func (s *DBSignalStore) GetRecentSignalsForAgent(ctx context.Context, agentName, conditionID string, limit int) ([]StoredSignal, error) {
	decisions, err := s.DB.GetRecentSignalsForAgent(ctx, agentName, conditionID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]StoredSignal, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, StoredSignal{
			AgentName: d.AgentName,
			Payload:   json.RawMessage(d.Response),
			CreatedAt: d.CreatedAt,
		})
	}
	return out, nil
}

var _ SignalStore = (*DBSignalStore)(nil)
