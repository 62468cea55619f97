package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ajitpratap0/marketoracle/internal/graph"
	"github.com/ajitpratap0/marketoracle/internal/signal"
	"github.com/rs/zerolog/log"
)

// Default retrieval depth bounds (spec.md §4.3): between 3 and 5 prior
// signals per agent are pulled into context.
const (
	MinSignalsPerAgent = 3
	MaxSignalsPerAgent = 5

	// DefaultContextCharBudget bounds the serialized context handed to each
	// agent; truncation drops the oldest signals first, preserving the most
	// recent ones, mirroring the teacher's recency-weighted retrieval.
	DefaultContextCharBudget = 4000

	// DefaultRetrievalTimeout is the per-market retrieval deadline; on
	// expiry the node degrades gracefully with empty context rather than
	// blocking the graph.
	DefaultRetrievalTimeout = 5 * time.Second
)

// SignalStore is the persistence collaborator memory retrieval needs: the
// k most recent signals a named agent produced for a market, newest first.
type SignalStore interface {
	GetRecentSignalsForAgent(ctx context.Context, agentName, conditionID string, limit int) ([]StoredSignal, error)
}

// StoredSignal is a persisted signal record as the store returns it; Payload
// holds the JSON-encoded signal.AgentSignal recorded at signal time.
type StoredSignal struct {
	AgentName string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Retriever builds the per-agent memory context consumed by every
// intelligence agent before it runs, one retrieval per agent name.
type Retriever struct {
	Store        SignalStore
	K            int
	CharBudget   int
	Timeout      time.Duration
}

// NewRetriever returns a Retriever using the package's default bounds.
func NewRetriever(store SignalStore) *Retriever {
	return &Retriever{
		Store:      store,
		K:          MaxSignalsPerAgent,
		CharBudget: DefaultContextCharBudget,
		Timeout:    DefaultRetrievalTimeout,
	}
}

// Context retrieves, for each agent name, its recent signals on this market
// and renders them into a length-budgeted, newest-preserving text block. A
// per-agent failure or the overall timeout degrades that agent to an empty,
// Truncated=false context rather than failing the whole retrieval.
func (r *Retriever) Context(ctx context.Context, conditionID string, agentNames []string) (map[string]graph.AgentMemoryContext, error) {
	k := r.K
	if k < MinSignalsPerAgent {
		k = MinSignalsPerAgent
	}
	if k > MaxSignalsPerAgent {
		k = MaxSignalsPerAgent
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultRetrievalTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(map[string]graph.AgentMemoryContext, len(agentNames))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range agentNames {
		wg.Add(1)
		go func(agentName string) {
			defer wg.Done()
			mc := r.contextFor(ctx, conditionID, agentName, k)
			mu.Lock()
			result[agentName] = mc
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	return result, nil
}

func (r *Retriever) contextFor(ctx context.Context, conditionID, agentName string, k int) graph.AgentMemoryContext {
	stored, err := r.Store.GetRecentSignalsForAgent(ctx, agentName, conditionID, k)
	if err != nil {
		log.Warn().Err(err).Str("agent", agentName).Str("conditionId", conditionID).Msg("memory retrieval degraded")
		return graph.AgentMemoryContext{AgentName: agentName, Context: "", Truncated: false}
	}

	return graph.AgentMemoryContext{
		AgentName: agentName,
		Context:   renderTruncated(stored, r.charBudget()),
		Truncated: rendersOverBudget(stored, r.charBudget()),
	}
}

func (r *Retriever) charBudget() int {
	if r.CharBudget <= 0 {
		return DefaultContextCharBudget
	}
	return r.CharBudget
}

// renderTruncated renders stored signals newest-first into a text block,
// dropping the oldest entries once the char budget is exhausted.
func renderTruncated(stored []StoredSignal, budget int) string {
	var b strings.Builder
	for _, s := range stored {
		var sig signal.AgentSignal
		line := string(s.Payload)
		if err := json.Unmarshal(s.Payload, &sig); err == nil {
			line = fmt.Sprintf("[%s] %s fairP=%.2f conf=%.2f drivers=%s",
				s.CreatedAt.Format(time.RFC3339), sig.Direction, sig.FairProbability, sig.Confidence,
				strings.Join(sig.KeyDrivers, "; "))
		}
		if b.Len()+len(line)+1 > budget {
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func rendersOverBudget(stored []StoredSignal, budget int) bool {
	full := renderTruncated(stored, 1<<30)
	return len(full) > budget
}
