// Package graph implements the checkpointable node graph that drives one
// analysis run for a single market: Ingestion, Memory Retrieval, the
// parallel agent fan-out, Thesis Construction, Cross-Examination, Consensus,
// and Recommendation. State is threaded through the run as a single
// structured value; each node returns a partial update that the runtime
// merges in per spec.md §4.1.
package graph

import (
	"time"

	"github.com/ajitpratap0/marketoracle/internal/marketmodel"
	"github.com/ajitpratap0/marketoracle/internal/signal"
)

// IngestionErrorCode enumerates the taxonomy a failed ingestion node returns.
type IngestionErrorCode string

const (
	ErrAPIUnavailable    IngestionErrorCode = "API_UNAVAILABLE"
	ErrRateLimitExceeded IngestionErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrInvalidMarketID   IngestionErrorCode = "INVALID_MARKET_ID"
)

// IngestionError is the terminal failure state of the ingestion node. Its
// presence in GraphState halts the run: no further nodes execute.
type IngestionError struct {
	Code    IngestionErrorCode
	Message string
}

func (e *IngestionError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// AgentError records one fan-out agent's failure without propagating it.
// It is always appended, never replaced, so a run's full error history
// survives in the audit trail even if later nodes run to completion.
type AgentError struct {
	AgentName string
	Err       error
	TimedOut  bool
}

// AgentMemoryContext is the per-agent slice of the Memory Retrieval node's
// output: the formatted context string for one agent's prior signals on
// this market, plus whether it was truncated to fit the length budget.
type AgentMemoryContext struct {
	AgentName string
	Context   string
	Truncated bool
}

// AuditEntry is one append-only record of a node's execution. The log is
// monotonic in Timestamp per producer (spec.md Testable Property 13).
type AuditEntry struct {
	Stage     string
	Timestamp time.Time
	Data      map[string]interface{}
	Skipped   bool
}

// GraphState is the single structured value threaded through a run. Every
// node reads a (possibly partial) GraphState and returns a PartialState that
// the runtime merges into it before the next node runs.
type GraphState struct {
	ConditionID string

	MBD             *marketmodel.MBD
	IngestionError  *IngestionError
	MemoryContext   map[string]AgentMemoryContext
	Signals         []signal.AgentSignal
	AgentErrors     []AgentError
	BullThesis      *marketmodel.Thesis
	BearThesis      *marketmodel.Thesis
	Debate          *marketmodel.DebateRecord
	Consensus       *marketmodel.Consensus
	Recommendation  *marketmodel.Recommendation
	AuditLog        []AuditEntry

	// CompletedNodes tracks which node names have already produced a
	// committed partial update in this run, for checkpoint resume.
	CompletedNodes map[string]bool
}

// NewGraphState returns an initialized, empty state for one run.
func NewGraphState(conditionID string) *GraphState {
	return &GraphState{
		ConditionID:    conditionID,
		MemoryContext:  make(map[string]AgentMemoryContext),
		CompletedNodes: make(map[string]bool),
	}
}

// PartialState is the shape every node returns: the same fields as
// GraphState, but every field is nil-able, representing only what that one
// node contributes. MergeInto folds it into the authoritative GraphState.
type PartialState struct {
	MBD            *marketmodel.MBD
	IngestionError *IngestionError
	MemoryContext  map[string]AgentMemoryContext
	Signals        []signal.AgentSignal
	AgentErrors    []AgentError
	BullThesis     *marketmodel.Thesis
	BearThesis     *marketmodel.Thesis
	Debate         *marketmodel.DebateRecord
	Consensus      *marketmodel.Consensus
	Recommendation *marketmodel.Recommendation
	AuditLog       []AuditEntry
}

// MergeInto applies this partial update to state using the merge rules from
// spec.md §4.1: scalar pointer fields replace when non-nil, slice fields
// append, map fields merge by key with the partial's value winning.
func (p PartialState) MergeInto(state *GraphState) {
	if p.MBD != nil {
		state.MBD = p.MBD
	}
	if p.IngestionError != nil {
		state.IngestionError = p.IngestionError
	}
	if p.BullThesis != nil {
		state.BullThesis = p.BullThesis
	}
	if p.BearThesis != nil {
		state.BearThesis = p.BearThesis
	}
	if p.Debate != nil {
		state.Debate = p.Debate
	}
	if p.Consensus != nil {
		state.Consensus = p.Consensus
	}
	if p.Recommendation != nil {
		state.Recommendation = p.Recommendation
	}

	state.Signals = append(state.Signals, p.Signals...)
	state.AgentErrors = append(state.AgentErrors, p.AgentErrors...)
	state.AuditLog = append(state.AuditLog, p.AuditLog...)

	if len(p.MemoryContext) > 0 {
		if state.MemoryContext == nil {
			state.MemoryContext = make(map[string]AgentMemoryContext, len(p.MemoryContext))
		}
		for k, v := range p.MemoryContext {
			state.MemoryContext[k] = v
		}
	}
}

// Audit appends one audit entry for the given stage, stamping it with the
// current time so AuditLog stays monotonic per producer.
func Audit(stage string, data map[string]interface{}) AuditEntry {
	return AuditEntry{Stage: stage, Timestamp: time.Now(), Data: data}
}

// SkippedAudit records a skippable node's decision not to run.
func SkippedAudit(stage, reason string) AuditEntry {
	return AuditEntry{
		Stage:     stage,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"reason": reason},
		Skipped:   true,
	}
}
