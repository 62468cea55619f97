// Package performance tracks each intelligence agent's durable execution
// metrics and resolution accuracy, serialized per agent so concurrent graph
// runs never race on the same agent's counters (spec.md §4.12).
package performance

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NeutralAccuracy is the accuracyScore an agent with no resolved-market
// history reports, per spec.md §4.12/§8.
const NeutralAccuracy = 0.5

// BrierEMAFactor weights each new sample's Brier accuracy against the
// running accuracyScore.
const BrierEMAFactor = 0.1

// Metrics is one agent's durable performance record.
type Metrics struct {
	AgentName           string
	TotalAnalyses       int
	AverageConfidence   float64
	AccuracyScore       float64
	AverageExecutionTime time.Duration
	ErrorRate           float64
	LastUpdated         time.Time
}

type agentState struct {
	mu      sync.Mutex
	metrics Metrics
	errors  int
}

// Tracker is the process-wide collaborator every agent execution and every
// market resolution reports into.
type Tracker struct {
	mu     sync.RWMutex
	agents map[string]*agentState
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{agents: make(map[string]*agentState)}
}

func (t *Tracker) stateFor(agentName string) *agentState {
	t.mu.RLock()
	s, ok := t.agents[agentName]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.agents[agentName]; ok {
		return s
	}
	s = &agentState{metrics: Metrics{AgentName: agentName, AccuracyScore: NeutralAccuracy}}
	t.agents[agentName] = s
	return s
}

// RecordExecution updates an agent's cumulative-mean counters after one
// fan-out invocation, satisfying agentharness.PerformanceRecorder.
func (t *Tracker) RecordExecution(agentName string, success bool, latency time.Duration) {
	t.RecordExecutionWithConfidence(agentName, success, latency, 0, success)
}

// RecordExecutionWithConfidence is the fuller update used by callers that
// have the agent's stated confidence on hand (the harness itself does not,
// since confidence lives inside the decoded signal, not the raw Result).
func (t *Tracker) RecordExecutionWithConfidence(agentName string, success bool, latency time.Duration, confidence float64, hadConfidence bool) {
	s := t.stateFor(agentName)
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.metrics.TotalAnalyses
	s.metrics.TotalAnalyses = n + 1

	if hadConfidence {
		s.metrics.AverageConfidence = cumulativeMean(s.metrics.AverageConfidence, n, confidence)
	}
	s.metrics.AverageExecutionTime = time.Duration(cumulativeMean(float64(s.metrics.AverageExecutionTime), n, float64(latency)))

	if !success {
		s.errors++
	}
	s.metrics.ErrorRate = float64(s.errors) / float64(s.metrics.TotalAnalyses)
	s.metrics.LastUpdated = time.Now()
}

// cumulativeMean folds one new sample into a running mean of n prior
// samples, per spec.md §4.12.
func cumulativeMean(prevMean float64, n int, sample float64) float64 {
	return (prevMean*float64(n) + sample) / float64(n+1)
}

// EvaluateOnResolution folds a market's resolved outcome into an agent's
// accuracyScore via Brier-score EMA. predicted is the agent's
// fairProbability of YES for that market; actualYes is whether it resolved
// YES. Per §8's testable property, perfect calibration yields accuracy 1.0
// and anti-calibration yields 0.0.
func (t *Tracker) EvaluateOnResolution(agentName string, predicted float64, actualYes bool) float64 {
	actual := 0.0
	if actualYes {
		actual = 1.0
	}
	sampleAccuracy := 1 - math.Pow(predicted-actual, 2)

	s := t.stateFor(agentName)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.AccuracyScore = BrierEMAFactor*sampleAccuracy + (1-BrierEMAFactor)*s.metrics.AccuracyScore
	s.metrics.LastUpdated = time.Now()
	return s.metrics.AccuracyScore
}

// Get returns a snapshot of one agent's metrics.
func (t *Tracker) Get(agentName string) Metrics {
	s := t.stateFor(agentName)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// Accuracy returns an agent's current accuracyScore and sample size,
// satisfying consensus.PerformanceSource.
func (t *Tracker) Accuracy(agentName string) (float64, int) {
	m := t.Get(agentName)
	return m.AccuracyScore, m.TotalAnalyses
}

// Leaderboard returns every agent with at least minSampleSize analyses,
// sorted by accuracyScore descending.
func (t *Tracker) Leaderboard(minSampleSize int) []Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Metrics, 0, len(t.agents))
	for _, s := range t.agents {
		s.mu.Lock()
		m := s.metrics
		s.mu.Unlock()
		if m.TotalAnalyses >= minSampleSize {
			out = append(out, m)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].AccuracyScore > out[j].AccuracyScore })
	return out
}

// Persist upserts every tracked agent's current Metrics into
// agent_performance_metrics, following the ON CONFLICT upsert shape used
// throughout internal/db. metrics.Updater reads this table back out on its
// own schedule, so the in-memory Tracker stays the single writer.
func (t *Tracker) Persist(ctx context.Context, pool *pgxpool.Pool) error {
	t.mu.RLock()
	snapshots := make([]Metrics, 0, len(t.agents))
	for _, s := range t.agents {
		s.mu.Lock()
		snapshots = append(snapshots, s.metrics)
		s.mu.Unlock()
	}
	t.mu.RUnlock()

	const query = `
		INSERT INTO agent_performance_metrics
			(agent_name, total_analyses, average_confidence, accuracy_score,
			 average_execution_ms, error_rate, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (agent_name) DO UPDATE SET
			total_analyses = EXCLUDED.total_analyses,
			average_confidence = EXCLUDED.average_confidence,
			accuracy_score = EXCLUDED.accuracy_score,
			average_execution_ms = EXCLUDED.average_execution_ms,
			error_rate = EXCLUDED.error_rate,
			last_updated = EXCLUDED.last_updated
	`

	for _, m := range snapshots {
		_, err := pool.Exec(ctx, query,
			m.AgentName, m.TotalAnalyses, m.AverageConfidence, m.AccuracyScore,
			float64(m.AverageExecutionTime)/float64(time.Millisecond), m.ErrorRate, m.LastUpdated,
		)
		if err != nil {
			return err
		}
	}

	return nil
}
