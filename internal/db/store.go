package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ajitpratap0/marketoracle/internal/marketmodel"
	"github.com/ajitpratap0/marketoracle/internal/signal"
)

// Store is the persistence contract the graph runtime and monitor depend
// on: exactly the eight operations named in spec.md §6, each idempotent
// under retries.
type Store interface {
	UpsertMarket(ctx context.Context, mbd *marketmodel.MBD) error
	StoreRecommendation(ctx context.Context, conditionID string, rec *marketmodel.Recommendation) error
	StoreAgentSignals(ctx context.Context, conditionID string, signals []*signal.AgentSignal) error
	RecordAnalysis(ctx context.Context, conditionID string, runAt time.Time, err error) error
	GetMarketsForUpdate(ctx context.Context, intervalMs int64) ([]string, error)
	MarkMarketResolved(ctx context.Context, conditionID string) error
	GetLatestRecommendation(ctx context.Context, conditionID string) (*marketmodel.Recommendation, error)
	GetRecentSignals(ctx context.Context, agentName, marketID string, k int) ([]*signal.AgentSignal, error)
}

// AnalysisStore implements Store against the shared PostgreSQL pool for
// markets, recommendations, analysis runs, and signal history. Market and
// signal writes use ON CONFLICT; recommendation and analysis-run writes
// insert a new row per call.
type AnalysisStore struct {
	db *DB
}

// NewAnalysisStore returns a Store backed by db.
func NewAnalysisStore(db *DB) *AnalysisStore {
	return &AnalysisStore{db: db}
}

var _ Store = (*AnalysisStore)(nil)

// UpsertMarket inserts or refreshes a market's briefing document.
func (s *AnalysisStore) UpsertMarket(ctx context.Context, mbd *marketmodel.MBD) error {
	metadata, err := json.Marshal(mbd.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO markets (
			market_id, condition_id, event_type, question, resolution_criteria,
			expiry_timestamp, current_probability, liquidity_score, bid_ask_spread,
			volatility_regime, volume_24h, metadata, ingested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (condition_id) DO UPDATE SET
			current_probability = EXCLUDED.current_probability,
			liquidity_score = EXCLUDED.liquidity_score,
			bid_ask_spread = EXCLUDED.bid_ask_spread,
			volatility_regime = EXCLUDED.volatility_regime,
			volume_24h = EXCLUDED.volume_24h,
			metadata = EXCLUDED.metadata,
			ingested_at = EXCLUDED.ingested_at
	`
	_, err = s.db.pool.Exec(ctx, query,
		mbd.MarketID, mbd.ConditionID, string(mbd.EventType), mbd.Question, mbd.ResolutionCriteria,
		mbd.ExpiryTimestamp, mbd.CurrentProbability, mbd.LiquidityScore, mbd.BidAskSpread,
		string(mbd.VolatilityRegime), mbd.Volume24h, metadata, mbd.IngestedAt,
	)
	return err
}

// StoreRecommendation persists the terminal artifact of a graph run. A
// market may accumulate many recommendations over time; GetLatestRecommendation
// returns the most recently inserted one.
func (s *AnalysisStore) StoreRecommendation(ctx context.Context, conditionID string, rec *marketmodel.Recommendation) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO recommendations (condition_id, action, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = s.db.pool.Exec(ctx, query, conditionID, string(rec.Action), payload, time.Now())
	return err
}

// StoreAgentSignals persists a batch of signals produced during one fan-out,
// scoped to the market they analyzed.
func (s *AnalysisStore) StoreAgentSignals(ctx context.Context, conditionID string, signals []*signal.AgentSignal) error {
	for _, sig := range signals {
		payload, err := json.Marshal(sig)
		if err != nil {
			return err
		}
		query := `
			INSERT INTO agent_signals (condition_id, agent_name, timestamp, payload)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (condition_id, agent_name, timestamp) DO NOTHING
		`
		if _, err := s.db.pool.Exec(ctx, query, conditionID, sig.AgentName, sig.Timestamp, payload); err != nil {
			return err
		}
	}
	return nil
}

// RecordAnalysis logs one run attempt (success or failure) against a market,
// feeding the monitor's refresh scheduling and operator diagnostics.
func (s *AnalysisStore) RecordAnalysis(ctx context.Context, conditionID string, runAt time.Time, runErr error) error {
	var errText *string
	if runErr != nil {
		text := runErr.Error()
		errText = &text
	}

	query := `
		INSERT INTO analysis_runs (condition_id, run_at, error)
		VALUES ($1, $2, $3)
	`
	_, err := s.db.pool.Exec(ctx, query, conditionID, runAt, errText)
	return err
}

// GetMarketsForUpdate returns condition IDs whose last recorded analysis is
// older than intervalMs (or that have never been analyzed), excluding
// markets already marked resolved.
func (s *AnalysisStore) GetMarketsForUpdate(ctx context.Context, intervalMs int64) ([]string, error) {
	cutoff := time.Now().Add(-time.Duration(intervalMs) * time.Millisecond)

	query := `
		SELECT m.condition_id
		FROM markets m
		LEFT JOIN LATERAL (
			SELECT run_at FROM analysis_runs ar
			WHERE ar.condition_id = m.condition_id
			ORDER BY ar.run_at DESC
			LIMIT 1
		) last_run ON true
		WHERE m.resolved = false
		  AND (last_run.run_at IS NULL OR last_run.run_at < $1)
		ORDER BY last_run.run_at ASC NULLS FIRST
	`
	rows, err := s.db.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkMarketResolved flips a market's resolved flag so future
// GetMarketsForUpdate calls skip it.
func (s *AnalysisStore) MarkMarketResolved(ctx context.Context, conditionID string) error {
	query := `UPDATE markets SET resolved = true WHERE condition_id = $1`
	_, err := s.db.pool.Exec(ctx, query, conditionID)
	return err
}

// GetLatestRecommendation returns the most recent recommendation stored for
// a market, or nil if none exists.
func (s *AnalysisStore) GetLatestRecommendation(ctx context.Context, conditionID string) (*marketmodel.Recommendation, error) {
	query := `
		SELECT payload FROM recommendations
		WHERE condition_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var payload []byte
	err := s.db.pool.QueryRow(ctx, query, conditionID).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var rec marketmodel.Recommendation
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetRecentSignals returns the k most recent signals a given agent produced
// for a given market, newest first, feeding performance tracking and
// few-shot context.
func (s *AnalysisStore) GetRecentSignals(ctx context.Context, agentName, marketID string, k int) ([]*signal.AgentSignal, error) {
	query := `
		SELECT payload FROM agent_signals
		WHERE agent_name = $1 AND condition_id = $2
		ORDER BY timestamp DESC
		LIMIT $3
	`
	rows, err := s.db.pool.Query(ctx, query, agentName, marketID, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []*signal.AgentSignal
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var sig signal.AgentSignal
		if err := json.Unmarshal(payload, &sig); err != nil {
			return nil, err
		}
		signals = append(signals, &sig)
	}
	return signals, rows.Err()
}
