package db

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// LLMDecision represents a decision made by an intelligence agent LLM call
type LLMDecision struct {
	ID              uuid.UUID  `json:"id"`
	SessionID       *uuid.UUID `json:"session_id,omitempty"`
	DecisionType    string     `json:"decision_type"` // 'signal', 'risk_approval', 'risk_veto', etc.
	ConditionID     string     `json:"condition_id"`
	Prompt          string     `json:"prompt"`
	PromptEmbedding []float32  `json:"prompt_embedding,omitempty"` // 1536-dim OpenAI embeddings
	Response        string     `json:"response"`
	Model           string     `json:"model"`
	TokensUsed      int        `json:"tokens_used"`
	LatencyMs       int        `json:"latency_ms"`
	Outcome         *string    `json:"outcome,omitempty"` // 'CORRECT', 'INCORRECT', 'PENDING'
	BrierScore      *float64   `json:"brier_score,omitempty"`
	Context         []byte     `json:"context,omitempty"` // JSONB - market conditions, indicators, etc.
	AgentName       string     `json:"agent_name"`
	Confidence      float64    `json:"confidence"`
	CreatedAt       time.Time  `json:"created_at"`
}

// InsertLLMDecision records an LLM decision in the database
func (db *DB) InsertLLMDecision(ctx context.Context, decision *LLMDecision) error {
	query := `
		INSERT INTO llm_decisions (
			id, session_id, decision_type, condition_id, prompt, prompt_embedding,
			response, model, tokens_used, latency_ms, outcome, brier_score,
			context, agent_name, confidence, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16
		)
	`

	_, err := db.pool.Exec(
		ctx,
		query,
		decision.ID,
		decision.SessionID,
		decision.DecisionType,
		decision.ConditionID,
		decision.Prompt,
		decision.PromptEmbedding,
		decision.Response,
		decision.Model,
		decision.TokensUsed,
		decision.LatencyMs,
		decision.Outcome,
		decision.BrierScore,
		decision.Context,
		decision.AgentName,
		decision.Confidence,
		decision.CreatedAt,
	)

	return err
}

// UpdateLLMDecisionOutcome updates the resolution outcome and Brier score of a decision
func (db *DB) UpdateLLMDecisionOutcome(ctx context.Context, id uuid.UUID, outcome string, brierScore float64) error {
	query := `
		UPDATE llm_decisions
		SET outcome = $2, brier_score = $3
		WHERE id = $1
	`

	_, err := db.pool.Exec(ctx, query, id, outcome, brierScore)
	return err
}

// GetLLMDecisionsByAgent retrieves recent decisions for a specific agent
func (db *DB) GetLLMDecisionsByAgent(ctx context.Context, agentName string, limit int) ([]*LLMDecision, error) {
	query := `
		SELECT
			id, session_id, decision_type, condition_id, prompt,
			response, model, tokens_used, latency_ms, outcome, brier_score,
			context, agent_name, confidence, created_at
		FROM llm_decisions
		WHERE agent_name = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := db.pool.Query(ctx, query, agentName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*LLMDecision
	for rows.Next() {
		var d LLMDecision
		err := rows.Scan(
			&d.ID,
			&d.SessionID,
			&d.DecisionType,
			&d.ConditionID,
			&d.Prompt,
			&d.Response,
			&d.Model,
			&d.TokensUsed,
			&d.LatencyMs,
			&d.Outcome,
			&d.BrierScore,
			&d.Context,
			&d.AgentName,
			&d.Confidence,
			&d.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, &d)
	}

	return decisions, rows.Err()
}

// GetLLMDecisionsByCondition retrieves recent decisions for a specific market condition
func (db *DB) GetLLMDecisionsByCondition(ctx context.Context, conditionID string, limit int) ([]*LLMDecision, error) {
	query := `
		SELECT
			id, session_id, decision_type, condition_id, prompt,
			response, model, tokens_used, latency_ms, outcome, brier_score,
			context, agent_name, confidence, created_at
		FROM llm_decisions
		WHERE condition_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := db.pool.Query(ctx, query, conditionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*LLMDecision
	for rows.Next() {
		var d LLMDecision
		err := rows.Scan(
			&d.ID,
			&d.SessionID,
			&d.DecisionType,
			&d.ConditionID,
			&d.Prompt,
			&d.Response,
			&d.Model,
			&d.TokensUsed,
			&d.LatencyMs,
			&d.Outcome,
			&d.BrierScore,
			&d.Context,
			&d.AgentName,
			&d.Confidence,
			&d.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, &d)
	}

	return decisions, rows.Err()
}

// GetRecentSignalsForAgent retrieves an agent's most recent recorded signals
// for a given market, newest first, for memory context retrieval.
func (db *DB) GetRecentSignalsForAgent(ctx context.Context, agentName, conditionID string, limit int) ([]*LLMDecision, error) {
	query := `
		SELECT
			id, session_id, decision_type, condition_id, prompt,
			response, model, tokens_used, latency_ms, outcome, brier_score,
			context, agent_name, confidence, created_at
		FROM llm_decisions
		WHERE agent_name = $1 AND condition_id = $2 AND decision_type = 'signal'
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := db.pool.Query(ctx, query, agentName, conditionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*LLMDecision
	for rows.Next() {
		var d LLMDecision
		err := rows.Scan(
			&d.ID,
			&d.SessionID,
			&d.DecisionType,
			&d.ConditionID,
			&d.Prompt,
			&d.Response,
			&d.Model,
			&d.TokensUsed,
			&d.LatencyMs,
			&d.Outcome,
			&d.BrierScore,
			&d.Context,
			&d.AgentName,
			&d.Confidence,
			&d.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, &d)
	}

	return decisions, rows.Err()
}

// GetSuccessfulLLMDecisions retrieves decisions that resolved CORRECT, for learning
func (db *DB) GetSuccessfulLLMDecisions(ctx context.Context, agentName string, limit int) ([]*LLMDecision, error) {
	query := `
		SELECT
			id, session_id, decision_type, condition_id, prompt,
			response, model, tokens_used, latency_ms, outcome, brier_score,
			context, agent_name, confidence, created_at
		FROM llm_decisions
		WHERE agent_name = $1
		  AND outcome = 'CORRECT'
		ORDER BY brier_score ASC, created_at DESC
		LIMIT $2
	`

	rows, err := db.pool.Query(ctx, query, agentName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*LLMDecision
	for rows.Next() {
		var d LLMDecision
		err := rows.Scan(
			&d.ID,
			&d.SessionID,
			&d.DecisionType,
			&d.ConditionID,
			&d.Prompt,
			&d.Response,
			&d.Model,
			&d.TokensUsed,
			&d.LatencyMs,
			&d.Outcome,
			&d.BrierScore,
			&d.Context,
			&d.AgentName,
			&d.Confidence,
			&d.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, &d)
	}

	return decisions, rows.Err()
}

// GetLLMDecisionStats returns statistics about LLM decisions
func (db *DB) GetLLMDecisionStats(ctx context.Context, agentName string, since time.Time) (map[string]interface{}, error) {
	query := `
		SELECT
			COUNT(*) as total_decisions,
			COUNT(CASE WHEN outcome = 'CORRECT' THEN 1 END) as correct,
			COUNT(CASE WHEN outcome = 'INCORRECT' THEN 1 END) as incorrect,
			COUNT(CASE WHEN outcome IS NULL OR outcome = 'PENDING' THEN 1 END) as pending,
			AVG(CASE WHEN brier_score IS NOT NULL THEN brier_score END) as avg_brier_score,
			AVG(latency_ms) as avg_latency_ms,
			AVG(tokens_used) as avg_tokens_used,
			AVG(confidence) as avg_confidence
		FROM llm_decisions
		WHERE agent_name = $1 AND created_at >= $2
	`

	var stats map[string]interface{}
	var totalDecisions, correct, incorrect, pending int
	var avgBrierScore, avgLatency, avgTokens, avgConfidence *float64

	err := db.pool.QueryRow(ctx, query, agentName, since).Scan(
		&totalDecisions,
		&correct,
		&incorrect,
		&pending,
		&avgBrierScore,
		&avgLatency,
		&avgTokens,
		&avgConfidence,
	)
	if err != nil {
		return nil, err
	}

	// Calculate accuracy with zero check
	accuracy := 0.0
	if correct+incorrect > 0 {
		accuracy = float64(correct) / float64(correct+incorrect) * 100.0
	}

	stats = map[string]interface{}{
		"total_decisions": totalDecisions,
		"correct":         correct,
		"incorrect":       incorrect,
		"pending":         pending,
		"accuracy":        accuracy,
	}

	if avgBrierScore != nil {
		stats["avg_brier_score"] = *avgBrierScore
	}
	if avgLatency != nil {
		stats["avg_latency_ms"] = *avgLatency
	}
	if avgTokens != nil {
		stats["avg_tokens_used"] = *avgTokens
	}
	if avgConfidence != nil {
		stats["avg_confidence"] = *avgConfidence
	}

	return stats, nil
}

// FindSimilarDecisions finds decisions with similar market conditions for a
// given condition ID, using the context JSONB field for indicator similarity.
func (db *DB) FindSimilarDecisions(ctx context.Context, conditionID string, contextJSON []byte, limit int) ([]*LLMDecision, error) {
	if conditionID == "" {
		return nil, fmt.Errorf("condition id cannot be empty")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if limit > 1000 {
		limit = 1000
	}

	var currentContext map[string]interface{}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &currentContext); err != nil {
			return db.findRecentDecisions(ctx, conditionID, limit)
		}
	}

	currentIndicators, ok := currentContext["indicators"].(map[string]interface{})
	if !ok || len(currentIndicators) == 0 {
		return db.findRecentDecisions(ctx, conditionID, limit)
	}

	// Fetch recent decisions with context for the same condition (last 30 days)
	// We'll calculate similarity in Go code
	query := `
		SELECT
			id, session_id, decision_type, condition_id, prompt,
			response, model, tokens_used, latency_ms, outcome, brier_score,
			context, agent_name, confidence, created_at
		FROM llm_decisions
		WHERE condition_id = $1
		  AND outcome IS NOT NULL
		  AND context IS NOT NULL
		  AND created_at > NOW() - INTERVAL '30 days'
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := db.pool.Query(ctx, query, conditionID, limit*3) // Fetch more to allow filtering
	if err != nil {
		return db.findRecentDecisions(ctx, conditionID, limit)
	}
	defer rows.Close()

	type scoredDecision struct {
		decision *LLMDecision
		score    float64
	}

	var candidates []scoredDecision

	for rows.Next() {
		var d LLMDecision
		err := rows.Scan(
			&d.ID,
			&d.SessionID,
			&d.DecisionType,
			&d.ConditionID,
			&d.Prompt,
			&d.Response,
			&d.Model,
			&d.TokensUsed,
			&d.LatencyMs,
			&d.Outcome,
			&d.BrierScore,
			&d.Context,
			&d.AgentName,
			&d.Confidence,
			&d.CreatedAt,
		)
		if err != nil {
			continue
		}

		score := calculateIndicatorSimilarity(currentIndicators, d.Context)
		if score > 0 {
			candidates = append(candidates, scoredDecision{
				decision: &d,
				score:    score,
			})
		}
	}

	// Sort by similarity score (descending), then by correctness, then by recency
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		iCorrect := candidates[i].decision.Outcome != nil && *candidates[i].decision.Outcome == "CORRECT"
		jCorrect := candidates[j].decision.Outcome != nil && *candidates[j].decision.Outcome == "CORRECT"
		if iCorrect != jCorrect {
			return iCorrect
		}
		return candidates[i].decision.CreatedAt.After(candidates[j].decision.CreatedAt)
	})

	var decisions []*LLMDecision
	for i := 0; i < len(candidates) && i < limit; i++ {
		decisions = append(decisions, candidates[i].decision)
	}

	if len(decisions) == 0 {
		return db.findRecentDecisions(ctx, conditionID, limit)
	}

	return decisions, nil
}

// calculateIndicatorSimilarity calculates similarity score between current indicators
// and a decision's context. Returns the number of matching indicators (0 when none match).
func calculateIndicatorSimilarity(currentIndicators map[string]interface{}, contextJSON []byte) float64 {
	if len(contextJSON) == 0 {
		return 0
	}

	var decisionContext map[string]interface{}
	if err := json.Unmarshal(contextJSON, &decisionContext); err != nil {
		return 0
	}

	decisionIndicators, ok := decisionContext["indicators"].(map[string]interface{})
	if !ok {
		return 0
	}

	// Count matching indicators (within 15% tolerance)
	matchCount := 0
	tolerance := 0.15 // 15% tolerance

	for key, currentValue := range currentIndicators {
		if pastValue, exists := decisionIndicators[key]; exists {
			currentFloat := toFloat64(currentValue)
			pastFloat := toFloat64(pastValue)

			if currentFloat == 0 && pastFloat == 0 {
				matchCount++
				continue
			}

			avgValue := (math.Abs(currentFloat) + math.Abs(pastFloat)) / 2
			if avgValue == 0 {
				continue
			}

			percentDiff := math.Abs(currentFloat-pastFloat) / avgValue
			if percentDiff <= tolerance {
				matchCount++
			}
		}
	}

	return float64(matchCount)
}

// toFloat64 converts interface{} to float64, handling various numeric types
func toFloat64(val interface{}) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	default:
		return 0
	}
}

// findRecentDecisions is a fallback that finds recent decisions for the same condition
func (db *DB) findRecentDecisions(ctx context.Context, conditionID string, limit int) ([]*LLMDecision, error) {
	query := `
		SELECT
			id, session_id, decision_type, condition_id, prompt,
			response, model, tokens_used, latency_ms, outcome, brier_score,
			context, agent_name, confidence, created_at
		FROM llm_decisions
		WHERE condition_id = $1
		  AND outcome IS NOT NULL
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := db.pool.Query(ctx, query, conditionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*LLMDecision
	for rows.Next() {
		var d LLMDecision
		err := rows.Scan(
			&d.ID,
			&d.SessionID,
			&d.DecisionType,
			&d.ConditionID,
			&d.Prompt,
			&d.Response,
			&d.Model,
			&d.TokensUsed,
			&d.LatencyMs,
			&d.Outcome,
			&d.BrierScore,
			&d.Context,
			&d.AgentName,
			&d.Confidence,
			&d.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, &d)
	}

	return decisions, rows.Err()
}
