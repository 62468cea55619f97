package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/marketoracle/internal/db"
)

// KnowledgeExtractor mines durable knowledge out of historical LLM calls and
// stores it in semantic memory, so future agent runs retrieve it through
// Retriever instead of relearning the same pattern every cycle.
type KnowledgeExtractor struct {
	pool           *pgxpool.Pool
	semanticMemory *SemanticMemory
	embeddingFunc  EmbeddingFunc // Function to generate embeddings
	minConfidence  float64
	minOccurrences int
}

// EmbeddingFunc is a function that generates embeddings for text
type EmbeddingFunc func(ctx context.Context, text string) ([]float32, error)

// ExtractionConfig configures the knowledge extraction process
type ExtractionConfig struct {
	MinConfidence  float64 // Minimum confidence to store knowledge (default: 0.5)
	MinOccurrences int     // Minimum pattern occurrences to extract (default: 3)
	EmbeddingFunc  EmbeddingFunc
}

// DefaultExtractionConfig returns sensible defaults
func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		MinConfidence:  0.5,
		MinOccurrences: 3,
		EmbeddingFunc:  nil, // Must be provided
	}
}

// NewKnowledgeExtractor creates a new knowledge extractor
func NewKnowledgeExtractor(pool *pgxpool.Pool, config ExtractionConfig) *KnowledgeExtractor {
	if config.MinConfidence == 0 {
		config.MinConfidence = 0.5
	}
	if config.MinOccurrences == 0 {
		config.MinOccurrences = 3
	}

	return &KnowledgeExtractor{
		pool:           pool,
		semanticMemory: NewSemanticMemory(pool),
		embeddingFunc:  config.EmbeddingFunc,
		minConfidence:  config.MinConfidence,
		minOccurrences: config.MinOccurrences,
	}
}

// NewKnowledgeExtractorFromDB creates an extractor from existing DB connection
func NewKnowledgeExtractorFromDB(database *db.DB, config ExtractionConfig) *KnowledgeExtractor {
	extractor := NewKnowledgeExtractor(database.Pool(), config)
	return extractor
}

// PatternCandidate represents a potential pattern to extract: a recurring
// input condition (an indicator reading, a market-context flag) and how
// often it coincided with a well-calibrated (CORRECT) vs. poorly-calibrated
// (INCORRECT) LLM decision.
type PatternCandidate struct {
	Condition     string
	Outcome       string
	Occurrences   int
	SuccessCount  int
	FailureCount  int
	AvgBrierScore float64
	ConditionIDs  []string
	AgentNames    []string
	DecisionIDs   []uuid.UUID
}

// SuccessRate returns the success rate of this pattern
func (pc *PatternCandidate) SuccessRate() float64 {
	total := pc.SuccessCount + pc.FailureCount
	if total == 0 {
		return 0.0
	}
	return float64(pc.SuccessCount) / float64(total)
}

// Confidence returns confidence score based on occurrences and success rate
func (pc *PatternCandidate) Confidence() float64 {
	// More occurrences = higher confidence (up to 10 occurrences)
	occurrenceScore := math.Min(float64(pc.Occurrences)/10.0, 1.0)

	// Success rate contributes to confidence
	successScore := pc.SuccessRate()

	// Weighted combination
	return occurrenceScore*0.4 + successScore*0.6
}

// ExtractFromLLMDecisions analyzes LLM decisions and extracts patterns
func (ke *KnowledgeExtractor) ExtractFromLLMDecisions(ctx context.Context, agentName string, since time.Time) (int, error) {
	log.Info().
		Str("agent", agentName).
		Time("since", since).
		Msg("Starting knowledge extraction from LLM decisions")

	// Get well-calibrated decisions
	correctDecisions, err := ke.getDecisionsByOutcome(ctx, agentName, since, "CORRECT")
	if err != nil {
		return 0, fmt.Errorf("failed to get correct decisions: %w", err)
	}

	// Get poorly-calibrated decisions
	incorrectDecisions, err := ke.getDecisionsByOutcome(ctx, agentName, since, "INCORRECT")
	if err != nil {
		return 0, fmt.Errorf("failed to get incorrect decisions: %w", err)
	}

	log.Info().
		Int("correct", len(correctDecisions)).
		Int("incorrect", len(incorrectDecisions)).
		Msg("Retrieved LLM decisions for analysis")

	// Extract patterns from both sets
	patterns := ke.identifyPatterns(correctDecisions, incorrectDecisions)

	// Store patterns as knowledge
	stored := 0
	for _, pattern := range patterns {
		if pattern.Confidence() >= ke.minConfidence && pattern.Occurrences >= ke.minOccurrences {
			knowledge, err := ke.createKnowledgeFromPattern(ctx, pattern, agentName)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to create knowledge from pattern")
				continue
			}

			if err := ke.semanticMemory.Store(ctx, knowledge); err != nil {
				log.Warn().Err(err).Msg("Failed to store knowledge")
				continue
			}

			stored++
			log.Debug().
				Str("content", knowledge.Content).
				Float64("confidence", knowledge.Confidence).
				Msg("Stored knowledge from pattern")
		}
	}

	log.Info().
		Int("patterns_found", len(patterns)).
		Int("stored", stored).
		Msg("Completed knowledge extraction from LLM decisions")

	return stored, nil
}

// ExtractFactsFromMarketData analyzes a market's briefing history to extract
// factual knowledge (volatility regime shifts, liquidity trends).
func (ke *KnowledgeExtractor) ExtractFactsFromMarketData(ctx context.Context, conditionID string, since time.Time) (int, error) {
	log.Info().
		Str("condition_id", conditionID).
		Time("since", since).
		Msg("Starting fact extraction from market data")

	volatilityFacts := ke.analyzeVolatilityPatterns(ctx, conditionID, since)
	volumeFacts := ke.analyzeVolumePatterns(ctx, conditionID, since)
	allFacts := append(volatilityFacts, volumeFacts...)

	stored := 0
	for _, fact := range allFacts {
		knowledge, err := ke.createKnowledgeFromFact(ctx, fact, conditionID)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to create knowledge from fact")
			continue
		}

		if err := ke.semanticMemory.Store(ctx, knowledge); err != nil {
			log.Warn().Err(err).Msg("Failed to store knowledge")
			continue
		}

		stored++
	}

	log.Info().
		Int("facts_found", len(allFacts)).
		Int("stored", stored).
		Msg("Completed fact extraction from market data")

	return stored, nil
}

// getDecisionsByOutcome fetches past decisions for agentName since the given
// time whose resolved outcome matches (CORRECT or INCORRECT).
func (ke *KnowledgeExtractor) getDecisionsByOutcome(ctx context.Context, agentName string, since time.Time, outcome string) ([]*db.LLMDecision, error) {
	query := `
		SELECT
			id, session_id, decision_type, condition_id, prompt, response,
			model, tokens_used, latency_ms, outcome, brier_score, context,
			agent_name, confidence, created_at
		FROM llm_decisions
		WHERE agent_name = $1
		  AND created_at >= $2
		  AND outcome = $3
		ORDER BY created_at DESC
		LIMIT 1000
	`

	rows, err := ke.pool.Query(ctx, query, agentName, since, outcome)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return ke.scanLLMDecisions(rows)
}

func (ke *KnowledgeExtractor) scanLLMDecisions(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]*db.LLMDecision, error) {
	var decisions []*db.LLMDecision

	for rows.Next() {
		var d db.LLMDecision
		err := rows.Scan(
			&d.ID, &d.SessionID, &d.DecisionType, &d.ConditionID, &d.Prompt,
			&d.Response, &d.Model, &d.TokensUsed, &d.LatencyMs,
			&d.Outcome, &d.BrierScore, &d.Context, &d.AgentName, &d.Confidence,
			&d.CreatedAt,
		)
		if err != nil {
			continue
		}
		decisions = append(decisions, &d)
	}

	return decisions, rows.Err()
}

func (ke *KnowledgeExtractor) identifyPatterns(correct, incorrect []*db.LLMDecision) []*PatternCandidate {
	patterns := make(map[string]*PatternCandidate)

	for _, decision := range correct {
		conditions := ke.extractConditions(decision)
		for _, condition := range conditions {
			key := fmt.Sprintf("%s:CORRECT", condition)
			if _, exists := patterns[key]; !exists {
				patterns[key] = &PatternCandidate{
					Condition:    condition,
					Outcome:      "typically resolves to a well-calibrated call",
					ConditionIDs: []string{},
					AgentNames:   []string{},
					DecisionIDs:  []uuid.UUID{},
				}
			}
			p := patterns[key]
			p.Occurrences++
			p.SuccessCount++
			accumulateBrierScore(p, decision)
			p.ConditionIDs = appendUnique(p.ConditionIDs, decision.ConditionID)
			p.AgentNames = appendUnique(p.AgentNames, decision.AgentName)
			p.DecisionIDs = append(p.DecisionIDs, decision.ID)
		}
	}

	for _, decision := range incorrect {
		conditions := ke.extractConditions(decision)
		for _, condition := range conditions {
			successKey := fmt.Sprintf("%s:CORRECT", condition)
			if p, exists := patterns[successKey]; exists {
				p.FailureCount++
				continue
			}

			failKey := fmt.Sprintf("%s:INCORRECT", condition)
			if _, exists := patterns[failKey]; !exists {
				patterns[failKey] = &PatternCandidate{
					Condition:    condition,
					Outcome:      "often precedes a poorly-calibrated call",
					ConditionIDs: []string{},
					AgentNames:   []string{},
					DecisionIDs:  []uuid.UUID{},
				}
			}
			p := patterns[failKey]
			p.Occurrences++
			p.FailureCount++
			accumulateBrierScore(p, decision)
			p.ConditionIDs = appendUnique(p.ConditionIDs, decision.ConditionID)
			p.AgentNames = appendUnique(p.AgentNames, decision.AgentName)
			p.DecisionIDs = append(p.DecisionIDs, decision.ID)
		}
	}

	result := make([]*PatternCandidate, 0, len(patterns))
	for _, p := range patterns {
		result = append(result, p)
	}

	return result
}

func accumulateBrierScore(p *PatternCandidate, decision *db.LLMDecision) {
	if decision.BrierScore == nil {
		return
	}
	p.AvgBrierScore = (p.AvgBrierScore*float64(p.Occurrences-1) + *decision.BrierScore) / float64(p.Occurrences)
}

func (ke *KnowledgeExtractor) extractConditions(decision *db.LLMDecision) []string {
	var conditions []string

	if len(decision.Context) == 0 {
		return conditions
	}

	var context map[string]interface{}
	if err := json.Unmarshal(decision.Context, &context); err != nil {
		return conditions
	}

	if indicators, ok := context["indicators"].(map[string]interface{}); ok {
		for name, value := range indicators {
			condition := formatIndicatorCondition(name, value)
			if condition != "" {
				conditions = append(conditions, condition)
			}
		}
	}

	if marketCondition, ok := context["market_condition"].(string); ok {
		conditions = append(conditions, fmt.Sprintf("market condition is %s", marketCondition))
	}

	return conditions
}

func formatIndicatorCondition(name string, value interface{}) string {
	switch v := value.(type) {
	case float64:
		switch name {
		case "rsi":
			if v >= 70 {
				return "RSI exceeds 70 (overbought)"
			} else if v <= 30 {
				return "RSI below 30 (oversold)"
			}
		case "macd":
			if v > 0 {
				return "MACD is positive (bullish)"
			} else if v < 0 {
				return "MACD is negative (bearish)"
			}
		}
		return fmt.Sprintf("%s is %.2f", name, v)
	case bool:
		return fmt.Sprintf("%s is %v", name, v)
	case string:
		return fmt.Sprintf("%s is %s", name, v)
	}
	return ""
}

type Fact struct {
	Statement  string
	Confidence float64
	Source     string
}

// analyzeVolatilityPatterns and analyzeVolumePatterns are intentionally
// unimplemented: the markets table carries only the current briefing
// snapshot, not a candlestick-style time series, so there is no history to
// mine volatility or volume shifts from yet.
func (ke *KnowledgeExtractor) analyzeVolatilityPatterns(ctx context.Context, conditionID string, since time.Time) []*Fact {
	return []*Fact{}
}

func (ke *KnowledgeExtractor) analyzeVolumePatterns(ctx context.Context, conditionID string, since time.Time) []*Fact {
	return []*Fact{}
}

func (ke *KnowledgeExtractor) createKnowledgeFromPattern(ctx context.Context, pattern *PatternCandidate, agentName string) (*KnowledgeItem, error) {
	content := fmt.Sprintf("When %s, this %s (observed %d times, %.1f%% success rate, avg Brier score: %.3f)",
		pattern.Condition,
		pattern.Outcome,
		pattern.Occurrences,
		pattern.SuccessRate()*100,
		pattern.AvgBrierScore,
	)

	var embedding []float32
	if ke.embeddingFunc != nil {
		var err error
		embedding, err = ke.embeddingFunc(ctx, content)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embedding: %w", err)
		}
	}

	contextData := map[string]interface{}{
		"condition":       pattern.Condition,
		"outcome":         pattern.Outcome,
		"occurrences":     pattern.Occurrences,
		"success_rate":    pattern.SuccessRate(),
		"avg_brier_score": pattern.AvgBrierScore,
		"condition_ids":   pattern.ConditionIDs,
		"decision_ids":    pattern.DecisionIDs,
	}
	contextJSON, _ := json.Marshal(contextData)

	// Tie the knowledge item to a single market when the pattern was only
	// ever observed there; leave it market-agnostic otherwise.
	var conditionID *string
	if len(pattern.ConditionIDs) == 1 {
		conditionID = &pattern.ConditionIDs[0]
	}

	knowledge := &KnowledgeItem{
		Type:            KnowledgePattern,
		Content:         content,
		Embedding:       embedding,
		Confidence:      pattern.Confidence(),
		Importance:      calculateImportance(pattern),
		Source:          "pattern_extraction",
		AgentName:       agentName,
		Symbol:          conditionID,
		Context:         contextJSON,
		ValidationCount: pattern.Occurrences,
		SuccessCount:    pattern.SuccessCount,
		FailureCount:    pattern.FailureCount,
	}

	return knowledge, nil
}

func (ke *KnowledgeExtractor) createKnowledgeFromFact(ctx context.Context, fact *Fact, conditionID string) (*KnowledgeItem, error) {
	var embedding []float32
	if ke.embeddingFunc != nil {
		var err error
		embedding, err = ke.embeddingFunc(ctx, fact.Statement)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embedding: %w", err)
		}
	}

	knowledge := &KnowledgeItem{
		Type:       KnowledgeFact,
		Content:    fact.Statement,
		Embedding:  embedding,
		Confidence: fact.Confidence,
		Importance: 0.6,
		Source:     "market_data_analysis",
		Symbol:     &conditionID,
	}

	return knowledge, nil
}

// calculateImportance weighs how often a pattern recurred against how
// well-calibrated the decisions behind it were (lower Brier score is
// better), so a pattern seen often AND tightly calibrated ranks highest.
func calculateImportance(pattern *PatternCandidate) float64 {
	occurrenceScore := math.Min(float64(pattern.Occurrences)/20.0, 1.0)
	calibrationScore := 1.0 - math.Min(math.Max(pattern.AvgBrierScore, 0.0), 1.0)

	return occurrenceScore*0.5 + calibrationScore*0.5
}

func appendUnique(slice []string, item string) []string {
	for _, existing := range slice {
		if existing == item {
			return slice
		}
	}
	return append(slice, item)
}
