//nolint:goconst // Market signals are domain-specific strings
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ajitpratap0/marketoracle/internal/db"
)

// ContextBuilder builds rich context for LLM prompts with token limiting
type ContextBuilder struct {
	tracker        *DecisionTracker
	maxTokens      int // Maximum tokens for context (default 4000)
	agentName      string
	includeHistory bool // Include past decisions
}

// ContextBuilderConfig configures the context builder
type ContextBuilderConfig struct {
	MaxTokens      int
	AgentName      string
	IncludeHistory bool
}

// NewContextBuilder creates a new context builder
func NewContextBuilder(tracker *DecisionTracker, config ContextBuilderConfig) *ContextBuilder {
	if config.MaxTokens == 0 {
		config.MaxTokens = 4000 // Default max context tokens
	}

	return &ContextBuilder{
		tracker:        tracker,
		maxTokens:      config.MaxTokens,
		agentName:      config.AgentName,
		includeHistory: config.IncludeHistory,
	}
}

// EnhancedMarketContext includes historical signal data for a market
type EnhancedMarketContext struct {
	CurrentMarket     MarketContext        `json:"current_market"`
	RecentDecisions   []HistoricalDecision `json:"recent_decisions,omitempty"`
	SimilarSituations []HistoricalDecision `json:"similar_situations,omitempty"`
	MarketRegime      string               `json:"market_regime,omitempty"`
}

// BuildContext creates an enhanced context for LLM prompts
func (cb *ContextBuilder) BuildContext(
	ctx context.Context,
	market MarketContext,
) (*EnhancedMarketContext, error) {
	enhanced := &EnhancedMarketContext{
		CurrentMarket: market,
	}

	// Add historical decisions if enabled and tracker available
	if cb.includeHistory && cb.tracker != nil {
		// Get recent decisions (last 10)
		decisions, err := cb.tracker.GetRecentDecisions(ctx, cb.agentName, 10)
		if err == nil && len(decisions) > 0 {
			enhanced.RecentDecisions = cb.convertToHistoricalDecisions(decisions)
		}

		// Get similar situations for this market's condition ID
		if market.ConditionID != "" {
			contextData := map[string]interface{}{
				"current_price": market.CurrentPrice,
				"indicators":    market.Indicators,
			}
			similar, err := cb.tracker.FindSimilarDecisions(ctx, market.ConditionID, contextData, 5)
			if err == nil && len(similar) > 0 {
				enhanced.SimilarSituations = cb.convertToHistoricalDecisions(similar)
			}
		}
	}

	return enhanced, nil
}

// FormatContextForPrompt formats the context as a string for LLM prompts
func (cb *ContextBuilder) FormatContextForPrompt(enhanced *EnhancedMarketContext) string {
	var parts []string

	// 1. Current Market Conditions
	parts = append(parts, "## Current Market Conditions\n")
	parts = append(parts, fmt.Sprintf("Question: %s\n", enhanced.CurrentMarket.Question))
	parts = append(parts, fmt.Sprintf("Market Price (implied probability of YES): %.4f\n", enhanced.CurrentMarket.CurrentPrice))

	if enhanced.CurrentMarket.PriceChange24h != 0 {
		parts = append(parts, fmt.Sprintf("24h Change: %.4f\n", enhanced.CurrentMarket.PriceChange24h))
	}
	if enhanced.CurrentMarket.Volume24h != 0 {
		parts = append(parts, fmt.Sprintf("24h Volume: $%.2f\n", enhanced.CurrentMarket.Volume24h))
	}

	// Indicators
	if len(enhanced.CurrentMarket.Indicators) > 0 {
		parts = append(parts, "\nIndicators:\n")
		for name, value := range enhanced.CurrentMarket.Indicators {
			parts = append(parts, fmt.Sprintf("  %s: %.4f\n", name, value))
		}
	}

	// 2. Similar Past Situations (most important for learning)
	if len(enhanced.SimilarSituations) > 0 {
		parts = append(parts, "\n## Similar Past Situations\n")
		parts = append(parts, "In similar market conditions, this agent previously signaled:\n\n")

		correctCount := 0
		incorrectCount := 0
		totalBrier := 0.0
		scoredCount := 0

		for i, decision := range enhanced.SimilarSituations {
			if i >= 3 { // Show top 3 similar situations
				break
			}

			outcome := "PENDING"
			brierStr := ""
			switch decision.Outcome {
			case "CORRECT":
				correctCount++
				outcome = "✓ CORRECT"
				totalBrier += decision.BrierScore
				scoredCount++
				brierStr = fmt.Sprintf(" (Brier: %.4f)", decision.BrierScore)
			case "INCORRECT":
				incorrectCount++
				outcome = "✗ INCORRECT"
				totalBrier += decision.BrierScore
				scoredCount++
				brierStr = fmt.Sprintf(" (Brier: %.4f)", decision.BrierScore)
			}

			parts = append(parts, fmt.Sprintf("%d. Direction: %s → %s%s\n", i+1, decision.Action, outcome, brierStr))
			if decision.Reasoning != "" {
				reasoning := decision.Reasoning
				if len(reasoning) > 200 {
					reasoning = reasoning[:200] + "..."
				}
				parts = append(parts, fmt.Sprintf("   Reasoning: %s\n", reasoning))
			}
		}

		// Summary
		if correctCount > 0 || incorrectCount > 0 {
			accuracy := float64(correctCount) / float64(correctCount+incorrectCount) * 100
			parts = append(parts, fmt.Sprintf("\nSimilar Situations Summary: %d correct, %d incorrect (%.1f%% accuracy)\n",
				correctCount, incorrectCount, accuracy))
			if scoredCount > 0 {
				parts = append(parts, fmt.Sprintf("Average Brier Score: %.4f\n", totalBrier/float64(scoredCount)))
			}
		}
	}

	// 3. Recent Decisions (condensed to save tokens)
	if len(enhanced.RecentDecisions) > 0 {
		parts = append(parts, "\n## Recent Decision History\n")

		// Show only last 5, condensed format
		recentCount := len(enhanced.RecentDecisions)
		if recentCount > 5 {
			recentCount = 5
		}

		for i := 0; i < recentCount; i++ {
			decision := enhanced.RecentDecisions[i]
			var outcome string
			switch decision.Outcome {
			case "CORRECT":
				outcome = "✓"
			case "INCORRECT":
				outcome = "✗"
			default:
				outcome = "⋯"
			}

			// Very condensed format
			parts = append(parts, fmt.Sprintf("- %s %s (conf: %.2f) %s\n",
				decision.Timestamp.Format("15:04"), decision.Action, decision.Confidence, outcome))
		}
	}

	// Join all parts
	text := strings.Join(parts, "")

	// Check token count and truncate if necessary
	tokens := cb.estimateTokens(text)
	if tokens > cb.maxTokens {
		text = cb.truncateToTokenLimit(text, cb.maxTokens)
	}

	return text
}

// FormatLearningContext creates a learning-focused context summarizing what
// the agent has learned from resolved markets with similar conditions.
func (cb *ContextBuilder) FormatLearningContext(
	ctx context.Context,
	conditionID string,
	currentIndicators map[string]float64,
) (string, error) {
	if cb.tracker == nil {
		return "", nil
	}

	// Get correctly-resolved decisions for this agent
	successful, err := cb.tracker.GetSuccessfulDecisions(ctx, cb.agentName, 10)
	if err != nil || len(successful) == 0 {
		return "", err
	}

	var parts []string
	parts = append(parts, "## What We've Learned\n\n")
	parts = append(parts, fmt.Sprintf("Based on %d correctly resolved past signals for %s:\n\n", len(successful), conditionID))

	totalBrier := 0.0
	scoredCount := 0
	patterns := make(map[string]int)

	for i, decision := range successful {
		if i >= 5 { // Top 5 correct calls
			break
		}

		// Extract pattern from context if available
		if len(decision.Context) > 0 {
			var contextData map[string]interface{}
			_ = json.Unmarshal(decision.Context, &contextData) // Best effort context extraction

			if indicators, ok := contextData["indicators"].(map[string]interface{}); ok {
				for name := range indicators {
					patterns[name]++
				}
			}
		}

		if decision.BrierScore != nil {
			totalBrier += *decision.BrierScore
			scoredCount++
			parts = append(parts, fmt.Sprintf("%d. Brier Score: %.4f (Confidence: %.2f)\n",
				i+1, *decision.BrierScore, decision.Confidence))
		}
	}

	if scoredCount > 0 {
		parts = append(parts, fmt.Sprintf("\nAverage Brier score on correct signals: %.4f\n", totalBrier/float64(scoredCount)))
	}

	// Most common patterns
	if len(patterns) > 0 {
		parts = append(parts, "\nMost relevant indicators in correct signals: ")
		count := 0
		for indicator := range patterns {
			if count >= 3 {
				break
			}
			parts = append(parts, indicator)
			if count < 2 {
				parts = append(parts, ", ")
			}
			count++
		}
		parts = append(parts, "\n")
	}

	return strings.Join(parts, ""), nil
}

// estimateTokens provides a rough token count estimate
// Rule of thumb: 1 token ≈ 4 characters for English text
func (cb *ContextBuilder) estimateTokens(text string) int {
	// Simple estimation: ~4 chars per token
	return len(text) / 4
}

// truncateToTokenLimit truncates text to fit within token limit
func (cb *ContextBuilder) truncateToTokenLimit(text string, maxTokens int) string {
	maxChars := maxTokens * 4 // Conservative estimate

	if len(text) <= maxChars {
		return text
	}

	// Truncate and add indicator
	truncated := text[:maxChars-50] // Leave room for message
	truncated += "\n\n[Context truncated to fit token limit]\n"

	return truncated
}

// convertToHistoricalDecisions converts database decisions to HistoricalDecision format
func (cb *ContextBuilder) convertToHistoricalDecisions(decisions []*db.LLMDecision) []HistoricalDecision {
	historical := make([]HistoricalDecision, 0, len(decisions))

	for _, d := range decisions {
		hd := HistoricalDecision{
			Timestamp:  d.CreatedAt,
			Confidence: d.Confidence,
		}

		// Parse direction from the stored response
		upper := strings.ToUpper(d.Response)
		switch {
		case strings.Contains(upper, "\"DIRECTION\":\"YES\""):
			hd.Action = "YES"
		case strings.Contains(upper, "\"DIRECTION\":\"NO\""):
			hd.Action = "NO"
		default:
			hd.Action = "NO_OPINION"
		}

		// Parse reasoning (first 200 chars of response)
		if len(d.Response) > 0 {
			var responseData map[string]interface{}
			if err := json.Unmarshal([]byte(d.Response), &responseData); err == nil {
				if reasoning, ok := responseData["reasoning"].(string); ok {
					hd.Reasoning = reasoning
				}
			}

			if hd.Reasoning == "" {
				hd.Reasoning = d.Response
				if len(hd.Reasoning) > 200 {
					hd.Reasoning = hd.Reasoning[:200] + "..."
				}
			}
		}

		// Outcome
		if d.Outcome != nil {
			hd.Outcome = *d.Outcome
		} else {
			hd.Outcome = "PENDING"
		}

		// Brier score (stored in the same numeric slot formerly used for P&L)
		if d.BrierScore != nil {
			hd.BrierScore = *d.BrierScore
		}

		historical = append(historical, hd)
	}

	return historical
}

// GetContextStats returns statistics about the context
func (cb *ContextBuilder) GetContextStats(enhanced *EnhancedMarketContext) map[string]interface{} {
	formatted := cb.FormatContextForPrompt(enhanced)

	return map[string]interface{}{
		"estimated_tokens": cb.estimateTokens(formatted),
		"char_count":       len(formatted),
		"has_history":      len(enhanced.RecentDecisions) > 0,
		"has_similar":      len(enhanced.SimilarSituations) > 0,
		"decision_count":   len(enhanced.RecentDecisions),
		"similar_count":    len(enhanced.SimilarSituations),
	}
}

// BuildMinimalContext creates a minimal context when tokens are very limited
func (cb *ContextBuilder) BuildMinimalContext(market MarketContext) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Market: %s | Price: %.4f", market.ConditionID, market.CurrentPrice))

	if market.PriceChange24h != 0 {
		parts = append(parts, fmt.Sprintf(" | 24h: %.4f", market.PriceChange24h))
	}

	// Top 3 indicators only
	if len(market.Indicators) > 0 {
		parts = append(parts, " | ")
		count := 0
		for name, value := range market.Indicators {
			if count >= 3 {
				break
			}
			parts = append(parts, fmt.Sprintf("%s: %.2f ", name, value))
			count++
		}
	}

	return strings.Join(parts, "")
}
