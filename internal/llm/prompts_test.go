package llm

import (
	"strings"
	"testing"
	"time"
)

func TestPromptBuilder_GetSystemPrompt(t *testing.T) {
	tests := []struct {
		name          string
		agentType     AgentType
		wantSubstring string
	}{
		{
			name:          "Market Microstructure Agent",
			agentType:     AgentTypeMarketMicrostructure,
			wantSubstring: "microstructure",
		},
		{
			name:          "Probability Baseline Agent",
			agentType:     AgentTypeProbabilityBaseline,
			wantSubstring: "base rate",
		},
		{
			name:          "Risk Assessment Agent",
			agentType:     AgentTypeRiskAssessment,
			wantSubstring: "risk assessor",
		},
		{
			name:          "Breaking News Agent",
			agentType:     AgentTypeBreakingNews,
			wantSubstring: "news analyst",
		},
		{
			name:          "Event Impact Agent",
			agentType:     AgentTypeEventImpact,
			wantSubstring: "event-impact",
		},
		{
			name:          "Social Sentiment Agent",
			agentType:     AgentTypeSocialSentiment,
			wantSubstring: "sentiment",
		},
		{
			name:          "Narrative Velocity Agent",
			agentType:     AgentTypeNarrativeVelocity,
			wantSubstring: "velocity",
		},
		{
			name:          "Polling Statistical Agent",
			agentType:     AgentTypePollingStatistical,
			wantSubstring: "polling",
		},
		{
			name:          "Price Action Agent",
			agentType:     AgentTypePriceAction,
			wantSubstring: "price-action",
		},
		{
			name:          "Risk Philosophy Agent",
			agentType:     AgentTypeRiskPhilosophy,
			wantSubstring: "skeptical",
		},
		{
			name:          "Default Agent",
			agentType:     "unknown",
			wantSubstring: "intelligence agent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := NewPromptBuilder(tt.agentType)
			prompt := pb.GetSystemPrompt()

			if prompt == "" {
				t.Error("Expected non-empty system prompt")
			}

			if !strings.Contains(strings.ToLower(prompt), tt.wantSubstring) {
				t.Errorf("Expected system prompt to contain %q, got: %s", tt.wantSubstring, prompt)
			}

			if !strings.Contains(prompt, "JSON") {
				t.Error("Expected system prompt to mention JSON format requirement")
			}
		})
	}
}

func TestPromptBuilder_BuildMarketMicrostructurePrompt(t *testing.T) {
	pb := NewPromptBuilder(AgentTypeMarketMicrostructure)

	ctx := MarketContext{
		ConditionID:    "0xabc123",
		Question:       "Will the Fed cut rates in September?",
		CurrentPrice:   0.62,
		PriceChange24h: 0.04,
		Volume24h:      125000.50,
		Indicators: map[string]float64{
			"bid_ask_spread": 0.02,
			"book_imbalance": 0.15,
			"order_depth":    5000.0,
		},
	}

	prompt := pb.BuildMarketMicrostructurePrompt(ctx)

	if !strings.Contains(prompt, "Will the Fed cut rates in September?") {
		t.Error("Expected prompt to contain the market question")
	}
	if !strings.Contains(prompt, "0.6200") {
		t.Error("Expected prompt to contain current market price")
	}
	if !strings.Contains(prompt, "0.0400") {
		t.Error("Expected prompt to contain price change")
	}

	if !strings.Contains(prompt, "bid_ask_spread") {
		t.Error("Expected prompt to contain bid_ask_spread indicator")
	}

	if !strings.Contains(prompt, `"direction"`) {
		t.Error("Expected prompt to specify direction field in JSON format")
	}
	if !strings.Contains(prompt, `"confidence"`) {
		t.Error("Expected prompt to specify confidence field in JSON format")
	}
	if !strings.Contains(prompt, `"fairProbability"`) {
		t.Error("Expected prompt to specify fairProbability field in JSON format")
	}

	// Check that indicators appear in sorted order (deterministic)
	bidAskIdx := strings.Index(prompt, "bid_ask_spread:")
	orderDepthIdx := strings.Index(prompt, "order_depth:")
	if bidAskIdx > orderDepthIdx {
		t.Error("Expected indicators to be sorted alphabetically")
	}
}

func TestPromptBuilder_BuildProbabilityBaselinePrompt(t *testing.T) {
	pb := NewPromptBuilder(AgentTypeProbabilityBaseline)

	ctx := MarketContext{
		ConditionID:  "0xdef456",
		Question:     "Will candidate X win the election?",
		CurrentPrice: 0.55,
	}

	history := []HistoricalDecision{
		{
			Action:     "YES",
			Confidence: 0.85,
			Reasoning:  "Base rate for incumbents favors YES",
			Outcome:    "CORRECT",
			BrierScore: 0.04,
			Timestamp:  time.Now().Add(-24 * time.Hour),
		},
	}

	prompt := pb.BuildProbabilityBaselinePrompt(ctx, history)

	if !strings.Contains(prompt, "Will candidate X win the election?") {
		t.Error("Expected prompt to contain the market question")
	}

	if !strings.Contains(prompt, "Recent Similar Decisions") {
		t.Error("Expected prompt to include historical decisions section")
	}
	if !strings.Contains(prompt, "Base rate for incumbents favors YES") {
		t.Error("Expected prompt to include historical reasoning")
	}

	if !strings.Contains(prompt, `"fairProbability"`) {
		t.Error("Expected prompt to specify fairProbability field")
	}
	if !strings.Contains(prompt, "do not anchor") {
		t.Error("Expected prompt to instruct against anchoring on market price")
	}
}

func TestPromptBuilder_BuildRiskAssessmentPrompt(t *testing.T) {
	pb := NewPromptBuilder(AgentTypeRiskAssessment)

	signal := Signal{
		ConditionID: "0xabc123",
		Direction:   "YES",
		Confidence:  0.75,
		Reasoning:   "Strong consensus across agents toward YES",
	}

	ctx := MarketContext{
		ConditionID: "0xabc123",
		Question:    "Will the Fed cut rates in September?",
	}

	prompt := pb.BuildRiskAssessmentPrompt(signal, ctx, 0.70, 0.62)

	if !strings.Contains(prompt, "Will the Fed cut rates in September?") {
		t.Error("Expected prompt to contain the market question")
	}
	if !strings.Contains(prompt, "YES") {
		t.Error("Expected prompt to contain proposed direction")
	}
	if !strings.Contains(prompt, "Strong consensus across agents toward YES") {
		t.Error("Expected prompt to contain signal reasoning")
	}

	if !strings.Contains(prompt, "0.7000") {
		t.Error("Expected prompt to contain consensus probability")
	}
	if !strings.Contains(prompt, "0.6200") {
		t.Error("Expected prompt to contain market implied probability")
	}

	if !strings.Contains(prompt, `"approved"`) {
		t.Error("Expected prompt to specify approved field")
	}
	if !strings.Contains(prompt, `"risk_score"`) {
		t.Error("Expected prompt to specify risk_score field")
	}
}

func TestPromptBuilder_BuildEventImpactPrompt(t *testing.T) {
	pb := NewPromptBuilder(AgentTypeEventImpact)

	ctx := MarketContext{
		ConditionID:  "0x999",
		Question:     "Will the merger close by Q4?",
		CurrentPrice: 0.40,
	}

	prompt := pb.BuildEventImpactPrompt(ctx, "Regulatory hearing scheduled", "2026-09-01")

	if !strings.Contains(prompt, "Regulatory hearing scheduled") {
		t.Error("Expected prompt to contain event description")
	}
	if !strings.Contains(prompt, "2026-09-01") {
		t.Error("Expected prompt to contain event date")
	}
	if !strings.Contains(prompt, `"scenarios"`) {
		t.Error("Expected prompt to specify scenarios field")
	}
}

func TestFormatIndicators(t *testing.T) {
	tests := []struct {
		name       string
		indicators map[string]float64
		wantCount  int
		checkOrder bool
	}{
		{
			name:       "Empty indicators",
			indicators: map[string]float64{},
			wantCount:  0,
			checkOrder: false,
		},
		{
			name: "Single indicator",
			indicators: map[string]float64{
				"RSI": 65.5,
			},
			wantCount:  1,
			checkOrder: false,
		},
		{
			name: "Multiple indicators - sorted",
			indicators: map[string]float64{
				"RSI":    65.5,
				"MACD":   125.3,
				"ADX":    35.2,
				"SMA_20": 44800.0,
			},
			wantCount:  4,
			checkOrder: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatIndicators(tt.indicators)

			if tt.wantCount == 0 {
				if result != "No indicators available" {
					t.Errorf("Expected 'No indicators available', got: %s", result)
				}
				return
			}

			lines := strings.Split(result, "\n")
			if len(lines) != tt.wantCount {
				t.Errorf("Expected %d lines, got %d", tt.wantCount, len(lines))
			}

			if tt.checkOrder {
				if !strings.Contains(lines[0], "ADX:") {
					t.Error("Expected ADX to be first (alphabetically)")
				}
				if !strings.Contains(lines[1], "MACD:") {
					t.Error("Expected MACD to be second")
				}
				if !strings.Contains(lines[2], "RSI:") {
					t.Error("Expected RSI to be third")
				}
				if !strings.Contains(lines[3], "SMA_20:") {
					t.Error("Expected SMA_20 to be fourth")
				}
			}
		})
	}
}

func TestFormatHistoricalDecisions(t *testing.T) {
	tests := []struct {
		name      string
		decisions []HistoricalDecision
		wantLines int
	}{
		{
			name:      "Empty decisions",
			decisions: []HistoricalDecision{},
			wantLines: 0,
		},
		{
			name: "Single decision",
			decisions: []HistoricalDecision{
				{
					Action:     "YES",
					Confidence: 0.85,
					Reasoning:  "Strong momentum toward resolution",
					Outcome:    "CORRECT",
					BrierScore: 0.05,
					Timestamp:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
				},
			},
			wantLines: 1,
		},
		{
			name: "Multiple decisions (limited to 5)",
			decisions: []HistoricalDecision{
				{Action: "YES", Confidence: 0.8, Reasoning: "Test 1", Outcome: "CORRECT", BrierScore: 0.04, Timestamp: time.Now()},
				{Action: "NO", Confidence: 0.7, Reasoning: "Test 2", Outcome: "CORRECT", BrierScore: 0.09, Timestamp: time.Now()},
				{Action: "YES", Confidence: 0.9, Reasoning: "Test 3", Outcome: "INCORRECT", BrierScore: 0.81, Timestamp: time.Now()},
				{Action: "NO", Confidence: 0.6, Reasoning: "Test 4", Outcome: "PENDING", Timestamp: time.Now()},
				{Action: "YES", Confidence: 0.85, Reasoning: "Test 5", Outcome: "CORRECT", BrierScore: 0.02, Timestamp: time.Now()},
				{Action: "NO", Confidence: 0.75, Reasoning: "Test 6", Outcome: "CORRECT", BrierScore: 0.06, Timestamp: time.Now()},
			},
			wantLines: 5, // Should be limited to 5
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatHistoricalDecisions(tt.decisions)

			if tt.wantLines == 0 {
				if result != "" {
					t.Errorf("Expected empty string for no decisions, got: %s", result)
				}
				return
			}

			decisionCount := strings.Count(result, "Decision ")
			if decisionCount != tt.wantLines {
				t.Errorf("Expected %d decisions in output, got %d", tt.wantLines, decisionCount)
			}

			if !strings.Contains(result, "Direction:") {
				t.Error("Expected result to contain Direction field")
			}
			if !strings.Contains(result, "Confidence:") {
				t.Error("Expected result to contain Confidence field")
			}
			if !strings.Contains(result, "Outcome:") {
				t.Error("Expected result to contain Outcome field")
			}
		})
	}
}

func TestFormatContextAsJSON(t *testing.T) {
	tests := []struct {
		name      string
		data      interface{}
		wantValid bool
	}{
		{
			name: "Simple struct",
			data: struct {
				ConditionID string
				Price       float64
			}{
				ConditionID: "0xabc123",
				Price:       0.62,
			},
			wantValid: true,
		},
		{
			name: "Map",
			data: map[string]interface{}{
				"book_imbalance": 0.15,
				"spread":         0.02,
			},
			wantValid: true,
		},
		{
			name:      "Nil",
			data:      nil,
			wantValid: true, // Should return "null"
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatContextAsJSON(tt.data)

			if result == "" {
				t.Error("Expected non-empty JSON string")
			}

			if !strings.HasPrefix(result, "{") && !strings.HasPrefix(result, "[") && !strings.HasPrefix(result, "null") {
				t.Errorf("Expected valid JSON start, got: %s", result[:10])
			}
		})
	}
}
