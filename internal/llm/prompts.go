package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// PromptBuilder builds prompts for each of the ten intelligence agents.
type PromptBuilder struct {
	agentType AgentType
}

// NewPromptBuilder creates a new prompt builder.
func NewPromptBuilder(agentType AgentType) *PromptBuilder {
	return &PromptBuilder{
		agentType: agentType,
	}
}

// GetSystemPrompt returns the system prompt for the agent type.
func (pb *PromptBuilder) GetSystemPrompt() string {
	switch pb.agentType {
	case AgentTypeMarketMicrostructure:
		return marketMicrostructureSystemPrompt
	case AgentTypeProbabilityBaseline:
		return probabilityBaselineSystemPrompt
	case AgentTypeRiskAssessment:
		return riskAssessmentSystemPrompt
	case AgentTypeBreakingNews:
		return breakingNewsSystemPrompt
	case AgentTypeEventImpact:
		return eventImpactSystemPrompt
	case AgentTypeSocialSentiment:
		return socialSentimentSystemPrompt
	case AgentTypeNarrativeVelocity:
		return narrativeVelocitySystemPrompt
	case AgentTypePollingStatistical:
		return pollingStatisticalSystemPrompt
	case AgentTypePriceAction:
		return priceActionSystemPrompt
	case AgentTypeRiskPhilosophy:
		return riskPhilosophySystemPrompt
	default:
		return defaultSystemPrompt
	}
}

// BuildMarketMicrostructurePrompt builds a prompt analyzing order book depth
// and trading activity for a market.
func (pb *PromptBuilder) BuildMarketMicrostructurePrompt(ctx MarketContext) string {
	indicators := formatIndicators(ctx.Indicators)

	return fmt.Sprintf(`Analyze the order book microstructure for this prediction market and estimate the fair probability of YES.

Question: %s
Current Market Price (implied probability of YES): %.4f
24h Price Change: %.4f
24h Volume: $%.2f

Microstructure Indicators:
%s

Respond in JSON format:
{
  "direction": "YES" | "NO",
  "confidence": 0.0-1.0,
  "fairProbability": 0.0-1.0,
  "reasoning": "detailed microstructure analysis",
  "keyDrivers": ["1 to 5 short phrases driving this assessment"]
}`,
		ctx.Question,
		ctx.CurrentPrice,
		ctx.PriceChange24h,
		ctx.Volume24h,
		indicators,
	)
}

// BuildProbabilityBaselinePrompt builds a prompt for a base-rate-driven
// probability estimate independent of the current market price.
func (pb *PromptBuilder) BuildProbabilityBaselinePrompt(ctx MarketContext, history []HistoricalDecision) string {
	historyStr := formatHistoricalDecisions(history)

	return fmt.Sprintf(`Estimate the base-rate probability of YES for this prediction market, reasoning from first principles and historical base rates for similar events, independent of the current market price.

Question: %s
Market Price (for reference only, do not anchor on it): %.4f

%s

Respond in JSON format:
{
  "direction": "YES" | "NO",
  "confidence": 0.0-1.0,
  "fairProbability": 0.0-1.0,
  "reasoning": "base rate analysis",
  "keyDrivers": ["1 to 5 short phrases"]
}`,
		ctx.Question,
		ctx.CurrentPrice,
		historyStr,
	)
}

// BuildRiskAssessmentPrompt builds a prompt for evaluating the risk of a
// proposed trade recommendation before it is finalized.
func (pb *PromptBuilder) BuildRiskAssessmentPrompt(
	signal Signal,
	ctx MarketContext,
	consensusProbability float64,
	marketProbability float64,
) string {
	return fmt.Sprintf(`Evaluate the risk of recommending a trade on the following prediction market.

Question: %s
Proposed Direction: %s
Signal Confidence: %.2f
Signal Reasoning: %s

Consensus Probability: %.4f
Market Implied Probability: %.4f
Edge: %.4f

As the risk assessor, evaluate this recommendation and provide your assessment in JSON format:
{
  "approved": true | false,
  "risk_score": 0.0-1.0 (0 = low risk, 1 = high risk),
  "reasoning": "detailed risk assessment",
  "concerns": ["list", "of", "risk", "concerns"],
  "recommendations": ["list", "of", "risk", "mitigation", "recommendations"]
}`,
		ctx.Question,
		signal.Direction,
		signal.Confidence,
		signal.Reasoning,
		consensusProbability,
		marketProbability,
		consensusProbability-marketProbability,
	)
}

// BuildBreakingNewsPrompt builds a prompt assessing whether a recent news
// article materially changes the probability of the market resolving YES.
func (pb *PromptBuilder) BuildBreakingNewsPrompt(ctx MarketContext, headline, body string, relevanceScore float64) string {
	return fmt.Sprintf(`Assess whether the following news changes the probability of this prediction market resolving YES.

Question: %s
Current Market Price: %.4f

Headline: %s
Article: %s
Relevance Score: %.2f

Respond in JSON format:
{
  "direction": "YES" | "NO",
  "confidence": 0.0-1.0,
  "fairProbability": 0.0-1.0,
  "reasoning": "explanation of the article's impact",
  "keyDrivers": ["1 to 5 short phrases"],
  "regimeChange": true | false
}`,
		ctx.Question,
		ctx.CurrentPrice,
		headline,
		body,
		relevanceScore,
	)
}

// BuildEventImpactPrompt builds a prompt estimating how a scheduled event
// affects market resolution probability across a scenario tree.
func (pb *PromptBuilder) BuildEventImpactPrompt(ctx MarketContext, eventDescription string, eventDate string) string {
	return fmt.Sprintf(`Estimate how the following scheduled event affects the probability of this prediction market resolving YES. Provide a scenario tree whose probabilities sum to 1.

Question: %s
Current Market Price: %.4f
Upcoming Event: %s
Event Date: %s

Respond in JSON format:
{
  "direction": "YES" | "NO",
  "confidence": 0.0-1.0,
  "fairProbability": 0.0-1.0,
  "reasoning": "explanation",
  "keyDrivers": ["1 to 5 short phrases"],
  "scenarios": [
    {"description": "scenario description", "probability": 0.0-1.0, "impliesYes": true}
  ]
}`,
		ctx.Question,
		ctx.CurrentPrice,
		eventDescription,
		eventDate,
	)
}

// BuildSocialSentimentPrompt builds a prompt summarizing cross-platform
// social sentiment relevant to market resolution.
func (pb *PromptBuilder) BuildSocialSentimentPrompt(ctx MarketContext, platformSnippets map[string]string) string {
	var sb strings.Builder
	keys := make([]string, 0, len(platformSnippets))
	for k := range platformSnippets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %s: %s\n", k, platformSnippets[k]))
	}

	return fmt.Sprintf(`Summarize social sentiment across platforms and estimate its implication for this prediction market.

Question: %s
Current Market Price: %.4f

Platform Excerpts:
%s

Respond in JSON format:
{
  "direction": "YES" | "NO",
  "confidence": 0.0-1.0,
  "fairProbability": 0.0-1.0,
  "reasoning": "sentiment analysis",
  "keyDrivers": ["1 to 5 short phrases"],
  "platformSentiment": {"overall": 0.0-1.0, "perPlatform": {"platform": 0.0-1.0}}
}`,
		ctx.Question,
		ctx.CurrentPrice,
		sb.String(),
	)
}

// BuildNarrativeVelocityPrompt builds a prompt estimating how fast a
// narrative is spreading and whether it is accelerating or decaying.
func (pb *PromptBuilder) BuildNarrativeVelocityPrompt(ctx MarketContext, mentionCounts []int) string {
	counts := make([]string, len(mentionCounts))
	for i, c := range mentionCounts {
		counts[i] = fmt.Sprintf("%d", c)
	}

	return fmt.Sprintf(`Estimate the velocity of the narrative driving this prediction market from a recent mention-count time series (oldest to newest).

Question: %s
Current Market Price: %.4f
Mention Counts: [%s]

Respond in JSON format:
{
  "direction": "YES" | "NO",
  "confidence": 0.0-1.0,
  "fairProbability": 0.0-1.0,
  "reasoning": "velocity analysis",
  "keyDrivers": ["1 to 5 short phrases"],
  "velocityTrend": "ACCELERATING" | "DECAYING" | "STABLE"
}`,
		ctx.Question,
		ctx.CurrentPrice,
		strings.Join(counts, ", "),
	)
}

// BuildPollingStatisticalPrompt builds a prompt for polling/statistical
// aggregation for a market resolved by a measurable statistic.
func (pb *PromptBuilder) BuildPollingStatisticalPrompt(ctx MarketContext, pollAverages map[string]float64) string {
	avgStr := formatIndicators(pollAverages)

	return fmt.Sprintf(`Aggregate the following polling/statistical data and estimate the probability of this prediction market resolving YES.

Question: %s
Current Market Price: %.4f

Poll Averages:
%s

Respond in JSON format:
{
  "direction": "YES" | "NO",
  "confidence": 0.0-1.0,
  "fairProbability": 0.0-1.0,
  "reasoning": "statistical analysis",
  "keyDrivers": ["1 to 5 short phrases"]
}`,
		ctx.Question,
		ctx.CurrentPrice,
		avgStr,
	)
}

// BuildPriceActionPrompt builds a prompt analyzing momentum/volatility
// features derived from order-book history.
func (pb *PromptBuilder) BuildPriceActionPrompt(ctx MarketContext) string {
	indicators := formatIndicators(ctx.Indicators)

	return fmt.Sprintf(`Analyze the price action of this prediction market and estimate the fair probability of YES.

Question: %s
Current Market Price: %.4f
24h Price Change: %.4f

Price Action Indicators:
%s

Respond in JSON format:
{
  "direction": "YES" | "NO",
  "confidence": 0.0-1.0,
  "fairProbability": 0.0-1.0,
  "reasoning": "price action analysis",
  "keyDrivers": ["1 to 5 short phrases"]
}`,
		ctx.Question,
		ctx.CurrentPrice,
		ctx.PriceChange24h,
		indicators,
	)
}

// BuildRiskPhilosophyPrompt builds a prompt for a contrarian, tail-risk-aware
// second opinion on the proposed recommendation.
func (pb *PromptBuilder) BuildRiskPhilosophyPrompt(signal Signal, ctx MarketContext) string {
	return fmt.Sprintf(`Apply a skeptical, tail-risk-aware philosophy to the following trade thesis on a prediction market. Consider market efficiency, overconfidence, and resolution ambiguity.

Question: %s
Proposed Direction: %s
Signal Confidence: %.2f
Signal Reasoning: %s

Respond in JSON format:
{
  "approved": true | false,
  "risk_score": 0.0-1.0,
  "reasoning": "philosophical risk critique",
  "concerns": ["list", "of", "concerns"],
  "recommendations": ["list", "of", "recommendations"]
}`,
		ctx.Question,
		signal.Direction,
		signal.Confidence,
		signal.Reasoning,
	)
}

// Helper functions

func formatIndicators(indicators map[string]float64) string {
	if len(indicators) == 0 {
		return "No indicators available"
	}

	keys := make([]string, 0, len(indicators))
	for name := range indicators {
		keys = append(keys, name)
	}
	sort.Strings(keys)

	var lines []string
	for _, name := range keys {
		lines = append(lines, fmt.Sprintf("  %s: %.4f", name, indicators[name]))
	}
	return strings.Join(lines, "\n")
}

func formatHistoricalDecisions(decisions []HistoricalDecision) string {
	if len(decisions) == 0 {
		return ""
	}

	var lines []string
	lines = append(lines, "Recent Similar Decisions:")

	for i, decision := range decisions {
		if i >= 5 {
			break
		}

		lines = append(lines, fmt.Sprintf(`  Decision %d:
    Direction: %s (Confidence: %.2f)
    Reasoning: %s
    Outcome: %s | Brier Score: %.4f
    Timestamp: %s`,
			i+1,
			decision.Action,
			decision.Confidence,
			decision.Reasoning,
			decision.Outcome,
			decision.BrierScore,
			decision.Timestamp.Format("2006-01-02 15:04"),
		))
	}

	return strings.Join(lines, "\n\n")
}

// FormatContextAsJSON formats context as JSON for structured prompts.
func FormatContextAsJSON(data interface{}) string {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(jsonBytes)
}

// System prompts for each intelligence agent

const marketMicrostructureSystemPrompt = `You are an expert market microstructure analyst for binary prediction markets.

Your role is to analyze order book depth, spread, and trade flow to estimate the fair probability of a market resolving YES.

Key responsibilities:
- Analyze bid/ask spread and order book depth
- Identify large orders and their effect on implied probability
- Detect flow imbalances between YES and NO sides
- Distinguish informed flow from noise

Guidelines:
- Always provide detailed reasoning
- Acknowledge thin liquidity and wide spreads as sources of uncertainty
- Respond ONLY with valid JSON in the specified format`

const probabilityBaselineSystemPrompt = `You are an expert forecaster providing independent, outside-view probability estimates for binary prediction markets.

Your role is to estimate the probability of an event using base rates and reference classes, deliberately avoiding anchoring on the current market price.

Key responsibilities:
- Identify the right reference class for base rate estimation
- Adjust the base rate for event-specific factors
- Flag when the market price appears to be mispricing the base rate

Guidelines:
- State your base rate and your adjustments separately in your reasoning
- Be explicit about uncertainty
- Respond ONLY with valid JSON in the specified format`

const riskAssessmentSystemPrompt = `You are an expert risk assessor for a prediction-market analysis system.

Your role is to evaluate proposed trade recommendations for resolution risk, liquidity risk, and edge sizing before they are finalized.

Key responsibilities:
- Assess whether the stated edge justifies a recommendation given resolution ambiguity
- Evaluate liquidity and market impact
- Approve or reject recommendations based on risk criteria

Guidelines:
- Be conservative - ambiguous resolution criteria should lower confidence
- Provide clear reasoning for rejections
- Respond ONLY with valid JSON in the specified format`

const breakingNewsSystemPrompt = `You are an expert news analyst for binary prediction markets.

Your role is to assess whether breaking news materially changes the probability of a market resolving YES.

Key responsibilities:
- Judge the relevance and credibility of a news article to the market's resolution criteria
- Distinguish confirmed developments from speculation
- Flag a regime change only when the article qualifies as a decisive update

Guidelines:
- Only set regimeChange=true for genuinely decisive news, not routine updates
- Respond ONLY with valid JSON in the specified format`

const eventImpactSystemPrompt = `You are an expert event-impact analyst for binary prediction markets.

Your role is to model how a scheduled future event affects the probability of resolution, using an explicit scenario tree.

Key responsibilities:
- Enumerate mutually exclusive scenarios for the event's outcome
- Assign each scenario a probability summing to 1
- Map each scenario to its implication for the market's YES/NO resolution

Guidelines:
- Scenario probabilities must sum to 1 within a small tolerance
- Respond ONLY with valid JSON in the specified format`

const socialSentimentSystemPrompt = `You are an expert social sentiment analyst for binary prediction markets.

Your role is to synthesize sentiment across social platforms and estimate its relevance to market resolution.

Key responsibilities:
- Aggregate sentiment per platform and compute an overall estimate
- Distinguish genuine sentiment shifts from noise or coordinated activity
- Avoid overweighting sentiment when it is orthogonal to resolution criteria

Guidelines:
- Respond ONLY with valid JSON in the specified format`

const narrativeVelocitySystemPrompt = `You are an expert narrative-velocity analyst for binary prediction markets.

Your role is to estimate how quickly a narrative relevant to the market is spreading, using mention-count time series.

Key responsibilities:
- Classify the narrative trend as accelerating, decaying, or stable
- Distinguish sustained momentum from a single spike
- Tie velocity to implications for resolution probability

Guidelines:
- Respond ONLY with valid JSON in the specified format`

const pollingStatisticalSystemPrompt = `You are an expert polling and statistical aggregation analyst for binary prediction markets resolved by a measurable statistic or poll average.

Key responsibilities:
- Aggregate multiple polls/statistics with appropriate weighting
- Account for methodology differences and sampling error
- Translate the aggregate into a probability of YES

Guidelines:
- Respond ONLY with valid JSON in the specified format`

const priceActionSystemPrompt = `You are an expert price-action analyst for binary prediction markets.

Your role is to analyze momentum and volatility in the market's own price history to estimate fair probability.

Key responsibilities:
- Evaluate momentum, mean-reversion tendency, and volatility regime
- Identify whether recent price moves reflect new information or noise

Guidelines:
- Respond ONLY with valid JSON in the specified format`

const riskPhilosophySystemPrompt = `You are a skeptical, tail-risk-aware second opinion on trade theses for binary prediction markets.

Your role is to stress-test a proposed recommendation against market efficiency, overconfidence, and resolution ambiguity before it is finalized.

Key responsibilities:
- Challenge the thesis's confidence calibration
- Flag resolution ambiguity and tail scenarios the thesis may have missed
- Recommend rejection when the edge does not survive scrutiny

Guidelines:
- Preserve capital is the top priority
- Respond ONLY with valid JSON in the specified format`

const defaultSystemPrompt = `You are an AI intelligence agent analyzing binary prediction markets.

Provide a probability assessment based on the data provided.

Respond ONLY with valid JSON in the specified format. Do not include explanatory text outside the JSON.`
