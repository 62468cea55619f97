package intelligence

import "github.com/ajitpratap0/marketoracle/internal/llm"

// DefaultAgentNames lists every intelligence agent in the fan-out roster,
// used by memory retrieval to know which agents need prior-signal context
// before the registry itself is constructed.
var DefaultAgentNames = []string{
	"market_microstructure",
	"probability_baseline",
	"price_action",
	"polling_statistical",
	"event_impact",
	"breaking_news",
	"social_sentiment",
	"narrative_velocity",
	"risk_assessment",
	"risk_philosophy",
}

// BuildDefaultRegistry constructs all ten agents against a shared LLM
// client. External-data-fed agents (breaking news, social sentiment,
// narrative velocity, polling) are seeded empty; a fuller harness wires
// their fetched payload in before a graph run.
func BuildDefaultRegistry(client llm.LLMClient) Registry {
	return NewRegistry(
		NewMarketMicrostructureAgent(client),
		NewProbabilityBaselineAgent(client),
		NewPriceActionAgent(client),
		NewPollingStatisticalAgent(client),
		NewEventImpactAgent(client),
		NewBreakingNewsAgent(client, NewsItem{}),
		NewSocialSentimentAgent(client, map[string]string{}),
		NewNarrativeVelocityAgent(client, nil),
		NewRiskAssessmentAgent(client),
		NewRiskPhilosophyAgent(client),
	)
}
