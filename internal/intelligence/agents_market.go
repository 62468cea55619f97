package intelligence

import (
	"context"
	"encoding/json"

	"github.com/ajitpratap0/marketoracle/internal/graph"
	"github.com/ajitpratap0/marketoracle/internal/llm"
	"github.com/ajitpratap0/marketoracle/internal/signal"
)

// MarketMicrostructureAgent analyzes order-book depth and spread to estimate
// fair probability independent of narrative.
type MarketMicrostructureAgent struct{ baseAgent }

func NewMarketMicrostructureAgent(client llm.LLMClient) *MarketMicrostructureAgent {
	return &MarketMicrostructureAgent{newBaseAgent("market_microstructure", client, llm.AgentTypeMarketMicrostructure)}
}

func (a *MarketMicrostructureAgent) PrepareInput(ctx context.Context, state *graph.GraphState) (Input, error) {
	return a.prepareInput(ctx, state)
}

func (a *MarketMicrostructureAgent) InvokeLLM(ctx context.Context, input Input) (string, error) {
	pb := llm.NewPromptBuilder(a.promptType)
	return a.invoke(ctx, pb.GetSystemPrompt(), pb.BuildMarketMicrostructurePrompt(a.marketContext(input.MBD)))
}

func (a *MarketMicrostructureAgent) PostProcess(_ context.Context, _ Input, raw string) (*signal.AgentSignal, error) {
	return a.decodeSignal(raw, nil)
}

// ProbabilityBaselineAgent estimates a base-rate probability deliberately
// independent of the current market price.
type ProbabilityBaselineAgent struct{ baseAgent }

func NewProbabilityBaselineAgent(client llm.LLMClient) *ProbabilityBaselineAgent {
	return &ProbabilityBaselineAgent{newBaseAgent("probability_baseline", client, llm.AgentTypeProbabilityBaseline)}
}

func (a *ProbabilityBaselineAgent) PrepareInput(ctx context.Context, state *graph.GraphState) (Input, error) {
	return a.prepareInput(ctx, state)
}

func (a *ProbabilityBaselineAgent) InvokeLLM(ctx context.Context, input Input) (string, error) {
	pb := llm.NewPromptBuilder(a.promptType)
	return a.invoke(ctx, pb.GetSystemPrompt(), pb.BuildProbabilityBaselinePrompt(a.marketContext(input.MBD), nil))
}

func (a *ProbabilityBaselineAgent) PostProcess(_ context.Context, _ Input, raw string) (*signal.AgentSignal, error) {
	return a.decodeSignal(raw, nil)
}

// PriceActionAgent analyzes momentum and volatility in the market's own
// price history.
type PriceActionAgent struct{ baseAgent }

func NewPriceActionAgent(client llm.LLMClient) *PriceActionAgent {
	return &PriceActionAgent{newBaseAgent("price_action", client, llm.AgentTypePriceAction)}
}

func (a *PriceActionAgent) PrepareInput(ctx context.Context, state *graph.GraphState) (Input, error) {
	return a.prepareInput(ctx, state)
}

func (a *PriceActionAgent) InvokeLLM(ctx context.Context, input Input) (string, error) {
	pb := llm.NewPromptBuilder(a.promptType)
	return a.invoke(ctx, pb.GetSystemPrompt(), pb.BuildPriceActionPrompt(a.marketContext(input.MBD)))
}

func (a *PriceActionAgent) PostProcess(_ context.Context, _ Input, raw string) (*signal.AgentSignal, error) {
	return a.decodeSignal(raw, nil)
}

// PollingStatisticalAgent aggregates polling/statistical data for markets
// resolved by a measurable statistic. PollAverages is seeded by whatever
// external-data fetch preceded this agent's invocation in a richer harness;
// it defaults to empty when none is available.
type PollingStatisticalAgent struct {
	baseAgent
	PollAverages map[string]float64
}

func NewPollingStatisticalAgent(client llm.LLMClient) *PollingStatisticalAgent {
	return &PollingStatisticalAgent{baseAgent: newBaseAgent("polling_statistical", client, llm.AgentTypePollingStatistical)}
}

func (a *PollingStatisticalAgent) PrepareInput(ctx context.Context, state *graph.GraphState) (Input, error) {
	return a.prepareInput(ctx, state)
}

func (a *PollingStatisticalAgent) InvokeLLM(ctx context.Context, input Input) (string, error) {
	pb := llm.NewPromptBuilder(a.promptType)
	return a.invoke(ctx, pb.GetSystemPrompt(), pb.BuildPollingStatisticalPrompt(a.marketContext(input.MBD), a.PollAverages))
}

func (a *PollingStatisticalAgent) PostProcess(_ context.Context, _ Input, raw string) (*signal.AgentSignal, error) {
	return a.decodeSignal(raw, nil)
}

// eventImpactMetadata is surfaced in the signal's Metadata so downstream
// thesis construction can cite the scenario tree without reparsing the raw
// LLM response.
type eventImpactMetadata struct {
	Scenarios []struct {
		Description string  `json:"description"`
		Probability float64 `json:"probability"`
		ImpliesYes  bool    `json:"impliesYes"`
	} `json:"scenarios"`
}

// EventImpactAgent models how a scheduled event affects resolution
// probability via an explicit scenario tree. EventDescription/EventDate are
// populated from the MBD's first key catalyst, in the order ingestion
// received them; the catalysts are not sorted by date.
type EventImpactAgent struct{ baseAgent }

func NewEventImpactAgent(client llm.LLMClient) *EventImpactAgent {
	return &EventImpactAgent{newBaseAgent("event_impact", client, llm.AgentTypeEventImpact)}
}

func (a *EventImpactAgent) PrepareInput(ctx context.Context, state *graph.GraphState) (Input, error) {
	return a.prepareInput(ctx, state)
}

func (a *EventImpactAgent) InvokeLLM(ctx context.Context, input Input) (string, error) {
	pb := llm.NewPromptBuilder(a.promptType)
	eventDesc, eventDate := nearestCatalyst(input)
	return a.invoke(ctx, pb.GetSystemPrompt(), pb.BuildEventImpactPrompt(a.marketContext(input.MBD), eventDesc, eventDate))
}

func (a *EventImpactAgent) PostProcess(_ context.Context, _ Input, raw string) (*signal.AgentSignal, error) {
	var meta eventImpactMetadata
	_ = json.Unmarshal([]byte(raw), &meta)
	metaBytes, _ := json.Marshal(meta)
	return a.decodeSignal(raw, metaBytes)
}

func nearestCatalyst(input Input) (description, date string) {
	if input.MBD == nil {
		return "no scheduled catalyst on record", ""
	}
	if len(input.MBD.Metadata.KeyCatalysts) == 0 {
		return "no scheduled catalyst on record", input.MBD.ExpiryTimestamp.Format("2006-01-02")
	}
	c := input.MBD.Metadata.KeyCatalysts[0]
	return c.Event, c.Timestamp.Format("2006-01-02")
}
