package intelligence

import (
	"context"
	"fmt"
	"time"

	"github.com/ajitpratap0/marketoracle/internal/graph"
	"github.com/ajitpratap0/marketoracle/internal/indicators"
	"github.com/ajitpratap0/marketoracle/internal/llm"
	"github.com/ajitpratap0/marketoracle/internal/market"
	"github.com/ajitpratap0/marketoracle/internal/marketmodel"
	"github.com/ajitpratap0/marketoracle/internal/signal"
)

// indicatorSvc computes momentum/volatility features for marketContext;
// indicators.Service holds no state of its own so one shared instance is
// safe across every agent.
var indicatorSvc = indicators.NewService()

// jsonSignal is the wire shape every probability-estimating agent's prompt
// asks the LLM for (spec.md §4.4); agent-specific extra fields are decoded
// separately by the agent that needs them.
type jsonSignal struct {
	Direction       string   `json:"direction"`
	Confidence      float64  `json:"confidence"`
	FairProbability float64  `json:"fairProbability"`
	Reasoning       string   `json:"reasoning"`
	KeyDrivers      []string `json:"keyDrivers"`
}

// baseAgent factors the boilerplate shared by every probability-estimating
// agent: building a MarketContext from the MBD, calling through the shared
// LLM client with the agent's own PromptBuilder, and decoding the common
// jsonSignal fields into a validated signal.AgentSignal.
type baseAgent struct {
	name        string
	client      llm.LLMClient
	promptType  llm.AgentType
	clock       func() time.Time
}

func newBaseAgent(name string, client llm.LLMClient, promptType llm.AgentType) baseAgent {
	return baseAgent{name: name, client: client, promptType: promptType, clock: time.Now}
}

func (b baseAgent) Name() string { return b.name }

func (b baseAgent) marketContext(mbd *marketmodel.MBD) llm.MarketContext {
	indicatorValues := market.ComputeMomentumIndicators(indicatorSvc, mbd.PriceHistory)
	indicatorValues["liquidityScore"] = mbd.LiquidityScore
	indicatorValues["bidAskSpread"] = mbd.BidAskSpread

	return llm.MarketContext{
		ConditionID:  mbd.ConditionID,
		Question:     mbd.Question,
		CurrentPrice: mbd.CurrentProbability,
		Volume24h:    mbd.Volume24h,
		Timestamp:    mbd.IngestedAt,
		Indicators:   indicatorValues,
	}
}

func (b baseAgent) prepareInput(_ context.Context, state *graph.GraphState) (Input, error) {
	if state.MBD == nil {
		return Input{}, fmt.Errorf("intelligence: %s: no MBD in state", b.name)
	}
	mc := state.MemoryContext[b.name]
	return Input{
		AgentName:     b.name,
		MBD:           state.MBD,
		MemoryContext: mc.Context,
		Truncated:     mc.Truncated,
	}, nil
}

func (b baseAgent) invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := b.client.Complete(ctx, []llm.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		return "", fmt.Errorf("intelligence: %s: llm call failed: %w", b.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("intelligence: %s: empty llm response", b.name)
	}
	return resp.Choices[0].Message.Content, nil
}

// jsonParser is a stateless llm.Client used only for its response-extraction
// logic (markdown fence / first-object / raw-string fallback chain).
var jsonParser = &llm.Client{}

// decodeSignal parses the common jsonSignal shape out of rawResponse and
// builds a validated signal.AgentSignal, applying the confidence-clipping and
// key-driver trimming every agent needs before NewAgentSignal's stricter
// invariants would otherwise reject an LLM's sloppy output.
func (b baseAgent) decodeSignal(rawResponse string, extraMetadata []byte) (*signal.AgentSignal, error) {
	var parsed jsonSignal
	if err := jsonParser.ParseJSONResponse(rawResponse, &parsed); err != nil {
		return nil, fmt.Errorf("intelligence: %s: parse response: %w", b.name, err)
	}

	direction := signal.Direction(parsed.Direction)
	confidence := clip01(parsed.Confidence)
	fairProbability := clip01(parsed.FairProbability)
	keyDrivers := parsed.KeyDrivers
	if len(keyDrivers) == 0 {
		keyDrivers = []string{parsed.Reasoning}
	}
	if len(keyDrivers) > 5 {
		keyDrivers = keyDrivers[:5]
	}

	return signal.NewAgentSignal(b.name, b.now(), confidence, direction, fairProbability, keyDrivers, nil, extraMetadata)
}

func (b baseAgent) now() time.Time {
	if b.clock != nil {
		return b.clock()
	}
	return time.Now()
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
