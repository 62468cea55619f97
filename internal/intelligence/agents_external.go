package intelligence

import (
	"context"

	"github.com/ajitpratap0/marketoracle/internal/graph"
	"github.com/ajitpratap0/marketoracle/internal/llm"
	"github.com/ajitpratap0/marketoracle/internal/signal"
)

// NewsItem is a fetched news article handed to the Breaking News agent by
// whatever external-data fetch ran ahead of it in the harness.
type NewsItem struct {
	Headline       string
	Body           string
	RelevanceScore float64
}

// BreakingNewsAgent assesses whether a recent article materially changes
// the market's resolution probability.
type BreakingNewsAgent struct {
	baseAgent
	News NewsItem
}

func NewBreakingNewsAgent(client llm.LLMClient, news NewsItem) *BreakingNewsAgent {
	return &BreakingNewsAgent{baseAgent: newBaseAgent("breaking_news", client, llm.AgentTypeBreakingNews), News: news}
}

func (a *BreakingNewsAgent) PrepareInput(ctx context.Context, state *graph.GraphState) (Input, error) {
	return a.prepareInput(ctx, state)
}

func (a *BreakingNewsAgent) InvokeLLM(ctx context.Context, input Input) (string, error) {
	pb := llm.NewPromptBuilder(a.promptType)
	return a.invoke(ctx, pb.GetSystemPrompt(), pb.BuildBreakingNewsPrompt(a.marketContext(input.MBD), a.News.Headline, a.News.Body, a.News.RelevanceScore))
}

func (a *BreakingNewsAgent) PostProcess(_ context.Context, _ Input, raw string) (*signal.AgentSignal, error) {
	return a.decodeSignal(raw, nil)
}

// SocialSentimentAgent synthesizes cross-platform sentiment relevant to
// resolution. Snippets is seeded by a social-data fetch ahead of invocation.
type SocialSentimentAgent struct {
	baseAgent
	Snippets map[string]string
}

func NewSocialSentimentAgent(client llm.LLMClient, snippets map[string]string) *SocialSentimentAgent {
	return &SocialSentimentAgent{baseAgent: newBaseAgent("social_sentiment", client, llm.AgentTypeSocialSentiment), Snippets: snippets}
}

func (a *SocialSentimentAgent) PrepareInput(ctx context.Context, state *graph.GraphState) (Input, error) {
	return a.prepareInput(ctx, state)
}

func (a *SocialSentimentAgent) InvokeLLM(ctx context.Context, input Input) (string, error) {
	pb := llm.NewPromptBuilder(a.promptType)
	return a.invoke(ctx, pb.GetSystemPrompt(), pb.BuildSocialSentimentPrompt(a.marketContext(input.MBD), a.Snippets))
}

func (a *SocialSentimentAgent) PostProcess(_ context.Context, _ Input, raw string) (*signal.AgentSignal, error) {
	return a.decodeSignal(raw, nil)
}

// NarrativeVelocityAgent estimates how quickly a narrative relevant to the
// market is spreading from a recent mention-count time series.
type NarrativeVelocityAgent struct {
	baseAgent
	MentionCounts []int
}

func NewNarrativeVelocityAgent(client llm.LLMClient, mentionCounts []int) *NarrativeVelocityAgent {
	return &NarrativeVelocityAgent{baseAgent: newBaseAgent("narrative_velocity", client, llm.AgentTypeNarrativeVelocity), MentionCounts: mentionCounts}
}

func (a *NarrativeVelocityAgent) PrepareInput(ctx context.Context, state *graph.GraphState) (Input, error) {
	return a.prepareInput(ctx, state)
}

func (a *NarrativeVelocityAgent) InvokeLLM(ctx context.Context, input Input) (string, error) {
	pb := llm.NewPromptBuilder(a.promptType)
	return a.invoke(ctx, pb.GetSystemPrompt(), pb.BuildNarrativeVelocityPrompt(a.marketContext(input.MBD), a.MentionCounts))
}

func (a *NarrativeVelocityAgent) PostProcess(_ context.Context, _ Input, raw string) (*signal.AgentSignal, error) {
	return a.decodeSignal(raw, nil)
}

// jsonRiskAssessment is the wire shape the risk-flavored agents' prompts ask
// for (spec.md §4.9's cross-examination relies on the same shape).
type jsonRiskAssessment struct {
	Approved        bool     `json:"approved"`
	RiskScore       float64  `json:"risk_score"`
	Reasoning       string   `json:"reasoning"`
	Concerns        []string `json:"concerns"`
	Recommendations []string `json:"recommendations"`
}

// RiskAssessmentAgent evaluates a proposed recommendation's resolution and
// liquidity risk. It runs in the fan-out alongside the other agents and
// reads the same MBD-based input; the consensus probability handed to its
// prompt is the MBD's current probability (see leadSignalAndConsensus).
type RiskAssessmentAgent struct{ baseAgent }

func NewRiskAssessmentAgent(client llm.LLMClient) *RiskAssessmentAgent {
	return &RiskAssessmentAgent{newBaseAgent("risk_assessment", client, llm.AgentTypeRiskAssessment)}
}

func (a *RiskAssessmentAgent) PrepareInput(ctx context.Context, state *graph.GraphState) (Input, error) {
	return a.prepareInput(ctx, state)
}

func (a *RiskAssessmentAgent) InvokeLLM(ctx context.Context, input Input) (string, error) {
	pb := llm.NewPromptBuilder(a.promptType)
	sig, consensusProb := leadSignalAndConsensus(input)
	return a.invoke(ctx, pb.GetSystemPrompt(), pb.BuildRiskAssessmentPrompt(sig, a.marketContext(input.MBD), consensusProb, input.MBD.CurrentProbability))
}

func (a *RiskAssessmentAgent) PostProcess(_ context.Context, _ Input, raw string) (*signal.AgentSignal, error) {
	return decodeRiskAsSignal(a.baseAgent, raw)
}

// RiskPhilosophyAgent is a skeptical second opinion that stress-tests a
// thesis against overconfidence and resolution ambiguity.
type RiskPhilosophyAgent struct{ baseAgent }

func NewRiskPhilosophyAgent(client llm.LLMClient) *RiskPhilosophyAgent {
	return &RiskPhilosophyAgent{newBaseAgent("risk_philosophy", client, llm.AgentTypeRiskPhilosophy)}
}

func (a *RiskPhilosophyAgent) PrepareInput(ctx context.Context, state *graph.GraphState) (Input, error) {
	return a.prepareInput(ctx, state)
}

func (a *RiskPhilosophyAgent) InvokeLLM(ctx context.Context, input Input) (string, error) {
	pb := llm.NewPromptBuilder(a.promptType)
	sig, _ := leadSignalAndConsensus(input)
	return a.invoke(ctx, pb.GetSystemPrompt(), pb.BuildRiskPhilosophyPrompt(sig, a.marketContext(input.MBD)))
}

func (a *RiskPhilosophyAgent) PostProcess(_ context.Context, _ Input, raw string) (*signal.AgentSignal, error) {
	return decodeRiskAsSignal(a.baseAgent, raw)
}

// leadSignalAndConsensus derives the llm.Signal shape the risk-flavored
// prompts expect from the MBD alone: risk agents run in the same fan-out as
// the probability-estimating agents, so no fused consensus exists yet and
// the market's current probability stands in for it.
func leadSignalAndConsensus(input Input) (llm.Signal, float64) {
	return llm.Signal{
		ConditionID: input.MBD.ConditionID,
		Direction:   "YES",
		Confidence:  input.MBD.CurrentProbability,
		Reasoning:   "aggregate lead signal from fan-out agents",
	}, input.MBD.CurrentProbability
}

// decodeRiskAsSignal maps a risk-flavored JSON response onto the common
// AgentSignal shape: approved/risk_score become a YES/NO-leaning direction
// and an inverted confidence, so risk agents can vote in fusion alongside
// the probability-estimating agents.
func decodeRiskAsSignal(b baseAgent, raw string) (*signal.AgentSignal, error) {
	var parsed jsonRiskAssessment
	if err := jsonParser.ParseJSONResponse(raw, &parsed); err != nil {
		return nil, err
	}
	direction := signal.DirectionNeutral
	fairProbability := 0.5
	confidence := clip01(1 - parsed.RiskScore)
	if parsed.Approved {
		direction = signal.DirectionYes
		fairProbability = 0.5 + 0.4*(1-parsed.RiskScore)
	} else {
		direction = signal.DirectionNo
		fairProbability = 0.5 - 0.4*(1-parsed.RiskScore)
	}
	keyDrivers := parsed.Concerns
	if len(keyDrivers) == 0 {
		keyDrivers = []string{parsed.Reasoning}
	}
	if len(keyDrivers) > 5 {
		keyDrivers = keyDrivers[:5]
	}
	return signal.NewAgentSignal(b.name, b.now(), confidence, direction, clip01(fairProbability), keyDrivers, parsed.Recommendations, nil)
}
