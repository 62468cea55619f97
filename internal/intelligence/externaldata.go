package intelligence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ajitpratap0/marketoracle/internal/externaldata"
	"github.com/ajitpratap0/marketoracle/internal/llm"
)

// defaultNewsWindow is the lookback window passed to FetchNews.
const defaultNewsWindow = 24 * time.Hour

// wireNewsArticle, wireSocialSnippets, and wireMentionSeries are the JSON shapes expected back
// from the external-data layer's news/social/polling providers.
type wireNewsArticle struct {
	Headline       string  `json:"headline"`
	Body           string  `json:"body"`
	RelevanceScore float64 `json:"relevanceScore"`
}

type wireSocialSnippets struct {
	Platforms map[string]string `json:"platforms"`
}

type wireMentionSeries struct {
	Counts []int `json:"counts"`
}

// FetchExternalContext calls the external-data layer once per run for the
// agents that consume it, tolerating any individual fetch failing (an
// agent simply runs with empty context in that case, per spec.md §4.6's
// own fail-to-empty fetch decision order).
func FetchExternalContext(ctx context.Context, fetcher *externaldata.Fetcher, marketID string, socialPlatforms []string) (NewsItem, map[string]string, []int) {
	news := mostRelevantArticle(fetcher, ctx, marketID)
	social := socialSnippets(fetcher, ctx, marketID, socialPlatforms)
	mentions := mentionCounts(fetcher, ctx, marketID)
	return news, social, mentions
}

func mostRelevantArticle(fetcher *externaldata.Fetcher, ctx context.Context, marketID string) NewsItem {
	if fetcher == nil {
		return NewsItem{}
	}
	raw, err := fetcher.FetchNews(ctx, marketID, defaultNewsWindow)
	if err != nil || len(raw) == 0 {
		return NewsItem{}
	}
	var articles []wireNewsArticle
	if err := json.Unmarshal(raw, &articles); err != nil || len(articles) == 0 {
		return NewsItem{}
	}
	best := articles[0]
	for _, a := range articles[1:] {
		if a.RelevanceScore > best.RelevanceScore {
			best = a
		}
	}
	return NewsItem{Headline: best.Headline, Body: best.Body, RelevanceScore: best.RelevanceScore}
}

func socialSnippets(fetcher *externaldata.Fetcher, ctx context.Context, marketID string, platforms []string) map[string]string {
	if fetcher == nil {
		return map[string]string{}
	}
	raw, err := fetcher.FetchSocial(ctx, marketID, platforms)
	if err != nil || len(raw) == 0 {
		return map[string]string{}
	}
	var parsed wireSocialSnippets
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return map[string]string{}
	}
	if parsed.Platforms == nil {
		return map[string]string{}
	}
	return parsed.Platforms
}

func mentionCounts(fetcher *externaldata.Fetcher, ctx context.Context, marketID string) []int {
	if fetcher == nil {
		return nil
	}
	raw, err := fetcher.FetchPolling(ctx, marketID)
	if err != nil || len(raw) == 0 {
		return nil
	}
	var parsed wireMentionSeries
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil
	}
	return parsed.Counts
}

// BuildRegistryWithExternalData constructs the ten-agent registry for one
// graph run, fetching external-data context once up front (spec.md §4.6)
// and wiring it into the breaking-news/social-sentiment/narrative-velocity
// agents at construction time, same as BuildDefaultRegistry wires the
// shared LLM client.
func BuildRegistryWithExternalData(ctx context.Context, client llm.LLMClient, fetcher *externaldata.Fetcher, marketID string, socialPlatforms []string) Registry {
	news, social, mentions := FetchExternalContext(ctx, fetcher, marketID, socialPlatforms)

	return NewRegistry(
		NewMarketMicrostructureAgent(client),
		NewProbabilityBaselineAgent(client),
		NewPriceActionAgent(client),
		NewPollingStatisticalAgent(client),
		NewEventImpactAgent(client),
		NewBreakingNewsAgent(client, news),
		NewSocialSentimentAgent(client, social),
		NewNarrativeVelocityAgent(client, mentions),
		NewRiskAssessmentAgent(client),
		NewRiskPhilosophyAgent(client),
	)
}
