package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// PolymarketClient talks to the Polymarket gamma market-metadata API and the
// CLOB order-book API, the same two-call split (gamma for question/resolution
// text, clob for live book) the rest of the pack's Polymarket integrations
// use, collapsed behind the single market.Client contract.
type PolymarketClient struct {
	gammaBaseURL string
	clobBaseURL  string
	httpClient   *http.Client
}

// PolymarketConfig configures a PolymarketClient.
type PolymarketConfig struct {
	GammaBaseURL string
	ClobBaseURL  string
	Timeout      time.Duration
}

// NewPolymarketClient returns a PolymarketClient, defaulting empty config
// fields to the public Polymarket endpoints.
func NewPolymarketClient(cfg PolymarketConfig) *PolymarketClient {
	if cfg.GammaBaseURL == "" {
		cfg.GammaBaseURL = "https://gamma-api.polymarket.com"
	}
	if cfg.ClobBaseURL == "" {
		cfg.ClobBaseURL = "https://clob.polymarket.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &PolymarketClient{
		gammaBaseURL: cfg.GammaBaseURL,
		clobBaseURL:  cfg.ClobBaseURL,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
	}
}

type gammaMarket struct {
	ConditionID        string    `json:"conditionId"`
	Question           string    `json:"question"`
	MarketSlug         string    `json:"marketSlug"`
	ResolutionSource   string    `json:"resolutionSource"`
	Description        string    `json:"description"`
	EndDate            time.Time `json:"endDate"`
	Volume24hr         string    `json:"volume24hr"`
	ClobTokenIds       string    `json:"clobTokenIds"`
	Closed             bool      `json:"closed"`
	UmaResolutionFlags []string  `json:"umaResolutionFlags"`
}

type clobBook struct {
	Bids []clobBookLevel `json:"bids"`
	Asks []clobBookLevel `json:"asks"`
}

type clobBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

func (c *PolymarketClient) FetchMarketData(ctx context.Context, conditionID string) (*RawMarket, error) {
	gm, err := c.fetchGammaMarket(ctx, conditionID)
	if err != nil {
		return nil, err
	}
	book, err := c.fetchBook(ctx, conditionID)
	if err != nil {
		return nil, err
	}

	raw := &RawMarket{
		MarketID:           gm.MarketSlug,
		ConditionID:        gm.ConditionID,
		Question:           gm.Question,
		ResolutionCriteria: gm.Description,
		ExpiryTimestamp:    gm.EndDate,
		Volume24h:          parseFloatOr(gm.Volume24hr, 0),
		AmbiguityFlags:     gm.UmaResolutionFlags,
	}

	if len(book.Bids) > 0 {
		raw.BestBid = parseFloatOr(book.Bids[0].Price, 0)
	}
	if len(book.Asks) > 0 {
		raw.BestAsk = parseFloatOr(book.Asks[0].Price, 0)
	}
	for _, lvl := range book.Bids {
		raw.OrderBookSizes = append(raw.OrderBookSizes, parseFloatOr(lvl.Size, 0))
	}
	for _, lvl := range book.Asks {
		raw.OrderBookSizes = append(raw.OrderBookSizes, parseFloatOr(lvl.Size, 0))
	}

	if history, err := c.fetchPriceHistory(ctx, conditionID); err != nil {
		log.Warn().Err(err).Str("conditionId", conditionID).Msg("polymarket: price history unavailable, indicators will be skipped")
	} else {
		raw.PriceHistory = history
	}

	return raw, nil
}

type clobPricePoint struct {
	Price string `json:"p"`
}

type clobPriceHistory struct {
	History []clobPricePoint `json:"history"`
}

// fetchPriceHistory pulls the market's recent midpoint series from the CLOB
// prices-history endpoint, oldest first, for the momentum/volatility
// indicators computed over RawMarket.PriceHistory.
func (c *PolymarketClient) fetchPriceHistory(ctx context.Context, conditionID string) ([]float64, error) {
	url := fmt.Sprintf("%s/prices-history?market=%s&interval=1d&fidelity=60", c.clobBaseURL, conditionID)
	var resp clobPriceHistory
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	prices := make([]float64, 0, len(resp.History))
	for _, pt := range resp.History {
		prices = append(prices, parseFloatOr(pt.Price, 0))
	}
	return prices, nil
}

func (c *PolymarketClient) CheckMarketResolution(ctx context.Context, conditionID string) (*Resolution, error) {
	gm, err := c.fetchGammaMarket(ctx, conditionID)
	if err != nil {
		return nil, err
	}
	if !gm.Closed {
		return &Resolution{Resolved: false}, nil
	}
	return &Resolution{Resolved: true, Outcome: OutcomeUnknown, ResolvedAt: gm.EndDate}, nil
}

func (c *PolymarketClient) DiscoverMarkets(ctx context.Context, limit int) ([]MarketSummary, error) {
	url := fmt.Sprintf("%s/markets?closed=false&limit=%d", c.gammaBaseURL, limit)
	var gammas []gammaMarket
	if err := c.getJSON(ctx, url, &gammas); err != nil {
		return nil, err
	}
	summaries := make([]MarketSummary, 0, len(gammas))
	for _, gm := range gammas {
		summaries = append(summaries, MarketSummary{
			MarketID:    gm.MarketSlug,
			ConditionID: gm.ConditionID,
			Question:    gm.Question,
		})
	}
	return summaries, nil
}

func (c *PolymarketClient) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/markets?limit=1", c.gammaBaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAPIUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return ErrAPIUnavailable
	}
	return nil
}

func (c *PolymarketClient) fetchGammaMarket(ctx context.Context, conditionID string) (*gammaMarket, error) {
	url := fmt.Sprintf("%s/markets?condition_ids=%s", c.gammaBaseURL, conditionID)
	var gammas []gammaMarket
	if err := c.getJSON(ctx, url, &gammas); err != nil {
		return nil, err
	}
	if len(gammas) == 0 {
		return nil, ErrInvalidMarketID
	}
	return &gammas[0], nil
}

func (c *PolymarketClient) fetchBook(ctx context.Context, conditionID string) (*clobBook, error) {
	url := fmt.Sprintf("%s/book?token_id=%s", c.clobBaseURL, conditionID)
	var book clobBook
	if err := c.getJSON(ctx, url, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *PolymarketClient) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("market: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("polymarket request failed")
		return fmt.Errorf("%w: %v", ErrAPIUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return ErrRateLimitExceeded
	case http.StatusNotFound:
		return ErrInvalidMarketID
	default:
		if resp.StatusCode >= 500 {
			return ErrAPIUnavailable
		}
		return fmt.Errorf("market: unexpected status %d from %s", resp.StatusCode, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("market: decode response: %w", err)
	}
	return nil
}

func parseFloatOr(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}

var _ Client = (*PolymarketClient)(nil)
