package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestPolymarketClient(t *testing.T, gammaHandler, clobHandler http.HandlerFunc) *PolymarketClient {
	t.Helper()

	gamma := httptest.NewServer(gammaHandler)
	t.Cleanup(gamma.Close)
	clob := httptest.NewServer(clobHandler)
	t.Cleanup(clob.Close)

	return NewPolymarketClient(PolymarketConfig{GammaBaseURL: gamma.URL, ClobBaseURL: clob.URL})
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func TestPolymarketClient_FetchMarketData_AssemblesRawMarketFromBothEndpoints(t *testing.T) {
	gm := []gammaMarket{{
		ConditionID:        "0xabc",
		Question:           "Will BTC close above $100k?",
		MarketSlug:         "btc-100k",
		Description:        "Binance spot close price",
		Volume24hr:         "12345.5",
		UmaResolutionFlags: []string{"ambiguous source"},
	}}
	book := clobBook{
		Bids: []clobBookLevel{{Price: "0.60", Size: "100"}},
		Asks: []clobBookLevel{{Price: "0.62", Size: "200"}},
	}
	history := clobPriceHistory{History: []clobPricePoint{{Price: "0.58"}, {Price: "0.61"}}}

	client := newTestPolymarketClient(t,
		func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "markets") {
				writeJSON(t, w, gm)
			}
		},
		func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "prices-history") {
				writeJSON(t, w, history)
				return
			}
			writeJSON(t, w, book)
		},
	)

	raw, err := client.FetchMarketData(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("FetchMarketData() error = %v", err)
	}
	if raw.MarketID != "btc-100k" || raw.ConditionID != "0xabc" {
		t.Errorf("raw market identity = %+v, want marketId=btc-100k conditionId=0xabc", raw)
	}
	if raw.BestBid != 0.60 || raw.BestAsk != 0.62 {
		t.Errorf("BestBid/BestAsk = %v/%v, want 0.60/0.62", raw.BestBid, raw.BestAsk)
	}
	if len(raw.OrderBookSizes) != 2 {
		t.Errorf("len(OrderBookSizes) = %d, want 2 (one bid level + one ask level)", len(raw.OrderBookSizes))
	}
	if raw.Volume24h != 12345.5 {
		t.Errorf("Volume24h = %v, want 12345.5", raw.Volume24h)
	}
	if len(raw.AmbiguityFlags) != 1 {
		t.Errorf("AmbiguityFlags = %v, want one carried-over UMA flag", raw.AmbiguityFlags)
	}
	if len(raw.PriceHistory) != 2 {
		t.Errorf("len(PriceHistory) = %d, want 2", len(raw.PriceHistory))
	}
}

func TestPolymarketClient_FetchMarketData_ToleratesMissingPriceHistory(t *testing.T) {
	gm := []gammaMarket{{ConditionID: "0xabc", MarketSlug: "btc-100k"}}

	client := newTestPolymarketClient(t,
		func(w http.ResponseWriter, r *http.Request) { writeJSON(t, w, gm) },
		func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "prices-history") {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			writeJSON(t, w, clobBook{})
		},
	)

	raw, err := client.FetchMarketData(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("FetchMarketData() error = %v, want nil (missing history is tolerated)", err)
	}
	if raw.PriceHistory != nil {
		t.Errorf("PriceHistory = %v, want nil when the history endpoint fails", raw.PriceHistory)
	}
}

func TestPolymarketClient_FetchMarketData_UnknownConditionReturnsInvalidMarketID(t *testing.T) {
	client := newTestPolymarketClient(t,
		func(w http.ResponseWriter, r *http.Request) { writeJSON(t, w, []gammaMarket{}) },
		func(w http.ResponseWriter, r *http.Request) { writeJSON(t, w, clobBook{}) },
	)

	_, err := client.FetchMarketData(context.Background(), "0xmissing")
	if err != ErrInvalidMarketID {
		t.Errorf("FetchMarketData() error = %v, want ErrInvalidMarketID", err)
	}
}

func TestPolymarketClient_GetJSON_MapsStatusCodesToErrorTaxonomy(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ErrRateLimitExceeded},
		{http.StatusNotFound, ErrInvalidMarketID},
		{http.StatusInternalServerError, ErrAPIUnavailable},
	}

	for _, tt := range tests {
		client := newTestPolymarketClient(t,
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(tt.status) },
			func(w http.ResponseWriter, r *http.Request) { writeJSON(t, w, clobBook{}) },
		)

		_, err := client.FetchMarketData(context.Background(), "0xabc")
		if err != tt.want {
			t.Errorf("status %d: FetchMarketData() error = %v, want %v", tt.status, err, tt.want)
		}
	}
}

func TestPolymarketClient_CheckMarketResolution_OpenMarketIsUnresolved(t *testing.T) {
	gm := []gammaMarket{{ConditionID: "0xabc", Closed: false}}
	client := newTestPolymarketClient(t,
		func(w http.ResponseWriter, r *http.Request) { writeJSON(t, w, gm) },
		func(w http.ResponseWriter, r *http.Request) {},
	)

	res, err := client.CheckMarketResolution(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("CheckMarketResolution() error = %v", err)
	}
	if res.Resolved {
		t.Error("Resolved = true, want false for an open market")
	}
}

func TestPolymarketClient_CheckMarketResolution_ClosedMarketIsResolved(t *testing.T) {
	gm := []gammaMarket{{ConditionID: "0xabc", Closed: true}}
	client := newTestPolymarketClient(t,
		func(w http.ResponseWriter, r *http.Request) { writeJSON(t, w, gm) },
		func(w http.ResponseWriter, r *http.Request) {},
	)

	res, err := client.CheckMarketResolution(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("CheckMarketResolution() error = %v", err)
	}
	if !res.Resolved {
		t.Error("Resolved = false, want true for a closed market")
	}
	if res.Outcome != OutcomeUnknown {
		t.Errorf("Outcome = %v, want %v (the gamma API doesn't expose the settled side)", res.Outcome, OutcomeUnknown)
	}
}

func TestPolymarketClient_DiscoverMarkets_MapsGammaListingToSummaries(t *testing.T) {
	gm := []gammaMarket{
		{ConditionID: "0x1", MarketSlug: "m1", Question: "q1"},
		{ConditionID: "0x2", MarketSlug: "m2", Question: "q2"},
	}
	client := newTestPolymarketClient(t,
		func(w http.ResponseWriter, r *http.Request) { writeJSON(t, w, gm) },
		func(w http.ResponseWriter, r *http.Request) {},
	)

	summaries, err := client.DiscoverMarkets(context.Background(), 10)
	if err != nil {
		t.Fatalf("DiscoverMarkets() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len(summaries) = %d, want 2", len(summaries))
	}
	if summaries[0].ConditionID != "0x1" || summaries[1].ConditionID != "0x2" {
		t.Errorf("summaries = %+v, want condition IDs in gamma listing order", summaries)
	}
}

func TestPolymarketClient_HealthCheck_ServerErrorReturnsAPIUnavailable(t *testing.T) {
	client := newTestPolymarketClient(t,
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
		func(w http.ResponseWriter, r *http.Request) {},
	)

	err := client.HealthCheck(context.Background())
	if err != ErrAPIUnavailable {
		t.Errorf("HealthCheck() error = %v, want ErrAPIUnavailable", err)
	}
}

func TestPolymarketClient_HealthCheck_OKIsHealthy(t *testing.T) {
	client := newTestPolymarketClient(t,
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) },
		func(w http.ResponseWriter, r *http.Request) {},
	)

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}
}

func TestParseFloatOr_FallsBackOnEmptyOrMalformed(t *testing.T) {
	if got := parseFloatOr("", 7); got != 7 {
		t.Errorf("parseFloatOr(\"\", 7) = %v, want 7", got)
	}
	if got := parseFloatOr("not-a-number", 7); got != 7 {
		t.Errorf("parseFloatOr(\"not-a-number\", 7) = %v, want 7", got)
	}
	if got := parseFloatOr("3.14", 7); got != 3.14 {
		t.Errorf("parseFloatOr(\"3.14\", 7) = %v, want 3.14", got)
	}
}

func TestNewPolymarketClient_DefaultsEmptyConfig(t *testing.T) {
	c := NewPolymarketClient(PolymarketConfig{})
	if c.gammaBaseURL == "" || c.clobBaseURL == "" {
		t.Error("NewPolymarketClient(empty config) left base URLs empty, want public endpoint defaults")
	}
}
