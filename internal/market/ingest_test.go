package market

import (
	"math"
	"testing"
	"time"

	"github.com/ajitpratap0/marketoracle/internal/marketmodel"
)

func sampleRawMarket() RawMarket {
	return RawMarket{
		MarketID:           "btc-100k",
		ConditionID:        "0xabc",
		Question:           "Will BTC close above $100k?",
		ResolutionCriteria: "Binance spot close",
		ExpiryTimestamp:    time.Now().Add(48 * time.Hour),
		BestBid:            0.60,
		BestAsk:            0.62,
		OrderBookSizes:     []float64{100, 250, 400},
		Volume24h:          50000,
		AmbiguityFlags:     []string{"resolution source TBD"},
		KeyCatalysts:       []RawCatalyst{{Event: "CPI report", Timestamp: time.Now().Add(24 * time.Hour)}},
		PriceHistory:       []float64{0.58, 0.59, 0.61},
	}
}

func TestBuildMBD_DerivesSpreadProbabilityAndEventType(t *testing.T) {
	raw := sampleRawMarket()
	mbd, err := BuildMBD(raw, time.Now())
	if err != nil {
		t.Fatalf("BuildMBD() error = %v", err)
	}

	wantSpread := (raw.BestAsk - raw.BestBid) * 100
	if mbd.BidAskSpread != wantSpread {
		t.Errorf("BidAskSpread = %v, want %v", mbd.BidAskSpread, wantSpread)
	}

	wantProb := (raw.BestBid + raw.BestAsk) / 2
	if mbd.CurrentProbability != wantProb {
		t.Errorf("CurrentProbability = %v, want %v", mbd.CurrentProbability, wantProb)
	}

	if mbd.EventType != marketmodel.EventTypeOther {
		t.Errorf("EventType = %v, want %v", mbd.EventType, marketmodel.EventTypeOther)
	}

	if len(mbd.Metadata.KeyCatalysts) != 1 || mbd.Metadata.KeyCatalysts[0].Event != "CPI report" {
		t.Errorf("Metadata.KeyCatalysts = %v, want one entry carried over from RawCatalyst", mbd.Metadata.KeyCatalysts)
	}
	if len(mbd.PriceHistory) != 3 {
		t.Errorf("PriceHistory length = %d, want 3", len(mbd.PriceHistory))
	}
}

func TestBuildMBD_ClampsInvertedSpreadToZero(t *testing.T) {
	raw := sampleRawMarket()
	raw.BestBid = 0.65
	raw.BestAsk = 0.60 // crossed book

	mbd, err := BuildMBD(raw, time.Now())
	if err != nil {
		t.Fatalf("BuildMBD() error = %v", err)
	}
	if mbd.BidAskSpread != 0 {
		t.Errorf("BidAskSpread = %v, want 0 for a crossed/inverted book", mbd.BidAskSpread)
	}
}

func TestBuildMBD_PropagatesValidationError(t *testing.T) {
	raw := sampleRawMarket()
	raw.ExpiryTimestamp = time.Now().Add(-time.Hour) // already expired

	_, err := BuildMBD(raw, time.Now())
	if err == nil {
		t.Fatal("BuildMBD() error = nil, want an error for a non-future expiry")
	}
}

func TestLiquidityScoreFromSizes_EmptyIsZero(t *testing.T) {
	got := liquidityScoreFromSizes(nil)
	if got != 0 {
		t.Errorf("liquidityScoreFromSizes(nil) = %v, want 0", got)
	}
}

func TestLiquidityScoreFromSizes_IgnoresNonPositiveEntries(t *testing.T) {
	withNegative := liquidityScoreFromSizes([]float64{100, -50, 0})
	withoutNegative := liquidityScoreFromSizes([]float64{100})

	if withNegative != withoutNegative {
		t.Errorf("liquidityScoreFromSizes with non-positive entries = %v, want %v (they should be ignored)", withNegative, withoutNegative)
	}
}

func TestLiquidityScoreFromSizes_ClampsToTen(t *testing.T) {
	huge := make([]float64, 0, 1)
	huge = append(huge, math.Pow(10, 20))

	got := liquidityScoreFromSizes(huge)
	if got != 10 {
		t.Errorf("liquidityScoreFromSizes(huge order book) = %v, want 10 (clamped)", got)
	}
}
