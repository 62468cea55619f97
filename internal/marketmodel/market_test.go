package marketmodel

import (
	"errors"
	"testing"
	"time"
)

func TestClassifyVolatilityRegime(t *testing.T) {
	tests := []struct {
		spread float64
		want   VolatilityRegime
	}{
		{0, VolatilityLow},
		{1.99, VolatilityLow},
		{2, VolatilityMedium},
		{4.99, VolatilityMedium},
		{5, VolatilityHigh},
		{50, VolatilityHigh},
	}
	for _, tt := range tests {
		if got := ClassifyVolatilityRegime(tt.spread); got != tt.want {
			t.Errorf("ClassifyVolatilityRegime(%v) = %v, want %v", tt.spread, got, tt.want)
		}
	}
}

func validMBDArgs() (marketID, conditionID string, eventType EventType, question, resolutionCriteria string,
	expiry time.Time, prob, liquidity, spread, volume float64, metadata Metadata, ingestedAt time.Time, history []float64) {
	ingestedAt = time.Now()
	return "m1", "0xabc", EventTypeOther, "q", "rc", ingestedAt.Add(48 * time.Hour), 0.6, 5, 1.5, 1000,
		Metadata{}, ingestedAt, nil
}

func TestNewMBD_ValidInputsSucceed(t *testing.T) {
	marketID, conditionID, eventType, question, rc, expiry, prob, liquidity, spread, volume, metadata, ingestedAt, history := validMBDArgs()

	mbd, err := NewMBD(marketID, conditionID, eventType, question, rc, expiry, prob, liquidity, spread, volume, metadata, ingestedAt, history)
	if err != nil {
		t.Fatalf("NewMBD() error = %v", err)
	}
	if mbd.VolatilityRegime != VolatilityLow {
		t.Errorf("VolatilityRegime = %v, want %v (derived from spread=1.5)", mbd.VolatilityRegime, VolatilityLow)
	}
	if mbd.Metadata.AmbiguityFlags == nil || mbd.Metadata.KeyCatalysts == nil {
		t.Error("NewMBD() left Metadata slices nil, want them defaulted to empty")
	}
}

func TestNewMBD_RejectsNonFutureExpiry(t *testing.T) {
	marketID, conditionID, eventType, question, rc, _, prob, liquidity, spread, volume, metadata, ingestedAt, history := validMBDArgs()

	_, err := NewMBD(marketID, conditionID, eventType, question, rc, ingestedAt, prob, liquidity, spread, volume, metadata, ingestedAt, history)
	if !errors.Is(err, ErrExpiryNotFuture) {
		t.Errorf("error = %v, want ErrExpiryNotFuture when expiry equals ingestedAt", err)
	}
}

func TestNewMBD_RejectsProbabilityOutOfRange(t *testing.T) {
	marketID, conditionID, eventType, question, rc, expiry, _, liquidity, spread, volume, metadata, ingestedAt, history := validMBDArgs()

	_, err := NewMBD(marketID, conditionID, eventType, question, rc, expiry, 1.1, liquidity, spread, volume, metadata, ingestedAt, history)
	if !errors.Is(err, ErrProbabilityOutOfRange) {
		t.Errorf("error = %v, want ErrProbabilityOutOfRange", err)
	}
}

func TestNewMBD_RejectsLiquidityOutOfRange(t *testing.T) {
	marketID, conditionID, eventType, question, rc, expiry, prob, _, spread, volume, metadata, ingestedAt, history := validMBDArgs()

	_, err := NewMBD(marketID, conditionID, eventType, question, rc, expiry, prob, 11, spread, volume, metadata, ingestedAt, history)
	if !errors.Is(err, ErrLiquidityOutOfRange) {
		t.Errorf("error = %v, want ErrLiquidityOutOfRange", err)
	}
}

func TestNewMBD_RejectsNegativeSpread(t *testing.T) {
	marketID, conditionID, eventType, question, rc, expiry, prob, liquidity, _, volume, metadata, ingestedAt, history := validMBDArgs()

	_, err := NewMBD(marketID, conditionID, eventType, question, rc, expiry, prob, liquidity, -0.1, volume, metadata, ingestedAt, history)
	if !errors.Is(err, ErrNegativeSpread) {
		t.Errorf("error = %v, want ErrNegativeSpread", err)
	}
}
