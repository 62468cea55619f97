// Package signal defines the AgentSignal type produced by every intelligence
// agent and consumed by thesis construction, cross-examination, and fusion.
package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Direction is the agent's stated lean on the market's binary outcome.
type Direction string

const (
	DirectionYes     Direction = "YES"
	DirectionNo      Direction = "NO"
	DirectionNeutral Direction = "NEUTRAL"
)

// AgentSignal is the typed output of one agent invocation.
type AgentSignal struct {
	AgentName       string          `json:"agentName"`
	Timestamp       time.Time       `json:"timestamp"`
	Confidence      float64         `json:"confidence"`
	Direction       Direction       `json:"direction"`
	FairProbability float64         `json:"fairProbability"`
	KeyDrivers      []string        `json:"keyDrivers"`
	RiskFactors     []string        `json:"riskFactors"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

var (
	ErrConfidenceOutOfRange = errors.New("signal: confidence must be in [0,1]")
	ErrProbabilityOutOfRange = errors.New("signal: fairProbability must be in [0,1]")
	ErrKeyDriversCount      = errors.New("signal: keyDrivers must have between 1 and 5 entries")
	ErrDirectionInconsistent = errors.New("signal: direction is inconsistent with fairProbability")

	// LowConfidenceNeutralThreshold is the confidence level below which a
	// NEUTRAL direction is accepted even when fairProbability strays from
	// 0.5, per the data model's explicit low-confidence exception.
	LowConfidenceNeutralThreshold = 0.35
)

// NewAgentSignal validates the invariants from the data model: confidence
// and fairProbability in [0,1], 1-5 key drivers, and direction consistent
// with fairProbability (YES iff >0.5, NO iff <0.5, NEUTRAL at exactly 0.5
// or when confidence is low enough to justify abstaining).
func NewAgentSignal(agentName string, timestamp time.Time, confidence float64, direction Direction,
	fairProbability float64, keyDrivers, riskFactors []string, metadata json.RawMessage) (*AgentSignal, error) {
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("%w: got %f", ErrConfidenceOutOfRange, confidence)
	}
	if fairProbability < 0 || fairProbability > 1 {
		return nil, fmt.Errorf("%w: got %f", ErrProbabilityOutOfRange, fairProbability)
	}
	if len(keyDrivers) < 1 || len(keyDrivers) > 5 {
		return nil, fmt.Errorf("%w: got %d", ErrKeyDriversCount, len(keyDrivers))
	}
	if !directionConsistent(direction, fairProbability, confidence) {
		return nil, fmt.Errorf("%w: direction=%s fairProbability=%f confidence=%f", ErrDirectionInconsistent, direction, fairProbability, confidence)
	}
	if riskFactors == nil {
		riskFactors = []string{}
	}
	return &AgentSignal{
		AgentName:       agentName,
		Timestamp:       timestamp,
		Confidence:      confidence,
		Direction:       direction,
		FairProbability: fairProbability,
		KeyDrivers:      keyDrivers,
		RiskFactors:     riskFactors,
		Metadata:        metadata,
	}, nil
}

func directionConsistent(direction Direction, fairProbability, confidence float64) bool {
	expected := DirectionNeutral
	switch {
	case fairProbability > 0.5:
		expected = DirectionYes
	case fairProbability < 0.5:
		expected = DirectionNo
	}
	if direction == expected {
		return true
	}
	// A NEUTRAL call is allowed to diverge from the strict probability
	// split when the agent's own confidence is low enough that it is
	// explicitly hedging rather than miscategorizing.
	if direction == DirectionNeutral && confidence <= LowConfidenceNeutralThreshold {
		return true
	}
	return false
}
