package market

import (
	"context"
	"errors"
	"time"

	"github.com/ajitpratap0/marketoracle/internal/graph"
)

// IngestionNode is the first node of every graph run: it fetches the raw
// market, builds the MBD, and halts the run on failure (spec.md §4.1/§4.2).
type IngestionNode struct {
	Client Client
	Clock  func() time.Time
}

// NewIngestionNode returns an IngestionNode using the real wall clock.
func NewIngestionNode(client Client) *IngestionNode {
	return &IngestionNode{Client: client, Clock: time.Now}
}

func (n *IngestionNode) Name() string        { return "ingestion" }
func (n *IngestionNode) Skippable() bool     { return false }
func (n *IngestionNode) Precondition(*graph.GraphState) bool { return true }

func (n *IngestionNode) Run(ctx context.Context, state *graph.GraphState) (graph.PartialState, error) {
	now := time.Now
	if n.Clock != nil {
		now = n.Clock
	}

	raw, err := n.Client.FetchMarketData(ctx, state.ConditionID)
	if err != nil {
		code := classifyIngestionError(err)
		ingestionErr := &graph.IngestionError{Code: code, Message: err.Error()}
		return graph.PartialState{
			IngestionError: ingestionErr,
			AuditLog: []graph.AuditEntry{graph.Audit("ingestion", map[string]interface{}{
				"error": ingestionErr.Error(),
			})},
		}, nil
	}

	mbd, err := BuildMBD(*raw, now())
	if err != nil {
		ingestionErr := &graph.IngestionError{Code: graph.ErrInvalidMarketID, Message: err.Error()}
		return graph.PartialState{
			IngestionError: ingestionErr,
			AuditLog: []graph.AuditEntry{graph.Audit("ingestion", map[string]interface{}{
				"error": ingestionErr.Error(),
			})},
		}, nil
	}

	return graph.PartialState{
		MBD: mbd,
		AuditLog: []graph.AuditEntry{graph.Audit("ingestion", map[string]interface{}{
			"marketId":   mbd.MarketID,
			"eventType":  mbd.EventType,
			"liquidity":  mbd.LiquidityScore,
			"spread":     mbd.BidAskSpread,
			"volatility": mbd.VolatilityRegime,
		})},
	}, nil
}

func classifyIngestionError(err error) graph.IngestionErrorCode {
	switch {
	case errors.Is(err, ErrRateLimitExceeded):
		return graph.ErrRateLimitExceeded
	case errors.Is(err, ErrInvalidMarketID):
		return graph.ErrInvalidMarketID
	default:
		return graph.ErrAPIUnavailable
	}
}
