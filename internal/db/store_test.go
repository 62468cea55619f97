package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/marketoracle/internal/db"
	"github.com/ajitpratap0/marketoracle/internal/db/testhelpers"
	"github.com/ajitpratap0/marketoracle/internal/marketmodel"
	"github.com/ajitpratap0/marketoracle/internal/signal"
)

func sampleMBDForStore(conditionID string) *marketmodel.MBD {
	return &marketmodel.MBD{
		MarketID:           conditionID + "-market",
		ConditionID:        conditionID,
		EventType:          marketmodel.EventTypeEconomic,
		Question:           "Will BTC close above $100k?",
		ResolutionCriteria: "Binance spot close price",
		ExpiryTimestamp:    time.Now().Add(24 * time.Hour),
		CurrentProbability: 0.62,
		LiquidityScore:     8.5,
		BidAskSpread:       0.01,
		VolatilityRegime:   marketmodel.VolatilityMedium,
		Volume24h:          125000,
		Metadata:           marketmodel.Metadata{AmbiguityFlags: []string{}, KeyCatalysts: []marketmodel.Catalyst{}},
		IngestedAt:         time.Now(),
	}
}

func sampleRecommendation(action marketmodel.Action) *marketmodel.Recommendation {
	return &marketmodel.Recommendation{
		Action:         action,
		ExpectedValue:  0.16,
		WinProbability: 0.58,
		EntryZone:      marketmodel.Zone{Lo: 0.55, Hi: 0.60},
		LiquidityRisk:  marketmodel.LiquidityRiskLow,
		Explanation: marketmodel.Explanation{
			Summary:      "surviving thesis cites two independent drivers",
			CoreThesis:   "momentum and flow both point yes",
			KeyCatalysts: []string{"volume spike"},
		},
		Metadata: marketmodel.RecommendationMetadata{
			MarketProbability:    0.50,
			ConsensusProbability: 0.58,
			Edge:                 0.08,
			AgentCount:           6,
		},
	}
}

func sampleAgentSignal(agentName string, ts time.Time) *signal.AgentSignal {
	sig, err := signal.NewAgentSignal(agentName, ts, 0.7, signal.DirectionYes, 0.6, []string{"volume spike"}, nil)
	if err != nil {
		panic(err)
	}
	return sig
}

func TestAnalysisStore_UpsertMarket_InsertThenUpdateOnConflict(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tc := testhelpers.SetupTestDatabase(t)
	require.NoError(t, tc.ApplyMigrations("../../migrations"))

	store := db.NewAnalysisStore(tc.DB)
	ctx := context.Background()

	mbd := sampleMBDForStore("0xabc-upsert")
	require.NoError(t, store.UpsertMarket(ctx, mbd))

	mbd.CurrentProbability = 0.71
	mbd.Volume24h = 250000
	require.NoError(t, store.UpsertMarket(ctx, mbd))

	ids, err := store.GetMarketsForUpdate(ctx, 0)
	require.NoError(t, err)
	assert.Contains(t, ids, mbd.ConditionID)
}

func TestAnalysisStore_RecommendationRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tc := testhelpers.SetupTestDatabase(t)
	require.NoError(t, tc.ApplyMigrations("../../migrations"))

	store := db.NewAnalysisStore(tc.DB)
	ctx := context.Background()

	mbd := sampleMBDForStore("0xabc-rec")
	require.NoError(t, store.UpsertMarket(ctx, mbd))

	first := sampleRecommendation(marketmodel.ActionLongYes)
	require.NoError(t, store.StoreRecommendation(ctx, mbd.ConditionID, first))

	time.Sleep(10 * time.Millisecond)

	second := sampleRecommendation(marketmodel.ActionNoTrade)
	require.NoError(t, store.StoreRecommendation(ctx, mbd.ConditionID, second))

	got, err := store.GetLatestRecommendation(ctx, mbd.ConditionID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.Action, got.Action)
}

func TestAnalysisStore_GetLatestRecommendation_NoRowsReturnsNilNil(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tc := testhelpers.SetupTestDatabase(t)
	require.NoError(t, tc.ApplyMigrations("../../migrations"))

	store := db.NewAnalysisStore(tc.DB)

	got, err := store.GetLatestRecommendation(context.Background(), "0xabc-missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAnalysisStore_AgentSignalsRoundTrip_DedupsAndOrdersNewestFirst(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tc := testhelpers.SetupTestDatabase(t)
	require.NoError(t, tc.ApplyMigrations("../../migrations"))

	store := db.NewAnalysisStore(tc.DB)
	ctx := context.Background()

	mbd := sampleMBDForStore("0xabc-signals")
	require.NoError(t, store.UpsertMarket(ctx, mbd))

	base := time.Now().Add(-time.Hour)
	older := sampleAgentSignal("probability-baseline", base)
	newer := sampleAgentSignal("probability-baseline", base.Add(time.Minute))

	require.NoError(t, store.StoreAgentSignals(ctx, mbd.ConditionID, []*signal.AgentSignal{older, newer}))
	// Re-storing the same (condition_id, agent_name, timestamp) tuple must
	// be a no-op, not a duplicate row.
	require.NoError(t, store.StoreAgentSignals(ctx, mbd.ConditionID, []*signal.AgentSignal{older}))

	signals, err := store.GetRecentSignals(ctx, "probability-baseline", mbd.ConditionID, 10)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.True(t, signals[0].Timestamp.After(signals[1].Timestamp))
}

func TestAnalysisStore_GetRecentSignals_RespectsLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tc := testhelpers.SetupTestDatabase(t)
	require.NoError(t, tc.ApplyMigrations("../../migrations"))

	store := db.NewAnalysisStore(tc.DB)
	ctx := context.Background()

	mbd := sampleMBDForStore("0xabc-limit")
	require.NoError(t, store.UpsertMarket(ctx, mbd))

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		sig := sampleAgentSignal("event-impact", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.StoreAgentSignals(ctx, mbd.ConditionID, []*signal.AgentSignal{sig}))
	}

	signals, err := store.GetRecentSignals(ctx, "event-impact", mbd.ConditionID, 2)
	require.NoError(t, err)
	assert.Len(t, signals, 2)
}

func TestAnalysisStore_RecordAnalysisAndGetMarketsForUpdate(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tc := testhelpers.SetupTestDatabase(t)
	require.NoError(t, tc.ApplyMigrations("../../migrations"))

	store := db.NewAnalysisStore(tc.DB)
	ctx := context.Background()

	fresh := sampleMBDForStore("0xabc-fresh")
	stale := sampleMBDForStore("0xabc-stale")
	require.NoError(t, store.UpsertMarket(ctx, fresh))
	require.NoError(t, store.UpsertMarket(ctx, stale))

	require.NoError(t, store.RecordAnalysis(ctx, fresh.ConditionID, time.Now(), nil))
	require.NoError(t, store.RecordAnalysis(ctx, stale.ConditionID, time.Now().Add(-time.Hour), nil))

	// An older failed run does not make a market due again: only its most
	// recent run counts, and fresh's most recent run is now.
	require.NoError(t, store.RecordAnalysis(ctx, fresh.ConditionID, time.Now().Add(-2*time.Hour), assertError("transient timeout")))

	ids, err := store.GetMarketsForUpdate(ctx, int64(30*time.Minute/time.Millisecond))
	require.NoError(t, err)
	assert.Contains(t, ids, stale.ConditionID)
	assert.NotContains(t, ids, fresh.ConditionID)
}

func TestAnalysisStore_MarkMarketResolved_ExcludesFromGetMarketsForUpdate(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tc := testhelpers.SetupTestDatabase(t)
	require.NoError(t, tc.ApplyMigrations("../../migrations"))

	store := db.NewAnalysisStore(tc.DB)
	ctx := context.Background()

	mbd := sampleMBDForStore("0xabc-resolved")
	require.NoError(t, store.UpsertMarket(ctx, mbd))

	require.NoError(t, store.MarkMarketResolved(ctx, mbd.ConditionID))

	ids, err := store.GetMarketsForUpdate(ctx, 0)
	require.NoError(t, err)
	assert.NotContains(t, ids, mbd.ConditionID)
}

type assertError string

func (e assertError) Error() string { return string(e) }
