// Command marketoracle runs the single-process analysis service: it wires
// configuration, persistence, the external-data layer, the ten intelligence
// agents, and the checkpointable graph into a scheduled monitor loop that
// discovers, analyzes, and refreshes prediction markets.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/marketoracle/internal/agentharness"
	"github.com/ajitpratap0/marketoracle/internal/alerts"
	"github.com/ajitpratap0/marketoracle/internal/audit"
	"github.com/ajitpratap0/marketoracle/internal/config"
	"github.com/ajitpratap0/marketoracle/internal/consensus"
	"github.com/ajitpratap0/marketoracle/internal/db"
	"github.com/ajitpratap0/marketoracle/internal/externaldata"
	"github.com/ajitpratap0/marketoracle/internal/graph"
	"github.com/ajitpratap0/marketoracle/internal/intelligence"
	"github.com/ajitpratap0/marketoracle/internal/llm"
	"github.com/ajitpratap0/marketoracle/internal/market"
	"github.com/ajitpratap0/marketoracle/internal/memory"
	"github.com/ajitpratap0/marketoracle/internal/metrics"
	"github.com/ajitpratap0/marketoracle/internal/monitor"
	"github.com/ajitpratap0/marketoracle/internal/performance"
	marketsignal "github.com/ajitpratap0/marketoracle/internal/signal"
	"github.com/ajitpratap0/marketoracle/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marketoracle: config load failed: %v\n", err)
		os.Exit(1)
	}

	config.InitLogger(cfg.App.LogLevel, "json")
	log.Info().Str("env", cfg.App.Environment).Str("version", cfg.App.Version).Msg("marketoracle starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer database.Close()

	store := db.NewAnalysisStore(database)
	auditLogger := audit.NewLogger(database.Pool(), cfg.Monitoring.EnableAuditLog)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	checkpointer := graph.NewRedisCheckpointer(redisClient, time.Duration(cfg.Graph.CheckpointTTLHr)*time.Hour)

	llmClient := llm.NewClient(llm.ClientConfig{
		Endpoint:    cfg.LLM.Endpoint,
		Model:       cfg.LLM.PrimaryModel,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.GetTimeout(),
	})

	marketClient := market.NewPolymarketClient(market.PolymarketConfig{
		GammaBaseURL: cfg.Market.BaseURL,
	})

	providers, err := externaldata.BuildProviders(cfg.ExternalData.Providers, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("external data provider wiring failed")
	}

	sink, err := telemetry.NewNATSSink(telemetry.Config{URL: cfg.NATS.URL}, "marketoracle")
	var eventSink externaldata.EventSink
	if err != nil {
		log.Warn().Err(err).Msg("NATS telemetry sink unavailable, falling back to log sink")
		eventSink = &telemetry.LogSink{ConditionID: "marketoracle"}
	} else {
		defer sink.Close()
		eventSink = sink
	}
	fetcher := externaldata.NewFetcher(providers, eventSink)

	signalStore := memory.NewDBSignalStore(database)
	retriever := memory.NewRetriever(signalStore)

	tracker := performance.NewTracker()

	weigher := consensus.NewWeigher(
		nil,
		cfg.Fusion.BasePerformanceBias,
		tracker,
		cfg.Performance.MinSampleSize,
		cfg.Fusion.ContextBonus,
		cfg.Fusion.ConflictThreshold,
	)
	thesisBuilder := consensus.NewThesisBuilder(cfg.Fusion.SignalConfidenceThreshold, cfg.Fusion.TopKDrivers, weigher)
	examiner := consensus.NewExaminer()
	recommender := consensus.NewRecommender(cfg.Fusion.MinEdgeThreshold, cfg.Fusion.HighDisagreementThreshold)

	analyzer := &graphAnalyzer{
		llmClient:    llmClient,
		fetcher:      fetcher,
		marketClient: marketClient,
		retriever:    retriever,
		tracker:      tracker,
		thesisNode:   consensus.NewThesisNode(thesisBuilder),
		crossExam:    consensus.NewCrossExamNode(examiner),
		fusionNode:   consensus.NewFusionNode(weigher),
		recNode:      consensus.NewRecommendationNode(recommender),
		harnessCfg:   cfg.Agents,
		store:        store,
		checkpointer: checkpointer,
		graphCfg:     cfg.Graph,
		audit:        auditLogger,
	}

	quota := monitor.NewQuotaManager(cfg.Monitor.DailyQuotaBudget)
	repository := storeRepositoryAdapter{store: store, interval: cfg.Monitor.GetInterval()}
	mon := monitor.NewMonitor(analyzer, marketSourceAdapter{marketClient}, repository, quota, auditLogger)

	resetDone := make(chan struct{})
	go quota.RunQuotaResetLoop(resetDone, monitor.SystemClock{}, nil)

	mon.Start(ctx, cfg.Monitor.GetInterval())

	if cfg.Monitoring.EnableMetrics {
		metricsServer := metrics.NewServer(cfg.Monitoring.PrometheusPort, config.NewLogger("metrics"))
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()

		updateInterval := cfg.Monitoring.GetMetricsUpdateInterval()
		updater := metrics.NewUpdater(database.Pool(), updateInterval)
		go updater.Start(ctx)
		defer updater.Stop()

		go runTrackerPersistLoop(ctx, tracker, database.Pool(), updateInterval)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping monitor")
	mon.Stop()
	close(resetDone)
	cancel()
}

// runTrackerPersistLoop periodically flushes the in-memory performance
// Tracker into agent_performance_metrics so metrics.Updater's gauge refresh
// has something to read.
func runTrackerPersistLoop(ctx context.Context, tracker *performance.Tracker, pool *pgxpool.Pool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := tracker.Persist(ctx, pool); err != nil {
				log.Error().Err(err).Msg("failed to persist agent performance metrics")
			}
		case <-ctx.Done():
			return
		}
	}
}

// marketSourceAdapter adapts market.Client to monitor.MarketSource.
type marketSourceAdapter struct {
	client market.Client
}

func (a marketSourceAdapter) DiscoverMarkets(ctx context.Context, limit int) ([]string, error) {
	summaries, err := a.client.DiscoverMarkets(ctx, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.ConditionID)
	}
	return ids, nil
}

func (a marketSourceAdapter) CheckResolved(ctx context.Context, conditionID string) (bool, error) {
	res, err := a.client.CheckMarketResolution(ctx, conditionID)
	if err != nil {
		return false, err
	}
	return res.Resolved, nil
}

// storeRepositoryAdapter adapts db.Store to monitor.MarketRepository:
// "active markets" are those whose last analysis is older than the
// monitor's own refresh interval, reusing GetMarketsForUpdate rather than
// a separate query.
type storeRepositoryAdapter struct {
	store    db.Store
	interval time.Duration
}

func (a storeRepositoryAdapter) ActiveMarkets(ctx context.Context, limit int) ([]string, error) {
	ids, err := a.store.GetMarketsForUpdate(ctx, a.interval.Milliseconds())
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (a storeRepositoryAdapter) MarkResolved(ctx context.Context, conditionID string) error {
	return a.store.MarkMarketResolved(ctx, conditionID)
}

// graphAnalyzer implements monitor.Analyzer by assembling and running the
// full node pipeline for one market.
type graphAnalyzer struct {
	llmClient    llm.LLMClient
	fetcher      *externaldata.Fetcher
	marketClient market.Client
	retriever    *memory.Retriever
	tracker      *performance.Tracker
	thesisNode   *consensus.ThesisNode
	crossExam    *consensus.CrossExamNode
	fusionNode   *consensus.FusionNode
	recNode      *consensus.RecommendationNode
	harnessCfg   config.AgentHarnessConfig
	store        db.Store
	checkpointer graph.Checkpointer
	graphCfg     config.GraphConfig
	audit        *audit.Logger
}

func (a *graphAnalyzer) Analyze(ctx context.Context, conditionID string) error {
	agentNames := intelligence.DefaultAgentNames

	registry := intelligence.BuildRegistryWithExternalData(ctx, a.llmClient, a.fetcher, conditionID, nil)
	harness := agentharness.NewHarness(registry, a.harnessCfg.GetTimeout(), a.tracker)

	nodes := []graph.Node{
		market.NewIngestionNode(a.marketClient),
		memory.NewRetrievalNode(a.retriever, agentNames),
		agentharness.NewFanOutNode(harness),
		a.thesisNode,
		a.crossExam,
		a.fusionNode,
		a.recNode,
	}

	g := graph.New(nodes, a.harnessCfg.MinAgentsRequired)
	if a.graphCfg.RecursionLimit > 0 {
		g.RecursionLimit = a.graphCfg.RecursionLimit
	}

	runAt := time.Now()
	a.audit.Log(ctx, &audit.Event{
		EventType:   audit.EventTypeIngestion,
		Severity:    audit.SeverityInfo,
		ConditionID: conditionID,
		Stage:       "run_started",
		Success:     true,
	})

	state, runErr := g.Run(ctx, conditionID, a.checkpointer)

	if state.MBD != nil {
		if err := a.store.UpsertMarket(ctx, state.MBD); err != nil {
			log.Warn().Err(err).Str("conditionId", conditionID).Msg("failed to persist market")
		}
	}
	if len(state.Signals) > 0 {
		signals := make([]*marketsignal.AgentSignal, 0, len(state.Signals))
		for i := range state.Signals {
			signals = append(signals, &state.Signals[i])
		}
		if err := a.store.StoreAgentSignals(ctx, conditionID, signals); err != nil {
			log.Warn().Err(err).Str("conditionId", conditionID).Msg("failed to persist agent signals")
		}
	}
	if state.Recommendation != nil {
		if err := a.store.StoreRecommendation(ctx, conditionID, state.Recommendation); err != nil {
			log.Warn().Err(err).Str("conditionId", conditionID).Msg("failed to persist recommendation")
		}
	}
	if err := a.store.RecordAnalysis(ctx, conditionID, runAt, runErr); err != nil {
		log.Warn().Err(err).Str("conditionId", conditionID).Msg("failed to record analysis run")
	}

	event := &audit.Event{
		ConditionID: conditionID,
		Stage:       "run_completed",
		Duration:    time.Since(runAt).Milliseconds(),
	}
	if runErr != nil {
		event.EventType = audit.EventTypeRunAborted
		event.Severity = audit.SeverityError
		event.ErrorMsg = runErr.Error()
		alerts.AlertGraphRunFailed(ctx, conditionID, runErr)
	} else {
		event.EventType = audit.EventTypeRecommendation
		event.Severity = audit.SeverityInfo
		event.Success = true
	}
	a.audit.Log(ctx, event)

	return runErr
}
