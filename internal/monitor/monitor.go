// Package monitor drives the periodic analysis cycle: discover new
// markets, analyze them, refresh existing ones, and retire resolved ones,
// on a non-overlapping schedule (spec.md §4.11).
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/marketoracle/internal/alerts"
	"github.com/ajitpratap0/marketoracle/internal/audit"
)

// Analyzer runs one full graph analysis for a single market.
type Analyzer interface {
	Analyze(ctx context.Context, conditionID string) error
}

// MarketSource discovers new markets and checks existing ones for
// resolution.
type MarketSource interface {
	DiscoverMarkets(ctx context.Context, limit int) ([]string, error)
	CheckResolved(ctx context.Context, conditionID string) (bool, error)
}

// MarketRepository tracks which markets are actively monitored and records
// resolution.
type MarketRepository interface {
	ActiveMarkets(ctx context.Context, limit int) ([]string, error)
	MarkResolved(ctx context.Context, conditionID string) error
}

// PerCycleCeiling bounds how many markets a single cycle analyzes, even
// when the quota manager would allow more.
const PerCycleCeiling = 50

// Monitor implements the start/stop/triggerNow/nextRun/running contract
// from spec.md §4.11, grounded on the teacher's
// internal/agents.HeartbeatPublisher ticker-loop-plus-atomic.Bool shape.
type Monitor struct {
	analyzer   Analyzer
	source     MarketSource
	repository MarketRepository
	quota      *QuotaManager
	audit      *audit.Logger

	mu          sync.Mutex
	interval    time.Duration
	nextRun     time.Time
	stopChan    chan struct{}
	triggerChan chan struct{}
	doneChan    chan struct{}

	running    atomic.Bool
	executing  atomic.Bool
}

// NewMonitor returns a Monitor ready to Start. auditLog must be non-nil;
// pass audit.NewLogger(nil, false) to disable persistence while keeping a
// valid receiver for Monitor's Log calls.
func NewMonitor(analyzer Analyzer, source MarketSource, repository MarketRepository, quota *QuotaManager, auditLog *audit.Logger) *Monitor {
	return &Monitor{analyzer: analyzer, source: source, repository: repository, quota: quota, audit: auditLog}
}

// Start runs one cycle immediately and schedules recurring cycles every
// interval. Calling Start while already running is a no-op.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	if m.running.Load() {
		log.Warn().Msg("monitor already running")
		return
	}

	m.mu.Lock()
	m.interval = interval
	m.stopChan = make(chan struct{})
	m.triggerChan = make(chan struct{}, 1)
	m.doneChan = make(chan struct{})
	m.mu.Unlock()

	m.running.Store(true)

	go m.loop(ctx)
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.doneChan)
	defer m.running.Store(false)

	m.runCycle(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.mu.Lock()
		m.nextRun = time.Now().Add(m.interval)
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-m.triggerChan:
			m.runCycle(ctx)
		case <-ticker.C:
			if m.executing.Load() {
				log.Warn().Msg("monitor tick dropped: previous cycle still executing")
				alerts.AlertMonitorCycleDropped(ctx, time.Now())
				m.audit.Log(ctx, &audit.Event{EventType: audit.EventTypeMonitorCycleDropped, Severity: audit.SeverityWarning, Stage: "cycle", Metadata: map[string]interface{}{"reason": "overlap"}})
				continue
			}
			m.runCycle(ctx)
		}
	}
}

// Stop is graceful: it clears the schedule then blocks until any in-flight
// cycle finishes.
func (m *Monitor) Stop() {
	if !m.running.Load() {
		return
	}
	m.mu.Lock()
	stopChan := m.stopChan
	doneChan := m.doneChan
	m.mu.Unlock()

	close(stopChan)
	<-doneChan
}

// TriggerNow requests an out-of-schedule cycle. It is dropped (not queued)
// if a cycle is already executing, matching the scheduler's
// non-overlapping guarantee.
func (m *Monitor) TriggerNow() {
	if !m.running.Load() {
		return
	}
	select {
	case m.triggerChan <- struct{}{}:
	default:
	}
}

// NextRun reports the scheduled time of the next tick-driven cycle.
func (m *Monitor) NextRun() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextRun
}

// Running reports whether the monitor's loop goroutine is active.
func (m *Monitor) Running() bool {
	return m.running.Load()
}

func (m *Monitor) runCycle(ctx context.Context) {
	if !m.executing.CompareAndSwap(false, true) {
		log.Warn().Msg("monitor cycle already executing, skipping overlap")
		return
	}
	defer m.executing.Store(false)

	startedAt := time.Now()
	m.audit.Log(ctx, &audit.Event{EventType: audit.EventTypeMonitorCycleStarted, Severity: audit.SeverityInfo, Stage: "cycle", Success: true})

	maxMarkets := m.quota.RecommendMaxMarkets(PerCycleCeiling)
	if maxMarkets <= 0 {
		log.Warn().Msg("monitor cycle skipped: daily quota exhausted")
		used, budget := m.quota.Usage()
		alerts.AlertQuotaExhausted(ctx, "market_analysis", used, budget)
		m.audit.Log(ctx, &audit.Event{EventType: audit.EventTypeMonitorCycleDropped, Severity: audit.SeverityWarning, Stage: "cycle", Metadata: map[string]interface{}{"reason": "quota_exhausted"}})
		return
	}

	discoverBudget := maxMarkets / 2
	analyzed := m.discoverAndAnalyze(ctx, discoverBudget)

	refreshBudget := maxMarkets - analyzed
	if refreshBudget > 0 {
		analyzed += m.refreshExisting(ctx, refreshBudget)
	}

	m.quota.Consume(analyzed)

	m.audit.Log(ctx, &audit.Event{
		EventType: audit.EventTypeMonitorCycleEnded,
		Severity:  audit.SeverityInfo,
		Stage:     "cycle",
		Success:   true,
		Duration:  time.Since(startedAt).Milliseconds(),
		Metadata:  map[string]interface{}{"analyzed": analyzed},
	})
}

func (m *Monitor) discoverAndAnalyze(ctx context.Context, limit int) int {
	if limit <= 0 {
		return 0
	}
	markets, err := m.source.DiscoverMarkets(ctx, limit)
	if err != nil {
		log.Warn().Err(err).Msg("monitor: market discovery failed")
		return 0
	}

	analyzed := 0
	for _, conditionID := range markets {
		if err := m.analyzer.Analyze(ctx, conditionID); err != nil {
			log.Warn().Err(err).Str("conditionId", conditionID).Msg("monitor: analysis failed for discovered market")
			continue
		}
		analyzed++
	}
	return analyzed
}

func (m *Monitor) refreshExisting(ctx context.Context, limit int) int {
	markets, err := m.repository.ActiveMarkets(ctx, limit)
	if err != nil {
		log.Warn().Err(err).Msg("monitor: listing active markets failed")
		return 0
	}

	analyzed := 0
	for _, conditionID := range markets {
		resolved, err := m.source.CheckResolved(ctx, conditionID)
		if err != nil {
			log.Warn().Err(err).Str("conditionId", conditionID).Msg("monitor: resolution check failed")
			continue
		}
		if resolved {
			if err := m.repository.MarkResolved(ctx, conditionID); err != nil {
				log.Warn().Err(err).Str("conditionId", conditionID).Msg("monitor: failed to mark market resolved")
			}
			continue
		}

		if err := m.analyzer.Analyze(ctx, conditionID); err != nil {
			log.Warn().Err(err).Str("conditionId", conditionID).Msg("monitor: analysis failed for existing market")
			continue
		}
		analyzed++
	}
	return analyzed
}
