package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded-cardinality label normalization. Free-form error/reason strings
// are mapped onto a fixed set before being used as Prometheus label values,
// so a misbehaving provider can't blow up metric cardinality.
const (
	ReasonRateLimit     = "rate_limit"
	ReasonHighLatency   = "high_latency"
	ReasonManualTrip    = "manual_trip"
	ReasonConsecutiveErrors = "consecutive_errors"
	ReasonOther         = "other"

	ProviderErrorTimeout     = "timeout"
	ProviderErrorRateLimit   = "rate_limit"
	ProviderErrorAuth        = "authentication"
	ProviderErrorNetwork     = "network"
	ProviderErrorInvalidReq  = "invalid_request"
	ProviderErrorServerError = "server_error"
	ProviderErrorOther       = "other"
)

// NormalizeCircuitBreakerReason maps arbitrary reasons to a bounded set.
func NormalizeCircuitBreakerReason(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "rate") || strings.Contains(lower, "limit"):
		return ReasonRateLimit
	case strings.Contains(lower, "latency") || strings.Contains(lower, "slow"):
		return ReasonHighLatency
	case strings.Contains(lower, "manual"):
		return ReasonManualTrip
	case strings.Contains(lower, "consecutive") || strings.Contains(lower, "failure"):
		return ReasonConsecutiveErrors
	default:
		return ReasonOther
	}
}

// NormalizeProviderError maps arbitrary external-data provider errors to a
// bounded set for use as a Prometheus label value.
func NormalizeProviderError(err error) string {
	if err == nil {
		return ""
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return ProviderErrorTimeout
	case strings.Contains(errStr, "rate") || strings.Contains(errStr, "429"):
		return ProviderErrorRateLimit
	case strings.Contains(errStr, "auth") || strings.Contains(errStr, "401") || strings.Contains(errStr, "403"):
		return ProviderErrorAuth
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "connection"):
		return ProviderErrorNetwork
	case strings.Contains(errStr, "400") || strings.Contains(errStr, "invalid"):
		return ProviderErrorInvalidReq
	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502") || strings.Contains(errStr, "503"):
		return ProviderErrorServerError
	default:
		return ProviderErrorOther
	}
}

// Graph run metrics
var (
	GraphRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketoracle_graph_runs_total",
		Help: "Total number of graph runs by terminal status",
	}, []string{"status"})

	GraphRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketoracle_graph_run_duration_ms",
		Help:    "End-to-end graph run duration in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})

	NodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketoracle_node_duration_ms",
		Help:    "Graph node execution duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"node"})

	NodeSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketoracle_node_skipped_total",
		Help: "Total number of node executions skipped due to a failed precondition",
	}, []string{"node"})
)

// Agent harness metrics
var (
	AgentInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketoracle_agent_invocations_total",
		Help: "Total agent invocations by agent and outcome",
	}, []string{"agent_name", "outcome"}) // outcome: success|error|timeout

	AgentSignalConfidence = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "marketoracle_agent_signal_confidence",
		Help: "Most recent agent signal confidence (0.0 to 1.0)",
	}, []string{"agent_name"})

	AgentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketoracle_agent_duration_ms",
		Help:    "Agent invocation duration in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 15000},
	}, []string{"agent_name"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketoracle_llm_request_duration_ms",
		Help:    "LLM request duration in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"agent_name"})
)

// Consensus/recommendation metrics
var (
	ConsensusDisagreementIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketoracle_consensus_disagreement_index",
		Help: "Disagreement index of the most recent consensus computation",
	})

	RecommendationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketoracle_recommendations_total",
		Help: "Total recommendations emitted by action",
	}, []string{"action"})
)

// External-data layer metrics
var (
	CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketoracle_cache_operations_total",
		Help: "Cache operations by source and state (fresh|stale|miss|evicted)",
	}, []string{"source", "state"})

	ProviderFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketoracle_provider_fetch_duration_ms",
		Help:    "External data provider fetch duration in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"source", "provider"})

	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketoracle_provider_errors_total",
		Help: "Total external-data provider errors by normalized category",
	}, []string{"provider", "error_type"})

	RateLimitDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketoracle_rate_limit_denials_total",
		Help: "Total requests denied by the token bucket before reaching a provider",
	}, []string{"provider"})

	CircuitBreakerStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "marketoracle_circuit_breaker_status",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"provider"})

	CircuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketoracle_circuit_breaker_trips_total",
		Help: "Total circuit breaker trips to open",
	}, []string{"provider", "reason"})
)

// Monitor/scheduler metrics
var (
	MonitorCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketoracle_monitor_cycles_total",
		Help: "Monitor cycles by outcome (completed|dropped)",
	}, []string{"outcome"})

	MonitorCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketoracle_monitor_cycle_duration_ms",
		Help:    "Monitor cycle duration in milliseconds",
		Buckets: []float64{1000, 5000, 15000, 30000, 60000, 120000},
	})

	QuotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketoracle_quota_remaining",
		Help: "Remaining request quota for the current period",
	})
)

// Performance tracking metrics
var (
	AgentAccuracyScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "marketoracle_agent_accuracy_score",
		Help: "Per-agent rolling accuracy score (0.0 to 1.0)",
	}, []string{"agent_name"})
)

// Ambient system metrics (HTTP, DB, audit) kept in the teacher's shape.
var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketoracle_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status_code"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketoracle_api_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"method", "path", "status_code"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketoracle_errors_total",
		Help: "Total number of errors by type and component",
	}, []string{"type", "component"})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketoracle_database_query_duration_ms",
		Help:    "Database query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"query_type"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketoracle_database_connections_active",
		Help: "Number of active database connections",
	})

	DatabaseConnectionsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketoracle_database_connections_idle",
		Help: "Number of idle database connections",
	})

	NATSMessagesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketoracle_nats_messages_published_total",
		Help: "Total number of telemetry events published to NATS",
	})

	RedisCacheHitRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketoracle_redis_cache_hit_rate",
		Help: "Redis-backed checkpoint cache hit rate as a ratio (0.0 to 1.0)",
	})

	RedisOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketoracle_redis_operations_total",
		Help: "Total number of Redis operations by type",
	}, []string{"operation"})

	AuditLogOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketoracle_audit_log_operations_total",
		Help: "Total number of audit log operations by event type and status",
	}, []string{"event_type", "status"})

	AuditLogLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketoracle_audit_log_latency_ms",
		Help:    "Audit log operation latency in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})
)

// Vault secrets-client metrics
var (
	VaultCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketoracle_vault_cache_hits_total",
		Help: "Total number of Vault secret reads served from the in-process cache",
	})

	VaultCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketoracle_vault_cache_misses_total",
		Help: "Total number of Vault secret reads that required a request to Vault",
	})

	VaultCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketoracle_vault_cache_size",
		Help: "Number of entries currently held in the Vault secret cache",
	})

	VaultRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketoracle_vault_requests_total",
		Help: "Total requests made to Vault by outcome",
	}, []string{"outcome"}) // outcome: success|error

	VaultRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketoracle_vault_request_duration_ms",
		Help:    "Vault secret request duration in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
	})
)

// Helper functions to update metrics.

func UpdateDatabaseConnections(active, idle int32) {
	DatabaseConnectionsActive.Set(float64(active))
	DatabaseConnectionsIdle.Set(float64(idle))
}

func RecordAPIRequest(method, path, statusCode string, durationMs float64) {
	APIRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationMs)
	HTTPRequests.WithLabelValues(method, path, statusCode).Inc()
}

func RecordError(errorType, component string) {
	Errors.WithLabelValues(errorType, component).Inc()
}

func RecordDatabaseQuery(queryType string, durationMs float64) {
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(durationMs)
}

// RecordGraphRun records a completed graph run's terminal status and
// total wall-clock duration.
func RecordGraphRun(status string, durationMs float64) {
	GraphRunsTotal.WithLabelValues(status).Inc()
	GraphRunDuration.Observe(durationMs)
}

// RecordNode records one node's execution duration; skipped nodes are
// counted separately from timed executions.
func RecordNode(node string, durationMs float64, skipped bool) {
	if skipped {
		NodeSkipped.WithLabelValues(node).Inc()
		return
	}
	NodeDuration.WithLabelValues(node).Observe(durationMs)
}

// RecordAgentInvocation records one fan-out agent invocation's outcome,
// duration, and (on success) confidence.
func RecordAgentInvocation(agentName, outcome string, durationMs float64) {
	AgentInvocations.WithLabelValues(agentName, outcome).Inc()
	AgentDuration.WithLabelValues(agentName).Observe(durationMs)
}

func RecordAgentSignalConfidence(agentName string, confidence float64) {
	AgentSignalConfidence.WithLabelValues(agentName).Set(confidence)
}

func RecordLLMRequest(agentName string, durationMs float64) {
	LLMRequestDuration.WithLabelValues(agentName).Observe(durationMs)
}

func RecordConsensus(disagreementIndex float64) {
	ConsensusDisagreementIndex.Set(disagreementIndex)
}

func RecordRecommendation(action string) {
	RecommendationsTotal.WithLabelValues(action).Inc()
}

// RecordCacheOperation records one cache lookup outcome for a source.
func RecordCacheOperation(source, state string) {
	CacheOperations.WithLabelValues(source, state).Inc()
}

func RecordProviderFetch(source, provider string, durationMs float64) {
	ProviderFetchDuration.WithLabelValues(source, provider).Observe(durationMs)
}

func RecordProviderError(provider string, err error) {
	ProviderErrors.WithLabelValues(provider, NormalizeProviderError(err)).Inc()
}

func RecordRateLimitDenial(provider string) {
	RateLimitDenials.WithLabelValues(provider).Inc()
}

// UpdateCircuitBreakerStatus sets the gauge for a provider's breaker state:
// 0=closed, 1=half-open, 2=open.
func UpdateCircuitBreakerStatus(provider string, state int) {
	CircuitBreakerStatus.WithLabelValues(provider).Set(float64(state))
}

func RecordCircuitBreakerTrip(provider, reason string) {
	CircuitBreakerTrips.WithLabelValues(provider, NormalizeCircuitBreakerReason(reason)).Inc()
}

func RecordMonitorCycle(outcome string, durationMs float64) {
	MonitorCyclesTotal.WithLabelValues(outcome).Inc()
	if outcome == "completed" {
		MonitorCycleDuration.Observe(durationMs)
	}
}

func UpdateQuotaRemaining(remaining int) {
	QuotaRemaining.Set(float64(remaining))
}

func UpdateAgentAccuracyScore(agentName string, score float64) {
	AgentAccuracyScore.WithLabelValues(agentName).Set(score)
}

func RecordRedisOperation(operation string) {
	RedisOperations.WithLabelValues(operation).Inc()
}

func RecordAuditLog(eventType string, success bool, durationMs float64) {
	status := "success"
	if !success {
		status = "failure"
	}
	AuditLogOperations.WithLabelValues(eventType, status).Inc()
	AuditLogLatency.Observe(durationMs)
}

// RecordVaultCacheHit counts a Vault secret read served from the in-process cache.
func RecordVaultCacheHit() {
	VaultCacheHits.Inc()
}

// RecordVaultCacheMiss counts a Vault secret read that required a round trip to Vault.
func RecordVaultCacheMiss() {
	VaultCacheMisses.Inc()
}

// UpdateVaultCacheSize sets the current number of entries held in the Vault secret cache.
func UpdateVaultCacheSize(count int) {
	VaultCacheSize.Set(float64(count))
}

// RecordVaultRequest records one Vault request's duration and outcome.
func RecordVaultRequest(durationMs float64, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	VaultRequestsTotal.WithLabelValues(outcome).Inc()
	VaultRequestDuration.Observe(durationMs)
}
