package externaldata

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"

	"github.com/ajitpratap0/marketoracle/internal/alerts"
)

var (
	breakerMetrics     *breakerMetricsSet
	breakerMetricsOnce sync.Once
)

type breakerMetricsSet struct {
	state *prometheus.GaugeVec
}

func initBreakerMetrics() {
	breakerMetricsOnce.Do(func() {
		breakerMetrics = &breakerMetricsSet{
			state: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "external_data_circuit_breaker_state",
					Help: "External data provider circuit breaker state (0=closed, 1=half_open, 2=open)",
				},
				[]string{"provider"},
			),
		}
	})
}

// BreakerSpec configures a provider's circuit breaker, mirroring
// config.BreakerSpec.
type BreakerSpec struct {
	MaxFailures  uint32
	OpenTimeout  time.Duration
	HalfOpenReqs uint32
}

// NewBreaker returns a gobreaker.CircuitBreaker for one provider, following
// the same consecutive-failure-count ReadyToTrip used by
// internal/risk.CircuitBreakerManager, generalized to an arbitrary provider
// name instead of the fixed exchange/llm/database trio.
func NewBreaker(provider string, spec BreakerSpec) *gobreaker.CircuitBreaker {
	initBreakerMetrics()

	var lastCounts gobreaker.Counts

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: spec.HalfOpenReqs,
		Timeout:     spec.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			lastCounts = counts
			return counts.ConsecutiveFailures >= spec.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerMetrics.state.WithLabelValues(name).Set(stateValue(to))
			if to == gobreaker.StateOpen {
				ratio := 1.0
				if lastCounts.Requests > 0 {
					ratio = float64(lastCounts.TotalFailures) / float64(lastCounts.Requests)
				}
				alerts.AlertCircuitBreakerOpen(context.Background(), name, ratio)
			}
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}
