// Package config provides configuration management for MarketOracle.
// This file centralizes all port constants to avoid duplication and ensure consistency.
package config

// ============================================================================
// CENTRALIZED PORT CONFIGURATION
// ============================================================================
//
// This file defines all ports used by MarketOracle services.
// Update this file when adding new services or changing port assignments.
//
// Port Allocation Strategy:
//   8080-8099: API/health servers
//   8200-8299: Infrastructure services (Vault, etc.)
//   9100-9199: Prometheus metrics endpoints
//
// ============================================================================

// Service Ports
const (
	// HealthServerPort is the port for the process's liveness/readiness endpoint.
	HealthServerPort = 8080

	// VaultPort is the default port for HashiCorp Vault.
	VaultPort = 8200

	// PostgresPort is the default port for PostgreSQL.
	PostgresPort = 5432

	// RedisPort is the default port for Redis.
	RedisPort = 6379

	// NATSPort is the default port for NATS messaging.
	NATSPort = 4222
)

// Monitoring Service Ports
const (
	// MetricsPort is the Prometheus scrape port for the single marketoracle
	// process. All ten intelligence agents, the graph, and the monitor run
	// in this one process and share this one port — there is no longer a
	// port-per-agent allocation.
	MetricsPort = 9100

	// PrometheusPort is the default port for Prometheus.
	PrometheusPort = 9090

	// GrafanaPort is the default port for Grafana.
	GrafanaPort = 3000

	// NATSExporterPort is the port for the NATS Prometheus exporter.
	NATSExporterPort = 7777
)
