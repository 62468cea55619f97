package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	NATS         NATSConfig         `mapstructure:"nats"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Market       MarketConfig       `mapstructure:"market"`
	Graph        GraphConfig        `mapstructure:"graph"`
	Agents       AgentHarnessConfig `mapstructure:"agents"`
	ExternalData ExternalDataConfig `mapstructure:"external_data"`
	Fusion       FusionConfig       `mapstructure:"fusion"`
	Monitor      MonitorConfig      `mapstructure:"monitor"`
	Performance  PerformanceConfig  `mapstructure:"performance"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
}

// DatabaseConfig contains PostgreSQL/TimescaleDB settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings, used for the graph checkpointer.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig contains NATS messaging settings for telemetry event publication.
type NATSConfig struct {
	URL             string `mapstructure:"url"`
	EnableJetStream bool   `mapstructure:"enable_jetstream"`
}

// LLMConfig contains LLM gateway settings shared by every intelligence agent.
type LLMConfig struct {
	Gateway       string  `mapstructure:"gateway"`        // "bifrost"
	Endpoint      string  `mapstructure:"endpoint"`       // "http://localhost:8080/v1/chat/completions"
	PrimaryModel  string  `mapstructure:"primary_model"`  // "claude-sonnet-4-20250514"
	FallbackModel string  `mapstructure:"fallback_model"` // "gpt-4-turbo"
	Temperature   float64 `mapstructure:"temperature"`    // 0.7
	MaxTokens     int     `mapstructure:"max_tokens"`     // 2000
	EnableCaching bool    `mapstructure:"enable_caching"` // true
	Timeout       int     `mapstructure:"timeout"`        // 30000 (ms)
}

// MarketConfig contains settings for the prediction-market client (Polymarket
// or an equivalent binary-outcome market API).
type MarketConfig struct {
	BaseURL        string   `mapstructure:"base_url"`
	PollIntervalMs int      `mapstructure:"poll_interval_ms"`
	WatchedMarkets []string `mapstructure:"watched_markets"` // condition IDs
}

// GraphConfig contains settings for the checkpointable dataflow graph.
type GraphConfig struct {
	RecursionLimit  int `mapstructure:"recursion_limit"`  // 25
	CheckpointTTLHr int `mapstructure:"checkpoint_ttl_hr"` // hours a Redis checkpoint is retained
}

// AgentHarnessConfig contains settings for the parallel agent fan-out.
type AgentHarnessConfig struct {
	TimeoutMs         int `mapstructure:"timeout_ms"`          // per-agent timeout, default 15000
	MinAgentsRequired int `mapstructure:"min_agents_required"` // minimum successful agents for consensus to proceed
}

// ExternalDataConfig contains settings for the multi-provider cache, rate
// limiter, circuit breaker, and retry policy of the external-data layer.
type ExternalDataConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig contains settings for one external data provider.
type ProviderConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	TTLSeconds      int           `mapstructure:"ttl_seconds"`
	StaleTTLSeconds int           `mapstructure:"stale_ttl_seconds"`
	MaxCacheSize    int           `mapstructure:"max_cache_size"`
	EvictionPolicy  string        `mapstructure:"eviction_policy"` // lru, lfu, ttl
	RateLimit       RateLimitSpec `mapstructure:"rate_limit"`
	CircuitBreaker  BreakerSpec   `mapstructure:"circuit_breaker"`
	Retry           RetrySpec     `mapstructure:"retry"`
}

// RateLimitSpec configures the token bucket fronting a provider.
type RateLimitSpec struct {
	Capacity       int     `mapstructure:"capacity"`
	RefillPerSec   float64 `mapstructure:"refill_per_sec"`
	SoftThrottleAt float64 `mapstructure:"soft_throttle_at"` // fraction of capacity that triggers buffering
}

// BreakerSpec configures the circuit breaker fronting a provider.
type BreakerSpec struct {
	MaxFailures  uint32        `mapstructure:"max_failures"`
	OpenTimeout  time.Duration `mapstructure:"open_timeout"`
	HalfOpenReqs uint32        `mapstructure:"half_open_requests"`
}

// RetrySpec configures exponential backoff with jitter for provider fetches.
type RetrySpec struct {
	MaxAttempts  int `mapstructure:"max_attempts"`
	BaseDelayMs  int `mapstructure:"base_delay_ms"`
	MaxDelayMs   int `mapstructure:"max_delay_ms"`
}

// FusionConfig contains settings for trust-weighted signal fusion and the
// recommendation edge gate.
type FusionConfig struct {
	MinEdgeThreshold          float64 `mapstructure:"min_edge_threshold"`
	BasePerformanceBias       float64 `mapstructure:"base_performance_bias"`
	ContextBonus              float64 `mapstructure:"context_bonus"`
	ConflictThreshold         float64 `mapstructure:"conflict_threshold"`
	HighDisagreementThreshold float64 `mapstructure:"high_disagreement_threshold"`
	SignalConfidenceThreshold float64 `mapstructure:"signal_confidence_threshold"`
	TopKDrivers               int     `mapstructure:"top_k_drivers"`
}

// MonitorConfig contains settings for the non-overlapping monitor cycle.
type MonitorConfig struct {
	IntervalSeconds  int `mapstructure:"interval_seconds"`
	DailyQuotaBudget int `mapstructure:"daily_quota_budget"`
}

// PerformanceConfig contains settings for agent accuracy tracking.
type PerformanceConfig struct {
	MinSampleSize int     `mapstructure:"min_sample_size"`
	EMAFactor     float64 `mapstructure:"ema_factor"`
}

// MonitoringConfig contains monitoring settings.
type MonitoringConfig struct {
	PrometheusPort          int  `mapstructure:"prometheus_port"`
	EnableMetrics           bool `mapstructure:"enable_metrics"`
	EnableAuditLog          bool `mapstructure:"enable_audit_log"`
	MetricsUpdateIntervalSec int `mapstructure:"metrics_update_interval_seconds"`
}

// GetMetricsUpdateInterval returns the gauge refresh interval as a Duration.
func (c *MonitoringConfig) GetMetricsUpdateInterval() time.Duration {
	return time.Duration(c.MetricsUpdateIntervalSec) * time.Second
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("MARKETORACLE")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "MarketOracle")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "marketoracle")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enable_jetstream", true)

	v.SetDefault("llm.gateway", "bifrost")
	v.SetDefault("llm.endpoint", "http://localhost:8080/v1/chat/completions")
	v.SetDefault("llm.primary_model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.fallback_model", "gpt-4-turbo")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.enable_caching", true)
	v.SetDefault("llm.timeout", 30000)

	v.SetDefault("market.base_url", "https://clob.polymarket.com")
	v.SetDefault("market.poll_interval_ms", 1800000) // 30 minutes
	v.SetDefault("market.watched_markets", []string{})

	v.SetDefault("graph.recursion_limit", 25)
	v.SetDefault("graph.checkpoint_ttl_hr", 72)

	v.SetDefault("agents.timeout_ms", 15000)
	v.SetDefault("agents.min_agents_required", 6)

	v.SetDefault("external_data.providers.polymarket.base_url", "https://clob.polymarket.com")
	v.SetDefault("external_data.providers.polymarket.ttl_seconds", 60)
	v.SetDefault("external_data.providers.polymarket.stale_ttl_seconds", 300)
	v.SetDefault("external_data.providers.polymarket.max_cache_size", 5000)
	v.SetDefault("external_data.providers.polymarket.eviction_policy", "lru")
	v.SetDefault("external_data.providers.polymarket.rate_limit.capacity", 50)
	v.SetDefault("external_data.providers.polymarket.rate_limit.refill_per_sec", 5.0)
	v.SetDefault("external_data.providers.polymarket.rate_limit.soft_throttle_at", 0.8)
	v.SetDefault("external_data.providers.polymarket.circuit_breaker.max_failures", 5)
	v.SetDefault("external_data.providers.polymarket.circuit_breaker.open_timeout", 30*time.Second)
	v.SetDefault("external_data.providers.polymarket.circuit_breaker.half_open_requests", 2)
	v.SetDefault("external_data.providers.polymarket.retry.max_attempts", 3)
	v.SetDefault("external_data.providers.polymarket.retry.base_delay_ms", 200)
	v.SetDefault("external_data.providers.polymarket.retry.max_delay_ms", 5000)

	v.SetDefault("external_data.providers.news.base_url", "https://newsapi.org/v2")
	v.SetDefault("external_data.providers.news.ttl_seconds", 300)
	v.SetDefault("external_data.providers.news.stale_ttl_seconds", 900)
	v.SetDefault("external_data.providers.news.max_cache_size", 2000)
	v.SetDefault("external_data.providers.news.eviction_policy", "lfu")
	v.SetDefault("external_data.providers.news.rate_limit.capacity", 20)
	v.SetDefault("external_data.providers.news.rate_limit.refill_per_sec", 1.0)
	v.SetDefault("external_data.providers.news.rate_limit.soft_throttle_at", 0.7)
	v.SetDefault("external_data.providers.news.circuit_breaker.max_failures", 5)
	v.SetDefault("external_data.providers.news.circuit_breaker.open_timeout", 60*time.Second)
	v.SetDefault("external_data.providers.news.circuit_breaker.half_open_requests", 1)
	v.SetDefault("external_data.providers.news.retry.max_attempts", 3)
	v.SetDefault("external_data.providers.news.retry.base_delay_ms", 500)
	v.SetDefault("external_data.providers.news.retry.max_delay_ms", 8000)

	v.SetDefault("external_data.providers.polling.base_url", "https://api.538.com")
	v.SetDefault("external_data.providers.polling.ttl_seconds", 1800)
	v.SetDefault("external_data.providers.polling.stale_ttl_seconds", 3600)
	v.SetDefault("external_data.providers.polling.max_cache_size", 1000)
	v.SetDefault("external_data.providers.polling.eviction_policy", "ttl")
	v.SetDefault("external_data.providers.polling.rate_limit.capacity", 10)
	v.SetDefault("external_data.providers.polling.rate_limit.refill_per_sec", 0.5)
	v.SetDefault("external_data.providers.polling.rate_limit.soft_throttle_at", 0.6)
	v.SetDefault("external_data.providers.polling.circuit_breaker.max_failures", 3)
	v.SetDefault("external_data.providers.polling.circuit_breaker.open_timeout", 120*time.Second)
	v.SetDefault("external_data.providers.polling.circuit_breaker.half_open_requests", 1)
	v.SetDefault("external_data.providers.polling.retry.max_attempts", 2)
	v.SetDefault("external_data.providers.polling.retry.base_delay_ms", 1000)
	v.SetDefault("external_data.providers.polling.retry.max_delay_ms", 10000)

	v.SetDefault("fusion.min_edge_threshold", 0.03)
	v.SetDefault("fusion.base_performance_bias", 1.0)
	v.SetDefault("fusion.context_bonus", 0.1)
	v.SetDefault("fusion.conflict_threshold", 0.1)
	v.SetDefault("fusion.high_disagreement_threshold", 0.3)
	v.SetDefault("fusion.signal_confidence_threshold", 0.5)
	v.SetDefault("fusion.top_k_drivers", 3)

	v.SetDefault("monitor.interval_seconds", 1800)
	v.SetDefault("monitor.daily_quota_budget", 500)

	v.SetDefault("performance.min_sample_size", 10)
	v.SetDefault("performance.ema_factor", 0.1)

	v.SetDefault("monitoring.prometheus_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.enable_audit_log", true)
	v.SetDefault("monitoring.metrics_update_interval_seconds", 30)
}

// Note: comprehensive validation lives in validation.go; Config.Validate()
// is called from Load().

// GetDSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetTimeout returns the LLM timeout as time.Duration.
func (c *LLMConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// GetTimeout returns the per-agent harness timeout as time.Duration.
func (c *AgentHarnessConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// GetInterval returns the monitor cycle interval as time.Duration.
func (c *MonitorConfig) GetInterval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}
