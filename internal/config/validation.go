package config

import (
	"fmt"
	"os"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

// Validate performs comprehensive configuration validation.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateDatabase()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateNATS()...)
	errors = append(errors, c.validateLLM()...)
	errors = append(errors, c.validateMarket()...)
	errors = append(errors, c.validateGraph()...)
	errors = append(errors, c.validateAgents()...)
	errors = append(errors, c.validateExternalData()...)
	errors = append(errors, c.validateFusion()...)
	errors = append(errors, c.validateMonitor()...)
	errors = append(errors, c.validateEnvironmentRequirements()...)

	if len(errors) > 0 {
		return errors
	}

	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "app.name",
			Message: "Application name is required",
		})
	}

	if c.App.Environment == "" {
		errors = append(errors, ValidationError{
			Field:   "app.environment",
			Message: "Environment is required (development, staging, or production)",
		})
	} else {
		validEnvs := []string{"development", "staging", "production"}
		valid := false
		for _, env := range validEnvs {
			if c.App.Environment == env {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, ValidationError{
				Field:   "app.environment",
				Message: fmt.Sprintf("Invalid environment '%s'. Must be one of: %v", c.App.Environment, validEnvs),
			})
		}
	}

	if c.App.LogLevel == "" {
		errors = append(errors, ValidationError{
			Field:   "app.log_level",
			Message: "Log level is required (debug, info, warn, error)",
		})
	}

	return errors
}

func (c *Config) validateDatabase() ValidationErrors {
	var errors ValidationErrors

	if c.Database.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "database.host",
			Message: "Database host is required",
		})
	}

	if c.Database.Port == 0 {
		errors = append(errors, ValidationError{
			Field:   "database.port",
			Message: "Database port is required",
		})
	} else if c.Database.Port < 1 || c.Database.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "database.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.Database.Port),
		})
	}

	if c.Database.User == "" {
		errors = append(errors, ValidationError{
			Field:   "database.user",
			Message: "Database user is required",
		})
	}

	if c.Database.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "database.database",
			Message: "Database name is required",
		})
	}

	if c.Database.Password == "" && c.App.Environment != "development" {
		errors = append(errors, ValidationError{
			Field:   "database.password",
			Message: "Database password is required in non-development environments",
		})
	}

	if c.Database.PoolSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.pool_size",
			Message: "Database pool size must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateRedis() ValidationErrors {
	var errors ValidationErrors

	if c.Redis.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "redis.host",
			Message: "Redis host is required",
		})
	}

	if c.Redis.Port == 0 {
		errors = append(errors, ValidationError{
			Field:   "redis.port",
			Message: "Redis port is required",
		})
	} else if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "redis.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.Redis.Port),
		})
	}

	return errors
}

func (c *Config) validateNATS() ValidationErrors {
	var errors ValidationErrors

	if c.NATS.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "nats.url",
			Message: "NATS URL is required",
		})
	} else if !strings.HasPrefix(c.NATS.URL, "nats://") {
		errors = append(errors, ValidationError{
			Field:   "nats.url",
			Message: "NATS URL must start with 'nats://'",
		})
	}

	return errors
}

func (c *Config) validateLLM() ValidationErrors {
	var errors ValidationErrors

	if c.LLM.Gateway == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.gateway",
			Message: "LLM gateway is required",
		})
	}

	if c.LLM.Endpoint == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.endpoint",
			Message: "LLM endpoint is required",
		})
	}

	if c.LLM.PrimaryModel == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.primary_model",
			Message: "LLM primary model is required",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: fmt.Sprintf("Invalid temperature %.2f. Must be between 0-2", c.LLM.Temperature),
		})
	}

	if c.LLM.MaxTokens < 1 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "LLM max_tokens must be at least 1",
		})
	}

	if c.LLM.Timeout < 1000 {
		errors = append(errors, ValidationError{
			Field:   "llm.timeout",
			Message: "LLM timeout must be at least 1000ms",
		})
	}

	return errors
}

func (c *Config) validateMarket() ValidationErrors {
	var errors ValidationErrors

	if c.Market.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "market.base_url",
			Message: "Market client base URL is required",
		})
	}

	if c.Market.PollIntervalMs < 1000 {
		errors = append(errors, ValidationError{
			Field:   "market.poll_interval_ms",
			Message: "Market poll interval must be at least 1000ms",
		})
	}

	return errors
}

func (c *Config) validateGraph() ValidationErrors {
	var errors ValidationErrors

	if c.Graph.RecursionLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "graph.recursion_limit",
			Message: "Graph recursion limit must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateAgents() ValidationErrors {
	var errors ValidationErrors

	if c.Agents.TimeoutMs < 1000 {
		errors = append(errors, ValidationError{
			Field:   "agents.timeout_ms",
			Message: "Agent timeout must be at least 1000ms",
		})
	}

	if c.Agents.MinAgentsRequired < 1 {
		errors = append(errors, ValidationError{
			Field:   "agents.min_agents_required",
			Message: "At least one agent must be required for a consensus to proceed",
		})
	}

	return errors
}

func (c *Config) validateExternalData() ValidationErrors {
	var errors ValidationErrors

	if len(c.ExternalData.Providers) == 0 {
		errors = append(errors, ValidationError{
			Field:   "external_data.providers",
			Message: "At least one external data provider must be configured",
		})
	}

	for name, p := range c.ExternalData.Providers {
		if p.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("external_data.providers.%s.base_url", name),
				Message: "Provider base URL is required",
			})
		}
		if p.TTLSeconds < 1 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("external_data.providers.%s.ttl_seconds", name),
				Message: "Provider cache TTL must be at least 1 second",
			})
		}
		if p.StaleTTLSeconds < p.TTLSeconds {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("external_data.providers.%s.stale_ttl_seconds", name),
				Message: "Stale TTL must be greater than or equal to the fresh TTL",
			})
		}
		validPolicies := []string{"lru", "lfu", "ttl"}
		valid := false
		for _, vp := range validPolicies {
			if p.EvictionPolicy == vp {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("external_data.providers.%s.eviction_policy", name),
				Message: fmt.Sprintf("Invalid eviction policy '%s'. Must be one of: %v", p.EvictionPolicy, validPolicies),
			})
		}
	}

	return errors
}

func (c *Config) validateFusion() ValidationErrors {
	var errors ValidationErrors

	if c.Fusion.MinEdgeThreshold < 0 || c.Fusion.MinEdgeThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "fusion.min_edge_threshold",
			Message: fmt.Sprintf("Invalid min_edge_threshold %.2f. Must be between 0-1", c.Fusion.MinEdgeThreshold),
		})
	}

	return errors
}

func (c *Config) validateMonitor() ValidationErrors {
	var errors ValidationErrors

	if c.Monitor.IntervalSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "monitor.interval_seconds",
			Message: "Monitor interval must be at least 1 second",
		})
	}

	if c.Monitor.DailyQuotaBudget < 1 {
		errors = append(errors, ValidationError{
			Field:   "monitor.daily_quota_budget",
			Message: "Monitor daily quota budget must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateEnvironmentRequirements() ValidationErrors {
	var errors ValidationErrors

	if c.App.Environment == "production" {
		secretErrors := ValidateProductionSecrets(c)
		errors = append(errors, secretErrors...)

		if c.Database.SSLMode == "disable" {
			errors = append(errors, ValidationError{
				Field:   "database.ssl_mode",
				Message: "SSL must be enabled for database in production",
			})
		}
	}

	criticalEnvVars := []string{
		"DATABASE_URL",
	}

	for _, envVar := range criticalEnvVars {
		if os.Getenv(envVar) == "" && c.App.Environment == "production" {
			if envVar == "DATABASE_URL" {
				if c.Database.Host != "" && c.Database.Database != "" {
					continue
				}
			}

			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("env.%s", envVar),
				Message: fmt.Sprintf("Environment variable %s is required in production", envVar),
			})
		}
	}

	return errors
}

// ValidateAndLoad loads and validates configuration.
func ValidateAndLoad(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
