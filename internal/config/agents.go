package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// AgentConfig holds configuration for the ten intelligence agents that run
// inside a single graph-run process, and how their signals are orchestrated
// into a consensus.
type AgentConfig struct {
	Global        GlobalAgentConfig            `mapstructure:"global"`
	Intelligence  map[string]IntelligenceAgent `mapstructure:"intelligence_agents"`
	Orchestration AgentOrchestrationConfig     `mapstructure:"orchestration"`
	Communication CommunicationConfig          `mapstructure:"communication"`
	Logging       LoggingConfig                `mapstructure:"logging"`
}

// GlobalAgentConfig contains settings that apply to every intelligence agent.
type GlobalAgentConfig struct {
	DefaultConfidenceThreshold float64 `mapstructure:"default_confidence_threshold"`
	EnableMetrics              bool    `mapstructure:"enable_metrics"`
	MetricsPort                int     `mapstructure:"metrics_port"`
}

// IntelligenceAgent represents one named agent in the fan-out Registry.
type IntelligenceAgent struct {
	Enabled       bool                   `mapstructure:"enabled"`
	Name          string                 `mapstructure:"name"`
	Model         string                 `mapstructure:"model"`
	BaseWeight    float64                `mapstructure:"base_weight"`
	PromptVersion string                 `mapstructure:"prompt_version"`
	Config        map[string]interface{} `mapstructure:"config"`
}

// AgentOrchestrationConfig defines how the ten agent signals are fused.
type AgentOrchestrationConfig struct {
	Fusion       FusionWeightingConfig    `mapstructure:"fusion"`
	LLMReasoning LLMReasoningConfig       `mapstructure:"llm_reasoning"`
	Coordination CoordinationConfig      `mapstructure:"coordination"`
	Performance  AgentPerformanceConfig  `mapstructure:"performance"`
}

// FusionWeightingConfig defines the trust-weighted fusion mechanism.
type FusionWeightingConfig struct {
	Enabled  bool    `mapstructure:"enabled"`
	Method   string  `mapstructure:"method"` // "trust_weighted"
	MinVotes int     `mapstructure:"min_votes"`
	Quorum   float64 `mapstructure:"quorum"`
}

// LLMReasoningConfig defines LLM-based reasoning shared by every agent.
type LLMReasoningConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Model          string  `mapstructure:"model"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
	PromptTemplate string  `mapstructure:"prompt_template"`
}

// CoordinationConfig defines cross-agent coordination in the graph.
type CoordinationConfig struct {
	BroadcastSignals bool   `mapstructure:"broadcast_signals"`
	SignalExpiry     string `mapstructure:"signal_expiry"`
	EnableLearning   bool   `mapstructure:"enable_learning"`
}

// AgentPerformanceConfig defines per-agent performance tracking used by
// trust-weighted fusion.
type AgentPerformanceConfig struct {
	TrackAgentAccuracy bool `mapstructure:"track_agent_accuracy"`
	AdjustWeights      bool `mapstructure:"adjust_weights"`
	MinSampleSize      int  `mapstructure:"min_sample_size"`
}

// CommunicationConfig defines inter-agent/telemetry communication.
type CommunicationConfig struct {
	NATS NATSCommunicationConfig `mapstructure:"nats"`
}

// NATSCommunicationConfig defines NATS subjects and retention.
type NATSCommunicationConfig struct {
	Topics    NATSTopics    `mapstructure:"topics"`
	Retention NATSRetention `mapstructure:"retention"`
}

// NATSTopics defines subject names for different telemetry/event types.
type NATSTopics struct {
	AgentSignals      string `mapstructure:"agent_signals"`
	ThesisRecords     string `mapstructure:"thesis_records"`
	ConsensusResults  string `mapstructure:"consensus_results"`
	TradeRecommendations string `mapstructure:"trade_recommendations"`
	ProviderFetches   string `mapstructure:"provider_fetches"`
	AgentHeartbeat    string `mapstructure:"agent_heartbeat"`
	AgentErrors       string `mapstructure:"agent_errors"`
}

// NATSRetention defines message retention policies.
type NATSRetention struct {
	Signals   string `mapstructure:"signals"`
	Decisions string `mapstructure:"decisions"`
	Heartbeat string `mapstructure:"heartbeat"`
}

// LoggingConfig defines agent logging settings.
type LoggingConfig struct {
	Level       string            `mapstructure:"level"`
	Format      string            `mapstructure:"format"`
	Output      string            `mapstructure:"output"`
	AgentLevels map[string]string `mapstructure:"agent_levels"`
}

// LoadAgentConfig loads agent configuration from file.
func LoadAgentConfig(configPath string) (*AgentConfig, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("agents")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	setAgentDefaults(v)

	v.SetEnvPrefix("MARKETORACLE_AGENT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read agent config: %w", err)
	}

	var cfg AgentConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent config: %w", err)
	}

	return &cfg, nil
}

// setAgentDefaults sets default agent configuration values.
func setAgentDefaults(v *viper.Viper) {
	v.SetDefault("global.default_confidence_threshold", 0.6)
	v.SetDefault("global.enable_metrics", true)
	v.SetDefault("global.metrics_port", 9101)

	agents := []string{
		"market_microstructure",
		"probability_baseline",
		"risk_assessment",
		"breaking_news",
		"event_impact",
		"social_sentiment",
		"narrative_velocity",
		"polling_statistical",
		"price_action",
		"risk_philosophy",
	}
	for _, a := range agents {
		v.SetDefault(fmt.Sprintf("intelligence_agents.%s.enabled", a), true)
		v.SetDefault(fmt.Sprintf("intelligence_agents.%s.base_weight", a), 1.0)
		v.SetDefault(fmt.Sprintf("intelligence_agents.%s.prompt_version", a), "v1")
	}

	v.SetDefault("orchestration.fusion.enabled", true)
	v.SetDefault("orchestration.fusion.method", "trust_weighted")
	v.SetDefault("orchestration.fusion.min_votes", 6)
	v.SetDefault("orchestration.fusion.quorum", 0.6)

	v.SetDefault("orchestration.llm_reasoning.enabled", true)
	v.SetDefault("orchestration.llm_reasoning.model", "claude-sonnet-4-20250514")
	v.SetDefault("orchestration.llm_reasoning.max_tokens", 2000)
	v.SetDefault("orchestration.llm_reasoning.temperature", 0.7)
	v.SetDefault("orchestration.llm_reasoning.prompt_template", "templates/agent_decision.txt")

	v.SetDefault("orchestration.coordination.broadcast_signals", true)
	v.SetDefault("orchestration.coordination.signal_expiry", "5m")
	v.SetDefault("orchestration.coordination.enable_learning", false)

	v.SetDefault("orchestration.performance.track_agent_accuracy", true)
	v.SetDefault("orchestration.performance.adjust_weights", true)
	v.SetDefault("orchestration.performance.min_sample_size", 10)

	v.SetDefault("communication.nats.topics.agent_signals", "agents.intelligence.signals")
	v.SetDefault("communication.nats.topics.thesis_records", "agents.intelligence.thesis")
	v.SetDefault("communication.nats.topics.consensus_results", "agents.consensus.results")
	v.SetDefault("communication.nats.topics.trade_recommendations", "agents.consensus.recommendations")
	v.SetDefault("communication.nats.topics.provider_fetches", "externaldata.fetches")
	v.SetDefault("communication.nats.topics.agent_heartbeat", "agents.system.heartbeat")
	v.SetDefault("communication.nats.topics.agent_errors", "agents.system.errors")

	v.SetDefault("communication.nats.retention.signals", "1h")
	v.SetDefault("communication.nats.retention.decisions", "24h")
	v.SetDefault("communication.nats.retention.heartbeat", "5m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
}

// GetEnabledAgents returns the names of every enabled intelligence agent.
func (ac *AgentConfig) GetEnabledAgents() []string {
	var enabled []string
	for name, agent := range ac.Intelligence {
		if agent.Enabled {
			enabled = append(enabled, name)
		}
	}
	return enabled
}

// GetSignalExpiry parses the coordination signal expiry string to a duration.
func (ac *AgentConfig) GetSignalExpiry() (time.Duration, error) {
	return time.ParseDuration(ac.Orchestration.Coordination.SignalExpiry)
}
