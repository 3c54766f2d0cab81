// Package config loads and validates the engine's configuration, grouped
// per §6 of the specification (Pipeline, Profit, Risk, Cache, Protection,
// Learning, Providers, Alerts), the way cryptofunk/internal/config does it:
// a single viper.Viper instance, mapstructure-tagged struct, environment
// override prefix, defaults, and a Validate pass.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the single structured configuration object loaded at startup
// and replaceable atomically on a control-surface reload.
type Config struct {
	Pipeline   PipelineConfig            `mapstructure:"pipeline"`
	Profit     ProfitConfig              `mapstructure:"profit"`
	Risk       RiskConfig                `mapstructure:"risk"`
	Cache      CacheConfig               `mapstructure:"cache"`
	Protection ProtectionConfig          `mapstructure:"protection"`
	Learning   LearningConfig            `mapstructure:"learning"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Alerts     AlertsConfig              `mapstructure:"alerts"`
	Store      StoreConfig               `mapstructure:"store"`
	Control    ControlConfig             `mapstructure:"control"`
	Vault      VaultConfig               `mapstructure:"vault"`
	Events     EventsConfig              `mapstructure:"events"`
}

type PipelineConfig struct {
	TickPeriodMs            int `mapstructure:"tick_period_ms"`
	MaxCandidatesPerTick    int `mapstructure:"max_candidates_per_tick"`
	MaxConcurrentExecutions int `mapstructure:"max_concurrent_executions"`
}

type ProfitConfig struct {
	MinProfitBps      int     `mapstructure:"min_profit_bps"`
	MinProfitAbsolute float64 `mapstructure:"min_profit_absolute"`
}

type RiskConfig struct {
	RiskTolerance  float64 `mapstructure:"risk_tolerance"`
	MaxSlippageBps int     `mapstructure:"max_slippage_bps"`
}

type CacheConfig struct {
	QuoteTTLMajorMs     int `mapstructure:"quote_ttl_major_ms"`
	QuoteTTLOtherMs     int `mapstructure:"quote_ttl_other_ms"`
	ConsistencyWindowMs int `mapstructure:"consistency_window_ms"`
}

type ProtectionConfig struct {
	BundleBaseTip          float64 `mapstructure:"bundle_base_tip"`
	BundleMaxWaitMs        int     `mapstructure:"bundle_max_wait_ms"`
	BundleMinSpacingMs     int     `mapstructure:"bundle_min_spacing_ms"`
	MaxProtectionCostRatio float64 `mapstructure:"max_protection_cost_ratio"`
}

type LearningConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	LearningRate        float64 `mapstructure:"learning_rate"`
	LearningCadence     int     `mapstructure:"learning_cadence"`
	MinTrainingSamples  int     `mapstructure:"min_training_samples"`
}

type ProviderConfig struct {
	Endpoint      string      `mapstructure:"endpoint"`
	Family        string      `mapstructure:"family"` // aggregator | spot | pool_scanner
	RateLimits    RateLimits  `mapstructure:"rate_limits"`
	RetryPolicy   RetryPolicy `mapstructure:"retry_policy"`
	FallbackChain []string    `mapstructure:"fallback_chain"`
	TimeoutMs     int         `mapstructure:"timeout_ms"`
	APIKeyEnv     string      `mapstructure:"api_key_env"`
	MaxConcurrent int         `mapstructure:"max_concurrent_requests"`
}

type RateLimits struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	Burst             int     `mapstructure:"burst"`
}

type RetryPolicy struct {
	BaseDelayMs       int     `mapstructure:"base_delay_ms"`
	ExponentialFactor float64 `mapstructure:"exponential_factor"`
	JitterRangeMs     int     `mapstructure:"jitter_range_ms"`
	MaxRetries        int     `mapstructure:"max_retries"`
	DegradeAfter      int     `mapstructure:"degrade_after_failures"`
	CooldownMs        int     `mapstructure:"cooldown_ms"`
}

type AlertsConfig struct {
	MinSuccessRate         float64 `mapstructure:"min_success_rate"`
	MaxExecMs              int     `mapstructure:"max_exec_ms"`
	MaxFailedPerMin        int     `mapstructure:"max_failed_per_min"`
	MinOpportunitiesPerMin int     `mapstructure:"min_opportunities_per_min"`
	TelegramBotToken       string  `mapstructure:"telegram_bot_token"`
	TelegramChatID         int64   `mapstructure:"telegram_chat_id"`
}

type StoreConfig struct {
	DatabaseURL   string `mapstructure:"database_url"`
	RingSize      int    `mapstructure:"ring_size"`
	SnapshotEvery int    `mapstructure:"snapshot_every"`
	S3Bucket      string `mapstructure:"s3_bucket"`
	S3Prefix      string `mapstructure:"s3_prefix"`
}

type ControlConfig struct {
	ListenAddr  string `mapstructure:"listen_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// EventsConfig configures the cross-process NATS fan-out bus (C9);
// outside the spec's own documented configuration table, since that
// table only names options the core's own operations read — the bus is
// ambient infrastructure, not a pipeline parameter.
type EventsConfig struct {
	Embed   bool   `mapstructure:"embed"` // run an embedded NATS server instead of dialing NATSURL
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	NATSURL string `mapstructure:"nats_url"`
}

type VaultConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	MountPath  string `mapstructure:"mount_path"`
	SecretPath string `mapstructure:"secret_path"`
}

// Load reads configuration from environment variables prefixed SOLARB_,
// configPath (if non-empty), and built-in defaults, in that precedence
// (viper lets an environment value override the file's value),
// mirroring cryptofunk's viper.New()+SetEnvPrefix+AutomaticEnv pattern.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SOLARB")
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.tick_period_ms", 100)
	v.SetDefault("pipeline.max_candidates_per_tick", 64)
	v.SetDefault("pipeline.max_concurrent_executions", 5)

	v.SetDefault("profit.min_profit_bps", 50)
	v.SetDefault("profit.min_profit_absolute", 0.0)

	v.SetDefault("risk.risk_tolerance", 0.02)
	v.SetDefault("risk.max_slippage_bps", 100)

	v.SetDefault("cache.quote_ttl_major_ms", 30_000)
	v.SetDefault("cache.quote_ttl_other_ms", 10_000)
	v.SetDefault("cache.consistency_window_ms", 500)

	v.SetDefault("protection.bundle_base_tip", 10_000.0)
	v.SetDefault("protection.bundle_max_wait_ms", 10_000)
	v.SetDefault("protection.bundle_min_spacing_ms", 2_000)
	v.SetDefault("protection.max_protection_cost_ratio", 0.5)

	v.SetDefault("learning.confidence_threshold", 0.85)
	v.SetDefault("learning.learning_rate", 0.001)
	v.SetDefault("learning.learning_cadence", 50)
	v.SetDefault("learning.min_training_samples", 200)

	v.SetDefault("alerts.min_success_rate", 0.5)
	v.SetDefault("alerts.max_exec_ms", 8_000)
	v.SetDefault("alerts.max_failed_per_min", 10)
	v.SetDefault("alerts.min_opportunities_per_min", 1)

	v.SetDefault("store.ring_size", 10_000)
	v.SetDefault("store.snapshot_every", 50)

	v.SetDefault("control.listen_addr", "127.0.0.1:7878")
	v.SetDefault("control.metrics_addr", "127.0.0.1:9090")

	v.SetDefault("vault.mount_path", "secret")
	v.SetDefault("vault.secret_path", "solarb/production")

	v.SetDefault("events.embed", true)
	v.SetDefault("events.host", "127.0.0.1")
	v.SetDefault("events.port", 4222)
}

// TickPeriod converts the millisecond field viper unmarshals into a
// time.Duration at call sites, keeping the mapstructure-facing field a
// plain int (matching the teacher's config shape).
func (c PipelineConfig) TickPeriod() time.Duration {
	return time.Duration(c.TickPeriodMs) * time.Millisecond
}
