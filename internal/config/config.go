// Package config loads and validates auditor configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig          `mapstructure:"server"`
	Auth    AuthConfig            `mapstructure:"auth"`
	Fetch   FetchConfig           `mapstructure:"fetch"`
	Worker  WorkerConfig          `mapstructure:"worker"`
	Quota   QuotaConfig           `mapstructure:"quota"`
	Storage StorageConfig         `mapstructure:"storage"`
	DB      DBConfig              `mapstructure:"db"`
	PubSub  PubSubConfig          `mapstructure:"pubsub"`
	Logging LoggingConfig         `mapstructure:"logging"`
	Tiers   map[string]TierConfig `mapstructure:"tiers"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// FetchConfig governs page fetch behavior.
type FetchConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// WorkerConfig governs the audit execution pool.
type WorkerConfig struct {
	Concurrency   int `mapstructure:"concurrency"`
	QueueDepth    int `mapstructure:"queue_depth"`
	CompetitorCap int `mapstructure:"competitor_cap"`
}

// QuotaConfig tunes usage alerting.
type QuotaConfig struct {
	AlertThresholdPct int `mapstructure:"alert_threshold_pct"`
	AlertCooldownHrs  int `mapstructure:"alert_cooldown_hours"`
}

// StorageConfig sets paths and content types for blob persistence. GCSBucket
// takes precedence over LocalDir when both are set.
type StorageConfig struct {
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// PubSubConfig holds metadata for queueing and completion events.
type PubSubConfig struct {
	ProjectID        string `mapstructure:"project_id"`
	TopicName        string `mapstructure:"topic_name"`
	SubscriptionName string `mapstructure:"subscription_name"`
	EventsTopic      string `mapstructure:"events_topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TierConfig describes a subscription tier's per-period limits.
type TierConfig struct {
	AuditLimit int `mapstructure:"audit_limit"`
	TokenLimit int `mapstructure:"token_limit"`
	PriceCents int `mapstructure:"price_cents"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUDITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.user_agent", "rankpilot-auditor/0.1")
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queue_depth", 64)
	v.SetDefault("worker.competitor_cap", 3)
	v.SetDefault("quota.alert_threshold_pct", 90)
	v.SetDefault("quota.alert_cooldown_hours", 24)
	v.SetDefault("storage.prefix", "pages")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("logging.development", true)

	v.SetDefault("tiers.free.audit_limit", 5)
	v.SetDefault("tiers.free.token_limit", 10000)
	v.SetDefault("tiers.free.price_cents", 0)
	v.SetDefault("tiers.starter.audit_limit", 50)
	v.SetDefault("tiers.starter.token_limit", 100000)
	v.SetDefault("tiers.starter.price_cents", 2000)
	v.SetDefault("tiers.pro.audit_limit", 200)
	v.SetDefault("tiers.pro.token_limit", 500000)
	v.SetDefault("tiers.pro.price_cents", 4500)
	v.SetDefault("tiers.enterprise.audit_limit", 1000)
	v.SetDefault("tiers.enterprise.token_limit", 5000000)
	v.SetDefault("tiers.enterprise.price_cents", 10000)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0")
	}
	if c.Worker.CompetitorCap <= 0 {
		return fmt.Errorf("worker.competitor_cap must be > 0")
	}
	if c.Quota.AlertThresholdPct <= 0 || c.Quota.AlertThresholdPct > 100 {
		return fmt.Errorf("quota.alert_threshold_pct must be in (0, 100]")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	for name, tier := range c.Tiers {
		if tier.AuditLimit <= 0 || tier.TokenLimit <= 0 {
			return fmt.Errorf("tiers.%s limits must be > 0", name)
		}
	}
	return nil
}

// FetchTimeout converts the configured fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// AlertCooldown converts the configured cooldown into a duration.
func (c Config) AlertCooldown() time.Duration {
	return time.Duration(c.Quota.AlertCooldownHrs) * time.Hour
}
