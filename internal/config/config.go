// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs, loaded from an optional YAML file
// and BANGERTREE_* environment variables.
type Config struct {
	Bluesky   BlueskyConfig   `mapstructure:"bluesky"`
	DB        DBConfig        `mapstructure:"db"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// BlueskyConfig configures the API gateway. Handle and AppPassword are
// optional; without them the crawler runs unauthenticated under the public
// rate limits.
type BlueskyConfig struct {
	APIBase          string  `mapstructure:"api_base"`
	AuthBase         string  `mapstructure:"auth_base"`
	Handle           string  `mapstructure:"handle"`
	AppPassword      string  `mapstructure:"app_password"`
	PageSize         int     `mapstructure:"page_size"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	MaxRetries       int     `mapstructure:"max_retries"`
	BackoffInitialMs int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int     `mapstructure:"backoff_max_ms"`
	RPS              float64 `mapstructure:"rps"`
	Burst            int     `mapstructure:"burst"`
}

// DBConfig controls access to the Postgres post store.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// CrawlConfig governs traversal limits.
type CrawlConfig struct {
	MaxDepthDefault int `mapstructure:"max_depth_default"`
	MaxTraceHops    int `mapstructure:"max_trace_hops"`
}

// TelemetryConfig controls the optional metrics endpoint.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// PubSubConfig configures optional new-post notifications. Both fields empty
// disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. path may be empty, in which
// case only defaults and environment variables apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BANGERTREE")
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
	v.SetDefault("bluesky.api_base", "https://public.api.bsky.app")
	v.SetDefault("bluesky.auth_base", "https://bsky.social")
	v.SetDefault("bluesky.page_size", 100)
	v.SetDefault("bluesky.timeout_seconds", 30)
	v.SetDefault("bluesky.max_retries", 3)
	v.SetDefault("bluesky.backoff_initial_ms", 250)
	v.SetDefault("bluesky.backoff_max_ms", 5000)
	v.SetDefault("bluesky.rps", 2.0)
	v.SetDefault("bluesky.burst", 4)
	v.SetDefault("db.dsn", "postgres://localhost:5432/bangertree?sslmode=disable")
	v.SetDefault("crawl.max_depth_default", -1)
	v.SetDefault("crawl.max_trace_hops", 10000)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.port", 9090)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set")
	}
	if c.Bluesky.PageSize <= 0 || c.Bluesky.PageSize > 100 {
		return fmt.Errorf("bluesky.page_size must be in 1..100")
	}
	if c.Bluesky.TimeoutSeconds <= 0 {
		return fmt.Errorf("bluesky.timeout_seconds must be > 0")
	}
	if c.Crawl.MaxTraceHops <= 0 {
		return fmt.Errorf("crawl.max_trace_hops must be > 0")
	}
	if c.Telemetry.Enabled && c.Telemetry.Port <= 0 {
		return fmt.Errorf("telemetry.port must be > 0 when telemetry is enabled")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicID == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_id must be set together")
	}
	return nil
}

// Timeout converts the HTTP timeout config into a duration.
func (c BlueskyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffInitial converts the initial backoff config into a duration.
func (c BlueskyConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond
}

// BackoffMax converts the backoff ceiling config into a duration.
func (c BlueskyConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}
