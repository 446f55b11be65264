package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ErrInvalid reports a configuration value outside its allowed range
var ErrInvalid = errors.New("invalid configuration")

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Archive   ArchiveConfig
	Topics    TopicConfig
	Webhook   WebhookConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	MaxConnections  int           `envconfig:"MAX_CONNECTIONS" default:"1024"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int           `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int           `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	IdleTTL           time.Duration `envconfig:"RATE_LIMIT_IDLE_TTL" default:"5m"`
}

// CORSConfig holds cross-origin configuration. No origins means any.
type CORSConfig struct {
	Origins []string `envconfig:"CORS_ORIGINS"`
}

// ArchiveConfig selects where object property dictionaries are persisted.
type ArchiveConfig struct {
	Backend  string `envconfig:"ARCHIVE_BACKEND" default:"file"` // "file" or "sqlite"
	Path     string `envconfig:"ARCHIVE_PATH" default:"./data/archive"`
	Codec    string `envconfig:"ARCHIVE_CODEC" default:"json"` // json, yaml, toml, cbor
	Compress bool   `envconfig:"ARCHIVE_COMPRESS" default:"false"`
}

// TopicConfig holds topic hub configuration.
type TopicConfig struct {
	StatsWindow int           `envconfig:"TOPIC_STATS_WINDOW" default:"100"`
	EvalTimeout time.Duration `envconfig:"TOPIC_EVAL_TIMEOUT" default:"100ms"`
}

// WebhookConfig holds defaults for webhook sinks.
type WebhookConfig struct {
	Timeout           time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"5s"`
	Retries           int           `envconfig:"WEBHOOK_RETRIES" default:"3"`
	QueueSize         int           `envconfig:"WEBHOOK_QUEUE" default:"256"`
	RequestsPerSecond float64       `envconfig:"WEBHOOK_RPS" default:"50"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks values envconfig cannot check by type alone
func (c *Config) Validate() error {
	switch c.Archive.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("%w: archive backend %q", ErrInvalid, c.Archive.Backend)
	}
	switch c.Archive.Codec {
	case "json", "yaml", "toml", "cbor":
	default:
		return fmt.Errorf("%w: archive codec %q", ErrInvalid, c.Archive.Codec)
	}
	if c.Topics.StatsWindow < 1 {
		return fmt.Errorf("%w: topic stats window must be positive", ErrInvalid)
	}
	if c.Webhook.QueueSize < 1 {
		return fmt.Errorf("%w: webhook queue size must be positive", ErrInvalid)
	}
	if c.Webhook.Retries < 0 {
		return fmt.Errorf("%w: webhook retries must not be negative", ErrInvalid)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			MaxConnections:  1024,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
			IdleTTL:           5 * time.Minute,
		},
		Archive: ArchiveConfig{
			Backend: "file",
			Path:    "./data/archive",
			Codec:   "json",
		},
		Topics: TopicConfig{
			StatsWindow: 100,
			EvalTimeout: 100 * time.Millisecond,
		},
		Webhook: WebhookConfig{
			Timeout:           5 * time.Second,
			Retries:           3,
			QueueSize:         256,
			RequestsPerSecond: 50,
		},
	}
}
