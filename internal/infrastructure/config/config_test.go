package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 1024, cfg.Server.MaxConnections)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	// Archive config
	assert.Equal(t, "file", cfg.Archive.Backend)
	assert.Equal(t, "json", cfg.Archive.Codec)
	assert.False(t, cfg.Archive.Compress)

	require.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                "9000",
		"HOST":                "127.0.0.1",
		"MAX_CONNECTIONS":     "16",
		"SHUTDOWN_TIMEOUT":    "3s",
		"LOG_LEVEL":           "debug",
		"LOG_DEV":             "true",
		"RATE_LIMIT_RPS":      "500",
		"RATE_LIMIT_BURST":    "1000",
		"RATE_LIMIT_ENABLED":  "false",
		"RATE_LIMIT_IDLE_TTL": "1m",
		"CORS_ORIGINS":        "https://a.example,https://b.example",
		"ARCHIVE_BACKEND":     "sqlite",
		"ARCHIVE_PATH":        "/tmp/objects.db",
		"ARCHIVE_CODEC":       "cbor",
		"ARCHIVE_COMPRESS":    "true",
		"TOPIC_STATS_WINDOW":  "10",
		"TOPIC_EVAL_TIMEOUT":  "1s",
		"WEBHOOK_TIMEOUT":     "2s",
		"WEBHOOK_RETRIES":     "0",
		"WEBHOOK_QUEUE":       "8",
		"WEBHOOK_RPS":         "2.5",
	}

	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 16, cfg.Server.MaxConnections)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, time.Minute, cfg.RateLimit.IdleTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.Origins)

	assert.Equal(t, ArchiveConfig{Backend: "sqlite", Path: "/tmp/objects.db", Codec: "cbor", Compress: true}, cfg.Archive)
	assert.Equal(t, TopicConfig{StatsWindow: 10, EvalTimeout: time.Second}, cfg.Topics)
	assert.Equal(t, WebhookConfig{Timeout: 2 * time.Second, Retries: 0, QueueSize: 8, RequestsPerSecond: 2.5}, cfg.Webhook)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	err := os.Setenv("PORT", "3000")
	require.NoError(t, err)
	defer os.Unsetenv("PORT")

	err = os.Setenv("ARCHIVE_CODEC", "yaml")
	require.NoError(t, err)
	defer os.Unsetenv("ARCHIVE_CODEC")

	cfg, err := Load()
	require.NoError(t, err)

	// Verify overridden values
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "yaml", cfg.Archive.Codec)

	// Verify default values still apply
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "file", cfg.Archive.Backend)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown backend", "ARCHIVE_BACKEND", "redis"},
		{"unknown codec", "ARCHIVE_CODEC", "xml"},
		{"empty stats window", "TOPIC_STATS_WINDOW", "0"},
		{"empty webhook queue", "WEBHOOK_QUEUE", "0"},
		{"negative retries", "WEBHOOK_RETRIES", "-1"},
		{"malformed duration", "WEBHOOK_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			// LoadOrDefault falls back rather than failing
			assert.Equal(t, Default(), LoadOrDefault())
		})
	}
}

func TestLoggingConfig(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		dev       string
		wantLevel string
		wantDev   bool
	}{
		{
			name:      "default values",
			wantLevel: "info",
			wantDev:   false,
		},
		{
			name:      "debug level",
			level:     "debug",
			wantLevel: "debug",
			wantDev:   false,
		},
		{
			name:      "development mode",
			dev:       "true",
			wantLevel: "info",
			wantDev:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.level != "" {
				t.Setenv("LOG_LEVEL", tt.level)
			}
			if tt.dev != "" {
				t.Setenv("LOG_DEV", tt.dev)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantLevel, cfg.Logging.Level)
			assert.Equal(t, tt.wantDev, cfg.Logging.Development)
		})
	}
}
