// Package config provides 12-factor configuration management for the
// observable service.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, connection cap)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Archive: Persistence backend, codec and compression
//   - Topics: Topic statistics window and expression timeout
//   - Webhook: Delivery timeout, retries, queue size and rate
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, MAX_CONNECTIONS, SHUTDOWN_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - ARCHIVE_BACKEND, ARCHIVE_PATH, ARCHIVE_CODEC, ARCHIVE_COMPRESS
//   - TOPIC_STATS_WINDOW, TOPIC_EVAL_TIMEOUT
//   - WEBHOOK_TIMEOUT, WEBHOOK_RETRIES, WEBHOOK_QUEUE, WEBHOOK_RPS
package config
