// Package main is the entry point for the observable server.
//
// The server keeps property objects alive in a managed registry, archives
// their values, mirrors every property change onto a topic hub and fans
// topic messages out to WebSocket clients and webhooks.
//
// The server provides:
//   - REST API for objects, archives, topics and webhooks
//   - WebSocket streaming of topic messages on /stream
//   - Prometheus metrics on /metrics
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# File archive, JSON codec
//	./server -port 8000
//
//	# SQLite archive with compressed CBOR payloads
//	./server -archive sqlite -archive-path ./data/objects.db -codec cbor -compress
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
