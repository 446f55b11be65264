// Package middleware provides the HTTP middleware shared by the REST and
// WebSocket routes.
//
//   - CORS: cross-origin access, with the trace headers allowed and exposed
//   - RateLimit: per-IP token buckets; idle clients are evicted
//   - GlobalRateLimit: a single bucket for the whole server
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
