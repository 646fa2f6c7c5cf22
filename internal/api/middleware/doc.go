// Package middleware provides the HTTP middleware stack for the shell bridge.
//
// Middleware stack includes:
//   - RequestID: X-Request-ID propagation, generated with google/uuid
//   - AccessLog: one zap line per request
//   - CORS: Cross-origin resource sharing with configurable origins
//   - RateLimit: Per-IP token bucket rate limiting
//
// Rate Limiting:
//   - Per-IP buckets, dropped after IdleTTL without traffic
//   - Token bucket algorithm (golang.org/x/time/rate)
//   - SkipPaths for health and metrics probes
//   - Global rate limiting option
//
// Example Usage:
//
//	router.Use(middleware.RequestID())
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
