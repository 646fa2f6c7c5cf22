// Package http provides the REST handlers of the shell bridge.
//
// Endpoints:
//   - Health: / and /health, /stats
//   - Sessions: /api/sessions, /api/sessions/:id, /api/sessions/:id/exec,
//     /api/sessions/:id/cancel, /api/sessions/:id/resize,
//     /api/sessions/:id/scrollback
//   - Detected URL: /api/url
//   - Proxy: /api/proxy?command=<json>
//   - Services: /services, /services/discover, /services/execute
//
// Session and execution errors map onto statuses in one place: unknown
// session 404, closed or superseded 409, marker timeout 504. A failed
// execution that produced partial output returns it under "result".
//
// Example Usage:
//
//	handlers := http.NewHandlers(manager, coordinator, registry, runner, metrics, logger)
//	router.POST("/api/sessions/:id/exec", handlers.ExecCommand)
package http
