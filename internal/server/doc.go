// Package server wires the shell bridge together.
//
// Server Lifecycle:
//  1. Load configuration from environment and the optional YAML overlay
//  2. Initialize logger and the Prometheus registry
//  3. Build the session manager over a PTY launcher
//  4. Pick the proxy executor: remote endpoint or in-process runner
//  5. Build the execution coordinator and register tool providers
//  6. Setup middleware (request id, access log, metrics, CORS, rate limit)
//     and routes (REST, /terminal websocket, /metrics)
//  7. Run until Shutdown, which kills every session
//
// Example Usage:
//
//	cfg, err := config.Load()
//	srv, err := server.NewServer(cfg, server.Deps{})
//	go srv.Run()
//	defer srv.Shutdown(ctx)
package server
