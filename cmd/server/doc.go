// Package main is the entry point for the shellbridge server.
//
// shellbridge sits between a browser terminal and a sandboxed interactive
// shell:
//
//	Browser terminal ⇄ /terminal (websocket) ⇄ PTY shell
//	REST clients     → /api/sessions/:id/exec → coordinator → PTY shell
//	curl / fetch     → proxy (remote /api/proxy or in-process)
//
// Configuration:
//   - Environment variables (12-factor), see internal/infrastructure/config
//   - Optional YAML file via BRIDGE_CONFIG or --config
//   - CLI flags (override both)
//
// Usage:
//
//	# Serve (default command)
//	shellbridge serve --port 8000
//
//	# Development mode (colored logs, debug level)
//	shellbridge --dev
//
//	# Attach this terminal to a new or existing session
//	shellbridge attach --addr ws://localhost:8000 [--session sess_...]
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown, all sessions killed
package main
