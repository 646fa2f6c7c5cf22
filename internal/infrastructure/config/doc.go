// Package config provides 12-factor configuration management for the shell bridge.
//
// Configuration is loaded from environment variables with sensible defaults.
// A YAML file named by BRIDGE_CONFIG is applied on top; CLI flags can
// override both for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Shell: shell binary, arguments, terminal size and working directory
//   - Exec: optional timeout for coordinated executions
//   - Proxy: remote proxy endpoint, timeout, retries and client rate
//   - Watcher: URL pattern and scan buffer
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s\n", cfg.Address())
//
// Environment Variables:
//   - PORT, HOST
//   - SHELL_PATH, SHELL_ARGS, SHELL_COLS, SHELL_ROWS, SHELL_WORKDIR
//   - EXEC_TIMEOUT
//   - PROXY_BASE_URL, PROXY_TIMEOUT, PROXY_RETRIES, PROXY_RPS
//   - URL_PATTERN, URL_BUFFER_BYTES
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - BRIDGE_CONFIG
package config
