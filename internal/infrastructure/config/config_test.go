package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "HOST",
		"SHELL_PATH", "SHELL_ARGS", "SHELL_COLS", "SHELL_ROWS", "SHELL_WORKDIR",
		"EXEC_TIMEOUT",
		"PROXY_BASE_URL", "PROXY_TIMEOUT", "PROXY_RETRIES", "PROXY_RPS",
		"URL_PATTERN", "URL_BUFFER_BYTES",
		"LOG_LEVEL", "LOG_DEV",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "RATE_LIMIT_ENABLED",
		FileEnv,
	} {
		if value, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { _ = os.Setenv(key, value) })
		}
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "0.0.0.0:8000", cfg.Address())

	// Shell config
	assert.Empty(t, cfg.Shell.Path)
	assert.Equal(t, uint16(80), cfg.Shell.Cols)
	assert.Equal(t, uint16(24), cfg.Shell.Rows)

	// Exec and proxy config
	assert.Zero(t, cfg.Exec.Timeout)
	assert.Empty(t, cfg.Proxy.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Proxy.Timeout)
	assert.Equal(t, 2, cfg.Proxy.Retries)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	clearEnv(t)
	envVars := map[string]string{
		"PORT":               "9000",
		"HOST":               "127.0.0.1",
		"SHELL_PATH":         "/bin/zsh",
		"SHELL_ARGS":         "-l,-i",
		"SHELL_COLS":         "132",
		"SHELL_ROWS":         "43",
		"SHELL_WORKDIR":      "/work",
		"EXEC_TIMEOUT":       "90s",
		"PROXY_BASE_URL":     "http://proxy:8080",
		"PROXY_TIMEOUT":      "5s",
		"PROXY_RETRIES":      "0",
		"PROXY_RPS":          "2.5",
		"URL_PATTERN":        `https?://localhost:\d+`,
		"URL_BUFFER_BYTES":   "1024",
		"LOG_LEVEL":          "debug",
		"LOG_DEV":            "true",
		"RATE_LIMIT_RPS":     "500",
		"RATE_LIMIT_BURST":   "1000",
		"RATE_LIMIT_ENABLED": "false",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.Equal(t, "/bin/zsh", cfg.Shell.Path)
	assert.Equal(t, []string{"-l", "-i"}, cfg.Shell.Args)
	assert.Equal(t, uint16(132), cfg.Shell.Cols)
	assert.Equal(t, uint16(43), cfg.Shell.Rows)
	assert.Equal(t, "/work", cfg.Shell.WorkingDir)

	assert.Equal(t, 90*time.Second, cfg.Exec.Timeout)

	assert.Equal(t, "http://proxy:8080", cfg.Proxy.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Proxy.Timeout)
	assert.Equal(t, 0, cfg.Proxy.Retries)
	assert.Equal(t, 2.5, cfg.Proxy.RequestsPerSecond)

	assert.Equal(t, `https?://localhost:\d+`, cfg.Watcher.URLPattern)
	assert.Equal(t, 1024, cfg.Watcher.URLBufferBytes)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Verify overridden values
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Verify default values still apply
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, uint16(80), cfg.Shell.Cols)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unparsable duration", "EXEC_TIMEOUT", "soon"},
		{"zero columns", "SHELL_COLS", "0"},
		{"overflowing rows", "SHELL_ROWS", "70000"},
		{"negative retries", "PROXY_RETRIES", "-1"},
		{"zero url buffer", "URL_BUFFER_BYTES", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			// LoadOrDefault falls back instead of failing
			assert.Equal(t, Default(), LoadOrDefault())
		})
	}
}

func TestFileOverlay(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "7000"
shell:
  path: /bin/bash
  args: ["--norc"]
exec:
  timeout: 45s
proxy:
  base_url: http://edge:9000
`), 0o600))

	t.Setenv(FileEnv, path)
	// the file beats the environment for keys it sets
	t.Setenv("PORT", "9000")
	// and leaves the rest alone
	t.Setenv("HOST", "127.0.0.1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "/bin/bash", cfg.Shell.Path)
	assert.Equal(t, []string{"--norc"}, cfg.Shell.Args)
	assert.Equal(t, uint16(80), cfg.Shell.Cols)
	assert.Equal(t, 45*time.Second, cfg.Exec.Timeout)
	assert.Equal(t, "http://edge:9000", cfg.Proxy.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Proxy.Timeout)
}

func TestFileOverlayErrors(t *testing.T) {
	clearEnv(t)

	t.Run("missing file", func(t *testing.T) {
		t.Setenv(FileEnv, filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))
		t.Setenv(FileEnv, path)
		_, err := Load()
		assert.Error(t, err)
	})
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
		{
			name:      "error level production",
			level:     "error",
			dev:       "false",
			wantLevel: "error",
			wantDev:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
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
