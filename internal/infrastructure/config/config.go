package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// FileEnv names the environment variable holding an optional YAML overlay
const FileEnv = "BRIDGE_CONFIG"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Shell     ShellConfig     `yaml:"shell"`
	Exec      ExecConfig      `yaml:"exec"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Watcher   WatcherConfig   `yaml:"watcher"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
}

// ShellConfig describes the shell spawned for each session.
// An empty Path falls back to $SHELL, then /bin/bash.
type ShellConfig struct {
	Path       string   `envconfig:"SHELL_PATH" yaml:"path"`
	Args       []string `envconfig:"SHELL_ARGS" yaml:"args"`
	Cols       uint16   `envconfig:"SHELL_COLS" default:"80" yaml:"cols"`
	Rows       uint16   `envconfig:"SHELL_ROWS" default:"24" yaml:"rows"`
	WorkingDir string   `envconfig:"SHELL_WORKDIR" yaml:"working_dir"`
}

// ExecConfig bounds coordinated executions. Zero waits for the exit marker
// indefinitely.
type ExecConfig struct {
	Timeout time.Duration `envconfig:"EXEC_TIMEOUT" default:"0s" yaml:"timeout"`
}

// ProxyConfig configures where curl and fetch run. An empty BaseURL runs
// them in-process.
type ProxyConfig struct {
	BaseURL           string        `envconfig:"PROXY_BASE_URL" yaml:"base_url"`
	Timeout           time.Duration `envconfig:"PROXY_TIMEOUT" default:"30s" yaml:"timeout"`
	Retries           int           `envconfig:"PROXY_RETRIES" default:"2" yaml:"retries"`
	RequestsPerSecond float64       `envconfig:"PROXY_RPS" default:"0" yaml:"requests_per_second"`
}

// WatcherConfig configures URL detection.
type WatcherConfig struct {
	URLPattern     string `envconfig:"URL_PATTERN" yaml:"url_pattern"`
	URLBufferBytes int    `envconfig:"URL_BUFFER_BYTES" default:"4096" yaml:"url_buffer_bytes"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// Load loads configuration from environment variables, then applies the
// YAML file named by BRIDGE_CONFIG if set.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ApplyFile overlays a YAML file. Keys present in the file replace the
// current values; absent keys are left alone.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("invalid config: server port is empty")
	}
	if c.Shell.Cols == 0 || c.Shell.Rows == 0 {
		return fmt.Errorf("invalid config: terminal size %dx%d", c.Shell.Cols, c.Shell.Rows)
	}
	if c.Exec.Timeout < 0 || c.Proxy.Timeout < 0 {
		return fmt.Errorf("invalid config: negative timeout")
	}
	if c.Proxy.Retries < 0 {
		return fmt.Errorf("invalid config: negative proxy retries")
	}
	if c.Watcher.URLBufferBytes <= 0 {
		return fmt.Errorf("invalid config: url buffer must be positive")
	}
	return nil
}

// Address returns the listen address.
func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Shell: ShellConfig{
			Cols: 80,
			Rows: 24,
		},
		Proxy: ProxyConfig{
			Timeout: 30 * time.Second,
			Retries: 2,
		},
		Watcher: WatcherConfig{
			URLBufferBytes: 4096,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
