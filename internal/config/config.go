// Package config handles application configuration
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"taskbridge/backend"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

// Defaults applied when the configuration leaves a value unset
const (
	DefaultBackend      = "taskapi"
	DefaultOutputFormat = "text"
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultMondayURL    = "https://api.monday.com/v2"
	DefaultAPIVersion   = "2023-04"
	DefaultPageSize     = 50
	DefaultTaskAPIURL   = "http://localhost:8000"
)

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Verbose           bool  `yaml:"verbose"`
	BackgroundEnabled *bool `yaml:"background_enabled"` // Controls the TUI log file (default: true)
}

// MondayConfig holds settings of the column-oriented board backend.
// The API token is never stored here; see the credentials package.
type MondayConfig struct {
	APIURL     string `yaml:"api_url"`
	BoardID    string `yaml:"board_id"`
	APIVersion string `yaml:"api_version"`
	PageSize   int    `yaml:"page_size"`
}

// TaskAPIConfig holds settings of the document-oriented REST backend
type TaskAPIConfig struct {
	BaseURL string `yaml:"base_url"`
}

// BackendsConfig holds configuration for all backends
type BackendsConfig struct {
	Monday  MondayConfig  `yaml:"monday"`
	TaskAPI TaskAPIConfig `yaml:"taskapi"`
}

// Config represents the application configuration
type Config struct {
	Backends       BackendsConfig `yaml:"backends"`
	DefaultBackend string         `yaml:"default_backend"`
	OutputFormat   string         `yaml:"output_format"`
	HTTPTimeout    string         `yaml:"http_timeout"` // e.g. "30s"; empty keeps the default
	NoPrompt       bool           `yaml:"no_prompt"`
	Logging        LoggingConfig  `yaml:"logging"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.DefaultBackend == "" {
		c.DefaultBackend = DefaultBackend
	}
	if c.OutputFormat == "" {
		c.OutputFormat = DefaultOutputFormat
	}
	if c.Backends.Monday.APIURL == "" {
		c.Backends.Monday.APIURL = DefaultMondayURL
	}
	if c.Backends.Monday.APIVersion == "" {
		c.Backends.Monday.APIVersion = DefaultAPIVersion
	}
	if c.Backends.Monday.PageSize <= 0 {
		c.Backends.Monday.PageSize = DefaultPageSize
	}
	if c.Backends.TaskAPI.BaseURL == "" {
		c.Backends.TaskAPI.BaseURL = DefaultTaskAPIURL
	}
}

// applyEnv lets the environment override file values
func (c *Config) applyEnv() {
	if v := os.Getenv("TASKBRIDGE_BOARD_ID"); v != "" {
		c.Backends.Monday.BoardID = v
	}
	if v := os.Getenv("TASKBRIDGE_MONDAY_URL"); v != "" {
		c.Backends.Monday.APIURL = v
	}
	if v := os.Getenv("TASKBRIDGE_TASKAPI_URL"); v != "" {
		c.Backends.TaskAPI.BaseURL = v
	}
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// If the config file doesn't exist, it creates one from the embedded sample.
// Environment overrides are applied last.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath()
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := writeSample(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// Parse decodes YAML and applies defaults, without touching the environment
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// writeSample writes the embedded sample, which includes all documentation and comments
func writeSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.OutputFormat != "text" && c.OutputFormat != "json" {
		return fmt.Errorf("invalid output_format: %q (must be 'text' or 'json')", c.OutputFormat)
	}

	if _, err := backend.ParseKind(c.DefaultBackend); err != nil {
		return fmt.Errorf("invalid default_backend: %w", err)
	}

	if c.HTTPTimeout != "" {
		d, err := time.ParseDuration(c.HTTPTimeout)
		if err != nil {
			return fmt.Errorf("invalid duration for http_timeout: %q", c.HTTPTimeout)
		}
		if d < 0 {
			return fmt.Errorf("http_timeout must not be negative, got %q", c.HTTPTimeout)
		}
	}

	if c.Backends.Monday.PageSize > 500 {
		return fmt.Errorf("backends.monday.page_size must be at most 500, got %d", c.Backends.Monday.PageSize)
	}

	return nil
}

// ApplyFlags applies CLI flag overrides to the configuration
func (c *Config) ApplyFlags(noPrompt bool, outputFormat, defaultBackend string) {
	if noPrompt {
		c.NoPrompt = true
	}
	if outputFormat != "" {
		c.OutputFormat = outputFormat
	}
	if defaultBackend != "" {
		c.DefaultBackend = defaultBackend
	}
}

// GetHTTPTimeout returns the HTTP client timeout.
// Returns 30 seconds as default if not configured or if parsing fails.
func (c *Config) GetHTTPTimeout() time.Duration {
	if c.HTTPTimeout == "" {
		return DefaultHTTPTimeout
	}
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil {
		return DefaultHTTPTimeout
	}
	return d
}

// GetDefaultBackend returns the configured default backend kind.
func (c *Config) GetDefaultBackend() (backend.Kind, error) {
	return backend.ParseKind(c.DefaultBackend)
}

// IsMondayConfigured reports whether a board id is known
func (c *Config) IsMondayConfigured() bool {
	return strings.TrimSpace(c.Backends.Monday.BoardID) != ""
}

// IsBackgroundLoggingEnabled returns true if the TUI should log to a file.
// Returns true (default) if not configured.
func (c *Config) IsBackgroundLoggingEnabled() bool {
	if c.Logging.BackgroundEnabled == nil {
		return true
	}
	return *c.Logging.BackgroundEnabled
}

// Marshal renders the effective configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// DefaultPath returns the config file location under the XDG config dir
func DefaultPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// getXDGDir returns a directory path following XDG spec.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is the relative path from home (e.g., ".config").
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "taskbridge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "taskbridge")
	}
	return filepath.Join(home, fallbackPath, "taskbridge")
}

// GetConfigDir returns the configuration directory following XDG spec
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
