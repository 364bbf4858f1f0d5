// Package config loads henry's configuration.
//
// Values come from, in increasing precedence: built-in defaults, the config file
// (.henry/config.{toml,yaml,json} in the working directory or the home directory,
// or an explicit --config path), a .env file, and environment variables
// (HENRY_* and the standard LOOKERSDK_* variables).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// CurrentVersion is the config schema version written by `henry config init`.
const CurrentVersion = 1

// DirName is the per-user and per-directory config directory.
const DirName = ".henry"

// Config represents the complete henry configuration
type Config struct {
	Version     int               `json:"version" mapstructure:"version" toml:"version"`
	Looker      LookerConfig      `json:"looker" mapstructure:"looker" toml:"looker"`
	Usage       UsageConfig       `json:"usage" mapstructure:"usage" toml:"usage"`
	API         APIConfig         `json:"api" mapstructure:"api" toml:"api"`
	Concurrency ConcurrencyConfig `json:"concurrency" mapstructure:"concurrency" toml:"concurrency"`
	Output      OutputConfig      `json:"output" mapstructure:"output" toml:"output"`
	Logging     LoggingConfig     `json:"logging" mapstructure:"logging" toml:"logging"`
}

// LookerConfig holds the API endpoint and OAuth client credentials
type LookerConfig struct {
	BaseURL        string `json:"baseUrl" mapstructure:"baseUrl" toml:"baseUrl"`
	APIVersion     string `json:"apiVersion" mapstructure:"apiVersion" toml:"apiVersion"`
	ClientID       string `json:"clientId" mapstructure:"clientId" toml:"clientId"`
	ClientSecret   string `json:"clientSecret" mapstructure:"clientSecret" toml:"clientSecret"`
	VerifySSL      bool   `json:"verifySsl" mapstructure:"verifySsl" toml:"verifySsl"`
	TimeoutSeconds int    `json:"timeoutSeconds" mapstructure:"timeoutSeconds" toml:"timeoutSeconds"`
}

// UsageConfig bounds the query-history window
type UsageConfig struct {
	TimeframeDays int `json:"timeframeDays" mapstructure:"timeframeDays" toml:"timeframeDays"`
	MinQueries    int `json:"minQueries" mapstructure:"minQueries" toml:"minQueries"`
	RowLimit      int `json:"rowLimit" mapstructure:"rowLimit" toml:"rowLimit"`
}

// APIConfig controls outbound request pacing and retries
type APIConfig struct {
	RateLimitPerSecond float64 `json:"rateLimitPerSecond" mapstructure:"rateLimitPerSecond" toml:"rateLimitPerSecond"`
	Burst              int     `json:"burst" mapstructure:"burst" toml:"burst"`
	MaxRetries         int     `json:"maxRetries" mapstructure:"maxRetries" toml:"maxRetries"`
	RetryBaseDelayMs   int     `json:"retryBaseDelayMs" mapstructure:"retryBaseDelayMs" toml:"retryBaseDelayMs"`
}

// ConcurrencyConfig sizes the per-explore worker pool
type ConcurrencyConfig struct {
	Workers int `json:"workers" mapstructure:"workers" toml:"workers"`
}

// OutputConfig contains report rendering defaults
type OutputConfig struct {
	Format string `json:"format" mapstructure:"format" toml:"format"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format     string `json:"format" mapstructure:"format" toml:"format"`
	Level      string `json:"level" mapstructure:"level" toml:"level"`
	File       string `json:"file,omitempty" mapstructure:"file" toml:"file,omitempty"`
	MaxSize    string `json:"maxSize,omitempty" mapstructure:"maxSize" toml:"maxSize,omitempty"`
	MaxBackups int    `json:"maxBackups,omitempty" mapstructure:"maxBackups" toml:"maxBackups,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Looker: LookerConfig{
			APIVersion:     "4.0",
			VerifySSL:      true,
			TimeoutSeconds: 120,
		},
		Usage: UsageConfig{
			TimeframeDays: 90,
			MinQueries:    0,
			RowLimit:      50000,
		},
		API: APIConfig{
			RateLimitPerSecond: 10,
			Burst:              5,
			MaxRetries:         3,
			RetryBaseDelayMs:   500,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Output: OutputConfig{
			Format: "table",
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "warn",
		},
	}
}

// envBindings maps config keys to the environment variables that may set them.
// The first variable listed wins when several are set.
var envBindings = map[string][]string{
	"looker.baseUrl":         {"HENRY_LOOKER_BASE_URL", "LOOKERSDK_BASE_URL"},
	"looker.apiVersion":      {"HENRY_LOOKER_API_VERSION", "LOOKERSDK_API_VERSION"},
	"looker.clientId":        {"HENRY_LOOKER_CLIENT_ID", "LOOKERSDK_CLIENT_ID"},
	"looker.clientSecret":    {"HENRY_LOOKER_CLIENT_SECRET", "LOOKERSDK_CLIENT_SECRET"},
	"looker.verifySsl":       {"HENRY_LOOKER_VERIFY_SSL", "LOOKERSDK_VERIFY_SSL"},
	"looker.timeoutSeconds":  {"HENRY_LOOKER_TIMEOUT", "LOOKERSDK_TIMEOUT"},
	"usage.timeframeDays":    {"HENRY_USAGE_TIMEFRAME_DAYS"},
	"usage.minQueries":       {"HENRY_USAGE_MIN_QUERIES"},
	"usage.rowLimit":         {"HENRY_USAGE_ROW_LIMIT"},
	"api.rateLimitPerSecond": {"HENRY_API_RATE_LIMIT"},
	"api.maxRetries":         {"HENRY_API_MAX_RETRIES"},
	"concurrency.workers":    {"HENRY_WORKERS"},
	"output.format":          {"HENRY_OUTPUT_FORMAT"},
	"logging.level":          {"HENRY_LOG_LEVEL"},
	"logging.format":         {"HENRY_LOG_FORMAT"},
	"logging.file":           {"HENRY_LOG_FILE"},
}

// SupportedEnvVars returns every environment variable henry reads, sorted by key.
func SupportedEnvVars() []string {
	var vars []string
	for _, names := range envBindings {
		vars = append(vars, names...)
	}
	sort.Strings(vars)
	return vars
}

// LoadConfig loads configuration. When path is empty the standard locations are
// searched; a missing file yields the defaults (still subject to env overrides).
func LoadConfig(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	for key, names := range envBindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(DirName)
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, DirName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, &ConfigError{Field: "file", Message: err.Error()}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Field: "file", Message: err.Error()}
	}
	cfg.Looker.BaseURL = strings.TrimRight(cfg.Looker.BaseURL, "/")

	return &cfg, nil
}

// loadDotEnv loads ./.env when present; existing environment variables win.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return &ConfigError{Field: ".env", Message: err.Error()}
	}
	return nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)
	v.SetDefault("looker.baseUrl", d.Looker.BaseURL)
	v.SetDefault("looker.apiVersion", d.Looker.APIVersion)
	v.SetDefault("looker.clientId", d.Looker.ClientID)
	v.SetDefault("looker.clientSecret", d.Looker.ClientSecret)
	v.SetDefault("looker.verifySsl", d.Looker.VerifySSL)
	v.SetDefault("looker.timeoutSeconds", d.Looker.TimeoutSeconds)
	v.SetDefault("usage.timeframeDays", d.Usage.TimeframeDays)
	v.SetDefault("usage.minQueries", d.Usage.MinQueries)
	v.SetDefault("usage.rowLimit", d.Usage.RowLimit)
	v.SetDefault("api.rateLimitPerSecond", d.API.RateLimitPerSecond)
	v.SetDefault("api.burst", d.API.Burst)
	v.SetDefault("api.maxRetries", d.API.MaxRetries)
	v.SetDefault("api.retryBaseDelayMs", d.API.RetryBaseDelayMs)
	v.SetDefault("concurrency.workers", d.Concurrency.Workers)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.maxSize", d.Logging.MaxSize)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
}

// WriteTemplate writes c as TOML to path, creating parent directories.
// It refuses to overwrite an existing file unless force is set.
func (c *Config) WriteTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return &ConfigError{Field: "file", Message: "already exists: " + path}
		}
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Redacted returns a copy safe for display.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.Looker.ClientSecret != "" {
		cp.Looker.ClientSecret = "********"
	}
	return &cp
}

// Validate checks settings used by every command.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}
	if c.Usage.TimeframeDays <= 0 {
		return &ConfigError{Field: "usage.timeframeDays", Message: "must be positive"}
	}
	if c.Usage.MinQueries < 0 {
		return &ConfigError{Field: "usage.minQueries", Message: "must not be negative"}
	}
	if c.Concurrency.Workers < 1 {
		return &ConfigError{Field: "concurrency.workers", Message: "must be at least 1"}
	}
	switch c.Output.Format {
	case "table", "plain", "json":
	default:
		return &ConfigError{Field: "output.format", Message: fmt.Sprintf("unsupported format %q: use table, plain or json", c.Output.Format)}
	}
	return nil
}

// ValidateAPI checks the settings needed to talk to the live API.
func (c *Config) ValidateAPI() error {
	if c.Looker.BaseURL == "" {
		return &ConfigError{Field: "looker.baseUrl", Message: "required (or pass --snapshot)"}
	}
	if c.Looker.ClientID == "" || c.Looker.ClientSecret == "" {
		return &ConfigError{Field: "looker.clientId", Message: "client id and secret are required"}
	}
	if c.API.RateLimitPerSecond <= 0 {
		return &ConfigError{Field: "api.rateLimitPerSecond", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
