// Package config provides configuration management for granola-mcp.
// It supports loading configuration from YAML files and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultConfigDir  = ".granola-mcp"
	DefaultConfigFile = "config.yaml"

	DefaultClassificationsFile = "classifications.json"
	DefaultTimezone            = "Local"
	DefaultCalendarID          = "primary"
	DefaultClassifierModel     = "gpt-4o-mini"
	DefaultEmbeddingModel      = "text-embedding-3-large"
	DefaultRemoteTimeout       = 15 * time.Second
	DefaultCalendarTimeout     = 10 * time.Second
)

// GoogleConfig holds Google Calendar settings.
type GoogleConfig struct {
	// ClientID and ClientSecret identify the OAuth application. The
	// token itself lives in the system keyring, not in this file.
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	// CalendarID selects which calendar to read (default "primary").
	CalendarID string `yaml:"calendar_id"`

	// Timeout bounds one calendar fetch.
	Timeout time.Duration `yaml:"-"`
}

// Enabled reports whether calendar credentials are configured at all.
func (c GoogleConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// ClassifierConfig holds remote classification settings.
type ClassifierConfig struct {
	// Endpoint is an OpenAI-compatible chat completions URL. Empty
	// disables the remote tier.
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`

	// RulesPath points at an optional YAML file of extra heuristic rules.
	RulesPath string `yaml:"rules_path"`

	// InternalDomains are email domains treated as the user's own
	// organization by the heuristic tier.
	InternalDomains []string `yaml:"internal_domains"`

	// StorePath is the classification store file. Ignored when Redis
	// is configured.
	StorePath string `yaml:"store_path"`

	// Timeout bounds one synchronous remote classification.
	Timeout time.Duration `yaml:"-"`
}

// RedisConfig holds the optional shared classification store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a Redis store is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// SemanticConfig holds the optional embeddings endpoint for company
// similarity.
type SemanticConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

// Enabled reports whether embedding similarity is configured.
func (c SemanticConfig) Enabled() bool {
	return c.Endpoint != ""
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config is the full granola-mcp configuration.
type Config struct {
	// CachePath is the Granola cache file. Empty means the platform
	// default location.
	CachePath string `yaml:"cache_path"`

	// Timezone resolves date queries ("today", "this week"). An IANA
	// name, or "Local" for the system zone.
	Timezone string `yaml:"timezone"`

	// MetricsAddr enables a Prometheus /metrics listener when set,
	// e.g. "localhost:9090".
	MetricsAddr string `yaml:"metrics_addr"`

	Logging    LoggingConfig    `yaml:"logging"`
	Google     GoogleConfig     `yaml:"google"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Redis      RedisConfig      `yaml:"redis"`
	Semantic   SemanticConfig   `yaml:"semantic"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Timezone: DefaultTimezone,
		Logging:  LoggingConfig{Level: "info", JSON: true},
		Google: GoogleConfig{
			CalendarID: DefaultCalendarID,
			Timeout:    DefaultCalendarTimeout,
		},
		Classifier: ClassifierConfig{
			Model:   DefaultClassifierModel,
			Timeout: DefaultRemoteTimeout,
		},
		Semantic: SemanticConfig{Model: DefaultEmbeddingModel},
	}
}

// ConfigDir returns the configuration directory path. Uses
// $GRANOLA_CONFIG_DIR if set, otherwise ~/.granola-mcp.
func ConfigDir() (string, error) {
	if dir := os.Getenv("GRANOLA_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// Load reads the configuration. Sources apply in order, later
// overriding earlier: defaults, the config file, environment variables.
// A missing config file is not an error.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	cfg.resolvePaths()
	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// loadFromEnv overlays environment variables onto cfg.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("GRANOLA_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
	if v := os.Getenv("GRANOLA_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("GRANOLA_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("GRANOLA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GRANOLA_LOG_JSON"); v == "true" || v == "1" {
		cfg.Logging.JSON = true
	} else if v == "false" || v == "0" {
		cfg.Logging.JSON = false
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Google.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Google.ClientSecret = v
	}
	if v := os.Getenv("GRANOLA_CALENDAR_ID"); v != "" {
		cfg.Google.CalendarID = v
	}
	if v := os.Getenv("GRANOLA_CLASSIFIER_ENDPOINT"); v != "" {
		cfg.Classifier.Endpoint = v
	}
	if v := os.Getenv("GRANOLA_CLASSIFIER_MODEL"); v != "" {
		cfg.Classifier.Model = v
	}
	if v := os.Getenv("GRANOLA_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("GRANOLA_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("GRANOLA_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("GRANOLA_SEMANTIC_ENDPOINT"); v != "" {
		cfg.Semantic.Endpoint = v
	}
	if v := os.Getenv("GRANOLA_SEMANTIC_MODEL"); v != "" {
		cfg.Semantic.Model = v
	}
}

// Validate checks the configuration for coherence.
func (c *Config) Validate() error {
	if c.Timezone != "" && c.Timezone != "Local" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}
	if c.Google.ClientID != "" && c.Google.ClientSecret == "" {
		return fmt.Errorf("google.client_id set without google.client_secret")
	}
	if c.Classifier.Endpoint == "" && c.Classifier.Model != DefaultClassifierModel && c.Classifier.Model != "" {
		return fmt.Errorf("classifier.model set without classifier.endpoint")
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// ClassificationStorePath returns the classification store file,
// defaulting to <config dir>/classifications.json.
func (c *Config) ClassificationStorePath() (string, error) {
	if c.Classifier.StorePath != "" {
		return c.Classifier.StorePath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultClassificationsFile), nil
}

// resolvePaths expands ~ in configured paths.
func (c *Config) resolvePaths() {
	c.CachePath = expandPath(c.CachePath)
	c.Classifier.RulesPath = expandPath(c.Classifier.RulesPath)
	c.Classifier.StorePath = expandPath(c.Classifier.StorePath)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path // Return original if home dir lookup fails.
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
