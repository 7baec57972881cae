package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Polling PollingConfig `mapstructure:"polling"`
	UI      UIConfig      `mapstructure:"ui"`
	Browser BrowserConfig `mapstructure:"browser"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds aggregator connection settings
type ServerConfig struct {
	URL     string        `mapstructure:"url"`     // Aggregator base URL
	Timeout time.Duration `mapstructure:"timeout"` // Per-request HTTP timeout
}

// PollingConfig controls how often and how long status is polled
type PollingConfig struct {
	Interval   time.Duration `mapstructure:"interval"`    // Time between status requests
	MaxElapsed time.Duration `mapstructure:"max_elapsed"` // Retry budget for one request
}

// UIConfig holds UI configuration
type UIConfig struct {
	DefaultSort string        `mapstructure:"default_sort"` // score, name, evidence or agents
	ShowScores  bool          `mapstructure:"show_scores"`
	PulsePeriod time.Duration `mapstructure:"pulse_period"`
}

// BrowserConfig controls how result links are opened
type BrowserConfig struct {
	Command      string   `mapstructure:"command"`       // Empty for the system default
	Args         []string `mapstructure:"args"`          // Extra arguments before the URL
	LinkTemplate string   `mapstructure:"link_template"` // {id} is replaced by the result ID
}

// CacheConfig holds local cache settings
type CacheConfig struct {
	Dir     string `mapstructure:"dir"`
	Enabled bool   `mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File       string `mapstructure:"file"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:     "",
			Timeout: 30 * time.Second,
		},
		Polling: PollingConfig{
			Interval:   5 * time.Second,
			MaxElapsed: 20 * time.Second,
		},
		UI: UIConfig{
			DefaultSort: "score",
			ShowScores:  true,
			PulsePeriod: 2 * time.Second,
		},
		Browser: BrowserConfig{
			LinkTemplate: "https://identifiers.org/{id}",
		},
		Cache: CacheConfig{
			Dir:     defaultCachePath(),
			Enabled: true,
		},
		Logging: LoggingConfig{
			File:       defaultLogPath(),
			Level:      "INFO",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "arsview", "arsview.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "arsview", "arsview.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "arsview")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "arsview")
	}
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "arsview", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "arsview", "cache")
	}
}

// newViper returns a viper instance seeded with every default, so that
// environment overrides apply to keys missing from the file.
func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("server.url", cfg.Server.URL)
	v.SetDefault("server.timeout", cfg.Server.Timeout)
	v.SetDefault("polling.interval", cfg.Polling.Interval)
	v.SetDefault("polling.max_elapsed", cfg.Polling.MaxElapsed)
	v.SetDefault("ui.default_sort", cfg.UI.DefaultSort)
	v.SetDefault("ui.show_scores", cfg.UI.ShowScores)
	v.SetDefault("ui.pulse_period", cfg.UI.PulsePeriod)
	v.SetDefault("browser.command", cfg.Browser.Command)
	v.SetDefault("browser.args", cfg.Browser.Args)
	v.SetDefault("browser.link_template", cfg.Browser.LinkTemplate)
	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", cfg.Logging.MaxAgeDays)

	// Environment variable overrides, e.g. ARSVIEW_SERVER_URL
	v.SetEnvPrefix("ARSVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig loads configuration from the default location and environment
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("")
}

// LoadConfigFrom loads configuration from file, or from the default
// search path when file is empty. A missing config file is not an error.
func LoadConfigFrom(file string) (*Config, error) {
	cfg := DefaultConfig()
	v := newViper(cfg)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			// Config file not found is OK, use defaults
		case file != "" && errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the default location
func SaveConfig(cfg *Config) error {
	return SaveConfigTo(cfg, filepath.Join(defaultConfigPath(), "config.yaml"))
}

// SaveConfigTo writes cfg as YAML to file
func SaveConfigTo(cfg *Config, file string) error {
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()

	// Set fields individually to ensure correct key names (snake_case)
	v.Set("server.url", cfg.Server.URL)
	v.Set("server.timeout", cfg.Server.Timeout.String())

	v.Set("polling.interval", cfg.Polling.Interval.String())
	v.Set("polling.max_elapsed", cfg.Polling.MaxElapsed.String())

	v.Set("ui.default_sort", cfg.UI.DefaultSort)
	v.Set("ui.show_scores", cfg.UI.ShowScores)
	v.Set("ui.pulse_period", cfg.UI.PulsePeriod.String())

	v.Set("browser.command", cfg.Browser.Command)
	v.Set("browser.args", cfg.Browser.Args)
	v.Set("browser.link_template", cfg.Browser.LinkTemplate)

	v.Set("cache.dir", cfg.Cache.Dir)
	v.Set("cache.enabled", cfg.Cache.Enabled)

	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	v.Set("logging.max_backups", cfg.Logging.MaxBackups)
	v.Set("logging.max_age_days", cfg.Logging.MaxAgeDays)

	if err := v.WriteConfigAs(file); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// IsConfigured returns true if the aggregator URL is set
func (c *Config) IsConfigured() bool {
	return c.Server.URL != ""
}

// CacheDir returns the cache directory, or "" when caching is disabled
// and the store should stay in memory.
func (c *Config) CacheDir() string {
	if !c.Cache.Enabled {
		return ""
	}
	return c.Cache.Dir
}

// ClearCache removes all cached data under dir
func ClearCache(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}
