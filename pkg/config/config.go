package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CHANSCRAPER_"

// Config holds all configuration options for the crawler
type Config struct {
	Board    BoardConfig    `yaml:"board" json:"board"`
	Poll     PollConfig     `yaml:"poll" json:"poll"`
	HTTP     HTTPConfig     `yaml:"http" json:"http"`
	Download DownloadConfig `yaml:"download" json:"download"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// BoardConfig selects the board and the endpoint roots
type BoardConfig struct {
	Name      string `yaml:"name" json:"name"`
	BaseURL   string `yaml:"base_url" json:"base_url"`
	ImageHost string `yaml:"image_host" json:"image_host"`
}

// PollConfig holds the loop timing, in seconds
type PollConfig struct {
	Interval            int `yaml:"poll_interval" json:"poll_interval"`
	EmptyCatalogBackoff int `yaml:"empty_catalog_backoff" json:"empty_catalog_backoff"`
}

// HTTPConfig holds settings shared by every remote request
type HTTPConfig struct {
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RequestsPerSecond int           `yaml:"requests_per_second" json:"requests_per_second"`
}

// DownloadConfig holds media download settings
type DownloadConfig struct {
	MediaDir            string        `yaml:"media_dir" json:"media_dir"`
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
	RetryBlocked        bool          `yaml:"retry_blocked" json:"retry_blocked"`
}

// CacheConfig selects the de-duplication cache backend
type CacheConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	File    string `yaml:"cache_file" json:"cache_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// DefaultConfig returns a Config instance with the crawler's stock settings
func DefaultConfig() *Config {
	return &Config{
		Board: BoardConfig{
			Name:      "b",
			BaseURL:   "https://a.4cdn.org",
			ImageHost: "https://i.4cdn.org",
		},
		Poll: PollConfig{
			Interval:            600,
			EmptyCatalogBackoff: 300,
		},
		HTTP: HTTPConfig{
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122 Safari/537.36",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 1,
		},
		Download: DownloadConfig{
			MediaDir:            "downloads",
			ConcurrentDownloads: 1,
			Timeout:             5 * time.Minute,
			RetryBlocked:        false,
		},
		Cache: CacheConfig{
			Backend: BackendJSON,
			File:    "cache.json",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// PollInterval returns the normal delay between cycles
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.Interval) * time.Second
}

// EmptyCatalogBackoff returns the delay used after a cycle with no catalog
func (c *Config) EmptyCatalogBackoff() time.Duration {
	return time.Duration(c.Poll.EmptyCatalogBackoff) * time.Second
}

// LoadFromEnv loads configuration from CHANSCRAPER_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		v := os.Getenv(envPrefix + key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
			return
		}
		*dst = n
	}
	setDuration := func(key string, dst *time.Duration) {
		v := os.Getenv(envPrefix + key)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
			return
		}
		*dst = d
	}

	setString("BOARD", &c.Board.Name)
	setString("BASE_URL", &c.Board.BaseURL)
	setString("IMAGE_HOST", &c.Board.ImageHost)
	setInt("POLL_INTERVAL", &c.Poll.Interval)
	setInt("EMPTY_CATALOG_BACKOFF", &c.Poll.EmptyCatalogBackoff)
	setString("USER_AGENT", &c.HTTP.UserAgent)
	setDuration("HTTP_TIMEOUT", &c.HTTP.Timeout)
	setInt("REQUESTS_PER_SECOND", &c.HTTP.RequestsPerSecond)
	setString("MEDIA_DIR", &c.Download.MediaDir)
	setInt("CONCURRENT_DOWNLOADS", &c.Download.ConcurrentDownloads)
	setDuration("DOWNLOAD_TIMEOUT", &c.Download.Timeout)
	setString("CACHE_BACKEND", &c.Cache.Backend)
	setString("CACHE_FILE", &c.Cache.File)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	if v := os.Getenv(envPrefix + "RETRY_BLOCKED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sRETRY_BLOCKED: %w", envPrefix, err))
		} else {
			c.Download.RetryBlocked = b
		}
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".chanscraper.yaml",
		".chanscraper.yml",
	}
	if home != "" {
		locations = append(locations,
			filepath.Join(home, ".config", "chanscraper", "config.yaml"),
			filepath.Join(home, ".config", "chanscraper", "config.yml"),
		)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Board.Name == "" {
		errs = append(errs, errors.New("board name is required"))
	} else if strings.ContainsAny(c.Board.Name, `/\. `) {
		errs = append(errs, fmt.Errorf("invalid board name %q", c.Board.Name))
	}
	if c.Board.BaseURL == "" {
		errs = append(errs, errors.New("base URL is required"))
	}
	if c.Board.ImageHost == "" {
		errs = append(errs, errors.New("image host is required"))
	}

	if c.Poll.Interval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Poll.EmptyCatalogBackoff <= 0 {
		errs = append(errs, errors.New("empty catalog backoff must be positive"))
	}

	if c.HTTP.UserAgent == "" {
		errs = append(errs, errors.New("user agent is required"))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http timeout must be positive"))
	}
	if c.HTTP.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("requests per second cannot be negative"))
	}

	if c.Download.MediaDir == "" {
		errs = append(errs, errors.New("media directory is required"))
	}
	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 10"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	switch strings.ToLower(c.Cache.Backend) {
	case BackendJSON, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("invalid cache backend %q", c.Cache.Backend))
	}
	if c.Cache.File == "" {
		errs = append(errs, errors.New("cache file is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["board"].(string); ok && v != "" {
		c.Board.Name = v
	}
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.Board.BaseURL = v
	}
	if v, ok := flags["image-host"].(string); ok && v != "" {
		c.Board.ImageHost = v
	}
	if v, ok := flags["poll-interval"].(int); ok && v > 0 {
		c.Poll.Interval = v
	}
	if v, ok := flags["user-agent"].(string); ok && v != "" {
		c.HTTP.UserAgent = v
	}
	if v, ok := flags["media-dir"].(string); ok && v != "" {
		c.Download.MediaDir = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Download.ConcurrentDownloads = v
	}
	if v, ok := flags["retry-blocked"].(bool); ok {
		c.Download.RetryBlocked = v
	}
	if v, ok := flags["cache-file"].(string); ok && v != "" {
		c.Cache.File = v
	}
	if v, ok := flags["cache-backend"].(string); ok && v != "" {
		c.Cache.Backend = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".chanscraper.env"))
	}

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)
	config.Cache.Backend = strings.ToLower(config.Cache.Backend)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
