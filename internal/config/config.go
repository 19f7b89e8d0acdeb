package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Download DownloadConfig `yaml:"download"`
	Resolver ResolverConfig `yaml:"resolver"`
	API      APIConfig      `yaml:"api"`
	Engine   EngineConfig   `yaml:"engine"`
	History  HistoryConfig  `yaml:"history"`
}

// TelegramConfig holds bot transport configuration.
type TelegramConfig struct {
	Token          string        `yaml:"token" envconfig:"TELEGRAM_TOKEN"`
	UpdateTimeout  int           `yaml:"update_timeout" envconfig:"TELEGRAM_UPDATE_TIMEOUT" default:"30"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"TELEGRAM_REQUEST_TIMEOUT" default:"5m"`
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"8642"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"5m"`
}

// StorageConfig holds scratch storage configuration. Every artifact a
// request produces lives under TempPath, named by the request ID, and
// is removed by the end of the request.
type StorageConfig struct {
	TempPath string `yaml:"temp_path" envconfig:"STORAGE_TEMP_PATH" default:"downloads"`
}

// DownloadConfig holds asset fetcher configuration.
type DownloadConfig struct {
	Timeout   time.Duration `yaml:"timeout" envconfig:"DOWNLOAD_TIMEOUT" default:"15s"`
	UserAgent string        `yaml:"user_agent" envconfig:"DOWNLOAD_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"`
	Referer   string        `yaml:"referer" envconfig:"DOWNLOAD_REFERER" default:"https://www.tiktok.com/"`
}

// ResolverConfig holds the retry policy the orchestrator applies around
// the extraction engine tier.
type ResolverConfig struct {
	MaxAttempts   int           `yaml:"max_attempts" envconfig:"RESOLVER_MAX_ATTEMPTS" default:"3"`
	RetryDelay    time.Duration `yaml:"retry_delay" envconfig:"RESOLVER_RETRY_DELAY" default:"2s"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" envconfig:"RESOLVER_MAX_RETRY_DELAY" default:"30s"`
	BackoffFactor float64       `yaml:"backoff_factor" envconfig:"RESOLVER_BACKOFF_FACTOR" default:"2.0"`
}

// APIConfig holds the third-party resolution API fallback configuration.
type APIConfig struct {
	Endpoint string        `yaml:"endpoint" envconfig:"RESOLVE_API_ENDPOINT" default:"https://www.tikwm.com/api/"`
	HD       bool          `yaml:"hd" envconfig:"RESOLVE_API_HD" default:"true"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"RESOLVE_API_TIMEOUT" default:"20s"`
}

// EngineConfig holds the external media-extraction engine configuration.
// The engine is invoked as a black box with declarative options.
type EngineConfig struct {
	BinPath     string        `yaml:"bin_path" envconfig:"ENGINE_BIN" default:"yt-dlp"`
	Format      string        `yaml:"format" envconfig:"ENGINE_FORMAT" default:"bestvideo[height<=720]+bestaudio/best[height<=720]/best"`
	MergeFormat string        `yaml:"merge_format" envconfig:"ENGINE_MERGE_FORMAT" default:"mp4"`
	CookiesFile string        `yaml:"cookies_file" envconfig:"ENGINE_COOKIES_FILE"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"ENGINE_TIMEOUT" default:"3m"`
}

// HistoryConfig holds the delivery log / duplicate cache configuration.
type HistoryConfig struct {
	Path         string        `yaml:"path" envconfig:"HISTORY_PATH" default:"tikrelay.db"`
	DuplicateTTL time.Duration `yaml:"duplicate_ttl" envconfig:"HISTORY_DUPLICATE_TTL" default:"24h"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Storage.TempPath == "" {
		return fmt.Errorf("STORAGE_TEMP_PATH is required")
	}
	if c.Resolver.MaxAttempts <= 0 {
		return fmt.Errorf("RESOLVER_MAX_ATTEMPTS must be positive")
	}
	if c.API.Endpoint == "" {
		return fmt.Errorf("RESOLVE_API_ENDPOINT is required")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
