package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Feed   FeedConfig   `yaml:"feed"`
	Redis  RedisConfig  `yaml:"redis"`
	Gemini GeminiConfig `yaml:"gemini"`
	Export ExportConfig `yaml:"export"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"PORT"                    env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// FeedConfig holds settings for the upstream puzzle feed.
type FeedConfig struct {
	BaseURL        string        `yaml:"base_url"        env:"FEED_BASE_URL"        env-default:"https://nytsyn.pzzl.com/nytsyn-crossword-mh/nytsyncrossword"`
	MaxRetries     int           `yaml:"max_retries"     env:"FEED_MAX_RETRIES"     env-default:"5"`
	InitialBackoff time.Duration `yaml:"initial_backoff" env:"FEED_INITIAL_BACKOFF" env-default:"1s"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"FEED_REQUEST_TIMEOUT" env-default:"15s"`
}

// RedisConfig enables the blob cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"     env:"REDIS_ADDR"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"       env:"REDIS_DB"       env-default:"0"`
	TTL      time.Duration `yaml:"ttl"      env:"REDIS_TTL"      env-default:"720h"`
}

// GeminiConfig enables image import when ProjectID is set.
type GeminiConfig struct {
	ProjectID string `yaml:"project_id" env:"GEMINI_PROJECT_ID"`
	Region    string `yaml:"region"     env:"GEMINI_REGION"     env-default:"europe-west1"`
	Model     string `yaml:"model"      env:"GEMINI_MODEL"      env-default:"gemini-2.5-flash"`
}

// ExportConfig holds CSV export settings.
type ExportConfig struct {
	Concurrency int `yaml:"concurrency" env:"EXPORT_CONCURRENCY" env-default:"4"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults. The file path is path if non-empty, else
// CONFIG_PATH, else "./config.yaml"; a missing default file is not an error.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	explicitPath := path != ""
	if !explicitPath {
		path = "./config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}
	if u, err := url.Parse(c.Feed.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("feed.base_url: %q is not an absolute URL", c.Feed.BaseURL))
	}
	if c.Feed.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("feed.max_retries: must be at least 1, got %d", c.Feed.MaxRetries))
	}
	if c.Feed.InitialBackoff <= 0 {
		errs = append(errs, errors.New("feed.initial_backoff: must be positive"))
	}
	if c.Export.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("export.concurrency: must be at least 1, got %d", c.Export.Concurrency))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format: %q, expected json or console", c.Log.Format))
	}

	return errors.Join(errs...)
}
