// Package config loads application configuration from environment
// variables, an optional .env file, and an optional YAML file.
// Environment variables win over file values.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Database DatabaseConfig `yaml:"database" envconfig:"DATABASE"`
	Auth     AuthConfig     `yaml:"auth" envconfig:"AUTH"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Upload   UploadConfig   `yaml:"upload" envconfig:"UPLOAD"`
	Datasets DatasetsConfig `yaml:"datasets" envconfig:"DATASETS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig contains SQLite configuration
type DatabaseConfig struct {
	// No envconfig tag: a bare PATH alias would shadow the system PATH.
	Path string `yaml:"path"`
}

// AuthConfig contains token issuing configuration
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl" envconfig:"TOKEN_TTL"`
}

// SecurityConfig contains rate limiting and CORS configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// UploadConfig bounds incoming files
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes" envconfig:"MAX_BYTES"`
}

// DatasetsConfig controls per-user dataset retention
type DatasetsConfig struct {
	Keep int `yaml:"keep" envconfig:"KEEP"`
}

// Load loads configuration from .env, environment variables, and an
// optional YAML file pointed at by EQUIVIZ_CONFIG_FILE (default
// config.yaml).
func Load() (*Config, error) {
	// Missing .env is fine; it only exists in development.
	_ = godotenv.Load()

	cfg := Default()

	configFile := os.Getenv("EQUIVIZ_CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}
	if data, err := os.ReadFile(configFile); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configFile, err)
		}
	}

	if err := envconfig.Process("EQUIVIZ", cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in defaults without reading the
// environment. Auth.JWTSecret is intentionally empty; validate
// requires it to be set before serving.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{Path: "data/equiviz.db"},
		Auth:     AuthConfig{TokenTTL: 24 * time.Hour},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			RateLimit:      RateLimitConfig{Enabled: true, RPS: 100, Burst: 50},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Upload:   UploadConfig{MaxBytes: 10 << 20},
		Datasets: DatasetsConfig{Keep: 5},
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt secret is required (set EQUIVIZ_AUTH_JWT_SECRET)")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token ttl must be positive")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}
	if c.Datasets.Keep < 1 {
		return fmt.Errorf("datasets keep must be at least 1")
	}
	if c.Security.RateLimit.Enabled {
		if c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst < 1 {
			return fmt.Errorf("invalid rate limit: rps=%v burst=%d",
				c.Security.RateLimit.RPS, c.Security.RateLimit.Burst)
		}
	}
	return nil
}
