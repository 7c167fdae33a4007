// Package config loads service configuration from a YAML file with
// environment-variable overrides. Secrets live in env vars (or a local
// .env file); the YAML carries everything an operator may tune, including
// the drip cadence file path.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service.
type Config struct {
	Server      ServerConfig     `yaml:"server"`
	Automation  AutomationConfig `yaml:"automation"`
	Transport   TransportConfig  `yaml:"transport"`
	Redis       RedisConfig      `yaml:"redis"`
	Database    DatabaseConfig   `yaml:"database"`
	Environment string           `yaml:"environment"`
	LogLevel    string           `yaml:"log_level"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AutomationConfig holds scheduler settings.
type AutomationConfig struct {
	TickIntervalSeconds int    `yaml:"tick_interval_seconds"`
	MaxAttempts         int    `yaml:"max_attempts"`
	SequencePath        string `yaml:"sequence_path"`
}

// TickInterval returns the scheduler poll interval as a duration.
func (c AutomationConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// TransportConfig selects and configures the delivery provider.
type TransportConfig struct {
	// Provider is "log", "ses", or "sparkpost".
	Provider  string          `yaml:"provider"`
	FromEmail string          `yaml:"from_email"`
	FromName  string          `yaml:"from_name"`
	SES       SESConfig       `yaml:"ses"`
	SparkPost SparkPostConfig `yaml:"sparkpost"`
}

// SESConfig holds AWS SES credentials.
type SESConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// SparkPostConfig holds SparkPost API settings.
type SparkPostConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// RedisConfig holds the optional Redis connection, used for the subscribe
// rate limiter and the scheduler tick lock. An empty Addr disables both.
type RedisConfig struct {
	Addr                   string `yaml:"addr"`
	SubscribeLimit         int    `yaml:"subscribe_limit"`
	SubscribeWindowSeconds int    `yaml:"subscribe_window_seconds"`
}

// SubscribeWindow returns the rate limit window as a duration.
func (c RedisConfig) SubscribeWindow() time.Duration {
	return time.Duration(c.SubscribeWindowSeconds) * time.Second
}

// DatabaseConfig holds the optional PostgreSQL connection. An empty URL
// selects the in-memory store.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// Load reads configuration from a YAML file and applies defaults.
// An empty path skips the file and returns pure defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Automation.TickIntervalSeconds == 0 {
		cfg.Automation.TickIntervalSeconds = 60
	}
	if cfg.Automation.MaxAttempts == 0 {
		cfg.Automation.MaxAttempts = 5
	}
	if cfg.Transport.Provider == "" {
		cfg.Transport.Provider = "log"
	}
	if cfg.Transport.FromEmail == "" {
		cfg.Transport.FromEmail = "hello@mail.leadflow.dev"
	}
	if cfg.Transport.FromName == "" {
		cfg.Transport.FromName = "Leadflow"
	}
	if cfg.Transport.SES.Region == "" {
		cfg.Transport.SES.Region = "us-east-1"
	}
	if cfg.Redis.SubscribeLimit == 0 {
		cfg.Redis.SubscribeLimit = 10
	}
	if cfg.Redis.SubscribeWindowSeconds == 0 {
		cfg.Redis.SubscribeWindowSeconds = 3600
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file (if present) is loaded first, so secrets can live in .env
// locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TRANSPORT_PROVIDER"); v != "" {
		cfg.Transport.Provider = v
	}
	if v := os.Getenv("FROM_EMAIL"); v != "" {
		cfg.Transport.FromEmail = v
	}
	if v := os.Getenv("FROM_NAME"); v != "" {
		cfg.Transport.FromName = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Transport.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Transport.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Transport.SES.Region = v
	}
	if v := os.Getenv("SPARKPOST_API_KEY"); v != "" {
		cfg.Transport.SparkPost.APIKey = v
	}
	if v := os.Getenv("SPARKPOST_BASE_URL"); v != "" {
		cfg.Transport.SparkPost.BaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("SEQUENCE_PATH"); v != "" {
		cfg.Automation.SequencePath = v
	}

	return cfg, nil
}
