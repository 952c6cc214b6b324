package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all client configuration.
type Config struct {
	Server    ServerConfig
	Session   SessionConfig
	Reconnect ReconnectConfig
	REST      RESTConfig
	Logging   LogConfig
	Metrics   MetricsConfig
}

// ServerConfig holds the chat backend location.
type ServerConfig struct {
	BaseURL string `envconfig:"CHAT_BASE_URL" default:"http://localhost:8888"`
}

// SessionConfig holds streaming session settings.
type SessionConfig struct {
	ConnectTimeout    time.Duration `envconfig:"CHAT_CONNECT_TIMEOUT" default:"5s"`
	HandshakeTimeout  time.Duration `envconfig:"CHAT_HANDSHAKE_TIMEOUT" default:"10s"`
	KeepaliveInterval time.Duration `envconfig:"CHAT_KEEPALIVE_INTERVAL" default:"30s"`
	MaxMessageSize    int64         `envconfig:"CHAT_MAX_MESSAGE_SIZE" default:"4194304"`
}

// ReconnectConfig holds reconnection backoff settings.
type ReconnectConfig struct {
	BaseDelay   time.Duration `envconfig:"RECONNECT_BASE_DELAY" default:"1s"`
	MaxDelay    time.Duration `envconfig:"RECONNECT_MAX_DELAY" default:"10s"`
	MaxAttempts int           `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"3"`
}

// RESTConfig holds conversation API client settings.
type RESTConfig struct {
	Timeout           time.Duration `envconfig:"REST_TIMEOUT" default:"30s"`
	RetryMax          int           `envconfig:"REST_RETRY_MAX" default:"3"`
	RetryWaitMin      time.Duration `envconfig:"REST_RETRY_WAIT_MIN" default:"1s"`
	RetryWaitMax      time.Duration `envconfig:"REST_RETRY_WAIT_MAX" default:"30s"`
	RequestsPerSecond float64       `envconfig:"REST_RATE_LIMIT_RPS" default:"0"`
	BreakerThreshold  uint32        `envconfig:"REST_BREAKER_THRESHOLD" default:"5"`
	BreakerTimeout    time.Duration `envconfig:"REST_BREAKER_TIMEOUT" default:"30s"`
	AuthToken         string        `envconfig:"CHAT_API_TOKEN"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// MetricsConfig holds the optional Prometheus listener.
type MetricsConfig struct {
	Address string `envconfig:"METRICS_ADDR" default:""`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
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

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8888",
		},
		Session: SessionConfig{
			ConnectTimeout:    5 * time.Second,
			HandshakeTimeout:  10 * time.Second,
			KeepaliveInterval: 30 * time.Second,
			MaxMessageSize:    4 * 1024 * 1024,
		},
		Reconnect: ReconnectConfig{
			BaseDelay:   time.Second,
			MaxDelay:    10 * time.Second,
			MaxAttempts: 3,
		},
		REST: RESTConfig{
			Timeout:      30 * time.Second,
			RetryMax:     3,
			RetryWaitMin: time.Second,
			RetryWaitMax: 30 * time.Second,

			BreakerThreshold: 5,
			BreakerTimeout:   30 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Validate rejects settings the session controllers cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid CHAT_BASE_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("CHAT_BASE_URL must use http or https, got %q", u.Scheme)
	}
	if c.Session.ConnectTimeout <= 0 {
		return fmt.Errorf("CHAT_CONNECT_TIMEOUT must be positive")
	}
	if c.Session.KeepaliveInterval <= 0 {
		return fmt.Errorf("CHAT_KEEPALIVE_INTERVAL must be positive")
	}
	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("RECONNECT_MAX_ATTEMPTS cannot be negative")
	}
	if c.Reconnect.BaseDelay <= 0 || c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect delays must satisfy 0 < base <= max")
	}
	return nil
}
