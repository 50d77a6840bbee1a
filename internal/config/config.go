package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingSelfUser = errors.New("self user id is required")
	ErrMissingTenant   = errors.New("tenant code is required")
	ErrMissingURL      = errors.New("api and websocket urls are required")
)

type Config struct {
	Session   SessionConfig   `yaml:"session"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	AMQP      AMQPConfig      `yaml:"amqp"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type SessionConfig struct {
	SelfUserID  string `yaml:"self_user_id"`
	TenantCode  string `yaml:"tenant_code"`
	Environment string `yaml:"environment"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type WebSocketConfig struct {
	URL          string        `yaml:"url"`
	PingInterval time.Duration `yaml:"ping_interval"`
	Backoff      BackoffConfig `yaml:"backoff"`
}

type BackoffConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	Multiplier      float64       `yaml:"multiplier"`
	Jitter          float64       `yaml:"jitter"`
	MaxRetries      uint64        `yaml:"max_retries"`
}

type BridgeConfig struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"`
	Debug bool   `yaml:"debug"`
}

type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type TracingConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Session: SessionConfig{Environment: "local"},
		API:     APIConfig{Timeout: 10 * time.Second},
		WebSocket: WebSocketConfig{
			PingInterval: 30 * time.Second,
			Backoff: BackoffConfig{
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     30 * time.Second,
				Multiplier:      2,
				Jitter:          0.5,
				MaxRetries:      10,
			},
		},
		Bridge:  BridgeConfig{Addr: "127.0.0.1:8090"},
		AMQP:    AMQPConfig{Exchange: "chat_client.events"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads an optional .env file, the YAML file at path (if non-empty) and
// then applies environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Session.SelfUserID = getEnv("CHAT_SELF_USER_ID", c.Session.SelfUserID)
	c.Session.TenantCode = getEnv("CHAT_TENANT_CODE", c.Session.TenantCode)
	c.Session.Environment = getEnv("CHAT_ENVIRONMENT", c.Session.Environment)
	c.API.BaseURL = getEnv("CHAT_API_BASE_URL", c.API.BaseURL)
	c.API.Token = getEnv("CHAT_API_TOKEN", c.API.Token)
	c.API.Timeout = getEnvDuration("CHAT_API_TIMEOUT", c.API.Timeout)
	c.WebSocket.URL = getEnv("CHAT_WS_URL", c.WebSocket.URL)
	c.WebSocket.PingInterval = getEnvDuration("CHAT_WS_PING_INTERVAL", c.WebSocket.PingInterval)
	c.WebSocket.Backoff.InitialInterval = getEnvDuration("CHAT_WS_BACKOFF_INITIAL", c.WebSocket.Backoff.InitialInterval)
	c.WebSocket.Backoff.MaxInterval = getEnvDuration("CHAT_WS_BACKOFF_MAX", c.WebSocket.Backoff.MaxInterval)
	c.WebSocket.Backoff.Multiplier = getEnvFloat("CHAT_WS_BACKOFF_MULTIPLIER", c.WebSocket.Backoff.Multiplier)
	c.WebSocket.Backoff.Jitter = getEnvFloat("CHAT_WS_BACKOFF_JITTER", c.WebSocket.Backoff.Jitter)
	c.WebSocket.Backoff.MaxRetries = getEnvUint("CHAT_WS_BACKOFF_MAX_RETRIES", c.WebSocket.Backoff.MaxRetries)
	c.Bridge.Addr = getEnv("BRIDGE_ADDR", c.Bridge.Addr)
	c.Bridge.Token = getEnv("BRIDGE_TOKEN", c.Bridge.Token)
	c.Bridge.Debug = getEnvBool("BRIDGE_DEBUG", c.Bridge.Debug)
	c.AMQP.URL = getEnv("AMQP_URL", c.AMQP.URL)
	c.AMQP.Exchange = getEnv("AMQP_EXCHANGE", c.AMQP.Exchange)
	c.Tracing.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.OTLPEndpoint)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
}

// Validate checks the fields the chat core cannot run without.
func (c *Config) Validate() error {
	if c.Session.SelfUserID == "" {
		return ErrMissingSelfUser
	}
	if c.Session.TenantCode == "" {
		return ErrMissingTenant
	}
	if c.API.BaseURL == "" || c.WebSocket.URL == "" {
		return ErrMissingURL
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvUint(key string, fallback uint64) uint64 {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseUint(val, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
