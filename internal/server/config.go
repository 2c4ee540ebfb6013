// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the chat service.
package server

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
// RefillInterval accepts a Go duration ("500ms") or whole seconds ("1").
type RateLimitConfig struct {
	Burst          int           `env:"BURST" envDefault:"5"`
	RefillInterval time.Duration `env:"REFILL_INTERVAL" envDefault:"1s"`
}

// Config holds the server configuration settings including security controls
// and the room lifecycle policy.
type Config struct {
	Port            string          `env:"SERVER_PORT" envDefault:":8080"`
	AllowedOrigins  []string        `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:8080" envSeparator:","`
	MaxMessageSize  int64           `env:"MAX_MESSAGE_SIZE" envDefault:"4096"`
	MaxBodyLength   int             `env:"MAX_BODY_LENGTH" envDefault:"2000"`
	RateLimit       RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	SendBufferSize  int             `env:"SEND_BUFFER_SIZE" envDefault:"256"`
	ReapPolicy      string          `env:"ROOM_REAP_POLICY" envDefault:"reap"`
	HistoryLimit    int             `env:"HISTORY_LIMIT" envDefault:"50"`
	ShutdownTimeout time.Duration   `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string          `env:"LOG_LEVEL" envDefault:"INFO"`
}

const (
	defaultPort            = ":8080"
	defaultMaxMessageSize  = 4096
	defaultMaxBodyLength   = 2000
	defaultBurst           = 5
	defaultRefillInterval  = time.Second
	defaultSendBufferSize  = 256
	defaultHistoryLimit    = chat.DefaultHistoryLimit
	defaultShutdownTimeout = 10 * time.Second
)

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	var cfg Config
	// An empty environment leaves every field at its envDefault.
	opts := parseOptions()
	opts.Environment = map[string]string{}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Unset variables take their defaults and out-of-range values are reset to
// the default by Sanitize; malformed values are reported as errors.
func NewConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, parseOptions()); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	sanitized := Sanitize(cfg)
	return &sanitized, nil
}

func parseOptions() env.Options {
	return env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): parseDuration,
		},
	}
}

// parseDuration reads a Go duration, or a bare integer as seconds.
func parseDuration(v string) (any, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return nil, fmt.Errorf("invalid duration %q: %w", v, err)
	}
	return d, nil
}

// Sanitize replaces invalid values with their defaults.
func Sanitize(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	if cfg.MaxBodyLength <= 0 {
		cfg.MaxBodyLength = defaultMaxBodyLength
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultBurst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaultRefillInterval
	}

	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}

	if _, err := chat.ParseReapPolicy(cfg.ReapPolicy); err != nil {
		cfg.ReapPolicy = string(chat.ReapWhenEmpty)
	}

	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "INFO"
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}
