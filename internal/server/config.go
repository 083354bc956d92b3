package server

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHost           = "0.0.0.0"
	defaultPort           = "8000"
	defaultQuestionsFile  = "questions.json"
	defaultMaxMessageSize = 4096
	defaultSendBufferSize = 256
	defaultWriteTimeout   = 10 * time.Second
	defaultRateBurst      = 10
	defaultRateInterval   = time.Second
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the relay configuration. It is built once at startup and
// handed to NewHub; nothing reads it from package state.
type Config struct {
	Host           string
	Port           string
	QuestionsFile  string
	AllowedOrigins []string
	MaxMessageSize int64
	SendBufferSize int
	WriteTimeout   time.Duration
	RateLimit      RateLimitConfig
}

func defaultConfig() Config {
	return Config{
		Host:           defaultHost,
		Port:           defaultPort,
		QuestionsFile:  defaultQuestionsFile,
		AllowedOrigins: []string{"*"},
		MaxMessageSize: defaultMaxMessageSize,
		SendBufferSize: defaultSendBufferSize,
		WriteTimeout:   defaultWriteTimeout,
		RateLimit: RateLimitConfig{
			Burst:          defaultRateBurst,
			RefillInterval: defaultRateInterval,
		},
	}
}

// Sanitize returns a copy of cfg with every unset or invalid field replaced by its default.
func (cfg Config) Sanitize() Config {
	cfg.Port = parsePort(cfg.Port, defaultPort)

	if cfg.QuestionsFile == "" {
		cfg.QuestionsFile = defaultQuestionsFile
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultRateBurst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaultRateInterval
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	return cfg
}

// Addr returns the host:port the HTTP server should bind to. An empty Host
// binds on all interfaces.
func (cfg Config) Addr() string {
	return net.JoinHostPort(cfg.Host, cfg.Port)
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set or invalid.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if host, ok := os.LookupEnv("HOST"); ok {
		cfg.Host = strings.TrimSpace(host)
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = parsePort(port, cfg.Port)
	}

	if file := os.Getenv("QUESTIONS_FILE"); file != "" {
		cfg.QuestionsFile = file
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = ParseOrigins(origins)
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	if size := os.Getenv("SEND_BUFFER_SIZE"); size != "" {
		cfg.SendBufferSize = parseIntValue(size, cfg.SendBufferSize)
	}

	if timeout := os.Getenv("WRITE_TIMEOUT"); timeout != "" {
		cfg.WriteTimeout = parseSeconds(timeout, cfg.WriteTimeout)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval)
	}

	return &cfg
}

// ParseOrigins splits a comma separated origin list.
func ParseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parsePort(value, defaultValue string) string {
	value = strings.TrimPrefix(strings.TrimSpace(value), ":")
	if n, err := strconv.Atoi(value); err == nil && n > 0 && n <= 65535 {
		return value
	}
	return defaultValue
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
