// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Venue settings — which execution backend the reference dispatcher
	// talks to.
	Venue            string // "mock" or "openai"
	VenueBaseURL     string
	VenueAPIKey      string
	VenueModel       string
	VenueConcurrency int // max in-flight sub-queries per batch

	// Collection defaults, used when a request omits its own policies.
	CollectTimeout  time.Duration
	PerQueryTimeout time.Duration
	QuorumFraction  float64

	// Scheduler settings.
	InboxSize int

	// Archive settings. Empty path disables the SQLite result archive.
	ArchivePath string

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Rate limiting (per client IP, in-process token bucket).
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("OGI_PORT", 8080),
		ReadTimeout:         envDuration("OGI_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("OGI_WRITE_TIMEOUT", 120*time.Second),
		Venue:               envStr("OGI_VENUE", "mock"),
		VenueBaseURL:        envStr("OGI_VENUE_BASE_URL", "https://api.openai.com"),
		VenueAPIKey:         envStr("OPENAI_API_KEY", ""),
		VenueModel:          envStr("OGI_VENUE_MODEL", "gpt-4o-mini"),
		VenueConcurrency:    envInt("OGI_VENUE_CONCURRENCY", 8),
		CollectTimeout:      envDuration("OGI_COLLECT_TIMEOUT", 60*time.Second),
		PerQueryTimeout:     envDuration("OGI_PER_QUERY_TIMEOUT", 2*time.Second),
		QuorumFraction:      envFloat("OGI_QUORUM_FRACTION", 1.0),
		InboxSize:           envInt("OGI_INBOX_SIZE", 256),
		ArchivePath:         envStr("OGI_ARCHIVE_PATH", ""),
		RateLimitEnabled:    envBool("OGI_RATE_LIMIT_ENABLED", false),
		RateLimitRPS:        envFloat("OGI_RATE_LIMIT_RPS", 10),
		RateLimitBurst:      envInt("OGI_RATE_LIMIT_BURST", 30),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "ogi"),
		LogLevel:            envStr("OGI_LOG_LEVEL", "info"),
		MaxRequestBodyBytes: int64(envInt("OGI_MAX_REQUEST_BODY_BYTES", 4*1024*1024)), // 4 MB default
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and coherent.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: OGI_PORT must be in (0, 65535]")
	}
	if c.Venue != "mock" && c.Venue != "openai" {
		return fmt.Errorf("config: OGI_VENUE must be \"mock\" or \"openai\" (got %q)", c.Venue)
	}
	if c.Venue == "openai" && c.VenueAPIKey == "" {
		return fmt.Errorf("config: OPENAI_API_KEY is required when OGI_VENUE=openai")
	}
	if c.VenueConcurrency <= 0 {
		return fmt.Errorf("config: OGI_VENUE_CONCURRENCY must be positive")
	}
	if c.CollectTimeout <= 0 || c.PerQueryTimeout <= 0 {
		return fmt.Errorf("config: collection timeouts must be positive")
	}
	if c.QuorumFraction < 0 || c.QuorumFraction > 1 {
		return fmt.Errorf("config: OGI_QUORUM_FRACTION must be in [0, 1]")
	}
	if c.InboxSize <= 0 {
		return fmt.Errorf("config: OGI_INBOX_SIZE must be positive")
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("config: OGI_RATE_LIMIT_RPS and OGI_RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: OGI_MAX_REQUEST_BODY_BYTES must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
