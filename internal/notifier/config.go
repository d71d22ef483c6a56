package notifier

import (
	"time"

	"releaser/internal/config"
)

// Hardcoded delivery defaults - these rarely need tuning.
const (
	defaultMaxRetries       = 3
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
	deliverTimeout          = 30 * time.Second
)

// Config holds configuration for the webhook notifier.
type Config struct {
	URL         string        // webhook destination; empty disables notifications
	SigningKey  string        // HMAC key for signing, empty = no signing
	EventTypes  []string      // event type filter; empty = all
	HTTPTimeout time.Duration // per-request timeout (default: 10s)
	BufferSize  int           // pending events buffer (default: 64)
	Workers     int           // concurrent delivery goroutines (default: 2)
}

// LoadConfigFromEnv loads notifier configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		URL:         config.GetEnv("NOTIFY_URL", ""),
		SigningKey:  config.GetEnv("NOTIFY_SIGNING_KEY", ""),
		EventTypes:  config.GetListEnv("NOTIFY_EVENTS"),
		HTTPTimeout: config.GetDurationEnv("NOTIFY_TIMEOUT", 10*time.Second),
		BufferSize:  config.GetIntEnv("NOTIFY_BUFFER_SIZE", 64),
		Workers:     config.GetIntEnv("NOTIFY_WORKERS", 2),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 64
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	return c
}
