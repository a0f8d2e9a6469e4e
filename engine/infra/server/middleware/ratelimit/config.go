package ratelimit

import (
	"fmt"
	"time"

	"github.com/minutemate/minutemate/engine/infra/server/routes"
	"github.com/minutemate/minutemate/pkg/config"
	"github.com/ulule/limiter/v3"
)

// Config represents rate limiting configuration
type Config struct {
	Rate     RateConfig
	Prefix   string
	MaxRetry int
	// Requests whose path starts with one of these prefixes are never limited.
	ExcludedPaths []string
}

// RateConfig represents a single rate limit configuration
type RateConfig struct {
	Period time.Duration
	Limit  int64
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() *Config {
	return &Config{
		Rate:     RateConfig{Limit: 60, Period: time.Minute},
		Prefix:   "minutemate:ratelimit:",
		MaxRetry: 3,
		ExcludedPaths: []string{
			routes.Metrics(),
			routes.HealthVersioned(),
		},
	}
}

// ConfigFrom builds a limiter config from the server settings.
func ConfigFrom(cfg *config.RateLimitConfig) *Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}
	if cfg.Limit > 0 {
		out.Rate.Limit = cfg.Limit
	}
	if cfg.Period > 0 {
		out.Rate.Period = cfg.Period
	}
	return out
}

// ToLimiterRate converts RateConfig to limiter.Rate
func (rc RateConfig) ToLimiterRate() limiter.Rate {
	return limiter.Rate{
		Period: rc.Period,
		Limit:  rc.Limit,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Rate.Limit <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.Rate.Period <= 0 {
		return fmt.Errorf("rate limit period must be positive")
	}
	return nil
}
