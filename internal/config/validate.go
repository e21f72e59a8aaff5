package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ValidateServer checks governor-side config for production-critical problems.
// It collects all errors into a single joined error so the process refuses to
// start half-configured.
func (c *Config) ValidateServer() error {
	var errs []string

	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	if c.Governor.RateLimitRequests < 1 {
		errs = append(errs, fmt.Sprintf("GOVERNOR_RATE_LIMIT_REQUESTS must be positive, got %d", c.Governor.RateLimitRequests))
	}
	if c.Governor.RateLimitWindow < time.Second {
		errs = append(errs, fmt.Sprintf("GOVERNOR_RATE_LIMIT_WINDOW must be at least 1s, got %s", c.Governor.RateLimitWindow))
	}
	if c.Governor.SuggestTimeout <= 0 {
		errs = append(errs, "GOVERNOR_SUGGEST_TIMEOUT must be positive")
	}

	if c.AI.APIKey == "" {
		errs = append(errs, "AI_API_KEY is required")
	}
	if c.Paddle.WebhookSecret == "" {
		errs = append(errs, "PADDLE_WEBHOOK_SECRET is required")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}

// ValidateScheduler checks daemon-side config. The tick interval floor is
// enforced here rather than clamped: a sub-floor interval means the operator
// misconfigured the daemon and it must not start.
func (c *Config) ValidateScheduler() error {
	var errs []string

	if c.Scheduler.TickInterval < MinTickInterval {
		errs = append(errs, fmt.Sprintf("SCHEDULER_TICK_INTERVAL must be at least %s, got %s",
			MinTickInterval, c.Scheduler.TickInterval))
	}

	if len(c.Scheduler.NudgeIntervals) == 0 {
		errs = append(errs, "SCHEDULER_NUDGE_INTERVALS must not be empty")
	}
	for i, d := range c.Scheduler.NudgeIntervals {
		if d <= 0 {
			errs = append(errs, fmt.Sprintf("SCHEDULER_NUDGE_INTERVALS entry %d must be positive, got %s", i, d))
		}
		if i > 0 && d < c.Scheduler.NudgeIntervals[i-1] {
			errs = append(errs, fmt.Sprintf("SCHEDULER_NUDGE_INTERVALS must be ascending, entry %d (%s) < entry %d (%s)",
				i, d, i-1, c.Scheduler.NudgeIntervals[i-1]))
		}
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
