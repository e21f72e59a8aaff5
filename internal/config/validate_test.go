package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		DB: DBConfig{
			Host: "localhost", Port: 5432, User: "remind",
			Password: "secret", Name: "remind", SSLMode: "disable", MaxConns: 25,
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Governor: GovernorConfig{
			RateLimitRequests: 10,
			RateLimitWindow:   60 * time.Second,
			SuggestTimeout:    30 * time.Second,
			WebhookRateLimit:  30,
		},
		Scheduler: SchedulerConfig{
			TickInterval:   60 * time.Second,
			NudgeIntervals: []time.Duration{5 * time.Minute, 15 * time.Minute, 60 * time.Minute},
		},
		AI:     AIConfig{APIKey: "sk-test", Model: "gpt-5-nano"},
		Paddle: PaddleConfig{WebhookSecret: "whsec"},
	}
}

func TestValidateServer_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidateServer_DBPasswordRequired(t *testing.T) {
	cfg := validConfig()
	cfg.DB.Password = ""
	err := cfg.ValidateServer()
	if err == nil || !strings.Contains(err.Error(), "DB_PASSWORD") {
		t.Fatalf("expected DB_PASSWORD error, got: %v", err)
	}
}

func TestValidateServer_InvalidPorts(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.DB.Port = 99999
	err := cfg.ValidateServer()
	if err == nil {
		t.Fatal("expected port validation errors")
	}
	if !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Errorf("expected SERVER_PORT error in: %v", err)
	}
	if !strings.Contains(err.Error(), "DB_PORT") {
		t.Errorf("expected DB_PORT error in: %v", err)
	}
}

func TestValidateServer_RateLimitRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Governor.RateLimitRequests = 0
	cfg.Governor.RateLimitWindow = 0
	err := cfg.ValidateServer()
	if err == nil {
		t.Fatal("expected rate limit validation errors")
	}
	if !strings.Contains(err.Error(), "GOVERNOR_RATE_LIMIT_REQUESTS") {
		t.Errorf("expected GOVERNOR_RATE_LIMIT_REQUESTS error in: %v", err)
	}
	if !strings.Contains(err.Error(), "GOVERNOR_RATE_LIMIT_WINDOW") {
		t.Errorf("expected GOVERNOR_RATE_LIMIT_WINDOW error in: %v", err)
	}
}

func TestValidateScheduler_TickIntervalFloor(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduler.TickInterval = 10 * time.Second
	err := cfg.ValidateScheduler()
	if err == nil || !strings.Contains(err.Error(), "SCHEDULER_TICK_INTERVAL") {
		t.Fatalf("expected SCHEDULER_TICK_INTERVAL floor error, got: %v", err)
	}
}

func TestValidateScheduler_TickIntervalAtFloor(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduler.TickInterval = MinTickInterval
	if err := cfg.ValidateScheduler(); err != nil {
		t.Fatalf("expected 30s interval to be accepted, got: %v", err)
	}
}

func TestValidateScheduler_NudgeIntervalsAscending(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduler.NudgeIntervals = []time.Duration{15 * time.Minute, 5 * time.Minute}
	err := cfg.ValidateScheduler()
	if err == nil || !strings.Contains(err.Error(), "ascending") {
		t.Fatalf("expected ascending error, got: %v", err)
	}
}

func TestValidateScheduler_NudgeIntervalsEmpty(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduler.NudgeIntervals = nil
	err := cfg.ValidateScheduler()
	if err == nil || !strings.Contains(err.Error(), "SCHEDULER_NUDGE_INTERVALS") {
		t.Fatalf("expected SCHEDULER_NUDGE_INTERVALS error, got: %v", err)
	}
}

func TestParseNudgeIntervals_Default(t *testing.T) {
	got, err := parseNudgeIntervals("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{5 * time.Minute, 15 * time.Minute, 60 * time.Minute}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestParseNudgeIntervals_Custom(t *testing.T) {
	got, err := parseNudgeIntervals("2m, 10m ,1h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{2 * time.Minute, 10 * time.Minute, time.Hour}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestParseNudgeIntervals_Invalid(t *testing.T) {
	if _, err := parseNudgeIntervals("5m,banana"); err == nil {
		t.Fatal("expected parse error")
	}
}
