package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	Governor  GovernorConfig
	Scheduler SchedulerConfig
	AI        AIConfig
	Paddle    PaddleConfig
	SMTP      SMTPConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GovernorConfig controls the per-token rate window on the backend.
type GovernorConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	SuggestTimeout    time.Duration
	WebhookRateLimit  int
}

// SchedulerConfig controls the client-side reminder daemon.
type SchedulerConfig struct {
	TickInterval   time.Duration
	NudgeIntervals []time.Duration
	DBPath         string
	LicensePath    string
	BackendURL     string
}

type AIConfig struct {
	APIKey string
	Model  string
}

type PaddleConfig struct {
	WebhookSecret  string
	ProductMapping map[string]string
}

// SMTPConfig is optional. With no credentials configured, license emails are
// logged instead of sent.
type SMTPConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	FromEmail string
}

func (c SMTPConfig) Configured() bool {
	return c.User != "" && c.Password != "" && c.FromEmail != ""
}

type LogConfig struct {
	Level  string
	Format string
}

// MinTickInterval is the floor for the scheduler poll interval. Values below
// it are a configuration error, not a clamp.
const MinTickInterval = 30 * time.Second

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		Governor: GovernorConfig{
			RateLimitRequests: k.Int("governor.rate.limit.requests"),
			WebhookRateLimit:  k.Int("governor.webhook.rate.limit"),
		},
		Scheduler: SchedulerConfig{
			DBPath:      k.String("scheduler.db.path"),
			LicensePath: k.String("scheduler.license.path"),
			BackendURL:  k.String("scheduler.backend.url"),
		},
		AI: AIConfig{
			APIKey: k.String("ai.api.key"),
			Model:  k.String("ai.model"),
		},
		Paddle: PaddleConfig{
			WebhookSecret: k.String("paddle.webhook.secret"),
		},
		SMTP: SMTPConfig{
			Host:      k.String("smtp.host"),
			Port:      k.Int("smtp.port"),
			User:      k.String("smtp.user"),
			Password:  k.String("smtp.password"),
			FromEmail: k.String("smtp.from.email"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "remind"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "remind"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Governor.RateLimitRequests == 0 {
		cfg.Governor.RateLimitRequests = 10
	}
	if cfg.Governor.WebhookRateLimit == 0 {
		cfg.Governor.WebhookRateLimit = 30
	}
	if cfg.Scheduler.DBPath == "" {
		cfg.Scheduler.DBPath = defaultRemindPath("reminders.db")
	}
	if cfg.Scheduler.LicensePath == "" {
		cfg.Scheduler.LicensePath = defaultRemindPath("license.json")
	}
	if cfg.SMTP.Host == "" {
		cfg.SMTP.Host = "localhost"
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gpt-5-nano"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	cfg.Governor.RateLimitWindow, err = parseDuration(k, "governor.rate.limit.window", "60s")
	if err != nil {
		return nil, err
	}
	cfg.Governor.SuggestTimeout, err = parseDuration(k, "governor.suggest.timeout", "30s")
	if err != nil {
		return nil, err
	}
	cfg.Scheduler.TickInterval, err = parseDuration(k, "scheduler.tick.interval", "60s")
	if err != nil {
		return nil, err
	}

	cfg.Scheduler.NudgeIntervals, err = parseNudgeIntervals(k.String("scheduler.nudge.intervals"))
	if err != nil {
		return nil, err
	}

	cfg.Paddle.ProductMapping = parseProductMapping(k.String("paddle.product.mapping"))

	return cfg, nil
}

func parseDuration(k *koanf.Koanf, key, def string) (time.Duration, error) {
	s := k.String(key)
	if s == "" {
		s = def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

// parseNudgeIntervals parses a comma-separated list of durations,
// e.g. "5m,15m,1h". Empty input yields the default [5m 15m 60m].
func parseNudgeIntervals(s string) ([]time.Duration, error) {
	if s == "" {
		return []time.Duration{5 * time.Minute, 15 * time.Minute, 60 * time.Minute}, nil
	}
	parts := strings.Split(s, ",")
	intervals := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("parsing scheduler.nudge.intervals entry %q: %w", p, err)
		}
		intervals = append(intervals, d)
	}
	return intervals, nil
}

func defaultRemindPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".remind", name)
}

// parseProductMapping parses "product_id:tier,product_id:tier" pairs.
func parseProductMapping(s string) map[string]string {
	m := make(map[string]string)
	if s == "" {
		return m
	}
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(kv) == 2 && kv[0] != "" && kv[1] != "" {
			m[kv[0]] = kv[1]
		}
	}
	return m
}
