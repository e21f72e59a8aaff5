package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/remindhq/remind/internal/api"
	"github.com/remindhq/remind/internal/billing"
	"github.com/remindhq/remind/internal/config"
	"github.com/remindhq/remind/internal/database"
	"github.com/remindhq/remind/internal/governor"
	"github.com/remindhq/remind/internal/ledger"
	"github.com/remindhq/remind/internal/license"
	mw "github.com/remindhq/remind/internal/middleware"
	iredis "github.com/remindhq/remind/internal/redis"
	"github.com/remindhq/remind/internal/server"
	"github.com/remindhq/remind/internal/suggest"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), "migrations"); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Governor
	licenseStore := license.NewStore(pool)
	ledgerStore := ledger.NewStore(pool)
	windows := governor.NewWindowStore(redisClient, cfg.Governor.RateLimitWindow)
	suggester := suggest.NewClient(cfg.AI)
	governorSvc := governor.NewService(licenseStore, ledgerStore, windows, suggester, cfg.Governor)
	governorHandler := governor.NewHandler(governorSvc)

	// Billing
	mailer := billing.NewMailer(cfg.SMTP)
	billingSvc := billing.NewService(licenseStore, mailer, cfg.Paddle)
	billingHandler := billing.NewHandler(billingSvc)

	webhookLimiter := mw.NewRateLimiter(redisClient, cfg.Governor.WebhookRateLimit, 60)

	// Router
	router := api.NewRouter(pool, redisClient, api.RouterConfig{}, api.HandlerSet{
		SuggestReminder:    governorHandler.SuggestReminder,
		UsageStats:         governorHandler.UsageStats,
		PaddleWebhook:      billingHandler.PaddleWebhook,
		WebhookRateLimiter: webhookLimiter.Middleware,
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
