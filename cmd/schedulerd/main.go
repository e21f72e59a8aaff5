package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/remindhq/remind/internal/config"
	"github.com/remindhq/remind/internal/license"
	"github.com/remindhq/remind/internal/notify"
	"github.com/remindhq/remind/internal/reminder"
	"github.com/remindhq/remind/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateScheduler(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	store, err := reminder.NewSQLiteStore(cfg.Scheduler.DBPath)
	if err != nil {
		slog.Error("opening reminder store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// The local license file gates nudge escalation. A missing or invalid
	// file degrades to the free tier rather than failing the daemon.
	licenses := license.NewManager(cfg.Scheduler.LicensePath)
	if _, err := licenses.Load(); err != nil {
		slog.Warn("reading license file, running as free tier", "error", err)
	}

	sched := scheduler.New(store, notify.NewDesktop(), licenses, cfg.Scheduler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sched.Run(ctx); err != nil {
		slog.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
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
