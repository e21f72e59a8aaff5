package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/remindhq/remind/internal/config"
	"github.com/remindhq/remind/internal/license"
	"github.com/remindhq/remind/internal/metrics"
	"github.com/remindhq/remind/internal/notify"
	"github.com/remindhq/remind/internal/reminder"
)

// CapabilitySource reports the current plan capabilities. Resolved once per
// tick, so installing a license takes effect without restarting the daemon.
type CapabilitySource interface {
	Capabilities() license.PlanCapabilities
}

// Scheduler polls the reminder store and dispatches due and nudge
// notifications with at-least-once semantics.
type Scheduler struct {
	store    reminder.Store
	notifier notify.Notifier
	caps     CapabilitySource
	cfg      config.SchedulerConfig
	now      func() time.Time
}

// New creates a Scheduler. The configuration must already have passed
// validation; in particular the tick interval floor is enforced there.
func New(store reminder.Store, notifier notify.Notifier, caps CapabilitySource, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		store:    store,
		notifier: notifier,
		caps:     caps,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run executes ticks until ctx is cancelled. Ticks are strictly sequential:
// if a tick overruns the interval, the missed ticks are skipped, not queued.
// An in-flight tick always finishes before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler started", "tick_interval", s.cfg.TickInterval, "nudge_intervals", s.cfg.NudgeIntervals)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			// The tick keeps going even when shutdown arrives mid-flight;
			// reminder updates are never left half-applied.
			s.Tick(context.WithoutCancel(ctx), s.now())
			s.drainMissed(ticker)
		}
	}
}

func (s *Scheduler) drainMissed(ticker *time.Ticker) {
	for {
		select {
		case <-ticker.C:
			metrics.SchedulerTicksSkipped.Inc()
			slog.Warn("tick overran interval, skipping missed tick")
		default:
			return
		}
	}
}

// Tick runs one due-scan at instant now. A single reminder's failure never
// aborts the scan for the rest.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	metrics.SchedulerTicksTotal.Inc()

	open, err := s.store.ListOpen(ctx)
	if err != nil {
		slog.Error("listing open reminders", "error", err)
		return
	}

	escalate := s.caps.Capabilities().Has(license.CapNudgeEscalation)

	for _, r := range open {
		switch DeriveState(r, now) {
		case StateDue:
			s.dispatch(ctx, r, notify.KindDue, now)
		case StateNotified, StateEscalating:
			if !escalate {
				continue
			}
			if now.Sub(*r.LastNudgeAt) >= nudgeGap(s.cfg.NudgeIntervals, r.NudgeCount) {
				s.dispatch(ctx, r, notify.KindNudge, now)
			}
		}
	}
}

// dispatch sends one notification and records it. The resolved check runs
// again here against fresh storage: the list this tick is working from may
// predate a concurrent mark-done. State is only persisted after a successful
// send, so a dispatch failure retries next tick.
func (s *Scheduler) dispatch(ctx context.Context, r *reminder.Reminder, kind notify.Kind, now time.Time) {
	fresh, err := s.store.Get(ctx, r.ID)
	if err != nil {
		slog.Error("re-checking reminder before dispatch", "reminder_id", r.ID, "error", err)
		return
	}
	if fresh == nil || fresh.Done() {
		return
	}

	if err := s.notifier.Notify(fresh, kind); err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(kind), "error").Inc()
		slog.Error("notification dispatch failed, will retry next tick",
			"reminder_id", r.ID, "kind", kind, "error", err)
		return
	}

	if err := s.store.UpdateNudge(ctx, r.ID, now, fresh.NudgeCount+1); err != nil {
		// The notification went out but the bookkeeping failed; the user
		// may see a duplicate next tick. At-least-once, by choice.
		metrics.NotificationsTotal.WithLabelValues(string(kind), "error").Inc()
		slog.Error("persisting nudge state", "reminder_id", r.ID, "error", err)
		return
	}

	metrics.NotificationsTotal.WithLabelValues(string(kind), "ok").Inc()
	slog.Info("notification dispatched", "reminder_id", r.ID, "kind", kind, "nudge_count", fresh.NudgeCount+1)
}
