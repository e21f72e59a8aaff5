package notify

import (
	"fmt"
	"log/slog"

	"github.com/gen2brain/beeep"

	"github.com/remindhq/remind/internal/reminder"
)

// Kind distinguishes the first due notification from escalating follow-ups.
type Kind string

const (
	KindDue   Kind = "due"
	KindNudge Kind = "nudge"
)

// maxMessageLen caps the notification body; desktop notifiers truncate
// unpredictably past roughly this size.
const maxMessageLen = 100

// Notifier dispatches a user-facing notification for a reminder. Failures
// come back as an error, never as a panic.
type Notifier interface {
	Notify(r *reminder.Reminder, kind Kind) error
}

// Desktop sends notifications through the platform notification daemon.
type Desktop struct{}

func NewDesktop() *Desktop {
	return &Desktop{}
}

func (d *Desktop) Notify(r *reminder.Reminder, kind Kind) (err error) {
	// beeep shells out to platform notifiers; keep any panic inside this
	// boundary so one bad dispatch cannot take down the tick loop.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("notification dispatch panicked: %v", rec)
		}
	}()

	title := "Reminder"
	if kind == KindNudge {
		title = "Reminder Nudge"
	}
	if err := beeep.Notify(title, truncate(r.Text), ""); err != nil {
		return fmt.Errorf("dispatching %s notification for reminder %d: %w", kind, r.ID, err)
	}
	return nil
}

// Log writes notifications to the log instead of the desktop. Used when no
// notification daemon is available, for example headless test machines.
type Log struct{}

func (Log) Notify(r *reminder.Reminder, kind Kind) error {
	slog.Info("reminder notification", "kind", kind, "reminder_id", r.ID, "text", truncate(r.Text))
	return nil
}

func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	return s[:maxMessageLen] + "..."
}
