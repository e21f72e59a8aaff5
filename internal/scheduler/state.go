package scheduler

import (
	"time"

	"github.com/remindhq/remind/internal/reminder"
)

// State is the notification lifecycle position of a reminder. It is always
// derived from persisted fields, never held in memory across ticks, so a
// daemon restart mid-escalation resumes where the data says it is.
type State int

const (
	// StatePending means due_at is still in the future.
	StatePending State = iota
	// StateDue means due_at has passed and no notification was sent yet.
	StateDue
	// StateNotified means the single due notification went out.
	StateNotified
	// StateEscalating means at least one nudge followed the due notification.
	StateEscalating
	// StateResolved means done_at is set. Terminal.
	StateResolved
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDue:
		return "due"
	case StateNotified:
		return "notified"
	case StateEscalating:
		return "escalating"
	case StateResolved:
		return "resolved"
	}
	return "unknown"
}

// DeriveState computes the notification state of r at instant now.
func DeriveState(r *reminder.Reminder, now time.Time) State {
	switch {
	case r.Done():
		return StateResolved
	case r.LastNudgeAt == nil && r.DueAt.After(now):
		return StatePending
	case r.LastNudgeAt == nil:
		return StateDue
	case r.NudgeCount <= 1:
		return StateNotified
	default:
		return StateEscalating
	}
}

// nudgeGap returns the wait before the next nudge for a reminder that has
// already received nudgeCount notifications. Past the end of the configured
// list the last interval repeats indefinitely.
func nudgeGap(intervals []time.Duration, nudgeCount int) time.Duration {
	idx := nudgeCount - 1
	if idx >= len(intervals) {
		idx = len(intervals) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return intervals[idx]
}
