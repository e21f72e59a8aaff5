package reminder

import "time"

// Priority levels carried on a reminder. The scheduler does not act on
// priority; it is display metadata set by the user or the AI suggestion.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Reminder is one scheduled item. All instants are UTC. due_at is immutable
// after creation; done_at set means the item is excluded from every future
// due-scan.
type Reminder struct {
	ID              int64
	Text            string
	DueAt           time.Time
	Priority        Priority
	ProjectContext  string
	AISuggestedText string
	NudgeCount      int
	LastNudgeAt     *time.Time
	DoneAt          *time.Time
	CreatedAt       time.Time
}

// Done reports whether the reminder has been resolved.
func (r *Reminder) Done() bool {
	return r.DoneAt != nil
}
