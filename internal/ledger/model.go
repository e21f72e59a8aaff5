package ledger

import (
	"time"

	"github.com/google/uuid"
)

// FeatureAISuggestion tags metered AI suggestion calls in the ledger.
const FeatureAISuggestion = "ai_suggestion"

// Entry matches the usage_ledger table schema. Entries are append-only:
// never updated, never deleted, so the ledger stays auditable for billing.
type Entry struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Feature      string    `json:"feature"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostCents    int       `json:"cost_cents"`
	Timestamp    time.Time `json:"timestamp"`
}

// MonthStart returns the start of now's calendar month in UTC. Quota
// accounting always uses UTC month boundaries regardless of user timezone.
func MonthStart(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
