package governor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/remindhq/remind/internal/config"
	"github.com/remindhq/remind/internal/ledger"
	"github.com/remindhq/remind/internal/license"
	"github.com/remindhq/remind/internal/metrics"
	"github.com/remindhq/remind/internal/suggest"
)

// Suggester is the costed AI collaborator the governor gates access to.
type Suggester interface {
	Suggest(ctx context.Context, reminderText string) (*suggest.Suggestion, error)
}

// Usage is the quota and rate telemetry returned with every authorized call.
type Usage struct {
	QuotaUsed      int       `json:"ai_quota_used"`
	QuotaTotal     int       `json:"ai_quota_total"`
	QuotaRemaining int       `json:"ai_quota_remaining"`
	RateRemaining  int       `json:"rate_limit_remaining"`
	RateResetAt    time.Time `json:"rate_limit_reset_at"`
}

// Outcome is a successful suggestion plus usage telemetry.
type Outcome struct {
	Suggestion *suggest.Suggestion
	Usage      Usage
}

// Stats is the usage-stats endpoint payload.
type Stats struct {
	UserID             string           `json:"user_id"`
	PlanTier           license.PlanTier `json:"plan_tier"`
	QuotaUsed          int              `json:"ai_quota_used"`
	QuotaTotal         int              `json:"ai_quota_total"`
	QuotaRemaining     int              `json:"ai_quota_remaining"`
	ThisMonthCostCents int              `json:"this_month_cost_cents"`
	RateRemaining      int              `json:"rate_limit_remaining"`
	RateResetAt        time.Time        `json:"rate_limit_reset_at"`
}

// Service gates and meters access to the AI suggestion collaborator per
// license token: authentication, lazy-reset rate window, monthly quota,
// append-only ledger.
type Service struct {
	licenses  license.Store
	entries   ledger.Store
	windows   *WindowStore
	suggester Suggester
	cfg       config.GovernorConfig
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a governor Service.
func NewService(licenses license.Store, entries ledger.Store, windows *WindowStore, suggester Suggester, cfg config.GovernorConfig) *Service {
	return &Service{
		licenses:  licenses,
		entries:   entries,
		windows:   windows,
		suggester: suggester,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		locks:     make(map[string]*sync.Mutex),
	}
}

// lockToken serializes the check-then-act sequence per token. Different
// tokens proceed fully in parallel. Entries are never removed; the map is
// bounded by the number of distinct tokens seen by this process.
func (s *Service) lockToken(token string) func() {
	s.mu.Lock()
	l, ok := s.locks[token]
	if !ok {
		l = &sync.Mutex{}
		s.locks[token] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Service) authenticate(ctx context.Context, token string, now time.Time) (*license.User, error) {
	user, err := s.licenses.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		return nil, ErrUnauthorized
	}
	if user.ExpiresAt != nil && now.After(*user.ExpiresAt) {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// AuthorizeAndRecord runs the metered call sequence for one request:
// authenticate, rate window, monthly quota, collaborator call, ledger append.
// The quota check happens before the collaborator is invoked, so a request
// that fails quota never spends upstream money. A collaborator failure still
// consumes a rate slot but appends no ledger entry.
func (s *Service) AuthorizeAndRecord(ctx context.Context, token, reminderText string) (*Outcome, error) {
	now := s.now()

	user, err := s.authenticate(ctx, token, now)
	if err != nil {
		metrics.SuggestionsTotal.WithLabelValues("unauthorized").Inc()
		return nil, err
	}

	unlock := s.lockToken(token)
	defer unlock()

	win, err := s.windows.Load(ctx, user.ID, now)
	if err != nil {
		return nil, err
	}
	if win.Count >= s.cfg.RateLimitRequests {
		metrics.SuggestionsTotal.WithLabelValues("rate_limited").Inc()
		return nil, &RateLimitedError{
			Limit:   s.cfg.RateLimitRequests,
			Window:  s.cfg.RateLimitWindow,
			ResetAt: win.ResetAt,
		}
	}

	quotaTotal := license.MonthlyQuota(user.PlanTier)
	quotaUsed, err := s.entries.MonthlyFeatureCostCents(ctx, user.ID, ledger.FeatureAISuggestion, ledger.MonthStart(now))
	if err != nil {
		return nil, err
	}
	if quotaUsed >= quotaTotal {
		metrics.SuggestionsTotal.WithLabelValues("quota_exceeded").Inc()
		return nil, &QuotaExceededError{Used: quotaUsed, Total: quotaTotal}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.SuggestTimeout)
	sug, callErr := s.suggester.Suggest(callCtx, reminderText)
	cancel()

	// The request consumed a rate slot whether or not the upstream call
	// succeeded. Billing is success-only.
	if err := s.windows.Increment(ctx, user.ID); err != nil {
		slog.Warn("governor: incrementing rate window", "error", err, "user_id", user.ID)
	}

	if callErr != nil {
		metrics.SuggestionsTotal.WithLabelValues("upstream_error").Inc()
		return nil, &UpstreamError{Err: callErr}
	}

	entry := &ledger.Entry{
		UserID:       user.ID,
		Feature:      ledger.FeatureAISuggestion,
		InputTokens:  sug.InputTokens,
		OutputTokens: sug.OutputTokens,
		CostCents:    sug.CostCents,
		Timestamp:    now,
	}
	if err := s.entries.Append(ctx, entry); err != nil {
		// The call already succeeded; surface the append failure rather
		// than silently under-billing.
		return nil, err
	}

	metrics.SuggestionsTotal.WithLabelValues("ok").Inc()

	quotaUsed += sug.CostCents
	remaining := s.cfg.RateLimitRequests - win.Count - 1
	if remaining < 0 {
		remaining = 0
	}

	return &Outcome{
		Suggestion: sug,
		Usage: Usage{
			QuotaUsed:      quotaUsed,
			QuotaTotal:     quotaTotal,
			QuotaRemaining: max(0, quotaTotal-quotaUsed),
			RateRemaining:  remaining,
			RateResetAt:    win.ResetAt,
		},
	}, nil
}

// UsageStats reports current quota and rate state for a token without
// consuming a rate slot.
func (s *Service) UsageStats(ctx context.Context, token string) (*Stats, error) {
	now := s.now()

	user, err := s.authenticate(ctx, token, now)
	if err != nil {
		return nil, err
	}

	monthStart := ledger.MonthStart(now)
	quotaTotal := license.MonthlyQuota(user.PlanTier)
	quotaUsed, err := s.entries.MonthlyFeatureCostCents(ctx, user.ID, ledger.FeatureAISuggestion, monthStart)
	if err != nil {
		return nil, err
	}
	totalCost, err := s.entries.MonthlyCostCents(ctx, user.ID, monthStart)
	if err != nil {
		return nil, err
	}

	win, err := s.windows.Peek(ctx, user.ID, now)
	if err != nil {
		return nil, err
	}

	return &Stats{
		UserID:             user.ID.String(),
		PlanTier:           user.PlanTier,
		QuotaUsed:          quotaUsed,
		QuotaTotal:         quotaTotal,
		QuotaRemaining:     max(0, quotaTotal-quotaUsed),
		ThisMonthCostCents: totalCost,
		RateRemaining:      max(0, s.cfg.RateLimitRequests-win.Count),
		RateResetAt:        win.ResetAt,
	}, nil
}
