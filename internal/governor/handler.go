package governor

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/remindhq/remind/internal/api"
	"github.com/remindhq/remind/internal/license"
	"github.com/remindhq/remind/internal/suggest"
)

// Handler provides HTTP handlers for the metered suggestion API.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

// NewHandler creates a governor Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

type suggestRequest struct {
	LicenseToken string `json:"license_token" validate:"required"`
	ReminderText string `json:"reminder_text" validate:"required,max=1000"`
}

type suggestResponse struct {
	SuggestedText     string           `json:"suggested_text"`
	Priority          suggest.Priority `json:"priority"`
	DueTimeSuggestion *string          `json:"due_time_suggestion"`
	CostCents         int              `json:"cost_cents"`

	AIQuotaUsed        int       `json:"ai_quota_used"`
	AIQuotaTotal       int       `json:"ai_quota_total"`
	AIQuotaRemaining   int       `json:"ai_quota_remaining"`
	RateLimitRemaining int       `json:"rate_limit_remaining"`
	RateLimitResetAt   time.Time `json:"rate_limit_reset_at"`
}

type usageStatsResponse struct {
	UserID             string           `json:"user_id"`
	PlanTier           license.PlanTier `json:"plan_tier"`
	AIQuotaUsed        int              `json:"ai_quota_used"`
	AIQuotaTotal       int              `json:"ai_quota_total"`
	AIQuotaRemaining   int              `json:"ai_quota_remaining"`
	ThisMonthCostCents int              `json:"this_month_cost_cents"`
	RateLimitRemaining int              `json:"rate_limit_remaining"`
	RateLimitResetAt   time.Time        `json:"rate_limit_reset_at"`
}

// SuggestReminder handles POST /api/v1/suggest-reminder.
func (h *Handler) SuggestReminder(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	outcome, err := h.svc.AuthorizeAndRecord(r.Context(), req.LicenseToken, req.ReminderText)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := suggestResponse{
		SuggestedText:      outcome.Suggestion.SuggestedText,
		Priority:           outcome.Suggestion.Priority,
		CostCents:          outcome.Suggestion.CostCents,
		AIQuotaUsed:        outcome.Usage.QuotaUsed,
		AIQuotaTotal:       outcome.Usage.QuotaTotal,
		AIQuotaRemaining:   outcome.Usage.QuotaRemaining,
		RateLimitRemaining: outcome.Usage.RateRemaining,
		RateLimitResetAt:   outcome.Usage.RateResetAt,
	}
	if outcome.Suggestion.DueTimeSuggestion != "" {
		s := outcome.Suggestion.DueTimeSuggestion
		resp.DueTimeSuggestion = &s
	}
	api.JSON(w, http.StatusOK, resp)
}

// UsageStats handles GET /api/v1/usage-stats.
func (h *Handler) UsageStats(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("license_token")
	if token == "" {
		api.HandleError(w, api.NewBadRequestError("license_token query parameter is required"))
		return
	}

	stats, err := h.svc.UsageStats(r.Context(), token)
	if err != nil {
		h.writeError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, usageStatsResponse{
		UserID:             stats.UserID,
		PlanTier:           stats.PlanTier,
		AIQuotaUsed:        stats.QuotaUsed,
		AIQuotaTotal:       stats.QuotaTotal,
		AIQuotaRemaining:   stats.QuotaRemaining,
		ThisMonthCostCents: stats.ThisMonthCostCents,
		RateLimitRemaining: stats.RateRemaining,
		RateLimitResetAt:   stats.RateResetAt,
	})
}

// writeError maps governor errors to the HTTP contract: 401 for bad tokens,
// 429 for both rate and quota (distinguished by message text), 502 for
// upstream failures.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var rateErr *RateLimitedError
	var quotaErr *QuotaExceededError
	var upstreamErr *UpstreamError

	switch {
	case errors.Is(err, ErrUnauthorized):
		api.JSONError(w, http.StatusUnauthorized, err)
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", rateErr.ResetAt.UTC().Format(time.RFC3339))
		api.JSONError(w, http.StatusTooManyRequests, rateErr)
	case errors.As(err, &quotaErr):
		api.JSONError(w, http.StatusTooManyRequests, quotaErr)
	case errors.As(err, &upstreamErr):
		slog.Error("suggestion upstream failure", "error", upstreamErr.Err)
		api.JSONErrorMessage(w, http.StatusBadGateway, "suggestion service unavailable, try again")
	default:
		slog.Error("governor request failed", "error", err)
		api.HandleError(w, api.ErrInternalServer)
	}
}
