package governor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remindhq/remind/internal/config"
	"github.com/remindhq/remind/internal/ledger"
	"github.com/remindhq/remind/internal/license"
	"github.com/remindhq/remind/internal/suggest"
)

type fakeLicenses struct {
	users map[string]*license.User
}

func (f *fakeLicenses) GetByToken(_ context.Context, token string) (*license.User, error) {
	return f.users[token], nil
}

func (f *fakeLicenses) Create(_ context.Context, user *license.User) error {
	f.users[user.Token] = user
	return nil
}

func (f *fakeLicenses) Deactivate(_ context.Context, token string) error {
	if u := f.users[token]; u != nil {
		u.Active = false
	}
	return nil
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []ledger.Entry
}

func (f *fakeLedger) Append(_ context.Context, entry *ledger.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLedger) MonthlyCostCents(_ context.Context, userID uuid.UUID, monthStart time.Time) (int, error) {
	return f.sum(userID, "", monthStart), nil
}

func (f *fakeLedger) MonthlyFeatureCostCents(_ context.Context, userID uuid.UUID, feature string, monthStart time.Time) (int, error) {
	return f.sum(userID, feature, monthStart), nil
}

func (f *fakeLedger) sum(userID uuid.UUID, feature string, monthStart time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, e := range f.entries {
		if e.UserID == userID && (feature == "" || e.Feature == feature) && !e.Timestamp.Before(monthStart) {
			total += e.CostCents
		}
	}
	return total
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeSuggester struct {
	mu    sync.Mutex
	calls int
	err   error
	cost  int
	delay time.Duration
}

func (f *fakeSuggester) Suggest(_ context.Context, text string) (*suggest.Suggestion, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	cost := f.cost
	if cost == 0 {
		cost = 1
	}
	return &suggest.Suggestion{
		SuggestedText: "Polished: " + text,
		Priority:      suggest.PriorityMedium,
		CostCents:     cost,
		InputTokens:   120,
		OutputTokens:  40,
	}, nil
}

func (f *fakeSuggester) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	svc       *Service
	licenses  *fakeLicenses
	entries   *fakeLedger
	suggester *fakeSuggester
	clock     *testClock
}

func newTestEnv(t *testing.T, cfg config.GovernorConfig) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	if cfg.RateLimitRequests == 0 {
		cfg.RateLimitRequests = 10
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = 60 * time.Second
	}
	if cfg.SuggestTimeout == 0 {
		cfg.SuggestTimeout = 5 * time.Second
	}

	env := &testEnv{
		licenses:  &fakeLicenses{users: make(map[string]*license.User)},
		entries:   &fakeLedger{},
		suggester: &fakeSuggester{},
		clock:     &testClock{t: time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)},
	}
	env.svc = NewService(env.licenses, env.entries, NewWindowStore(client, cfg.RateLimitWindow), env.suggester, cfg)
	env.svc.now = env.clock.Now
	return env
}

func (e *testEnv) addUser(token string, tier license.PlanTier, active bool) *license.User {
	u := &license.User{
		ID:        uuid.New(),
		Token:     token,
		PlanTier:  tier,
		Active:    active,
		CreatedAt: e.clock.Now(),
	}
	e.licenses.users[token] = u
	return u
}

func TestAuthorize_UnknownToken(t *testing.T) {
	env := newTestEnv(t, config.GovernorConfig{})

	_, err := env.svc.AuthorizeAndRecord(context.Background(), "remind_pro_nope", "call mom")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, env.suggester.callCount())
}

func TestAuthorize_InactiveToken(t *testing.T) {
	env := newTestEnv(t, config.GovernorConfig{})
	env.addUser("remind_pro_x", license.TierPro, false)

	_, err := env.svc.AuthorizeAndRecord(context.Background(), "remind_pro_x", "call mom")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthorize_ExpiredToken(t *testing.T) {
	env := newTestEnv(t, config.GovernorConfig{})
	u := env.addUser("remind_pro_x", license.TierPro, true)
	expired := env.clock.Now().Add(-time.Hour)
	u.ExpiresAt = &expired

	_, err := env.svc.AuthorizeAndRecord(context.Background(), "remind_pro_x", "call mom")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthorize_Success(t *testing.T) {
	env := newTestEnv(t, config.GovernorConfig{})
	env.addUser("remind_pro_x", license.TierPro, true)

	out, err := env.svc.AuthorizeAndRecord(context.Background(), "remind_pro_x", "call mom tomorrow")
	require.NoError(t, err)

	assert.Equal(t, "Polished: call mom tomorrow", out.Suggestion.SuggestedText)
	assert.Equal(t, 1, out.Usage.QuotaUsed)
	assert.Equal(t, 1000, out.Usage.QuotaTotal)
	assert.Equal(t, 999, out.Usage.QuotaRemaining)
	assert.Equal(t, 9, out.Usage.RateRemaining)
	assert.Equal(t, 1, env.entries.count())
}

func TestAuthorize_EleventhRequestRateLimited(t *testing.T) {
	env := newTestEnv(t, config.GovernorConfig{RateLimitRequests: 10, RateLimitWindow: 60 * time.Second})
	env.addUser("remind_team_x", license.TierTeam, true)
	ctx := context.Background()

	start := env.clock.Now()
	for i := 0; i < 10; i++ {
		_, err := env.svc.AuthorizeAndRecord(ctx, "remind_team_x", "task")
		require.NoError(t, err, "request %d", i+1)
	}

	_, err := env.svc.AuthorizeAndRecord(ctx, "remind_team_x", "task")
	var rateErr *RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, start.Add(60*time.Second).UnixMilli(), rateErr.ResetAt.UnixMilli())

	// The denied request did not consume a slot or invoke the collaborator.
	assert.Equal(t, 10, env.suggester.callCount())

	// First request after reset_at succeeds and the counter restarts.
	env.clock.Advance(61 * time.Second)
	out, err := env.svc.AuthorizeAndRecord(ctx, "remind_team_x", "task")
	require.NoError(t, err)
	assert.Equal(t, 9, out.Usage.RateRemaining)
}

func TestAuthorize_QuotaExceededSkipsCollaborator(t *testing.T) {
	env := newTestEnv(t, config.GovernorConfig{})
	u := env.addUser("remind_indie_x", license.TierIndie, true)

	// Indie quota is 100; fill the ledger exactly to it.
	env.entries.entries = append(env.entries.entries, ledger.Entry{
		UserID:    u.ID,
		Feature:   ledger.FeatureAISuggestion,
		CostCents: 100,
		Timestamp: env.clock.Now(),
	})

	_, err := env.svc.AuthorizeAndRecord(context.Background(), "remind_indie_x", "task")
	var quotaErr *QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 100, quotaErr.Used)
	assert.Equal(t, 100, quotaErr.Total)
	assert.Equal(t, 0, env.suggester.callCount())
}

func TestAuthorize_QuotaResetsNextMonth(t *testing.T) {
	env := newTestEnv(t, config.GovernorConfig{})
	u := env.addUser("remind_free_x", license.TierFree, true)

	env.entries.entries = append(env.entries.entries, ledger.Entry{
		UserID:    u.ID,
		Feature:   ledger.FeatureAISuggestion,
		CostCents: 5,
		Timestamp: env.clock.Now(),
	})

	_, err := env.svc.AuthorizeAndRecord(context.Background(), "remind_free_x", "task")
	var quotaErr *QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)

	// A month later the old entries fall outside the window.
	env.clock.Advance(31 * 24 * time.Hour)
	_, err = env.svc.AuthorizeAndRecord(context.Background(), "remind_free_x", "task")
	require.NoError(t, err)
}

func TestAuthorize_UpstreamFailureConsumesRateSlotOnly(t *testing.T) {
	env := newTestEnv(t, config.GovernorConfig{})
	env.addUser("remind_pro_x", license.TierPro, true)
	env.suggester.err = errors.New("upstream timeout")
	ctx := context.Background()

	_, err := env.svc.AuthorizeAndRecord(ctx, "remind_pro_x", "task")
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)

	// Not billed.
	assert.Equal(t, 0, env.entries.count())

	// But the rate slot was spent: stats show remaining decremented by 1.
	stats, err := env.svc.UsageStats(ctx, "remind_pro_x")
	require.NoError(t, err)
	assert.Equal(t, 9, stats.RateRemaining)
	assert.Equal(t, 0, stats.QuotaUsed)
}

func TestUsageStats_RoundTripAfterSuggestion(t *testing.T) {
	env := newTestEnv(t, config.GovernorConfig{})
	env.addUser("remind_indie_x", license.TierIndie, true)
	env.suggester.cost = 3
	ctx := context.Background()

	out, err := env.svc.AuthorizeAndRecord(ctx, "remind_indie_x", "task")
	require.NoError(t, err)

	stats, err := env.svc.UsageStats(ctx, "remind_indie_x")
	require.NoError(t, err)
	assert.Equal(t, out.Usage.QuotaUsed, stats.QuotaUsed)
	assert.Equal(t, stats.QuotaTotal-stats.QuotaUsed, stats.QuotaRemaining)
	assert.Equal(t, 3, stats.ThisMonthCostCents)
	assert.Equal(t, license.TierIndie, stats.PlanTier)
}

func TestUsageStats_ConsumesNoRateSlot(t *testing.T) {
	env := newTestEnv(t, config.GovernorConfig{})
	env.addUser("remind_pro_x", license.TierPro, true)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := env.svc.UsageStats(ctx, "remind_pro_x")
		require.NoError(t, err)
	}

	stats, err := env.svc.UsageStats(ctx, "remind_pro_x")
	require.NoError(t, err)
	assert.Equal(t, 10, stats.RateRemaining)
}

func TestAuthorize_ConcurrentRequestsLastSlot(t *testing.T) {
	env := newTestEnv(t, config.GovernorConfig{RateLimitRequests: 1, RateLimitWindow: 60 * time.Second})
	env.addUser("remind_pro_x", license.TierPro, true)
	env.suggester.delay = 10 * time.Millisecond
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = env.svc.AuthorizeAndRecord(ctx, "remind_pro_x", "task")
		}(i)
	}
	wg.Wait()

	// Exactly one passes the single remaining slot; the other is rate-limited.
	var passed, limited int
	for _, err := range results {
		if err == nil {
			passed++
			continue
		}
		var rateErr *RateLimitedError
		if errors.As(err, &rateErr) {
			limited++
		}
	}
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, limited)
	assert.Equal(t, 1, env.suggester.callCount())
}

func TestAuthorize_ConcurrentQuotaOvershootBounded(t *testing.T) {
	env := newTestEnv(t, config.GovernorConfig{RateLimitRequests: 100})
	u := env.addUser("remind_free_x", license.TierFree, true)
	env.suggester.cost = 3
	env.suggester.delay = 5 * time.Millisecond
	ctx := context.Background()

	// 4/5 cents used: one more call of cost 3 overshoots by 2, which is the
	// allowed at-most-one-in-flight slack. A second concurrent call must not
	// also slip through.
	env.entries.entries = append(env.entries.entries, ledger.Entry{
		UserID:    u.ID,
		Feature:   ledger.FeatureAISuggestion,
		CostCents: 4,
		Timestamp: env.clock.Now(),
	})

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = env.svc.AuthorizeAndRecord(ctx, "remind_free_x", "task")
		}(i)
	}
	wg.Wait()

	var passed int
	for _, err := range results {
		if err == nil {
			passed++
		}
	}
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, env.suggester.callCount())
}
