package governor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const rateWindowKeyPrefix = "ratewindow:"

// Window is one user's rate-window state after lazy reset has been applied.
type Window struct {
	Count   int
	ResetAt time.Time
}

// WindowStore keeps per-user rate windows in a Redis hash. Resets are lazy:
// the window is reset exactly when a load first observes now past reset_at,
// never by a background timer. Callers must serialize Load/Increment for the
// same user; the store itself holds no locks.
type WindowStore struct {
	rdb    redis.Cmdable
	window time.Duration
}

// NewWindowStore creates a WindowStore with the given window length.
func NewWindowStore(rdb redis.Cmdable, window time.Duration) *WindowStore {
	return &WindowStore{rdb: rdb, window: window}
}

func windowKey(userID uuid.UUID) string {
	return rateWindowKeyPrefix + userID.String()
}

// lazyReset derives the effective window from stored state. Pure function of
// its inputs so the reset decision is trivially testable.
func lazyReset(count int, resetAt time.Time, now time.Time, window time.Duration) (Window, bool) {
	if resetAt.IsZero() || !now.Before(resetAt) {
		return Window{Count: 0, ResetAt: now.Add(window)}, true
	}
	return Window{Count: count, ResetAt: resetAt}, false
}

// Load returns the user's current window, applying and persisting a lazy
// reset when the stored window has expired.
func (s *WindowStore) Load(ctx context.Context, userID uuid.UUID, now time.Time) (Window, error) {
	key := windowKey(userID)

	vals, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return Window{}, fmt.Errorf("loading rate window: %w", err)
	}

	var count int
	var resetAt time.Time
	if v, ok := vals["request_count"]; ok {
		count, _ = strconv.Atoi(v)
	}
	if v, ok := vals["reset_at"]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			resetAt = time.UnixMilli(ms).UTC()
		}
	}

	win, changed := lazyReset(count, resetAt, now, s.window)
	if changed {
		if err := s.persist(ctx, key, win); err != nil {
			return Window{}, err
		}
	}
	return win, nil
}

// Peek returns the window without persisting a reset, for read-only telemetry.
func (s *WindowStore) Peek(ctx context.Context, userID uuid.UUID, now time.Time) (Window, error) {
	vals, err := s.rdb.HGetAll(ctx, windowKey(userID)).Result()
	if err != nil {
		return Window{}, fmt.Errorf("peeking rate window: %w", err)
	}

	var count int
	var resetAt time.Time
	if v, ok := vals["request_count"]; ok {
		count, _ = strconv.Atoi(v)
	}
	if v, ok := vals["reset_at"]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			resetAt = time.UnixMilli(ms).UTC()
		}
	}

	win, _ := lazyReset(count, resetAt, now, s.window)
	return win, nil
}

// Increment consumes one rate slot. Called after the window check passed, or
// after an upstream failure (the slot is spent either way).
func (s *WindowStore) Increment(ctx context.Context, userID uuid.UUID) error {
	key := windowKey(userID)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, key, "request_count", 1)
	pipe.Expire(ctx, key, s.window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("incrementing rate window: %w", err)
	}
	return nil
}

func (s *WindowStore) persist(ctx context.Context, key string, win Window) error {
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key,
		"request_count", win.Count,
		"reset_at", win.ResetAt.UnixMilli(),
	)
	pipe.Expire(ctx, key, s.window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("persisting rate window: %w", err)
	}
	return nil
}
