package governor

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnauthorized means the license token is unknown, inactive, or expired.
// Callers should not retry without a new token.
var ErrUnauthorized = errors.New("invalid or inactive license token")

// RateLimitedError is transient: the caller should retry after ResetAt.
// The rate counter is not incremented on this path.
type RateLimitedError struct {
	Limit   int
	Window  time.Duration
	ResetAt time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded: maximum %d requests per %s", e.Limit, e.Window)
}

// QuotaExceededError persists until the next calendar month.
type QuotaExceededError struct {
	Used  int
	Total int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly AI quota exhausted: used %d/%d", e.Used, e.Total)
}

// UpstreamError wraps an AI collaborator failure or timeout. The request
// consumed a rate slot but was not billed.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream suggestion call failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
