package fetcher

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RequestBudget tracks the remote API quota as last observed, either from a
// /rate_limit probe or passively from rate-limit response headers. Bulk
// branch and commit fetching is the dominant quota consumer, so the governor
// consults this state before enumeration and after every fetched page.
type RequestBudget struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	cooldown  time.Time
	now       func() time.Time
}

func NewRequestBudget() *RequestBudget {
	return &RequestBudget{
		remaining: 5000, // conservative default until the first observation
		reset:     time.Now().Add(1 * time.Hour),
		now:       time.Now,
	}
}

func (b *RequestBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

func (b *RequestBudget) Reset() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reset
}

// SetSnapshot records an authoritative quota observation from /rate_limit.
func (b *RequestBudget) SetSnapshot(remaining int, reset time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if remaining >= 0 {
		b.remaining = remaining
	}
	if !reset.IsZero() {
		b.reset = reset
	}
}

// Cooldown returns the time before which no request should be issued, as
// demanded by a Retry-After header. Zero when no cooldown is pending.
func (b *RequestBudget) Cooldown() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.now().Before(b.cooldown) {
		return b.cooldown
	}
	return time.Time{}
}

// UpdateFromResponse parses rate-limit headers off any API response. The
// passive path keeps the budget roughly current between explicit probes.
func (b *RequestBudget) UpdateFromResponse(resp *http.Response) {
	if b == nil || resp == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			until := b.now().Add(time.Duration(seconds) * time.Second)
			if until.After(b.cooldown) {
				b.cooldown = until
			}
		}
	}

	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil && val >= 0 {
			b.remaining = val
		}
	}

	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil && val > 0 {
			b.reset = time.Unix(val, 0)
		}
	}
}
