package fetcher

import (
	"context"
	"time"

	gh "github.com/scarlettk3/Stale-Data-Collection/internal/github"
)

// Governor enforces the coarse-grained quota contract: before enumeration
// passes and after every fetched page it checks the remaining budget and, if
// the budget is below the floor, blocks until the quota window resets (plus a
// safety margin). It never fails the crawl: a failed quota probe is reported
// and the caller continues optimistically.
type Governor struct {
	client *gh.Client
	budget *RequestBudget
	floor  int
	margin time.Duration

	// test seams
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	progress func(format string, args ...any)
}

func NewGovernor(client *gh.Client, budget *RequestBudget, floor int, margin time.Duration) *Governor {
	if budget == nil {
		budget = NewRequestBudget()
	}
	return &Governor{
		client:   client,
		budget:   budget,
		floor:    floor,
		margin:   margin,
		now:      time.Now,
		sleep:    sleepCtx,
		progress: func(string, ...any) {},
	}
}

// OnProgress registers a callback for wait announcements (rate limit low,
// resuming), so the CLI can surface multi-minute sleeps as they happen.
func (g *Governor) OnProgress(fn func(format string, args ...any)) {
	if fn != nil {
		g.progress = fn
	}
}

func (g *Governor) Budget() *RequestBudget { return g.budget }

// EnsureCapacity queries the remote quota status and blocks until at least
// the floor budget is available. The return value reports whether the probe
// succeeded; false is non-fatal and the caller proceeds optimistically.
func (g *Governor) EnsureCapacity(ctx context.Context) bool {
	if g == nil || g.client == nil || g.client.Client == nil {
		return false
	}

	// Honor any Retry-After cooldown first; it is stricter than the budget.
	if until := g.budget.Cooldown(); !until.IsZero() {
		g.waitUntil(ctx, until, "server requested cooldown")
	}

	limits, resp, err := g.client.Client.RateLimit.Get(ctx)
	if resp != nil {
		g.budget.UpdateFromResponse(resp.Response)
	}
	if err != nil {
		g.progress("rate limit check failed (continuing): %v", err)
		return false
	}

	core := limits.GetCore()
	if core == nil {
		g.progress("rate limit response missing core resource (continuing)")
		return false
	}
	g.budget.SetSnapshot(core.Remaining, core.Reset.Time)

	if core.Remaining >= g.floor {
		return true
	}

	until := core.Reset.Time.Add(g.margin)
	g.progress("rate limit low (%d remaining), waiting until %s", core.Remaining, until.UTC().Format(time.RFC3339))
	g.waitUntil(ctx, until, "rate limit reset")
	g.progress("rate limit window reset, continuing")
	return true
}

// waitUntil sleeps to the deadline in one-minute slices so long waits still
// produce periodic progress output.
func (g *Governor) waitUntil(ctx context.Context, until time.Time, reason string) {
	const slice = time.Minute
	for {
		remaining := until.Sub(g.now())
		if remaining <= 0 {
			return
		}
		if remaining > slice {
			g.progress("waiting for %s (%s left)", reason, remaining.Truncate(time.Second))
			remaining = slice
		}
		if err := g.sleep(ctx, remaining); err != nil {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
