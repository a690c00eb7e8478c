package backend

import (
	"context"
	"sync"
	"time"

	"ride-admin/internal/logger"
)

// RefreshFunc performs the actual token refresh against the platform.
type RefreshFunc func(ctx context.Context) error

// Governor defaults.
const (
	defaultCooldown   = 60 * time.Second
	defaultBaseDelay  = 2 * time.Second
	defaultMaxRetries = 3
)

// GovernorConfig tunes the session-refresh governor. Zero values take the
// defaults above.
type GovernorConfig struct {
	Cooldown   time.Duration
	BaseDelay  time.Duration
	MaxRetries int
	// OnExhausted is invoked once when the retry budget is spent. The
	// console surfaces a persistent re-authenticate notice from it.
	OnExhausted func()
}

// Governor rate-limits and retries session-token refresh so a burst of
// expired-token errors cannot turn into a request storm. States are idle,
// cooling-down, in-flight and exhausted; exhausted auto-transitions back to
// idle after twice the cooldown.
type Governor struct {
	mu sync.Mutex

	refresh     RefreshFunc
	cooldown    time.Duration
	baseDelay   time.Duration
	maxRetries  int
	onExhausted func()

	lastAttempt  time.Time
	inFlight     bool
	retries      int
	warned       bool
	resetPending bool

	// Injectable for tests.
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration)
	schedule func(d time.Duration, f func())
}

// NewGovernor builds a governor around refresh.
func NewGovernor(refresh RefreshFunc, cfg GovernorConfig) *Governor {
	g := &Governor{
		refresh:     refresh,
		cooldown:    cfg.Cooldown,
		baseDelay:   cfg.BaseDelay,
		maxRetries:  cfg.MaxRetries,
		onExhausted: cfg.OnExhausted,
		now:         time.Now,
		sleep:       sleepCtx,
		schedule: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	if g.cooldown == 0 {
		g.cooldown = defaultCooldown
	}
	if g.baseDelay == 0 {
		g.baseDelay = defaultBaseDelay
	}
	if g.maxRetries == 0 {
		g.maxRetries = defaultMaxRetries
	}
	return g
}

// AttemptRefresh refreshes the session token. It returns true when the token
// was refreshed, false when the attempt was rejected or the refresh failed.
// Rejections (in-flight, cooling down, exhausted) have no side effect beyond
// scheduling the exhausted reset.
func (g *Governor) AttemptRefresh(ctx context.Context) bool {
	g.mu.Lock()

	if g.inFlight {
		g.mu.Unlock()
		return false
	}

	if g.retries >= g.maxRetries {
		g.scheduleResetLocked()
		g.mu.Unlock()
		return false
	}

	if !g.lastAttempt.IsZero() && g.now().Sub(g.lastAttempt) < g.cooldown {
		g.mu.Unlock()
		return false
	}

	g.inFlight = true
	g.lastAttempt = g.now()

	// Exponential back-off before re-attempts: base * 2^(retries-1).
	var delay time.Duration
	if g.retries > 0 {
		delay = g.baseDelay << (g.retries - 1)
	}
	g.mu.Unlock()

	if delay > 0 {
		g.sleep(ctx, delay)
	}

	err := g.refresh(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight = false

	if err == nil {
		g.retries = 0
		g.warned = false
		return true
	}

	g.retries++
	logger.Warn("Session refresh failed", "error", err, "retries", g.retries)

	if g.retries >= g.maxRetries {
		if !g.warned {
			g.warned = true
			if g.onExhausted != nil {
				g.onExhausted()
			}
		}
		g.scheduleResetLocked()
	}
	return false
}

// scheduleResetLocked arms the exhausted → idle transition. Called with the
// mutex held.
func (g *Governor) scheduleResetLocked() {
	if g.resetPending {
		return
	}
	g.resetPending = true
	g.schedule(2*g.cooldown, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.retries = 0
		g.warned = false
		g.resetPending = false
	})
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
