// Package ratelimit implements the per-client admission gate: a fixed window
// of configurable length with a maximum request count per client key.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration // remaining window time when denied
	Remaining  int           // admissions left in the current window
}

type window struct {
	startedAt time.Time
	count     int
}

// Limiter owns the window registry. It is an explicit object handed to the
// HTTP layer, not package state, and is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window

	windowLen      time.Duration
	maxRequests    int
	excludeSuccess bool
	now            func() time.Time
}

type Option func(*Limiter)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithExcludeSuccess makes successful requests refundable via Forgive, so
// legitimate repeated measurement runs are not penalized.
func WithExcludeSuccess(exclude bool) Option {
	return func(l *Limiter) { l.excludeSuccess = exclude }
}

func New(windowLen time.Duration, maxRequests int, opts ...Option) *Limiter {
	l := &Limiter{
		windows:     make(map[string]*window),
		windowLen:   windowLen,
		maxRequests: maxRequests,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit counts one request for key and decides whether it may proceed.
// O(1) per call, no I/O.
func (l *Limiter) Admit(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.startedAt) >= l.windowLen {
		w = &window{startedAt: now}
		l.windows[key] = w
	}

	w.count++
	if w.count > l.maxRequests {
		return Decision{
			Allowed:    false,
			RetryAfter: w.startedAt.Add(l.windowLen).Sub(now),
		}
	}
	return Decision{Allowed: true, Remaining: l.maxRequests - w.count}
}

// Forgive refunds one admitted request for key. It only applies when the
// exclude-success policy is enabled and the key's window is still current.
func (l *Limiter) Forgive(key string) {
	if !l.excludeSuccess {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || l.now().Sub(w.startedAt) >= l.windowLen {
		return
	}
	if w.count > 0 {
		w.count--
	}
}

// Sweep drops windows that expired before now. Entry growth is bounded for a
// long-running process either way; the sweep just reclaims idle clients.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, w := range l.windows {
		if now.Sub(w.startedAt) >= l.windowLen {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps stale windows on the given interval until ctx is done.
func (l *Limiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func (l *Limiter) trackedKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
