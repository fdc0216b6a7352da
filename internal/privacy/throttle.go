package privacy

import (
	"sync"
	"time"
)

// RateLimiter throttles repeated submissions per hashed identifier.
// Injected into the submission path so tests can substitute policy.
type RateLimiter interface {
	Allow(key string) bool
}

// WindowLimiter is a fixed-window limiter with lazy expiry plus an
// explicit Sweep. State lives in the struct, the clock is injected:
// no module-level map, no ambient timer.
type WindowLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*windowEntry
}

type windowEntry struct {
	count   int
	started time.Time
}

func NewWindowLimiter(max int, window time.Duration) *WindowLimiter {
	return NewWindowLimiterWithClock(max, window, time.Now)
}

func NewWindowLimiterWithClock(max int, window time.Duration, now func() time.Time) *WindowLimiter {
	return &WindowLimiter{
		max:     max,
		window:  window,
		now:     now,
		entries: make(map[string]*windowEntry),
	}
}

func (l *WindowLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok || now.Sub(entry.started) >= l.window {
		l.entries[key] = &windowEntry{count: 1, started: now}
		return true
	}
	if entry.count >= l.max {
		return false
	}
	entry.count++
	return true
}

// Sweep drops expired windows. Callers decide when; typically on a
// periodic tick owned by the app, not by this package.
func (l *WindowLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, entry := range l.entries {
		if now.Sub(entry.started) >= l.window {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}
