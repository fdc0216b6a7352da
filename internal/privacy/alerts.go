package privacy

import (
	"sync"
	"time"
)

// Alert is an operator-facing notification raised by the pipeline.
type Alert struct {
	Type    string `json:"type"`
	Trigger string `json:"trigger"`
	Message string `json:"message"`
}

func (a Alert) key() alertKey {
	return alertKey{a.Type, a.Trigger, a.Message}
}

type alertKey struct {
	alertType string
	trigger   string
	message   string
}

// AlertThrottle deduplicates alerts by (type, trigger, message) and
// applies a per-type cooldown window, so repeated violations do not
// spam operators. Same injected-clock discipline as WindowLimiter.
type AlertThrottle struct {
	cooldowns map[string]time.Duration
	fallback  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	lastSent map[alertKey]time.Time
}

func NewAlertThrottle(cooldowns map[string]time.Duration, fallback time.Duration) *AlertThrottle {
	return NewAlertThrottleWithClock(cooldowns, fallback, time.Now)
}

func NewAlertThrottleWithClock(cooldowns map[string]time.Duration, fallback time.Duration, now func() time.Time) *AlertThrottle {
	return &AlertThrottle{
		cooldowns: cooldowns,
		fallback:  fallback,
		now:       now,
		lastSent:  make(map[alertKey]time.Time),
	}
}

// Allow reports whether the alert should be delivered now, recording
// the delivery when it is.
func (t *AlertThrottle) Allow(alert Alert) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cooldown, ok := t.cooldowns[alert.Type]
	if !ok {
		cooldown = t.fallback
	}

	now := t.now()
	key := alert.key()
	if last, seen := t.lastSent[key]; seen && now.Sub(last) < cooldown {
		return false
	}
	t.lastSent[key] = now
	return true
}

// Sweep drops entries older than the longest cooldown.
func (t *AlertThrottle) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	maxCooldown := t.fallback
	for _, c := range t.cooldowns {
		if c > maxCooldown {
			maxCooldown = c
		}
	}

	now := t.now()
	removed := 0
	for key, last := range t.lastSent {
		if now.Sub(last) >= maxCooldown {
			delete(t.lastSent, key)
			removed++
		}
	}
	return removed
}
