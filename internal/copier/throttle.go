package copier

import (
	"sync"
	"time"
)

// Throttle limits how often a keyed action may run by enforcing a minimum
// interval between runs of the same key.
type Throttle struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastRun     map[string]time.Time
	now         func() time.Time // Injectable clock for deterministic tests
}

// NewThrottle creates a throttle with the given minimum interval per key.
func NewThrottle(minInterval time.Duration) *Throttle {
	return &Throttle{
		minInterval: minInterval,
		lastRun:     make(map[string]time.Time),
		now:         time.Now,
	}
}

// Allow reports whether enough time has passed since the last Touch of key.
// Keys that were never touched are always allowed.
func (t *Throttle) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.lastRun[key]
	if !ok {
		return true
	}
	return t.now().Sub(last) >= t.minInterval
}

// Touch marks key as having run now.
func (t *Throttle) Touch(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastRun[key] = t.now()
}
