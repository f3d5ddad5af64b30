package copier

import (
	"sync"
	"time"
)

// Backoff gates outbound calls per source address. Each failure widens an
// exponential wait window, bounded by a maximum; a success clears the
// address immediately.
type Backoff struct {
	mu    sync.Mutex
	base  time.Duration
	max   time.Duration
	state map[string]backoffState
	now   func() time.Time // Injectable clock for deterministic tests
}

type backoffState struct {
	failures  int
	notBefore time.Time
}

// NewBackoff creates a backoff gate. Non-positive durations fall back to a
// 2s base and a 5m cap.
func NewBackoff(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = 2 * time.Second
	}
	if max <= 0 {
		max = 5 * time.Minute
	}
	return &Backoff{
		base:  base,
		max:   max,
		state: make(map[string]backoffState),
		now:   time.Now,
	}
}

// Ready reports whether calls for the address are currently allowed.
func (b *Backoff) Ready(address string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.state[address]
	if !ok {
		return true
	}
	return !b.now().Before(st.notBefore)
}

// Failure records a failed call and extends the wait window. Returns the
// delay applied, for logging.
func (b *Backoff) Failure(address string) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.state[address]
	st.failures++

	delay := b.base
	for i := 1; i < st.failures; i++ {
		delay *= 2
		if delay >= b.max {
			delay = b.max
			break
		}
	}
	st.notBefore = b.now().Add(delay)
	b.state[address] = st
	return delay
}

// Success clears any backoff state for the address.
func (b *Backoff) Success(address string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.state, address)
}
