package infra

import (
	"sync"
	"time"
)

// Throttle enforces a minimum interval between expensive operations.
// Thread-safe and suitable for concurrent callers.
type Throttle struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        time.Time
}

// NewThrottle creates a throttle that admits at most one call per minInterval.
// A non-positive interval admits every call.
func NewThrottle(minInterval time.Duration) *Throttle {
	return &Throttle{minInterval: minInterval}
}

// Allow reports whether enough time has passed since the last admitted call,
// and records the admission when it has. It never blocks.
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.minInterval {
		return false
	}
	t.last = now
	return true
}
