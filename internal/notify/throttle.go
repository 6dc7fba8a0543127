package notify

import (
	"sync"
	"time"
)

// Throttle suppresses repeats of the same key within a TTL window. It is
// safe for concurrent use.
type Throttle struct {
	seen map[string]time.Time // key -> last allowed time
	ttl  time.Duration
	mu   sync.Mutex
	now  func() time.Time
}

// NewThrottle creates a Throttle that lets a key through at most once per
// ttl.
func NewThrottle(ttl time.Duration) *Throttle {
	return &Throttle{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Allow reports whether key may be sent now, recording it when it may.
func (t *Throttle) Allow(key string) bool {
	if t.ttl <= 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if last, ok := t.seen[key]; ok && now.Sub(last) < t.ttl {
		return false
	}
	t.seen[key] = now

	// Entries past their window are swept opportunistically so the map
	// stays bounded by the number of distinct keys per window.
	if len(t.seen) > 256 {
		for k, ts := range t.seen {
			if now.Sub(ts) >= t.ttl {
				delete(t.seen, k)
			}
		}
	}
	return true
}
