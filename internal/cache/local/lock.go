// Package local implements the domain cache, lock and event bus interfaces
// in process, for paper trading and tests.
package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// LockManager is a keyed mutex. Locks fail fast like the Redis manager and
// expire after their ttl so a crashed holder cannot wedge a symbol.
type LockManager struct {
	mu    sync.Mutex
	held  map[string]lease
	seq   uint64
	clock func() time.Time
}

type lease struct {
	token   uint64
	expires time.Time
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]lease), clock: time.Now}
}

// Acquire takes key or returns domain.ErrLockHeld when another live lease
// holds it. A non-positive ttl never expires.
func (m *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if l, ok := m.held[key]; ok && (l.expires.IsZero() || now.Before(l.expires)) {
		return nil, fmt.Errorf("local: lock %s: %w", key, domain.ErrLockHeld)
	}
	m.seq++
	l := lease{token: m.seq}
	if ttl > 0 {
		l.expires = now.Add(ttl)
	}
	m.held[key] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if cur, ok := m.held[key]; ok && cur.token == l.token {
				delete(m.held, key)
			}
		})
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
