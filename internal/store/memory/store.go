// Package memory implements the domain stores in process memory. It backs
// paper trading and tests; transactions copy the state, run against the
// copy, and swap it in on success.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

type state struct {
	positions map[string]domain.Position
	trades    map[string]domain.Trade
	swaps     map[string]domain.SwapTransaction // keyed by transaction_id
	audit     []domain.AuditEntry
	auditSeq  int64
}

func newState() *state {
	return &state{
		positions: make(map[string]domain.Position),
		trades:    make(map[string]domain.Trade),
		swaps:     make(map[string]domain.SwapTransaction),
	}
}

func (s *state) clone() *state {
	out := &state{
		positions: make(map[string]domain.Position, len(s.positions)),
		trades:    make(map[string]domain.Trade, len(s.trades)),
		swaps:     make(map[string]domain.SwapTransaction, len(s.swaps)),
		audit:     append([]domain.AuditEntry(nil), s.audit...),
		auditSeq:  s.auditSeq,
	}
	for k, v := range s.positions {
		out.positions[k] = v
	}
	for k, v := range s.trades {
		out.trades[k] = v
	}
	for k, v := range s.swaps {
		out.swaps[k] = v
	}
	return out
}

// access runs fn against a state, taking whatever lock the scope needs.
type access interface {
	read(fn func(st *state))
	write(fn func(st *state) error) error
}

// Store is an in-memory domain.UnitOfWork.
type Store struct {
	mu sync.RWMutex
	st *state
}

// New creates an empty Store.
func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.st)
}

func (s *Store) write(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// Stores returns handles that read and write the committed state directly.
func (s *Store) Stores() domain.Stores {
	return storesFor(s)
}

// Do runs fn against a private copy of the state and commits the copy when
// fn succeeds. Transactions are serialized; fn must only use the stores it
// is handed.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, st domain.Stores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txAccess{st: s.st.clone()}
	if err := fn(ctx, storesFor(tx)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

type txAccess struct {
	st *state
}

func (t *txAccess) read(fn func(st *state)) { fn(t.st) }

func (t *txAccess) write(fn func(st *state) error) error { return fn(t.st) }

func storesFor(a access) domain.Stores {
	return domain.Stores{
		Positions: &PositionStore{a: a},
		Trades:    &TradeStore{a: a},
		Swaps:     &SwapStore{a: a},
		Audit:     &AuditStore{a: a},
	}
}

// inRange reports whether ts satisfies the Since/Until bounds of opts.
func inRange(ts time.Time, opts domain.ListOpts) bool {
	if opts.Since != nil && ts.Before(*opts.Since) {
		return false
	}
	if opts.Until != nil && ts.After(*opts.Until) {
		return false
	}
	return true
}

// page applies Offset and Limit to a sorted slice.
func page[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items
}

func sortBy[T any](items []T, less func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

var _ domain.UnitOfWork = (*Store)(nil)
