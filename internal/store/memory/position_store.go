package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// PositionStore implements domain.PositionStore in memory.
type PositionStore struct {
	a access
}

// Create inserts a position. A second active position for the same symbol
// is rejected with domain.ErrAlreadyActive.
func (s *PositionStore) Create(_ context.Context, p domain.Position) error {
	return s.a.write(func(st *state) error {
		if _, ok := st.positions[p.ID]; ok {
			return fmt.Errorf("memory: create position %s: %w", p.ID, domain.ErrAlreadyExists)
		}
		if p.Status.Active() {
			for _, other := range st.positions {
				if other.Symbol == p.Symbol && other.Status.Active() {
					return fmt.Errorf("memory: create position %s: %w", p.Symbol, domain.ErrAlreadyActive)
				}
			}
		}
		st.positions[p.ID] = p
		return nil
	})
}

// Update replaces a stored position.
func (s *PositionStore) Update(_ context.Context, p domain.Position) error {
	return s.a.write(func(st *state) error {
		if _, ok := st.positions[p.ID]; !ok {
			return domain.ErrNotFound
		}
		st.positions[p.ID] = p
		return nil
	})
}

// GetByID returns the position with the given id.
func (s *PositionStore) GetByID(_ context.Context, id string) (domain.Position, error) {
	var (
		p  domain.Position
		ok bool
	)
	s.a.read(func(st *state) { p, ok = st.positions[id] })
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

// GetActiveBySymbol returns the OPEN or IN_PROGRESS position for symbol.
func (s *PositionStore) GetActiveBySymbol(_ context.Context, symbol string) (domain.Position, error) {
	var (
		p  domain.Position
		ok bool
	)
	s.a.read(func(st *state) {
		for _, cand := range st.positions {
			if cand.Symbol == symbol && cand.Status.Active() {
				p, ok = cand, true
				return
			}
		}
	})
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

// ListByStatus returns positions in status, newest first. An empty status
// matches every position.
func (s *PositionStore) ListByStatus(_ context.Context, status domain.PositionStatus, opts domain.ListOpts) ([]domain.Position, error) {
	var out []domain.Position
	s.a.read(func(st *state) {
		for _, p := range st.positions {
			if status != "" && p.Status != status {
				continue
			}
			if !inRange(p.OpenTime, opts) {
				continue
			}
			out = append(out, p)
		}
	})
	sortBy(out, func(a, b domain.Position) bool { return a.OpenTime.After(b.OpenTime) })
	return page(out, opts), nil
}

// ListClosedBefore returns CLOSED positions whose close time precedes before.
func (s *PositionStore) ListClosedBefore(_ context.Context, before time.Time) ([]domain.Position, error) {
	var out []domain.Position
	s.a.read(func(st *state) {
		for _, p := range st.positions {
			if p.Status == domain.PositionStatusClosed && p.CloseTime != nil && p.CloseTime.Before(before) {
				out = append(out, p)
			}
		}
	})
	sortBy(out, func(a, b domain.Position) bool { return a.CloseTime.Before(*b.CloseTime) })
	return out, nil
}

var _ domain.PositionStore = (*PositionStore)(nil)
