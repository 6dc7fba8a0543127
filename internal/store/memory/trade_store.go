package memory

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// TradeStore implements domain.TradeStore in memory.
type TradeStore struct {
	a access
}

// Create inserts a trade.
func (s *TradeStore) Create(_ context.Context, t domain.Trade) error {
	return s.a.write(func(st *state) error {
		if _, ok := st.trades[t.ID]; ok {
			return fmt.Errorf("memory: create trade %s: %w", t.ID, domain.ErrAlreadyExists)
		}
		st.trades[t.ID] = t
		return nil
	})
}

// Update replaces a stored trade.
func (s *TradeStore) Update(_ context.Context, t domain.Trade) error {
	return s.a.write(func(st *state) error {
		if _, ok := st.trades[t.ID]; !ok {
			return domain.ErrNotFound
		}
		st.trades[t.ID] = t
		return nil
	})
}

// GetByID returns the trade with the given id.
func (s *TradeStore) GetByID(_ context.Context, id string) (domain.Trade, error) {
	var (
		t  domain.Trade
		ok bool
	)
	s.a.read(func(st *state) { t, ok = st.trades[id] })
	if !ok {
		return domain.Trade{}, domain.ErrNotFound
	}
	return t, nil
}

// ListByPosition returns a position's trades, oldest first.
func (s *TradeStore) ListByPosition(_ context.Context, positionID string) ([]domain.Trade, error) {
	var out []domain.Trade
	s.a.read(func(st *state) {
		for _, t := range st.trades {
			if t.PositionID == positionID {
				out = append(out, t)
			}
		}
	})
	sortBy(out, tradeOlder)
	return out, nil
}

// ListBySymbol returns trades for symbol created within opts, newest first.
func (s *TradeStore) ListBySymbol(_ context.Context, symbol string, opts domain.ListOpts) ([]domain.Trade, error) {
	var out []domain.Trade
	s.a.read(func(st *state) {
		for _, t := range st.trades {
			if t.Symbol == symbol && inRange(t.CreatedAt, opts) {
				out = append(out, t)
			}
		}
	})
	sortBy(out, func(a, b domain.Trade) bool { return tradeOlder(b, a) })
	return page(out, opts), nil
}

// ListClosed returns CLOSED trades whose closed_at falls within opts,
// oldest first.
func (s *TradeStore) ListClosed(_ context.Context, opts domain.ListOpts) ([]domain.Trade, error) {
	var out []domain.Trade
	s.a.read(func(st *state) {
		for _, t := range st.trades {
			if t.Status == domain.TradeStatusClosed && t.ClosedAt != nil && inRange(*t.ClosedAt, opts) {
				out = append(out, t)
			}
		}
	})
	sortBy(out, func(a, b domain.Trade) bool { return a.ClosedAt.Before(*b.ClosedAt) })
	return page(out, opts), nil
}

// tradeOlder orders by creation time, breaking ties on side so a straddle's
// BUY leg sorts before its SELL leg.
func tradeOlder(a, b domain.Trade) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Side < b.Side
}

var _ domain.TradeStore = (*TradeStore)(nil)
