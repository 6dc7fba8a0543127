package memory

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// SwapStore implements domain.SwapStore in memory.
type SwapStore struct {
	a access
}

// Create inserts a swap; transaction ids are unique.
func (s *SwapStore) Create(_ context.Context, sw domain.SwapTransaction) error {
	return s.a.write(func(st *state) error {
		if _, ok := st.swaps[sw.TransactionID]; ok {
			return fmt.Errorf("memory: create swap %s: %w", sw.TransactionID, domain.ErrAlreadyExists)
		}
		st.swaps[sw.TransactionID] = sw
		return nil
	})
}

// Update replaces a stored swap, matched on transaction id.
func (s *SwapStore) Update(_ context.Context, sw domain.SwapTransaction) error {
	return s.a.write(func(st *state) error {
		if _, ok := st.swaps[sw.TransactionID]; !ok {
			return domain.ErrNotFound
		}
		st.swaps[sw.TransactionID] = sw
		return nil
	})
}

// GetByTransactionID returns the swap with the given transaction id.
func (s *SwapStore) GetByTransactionID(_ context.Context, transactionID string) (domain.SwapTransaction, error) {
	var (
		sw domain.SwapTransaction
		ok bool
	)
	s.a.read(func(st *state) { sw, ok = st.swaps[transactionID] })
	if !ok {
		return domain.SwapTransaction{}, domain.ErrNotFound
	}
	return sw, nil
}

// ListByPosition returns swaps attributed to positionID, oldest first.
func (s *SwapStore) ListByPosition(_ context.Context, positionID string) ([]domain.SwapTransaction, error) {
	var out []domain.SwapTransaction
	s.a.read(func(st *state) {
		for _, sw := range st.swaps {
			if sw.PositionID != nil && *sw.PositionID == positionID {
				out = append(out, sw)
			}
		}
	})
	sortBy(out, swapOlder)
	return out, nil
}

// List returns swaps whose timestamp falls within opts, oldest first.
func (s *SwapStore) List(_ context.Context, opts domain.ListOpts) ([]domain.SwapTransaction, error) {
	var out []domain.SwapTransaction
	s.a.read(func(st *state) {
		for _, sw := range st.swaps {
			if inRange(sw.Timestamp, opts) {
				out = append(out, sw)
			}
		}
	})
	sortBy(out, swapOlder)
	return page(out, opts), nil
}

func swapOlder(a, b domain.SwapTransaction) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.TransactionID < b.TransactionID
}

var _ domain.SwapStore = (*SwapStore)(nil)
