package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

func TestDo_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.Do(ctx, func(ctx context.Context, st domain.Stores) error {
		require.NoError(t, st.Positions.Create(ctx, domain.Position{
			ID: "p1", Symbol: "BTCUSDT", Status: domain.PositionStatusOpen, OpenTime: time.Now(),
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Stores().Positions.GetByID(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDo_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.Do(ctx, func(ctx context.Context, st domain.Stores) error {
		if err := st.Positions.Create(ctx, domain.Position{
			ID: "p1", Symbol: "BTCUSDT", Status: domain.PositionStatusOpen, OpenTime: time.Now(),
		}); err != nil {
			return err
		}
		return st.Trades.Create(ctx, domain.Trade{ID: "t1", PositionID: "p1", Side: domain.TradeSideBuy})
	})
	require.NoError(t, err)

	p, err := s.Stores().Positions.GetActiveBySymbol(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)

	trades, err := s.Stores().Trades.ListByPosition(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestPositionStore_OneActivePerSymbol(t *testing.T) {
	ctx := context.Background()
	ps := New().Stores().Positions

	require.NoError(t, ps.Create(ctx, domain.Position{ID: "a", Symbol: "BTCUSDT", Status: domain.PositionStatusOpen}))
	err := ps.Create(ctx, domain.Position{ID: "b", Symbol: "BTCUSDT", Status: domain.PositionStatusInProgress})
	assert.ErrorIs(t, err, domain.ErrAlreadyActive)
	assert.ErrorIs(t, err, domain.ErrConflict)

	// A closed position never blocks, and other symbols are independent.
	assert.NoError(t, ps.Create(ctx, domain.Position{ID: "c", Symbol: "BTCUSDT", Status: domain.PositionStatusClosed}))
	assert.NoError(t, ps.Create(ctx, domain.Position{ID: "d", Symbol: "ETHUSDT", Status: domain.PositionStatusOpen}))
}

func TestSwapStore_UniqueTransactionID(t *testing.T) {
	ctx := context.Background()
	ss := New().Stores().Swaps

	require.NoError(t, ss.Create(ctx, domain.SwapTransaction{TransactionID: "0xabc"}))
	assert.ErrorIs(t, ss.Create(ctx, domain.SwapTransaction{TransactionID: "0xabc"}), domain.ErrAlreadyExists)
}

func TestTradeStore_ListClosedRange(t *testing.T) {
	ctx := context.Background()
	ts := New().Stores().Trades
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, day := range []int{0, 1, 2} {
		closed := base.AddDate(0, 0, day)
		require.NoError(t, ts.Create(ctx, domain.Trade{
			ID:       string(rune('a' + i)),
			Status:   domain.TradeStatusClosed,
			ClosedAt: &closed,
		}))
	}
	require.NoError(t, ts.Create(ctx, domain.Trade{ID: "open", Status: domain.TradeStatusOpen}))

	since := base.Add(12 * time.Hour)
	got, err := ts.ListClosed(ctx, domain.ListOpts{Since: &since})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}
