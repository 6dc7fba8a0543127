package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/straddlebot/internal/domain"
	"github.com/alanyoungcy/straddlebot/internal/store/memory"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func swapAt(id string, offset time.Duration, from, to string, fromAmt, toAmt, fee float64) domain.SwapTransaction {
	return domain.SwapTransaction{
		ID: id, TransactionID: id, FromSymbol: from, ToSymbol: to,
		FromAmount: fromAmt, ToAmount: toAmt, FeeAmount: fee,
		Timestamp: t0.Add(offset), Status: domain.SwapStatusCompleted,
	}
}

func TestProfitCalculator_SwapsFIFO(t *testing.T) {
	swaps := []domain.SwapTransaction{
		swapAt("s3", 2*time.Hour, "BTC", "ETH", 0.01, 0.2, 0),
		swapAt("s1", 0, "USDT", "BTC", 1000, 0.02, 0),
		swapAt("s2", time.Hour, "BTC", "USDT", 0.01, 600, 1),
		swapAt("s4", 3*time.Hour, "ETH", "USDT", 0.2, 540, 0),
	}

	r := ProfitCalculator{}.Swaps(swaps, nil, nil)

	require.Len(t, r.Profits, 2)
	assert.Equal(t, "s2", r.Profits[0].TransactionID)
	assert.InDelta(t, 500.0, r.Profits[0].CostBasis, 1e-9)
	assert.InDelta(t, 99.0, r.Profits[0].Profit, 1e-9)
	assert.InDelta(t, 19.8, r.Profits[0].ProfitPct, 1e-9)
	assert.Equal(t, "s4", r.Profits[1].TransactionID)
	assert.InDelta(t, 40.0, r.Profits[1].Profit, 1e-9)
	assert.InDelta(t, 139.0, r.TotalProfit, 1e-9)
	assert.InDelta(t, 1.0, r.TotalFee, 1e-9)
	assert.Equal(t, 4, r.Count)
	assert.Equal(t, 2, r.Profitable)
	assert.Equal(t, 0, r.Losing)
	assert.Equal(t, []string{"BTC", "ETH", "USDT"}, r.Symbols)
	assert.Empty(t, r.Remaining)
}

func TestProfitCalculator_WindowKeepsEarlierInventory(t *testing.T) {
	swaps := []domain.SwapTransaction{
		swapAt("buy", 0, "USDC", "SOL", 100, 1, 0),
		swapAt("sell", 48*time.Hour, "SOL", "USDC", 0.5, 40, 0),
	}
	since := t0.Add(24 * time.Hour)

	r := ProfitCalculator{}.Swaps(swaps, &since, nil)

	require.Len(t, r.Profits, 1)
	assert.InDelta(t, -10.0, r.Profits[0].Profit, 1e-9)
	assert.Equal(t, 1, r.Losing)
	assert.Equal(t, 1, r.Count)
	require.Contains(t, r.Remaining, "SOL")
	assert.InDelta(t, 0.5, r.Remaining["SOL"].Amount, 1e-12)
	assert.InDelta(t, 100.0, r.Remaining["SOL"].AvgPrice, 1e-9)
}

func TestProfitCalculator_SkipsFailedAndUntimed(t *testing.T) {
	failed := swapAt("f", 0, "USDT", "BTC", 1000, 0.02, 0)
	failed.Status = domain.SwapStatusFailed
	untimed := swapAt("u", 0, "BTC", "USDT", 0.01, 600, 0)
	untimed.Timestamp = time.Time{}

	r := ProfitCalculator{}.Swaps([]domain.SwapTransaction{failed, untimed}, nil, nil)
	assert.Zero(t, r.Count)
	assert.Empty(t, r.Profits)
}

func TestProfitService_Summary(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	s := st.Stores()

	closedAt := func(d time.Duration) *time.Time {
		ts := t0.Add(d)
		return &ts
	}
	for i, tc := range []struct {
		pnl float64
		at  *time.Time
	}{
		{5, closedAt(time.Hour)},
		{-2, closedAt(2 * time.Hour)},
		{1, closedAt(3 * time.Hour)},
		{50, closedAt(-48 * time.Hour)},
	} {
		exit := 100 + tc.pnl
		require.NoError(t, s.Trades.Create(ctx, domain.Trade{
			ID: string(rune('a' + i)), Symbol: "BTCUSDT", Side: domain.TradeSideBuy, Quantity: 1,
			EntryPrice: 100, ExitPrice: &exit, Status: domain.TradeStatusClosed,
			PositionID: "p", CreatedAt: t0.Add(-72 * time.Hour), ClosedAt: tc.at, PnL: tc.pnl,
		}))
	}
	require.NoError(t, s.Swaps.Create(ctx, swapAt("s1", -time.Hour, "USDT", "BTC", 1000, 0.02, 0)))
	require.NoError(t, s.Swaps.Create(ctx, swapAt("s2", time.Hour, "BTC", "USDT", 0.01, 510, 0)))

	svc := NewProfitService(s, testLogger())
	sum, err := svc.Summary(ctx, t0, t0.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 3, sum.TradeCount)
	assert.Equal(t, 2, sum.Wins)
	assert.Equal(t, 1, sum.Losses)
	assert.InDelta(t, 66.666, sum.WinRate, 0.01)
	assert.InDelta(t, 4.0, sum.TradePnL, 1e-9)
	assert.Equal(t, 5.0, sum.BestTrade)
	assert.Equal(t, -2.0, sum.WorstTrade)
	assert.InDelta(t, 10.0, sum.Swaps.TotalProfit, 1e-9)
	assert.InDelta(t, 14.0, sum.NetProfit, 1e-9)
}

func TestProfitService_SummaryRejectsInvertedRange(t *testing.T) {
	svc := NewProfitService(memory.New().Stores(), testLogger())
	_, err := svc.Summary(context.Background(), t0, t0.Add(-time.Hour))
	assert.ErrorIs(t, err, domain.ErrValidation)
}
