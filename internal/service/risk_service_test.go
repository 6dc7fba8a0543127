package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/straddlebot/internal/domain"
	"github.com/alanyoungcy/straddlebot/internal/store/memory"
)

func flatCandles(n int, price float64) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{Close: price, Volume: 1}
	}
	return out
}

func TestRiskService_PreStraddleCheck(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.Stores().Positions.Create(ctx, domain.Position{
		ID: "p1", Symbol: "ETHUSDT", Status: domain.PositionStatusInProgress, OpenTime: time.Now(),
	}))

	tests := []struct {
		name       string
		cfg        RiskConfig
		price      float64
		qty        float64
		volatility float64
		wantErr    bool
	}{
		{"within limits", RiskConfig{MaxActivePositions: 2, MaxNotional: 1000, MaxVolatility: 0.05}, 100, 1, 0.01, false},
		{"too many positions", RiskConfig{MaxActivePositions: 1}, 100, 1, 0.01, true},
		{"notional", RiskConfig{MaxNotional: 50}, 100, 1, 0.01, true},
		{"volatility", RiskConfig{MaxVolatility: 0.02}, 100, 1, 0.03, true},
		{"limits disabled", RiskConfig{}, 1e9, 1e3, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewRiskService(st.Stores().Positions, &fakeFeed{}, tt.cfg, testLogger())
			err := svc.PreStraddleCheck(ctx, "BTCUSDT", tt.price, tt.qty, tt.volatility)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRiskService_CheckPositions(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	avg := 100.0
	require.NoError(t, st.Stores().Positions.Create(ctx, domain.Position{
		ID: "p1", Symbol: "BTCUSDT", Status: domain.PositionStatusInProgress, OpenTime: time.Now(),
		TotalQuantity: 3, AverageEntryPrice: &avg, UnrealizedPnL: -250,
	}))

	svc := NewRiskService(st.Stores().Positions, &fakeFeed{candles: flatCandles(40, 100)},
		RiskConfig{MaxNotional: 500, MaxVolatility: 0.02, UnrealizedAlert: 200}, testLogger())
	checks, err := svc.CheckPositions(ctx)
	require.NoError(t, err)
	require.Len(t, checks, 1)

	c := checks[0]
	assert.Equal(t, 300.0, c.Notional)
	assert.True(t, c.NotionalOK)
	assert.Equal(t, 0.0, c.Volatility)
	assert.True(t, c.VolatilityOK)
	assert.False(t, c.UnrealizedOK)
	assert.False(t, c.OK())
}

func TestRiskService_CheckPositionsWithoutHistory(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.Stores().Positions.Create(ctx, domain.Position{
		ID: "p1", Symbol: "BTCUSDT", Status: domain.PositionStatusInProgress, OpenTime: time.Now(),
	}))

	svc := NewRiskService(st.Stores().Positions, &fakeFeed{err: errors.New("down")},
		RiskConfig{MaxVolatility: 0.02}, testLogger())
	checks, err := svc.CheckPositions(ctx)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.True(t, math.IsNaN(checks[0].Volatility))
	assert.True(t, checks[0].OK())
}

func TestRiskService_UnrealizedAlertAfterMark(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	_, _, err := f.ledger.CreateStraddleTrades(ctx, "BTCUSDT", 100, 1, nil)
	require.NoError(t, err)
	_, err = f.ledger.HandleBreakout(ctx, "BTCUSDT", domain.BreakoutSignal{
		Symbol: "BTCUSDT", Direction: domain.DirectionUp, Price: 101.5, Confidence: 0.8,
	})
	require.NoError(t, err)

	svc := NewRiskService(f.store.Stores().Positions, &fakeFeed{candles: flatCandles(40, 100)},
		RiskConfig{UnrealizedAlert: 1}, testLogger())
	checks, err := svc.CheckPositions(ctx)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.True(t, checks[0].UnrealizedOK)

	_, err = f.ledger.MarkPosition(ctx, "BTCUSDT", 99.5)
	require.NoError(t, err)
	checks, err = svc.CheckPositions(ctx)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.InDelta(t, -2.0, checks[0].Unrealized, 1e-9)
	assert.False(t, checks[0].UnrealizedOK)
}
