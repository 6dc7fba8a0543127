package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

func TestEntryLevels_Fixed(t *testing.T) {
	c := NewEntryLevelCalculator(DefaultLevelsConfig())
	buy, sell := c.EntryLevels(100.0)
	assert.Equal(t, 101.0, buy)
	assert.Equal(t, 99.0, sell)
}

func TestPositionParams(t *testing.T) {
	c := NewEntryLevelCalculator(DefaultLevelsConfig())

	tp, sl := c.PositionParams(100.0, domain.DirectionUp)
	assert.Greater(t, tp, 100.0)
	assert.Less(t, sl, 100.0)
	assert.InDelta(t, 101.0, tp, 1e-9)
	assert.InDelta(t, 99.5, sl, 1e-9)

	tp, sl = c.PositionParams(100.0, domain.DirectionDown)
	assert.Less(t, tp, 100.0)
	assert.Greater(t, sl, 100.0)
	assert.InDelta(t, 99.0, tp, 1e-9)
	assert.InDelta(t, 100.5, sl, 1e-9)
}

func TestClassify(t *testing.T) {
	c := NewEntryLevelCalculator(DefaultLevelsConfig())
	tests := []struct {
		avg  float64
		want domain.MarketCondition
	}{
		{avg: 0.04, want: domain.MarketHighVol},
		{avg: 0.015, want: domain.MarketMediumVol},
		{avg: 0.01, want: domain.MarketLowVol},
		{avg: 0, want: domain.MarketLowVol},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Classify(tt.avg), "avg=%v", tt.avg)
	}
}

func TestDynamicEntryLevels_HighWiderThanLow(t *testing.T) {
	c := NewEntryLevelCalculator(DefaultLevelsConfig())

	high := c.DynamicEntryLevels(100, 0.08, 0.03, 0.01)
	low := c.DynamicEntryLevels(100, 0.005, 0.004, 0.003)

	assert.Equal(t, domain.MarketHighVol, high.MarketCondition)
	assert.Equal(t, domain.MarketLowVol, low.MarketCondition)
	assert.InDelta(t, 0.04, high.AverageVolatility, 1e-12)
	assert.InDelta(t, 0.004, low.AverageVolatility, 1e-12)

	highWidth := high.BuyEntry - high.SellEntry
	lowWidth := low.BuyEntry - low.SellEntry
	assert.Greater(t, highWidth, lowWidth)
	assert.Greater(t, high.BuyEntry, 100.0)
	assert.Less(t, low.SellEntry, 100.0)
}

func TestDynamicEntryLevels_BandClamped(t *testing.T) {
	cfg := DefaultLevelsConfig()
	c := NewEntryLevelCalculator(cfg)

	wild := c.DynamicEntryLevels(100, 0.9, 0.5, 0.2)
	assert.Equal(t, cfg.MaxBandPct, wild.BandPct)

	calm := c.DynamicEntryLevels(100, 0, 0, 0)
	assert.Equal(t, cfg.MinBandPct, calm.BandPct)
}

func TestDynamicEntryLevels_MediumUsesMediumReading(t *testing.T) {
	cfg := DefaultLevelsConfig()
	c := NewEntryLevelCalculator(cfg)
	lv := c.DynamicEntryLevels(200, 0.01, 0.02, 0.015)
	assert.Equal(t, domain.MarketMediumVol, lv.MarketCondition)
	assert.InDelta(t, 0.02*cfg.MediumVolMultiplier, lv.BandPct, 1e-12)
	assert.InDelta(t, 200*(1+lv.BandPct), lv.BuyEntry, 1e-9)
}
