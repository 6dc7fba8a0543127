package analysis

import (
	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// LevelsConfig fixes the percentage offsets used for straddle entries and
// exits. All percentages are fractions (0.01 == 1%).
type LevelsConfig struct {
	EntryPct      float64
	TakeProfitPct float64
	StopLossPct   float64

	HighVolThreshold   float64
	MediumVolThreshold float64

	HighVolMultiplier   float64
	MediumVolMultiplier float64
	LowVolMultiplier    float64

	MinBandPct float64
	MaxBandPct float64
}

// DefaultLevelsConfig returns the standard entry settings.
func DefaultLevelsConfig() LevelsConfig {
	return LevelsConfig{
		EntryPct:            0.01,
		TakeProfitPct:       0.01,
		StopLossPct:         0.005,
		HighVolThreshold:    0.02,
		MediumVolThreshold:  0.01,
		HighVolMultiplier:   1.5,
		MediumVolMultiplier: 1.25,
		LowVolMultiplier:    1.0,
		MinBandPct:          0.005,
		MaxBandPct:          0.05,
	}
}

// EntryLevelCalculator turns a price and its volatility into straddle
// entry and exit levels.
type EntryLevelCalculator struct {
	cfg LevelsConfig
}

// NewEntryLevelCalculator creates an EntryLevelCalculator.
func NewEntryLevelCalculator(cfg LevelsConfig) *EntryLevelCalculator {
	return &EntryLevelCalculator{cfg: cfg}
}

// EntryLevels returns the fixed-band buy and sell stop prices.
func (c *EntryLevelCalculator) EntryLevels(price float64) (buy, sell float64) {
	return price * (1 + c.cfg.EntryPct), price * (1 - c.cfg.EntryPct)
}

// PositionParams returns take-profit and stop-loss for an entry. For UP the
// take-profit sits above the entry and the stop below; DOWN mirrors it.
func (c *EntryLevelCalculator) PositionParams(entry float64, dir domain.Direction) (takeProfit, stopLoss float64) {
	if dir == domain.DirectionDown {
		return entry * (1 - c.cfg.TakeProfitPct), entry * (1 + c.cfg.StopLossPct)
	}
	return entry * (1 + c.cfg.TakeProfitPct), entry * (1 - c.cfg.StopLossPct)
}

// Classify maps an average volatility onto a market condition.
func (c *EntryLevelCalculator) Classify(avg float64) domain.MarketCondition {
	switch {
	case avg > c.cfg.HighVolThreshold:
		return domain.MarketHighVol
	case avg > c.cfg.MediumVolThreshold:
		return domain.MarketMediumVol
	default:
		return domain.MarketLowVol
	}
}

// DynamicEntryLevels sizes the straddle band from the volatility reading
// that matters for the classified condition: the short horizon in choppy
// markets, the long horizon in calm ones.
func (c *EntryLevelCalculator) DynamicEntryLevels(price, short, medium, long float64) domain.EntryLevels {
	avg := (short + medium + long) / 3
	cond := c.Classify(avg)

	var band float64
	switch cond {
	case domain.MarketHighVol:
		band = short * c.cfg.HighVolMultiplier
	case domain.MarketMediumVol:
		band = medium * c.cfg.MediumVolMultiplier
	default:
		band = long * c.cfg.LowVolMultiplier
	}
	band = clamp(band, c.cfg.MinBandPct, c.cfg.MaxBandPct)

	return domain.EntryLevels{
		CurrentPrice:      price,
		BuyEntry:          price * (1 + band),
		SellEntry:         price * (1 - band),
		BandPct:           band,
		MarketCondition:   cond,
		AverageVolatility: avg,
		ShortVolatility:   short,
		MediumVolatility:  medium,
		LongVolatility:    long,
	}
}
