package domain

import (
	"context"
	"time"
)

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime  time.Time
	CloseTime time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Closes returns the close prices of candles, oldest first.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes returns the volumes of candles, oldest first.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// PriceFeed supplies market data. Implementations return candles ordered
// oldest to newest and wrap transient failures with ErrUpstreamUnavailable.
type PriceFeed interface {
	PriceHistory(ctx context.Context, symbol, interval string, count int) ([]Candle, error)
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// Ticker is a streamed last-price update.
type Ticker struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}
