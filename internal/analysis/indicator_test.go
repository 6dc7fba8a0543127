package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRSI(t *testing.T) {
	tests := []struct {
		name       string
		gain, loss float64
		want       float64
	}{
		{name: "no losses", gain: 1, loss: 0, want: 100},
		{name: "flat", gain: 0, loss: 0, want: 50},
		{name: "no gains", gain: 0, loss: 1, want: 0},
		{name: "balanced", gain: 1, loss: 1, want: 50},
		{name: "rs of three", gain: 3, loss: 1, want: 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, toRSI(tt.gain, tt.loss), 1e-9)
		})
	}
}

func TestRSI_LeadingValuesUndefined(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = float64(100 + i)
	}
	rsi := RSI(prices, 14)
	require.Len(t, rsi, 20)
	for i := 0; i < 14; i++ {
		assert.True(t, math.IsNaN(rsi[i]), "index %d", i)
	}
	assert.Equal(t, 100.0, rsi[19])
}

func TestEMA_ConstantInput(t *testing.T) {
	out := ema([]float64{7, 7, 7, 7}, 12)
	for _, v := range out {
		assert.InDelta(t, 7, v, 1e-12)
	}
}

func TestEMA_FirstValueIsInput(t *testing.T) {
	out := ema([]float64{3, 9}, 3)
	assert.Equal(t, 3.0, out[0])
	// alpha=0.5: weights 1 and 0.5 -> (9 + 0.5*3) / 1.5
	assert.InDelta(t, 7.0, out[1], 1e-12)
}

func TestBollinger_FlatSeriesHasZeroWidth(t *testing.T) {
	prices := []float64{10, 10, 10, 10, 10}
	b := Bollinger(prices, 20, 2)
	assert.True(t, math.IsNaN(b.Upper[0]))
	assert.Equal(t, 10.0, b.Middle[4])
	assert.Equal(t, 0.0, b.Width(4))
}

func TestMACD_TrendSign(t *testing.T) {
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	line, sig := MACD(prices, 12, 26, 9)
	assert.Greater(t, line[59], 0.0)
	assert.Greater(t, sig[59], 0.0)
}
