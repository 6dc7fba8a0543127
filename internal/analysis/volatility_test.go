package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVolatility_ShortSeries(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
	}{
		{name: "nil", prices: nil},
		{name: "empty", prices: []float64{}},
		{name: "single", prices: []float64{42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 0.0, Volatility(tt.prices))
		})
	}
}

func TestVolatility_KnownReturns(t *testing.T) {
	// Returns are +10% and -10%: population stddev is 0.1.
	prices := []float64{100, 110, 99}
	assert.InDelta(t, 0.1, Volatility(prices), 1e-12)
}

func TestVolatility_ConstantSeries(t *testing.T) {
	assert.Equal(t, 0.0, Volatility([]float64{5, 5, 5, 5}))
}

func TestVolatility_ScaleInvariant(t *testing.T) {
	prices := []float64{100, 101.5, 99.2, 103.8, 102.1, 104.9, 101.3}
	doubled := make([]float64, len(prices))
	for i, p := range prices {
		doubled[i] = p * 2
	}
	assert.InDelta(t, Volatility(prices), Volatility(doubled), 1e-12)
}

func TestTimeframes(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100 + 5*math.Sin(float64(i))
	}
	short, medium, long := Timeframes(prices)
	assert.InDelta(t, Volatility(prices[20:]), short, 1e-12)
	assert.InDelta(t, Volatility(prices[10:]), medium, 1e-12)
	assert.InDelta(t, Volatility(prices), long, 1e-12)

	// Shorter than every window: all three use the whole series.
	few := prices[:5]
	s, m, l := Timeframes(few)
	assert.Equal(t, s, m)
	assert.Equal(t, m, l)
}
