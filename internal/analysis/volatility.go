package analysis

import "math"

// Timeframe windows used for multi-horizon volatility.
const (
	ShortWindow  = 10
	MediumWindow = 20
)

// Volatility returns the population standard deviation of successive
// percentage returns. Fewer than two prices yield 0. Returns computed from a
// zero price are skipped.
func Volatility(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev == 0 {
			continue
		}
		returns = append(returns, (prices[i]-prev)/prev)
	}
	if len(returns) == 0 {
		return 0
	}
	v := stddev(returns, false)
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// Timeframes returns volatility over the last ten prices, the last twenty,
// and the full series.
func Timeframes(prices []float64) (short, medium, long float64) {
	return Volatility(tail(prices, ShortWindow)),
		Volatility(tail(prices, MediumWindow)),
		Volatility(prices)
}

func tail(xs []float64, n int) []float64 {
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}
