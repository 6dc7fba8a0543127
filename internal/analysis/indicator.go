// Package analysis computes volatility, breakout signals, and straddle entry
// levels from price and volume series. Every function here is pure; series
// are ordered oldest to newest.
package analysis

import "math"

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev returns the standard deviation of xs. With sample set it divides by
// n-1 and needs at least two values; otherwise it is the population figure.
func stddev(xs []float64, sample bool) float64 {
	n := len(xs)
	if n == 0 || (sample && n < 2) {
		return math.NaN()
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	div := float64(n)
	if sample {
		div = float64(n - 1)
	}
	return math.Sqrt(ss / div)
}

// window returns the trailing slice of at most period values ending at i.
func window(xs []float64, i, period int) []float64 {
	start := i - period + 1
	if start < 0 {
		start = 0
	}
	return xs[start : i+1]
}

// rollingMean averages the trailing period values at each index, skipping
// NaN inputs. Indices with fewer than minPeriods valid values are NaN.
func rollingMean(xs []float64, period, minPeriods int) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		var sum float64
		var n int
		for _, x := range window(xs, i, period) {
			if math.IsNaN(x) {
				continue
			}
			sum += x
			n++
		}
		if n < minPeriods || n == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(n)
	}
	return out
}

// rollingStd is the trailing sample standard deviation with the same
// min-periods rule as rollingMean.
func rollingStd(xs []float64, period, minPeriods int) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		w := window(xs, i, period)
		if len(w) < minPeriods {
			out[i] = math.NaN()
			continue
		}
		out[i] = stddev(w, true)
	}
	return out
}

// ema is the bias-adjusted exponential moving average with
// alpha = 2/(span+1). Each value is the weighted mean of every input so far
// with weights (1-alpha)^k, so early values are not dragged toward a seed.
func ema(xs []float64, span int) []float64 {
	out := make([]float64, len(xs))
	decay := 1 - 2/float64(span+1)
	var num, den float64
	for i, x := range xs {
		num = x + decay*num
		den = 1 + decay*den
		out[i] = num / den
	}
	return out
}

// Bands holds Bollinger band series.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Width returns (upper-lower)/middle at index i.
func (b Bands) Width(i int) float64 {
	return (b.Upper[i] - b.Lower[i]) / b.Middle[i]
}

// Bollinger computes simple-moving-average bands k sample deviations wide.
// Leading indices use whatever history exists; index 0 is NaN.
func Bollinger(prices []float64, period int, k float64) Bands {
	mid := rollingMean(prices, period, 1)
	sd := rollingStd(prices, period, 2)
	b := Bands{
		Upper:  make([]float64, len(prices)),
		Middle: mid,
		Lower:  make([]float64, len(prices)),
	}
	for i := range prices {
		b.Upper[i] = mid[i] + k*sd[i]
		b.Lower[i] = mid[i] - k*sd[i]
	}
	return b
}

// RSI returns the simple-average relative strength index. Indices before
// period+1 prices exist are NaN. A window with no losses reads 100; a flat
// window reads 50.
func RSI(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	for i := range out {
		out[i] = math.NaN()
	}
	for i := period; i < len(prices); i++ {
		var gain, loss float64
		for j := i - period + 1; j <= i; j++ {
			d := prices[j] - prices[j-1]
			if d > 0 {
				gain += d
			} else {
				loss -= d
			}
		}
		gain /= float64(period)
		loss /= float64(period)
		out[i] = toRSI(gain, loss)
	}
	return out
}

func toRSI(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the fast-minus-slow EMA line and its signal EMA.
func MACD(prices []float64, fast, slow, signal int) (line, sig []float64) {
	f := ema(prices, fast)
	s := ema(prices, slow)
	line = make([]float64, len(prices))
	for i := range prices {
		line[i] = f[i] - s[i]
	}
	return line, ema(line, signal)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
