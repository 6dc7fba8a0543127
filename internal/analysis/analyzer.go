package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// AnalyzerConfig holds indicator windows and thresholds.
type AnalyzerConfig struct {
	BBPeriod         int
	BBStdDev         float64
	SqueezeRatio     float64 // width must fall below this fraction of its average
	VolumePeriod     int
	VolumeThreshold  float64
	RSIPeriod        int
	DivergencePeriod int
	MACDFast         int
	MACDSlow         int
	MACDSignal       int
}

// DefaultAnalyzerConfig returns the standard breakout indicator settings.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		BBPeriod:         20,
		BBStdDev:         2,
		SqueezeRatio:     0.5,
		VolumePeriod:     20,
		VolumeThreshold:  2.0,
		RSIPeriod:        14,
		DivergencePeriod: 5,
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
	}
}

// MinHistory is the number of prices the longest indicator needs.
func (c AnalyzerConfig) MinHistory() int {
	n := c.MACDSlow
	if c.BBPeriod > n {
		n = c.BBPeriod
	}
	if c.RSIPeriod+c.DivergencePeriod > n {
		n = c.RSIPeriod + c.DivergencePeriod
	}
	return n
}

var (
	errInsufficientHistory = errors.New("insufficient history")
	errNoSqueeze           = errors.New("no squeeze")
	errInsideBands         = errors.New("price inside bands")
)

// MarketAnalyzer derives breakout signals from price and volume series.
type MarketAnalyzer struct {
	cfg    AnalyzerConfig
	logger *slog.Logger
}

// NewMarketAnalyzer creates a MarketAnalyzer.
func NewMarketAnalyzer(cfg AnalyzerConfig, logger *slog.Logger) *MarketAnalyzer {
	return &MarketAnalyzer{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "market_analyzer")),
	}
}

// MinHistory is the number of prices AnalyzeBreakout needs.
func (a *MarketAnalyzer) MinHistory() int {
	return a.cfg.MinHistory()
}

// AnalyzeBreakout returns a breakout signal and true when the series shows a
// Bollinger squeeze with the latest price outside the bands. Short history,
// invalid input, and computation failures all report false; they are logged
// and never returned as errors.
func (a *MarketAnalyzer) AnalyzeBreakout(ctx context.Context, symbol string, prices, volumes []float64) (domain.BreakoutSignal, bool) {
	sig, err := a.evaluate(symbol, prices, volumes, true)
	switch {
	case err == nil:
		a.logger.InfoContext(ctx, "market_analyzer: breakout detected",
			slog.String("symbol", symbol),
			slog.String("direction", string(sig.Direction)),
			slog.Float64("price", sig.Price),
			slog.Float64("confidence", sig.Confidence),
		)
		return sig, true
	case errors.Is(err, errNoSqueeze), errors.Is(err, errInsideBands), errors.Is(err, errInsufficientHistory):
		a.logger.DebugContext(ctx, "market_analyzer: no signal",
			slog.String("symbol", symbol),
			slog.String("reason", err.Error()),
		)
	case errors.Is(err, domain.ErrValidation):
		a.logger.WarnContext(ctx, "market_analyzer: invalid input",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	default:
		a.logger.ErrorContext(ctx, "market_analyzer: analysis failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
	return domain.BreakoutSignal{}, false
}

// Conditions computes every indicator without the squeeze short-circuit.
// It is meant for reporting; unlike AnalyzeBreakout it returns errors.
func (a *MarketAnalyzer) Conditions(symbol string, prices, volumes []float64) (domain.MarketConditions, error) {
	sig, err := a.evaluate(symbol, prices, volumes, false)
	if err != nil && !errors.Is(err, errInsideBands) {
		return domain.MarketConditions{}, err
	}
	return sig.Conditions, nil
}

func (a *MarketAnalyzer) validate(symbol string, prices, volumes []float64) error {
	if symbol == "" {
		return domain.Validationf("empty symbol")
	}
	if len(prices) < a.cfg.MinHistory() {
		return fmt.Errorf("%w: %d < %d", errInsufficientHistory, len(prices), a.cfg.MinHistory())
	}
	if len(volumes) < a.cfg.VolumePeriod {
		return domain.Validationf("volume series has %d points, need %d", len(volumes), a.cfg.VolumePeriod)
	}
	for i, p := range prices {
		if !(p > 0) || math.IsInf(p, 0) {
			return domain.Validationf("price[%d]=%v must be positive", i, p)
		}
	}
	for i, v := range volumes {
		if v < 0 || math.IsNaN(v) {
			return domain.Validationf("volume[%d]=%v must be non-negative", i, v)
		}
	}
	return nil
}

// evaluate runs the indicators in order. With requireSqueeze set it stops
// as soon as the squeeze test fails.
func (a *MarketAnalyzer) evaluate(symbol string, prices, volumes []float64, requireSqueeze bool) (domain.BreakoutSignal, error) {
	if err := a.validate(symbol, prices, volumes); err != nil {
		return domain.BreakoutSignal{}, err
	}
	last := len(prices) - 1
	price := prices[last]
	var mc domain.MarketConditions
	mc.CurrentPrice = price

	// 1. Bollinger bands.
	bands := Bollinger(prices, a.cfg.BBPeriod, a.cfg.BBStdDev)
	upper, middle, lower := bands.Upper[last], bands.Middle[last], bands.Lower[last]
	if !finite(upper, middle, lower) || middle == 0 {
		return domain.BreakoutSignal{}, fmt.Errorf("bollinger bands not finite: upper=%v middle=%v lower=%v", upper, middle, lower)
	}
	mc.UpperBand, mc.MiddleBand, mc.LowerBand = upper, middle, lower

	// 2. Squeeze.
	widths := make([]float64, len(prices))
	for i := range prices {
		widths[i] = bands.Width(i)
	}
	avgWidth := rollingMean(widths, a.cfg.BBPeriod, 1)[last]
	width := widths[last]
	if !finite(width, avgWidth) {
		return domain.BreakoutSignal{}, fmt.Errorf("band width not finite: width=%v avg=%v", width, avgWidth)
	}
	if width > 0 {
		mc.SqueezeIntensity = avgWidth / width
	}
	mc.BBSqueeze = width < avgWidth*a.cfg.SqueezeRatio
	if requireSqueeze && !mc.BBSqueeze {
		return domain.BreakoutSignal{Conditions: mc}, errNoSqueeze
	}

	// 3. Volume spike.
	avgVolume := mean(tail(volumes, a.cfg.VolumePeriod))
	if avgVolume > 0 {
		mc.VolumeRatio = volumes[len(volumes)-1] / avgVolume
	}
	mc.VolumeSpike = mc.VolumeRatio > a.cfg.VolumeThreshold

	// 4. RSI.
	rsi := RSI(prices, a.cfg.RSIPeriod)
	mc.CurrentRSI = rsi[last]

	// 5. RSI divergence.
	priceTrend := meanPctChange(tail(prices, a.cfg.DivergencePeriod))
	rsiTrend := meanDiff(tail(rsi, a.cfg.DivergencePeriod))
	if !finite(priceTrend, rsiTrend, mc.CurrentRSI) {
		return domain.BreakoutSignal{}, fmt.Errorf("rsi not finite: trend=%v rsi=%v", rsiTrend, mc.CurrentRSI)
	}
	mc.DivergenceStrength = math.Abs(priceTrend - rsiTrend)
	mc.RSIDivergence = (priceTrend > 0 && rsiTrend < 0) || (priceTrend < 0 && rsiTrend > 0)

	// 6. MACD crossover.
	line, sig := MACD(prices, a.cfg.MACDFast, a.cfg.MACDSlow, a.cfg.MACDSignal)
	prev := last - 1
	mc.MACDCrossover = (line[prev] < sig[prev] && line[last] > sig[last]) ||
		(line[prev] > sig[prev] && line[last] < sig[last])

	// 7. Direction and confidence.
	out := domain.BreakoutSignal{
		Symbol:        symbol,
		Price:         price,
		VolumeSpike:   mc.VolumeSpike,
		BBSqueeze:     mc.BBSqueeze,
		RSIDivergence: mc.RSIDivergence,
		MACDCrossover: mc.MACDCrossover,
		Conditions:    mc,
	}
	switch {
	case price > upper:
		span := upper - middle
		if span <= 0 {
			return domain.BreakoutSignal{}, fmt.Errorf("degenerate upper band: upper=%v middle=%v", upper, middle)
		}
		out.Direction = domain.DirectionUp
		out.Confidence = clamp((price-upper)/span, 0, 1)
	case price < lower:
		span := middle - lower
		if span <= 0 {
			return domain.BreakoutSignal{}, fmt.Errorf("degenerate lower band: lower=%v middle=%v", lower, middle)
		}
		out.Direction = domain.DirectionDown
		out.Confidence = clamp((lower-price)/span, 0, 1)
	default:
		return out, errInsideBands
	}
	return out, nil
}

func meanPctChange(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	changes := make([]float64, 0, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		changes = append(changes, (xs[i]-xs[i-1])/xs[i-1])
	}
	return mean(changes)
}

func meanDiff(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	diffs := make([]float64, 0, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		diffs = append(diffs, xs[i]-xs[i-1])
	}
	return mean(diffs)
}
