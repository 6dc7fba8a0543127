package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// StraddleSink formats ledger and engine events and hands them to a
// Notifier. Repeated error messages are throttled.
type StraddleSink struct {
	notifier *Notifier
	errors   *Throttle
}

// NewStraddleSink creates a sink on notifier. Identical error messages are
// forwarded at most once per errorWindow.
func NewStraddleSink(notifier *Notifier, errorWindow time.Duration) *StraddleSink {
	return &StraddleSink{notifier: notifier, errors: NewThrottle(errorWindow)}
}

// NotifyStraddleSetup announces a freshly placed pending pair.
func (s *StraddleSink) NotifyStraddleSetup(ctx context.Context, setup domain.StraddleSetup) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Current Price: %s\n", money(setup.CurrentPrice))
	fmt.Fprintf(&b, "Buy Stop: %s\n", money(setup.BuyEntry))
	fmt.Fprintf(&b, "Sell Stop: %s\n", money(setup.SellEntry))
	fmt.Fprintf(&b, "Position Size: %g", setup.Quantity)
	if lv := setup.Levels; lv != nil {
		fmt.Fprintf(&b, "\nBand: %.2f%% (%s volatility %.4f)", lv.BandPct*100, lv.MarketCondition, lv.AverageVolatility)
	}
	return s.notifier.Notify(ctx, EventStraddleSetup, "New Straddle Setup for "+setup.Symbol, b.String())
}

// NotifyBreakout announces a detected breakout and the indicators behind it.
func (s *StraddleSink) NotifyBreakout(ctx context.Context, sig domain.BreakoutSignal) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Direction: %s\n", sig.Direction)
	fmt.Fprintf(&b, "Price: %s\n", money(sig.Price))
	fmt.Fprintf(&b, "Confidence: %.2f%%\n", sig.Confidence*100)
	fmt.Fprintf(&b, "Volume Spike: %s\n", mark(sig.VolumeSpike))
	fmt.Fprintf(&b, "BB Squeeze: %s\n", mark(sig.BBSqueeze))
	fmt.Fprintf(&b, "RSI Divergence: %s\n", mark(sig.RSIDivergence))
	fmt.Fprintf(&b, "MACD Crossover: %s", mark(sig.MACDCrossover))
	return s.notifier.Notify(ctx, EventBreakout, "Breakout Detected for "+sig.Symbol, b.String())
}

// NotifyPositionClose summarizes a finished position and its closed legs.
func (s *StraddleSink) NotifyPositionClose(ctx context.Context, pos domain.Position, trades []domain.Trade) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Realized PnL: %s\n", signedMoney(pos.RealizedPnL))
	for _, t := range trades {
		if t.Status != domain.TradeStatusClosed || t.ExitPrice == nil {
			continue
		}
		ret := 0.0
		if t.EntryPrice != 0 {
			ret = (*t.ExitPrice - t.EntryPrice) / t.EntryPrice * t.Side.Sign()
		}
		fmt.Fprintf(&b, "%s %g: entry %s exit %s pnl %s (%.2f%%)\n",
			t.Side, t.Quantity, money(t.EntryPrice), money(*t.ExitPrice), signedMoney(t.PnL), ret*100)
	}
	if pos.CloseTime != nil {
		fmt.Fprintf(&b, "Held: %s", pos.CloseTime.Sub(pos.OpenTime).Round(time.Second))
	}
	return s.notifier.Notify(ctx, EventPositionClose, "Closed position for "+pos.Symbol,
		strings.TrimRight(b.String(), "\n"))
}

// NotifyError forwards an error message unless the same text was sent within
// the throttle window.
func (s *StraddleSink) NotifyError(ctx context.Context, message string) error {
	if !s.errors.Allow(message) {
		return nil
	}
	return s.notifier.Notify(ctx, EventError, "Straddle bot error", message)
}

// NotifyAlert forwards an operational alert.
func (s *StraddleSink) NotifyAlert(ctx context.Context, title, message string) error {
	return s.notifier.Notify(ctx, EventAlert, title, message)
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func signedMoney(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("+$%.2f", v)
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

var _ domain.NotificationSink = (*StraddleSink)(nil)
