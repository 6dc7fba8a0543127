package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/alanyoungcy/straddlebot/internal/domain"
	"github.com/alanyoungcy/straddlebot/internal/service"
)

// TickAller advances every configured symbol one strategy step.
type TickAller interface {
	TickAll(ctx context.Context) error
}

// Summarizer builds a profit summary for a window.
type Summarizer interface {
	Summary(ctx context.Context, since, until time.Time) (service.ProfitSummary, error)
}

// RiskSweeper checks every in-progress position against the risk limits.
type RiskSweeper interface {
	CheckPositions(ctx context.Context) ([]service.RiskCheck, error)
}

// Alerter delivers operational alerts.
type Alerter interface {
	NotifyAlert(ctx context.Context, title, message string) error
}

// TickJob ticks the strategy engine. Per-symbol failures are reported by the
// engine itself, so they are logged here rather than failing the job.
func TickJob(engine TickAller, logger *slog.Logger) Job {
	return func(ctx context.Context) error {
		if err := engine.TickAll(ctx); err != nil {
			logger.WarnContext(ctx, "scheduler: tick finished with errors", slog.String("error", err.Error()))
		}
		return nil
	}
}

// DailySummaryJob sends the profit summary for the 24 hours ending now.
func DailySummaryJob(profits Summarizer, alerts Alerter, now func() time.Time) Job {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return func(ctx context.Context) error {
		until := now()
		sum, err := profits.Summary(ctx, until.Add(-24*time.Hour), until)
		if err != nil {
			return fmt.Errorf("daily summary: %w", err)
		}
		return alerts.NotifyAlert(ctx, "Daily Trading Summary", FormatSummary(sum))
	}
}

// FormatSummary renders a profit summary as plain text.
func FormatSummary(s service.ProfitSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Window: %s to %s\n", s.Since.Format(time.RFC3339), s.Until.Format(time.RFC3339))
	fmt.Fprintf(&b, "Total Trades: %d (%d won, %d lost)\n", s.TradeCount, s.Wins, s.Losses)
	fmt.Fprintf(&b, "Win Rate: %.2f%%\n", s.WinRate)
	fmt.Fprintf(&b, "Trade P/L: $%.2f\n", s.TradePnL)
	if s.TradeCount > 0 {
		fmt.Fprintf(&b, "Best / Worst: $%.2f / $%.2f\n", s.BestTrade, s.WorstTrade)
	}
	if s.Swaps.Count > 0 {
		fmt.Fprintf(&b, "Swap Profit: $%.2f over %d swaps (fees $%.2f)\n", s.Swaps.TotalProfit, s.Swaps.Count, s.Swaps.TotalFee)
	}
	fmt.Fprintf(&b, "Net P/L: $%.2f", s.NetProfit)
	return b.String()
}

// RiskSweepJob alerts on every in-progress position breaching a limit.
func RiskSweepJob(risk RiskSweeper, alerts Alerter) Job {
	return func(ctx context.Context) error {
		checks, err := risk.CheckPositions(ctx)
		if err != nil {
			return fmt.Errorf("risk sweep: %w", err)
		}
		var errs []error
		for _, c := range checks {
			if c.OK() {
				continue
			}
			if err := alerts.NotifyAlert(ctx, "Risk limit exceeded for "+c.Symbol, FormatRiskCheck(c)); err != nil {
				errs = append(errs, fmt.Errorf("risk alert %s: %w", c.Symbol, err))
			}
		}
		return errors.Join(errs...)
	}
}

// FormatRiskCheck renders one risk check result.
func FormatRiskCheck(c service.RiskCheck) string {
	vol := "n/a"
	if !math.IsNaN(c.Volatility) {
		vol = fmt.Sprintf("%.2f%%", c.Volatility*100)
	}
	return fmt.Sprintf(
		"Position: %s\nNotional: $%.2f (ok: %t)\nVolatility: %s (ok: %t)\nUnrealized P/L: $%.2f (ok: %t)",
		c.PositionID, c.Notional, c.NotionalOK, vol, c.VolatilityOK, c.Unrealized, c.UnrealizedOK,
	)
}

// ArchiveJob archives positions closed more than retentionDays ago.
func ArchiveJob(archiver domain.Archiver, retentionDays int, logger *slog.Logger, now func() time.Time) Job {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return func(ctx context.Context) error {
		cutoff := now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
		logger.InfoContext(ctx, "scheduler: starting archive run",
			slog.Time("cutoff", cutoff),
			slog.Int("retention_days", retentionDays),
		)
		n, err := archiver.ArchivePositions(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("archiving positions before %v: %w", cutoff, err)
		}
		logger.InfoContext(ctx, "scheduler: archive run complete", slog.Int64("positions_archived", n))
		return nil
	}
}
