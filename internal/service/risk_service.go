package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/alanyoungcy/straddlebot/internal/analysis"
	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// RiskConfig holds the limits enforced before a straddle is placed and by
// the periodic risk sweep. Zero disables a limit.
type RiskConfig struct {
	MaxActivePositions int
	MaxNotional        float64 // price * quantity of one leg
	MaxVolatility      float64 // stddev of per-candle returns
	UnrealizedAlert    float64 // absolute unrealized pnl per position
	Interval           string
	Lookback           int
}

// RiskCheck is the result of evaluating one active position.
type RiskCheck struct {
	Symbol       string
	PositionID   string
	Notional     float64
	Volatility   float64
	Unrealized   float64
	NotionalOK   bool
	VolatilityOK bool
	UnrealizedOK bool
}

// OK reports whether every limit holds.
func (c RiskCheck) OK() bool {
	return c.NotionalOK && c.VolatilityOK && c.UnrealizedOK
}

// RiskService provides pre-straddle checks and the periodic sweep over
// active positions.
type RiskService struct {
	positions domain.PositionStore
	feed      domain.PriceFeed
	cfg       RiskConfig
	logger    *slog.Logger
}

// NewRiskService creates a RiskService.
func NewRiskService(
	positions domain.PositionStore,
	feed domain.PriceFeed,
	cfg RiskConfig,
	logger *slog.Logger,
) *RiskService {
	if cfg.Interval == "" {
		cfg.Interval = "1h"
	}
	if cfg.Lookback <= 1 {
		cfg.Lookback = 30
	}
	return &RiskService{
		positions: positions,
		feed:      feed,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "risk_service")),
	}
}

// PreStraddleCheck returns an ErrValidation error describing the first
// limit a new straddle on symbol would break, or nil.
//
// Checks performed:
//  1. Maximum number of active positions
//  2. Leg notional within limits
//  3. Market volatility within bounds
func (s *RiskService) PreStraddleCheck(ctx context.Context, symbol string, price, quantity, volatility float64) error {
	if s.cfg.MaxActivePositions > 0 {
		n, err := s.activeCount(ctx)
		if err != nil {
			return fmt.Errorf("risk_service: count active positions: %w", err)
		}
		if n >= s.cfg.MaxActivePositions {
			s.logger.WarnContext(ctx, "risk_service: max active positions reached",
				slog.String("symbol", symbol),
				slog.Int("active", n),
				slog.Int("max", s.cfg.MaxActivePositions),
			)
			return domain.Validationf("max active positions reached (%d/%d)", n, s.cfg.MaxActivePositions)
		}
	}

	notional := price * quantity
	if s.cfg.MaxNotional > 0 && notional > s.cfg.MaxNotional {
		s.logger.WarnContext(ctx, "risk_service: notional exceeds limit",
			slog.String("symbol", symbol),
			slog.Float64("notional", notional),
			slog.Float64("max", s.cfg.MaxNotional),
		)
		return domain.Validationf("notional %.2f exceeds max %.2f", notional, s.cfg.MaxNotional)
	}

	if s.cfg.MaxVolatility > 0 && volatility > s.cfg.MaxVolatility {
		s.logger.WarnContext(ctx, "risk_service: volatility exceeds limit",
			slog.String("symbol", symbol),
			slog.Float64("volatility", volatility),
			slog.Float64("max", s.cfg.MaxVolatility),
		)
		return domain.Validationf("volatility %.4f exceeds max %.4f", volatility, s.cfg.MaxVolatility)
	}
	return nil
}

func (s *RiskService) activeCount(ctx context.Context) (int, error) {
	n := 0
	for _, st := range []domain.PositionStatus{domain.PositionStatusOpen, domain.PositionStatusInProgress} {
		ps, err := s.positions.ListByStatus(ctx, st, domain.ListOpts{})
		if err != nil {
			return 0, err
		}
		n += len(ps)
	}
	return n, nil
}

// CheckPositions evaluates every IN_PROGRESS position against the limits.
// A position whose history cannot be fetched is reported with volatility
// NaN and VolatilityOK true.
func (s *RiskService) CheckPositions(ctx context.Context) ([]RiskCheck, error) {
	positions, err := s.positions.ListByStatus(ctx, domain.PositionStatusInProgress, domain.ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("risk_service: list positions: %w", err)
	}

	checks := make([]RiskCheck, 0, len(positions))
	for _, p := range positions {
		c := RiskCheck{
			Symbol:       p.Symbol,
			PositionID:   p.ID,
			Unrealized:   p.UnrealizedPnL,
			Volatility:   math.NaN(),
			NotionalOK:   true,
			VolatilityOK: true,
			UnrealizedOK: true,
		}
		if p.AverageEntryPrice != nil {
			c.Notional = p.TotalQuantity * *p.AverageEntryPrice
		}
		if s.cfg.MaxNotional > 0 {
			c.NotionalOK = c.Notional <= s.cfg.MaxNotional
		}
		if s.cfg.UnrealizedAlert > 0 {
			c.UnrealizedOK = math.Abs(p.UnrealizedPnL) <= s.cfg.UnrealizedAlert
		}

		candles, err := s.feed.PriceHistory(ctx, p.Symbol, s.cfg.Interval, s.cfg.Lookback)
		if err != nil {
			s.logger.WarnContext(ctx, "risk_service: history unavailable",
				slog.String("symbol", p.Symbol),
				slog.String("error", err.Error()),
			)
		} else {
			c.Volatility = analysis.Volatility(domain.Closes(candles))
			if s.cfg.MaxVolatility > 0 {
				c.VolatilityOK = c.Volatility <= s.cfg.MaxVolatility
			}
		}
		checks = append(checks, c)
	}
	return checks, nil
}
