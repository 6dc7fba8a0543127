package strategy

import (
	"context"
	"time"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// Ledger is the subset of the position ledger the engine drives.
type Ledger interface {
	ActivePosition(ctx context.Context, symbol string) (domain.Position, error)
	TradesForPosition(ctx context.Context, positionID string) ([]domain.Trade, error)
	CreateStraddleTrades(ctx context.Context, symbol string, price, quantity float64, levels *domain.EntryLevels) (domain.Trade, domain.Trade, error)
	HandleBreakout(ctx context.Context, symbol string, sig domain.BreakoutSignal) (domain.Trade, error)
	CloseTrade(ctx context.Context, tradeID string, exitPrice float64) (domain.Trade, error)
	MarkPosition(ctx context.Context, symbol string, price float64) (domain.Position, error)
}

// Analyzer detects breakouts. A false result means no signal.
type Analyzer interface {
	MinHistory() int
	AnalyzeBreakout(ctx context.Context, symbol string, prices, volumes []float64) (domain.BreakoutSignal, bool)
}

// LevelPlanner derives volatility-scaled straddle entry levels.
type LevelPlanner interface {
	DynamicEntryLevels(price, short, medium, long float64) domain.EntryLevels
}

// RiskChecker vets a straddle before it is placed.
type RiskChecker interface {
	PreStraddleCheck(ctx context.Context, symbol string, price, quantity, volatility float64) error
}

// Config holds engine parameters.
type Config struct {
	Symbols      []string
	Quantity     float64
	Interval     string
	HistoryLimit int
	TickTimeout  time.Duration
	LockTTL      time.Duration
	Concurrency  int
}

// DefaultConfig returns engine defaults for hourly candles.
func DefaultConfig() Config {
	return Config{
		Quantity:     0.001,
		Interval:     "1h",
		HistoryLimit: 100,
		TickTimeout:  30 * time.Second,
		LockTTL:      2 * time.Minute,
		Concurrency:  4,
	}
}
