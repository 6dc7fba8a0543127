package domain

import "time"

// PositionStatus tracks where a position is in its straddle cycle.
type PositionStatus string

const (
	PositionStatusOpen       PositionStatus = "OPEN"
	PositionStatusInProgress PositionStatus = "IN_PROGRESS"
	PositionStatusClosed     PositionStatus = "CLOSED"
)

// Active reports whether the status counts toward the one-per-symbol limit.
func (s PositionStatus) Active() bool {
	return s == PositionStatusOpen || s == PositionStatusInProgress
}

// Position is a strategy-level aggregate of the trades placed for one symbol.
type Position struct {
	ID                string
	Symbol            string
	Strategy          string
	TotalQuantity     float64
	AverageEntryPrice *float64 // nil while TotalQuantity == 0
	RealizedPnL       float64
	UnrealizedPnL     float64
	Status            PositionStatus
	OpenTime          time.Time
	CloseTime         *time.Time
	MaxTradeLimit     int
}

// ProfitBreakdown splits a position's realized P/L into its sources.
type ProfitBreakdown struct {
	PositionID string
	Gross      float64 // closed trade pnl
	Swaps      float64 // completed swap realized_profit
	Net        float64
}
