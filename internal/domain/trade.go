package domain

import "time"

// TradeSide is the direction of a trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// Sign returns +1 for BUY and -1 for SELL.
func (s TradeSide) Sign() float64 {
	if s == TradeSideSell {
		return -1
	}
	return 1
}

// OrderType is the venue order type a trade was placed as.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

// TradeStatus is a trade's lifecycle state.
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "PENDING"
	TradeStatusOpen      TradeStatus = "OPEN"
	TradeStatusClosed    TradeStatus = "CLOSED"
	TradeStatusCancelled TradeStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed.
func (s TradeStatus) Terminal() bool {
	return s == TradeStatusClosed || s == TradeStatusCancelled
}

// Trade is one directional order belonging to a Position.
type Trade struct {
	ID            string
	Symbol        string
	Side          TradeSide
	Quantity      float64
	EntryPrice    float64
	ExitPrice     *float64 // set iff Status == CLOSED
	TakeProfit    float64
	StopLoss      float64
	OrderType     OrderType
	Strategy      string
	Status        TradeStatus
	PositionID    string
	CreatedAt     time.Time
	EnteredAt     *time.Time
	ClosedAt      *time.Time
	PnL           float64
	RealizedPnL   float64
	UnrealizedPnL float64
}

// CanTransition reports whether moving from the trade's current status to
// next is a legal forward step.
func (t Trade) CanTransition(next TradeStatus) bool {
	switch t.Status {
	case TradeStatusPending:
		return next == TradeStatusOpen || next == TradeStatusCancelled
	case TradeStatusOpen:
		return next == TradeStatusClosed || next == TradeStatusCancelled
	default:
		return false
	}
}

// PnLAt returns the directional profit of the trade if it were exited at
// price.
func (t Trade) PnLAt(price float64) float64 {
	return (price - t.EntryPrice) * t.Quantity * t.Side.Sign()
}

// TakeProfitHit reports whether price has reached the take-profit level.
func (t Trade) TakeProfitHit(price float64) bool {
	if t.Side == TradeSideSell {
		return price <= t.TakeProfit
	}
	return price >= t.TakeProfit
}

// StopLossHit reports whether price has reached the stop-loss level.
func (t Trade) StopLossHit(price float64) bool {
	if t.Side == TradeSideSell {
		return price >= t.StopLoss
	}
	return price <= t.StopLoss
}
