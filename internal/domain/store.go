package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PositionStore persists positions.
type PositionStore interface {
	Create(ctx context.Context, pos Position) error
	Update(ctx context.Context, pos Position) error
	GetByID(ctx context.Context, id string) (Position, error)
	// GetActiveBySymbol returns the OPEN or IN_PROGRESS position for symbol,
	// or ErrNotFound.
	GetActiveBySymbol(ctx context.Context, symbol string) (Position, error)
	ListByStatus(ctx context.Context, status PositionStatus, opts ListOpts) ([]Position, error)
	ListClosedBefore(ctx context.Context, before time.Time) ([]Position, error)
}

// TradeStore persists trades.
type TradeStore interface {
	Create(ctx context.Context, trade Trade) error
	Update(ctx context.Context, trade Trade) error
	GetByID(ctx context.Context, id string) (Trade, error)
	ListByPosition(ctx context.Context, positionID string) ([]Trade, error)
	ListBySymbol(ctx context.Context, symbol string, opts ListOpts) ([]Trade, error)
	// ListClosed returns CLOSED trades whose closed_at falls in the range.
	ListClosed(ctx context.Context, opts ListOpts) ([]Trade, error)
}

// SwapStore persists swap transactions.
type SwapStore interface {
	Create(ctx context.Context, swap SwapTransaction) error
	Update(ctx context.Context, swap SwapTransaction) error
	GetByTransactionID(ctx context.Context, transactionID string) (SwapTransaction, error)
	ListByPosition(ctx context.Context, positionID string) ([]SwapTransaction, error)
	List(ctx context.Context, opts ListOpts) ([]SwapTransaction, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// Stores groups the stores bound to one persistence scope.
type Stores struct {
	Positions PositionStore
	Trades    TradeStore
	Swaps     SwapStore
	Audit     AuditStore
}

// UnitOfWork scopes ledger mutations. Do runs fn against stores bound to a
// single transaction; all writes commit together when fn returns nil and are
// discarded otherwise. Stores returns handles for reads outside a
// transaction.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
	Stores() Stores
}
