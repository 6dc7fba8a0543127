package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	db DBTX
}

// NewTradeStore creates a TradeStore on db.
func NewTradeStore(db DBTX) *TradeStore {
	return &TradeStore{db: db}
}

const tradeSelectCols = `id, symbol, side, quantity, entry_price, exit_price,
	take_profit, stop_loss, order_type, strategy, status, position_id,
	created_at, entered_at, closed_at, pnl, realized_pnl, unrealized_pnl`

func scanTrade(row pgx.Row) (domain.Trade, error) {
	var t domain.Trade
	var side, orderType, status string
	err := row.Scan(
		&t.ID, &t.Symbol, &side, &t.Quantity, &t.EntryPrice, &t.ExitPrice,
		&t.TakeProfit, &t.StopLoss, &orderType, &t.Strategy, &status, &t.PositionID,
		&t.CreatedAt, &t.EnteredAt, &t.ClosedAt, &t.PnL, &t.RealizedPnL, &t.UnrealizedPnL,
	)
	t.Side = domain.TradeSide(side)
	t.OrderType = domain.OrderType(orderType)
	t.Status = domain.TradeStatus(status)
	return t, err
}

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	defer rows.Close()
	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Create inserts a trade.
func (s *TradeStore) Create(ctx context.Context, t domain.Trade) error {
	const query = `
		INSERT INTO trades (
			id, symbol, side, quantity, entry_price, exit_price,
			take_profit, stop_loss, order_type, strategy, status, position_id,
			created_at, entered_at, closed_at, pnl, realized_pnl, unrealized_pnl
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18
		)`
	_, err := s.db.Exec(ctx, query,
		t.ID, t.Symbol, string(t.Side), t.Quantity, t.EntryPrice, t.ExitPrice,
		t.TakeProfit, t.StopLoss, string(t.OrderType), t.Strategy, string(t.Status), t.PositionID,
		t.CreatedAt, t.EnteredAt, t.ClosedAt, t.PnL, t.RealizedPnL, t.UnrealizedPnL,
	)
	return mapErr("create trade "+t.ID, err)
}

// Update overwrites the trade's lifecycle and P/L columns.
func (s *TradeStore) Update(ctx context.Context, t domain.Trade) error {
	const query = `
		UPDATE trades SET
			entry_price = $2, exit_price = $3, take_profit = $4, stop_loss = $5,
			status = $6, entered_at = $7, closed_at = $8,
			pnl = $9, realized_pnl = $10, unrealized_pnl = $11, updated_at = NOW()
		WHERE id = $1`
	tag, err := s.db.Exec(ctx, query,
		t.ID, t.EntryPrice, t.ExitPrice, t.TakeProfit, t.StopLoss,
		string(t.Status), t.EnteredAt, t.ClosedAt,
		t.PnL, t.RealizedPnL, t.UnrealizedPnL,
	)
	if err != nil {
		return mapErr("update trade "+t.ID, err)
	}
	return notFoundIfNone("update trade "+t.ID, tag)
}

// GetByID returns a single trade.
func (s *TradeStore) GetByID(ctx context.Context, id string) (domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE id = $1`
	t, err := scanTrade(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Trade{}, mapErr("get trade "+id, err)
	}
	return t, nil
}

// ListByPosition returns a position's trades, oldest first with the BUY leg
// of a pair ahead of its SELL leg.
func (s *TradeStore) ListByPosition(ctx context.Context, positionID string) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades
		WHERE position_id = $1 ORDER BY created_at, side`
	rows, err := s.db.Query(ctx, query, positionID)
	if err != nil {
		return nil, mapErr("list trades for position "+positionID, err)
	}
	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// ListBySymbol returns trades for symbol created in the range, newest first.
func (s *TradeStore) ListBySymbol(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.Trade, error) {
	q := newListQuery(`SELECT `+tradeSelectCols+` FROM trades WHERE symbol = $1`, symbol)
	q.between("created_at", opts.Since, opts.Until).orderBy("created_at DESC, side DESC").page(opts)

	rows, err := s.db.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, mapErr("list trades for "+symbol, err)
	}
	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// ListClosed returns CLOSED trades whose closed_at falls in the range,
// oldest first.
func (s *TradeStore) ListClosed(ctx context.Context, opts domain.ListOpts) ([]domain.Trade, error) {
	q := newListQuery(`SELECT ` + tradeSelectCols + ` FROM trades WHERE status = 'CLOSED'`)
	q.between("closed_at", opts.Since, opts.Until).orderBy("closed_at, id").page(opts)

	rows, err := s.db.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, mapErr("list closed trades", err)
	}
	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

var _ domain.TradeStore = (*TradeStore)(nil)
