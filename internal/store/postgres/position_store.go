package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	db DBTX
}

// NewPositionStore creates a PositionStore on db, which is either the pool
// or an open transaction.
func NewPositionStore(db DBTX) *PositionStore {
	return &PositionStore{db: db}
}

const positionSelectCols = `id, symbol, strategy, total_quantity, average_entry_price,
	realized_pnl, unrealized_pnl, status, open_time, close_time, max_trade_limit`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var status string
	err := row.Scan(
		&p.ID, &p.Symbol, &p.Strategy, &p.TotalQuantity, &p.AverageEntryPrice,
		&p.RealizedPnL, &p.UnrealizedPnL, &status, &p.OpenTime, &p.CloseTime, &p.MaxTradeLimit,
	)
	p.Status = domain.PositionStatus(status)
	return p, err
}

func collectPositions(rows pgx.Rows) ([]domain.Position, error) {
	defer rows.Close()
	var out []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts a position. A second active position for the same symbol
// fails with domain.ErrAlreadyActive.
func (s *PositionStore) Create(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			id, symbol, strategy, total_quantity, average_entry_price,
			realized_pnl, unrealized_pnl, status, open_time, close_time, max_trade_limit
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.db.Exec(ctx, query,
		p.ID, p.Symbol, p.Strategy, p.TotalQuantity, p.AverageEntryPrice,
		p.RealizedPnL, p.UnrealizedPnL, string(p.Status), p.OpenTime, p.CloseTime, p.MaxTradeLimit,
	)
	return mapErr("create position "+p.ID, err)
}

// Update overwrites every mutable column of the position.
func (s *PositionStore) Update(ctx context.Context, p domain.Position) error {
	const query = `
		UPDATE positions SET
			total_quantity = $2, average_entry_price = $3, realized_pnl = $4,
			unrealized_pnl = $5, status = $6, close_time = $7, max_trade_limit = $8,
			updated_at = NOW()
		WHERE id = $1`
	tag, err := s.db.Exec(ctx, query,
		p.ID, p.TotalQuantity, p.AverageEntryPrice, p.RealizedPnL,
		p.UnrealizedPnL, string(p.Status), p.CloseTime, p.MaxTradeLimit,
	)
	if err != nil {
		return mapErr("update position "+p.ID, err)
	}
	return notFoundIfNone("update position "+p.ID, tag)
}

// GetByID returns the position with the given id.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE id = $1`
	p, err := scanPosition(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Position{}, mapErr("get position "+id, err)
	}
	return p, nil
}

// GetActiveBySymbol returns the OPEN or IN_PROGRESS position for symbol.
func (s *PositionStore) GetActiveBySymbol(ctx context.Context, symbol string) (domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions
		WHERE symbol = $1 AND status IN ('OPEN', 'IN_PROGRESS')`
	p, err := scanPosition(s.db.QueryRow(ctx, query, symbol))
	if err != nil {
		return domain.Position{}, mapErr("get active position "+symbol, err)
	}
	return p, nil
}

// ListByStatus returns positions in status, newest first. An empty status
// matches every position. The range applies to open_time.
func (s *PositionStore) ListByStatus(ctx context.Context, status domain.PositionStatus, opts domain.ListOpts) ([]domain.Position, error) {
	q := newListQuery(`SELECT ` + positionSelectCols + ` FROM positions WHERE 1=1`)
	if status != "" {
		q.sb.WriteString(" AND status = " + q.arg(string(status)))
	}
	q.between("open_time", opts.Since, opts.Until).orderBy("open_time DESC, id").page(opts)

	rows, err := s.db.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, mapErr("list positions", err)
	}
	out, err := collectPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", err)
	}
	return out, nil
}

// ListClosedBefore returns CLOSED positions whose close time precedes
// before, oldest first.
func (s *PositionStore) ListClosedBefore(ctx context.Context, before time.Time) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions
		WHERE status = 'CLOSED' AND close_time < $1
		ORDER BY close_time`
	rows, err := s.db.Query(ctx, query, before)
	if err != nil {
		return nil, mapErr("list closed positions", err)
	}
	out, err := collectPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", err)
	}
	return out, nil
}

var _ domain.PositionStore = (*PositionStore)(nil)
