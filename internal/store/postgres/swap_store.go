package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// SwapStore implements domain.SwapStore using PostgreSQL.
type SwapStore struct {
	db DBTX
}

// NewSwapStore creates a SwapStore on db.
func NewSwapStore(db DBTX) *SwapStore {
	return &SwapStore{db: db}
}

const swapSelectCols = `id, transaction_id, from_symbol, to_symbol, from_amount, to_amount,
	rate, fee_percentage, fee_amount, realized_profit, timestamp, status,
	user_id, position_id, to_stable`

func scanSwap(row pgx.Row) (domain.SwapTransaction, error) {
	var sw domain.SwapTransaction
	var status string
	err := row.Scan(
		&sw.ID, &sw.TransactionID, &sw.FromSymbol, &sw.ToSymbol, &sw.FromAmount, &sw.ToAmount,
		&sw.Rate, &sw.FeePercentage, &sw.FeeAmount, &sw.RealizedProfit, &sw.Timestamp, &status,
		&sw.UserID, &sw.PositionID, &sw.ToStable,
	)
	sw.Status = domain.SwapStatus(status)
	return sw, err
}

func scanSwapRows(rows pgx.Rows) ([]domain.SwapTransaction, error) {
	defer rows.Close()
	var out []domain.SwapTransaction
	for rows.Next() {
		sw, err := scanSwap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sw)
	}
	return out, rows.Err()
}

// Create inserts a swap. A duplicate transaction id fails with
// domain.ErrAlreadyExists.
func (s *SwapStore) Create(ctx context.Context, sw domain.SwapTransaction) error {
	const query = `
		INSERT INTO swap_transactions (
			id, transaction_id, from_symbol, to_symbol, from_amount, to_amount,
			rate, fee_percentage, fee_amount, realized_profit, timestamp, status,
			user_id, position_id, to_stable
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := s.db.Exec(ctx, query,
		sw.ID, sw.TransactionID, sw.FromSymbol, sw.ToSymbol, sw.FromAmount, sw.ToAmount,
		sw.Rate, sw.FeePercentage, sw.FeeAmount, sw.RealizedProfit, sw.Timestamp, string(sw.Status),
		sw.UserID, sw.PositionID, sw.ToStable,
	)
	return mapErr("create swap "+sw.TransactionID, err)
}

// Update rewrites the settlement columns of a swap, matched on
// transaction id.
func (s *SwapStore) Update(ctx context.Context, sw domain.SwapTransaction) error {
	const query = `
		UPDATE swap_transactions SET
			to_amount = $2, rate = $3, fee_percentage = $4, fee_amount = $5,
			realized_profit = $6, status = $7, position_id = $8
		WHERE transaction_id = $1`
	tag, err := s.db.Exec(ctx, query,
		sw.TransactionID, sw.ToAmount, sw.Rate, sw.FeePercentage, sw.FeeAmount,
		sw.RealizedProfit, string(sw.Status), sw.PositionID,
	)
	if err != nil {
		return mapErr("update swap "+sw.TransactionID, err)
	}
	return notFoundIfNone("update swap "+sw.TransactionID, tag)
}

// GetByTransactionID returns the swap with the external transaction id.
func (s *SwapStore) GetByTransactionID(ctx context.Context, transactionID string) (domain.SwapTransaction, error) {
	query := `SELECT ` + swapSelectCols + ` FROM swap_transactions WHERE transaction_id = $1`
	sw, err := scanSwap(s.db.QueryRow(ctx, query, transactionID))
	if err != nil {
		return domain.SwapTransaction{}, mapErr("get swap "+transactionID, err)
	}
	return sw, nil
}

// ListByPosition returns swaps attributed to a position, oldest first.
func (s *SwapStore) ListByPosition(ctx context.Context, positionID string) ([]domain.SwapTransaction, error) {
	query := `SELECT ` + swapSelectCols + ` FROM swap_transactions
		WHERE position_id = $1 ORDER BY timestamp, transaction_id`
	rows, err := s.db.Query(ctx, query, positionID)
	if err != nil {
		return nil, mapErr("list swaps for position "+positionID, err)
	}
	out, err := scanSwapRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan swaps: %w", err)
	}
	return out, nil
}

// List returns swaps whose timestamp falls in the range, oldest first.
func (s *SwapStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.SwapTransaction, error) {
	q := newListQuery(`SELECT ` + swapSelectCols + ` FROM swap_transactions WHERE 1=1`)
	q.between("timestamp", opts.Since, opts.Until).orderBy("timestamp, transaction_id").page(opts)

	rows, err := s.db.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, mapErr("list swaps", err)
	}
	out, err := scanSwapRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan swaps: %w", err)
	}
	return out, nil
}

var _ domain.SwapStore = (*SwapStore)(nil)
