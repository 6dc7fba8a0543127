package postgres

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

const (
	uniqueViolation     = "23505"
	activePositionIndex = "positions_one_active_per_symbol"
)

// mapErr translates driver errors into domain error categories and wraps
// them with the failing operation.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("postgres: %s: %w", op, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == activePositionIndex {
			return fmt.Errorf("postgres: %s: %w", op, domain.ErrAlreadyActive)
		}
		return fmt.Errorf("postgres: %s: %w: %s", op, domain.ErrAlreadyExists, pgErr.ConstraintName)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}

// notFoundIfNone reports ErrNotFound when an UPDATE matched no rows.
func notFoundIfNone(op string, tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: %s: %w", op, domain.ErrNotFound)
	}
	return nil
}

// listQuery appends optional range, ordering and paging clauses to a base
// SELECT. The base must already contain a WHERE clause.
type listQuery struct {
	sb   strings.Builder
	args []any
}

func newListQuery(base string, args ...any) *listQuery {
	q := &listQuery{args: args}
	q.sb.WriteString(base)
	return q
}

func (q *listQuery) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

func (q *listQuery) between(col string, since, until *time.Time) *listQuery {
	if since != nil {
		q.sb.WriteString(" AND " + col + " >= " + q.arg(*since))
	}
	if until != nil {
		q.sb.WriteString(" AND " + col + " <= " + q.arg(*until))
	}
	return q
}

func (q *listQuery) orderBy(clause string) *listQuery {
	q.sb.WriteString(" ORDER BY " + clause)
	return q
}

func (q *listQuery) page(opts domain.ListOpts) *listQuery {
	if opts.Limit > 0 {
		q.sb.WriteString(" LIMIT " + q.arg(opts.Limit))
	}
	if opts.Offset > 0 {
		q.sb.WriteString(" OFFSET " + q.arg(opts.Offset))
	}
	return q
}

func (q *listQuery) String() string { return q.sb.String() }
