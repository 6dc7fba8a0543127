package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://bot:pw@db:5432/straddle?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "straddle", User: "bot", Password: "pw"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
	assert.Equal(t, "postgres://u:p@h:6432/d?sslmode=require",
		DSN(ClientConfig{Host: "h", Port: 6432, Database: "d", User: "u", Password: "p", SSLMode: "require"}))
}

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr("op", nil))
	assert.ErrorIs(t, mapErr("get", pgx.ErrNoRows), domain.ErrNotFound)

	active := &pgconn.PgError{Code: uniqueViolation, ConstraintName: activePositionIndex}
	err := mapErr("create", fmt.Errorf("exec: %w", active))
	assert.ErrorIs(t, err, domain.ErrAlreadyActive)
	assert.ErrorIs(t, err, domain.ErrConflict)

	dup := &pgconn.PgError{Code: uniqueViolation, ConstraintName: "swap_transactions_transaction_id_key"}
	assert.ErrorIs(t, mapErr("create", dup), domain.ErrAlreadyExists)

	other := errors.New("connection reset")
	err = mapErr("list", other)
	assert.ErrorIs(t, err, other)
	assert.Contains(t, err.Error(), "postgres: list")
}

func TestListQuery(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(24 * time.Hour)

	q := newListQuery("SELECT id FROM trades WHERE symbol = $1", "BTCUSDT")
	q.between("created_at", &since, &until).orderBy("created_at DESC").page(domain.ListOpts{Limit: 10, Offset: 20})

	assert.Equal(t,
		"SELECT id FROM trades WHERE symbol = $1 AND created_at >= $2 AND created_at <= $3 ORDER BY created_at DESC LIMIT $4 OFFSET $5",
		q.String())
	assert.Equal(t, []any{"BTCUSDT", since, until, 10, 20}, q.args)

	bare := newListQuery("SELECT id FROM audit_log WHERE 1=1").between("created_at", nil, nil).page(domain.ListOpts{})
	assert.Equal(t, "SELECT id FROM audit_log WHERE 1=1", bare.String())
	assert.Empty(t, bare.args)
}
