package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type base struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func (b base) observe(op string, fn func() error) error {
	return b.prom.ObserveDB(op, fn)
}

// inTx runs fn in a transaction that commits only if fn succeeds.
func (b base) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, b.pool, fn)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// violatedConstraint names the unique index behind a 23505, or "".
func violatedConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName
	}
	return ""
}

// int64Set renders ids for = ANY($n).
func int64Set(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

// renumber compacts the live rows of table under one parent to orders 1..N,
// keeping their relative order. Rows are first shifted past the current
// maximum so no intermediate row collides with the live unique index.
// table and parentCol are fixed identifiers, never request input.
func renumber(ctx context.Context, tx pgx.Tx, table, parentCol string, parentID int64) error {
	shift := fmt.Sprintf(
		`UPDATE %[1]s SET order_number = order_number + (
			SELECT COALESCE(MAX(order_number), 0) FROM %[1]s WHERE %[2]s = $1 AND deleted_at IS NULL
		)
		WHERE %[2]s = $1 AND deleted_at IS NULL`,
		table, parentCol,
	)
	if _, err := tx.Exec(ctx, shift, parentID); err != nil {
		return err
	}

	compact := fmt.Sprintf(
		`WITH ranked AS (
			SELECT id, ROW_NUMBER() OVER (ORDER BY order_number, id) AS rn
			FROM %[1]s WHERE %[2]s = $1 AND deleted_at IS NULL
		)
		UPDATE %[1]s AS t SET order_number = ranked.rn, updated_at = now()
		FROM ranked WHERE t.id = ranked.id`,
		table, parentCol,
	)
	_, err := tx.Exec(ctx, compact, parentID)
	return err
}
