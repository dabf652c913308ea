package store

import (
	"context"
	"database/sql"
	"time"
)

// Tx is a store transaction. Repository methods for every table hang off
// Tx so that domain writes, audit entries and ledger completion commit
// together.
type Tx struct {
	tx      *sql.Tx
	dialect dialect
	now     func() time.Time
}

// Now returns the transaction clock reading as RFC 3339 UTC text.
func (t *Tx) Now() string {
	return t.now().UTC().Format(time.RFC3339)
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, t.dialect.rebind(query), args...)
	return res, mapError(err)
}

func (t *Tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.rebind(query), args...)
}

func (t *Tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.rebind(query), args...)
}

// affected reports whether res touched at least one row.
func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
