// Package tx passes a SQL transaction through context so that the stores
// touched by one administration workflow all share it. Stores that find no
// transaction in context fall back to their own connection pool.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores the transaction in context. A nil tx is ignored so callers
// can pass through unconditionally.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts the transaction if one is in flight.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}
