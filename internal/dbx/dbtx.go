// Package dbx holds the small database/sql abstractions shared by the
// Postgres repositories: a DBTX interface satisfied by *sql.DB, *sql.Conn and
// *sql.Tx, and WithTx for running a unit of work inside one transaction.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by the repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WriteTxOptions is the isolation used by device mutations. Row locks taken
// with SELECT ... FOR UPDATE serialize writers on the same device.
var WriteTxOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// WithTx begins a transaction, runs fn with it, and commits when fn returns
// nil. Any error or panic rolls the transaction back; panics are re-raised.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}
