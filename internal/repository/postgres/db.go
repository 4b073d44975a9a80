package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

type ctxKeyTx struct{}

// querier returns the transaction carried by ctx, or db when there is none.
func querier(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := ctx.Value(ctxKeyTx{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

// TxManager runs functions inside a READ COMMITTED transaction carried in the context.
// Mutual exclusion comes from row locks taken with SELECT ... FOR UPDATE,
// bounded by lock_timeout so a stuck holder surfaces as a transient error.
type TxManager struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// NewTxManager creates a TxManager. A zero lockTimeout leaves the server default.
func NewTxManager(db *sql.DB, lockTimeout time.Duration) *TxManager {
	return &TxManager{db: db, lockTimeout: lockTimeout}
}

// WithinTx executes fn inside a transaction. Nested calls join the outer transaction.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(ctxKeyTx{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(fmt.Errorf("begin tx: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if m.lockTimeout > 0 {
		// SET does not accept bind parameters; the value is a formatted integer.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.lockTimeout.Milliseconds())
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return classify(fmt.Errorf("set lock_timeout: %w", err))
		}
	}

	if err = fn(context.WithValue(ctx, ctxKeyTx{}, tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit tx: %w", err))
	}

	return nil
}
