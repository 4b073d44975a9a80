package repository

import "context"

// Transactor runs a function inside a single store transaction.
// Repositories called with the ctx passed to fn take part in the transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
