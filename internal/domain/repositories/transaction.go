package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager runs a function inside a database transaction. The
// transaction travels in the context, so repository calls made by fn join it
// transparently.
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}
