package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager handles database transactions
type TransactionManager interface {
	// ExecTx executes a function within a transaction
	ExecTx(ctx context.Context, fn TxFn) error

	// ExecSerializableTx executes a function within a serializable
	// transaction, retrying on serialization conflicts. Read-then-write
	// invariant checks (pin counts, sequence allocation) run under this.
	ExecSerializableTx(ctx context.Context, fn TxFn) error
}
