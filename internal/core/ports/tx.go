package ports

import "context"

// TxRunner executes fn inside one multi-statement transaction. The context
// passed to fn carries the transaction scope; repositories invoked with it
// participate in the same atomic unit. An error from fn aborts every write
// performed so far in the body, and the transaction handle is released on
// every exit path.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
