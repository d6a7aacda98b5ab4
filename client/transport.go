package client

import (
	"context"

	"github.com/iov-one/fedescrow/app"
	"github.com/iov-one/fedescrow/x/escrow"
)

// Transport is how a client talks to the federation. All methods must
// return errors.ErrNetwork (or a context error) when the federation cannot
// be reached, so that such failures are never mistaken for a rejection.
type Transport interface {
	// SubmitTx queues a transaction and returns its id. Submitting the same
	// transaction twice is not an error.
	SubmitTx(ctx context.Context, tx *app.Tx) (string, error)
	// TxStatus returns ErrNotFound for an unknown transaction.
	TxStatus(ctx context.Context, txID string) (*app.TxStatus, error)
	EscrowInfo(ctx context.Context, escrowID string) (*escrow.EscrowInfo, error)
	EscrowConfig(ctx context.Context) (escrow.Config, error)
	Balance(ctx context.Context, pubkey []byte) (uint64, error)
}

var _ Transport = (*app.LocalFederation)(nil)
