package client

import (
	"context"
	"sync"

	"github.com/holiman/uint256"
	"github.com/iov-one/fedescrow/crypto"
	"github.com/iov-one/fedescrow/errors"
)

// Wallet keeps track of the value of one key that is spent by operations
// not resolved yet. Spendable value is the federation balance minus all
// earmarks.
type Wallet struct {
	mu        sync.Mutex
	transport Transport
	owner     crypto.PublicKey
	earmarks  map[string]uint64
}

func NewWallet(t Transport, owner crypto.PublicKey) *Wallet {
	return &Wallet{
		transport: t,
		owner:     owner,
		earmarks:  make(map[string]uint64),
	}
}

// Owner returns the key whose value this wallet tracks.
func (w *Wallet) Owner() crypto.PublicKey {
	return w.owner
}

// Spendable returns the value that no operation in flight is using.
func (w *Wallet) Spendable(ctx context.Context) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.spendable(ctx)
}

func (w *Wallet) spendable(ctx context.Context) (uint64, error) {
	balance, err := w.transport.Balance(ctx, w.owner)
	if err != nil {
		return 0, errors.Wrap(err, "balance")
	}
	used := w.earmarked()
	avail := uint256.NewInt(balance)
	if avail.Lt(used) {
		return 0, nil
	}
	return avail.Sub(avail, used).Uint64(), nil
}

func (w *Wallet) earmarked() *uint256.Int {
	sum := new(uint256.Int)
	for _, v := range w.earmarks {
		sum.Add(sum, uint256.NewInt(v))
	}
	return sum
}

// Earmark reserves amount for the operation. It fails with
// ErrInsufficientAmount if the spendable value is short.
func (w *Wallet) Earmark(ctx context.Context, opID string, amount uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.earmarks[opID]; ok {
		return errors.Wrapf(errors.ErrDuplicate, "operation %s", opID)
	}
	avail, err := w.spendable(ctx)
	if err != nil {
		return err
	}
	if avail < amount {
		return errors.Wrapf(errors.ErrInsufficientAmount, "need %d, spendable %d", amount, avail)
	}
	w.earmarks[opID] = amount
	return nil
}

// Release returns the value of a rejected operation to the spendable pool.
func (w *Wallet) Release(opID string) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	amount := w.earmarks[opID]
	delete(w.earmarks, opID)
	return amount
}

// Settle forgets the earmark of an accepted operation. Its value is gone
// from the federation balance already.
func (w *Wallet) Settle(opID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.earmarks, opID)
}

// Earmarked returns the value reserved by the operation, zero if none.
func (w *Wallet) Earmarked(opID string) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.earmarks[opID]
}
