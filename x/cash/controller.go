package cash

import (
	"github.com/holiman/uint256"
	"github.com/iov-one/fedescrow"
	"github.com/iov-one/fedescrow/crypto"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/orm"
)

// Controller modifies balances.
type Controller struct {
	bucket orm.ModelBucket
}

// NewController returns a controller using the default wallet bucket.
func NewController() Controller {
	return Controller{bucket: NewBucket()}
}

// Balance returns the balance of given key. Missing wallet is ErrNotFound.
func (c Controller) Balance(db fedescrow.ReadOnlyKVStore, owner []byte) (uint64, error) {
	var w Wallet
	if err := c.bucket.One(db, owner, &w); err != nil {
		return 0, err
	}
	return w.Balance, nil
}

// Burn removes amount from the owner's wallet. It fails if the wallet does
// not exist or holds less than amount.
func (c Controller) Burn(db fedescrow.KVStore, owner []byte, amount uint64) error {
	var w Wallet
	if err := c.bucket.One(db, owner, &w); err != nil {
		return errors.Wrapf(err, "wallet %s", crypto.PublicKey(owner))
	}
	if w.Balance < amount {
		return errors.Wrapf(errors.ErrInsufficientAmount, "balance %d, requested %d", w.Balance, amount)
	}
	w.Balance -= amount
	return c.bucket.Put(db, owner, &w)
}

// Mint adds amount to the owner's wallet, creating it if needed.
func (c Controller) Mint(db fedescrow.KVStore, owner []byte, amount uint64) error {
	w := Wallet{Owner: owner}
	switch err := c.bucket.One(db, owner, &w); {
	case errors.ErrNotFound.Is(err):
		w = Wallet{Owner: owner}
	case err != nil:
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(w.Balance), uint256.NewInt(amount))
	if overflow || !sum.IsUint64() {
		return errors.Wrap(errors.ErrOverflow, "balance")
	}
	w.Balance = sum.Uint64()
	return c.bucket.Put(db, owner, &w)
}
