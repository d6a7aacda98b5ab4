package cash

import (
	"github.com/iov-one/fedescrow"
	"github.com/iov-one/fedescrow/crypto"
	"github.com/iov-one/fedescrow/errors"
)

// Initializer fulfils the Initializer interface to load data from the genesis file
type Initializer struct {
	Ctrl Controller
}

var _ fedescrow.Initializer = (*Initializer)(nil)

// FromGenesis will parse initial account info from genesis and save it to the
// database
func (i *Initializer) FromGenesis(opts fedescrow.Options, db fedescrow.KVStore) error {
	var wallets []struct {
		Owner  crypto.PublicKey `json:"owner"`
		Amount uint64           `json:"amount"`
	}
	if err := opts.ReadOptions("cash", &wallets); err != nil {
		return errors.Wrapf(errors.ErrInput, "cannot read cash genesis: %s", err)
	}
	for j, w := range wallets {
		if err := validate(w.Owner, w.Amount); err != nil {
			return errors.Wrapf(err, "wallet #%d", j)
		}
		if err := i.Ctrl.Mint(db, w.Owner, w.Amount); err != nil {
			return errors.Wrapf(err, "wallet #%d", j)
		}
	}
	return nil
}
