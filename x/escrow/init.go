package escrow

import (
	"github.com/iov-one/fedescrow"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/gconf"
)

// Initializer loads the escrow configuration from genesis.
type Initializer struct{}

var _ fedescrow.Initializer = Initializer{}

// FromGenesis reads conf.escrow. A missing section uses the default bps
// range and no deposit fee.
func (Initializer) FromGenesis(opts fedescrow.Options, db fedescrow.KVStore) error {
	err := gconf.InitConfig(db, opts, configPkg, &Config{})
	if errors.ErrNotFound.Is(err) {
		c := DefaultConfig(0)
		return gconf.Save(db, configPkg, &c)
	}
	return err
}
