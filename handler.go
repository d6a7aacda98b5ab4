package fedescrow

import (
	"encoding/json"
)

// ItemAmount is the value carried by a single input or output of a
// federation transaction. Amount is the value consumed (input) or created
// (output). Fee is the part the federation keeps and that must be funded by
// the transaction on top of the outputs.
type ItemAmount struct {
	Amount uint64
	Fee    uint64
}

// InputMeta is returned by a module for every input it accepts. Pubkey is
// the key that must have signed the whole transaction, which is the party
// that ends up in control of the released value.
type InputMeta struct {
	ItemAmount
	Pubkey []byte
}

// Options are the app options
// Each extension can look up it's key and parse the json as desired
type Options map[string]json.RawMessage

// ReadOptions reads the values stored under a given key,
// and parses the json into the given obj.
// Returns an error if it cannot parse.
// Noop and no error if key is missing
func (o Options) ReadOptions(key string, obj interface{}) error {
	msg := o[key]
	if len(msg) == 0 {
		return nil
	}
	return json.Unmarshal(msg, obj)
}

// Initializer implementations are used to initialize extensions from the
// genesis file contents.
type Initializer interface {
	FromGenesis(Options, KVStore) error
}

// Validater is any struct that can be validated.
type Validater interface {
	Validate() error
}
