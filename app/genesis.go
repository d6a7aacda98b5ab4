package app

import (
	"encoding/json"
	"io/ioutil"

	"github.com/iov-one/fedescrow"
	"github.com/iov-one/fedescrow/errors"
)

// Genesis file format.
type Genesis struct {
	FederationID string            `json:"federation_id"`
	AppState     fedescrow.Options `json:"app_state"`
}

// LoadGenesis tries to load a given file into a Genesis struct
func LoadGenesis(filePath string) (Genesis, error) {
	var gen Genesis
	raw, err := ioutil.ReadFile(filePath)
	if err != nil {
		return gen, errors.Wrapf(errors.ErrInput, "loading genesis file: %s", err)
	}
	if err := json.Unmarshal(raw, &gen); err != nil {
		return gen, errors.Wrapf(errors.ErrInput, "unmarshaling genesis file: %s", err)
	}
	return gen, nil
}

// ChainInitializers lets you initialize many extensions with one function
func ChainInitializers(inits ...fedescrow.Initializer) fedescrow.Initializer {
	return chainInitializer{inits}
}

type chainInitializer struct {
	inits []fedescrow.Initializer
}

func (c chainInitializer) FromGenesis(opts fedescrow.Options, db fedescrow.KVStore) error {
	for _, i := range c.inits {
		if err := i.FromGenesis(opts, db); err != nil {
			return err
		}
	}
	return nil
}
