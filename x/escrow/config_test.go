package escrow

import (
	"encoding/json"
	"testing"

	"github.com/iov-one/fedescrow"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenesis(t *testing.T) {
	cases := map[string]struct {
		genesis string
		want    Config
		wantErr *errors.Error
	}{
		"explicit": {
			genesis: `{"conf": {"escrow": {"deposit_fee": 3, "min_arbiter_fee_bps": 20, "max_arbiter_fee_bps": 500}}}`,
			want:    Config{DepositFee: 3, MinArbiterFeeBps: 20, MaxArbiterFeeBps: 500},
		},
		"missing uses defaults": {
			genesis: `{}`,
			want:    DefaultConfig(0),
		},
		"min above max": {
			genesis: `{"conf": {"escrow": {"min_arbiter_fee_bps": 600, "max_arbiter_fee_bps": 500}}}`,
			wantErr: errors.ErrInput,
		},
		"min below lower bound": {
			genesis: `{"conf": {"escrow": {"min_arbiter_fee_bps": 1, "max_arbiter_fee_bps": 500}}}`,
			wantErr: errors.ErrInput,
		},
		"max above upper bound": {
			genesis: `{"conf": {"escrow": {"min_arbiter_fee_bps": 10, "max_arbiter_fee_bps": 10000}}}`,
			wantErr: errors.ErrInput,
		},
		"zero min": {
			genesis: `{"conf": {"escrow": {"deposit_fee": 3, "max_arbiter_fee_bps": 500}}}`,
			wantErr: errors.ErrEmpty,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var opts fedescrow.Options
			require.NoError(t, json.Unmarshal([]byte(tc.genesis), &opts))
			db := store.MemStore()
			err := Initializer{}.FromGenesis(opts, db)
			if tc.wantErr != nil {
				assert.True(t, tc.wantErr.Is(err), "got %+v", err)
				return
			}
			require.NoError(t, err)
			got, err := LoadConfig(db)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(store.MemStore())
	assert.True(t, errors.ErrNotFound.Is(err))
}
