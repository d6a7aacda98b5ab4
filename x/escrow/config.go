package escrow

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/gconf"
)

const (
	// DefaultMinArbiterFeeBps and DefaultMaxArbiterFeeBps bound the
	// maximum arbiter fee a buyer may configure at creation. A federation
	// may narrow the range but never widen it.
	DefaultMinArbiterFeeBps = 10
	DefaultMaxArbiterFeeBps = 1000

	bpsDenominator = 10000
)

// Config is the consensus configuration of the escrow module. Every guardian
// must run with the same values.
type Config struct {
	// DepositFee is the flat fee the federation charges on creation.
	DepositFee       uint64 `protobuf:"varint,1,opt,name=deposit_fee,json=depositFee,proto3" json:"deposit_fee"`
	MinArbiterFeeBps uint32 `protobuf:"varint,2,opt,name=min_arbiter_fee_bps,json=minArbiterFeeBps,proto3" json:"min_arbiter_fee_bps"`
	MaxArbiterFeeBps uint32 `protobuf:"varint,3,opt,name=max_arbiter_fee_bps,json=maxArbiterFeeBps,proto3" json:"max_arbiter_fee_bps"`
}

func (m *Config) Reset()         { *m = Config{} }
func (m *Config) String() string { return proto.CompactTextString(m) }
func (*Config) ProtoMessage()    {}

// DefaultConfig returns the configuration with the default bps range and
// given deposit fee.
func DefaultConfig(depositFee uint64) Config {
	return Config{
		DepositFee:       depositFee,
		MinArbiterFeeBps: DefaultMinArbiterFeeBps,
		MaxArbiterFeeBps: DefaultMaxArbiterFeeBps,
	}
}

func (m *Config) Validate() error {
	if m.MinArbiterFeeBps == 0 {
		return errors.Wrap(errors.ErrEmpty, "min arbiter fee bps")
	}
	if m.MinArbiterFeeBps > m.MaxArbiterFeeBps {
		return errors.Wrap(errors.ErrInput, "min arbiter fee bps greater than max")
	}
	if m.MinArbiterFeeBps < DefaultMinArbiterFeeBps || m.MaxArbiterFeeBps > DefaultMaxArbiterFeeBps {
		return errors.Wrapf(errors.ErrInput, "arbiter fee bps range must be within [%d, %d]",
			DefaultMinArbiterFeeBps, DefaultMaxArbiterFeeBps)
	}
	return nil
}

const configPkg = "escrow"

// LoadConfig returns the configuration stored at genesis.
func LoadConfig(db gconf.ReadStore) (Config, error) {
	var c Config
	if err := gconf.Load(db, configPkg, &c); err != nil {
		return c, errors.Wrap(err, "escrow configuration")
	}
	return c, nil
}
