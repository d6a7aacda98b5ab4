package cash

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/fedescrow/crypto"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/orm"
)

// Wallet is the balance of a single key.
type Wallet struct {
	Owner   []byte `protobuf:"bytes,1,opt,name=owner,proto3" json:"owner,omitempty"`
	Balance uint64 `protobuf:"varint,2,opt,name=balance,proto3" json:"balance,omitempty"`
}

func (m *Wallet) Reset()         { *m = Wallet{} }
func (m *Wallet) String() string { return proto.CompactTextString(m) }
func (*Wallet) ProtoMessage()    {}

func (m *Wallet) Validate() error {
	if err := crypto.PublicKey(m.Owner).Validate(); err != nil {
		return errors.Wrap(err, "owner")
	}
	return nil
}

// NewBucket returns the wallet store keyed by owner key.
func NewBucket() orm.ModelBucket {
	return orm.NewModelBucket("cash", &Wallet{})
}
