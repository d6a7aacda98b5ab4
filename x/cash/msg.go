package cash

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/fedescrow/crypto"
	"github.com/iov-one/fedescrow/errors"
)

// Input spends Amount from the owner's wallet.
type Input struct {
	Owner  []byte `protobuf:"bytes,1,opt,name=owner,proto3" json:"owner"`
	Amount uint64 `protobuf:"varint,2,opt,name=amount,proto3" json:"amount"`
}

func (m *Input) Reset()         { *m = Input{} }
func (m *Input) String() string { return proto.CompactTextString(m) }
func (*Input) ProtoMessage()    {}

func (m *Input) Validate() error {
	return validate(m.Owner, m.Amount)
}

// Output credits Amount to the owner's wallet.
type Output struct {
	Owner  []byte `protobuf:"bytes,1,opt,name=owner,proto3" json:"owner"`
	Amount uint64 `protobuf:"varint,2,opt,name=amount,proto3" json:"amount"`
}

func (m *Output) Reset()         { *m = Output{} }
func (m *Output) String() string { return proto.CompactTextString(m) }
func (*Output) ProtoMessage()    {}

func (m *Output) Validate() error {
	return validate(m.Owner, m.Amount)
}

func validate(owner []byte, amount uint64) error {
	if err := crypto.PublicKey(owner).Validate(); err != nil {
		return errors.Wrapf(ErrInvalidOwner, "%s", err)
	}
	if amount == 0 {
		return errors.Wrap(ErrInvalidAmount, "amount must be positive")
	}
	return nil
}
