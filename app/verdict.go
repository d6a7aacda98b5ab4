package app

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/orm"
)

// Verdict is the outcome of a single transaction. All guardians must reach
// the same verdicts.
type Verdict struct {
	TxID     string `protobuf:"bytes,1,opt,name=tx_id,json=txId,proto3" json:"tx_id"`
	Height   int64  `protobuf:"varint,2,opt,name=height,proto3" json:"height"`
	Accepted bool   `protobuf:"varint,3,opt,name=accepted,proto3" json:"accepted"`
	Code     uint32 `protobuf:"varint,4,opt,name=code,proto3" json:"code"`
	Log      string `protobuf:"bytes,5,opt,name=log,proto3" json:"log,omitempty"`
}

func (m *Verdict) Reset()         { *m = Verdict{} }
func (m *Verdict) String() string { return proto.CompactTextString(m) }
func (*Verdict) ProtoMessage()    {}

func (m *Verdict) Validate() error {
	if m.TxID == "" {
		return errors.Wrap(errors.ErrEmpty, "tx id")
	}
	if m.Height <= 0 {
		return errors.Wrap(errors.ErrModel, "height must be positive")
	}
	return nil
}

// Err returns the rejection reason rebuilt from the code, nil if accepted.
func (m *Verdict) Err() error {
	if m.Accepted {
		return nil
	}
	return errors.FromCode(m.Code, m.Log)
}

func newVerdictBucket() orm.ModelBucket {
	return orm.NewModelBucket("verdict", &Verdict{})
}

// Transaction status as reported to clients.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// TxStatus is what a client learns about a submitted transaction.
type TxStatus struct {
	TxID   string `json:"tx_id"`
	Status string `json:"status"`
	Height int64  `json:"height,omitempty"`
	Code   uint32 `json:"code,omitempty"`
	Log    string `json:"log,omitempty"`
}

// StatusOf converts a verdict.
func StatusOf(v *Verdict) *TxStatus {
	s := &TxStatus{
		TxID:   v.TxID,
		Status: StatusAccepted,
		Height: v.Height,
		Code:   v.Code,
		Log:    v.Log,
	}
	if !v.Accepted {
		s.Status = StatusRejected
	}
	return s
}
