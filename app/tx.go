package app

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gogo/protobuf/proto"
	"github.com/google/uuid"
	"github.com/iov-one/fedescrow/crypto"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/x/cash"
	"github.com/iov-one/fedescrow/x/escrow"
)

const txSignTag = "fedescrow/tx"

// Tx is a federation transaction. Inputs consume value, outputs create it.
// Every key named by an input must sign the transaction.
type Tx struct {
	// Nonce makes two otherwise identical transactions distinct.
	Nonce      string         `protobuf:"bytes,1,opt,name=nonce,proto3" json:"nonce"`
	Inputs     []*Input       `protobuf:"bytes,2,rep,name=inputs,proto3" json:"inputs"`
	Outputs    []*Output      `protobuf:"bytes,3,rep,name=outputs,proto3" json:"outputs"`
	Signatures []*TxSignature `protobuf:"bytes,4,rep,name=signatures,proto3" json:"signatures"`
}

func (m *Tx) Reset()         { *m = Tx{} }
func (m *Tx) String() string { return proto.CompactTextString(m) }
func (*Tx) ProtoMessage()    {}

// Input is a closed union of module inputs. Exactly one field is set.
type Input struct {
	Cash   *cash.Input   `protobuf:"bytes,1,opt,name=cash,proto3" json:"cash,omitempty"`
	Escrow *escrow.Input `protobuf:"bytes,2,opt,name=escrow,proto3" json:"escrow,omitempty"`
}

func (m *Input) Reset()         { *m = Input{} }
func (m *Input) String() string { return proto.CompactTextString(m) }
func (*Input) ProtoMessage()    {}

// Output is a closed union of module outputs. Exactly one field is set.
type Output struct {
	Cash   *cash.Output         `protobuf:"bytes,1,opt,name=cash,proto3" json:"cash,omitempty"`
	Escrow *escrow.CreateEscrow `protobuf:"bytes,2,opt,name=escrow,proto3" json:"escrow,omitempty"`
}

func (m *Output) Reset()         { *m = Output{} }
func (m *Output) String() string { return proto.CompactTextString(m) }
func (*Output) ProtoMessage()    {}

// TxSignature is a signature of the transaction sign bytes.
type TxSignature struct {
	Pubkey    []byte `protobuf:"bytes,1,opt,name=pubkey,proto3" json:"pubkey"`
	Signature []byte `protobuf:"bytes,2,opt,name=signature,proto3" json:"signature"`
}

func (m *TxSignature) Reset()         { *m = TxSignature{} }
func (m *TxSignature) String() string { return proto.CompactTextString(m) }
func (*TxSignature) ProtoMessage()    {}

// NewTx returns an unsigned transaction with a random nonce.
func NewTx(inputs []*Input, outputs []*Output) *Tx {
	return &Tx{
		Nonce:   uuid.New().String(),
		Inputs:  inputs,
		Outputs: outputs,
	}
}

func CashInput(owner []byte, amount uint64) *Input {
	return &Input{Cash: &cash.Input{Owner: owner, Amount: amount}}
}

func EscrowInput(ins escrow.Instruction) *Input {
	return &Input{Escrow: escrow.NewInput(ins)}
}

func CashOutput(owner []byte, amount uint64) *Output {
	return &Output{Cash: &cash.Output{Owner: owner, Amount: amount}}
}

func EscrowOutput(out *escrow.CreateEscrow) *Output {
	return &Output{Escrow: out}
}

// Validate checks the shape of the transaction only.
func (m *Tx) Validate() error {
	if m.Nonce == "" {
		return errors.Wrap(errors.ErrEmpty, "nonce")
	}
	if len(m.Inputs) == 0 && len(m.Outputs) == 0 {
		return errors.Wrap(errors.ErrEmpty, "transaction has neither inputs nor outputs")
	}
	for i, in := range m.Inputs {
		if in == nil || (in.Cash == nil) == (in.Escrow == nil) {
			return errors.Wrapf(errors.ErrMsg, "input #%d must be exactly one of cash or escrow", i)
		}
	}
	for i, out := range m.Outputs {
		if out == nil || (out.Cash == nil) == (out.Escrow == nil) {
			return errors.Wrapf(errors.ErrMsg, "output #%d must be exactly one of cash or escrow", i)
		}
	}
	for i, s := range m.Signatures {
		if s == nil {
			return errors.Wrapf(errors.ErrMsg, "signature #%d is empty", i)
		}
	}
	return nil
}

// SignBytes returns the encoded transaction without signatures.
func (m *Tx) SignBytes() ([]byte, error) {
	unsigned := Tx{
		Nonce:   m.Nonce,
		Inputs:  m.Inputs,
		Outputs: m.Outputs,
	}
	raw, err := proto.Marshal(&unsigned)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrMsg, "cannot encode: %s", err)
	}
	return raw, nil
}

// Digest is what every input key signs.
func (m *Tx) Digest() ([]byte, error) {
	raw, err := m.SignBytes()
	if err != nil {
		return nil, err
	}
	return crypto.Digest(txSignTag, raw), nil
}

// ID is the hex encoded sha256 of the sign bytes. Signatures are not part of
// it, so reordering or re-signing cannot produce a replayable copy.
func (m *Tx) ID() (string, error) {
	raw, err := m.SignBytes()
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(raw)
	return hex.EncodeToString(h[:]), nil
}

// Sign adds a signature of every given key.
func (m *Tx) Sign(keys ...*crypto.PrivateKey) error {
	digest, err := m.Digest()
	if err != nil {
		return err
	}
	for _, k := range keys {
		sig, err := k.Sign(digest)
		if err != nil {
			return err
		}
		m.Signatures = append(m.Signatures, &TxSignature{
			Pubkey:    k.PublicKey(),
			Signature: sig,
		})
	}
	return nil
}

// IsSignedBy returns true if there is a valid signature made by the key.
func (m *Tx) IsSignedBy(digest []byte, pubkey []byte) bool {
	pk := crypto.PublicKey(pubkey)
	for _, s := range m.Signatures {
		if pk.Equals(s.Pubkey) && pk.Verify(digest, s.Signature) {
			return true
		}
	}
	return false
}

// Encode returns the wire form of the transaction.
func (m *Tx) Encode() ([]byte, error) {
	raw, err := proto.Marshal(m)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrMsg, "cannot encode: %s", err)
	}
	return raw, nil
}

// DecodeTx decodes a transaction.
func DecodeTx(raw []byte) (*Tx, error) {
	var tx Tx
	if err := proto.Unmarshal(raw, &tx); err != nil {
		return nil, errors.Wrapf(errors.ErrMsg, "cannot decode transaction: %s", err)
	}
	return &tx, nil
}
