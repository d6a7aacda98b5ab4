package escrow

import (
	"encoding/binary"

	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/fedescrow/crypto"
	"github.com/iov-one/fedescrow/errors"
)

// Domain tags of the signed digests. Each instruction kind signs a different
// tag, so a signature can never be replayed as another instruction.
const (
	claimTag             = "fedescrow/escrow/claim"
	disputeTag           = "fedescrow/escrow/dispute"
	decisionTag          = "fedescrow/escrow/decision"
	claimAfterDisputeTag = "fedescrow/escrow/claim-after-dispute"
)

// CreateEscrow is the only escrow output. It locks Amount under a new
// contract. The buyer funds Amount plus the deposit fee.
type CreateEscrow struct {
	EscrowID         string `protobuf:"bytes,1,opt,name=escrow_id,json=escrowId,proto3" json:"escrow_id"`
	BuyerPubkey      []byte `protobuf:"bytes,2,opt,name=buyer_pubkey,json=buyerPubkey,proto3" json:"buyer_pubkey"`
	SellerPubkey     []byte `protobuf:"bytes,3,opt,name=seller_pubkey,json=sellerPubkey,proto3" json:"seller_pubkey"`
	ArbiterPubkey    []byte `protobuf:"bytes,4,opt,name=arbiter_pubkey,json=arbiterPubkey,proto3" json:"arbiter_pubkey"`
	Amount           uint64 `protobuf:"varint,5,opt,name=amount,proto3" json:"amount"`
	SecretCodeHash   []byte `protobuf:"bytes,6,opt,name=secret_code_hash,json=secretCodeHash,proto3" json:"secret_code_hash"`
	MaxArbiterFeeBps uint32 `protobuf:"varint,7,opt,name=max_arbiter_fee_bps,json=maxArbiterFeeBps,proto3" json:"max_arbiter_fee_bps"`
}

func (m *CreateEscrow) Reset()         { *m = CreateEscrow{} }
func (m *CreateEscrow) String() string { return proto.CompactTextString(m) }
func (*CreateEscrow) ProtoMessage()    {}

// Validate checks everything that does not depend on the configuration or
// the store.
func (m *CreateEscrow) Validate() error {
	if err := ValidateEscrowID(m.EscrowID); err != nil {
		return err
	}
	if err := crypto.PublicKey(m.BuyerPubkey).Validate(); err != nil {
		return errors.Wrapf(ErrInvalidInput, "buyer: %s", err)
	}
	if err := crypto.PublicKey(m.SellerPubkey).Validate(); err != nil {
		return errors.Wrapf(ErrInvalidInput, "seller: %s", err)
	}
	if err := crypto.PublicKey(m.ArbiterPubkey).Validate(); err != nil {
		return errors.Wrapf(ErrInvalidInput, "arbiter: %s", err)
	}
	if m.Amount == 0 {
		return errors.Wrap(ErrInvalidAmount, "amount must be positive")
	}
	if len(m.SecretCodeHash) != crypto.DigestSize {
		return errors.Wrapf(ErrInvalidInput, "secret code hash must be %d bytes", crypto.DigestSize)
	}
	return nil
}

// Decision of the arbiter.
type Decision int32

const (
	BuyerWins  Decision = 1
	SellerWins Decision = 2
)

func (d Decision) String() string {
	switch d {
	case BuyerWins:
		return "BuyerWins"
	case SellerWins:
		return "SellerWins"
	}
	return "Unknown"
}

func (d Decision) Validate() error {
	if d != BuyerWins && d != SellerWins {
		return errors.Wrapf(ErrInvalidInput, "unknown decision %d", int32(d))
	}
	return nil
}

// ParseDecision accepts "buyer" or "seller" as well as the full names.
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "buyer", "BuyerWins":
		return BuyerWins, nil
	case "seller", "SellerWins":
		return SellerWins, nil
	}
	return 0, errors.Wrapf(ErrInvalidInput, "unknown decision %q", s)
}

// Instruction is one of the four escrow inputs. The set is closed, the
// handler matches on all of them.
type Instruction interface {
	proto.Message
	Validate() error
	// SignBytes returns the digest the authorized party signs.
	SignBytes() []byte
	GetEscrowID() string
	GetSignature() []byte
	kind() string
}

// ClaimWithoutDispute releases an open escrow to the seller, who reveals
// the secret code.
type ClaimWithoutDispute struct {
	EscrowID   string `protobuf:"bytes,1,opt,name=escrow_id,json=escrowId,proto3" json:"escrow_id"`
	SecretCode []byte `protobuf:"bytes,2,opt,name=secret_code,json=secretCode,proto3" json:"secret_code"`
	Signature  []byte `protobuf:"bytes,3,opt,name=signature,proto3" json:"signature"`
}

func (m *ClaimWithoutDispute) Reset()         { *m = ClaimWithoutDispute{} }
func (m *ClaimWithoutDispute) String() string { return proto.CompactTextString(m) }
func (*ClaimWithoutDispute) ProtoMessage()    {}

func (m *ClaimWithoutDispute) GetEscrowID() string  { return m.EscrowID }
func (m *ClaimWithoutDispute) GetSignature() []byte { return m.Signature }
func (*ClaimWithoutDispute) kind() string           { return "claim" }

func (m *ClaimWithoutDispute) SignBytes() []byte {
	return crypto.Digest(claimTag, []byte(m.EscrowID), m.SecretCode)
}

func (m *ClaimWithoutDispute) Validate() error {
	if err := ValidateEscrowID(m.EscrowID); err != nil {
		return err
	}
	if len(m.SecretCode) == 0 {
		return errors.Wrap(ErrInvalidInput, "secret code is required")
	}
	return nil
}

// Disputing moves an open escrow to arbitration. Only the buyer or the
// seller may dispute.
type Disputing struct {
	EscrowID       string `protobuf:"bytes,1,opt,name=escrow_id,json=escrowId,proto3" json:"escrow_id"`
	DisputerPubkey []byte `protobuf:"bytes,2,opt,name=disputer_pubkey,json=disputerPubkey,proto3" json:"disputer_pubkey"`
	Signature      []byte `protobuf:"bytes,3,opt,name=signature,proto3" json:"signature"`
}

func (m *Disputing) Reset()         { *m = Disputing{} }
func (m *Disputing) String() string { return proto.CompactTextString(m) }
func (*Disputing) ProtoMessage()    {}

func (m *Disputing) GetEscrowID() string  { return m.EscrowID }
func (m *Disputing) GetSignature() []byte { return m.Signature }
func (*Disputing) kind() string           { return "dispute" }

func (m *Disputing) SignBytes() []byte {
	return crypto.Digest(disputeTag, []byte(m.EscrowID), m.DisputerPubkey)
}

func (m *Disputing) Validate() error {
	if err := ValidateEscrowID(m.EscrowID); err != nil {
		return err
	}
	if len(m.DisputerPubkey) == 0 {
		return errors.Wrap(ErrInvalidInput, "disputer is required")
	}
	return nil
}

// ArbiterDecision resolves a dispute. The arbiter is paid
// floor(amount * FeeBps / 10000).
type ArbiterDecision struct {
	EscrowID  string   `protobuf:"bytes,1,opt,name=escrow_id,json=escrowId,proto3" json:"escrow_id"`
	Decision  Decision `protobuf:"varint,2,opt,name=decision,proto3" json:"decision"`
	FeeBps    uint32   `protobuf:"varint,3,opt,name=fee_bps,json=feeBps,proto3" json:"fee_bps"`
	Signature []byte   `protobuf:"bytes,4,opt,name=signature,proto3" json:"signature"`
}

func (m *ArbiterDecision) Reset()         { *m = ArbiterDecision{} }
func (m *ArbiterDecision) String() string { return proto.CompactTextString(m) }
func (*ArbiterDecision) ProtoMessage()    {}

func (m *ArbiterDecision) GetEscrowID() string  { return m.EscrowID }
func (m *ArbiterDecision) GetSignature() []byte { return m.Signature }
func (*ArbiterDecision) kind() string           { return "decision" }

func (m *ArbiterDecision) SignBytes() []byte {
	var bps [4]byte
	binary.BigEndian.PutUint32(bps[:], m.FeeBps)
	return crypto.Digest(decisionTag, []byte(m.EscrowID), []byte{byte(m.Decision)}, bps[:])
}

func (m *ArbiterDecision) Validate() error {
	if err := ValidateEscrowID(m.EscrowID); err != nil {
		return err
	}
	return m.Decision.Validate()
}

// ClaimAfterDispute releases what is left after arbitration to the party the
// arbiter decided for.
type ClaimAfterDispute struct {
	EscrowID  string `protobuf:"bytes,1,opt,name=escrow_id,json=escrowId,proto3" json:"escrow_id"`
	Signature []byte `protobuf:"bytes,2,opt,name=signature,proto3" json:"signature"`
}

func (m *ClaimAfterDispute) Reset()         { *m = ClaimAfterDispute{} }
func (m *ClaimAfterDispute) String() string { return proto.CompactTextString(m) }
func (*ClaimAfterDispute) ProtoMessage()    {}

func (m *ClaimAfterDispute) GetEscrowID() string  { return m.EscrowID }
func (m *ClaimAfterDispute) GetSignature() []byte { return m.Signature }
func (*ClaimAfterDispute) kind() string           { return "claim_after_dispute" }

func (m *ClaimAfterDispute) SignBytes() []byte {
	return crypto.Digest(claimAfterDisputeTag, []byte(m.EscrowID))
}

func (m *ClaimAfterDispute) Validate() error {
	return ValidateEscrowID(m.EscrowID)
}

// Input is the escrow input as carried by a transaction. Exactly one of the
// fields must be set.
type Input struct {
	Claim             *ClaimWithoutDispute `protobuf:"bytes,1,opt,name=claim,proto3" json:"claim,omitempty"`
	Dispute           *Disputing           `protobuf:"bytes,2,opt,name=dispute,proto3" json:"dispute,omitempty"`
	Decision          *ArbiterDecision     `protobuf:"bytes,3,opt,name=decision,proto3" json:"decision,omitempty"`
	ClaimAfterDispute *ClaimAfterDispute   `protobuf:"bytes,4,opt,name=claim_after_dispute,json=claimAfterDispute,proto3" json:"claim_after_dispute,omitempty"`
}

func (m *Input) Reset()         { *m = Input{} }
func (m *Input) String() string { return proto.CompactTextString(m) }
func (*Input) ProtoMessage()    {}

// NewInput wraps an instruction.
func NewInput(ins Instruction) *Input {
	var in Input
	switch ins := ins.(type) {
	case *ClaimWithoutDispute:
		in.Claim = ins
	case *Disputing:
		in.Dispute = ins
	case *ArbiterDecision:
		in.Decision = ins
	case *ClaimAfterDispute:
		in.ClaimAfterDispute = ins
	}
	return &in
}

// Instruction returns the only instruction carried by this input.
func (m *Input) Instruction() (Instruction, error) {
	var set []Instruction
	if m.Claim != nil {
		set = append(set, m.Claim)
	}
	if m.Dispute != nil {
		set = append(set, m.Dispute)
	}
	if m.Decision != nil {
		set = append(set, m.Decision)
	}
	if m.ClaimAfterDispute != nil {
		set = append(set, m.ClaimAfterDispute)
	}
	if len(set) != 1 {
		return nil, errors.Wrapf(ErrInvalidInput, "input must carry exactly one instruction, got %d", len(set))
	}
	return set[0], nil
}

// Kind returns a short name of the carried instruction, used for logs and
// metrics.
func (m *Input) Kind() string {
	ins, err := m.Instruction()
	if err != nil {
		return "invalid"
	}
	return ins.kind()
}

// Sign sets the signature of an instruction.
func Sign(key *crypto.PrivateKey, ins Instruction) error {
	sig, err := key.Sign(ins.SignBytes())
	if err != nil {
		return err
	}
	switch ins := ins.(type) {
	case *ClaimWithoutDispute:
		ins.Signature = sig
	case *Disputing:
		ins.Signature = sig
	case *ArbiterDecision:
		ins.Signature = sig
	case *ClaimAfterDispute:
		ins.Signature = sig
	default:
		return errors.Wrapf(errors.ErrType, "unknown instruction %T", ins)
	}
	return nil
}
