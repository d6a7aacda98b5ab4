package escrow

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/fedescrow"
	"github.com/iov-one/fedescrow/crypto"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/orm"
)

// State of an escrow contract. ResolvedWithoutDispute and
// ResolvedWithDispute are terminal.
type State int32

const (
	StateOpen State = iota
	StateDisputedByBuyer
	StateDisputedBySeller
	StateWaitingForBuyerToClaim
	StateWaitingForSellerToClaim
	StateResolvedWithoutDispute
	StateResolvedWithDispute
)

var stateNames = map[State]string{
	StateOpen:                    "Open",
	StateDisputedByBuyer:         "DisputedByBuyer",
	StateDisputedBySeller:        "DisputedBySeller",
	StateWaitingForBuyerToClaim:  "WaitingForBuyerToClaim",
	StateWaitingForSellerToClaim: "WaitingForSellerToClaim",
	StateResolvedWithoutDispute:  "ResolvedWithoutDispute",
	StateResolvedWithDispute:     "ResolvedWithDispute",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

func (s State) Validate() error {
	if _, ok := stateNames[s]; !ok {
		return errors.Wrapf(errors.ErrState, "unknown state %d", int32(s))
	}
	return nil
}

// IsTerminal returns true if no further instruction can change the escrow.
func (s State) IsTerminal() bool {
	return s == StateResolvedWithoutDispute || s == StateResolvedWithDispute
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(raw []byte) error {
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return errors.Wrap(errors.ErrInput, "state must be a string")
	}
	for st, n := range stateNames {
		if n == name {
			*s = st
			return nil
		}
	}
	return errors.Wrapf(errors.ErrInput, "unknown state %q", name)
}

const maxEscrowIDLength = 64

var isEscrowID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`).MatchString

// ValidateEscrowID ensures the id can be used as a contract key.
func ValidateEscrowID(id string) error {
	switch {
	case id == "":
		return errors.Wrap(ErrInvalidInput, "escrow id is required")
	case len(id) > maxEscrowIDLength:
		return errors.Wrapf(ErrInvalidInput, "escrow id longer than %d", maxEscrowIDLength)
	case !isEscrowID(id):
		return errors.Wrapf(ErrInvalidInput, "escrow id %q contains invalid characters", id)
	}
	return nil
}

// EscrowContract is the persisted record governing one trade.
type EscrowContract struct {
	EscrowID         string `protobuf:"bytes,1,opt,name=escrow_id,json=escrowId,proto3" json:"escrow_id,omitempty"`
	BuyerPubkey      []byte `protobuf:"bytes,2,opt,name=buyer_pubkey,json=buyerPubkey,proto3" json:"buyer_pubkey,omitempty"`
	SellerPubkey     []byte `protobuf:"bytes,3,opt,name=seller_pubkey,json=sellerPubkey,proto3" json:"seller_pubkey,omitempty"`
	ArbiterPubkey    []byte `protobuf:"bytes,4,opt,name=arbiter_pubkey,json=arbiterPubkey,proto3" json:"arbiter_pubkey,omitempty"`
	Amount           uint64 `protobuf:"varint,5,opt,name=amount,proto3" json:"amount,omitempty"`
	SecretCodeHash   []byte `protobuf:"bytes,6,opt,name=secret_code_hash,json=secretCodeHash,proto3" json:"secret_code_hash,omitempty"`
	MaxArbiterFee    uint64 `protobuf:"varint,7,opt,name=max_arbiter_fee,json=maxArbiterFee,proto3" json:"max_arbiter_fee,omitempty"`
	MaxArbiterFeeBps uint32 `protobuf:"varint,8,opt,name=max_arbiter_fee_bps,json=maxArbiterFeeBps,proto3" json:"max_arbiter_fee_bps,omitempty"`
	State            State  `protobuf:"varint,9,opt,name=state,proto3" json:"state,omitempty"`
	// CreatedAt is the unix time of the batch that created the escrow.
	CreatedAt int64 `protobuf:"varint,10,opt,name=created_at,json=createdAt,proto3" json:"created_at,omitempty"`
}

func (m *EscrowContract) Reset()         { *m = EscrowContract{} }
func (m *EscrowContract) String() string { return proto.CompactTextString(m) }
func (*EscrowContract) ProtoMessage()    {}

var _ orm.Model = (*EscrowContract)(nil)

func (m *EscrowContract) Validate() error {
	if err := ValidateEscrowID(m.EscrowID); err != nil {
		return err
	}
	if err := crypto.PublicKey(m.BuyerPubkey).Validate(); err != nil {
		return errors.Wrap(err, "buyer")
	}
	if err := crypto.PublicKey(m.SellerPubkey).Validate(); err != nil {
		return errors.Wrap(err, "seller")
	}
	if err := crypto.PublicKey(m.ArbiterPubkey).Validate(); err != nil {
		return errors.Wrap(err, "arbiter")
	}
	if len(m.SecretCodeHash) != crypto.DigestSize {
		return errors.Wrap(errors.ErrModel, "secret code hash must be a sha256 hash")
	}
	return m.State.Validate()
}

// EscrowInfo is the public view of a contract. The secret code hash is
// never part of it.
type EscrowInfo struct {
	EscrowID         string           `json:"escrow_id"`
	BuyerPubkey      crypto.PublicKey `json:"buyer_pubkey"`
	SellerPubkey     crypto.PublicKey `json:"seller_pubkey"`
	ArbiterPubkey    crypto.PublicKey `json:"arbiter_pubkey"`
	Amount           uint64           `json:"amount"`
	MaxArbiterFee    uint64           `json:"max_arbiter_fee"`
	MaxArbiterFeeBps uint32           `json:"max_arbiter_fee_bps"`
	State            State            `json:"state"`
	CreatedAt        int64            `json:"created_at"`
}

// Info returns the public view of this contract.
func (m *EscrowContract) Info() EscrowInfo {
	return EscrowInfo{
		EscrowID:         m.EscrowID,
		BuyerPubkey:      crypto.PublicKey(m.BuyerPubkey),
		SellerPubkey:     crypto.PublicKey(m.SellerPubkey),
		ArbiterPubkey:    crypto.PublicKey(m.ArbiterPubkey),
		Amount:           m.Amount,
		MaxArbiterFee:    m.MaxArbiterFee,
		MaxArbiterFeeBps: m.MaxArbiterFeeBps,
		State:            m.State,
		CreatedAt:        m.CreatedAt,
	}
}

// NewBucket returns the contract store. Contracts are keyed by escrow id and
// are never removed.
func NewBucket() orm.ModelBucket {
	return orm.NewModelBucket("escrow", &EscrowContract{})
}

// LoadContract returns the contract or ErrEscrowNotFound.
func LoadContract(db fedescrow.ReadOnlyKVStore, b orm.ModelBucket, id string) (*EscrowContract, error) {
	var c EscrowContract
	switch err := b.One(db, []byte(id), &c); {
	case errors.ErrNotFound.Is(err):
		return nil, errors.Wrapf(ErrEscrowNotFound, "escrow %q", id)
	case err != nil:
		return nil, err
	}
	return &c, nil
}
