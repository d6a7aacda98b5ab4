package escrow

import (
	"crypto/subtle"

	"github.com/iov-one/fedescrow"
	"github.com/iov-one/fedescrow/crypto"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/orm"
)

// Handler is the escrow state machine. It holds no state of its own, all
// decisions depend only on the store, the instruction and the configuration.
type Handler struct {
	bucket orm.ModelBucket
}

// NewHandler returns a handler using the default contract store.
func NewHandler() Handler {
	return Handler{bucket: NewBucket()}
}

// ProcessOutput creates a new contract in Open state. The returned amount is
// the locked value and the fee is the configured deposit fee, both of which
// the transaction must fund.
func (h Handler) ProcessOutput(info fedescrow.BatchInfo, db fedescrow.KVStore, conf Config, out *CreateEscrow) (fedescrow.ItemAmount, error) {
	if out == nil {
		return fedescrow.ItemAmount{}, errors.Wrap(ErrInvalidInput, "empty output")
	}
	if err := out.Validate(); err != nil {
		return fedescrow.ItemAmount{}, err
	}
	if err := ValidateFeeBps(conf, out.MaxArbiterFeeBps); err != nil {
		return fedescrow.ItemAmount{}, err
	}

	key := []byte(out.EscrowID)
	switch exists, err := h.bucket.Has(db, key); {
	case err != nil:
		return fedescrow.ItemAmount{}, errors.Wrap(err, "cannot read contract store")
	case exists:
		return fedescrow.ItemAmount{}, errors.Wrapf(ErrDuplicateEscrow, "escrow %q", out.EscrowID)
	}

	contract := &EscrowContract{
		EscrowID:         out.EscrowID,
		BuyerPubkey:      out.BuyerPubkey,
		SellerPubkey:     out.SellerPubkey,
		ArbiterPubkey:    out.ArbiterPubkey,
		Amount:           out.Amount,
		SecretCodeHash:   out.SecretCodeHash,
		MaxArbiterFee:    ComputeFee(out.Amount, out.MaxArbiterFeeBps),
		MaxArbiterFeeBps: out.MaxArbiterFeeBps,
		State:            StateOpen,
		CreatedAt:        info.Time().Unix(),
	}
	if err := h.bucket.Insert(db, key, contract); err != nil {
		return fedescrow.ItemAmount{}, errors.Wrap(err, "cannot store escrow")
	}
	info.Logger().Debug("escrow created",
		"escrow", out.EscrowID, "amount", out.Amount, "max_fee", contract.MaxArbiterFee)
	return fedescrow.ItemAmount{Amount: out.Amount, Fee: conf.DepositFee}, nil
}

// ProcessInput applies one of the four escrow instructions. On success it
// returns the released amount and the key of the party that receives it and
// therefore must sign the transaction.
func (h Handler) ProcessInput(info fedescrow.BatchInfo, db fedescrow.KVStore, conf Config, in *Input) (fedescrow.InputMeta, error) {
	if in == nil {
		return fedescrow.InputMeta{}, errors.Wrap(ErrInvalidInput, "empty input")
	}
	ins, err := in.Instruction()
	if err != nil {
		return fedescrow.InputMeta{}, err
	}
	if err := ins.Validate(); err != nil {
		return fedescrow.InputMeta{}, err
	}
	contract, err := LoadContract(db, h.bucket, ins.GetEscrowID())
	if err != nil {
		return fedescrow.InputMeta{}, err
	}

	var meta fedescrow.InputMeta
	switch ins := ins.(type) {
	case *ClaimWithoutDispute:
		meta, err = claimWithoutDispute(contract, ins)
	case *Disputing:
		meta, err = dispute(contract, ins)
	case *ArbiterDecision:
		meta, err = decide(contract, ins)
	case *ClaimAfterDispute:
		meta, err = claimAfterDispute(contract, ins)
	default:
		return fedescrow.InputMeta{}, errors.Wrapf(errors.ErrHuman, "unhandled instruction %T", ins)
	}
	if err != nil {
		return fedescrow.InputMeta{}, err
	}

	if err := h.bucket.Put(db, []byte(contract.EscrowID), contract); err != nil {
		return fedescrow.InputMeta{}, errors.Wrap(err, "cannot store escrow")
	}
	info.Logger().Debug("escrow updated",
		"escrow", contract.EscrowID, "kind", ins.kind(), "state", contract.State.String(), "released", meta.Amount)
	return meta, nil
}

// Info returns the public view of a contract.
func (h Handler) Info(db fedescrow.ReadOnlyKVStore, escrowID string) (*EscrowInfo, error) {
	if err := ValidateEscrowID(escrowID); err != nil {
		return nil, err
	}
	c, err := LoadContract(db, h.bucket, escrowID)
	if err != nil {
		return nil, err
	}
	info := c.Info()
	return &info, nil
}

func claimWithoutDispute(c *EscrowContract, ins *ClaimWithoutDispute) (fedescrow.InputMeta, error) {
	if c.State != StateOpen {
		return fedescrow.InputMeta{}, errors.Wrapf(ErrInvalidStateForClaimingEscrow, "escrow is %s", c.State)
	}
	if err := verify(c.SellerPubkey, ins); err != nil {
		return fedescrow.InputMeta{}, errors.Wrap(err, "seller")
	}
	if subtle.ConstantTimeCompare(crypto.HashSecret(ins.SecretCode), c.SecretCodeHash) != 1 {
		return fedescrow.InputMeta{}, ErrInvalidSecretCode
	}
	return release(c, c.SellerPubkey, StateResolvedWithoutDispute), nil
}

func dispute(c *EscrowContract, ins *Disputing) (fedescrow.InputMeta, error) {
	var next State
	switch disputer := crypto.PublicKey(ins.DisputerPubkey); {
	case disputer.Equals(c.BuyerPubkey):
		next = StateDisputedByBuyer
	case disputer.Equals(c.SellerPubkey):
		next = StateDisputedBySeller
	default:
		return fedescrow.InputMeta{}, ErrUnauthorizedToDispute
	}
	if c.State != StateOpen {
		return fedescrow.InputMeta{}, errors.Wrapf(ErrInvalidStateForInitiatingDispute, "escrow is %s", c.State)
	}
	if err := verify(ins.DisputerPubkey, ins); err != nil {
		return fedescrow.InputMeta{}, errors.Wrap(err, "disputer")
	}
	c.State = next
	return fedescrow.InputMeta{Pubkey: ins.DisputerPubkey}, nil
}

func decide(c *EscrowContract, ins *ArbiterDecision) (fedescrow.InputMeta, error) {
	if c.State != StateDisputedByBuyer && c.State != StateDisputedBySeller {
		return fedescrow.InputMeta{}, errors.Wrapf(ErrEscrowNotDisputed, "escrow is %s", c.State)
	}
	if err := verify(c.ArbiterPubkey, ins); err != nil {
		return fedescrow.InputMeta{}, errors.Wrap(err, "arbiter")
	}
	fee := ComputeFee(c.Amount, ins.FeeBps)
	if fee > c.MaxArbiterFee {
		return fedescrow.InputMeta{}, errors.Wrapf(ErrArbiterFeeExceedsMaximum,
			"fee %d, maximum %d", fee, c.MaxArbiterFee)
	}
	c.Amount -= fee
	if ins.Decision == BuyerWins {
		c.State = StateWaitingForBuyerToClaim
	} else {
		c.State = StateWaitingForSellerToClaim
	}
	return fedescrow.InputMeta{
		ItemAmount: fedescrow.ItemAmount{Amount: fee},
		Pubkey:     c.ArbiterPubkey,
	}, nil
}

func claimAfterDispute(c *EscrowContract, ins *ClaimAfterDispute) (fedescrow.InputMeta, error) {
	var winner []byte
	switch c.State {
	case StateWaitingForBuyerToClaim:
		winner = c.BuyerPubkey
	case StateWaitingForSellerToClaim:
		winner = c.SellerPubkey
	default:
		return fedescrow.InputMeta{}, errors.Wrapf(ErrInvalidStateForClaimingEscrow, "escrow is %s", c.State)
	}
	if err := verify(winner, ins); err != nil {
		return fedescrow.InputMeta{}, errors.Wrap(err, "winner")
	}
	return release(c, winner, StateResolvedWithDispute), nil
}

// release hands the whole remaining amount to the recipient.
func release(c *EscrowContract, recipient []byte, next State) fedescrow.InputMeta {
	amount := c.Amount
	c.Amount = 0
	c.State = next
	return fedescrow.InputMeta{
		ItemAmount: fedescrow.ItemAmount{Amount: amount},
		Pubkey:     recipient,
	}
}

func verify(pubkey []byte, ins Instruction) error {
	if !crypto.PublicKey(pubkey).Verify(ins.SignBytes(), ins.GetSignature()) {
		return ErrInvalidSignature
	}
	return nil
}
