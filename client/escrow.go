package client

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/iov-one/fedescrow/app"
	"github.com/iov-one/fedescrow/crypto"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/x/escrow"
)

// EscrowClient performs escrow actions on behalf of one key. Every action
// is checked locally as far as possible, signed, submitted and awaited. A
// rejection is returned as the named error of the failed check, so
// escrow.ErrInvalidSecretCode.Is(err) and similar work for the caller.
type EscrowClient struct {
	key       *crypto.PrivateKey
	transport Transport
	wallet    *Wallet
	tracker   *Tracker
}

// NewEscrowClient returns a client acting with the given key.
func NewEscrowClient(key *crypto.PrivateKey, t Transport, opts ...TrackerOption) *EscrowClient {
	w := NewWallet(t, key.PublicKey())
	return &EscrowClient{
		key:       key,
		transport: t,
		wallet:    w,
		tracker:   NewTracker(t, w, opts...),
	}
}

func (c *EscrowClient) PublicKey() crypto.PublicKey {
	return c.key.PublicKey()
}

func (c *EscrowClient) Wallet() *Wallet {
	return c.wallet
}

func (c *EscrowClient) Tracker() *Tracker {
	return c.tracker
}

// Receipt describes an accepted action. When waiting for the verdict fails
// on the transport or the context, the action returns the error together
// with a receipt without Height. Pass it to Resume to keep waiting.
type Receipt struct {
	OperationID string `json:"operation_id"`
	TxID        string `json:"tx_id"`
	EscrowID    string `json:"escrow_id"`
	Height      int64  `json:"height"`
	// Amount is the value paid to the caller, or locked for a new escrow.
	Amount uint64 `json:"amount"`
}

// CreateParams describe a new escrow. The caller is the buyer. An empty
// EscrowID is replaced with a random one.
type CreateParams struct {
	EscrowID         string
	Seller           crypto.PublicKey
	Arbiter          crypto.PublicKey
	Amount           uint64
	SecretCode       []byte
	MaxArbiterFeeBps uint32
}

// CreateEscrow locks Amount from the caller's wallet. The caller also pays
// the federation deposit fee. A taken escrow id is only detected by the
// federation and results in escrow.ErrDuplicateEscrow.
func (c *EscrowClient) CreateEscrow(ctx context.Context, p CreateParams) (*Receipt, error) {
	conf, err := c.transport.EscrowConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "escrow configuration")
	}
	if err := escrow.ValidateFeeBps(conf, p.MaxArbiterFeeBps); err != nil {
		return nil, err
	}
	if len(p.SecretCode) == 0 {
		return nil, errors.Wrap(escrow.ErrInvalidInput, "empty secret code")
	}
	if p.EscrowID == "" {
		p.EscrowID = uuid.New().String()
	}
	out := &escrow.CreateEscrow{
		EscrowID:         p.EscrowID,
		BuyerPubkey:      c.key.PublicKey(),
		SellerPubkey:     p.Seller,
		ArbiterPubkey:    p.Arbiter,
		Amount:           p.Amount,
		SecretCodeHash:   crypto.HashSecret(p.SecretCode),
		MaxArbiterFeeBps: p.MaxArbiterFeeBps,
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	if p.Amount > math.MaxUint64-conf.DepositFee {
		return nil, errors.Wrap(errors.ErrOverflow, "amount and deposit fee")
	}
	funding := p.Amount + conf.DepositFee

	tx := app.NewTx(
		[]*app.Input{app.CashInput(c.key.PublicKey(), funding)},
		[]*app.Output{app.EscrowOutput(out)},
	)
	r, err := c.run(ctx, KindOutput, tx, funding)
	if r != nil {
		r.EscrowID = p.EscrowID
		r.Amount = p.Amount
	}
	return r, err
}

// ClaimEscrow releases an open escrow to the caller, who must be the seller,
// by revealing the secret code.
func (c *EscrowClient) ClaimEscrow(ctx context.Context, escrowID string, secretCode []byte) (*Receipt, error) {
	return c.release(ctx, escrowID, func(info *escrow.EscrowInfo) (escrow.Instruction, uint64, error) {
		if info.State != escrow.StateOpen {
			return nil, 0, errors.Wrapf(escrow.ErrInvalidStateForClaimingEscrow, "escrow is %s", info.State)
		}
		if !c.key.PublicKey().Equals(info.SellerPubkey) {
			return nil, 0, errors.Wrap(escrow.ErrInvalidSignature, "not the seller")
		}
		return &escrow.ClaimWithoutDispute{EscrowID: escrowID, SecretCode: secretCode}, info.Amount, nil
	})
}

// InitiateDispute freezes an open escrow until the arbiter decides. The
// caller must be the buyer or the seller.
func (c *EscrowClient) InitiateDispute(ctx context.Context, escrowID string) (*Receipt, error) {
	return c.release(ctx, escrowID, func(*escrow.EscrowInfo) (escrow.Instruction, uint64, error) {
		return &escrow.Disputing{EscrowID: escrowID, DisputerPubkey: c.key.PublicKey()}, 0, nil
	})
}

// ArbiterDecision resolves a dispute. The caller must be the arbiter and
// is paid the fee.
func (c *EscrowClient) ArbiterDecision(ctx context.Context, escrowID string, decision escrow.Decision, feeBps uint32) (*Receipt, error) {
	if err := decision.Validate(); err != nil {
		return nil, err
	}
	return c.release(ctx, escrowID, func(info *escrow.EscrowInfo) (escrow.Instruction, uint64, error) {
		fee := escrow.ComputeFee(info.Amount, feeBps)
		if fee > info.MaxArbiterFee {
			return nil, 0, errors.Wrapf(escrow.ErrArbiterFeeExceedsMaximum, "fee %d, maximum %d", fee, info.MaxArbiterFee)
		}
		return &escrow.ArbiterDecision{EscrowID: escrowID, Decision: decision, FeeBps: feeBps}, fee, nil
	})
}

// BuyerClaim collects an escrow the arbiter awarded to the buyer.
func (c *EscrowClient) BuyerClaim(ctx context.Context, escrowID string) (*Receipt, error) {
	return c.claimAfterDispute(ctx, escrowID, escrow.StateWaitingForBuyerToClaim, func(info *escrow.EscrowInfo) crypto.PublicKey {
		return info.BuyerPubkey
	})
}

// SellerClaim collects an escrow the arbiter awarded to the seller.
func (c *EscrowClient) SellerClaim(ctx context.Context, escrowID string) (*Receipt, error) {
	return c.claimAfterDispute(ctx, escrowID, escrow.StateWaitingForSellerToClaim, func(info *escrow.EscrowInfo) crypto.PublicKey {
		return info.SellerPubkey
	})
}

func (c *EscrowClient) claimAfterDispute(ctx context.Context, escrowID string, want escrow.State, winner func(*escrow.EscrowInfo) crypto.PublicKey) (*Receipt, error) {
	return c.release(ctx, escrowID, func(info *escrow.EscrowInfo) (escrow.Instruction, uint64, error) {
		if info.State != want {
			return nil, 0, errors.Wrapf(escrow.ErrInvalidStateForClaimingEscrow, "escrow is %s", info.State)
		}
		if !c.key.PublicKey().Equals(winner(info)) {
			return nil, 0, errors.Wrap(escrow.ErrInvalidSignature, "not the winner of the dispute")
		}
		return &escrow.ClaimAfterDispute{EscrowID: escrowID}, info.Amount, nil
	})
}

// Info returns the public view of an escrow.
func (c *EscrowClient) Info(ctx context.Context, escrowID string) (*escrow.EscrowInfo, error) {
	if err := escrow.ValidateEscrowID(escrowID); err != nil {
		return nil, err
	}
	return c.transport.EscrowInfo(ctx, escrowID)
}

// Balance returns the federation balance of the caller.
func (c *EscrowClient) Balance(ctx context.Context) (uint64, error) {
	return c.transport.Balance(ctx, c.key.PublicKey())
}

// release spends an escrow input into a cash output of the caller. build
// returns the instruction and the value it is expected to release, which
// depends on the current escrow state. If the state changes before the
// transaction is processed, the federation rejects it.
func (c *EscrowClient) release(ctx context.Context, escrowID string, build func(*escrow.EscrowInfo) (escrow.Instruction, uint64, error)) (*Receipt, error) {
	info, err := c.Info(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	ins, amount, err := build(info)
	if err != nil {
		return nil, err
	}
	if err := ins.Validate(); err != nil {
		return nil, err
	}
	if err := escrow.Sign(c.key, ins); err != nil {
		return nil, err
	}
	var outputs []*app.Output
	if amount > 0 {
		outputs = append(outputs, app.CashOutput(c.key.PublicKey(), amount))
	}
	tx := app.NewTx([]*app.Input{app.EscrowInput(ins)}, outputs)
	r, err := c.run(ctx, KindInput, tx, 0)
	if r != nil {
		r.EscrowID = escrowID
		r.Amount = amount
	}
	return r, err
}

// Resume waits again for an action whose previous wait failed. The
// returned receipt is a copy of r completed with the verdict.
func (c *EscrowClient) Resume(ctx context.Context, r *Receipt) (*Receipt, error) {
	if r == nil || r.OperationID == "" {
		return nil, errors.Wrap(errors.ErrEmpty, "operation id")
	}
	op, err := c.tracker.Subscribe(ctx, r.OperationID)
	if err != nil {
		return nil, err
	}
	res, err := c.wait(ctx, op)
	if res != nil {
		res.EscrowID = r.EscrowID
		res.Amount = r.Amount
	}
	return res, err
}

func (c *EscrowClient) run(ctx context.Context, kind Kind, tx *app.Tx, earmark uint64) (*Receipt, error) {
	if err := tx.Sign(c.key); err != nil {
		return nil, err
	}
	op, err := c.tracker.Submit(ctx, kind, tx, earmark)
	if err != nil {
		return nil, err
	}
	return c.wait(ctx, op)
}

// wait returns a receipt without height when no verdict is known yet, and
// drops the operation from the tracker once it is resolved.
func (c *EscrowClient) wait(ctx context.Context, op *Op) (*Receipt, error) {
	res, err := op.Wait(ctx)
	if !res.Lifecycle.IsTerminal() {
		pending, lookupErr := c.tracker.Operation(op.ID())
		if lookupErr != nil {
			return nil, err
		}
		return &Receipt{OperationID: pending.ID, TxID: pending.TxID}, err
	}
	if forgetErr := c.tracker.Forget(res.ID); forgetErr != nil {
		c.tracker.logger.Error("cannot forget operation", "op", res.ID, "err", forgetErr)
	}
	if err != nil {
		return nil, err
	}
	return &Receipt{
		OperationID: res.ID,
		TxID:        res.TxID,
		Height:      res.Height,
	}, nil
}
