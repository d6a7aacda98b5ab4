package escrow

import (
	"testing"
	"time"

	"github.com/iov-one/fedescrow"
	"github.com/iov-one/fedescrow/crypto"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const depositFee = 7

type parties struct {
	buyer, seller, arbiter, stranger *crypto.PrivateKey
}

func newParties() parties {
	return parties{
		buyer:    crypto.PrivateKeyFromSeed([]byte("buyer")),
		seller:   crypto.PrivateKeyFromSeed([]byte("seller")),
		arbiter:  crypto.PrivateKeyFromSeed([]byte("arbiter")),
		stranger: crypto.PrivateKeyFromSeed([]byte("stranger")),
	}
}

var secret = []byte("open sesame")

func (p parties) create(id string, amount uint64, bps uint32) *CreateEscrow {
	return &CreateEscrow{
		EscrowID:         id,
		BuyerPubkey:      p.buyer.PublicKey(),
		SellerPubkey:     p.seller.PublicKey(),
		ArbiterPubkey:    p.arbiter.PublicKey(),
		Amount:           amount,
		SecretCodeHash:   crypto.HashSecret(secret),
		MaxArbiterFeeBps: bps,
	}
}

func signed(t testing.TB, key *crypto.PrivateKey, ins Instruction) *Input {
	t.Helper()
	require.NoError(t, Sign(key, ins))
	return NewInput(ins)
}

func batchInfo() fedescrow.BatchInfo {
	return fedescrow.NewBatchInfo(3, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), nil)
}

func setup(t testing.TB, p parties, id string) (Handler, fedescrow.KVStore, Config) {
	t.Helper()
	h := NewHandler()
	db := store.MemStore()
	conf := DefaultConfig(depositFee)
	got, err := h.ProcessOutput(batchInfo(), db, conf, p.create(id, 1000, 100))
	require.NoError(t, err)
	assert.Equal(t, fedescrow.ItemAmount{Amount: 1000, Fee: depositFee}, got)
	return h, db, conf
}

func state(t testing.TB, h Handler, db fedescrow.KVStore, id string) *EscrowInfo {
	t.Helper()
	info, err := h.Info(db, id)
	require.NoError(t, err)
	return info
}

func TestCreateEscrow(t *testing.T) {
	p := newParties()
	h, db, conf := setup(t, p, "trade-1")

	info := state(t, h, db, "trade-1")
	assert.Equal(t, StateOpen, info.State)
	assert.Equal(t, uint64(1000), info.Amount)
	assert.Equal(t, uint64(10), info.MaxArbiterFee)
	assert.Equal(t, uint32(100), info.MaxArbiterFeeBps)
	assert.Equal(t, batchInfo().Time().Unix(), info.CreatedAt)
	assert.Equal(t, p.buyer.PublicKey(), info.BuyerPubkey)

	_, err := h.ProcessOutput(batchInfo(), db, conf, p.create("trade-1", 5, 10))
	assert.True(t, ErrDuplicateEscrow.Is(err), "got %+v", err)

	// The duplicate attempt changed nothing.
	assert.Equal(t, uint64(1000), state(t, h, db, "trade-1").Amount)
}

func TestCreateEscrowValidation(t *testing.T) {
	p := newParties()
	conf := DefaultConfig(depositFee)

	cases := map[string]struct {
		out     func() *CreateEscrow
		wantErr *errors.Error
	}{
		"min bps": {
			out: func() *CreateEscrow { return p.create("a", 100, 10) },
		},
		"max bps": {
			out: func() *CreateEscrow { return p.create("a", 100, 1000) },
		},
		"bps below range": {
			out:     func() *CreateEscrow { return p.create("a", 100, 9) },
			wantErr: ErrArbiterFeeOutOfRange,
		},
		"bps above range": {
			out:     func() *CreateEscrow { return p.create("a", 100, 1001) },
			wantErr: ErrArbiterFeeOutOfRange,
		},
		"zero amount": {
			out:     func() *CreateEscrow { return p.create("a", 0, 100) },
			wantErr: ErrInvalidAmount,
		},
		"missing id": {
			out:     func() *CreateEscrow { return p.create("", 100, 100) },
			wantErr: ErrInvalidInput,
		},
		"id with spaces": {
			out:     func() *CreateEscrow { return p.create("my trade", 100, 100) },
			wantErr: ErrInvalidInput,
		},
		"invalid seller key": {
			out: func() *CreateEscrow {
				o := p.create("a", 100, 100)
				o.SellerPubkey = []byte("short")
				return o
			},
			wantErr: ErrInvalidInput,
		},
		"invalid secret hash": {
			out: func() *CreateEscrow {
				o := p.create("a", 100, 100)
				o.SecretCodeHash = secret
				return o
			},
			wantErr: ErrInvalidInput,
		},
		"nil output": {
			out:     func() *CreateEscrow { return nil },
			wantErr: ErrInvalidInput,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			db := store.MemStore()
			_, err := NewHandler().ProcessOutput(batchInfo(), db, conf, tc.out())
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, tc.wantErr.Is(err), "got %+v", err)
		})
	}
}

func TestHappyPath(t *testing.T) {
	p := newParties()
	h, db, conf := setup(t, p, "happy")

	meta, err := h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.seller, &ClaimWithoutDispute{EscrowID: "happy", SecretCode: secret}))
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), meta.Amount)
	assert.Equal(t, uint64(0), meta.Fee)
	assert.Equal(t, []byte(p.seller.PublicKey()), meta.Pubkey)

	info := state(t, h, db, "happy")
	assert.Equal(t, StateResolvedWithoutDispute, info.State)
	assert.Equal(t, uint64(0), info.Amount)

	// Replaying the very same claim must not pay twice.
	_, err = h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.seller, &ClaimWithoutDispute{EscrowID: "happy", SecretCode: secret}))
	assert.True(t, ErrInvalidStateForClaimingEscrow.Is(err), "got %+v", err)
}

func TestClaimWithoutDisputeGuards(t *testing.T) {
	p := newParties()

	cases := map[string]struct {
		key     *crypto.PrivateKey
		ins     *ClaimWithoutDispute
		wantErr *errors.Error
	}{
		"buyer cannot claim": {
			key:     p.buyer,
			ins:     &ClaimWithoutDispute{EscrowID: "e", SecretCode: secret},
			wantErr: ErrInvalidSignature,
		},
		"arbiter cannot claim": {
			key:     p.arbiter,
			ins:     &ClaimWithoutDispute{EscrowID: "e", SecretCode: secret},
			wantErr: ErrInvalidSignature,
		},
		"wrong secret": {
			key:     p.seller,
			ins:     &ClaimWithoutDispute{EscrowID: "e", SecretCode: []byte("open sesame!")},
			wantErr: ErrInvalidSecretCode,
		},
		"unknown escrow": {
			key:     p.seller,
			ins:     &ClaimWithoutDispute{EscrowID: "nope", SecretCode: secret},
			wantErr: ErrEscrowNotFound,
		},
		"empty secret": {
			key:     p.seller,
			ins:     &ClaimWithoutDispute{EscrowID: "e"},
			wantErr: ErrInvalidInput,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h, db, conf := setup(t, p, "e")
			_, err := h.ProcessInput(batchInfo(), db, conf, signed(t, tc.key, tc.ins))
			assert.True(t, tc.wantErr.Is(err), "got %+v", err)
			assert.Equal(t, StateOpen, state(t, h, db, "e").State)
			assert.Equal(t, uint64(1000), state(t, h, db, "e").Amount)
		})
	}
}

func TestSignatureBoundToEscrow(t *testing.T) {
	p := newParties()
	h, db, conf := setup(t, p, "first")
	_, err := h.ProcessOutput(batchInfo(), db, conf, p.create("second", 500, 100))
	require.NoError(t, err)

	claim := &ClaimWithoutDispute{EscrowID: "first", SecretCode: secret}
	require.NoError(t, Sign(p.seller, claim))
	claim.EscrowID = "second"
	_, err = h.ProcessInput(batchInfo(), db, conf, NewInput(claim))
	assert.True(t, ErrInvalidSignature.Is(err), "got %+v", err)
}

func TestDisputeBuyerWins(t *testing.T) {
	p := newParties()
	h, db, conf := setup(t, p, "dispute")

	meta, err := h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.buyer, &Disputing{EscrowID: "dispute", DisputerPubkey: p.buyer.PublicKey()}))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), meta.Amount)
	assert.Equal(t, []byte(p.buyer.PublicKey()), meta.Pubkey)
	assert.Equal(t, StateDisputedByBuyer, state(t, h, db, "dispute").State)

	// Seller can no longer claim.
	_, err = h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.seller, &ClaimWithoutDispute{EscrowID: "dispute", SecretCode: secret}))
	assert.True(t, ErrInvalidStateForClaimingEscrow.Is(err), "got %+v", err)

	meta, err = h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.arbiter, &ArbiterDecision{EscrowID: "dispute", Decision: BuyerWins, FeeBps: 50}))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), meta.Amount)
	assert.Equal(t, []byte(p.arbiter.PublicKey()), meta.Pubkey)

	info := state(t, h, db, "dispute")
	assert.Equal(t, StateWaitingForBuyerToClaim, info.State)
	assert.Equal(t, uint64(995), info.Amount)

	// The seller lost and cannot claim the rest.
	_, err = h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.seller, &ClaimAfterDispute{EscrowID: "dispute"}))
	assert.True(t, ErrInvalidSignature.Is(err), "got %+v", err)

	meta, err = h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.buyer, &ClaimAfterDispute{EscrowID: "dispute"}))
	require.NoError(t, err)
	assert.Equal(t, uint64(995), meta.Amount)
	assert.Equal(t, []byte(p.buyer.PublicKey()), meta.Pubkey)

	info = state(t, h, db, "dispute")
	assert.Equal(t, StateResolvedWithDispute, info.State)
	assert.Equal(t, uint64(0), info.Amount)

	_, err = h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.buyer, &ClaimAfterDispute{EscrowID: "dispute"}))
	assert.True(t, ErrInvalidStateForClaimingEscrow.Is(err), "got %+v", err)
}

func TestDisputeSellerWins(t *testing.T) {
	p := newParties()
	h, db, conf := setup(t, p, "dispute")

	_, err := h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.seller, &Disputing{EscrowID: "dispute", DisputerPubkey: p.seller.PublicKey()}))
	require.NoError(t, err)
	assert.Equal(t, StateDisputedBySeller, state(t, h, db, "dispute").State)

	// A second dispute is not allowed.
	_, err = h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.buyer, &Disputing{EscrowID: "dispute", DisputerPubkey: p.buyer.PublicKey()}))
	assert.True(t, ErrInvalidStateForInitiatingDispute.Is(err), "got %+v", err)

	_, err = h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.arbiter, &ArbiterDecision{EscrowID: "dispute", Decision: SellerWins, FeeBps: 100}))
	require.NoError(t, err)
	assert.Equal(t, StateWaitingForSellerToClaim, state(t, h, db, "dispute").State)

	// A second decision is not allowed.
	_, err = h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.arbiter, &ArbiterDecision{EscrowID: "dispute", Decision: BuyerWins, FeeBps: 10}))
	assert.True(t, ErrEscrowNotDisputed.Is(err), "got %+v", err)

	_, err = h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.buyer, &ClaimAfterDispute{EscrowID: "dispute"}))
	assert.True(t, ErrInvalidSignature.Is(err), "got %+v", err)

	meta, err := h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.seller, &ClaimAfterDispute{EscrowID: "dispute"}))
	require.NoError(t, err)
	assert.Equal(t, uint64(990), meta.Amount)
	assert.Equal(t, []byte(p.seller.PublicKey()), meta.Pubkey)
}

func TestUnauthorizedDispute(t *testing.T) {
	p := newParties()
	h, db, conf := setup(t, p, "e")

	_, err := h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.stranger, &Disputing{EscrowID: "e", DisputerPubkey: p.stranger.PublicKey()}))
	assert.True(t, ErrUnauthorizedToDispute.Is(err), "got %+v", err)

	// The arbiter is not a party of the trade either.
	_, err = h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.arbiter, &Disputing{EscrowID: "e", DisputerPubkey: p.arbiter.PublicKey()}))
	assert.True(t, ErrUnauthorizedToDispute.Is(err), "got %+v", err)

	// Naming the buyer without the buyer signature.
	_, err = h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.stranger, &Disputing{EscrowID: "e", DisputerPubkey: p.buyer.PublicKey()}))
	assert.True(t, ErrInvalidSignature.Is(err), "got %+v", err)

	assert.Equal(t, StateOpen, state(t, h, db, "e").State)
}

func TestArbiterDecisionGuards(t *testing.T) {
	p := newParties()

	t.Run("not disputed", func(t *testing.T) {
		h, db, conf := setup(t, p, "e")
		_, err := h.ProcessInput(batchInfo(), db, conf,
			signed(t, p.arbiter, &ArbiterDecision{EscrowID: "e", Decision: BuyerWins, FeeBps: 10}))
		assert.True(t, ErrEscrowNotDisputed.Is(err), "got %+v", err)
	})

	cases := map[string]struct {
		key     *crypto.PrivateKey
		ins     *ArbiterDecision
		wantErr *errors.Error
	}{
		"fee above maximum": {
			key:     p.arbiter,
			ins:     &ArbiterDecision{EscrowID: "e", Decision: BuyerWins, FeeBps: 110},
			wantErr: ErrArbiterFeeExceedsMaximum,
		},
		"buyer cannot decide": {
			key:     p.buyer,
			ins:     &ArbiterDecision{EscrowID: "e", Decision: BuyerWins, FeeBps: 10},
			wantErr: ErrInvalidSignature,
		},
		"unknown decision": {
			key:     p.arbiter,
			ins:     &ArbiterDecision{EscrowID: "e", Decision: 9, FeeBps: 10},
			wantErr: ErrInvalidInput,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h, db, conf := setup(t, p, "e")
			_, err := h.ProcessInput(batchInfo(), db, conf,
				signed(t, p.buyer, &Disputing{EscrowID: "e", DisputerPubkey: p.buyer.PublicKey()}))
			require.NoError(t, err)

			_, err = h.ProcessInput(batchInfo(), db, conf, signed(t, tc.key, tc.ins))
			assert.True(t, tc.wantErr.Is(err), "got %+v", err)
			info := state(t, h, db, "e")
			assert.Equal(t, StateDisputedByBuyer, info.State)
			assert.Equal(t, uint64(1000), info.Amount)
		})
	}

	t.Run("tampered fee", func(t *testing.T) {
		h, db, conf := setup(t, p, "e")
		_, err := h.ProcessInput(batchInfo(), db, conf,
			signed(t, p.seller, &Disputing{EscrowID: "e", DisputerPubkey: p.seller.PublicKey()}))
		require.NoError(t, err)

		d := &ArbiterDecision{EscrowID: "e", Decision: SellerWins, FeeBps: 10}
		require.NoError(t, Sign(p.arbiter, d))
		d.FeeBps = 100
		_, err = h.ProcessInput(batchInfo(), db, conf, NewInput(d))
		assert.True(t, ErrInvalidSignature.Is(err), "got %+v", err)
	})
}

func TestClaimAfterDisputeRequiresDecision(t *testing.T) {
	p := newParties()
	h, db, conf := setup(t, p, "e")

	_, err := h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.buyer, &ClaimAfterDispute{EscrowID: "e"}))
	assert.True(t, ErrInvalidStateForClaimingEscrow.Is(err), "got %+v", err)

	_, err = h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.buyer, &Disputing{EscrowID: "e", DisputerPubkey: p.buyer.PublicKey()}))
	require.NoError(t, err)

	_, err = h.ProcessInput(batchInfo(), db, conf,
		signed(t, p.buyer, &ClaimAfterDispute{EscrowID: "e"}))
	assert.True(t, ErrInvalidStateForClaimingEscrow.Is(err), "got %+v", err)
}

func TestInvalidInputShape(t *testing.T) {
	p := newParties()
	h, db, conf := setup(t, p, "e")

	_, err := h.ProcessInput(batchInfo(), db, conf, &Input{})
	assert.True(t, ErrInvalidInput.Is(err), "got %+v", err)

	both := &Input{
		Claim:             &ClaimWithoutDispute{EscrowID: "e", SecretCode: secret},
		ClaimAfterDispute: &ClaimAfterDispute{EscrowID: "e"},
	}
	_, err = h.ProcessInput(batchInfo(), db, conf, both)
	assert.True(t, ErrInvalidInput.Is(err), "got %+v", err)

	_, err = h.ProcessInput(batchInfo(), db, conf, nil)
	assert.True(t, ErrInvalidInput.Is(err), "got %+v", err)
}

// Walks every path and checks that the locked amount plus everything paid
// out always equals the created amount.
func TestConservation(t *testing.T) {
	p := newParties()
	type step struct {
		key *crypto.PrivateKey
		ins Instruction
	}
	paths := map[string][]step{
		"claim": {
			{p.seller, &ClaimWithoutDispute{EscrowID: "e", SecretCode: secret}},
		},
		"buyer wins": {
			{p.buyer, &Disputing{EscrowID: "e", DisputerPubkey: p.buyer.PublicKey()}},
			{p.arbiter, &ArbiterDecision{EscrowID: "e", Decision: BuyerWins, FeeBps: 33}},
			{p.buyer, &ClaimAfterDispute{EscrowID: "e"}},
		},
		"seller wins with no fee": {
			{p.seller, &Disputing{EscrowID: "e", DisputerPubkey: p.seller.PublicKey()}},
			{p.arbiter, &ArbiterDecision{EscrowID: "e", Decision: SellerWins, FeeBps: 0}},
			{p.seller, &ClaimAfterDispute{EscrowID: "e"}},
		},
	}
	for name, steps := range paths {
		t.Run(name, func(t *testing.T) {
			h, db, conf := setup(t, p, "e")
			var paid uint64
			for i, s := range steps {
				meta, err := h.ProcessInput(batchInfo(), db, conf, signed(t, s.key, s.ins))
				require.NoError(t, err, "step %d", i)
				paid += meta.Amount
				assert.Equal(t, uint64(1000), state(t, h, db, "e").Amount+paid, "step %d", i)
			}
			assert.Equal(t, uint64(1000), paid)
			assert.True(t, state(t, h, db, "e").State.IsTerminal())
		})
	}
}

func TestInfo(t *testing.T) {
	p := newParties()
	h, db, _ := setup(t, p, "e")

	_, err := h.Info(db, "missing")
	assert.True(t, ErrEscrowNotFound.Is(err), "got %+v", err)

	_, err = h.Info(db, "bad id!")
	assert.True(t, ErrInvalidInput.Is(err), "got %+v", err)
}
