package app

import (
	"context"
	"testing"
	"time"

	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/store"
	"github.com/iov-one/fedescrow/x/escrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return batchTime
}

func TestSequencer(t *testing.T) {
	seq := NewSequencer(3, fixedClock)

	_, ok := seq.Cut()
	assert.False(t, ok)

	a := createTx(t, "trade-1", 10)
	b := createTx(t, "trade-2", 10)
	idA, err := seq.Submit(a)
	require.NoError(t, err)
	again, err := seq.Submit(a)
	require.NoError(t, err)
	assert.Equal(t, idA, again)
	_, err = seq.Submit(b)
	require.NoError(t, err)
	assert.True(t, seq.IsPending(idA))

	_, err = seq.Submit(&Tx{})
	assert.True(t, errors.ErrEmpty.Is(err), "got %+v", err)

	batch, ok := seq.Cut()
	require.True(t, ok)
	assert.Equal(t, int64(4), batch.Height)
	assert.Equal(t, batchTime, batch.Time)
	assert.Len(t, batch.Txs, 2)
	assert.False(t, seq.IsPending(idA))

	// Submitted while the batch was being applied.
	_, err = seq.Submit(a)
	require.NoError(t, err)

	require.NoError(t, seq.Restore(batch))
	assert.Equal(t, int64(3), seq.Height())
	assert.True(t, seq.IsPending(idA))
	batch, ok = seq.Cut()
	require.True(t, ok)
	assert.Equal(t, int64(4), batch.Height)
	assert.Len(t, batch.Txs, 2)

	stale := Batch{Height: 2}
	err = seq.Restore(stale)
	assert.True(t, errors.ErrState.Is(err), "got %+v", err)
}

func TestLocalFederation(t *testing.T) {
	ctx := context.Background()
	fed, err := NewMemFederation(3, testGenesis(), fixedClock)
	require.NoError(t, err)

	create := createTx(t, "trade-1", 1000)
	id, err := fed.SubmitTx(ctx, create)
	require.NoError(t, err)
	status, err := fed.TxStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status.Status)

	verdicts, err := fed.Flush(ctx)
	require.NoError(t, err)
	require.Len(t, verdicts, 1)
	assertAccepted(t, verdicts[0])

	status, err = fed.TxStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, status.Status)
	assert.Equal(t, int64(1), status.Height)

	// A batch with accepted and rejected transactions.
	wrong := releaseTx(t, &escrow.ClaimWithoutDispute{EscrowID: "trade-1", SecretCode: []byte("wrong")},
		seller, seller.PublicKey(), 1000, seller)
	dispute := releaseTx(t, &escrow.Disputing{EscrowID: "trade-1", DisputerPubkey: buyer.PublicKey()},
		buyer, nil, 0, buyer)
	wrongID, err := fed.SubmitTx(ctx, wrong)
	require.NoError(t, err)
	_, err = fed.SubmitTx(ctx, dispute)
	require.NoError(t, err)
	verdicts, err = fed.Flush(ctx)
	require.NoError(t, err)
	require.Len(t, verdicts, 2)
	assertRejected(t, verdicts[0], escrow.ErrInvalidSecretCode)
	assertAccepted(t, verdicts[1])

	status, err = fed.TxStatus(ctx, wrongID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, status.Status)
	assert.Equal(t, escrow.ErrInvalidSecretCode.Code(), status.Code)

	_, err = fed.TxStatus(ctx, "unknown")
	assert.True(t, errors.ErrNotFound.Is(err), "got %+v", err)

	// Every guardian ends in the same state.
	for _, g := range fed.Guardians() {
		assert.Equal(t, int64(2), g.Height())
		info, err := g.EscrowInfo("trade-1")
		require.NoError(t, err)
		assert.Equal(t, escrow.StateDisputedByBuyer, info.State)
		assert.Equal(t, uint64(5000-1007), balance(t, g, buyer))
	}
	info, err := fed.EscrowInfo(ctx, "trade-1")
	require.NoError(t, err)
	assert.Equal(t, escrow.StateDisputedByBuyer, info.State)
	b, err := fed.Balance(ctx, buyer.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(5000-1007), b)

	conf, err := fed.EscrowConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(depositFee), conf.DepositFee)
	assert.Equal(t, uint32(10), conf.MinArbiterFeeBps)

	verdicts, err = fed.Flush(ctx)
	require.NoError(t, err)
	assert.Nil(t, verdicts)
}

func TestFederationAutoFlush(t *testing.T) {
	ctx := context.Background()
	fed, err := NewMemFederation(2, testGenesis(), fixedClock, AutoFlush())
	require.NoError(t, err)

	id, err := fed.SubmitTx(ctx, createTx(t, "trade-1", 10))
	require.NoError(t, err)
	status, err := fed.TxStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, status.Status)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = fed.SubmitTx(cctx, createTx(t, "trade-2", 10))
	assert.Equal(t, context.Canceled, err)
}

func TestFederationDivergence(t *testing.T) {
	ctx := context.Background()

	honest, err := NewGuardian("honest", store.MemStore())
	require.NoError(t, err)
	require.NoError(t, honest.InitGenesis(testGenesis()))

	// Same federation, but no money for the buyer.
	gen := testGenesis()
	delete(gen.AppState, "cash")
	odd, err := NewGuardian("odd", store.MemStore())
	require.NoError(t, err)
	require.NoError(t, odd.InitGenesis(gen))

	fed, err := NewLocalFederation([]*Guardian{honest, odd}, fixedClock)
	require.NoError(t, err)
	_, err = fed.SubmitTx(ctx, createTx(t, "trade-1", 10))
	require.NoError(t, err)
	_, err = fed.Flush(ctx)
	assert.True(t, ErrDivergence.Is(err), "got %+v", err)
}

func TestFederationHeightMismatch(t *testing.T) {
	a := newTestGuardian(t, store.MemStore())
	b := newTestGuardian(t, store.MemStore())
	apply(t, b, createTx(t, "trade-1", 10))

	_, err := NewLocalFederation([]*Guardian{a, b}, fixedClock)
	assert.True(t, errors.ErrState.Is(err), "got %+v", err)

	_, err = NewLocalFederation(nil, fixedClock)
	assert.True(t, errors.ErrEmpty.Is(err), "got %+v", err)
}

func TestFederationRestoresFailedBatch(t *testing.T) {
	ctx := context.Background()
	db := &faultyStore{CacheableKVStore: store.MemStore()}
	g := newTestGuardian(t, db)
	fed, err := NewLocalFederation([]*Guardian{g}, fixedClock)
	require.NoError(t, err)

	id, err := fed.SubmitTx(ctx, createTx(t, "trade-1", 10))
	require.NoError(t, err)

	db.failWrites = true
	_, err = fed.Flush(ctx)
	assert.True(t, errors.ErrDatabase.Is(err), "got %+v", err)
	status, err := fed.TxStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status.Status)

	db.failWrites = false
	verdicts, err := fed.Flush(ctx)
	require.NoError(t, err)
	require.Len(t, verdicts, 1)
	assertAccepted(t, verdicts[0])
	assert.Equal(t, int64(1), g.Height())
}

func TestFederationRun(t *testing.T) {
	fed, err := NewMemFederation(1, testGenesis(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fed.Run(ctx, 5*time.Millisecond) }()

	id, err := fed.SubmitTx(ctx, createTx(t, "trade-1", 10))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		s, err := fed.TxStatus(ctx, id)
		return err == nil && s.Status == StatusAccepted
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.Equal(t, context.Canceled, <-done)
}
