package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iov-one/fedescrow"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/store"
	"github.com/iov-one/fedescrow/x/escrow"
	"github.com/tendermint/tendermint/libs/log"
)

// LocalFederation runs several guardians in one process. Every batch is
// delivered to all of them and their verdicts are compared. It serves the
// same calls a client makes against a remote federation.
type LocalFederation struct {
	mu        sync.Mutex
	seq       *Sequencer
	guardians []*Guardian
	autoFlush bool
	logger    log.Logger
}

// FederationOption configures a LocalFederation.
type FederationOption func(*LocalFederation)

// AutoFlush makes every submission cut and apply a batch right away.
func AutoFlush() FederationOption {
	return func(f *LocalFederation) { f.autoFlush = true }
}

// WithFederationLogger sets the logger.
func WithFederationLogger(l log.Logger) FederationOption {
	return func(f *LocalFederation) { f.logger = l }
}

// NewLocalFederation requires all guardians to be at the same height.
func NewLocalFederation(guardians []*Guardian, clock func() time.Time, opts ...FederationOption) (*LocalFederation, error) {
	if len(guardians) == 0 {
		return nil, errors.Wrap(errors.ErrEmpty, "no guardians")
	}
	height := guardians[0].Height()
	for _, g := range guardians[1:] {
		if h := g.Height(); h != height {
			return nil, errors.Wrapf(errors.ErrState, "guardian %s at height %d, %s at %d",
				g.Name(), h, guardians[0].Name(), height)
		}
	}
	f := &LocalFederation{
		seq:       NewSequencer(height, clock),
		guardians: guardians,
		logger:    fedescrow.DefaultLogger,
	}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// NewMemFederation starts n guardians with in-memory stores from the same
// genesis.
func NewMemFederation(n int, gen Genesis, clock func() time.Time, opts ...FederationOption) (*LocalFederation, error) {
	guardians := make([]*Guardian, 0, n)
	for i := 0; i < n; i++ {
		g, err := NewGuardian(fmt.Sprintf("guardian-%d", i), store.MemStore())
		if err != nil {
			return nil, err
		}
		if err := g.InitGenesis(gen); err != nil {
			return nil, err
		}
		guardians = append(guardians, g)
	}
	return NewLocalFederation(guardians, clock, opts...)
}

// Height returns the height of the last applied batch.
func (f *LocalFederation) Height() int64 {
	return f.guardians[0].Height()
}

// Guardians returns all guardians of this federation.
func (f *LocalFederation) Guardians() []*Guardian {
	return f.guardians
}

// SubmitTx queues a transaction for the next batch.
func (f *LocalFederation) SubmitTx(ctx context.Context, tx *Tx) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := f.seq.Submit(tx)
	if err != nil {
		return "", err
	}
	if f.autoFlush {
		if _, err := f.Flush(ctx); err != nil {
			return id, err
		}
	}
	return id, nil
}

// Flush cuts a batch of all queued transactions and applies it to every
// guardian. It returns ErrDivergence if the guardians disagree.
func (f *LocalFederation) Flush(ctx context.Context) ([]*Verdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.seq.Cut()
	if !ok {
		return nil, nil
	}
	var want []*Verdict
	for i, g := range f.guardians {
		got, err := g.ApplyBatch(ctx, b)
		if err != nil {
			if i == 0 {
				if rerr := f.seq.Restore(b); rerr != nil {
					f.logger.Error("cannot restore batch", "height", b.Height, "err", rerr)
				}
				return nil, err
			}
			return nil, errors.Wrapf(ErrDivergence, "guardian %s failed batch %d: %s", g.Name(), b.Height, err)
		}
		if i == 0 {
			want = got
			continue
		}
		if err := sameVerdicts(want, got); err != nil {
			return nil, errors.Wrapf(err, "guardian %s, batch %d", g.Name(), b.Height)
		}
	}
	f.logger.Debug("batch applied", "height", b.Height, "txs", len(b.Txs))
	return want, nil
}

func sameVerdicts(want, got []*Verdict) error {
	if len(want) != len(got) {
		return errors.Wrapf(ErrDivergence, "%d verdicts, want %d", len(got), len(want))
	}
	for i := range want {
		w, g := want[i], got[i]
		if w.TxID != g.TxID || w.Accepted != g.Accepted || w.Code != g.Code || w.Log != g.Log {
			return errors.Wrapf(ErrDivergence, "tx %s: got %v, want %v", w.TxID, g, w)
		}
	}
	return nil
}

// Run flushes every interval until the context is cancelled.
func (f *LocalFederation) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := f.Flush(ctx); err != nil {
				if ErrDivergence.Is(err) {
					return err
				}
				f.logger.Error("cannot apply batch", "err", err)
			}
		}
	}
}

// TxStatus reports a queued transaction as pending.
func (f *LocalFederation) TxStatus(ctx context.Context, txID string) (*TxStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// A batch being applied is neither pending nor decided.
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seq.IsPending(txID) {
		return &TxStatus{TxID: txID, Status: StatusPending}, nil
	}
	v, err := f.guardians[0].Verdict(txID)
	if err != nil {
		return nil, err
	}
	return StatusOf(v), nil
}

func (f *LocalFederation) EscrowConfig(ctx context.Context) (escrow.Config, error) {
	if err := ctx.Err(); err != nil {
		return escrow.Config{}, err
	}
	return f.guardians[0].EscrowConfig()
}

func (f *LocalFederation) EscrowInfo(ctx context.Context, escrowID string) (*escrow.EscrowInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.guardians[0].EscrowInfo(escrowID)
}

func (f *LocalFederation) Balance(ctx context.Context, pubkey []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return f.guardians[0].Balance(pubkey)
}
