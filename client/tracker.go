package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iov-one/fedescrow"
	"github.com/iov-one/fedescrow/app"
	"github.com/iov-one/fedescrow/errors"
	"github.com/tendermint/tendermint/libs/log"
	"golang.org/x/time/rate"
)

// Kind tells whether an operation spends an escrow (Input) or creates one
// (Output).
type Kind int

const (
	KindInput Kind = iota + 1
	KindOutput
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindOutput:
		return "output"
	}
	return "unknown"
}

// Lifecycle of an operation. Accepted and Rejected are terminal.
type Lifecycle int

const (
	Created Lifecycle = iota + 1
	Accepted
	Rejected
)

func (l Lifecycle) String() string {
	switch l {
	case Created:
		return "created"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

func (l Lifecycle) IsTerminal() bool {
	return l == Accepted || l == Rejected
}

// Operation is a single submitted transaction as seen by its submitter.
// Amount is the value earmarked from the wallet for it.
type Operation struct {
	ID        string
	Kind      Kind
	TxID      string
	Amount    uint64
	Lifecycle Lifecycle
	Height    int64
	// Err is the rejection reason rebuilt from the federation verdict.
	Err error
}

// Event reports a lifecycle change of an operation.
type Event struct {
	OperationID string
	TxID        string
	Lifecycle   Lifecycle
	Height      int64
	Err         error
}

func (o Operation) event() Event {
	return Event{
		OperationID: o.ID,
		TxID:        o.TxID,
		Lifecycle:   o.Lifecycle,
		Height:      o.Height,
		Err:         o.Err,
	}
}

const (
	DefaultPollInterval        = 200 * time.Millisecond
	DefaultMaxTransportRetries = 5
)

// Tracker submits transactions and follows them until the federation
// decides. Operations are single shot, a failed one is never resubmitted.
type Tracker struct {
	transport Transport
	wallet    *Wallet
	logger    log.Logger

	interval   time.Duration
	maxRetries int

	mu  sync.Mutex
	ops map[string]*Operation
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithPollInterval sets the minimal delay between two status queries of one
// operation.
func WithPollInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.interval = d }
}

// WithMaxTransportRetries sets how many consecutive failed status queries
// are tolerated before giving up.
func WithMaxTransportRetries(n int) TrackerOption {
	return func(t *Tracker) { t.maxRetries = n }
}

func WithTrackerLogger(l log.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = l }
}

// NewTracker returns a tracker earmarking value in the given wallet.
func NewTracker(t Transport, w *Wallet, opts ...TrackerOption) *Tracker {
	tr := &Tracker{
		transport:  t,
		wallet:     w,
		logger:     fedescrow.DefaultLogger,
		interval:   DefaultPollInterval,
		maxRetries: DefaultMaxTransportRetries,
		ops:        make(map[string]*Operation),
	}
	for _, o := range opts {
		o(tr)
	}
	return tr
}

// Submit sends a signed transaction and starts following it. The earmark is
// reserved in the wallet before sending and stays reserved until the
// federation decides. If the context is done before sending, nothing is
// sent and nothing is reserved.
func (t *Tracker) Submit(ctx context.Context, kind Kind, tx *app.Tx, earmark uint64) (*Op, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txID, err := tx.ID()
	if err != nil {
		return nil, err
	}
	op := Operation{
		ID:        uuid.New().String(),
		Kind:      kind,
		TxID:      txID,
		Amount:    earmark,
		Lifecycle: Created,
	}
	if earmark > 0 {
		if err := t.wallet.Earmark(ctx, op.ID, earmark); err != nil {
			return nil, err
		}
	}
	if _, err := t.transport.SubmitTx(ctx, tx); err != nil {
		t.wallet.Release(op.ID)
		return nil, errors.Wrap(err, "submit")
	}

	t.mu.Lock()
	t.ops[op.ID] = &op
	t.mu.Unlock()

	t.logger.Debug("operation submitted", "op", op.ID, "tx", txID, "kind", kind.String())
	return t.follow(ctx, op), nil
}

// Subscribe follows an operation again, for example after the previous
// wait gave up on a transport failure. The returned Op starts from the
// current lifecycle of the operation.
func (t *Tracker) Subscribe(ctx context.Context, opID string) (*Op, error) {
	op, err := t.Operation(opID)
	if err != nil {
		return nil, err
	}
	return t.follow(ctx, op), nil
}

// Operation returns a snapshot of a known operation.
func (t *Tracker) Operation(opID string) (Operation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[opID]
	if !ok {
		return Operation{}, errors.Wrapf(errors.ErrNotFound, "operation %s", opID)
	}
	return *op, nil
}

// Forget drops a resolved operation.
func (t *Tracker) Forget(opID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[opID]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "operation %s", opID)
	}
	if !op.Lifecycle.IsTerminal() {
		return errors.Wrapf(errors.ErrState, "operation %s is %s", opID, op.Lifecycle)
	}
	delete(t.ops, opID)
	return nil
}

func (t *Tracker) follow(ctx context.Context, op Operation) *Op {
	o := newOp(op)
	o.events <- op.event()
	if op.Lifecycle.IsTerminal() {
		o.finish(op, nil)
		return o
	}
	go t.poll(ctx, o, op)
	return o
}

// poll queries the transaction status until a verdict is known. It gives
// up after too many consecutive transport failures, leaving the operation
// in Created state.
func (t *Tracker) poll(ctx context.Context, o *Op, op Operation) {
	limiter := rate.NewLimiter(rate.Every(t.interval), 1)
	failures := 0
	for {
		if err := limiter.Wait(ctx); err != nil {
			o.finish(op, err)
			return
		}
		status, err := t.transport.TxStatus(ctx, op.TxID)
		switch {
		case err == nil:
			failures = 0
		case ctx.Err() != nil:
			o.finish(op, ctx.Err())
			return
		default:
			// A transaction that the federation does not know about yet
			// is treated like a transport failure. It may show up later.
			failures++
			t.logger.Debug("cannot get status", "op", op.ID, "tx", op.TxID, "failures", failures, "err", err)
			if failures > t.maxRetries {
				o.finish(op, errors.Wrapf(errors.ErrNetwork, "no status after %d attempts: %s", failures, err))
				return
			}
			continue
		}

		switch status.Status {
		case app.StatusAccepted:
			t.wallet.Settle(op.ID)
			op.Lifecycle = Accepted
		case app.StatusRejected:
			released := t.wallet.Release(op.ID)
			op.Lifecycle = Rejected
			op.Err = errors.FromCode(status.Code, status.Log)
			t.logger.Debug("operation rejected", "op", op.ID, "code", status.Code, "released", released)
		default:
			continue
		}
		op.Height = status.Height
		t.store(op)
		o.events <- op.event()
		o.finish(op, nil)
		return
	}
}

func (t *Tracker) store(op Operation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops[op.ID] = &op
}

// Op is one subscription to an operation. Events yields Created and then,
// unless the wait fails, exactly one terminal event. The channel is closed
// afterwards.
type Op struct {
	id     string
	events chan Event
	done   chan struct{}

	// Set before done is closed.
	result Operation
	err    error
}

func newOp(op Operation) *Op {
	return &Op{
		id:     op.ID,
		events: make(chan Event, 2),
		done:   make(chan struct{}),
	}
}

func (o *Op) ID() string {
	return o.id
}

func (o *Op) Events() <-chan Event {
	return o.events
}

func (o *Op) finish(op Operation, err error) {
	o.result = op
	o.err = err
	close(o.events)
	close(o.done)
}

// Wait blocks until the operation is resolved or the wait fails. A rejected
// operation returns its rejection reason. A transport failure returns an
// ErrNetwork error and the operation is still Created: the transaction may
// be accepted later.
func (o *Op) Wait(ctx context.Context) (Operation, error) {
	select {
	case <-o.done:
	case <-ctx.Done():
		return Operation{}, ctx.Err()
	}
	if o.err != nil {
		return o.result, o.err
	}
	return o.result, o.result.Err
}
