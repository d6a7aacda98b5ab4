package app

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/iov-one/fedescrow"
	"github.com/iov-one/fedescrow/crypto"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/orm"
	"github.com/iov-one/fedescrow/x/cash"
	"github.com/iov-one/fedescrow/x/escrow"
	"github.com/tendermint/tendermint/libs/log"
)

var (
	heightKey  = []byte("_meta:height")
	genesisKey = []byte("_meta:genesis")
)

// Query paths served by every guardian.
const (
	QueryEscrow  = "escrow"
	QueryBalance = "balance"
	QueryVerdict = "verdict"
)

// Batch is an ordered list of encoded transactions agreed on by the ordering
// layer. Time is the ordering layer timestamp and is identical for every
// guardian.
type Batch struct {
	Height int64
	Time   time.Time
	Txs    [][]byte
}

// Guardian applies batches to its own store. Two guardians fed with the same
// genesis and the same batches end in the same state with the same verdicts.
type Guardian struct {
	mu sync.RWMutex

	name    string
	store   fedescrow.CacheableKVStore
	logger  log.Logger
	metrics *Metrics
	debug   bool

	height      int64
	initialized bool

	cash     cash.Handler
	escrow   escrow.Handler
	verdicts orm.ModelBucket
	init     fedescrow.Initializer
	queries  *QueryRouter
}

// Option configures a Guardian.
type Option func(*Guardian)

func WithLogger(l log.Logger) Option {
	return func(g *Guardian) { g.logger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(g *Guardian) { g.metrics = m }
}

// WithDebug makes rejection logs carry full error details. Never use it in
// production, the output may differ between guardians.
func WithDebug(debug bool) Option {
	return func(g *Guardian) { g.debug = debug }
}

// NewGuardian loads the guardian state from the store. A fresh store must be
// initialized with InitGenesis before the first batch.
func NewGuardian(name string, store fedescrow.CacheableKVStore, opts ...Option) (*Guardian, error) {
	ctrl := cash.NewController()
	g := &Guardian{
		name:     name,
		store:    store,
		logger:   fedescrow.DefaultLogger,
		cash:     cash.NewHandler(ctrl),
		escrow:   escrow.NewHandler(),
		verdicts: newVerdictBucket(),
		init: ChainInitializers(
			&cash.Initializer{Ctrl: ctrl},
			escrow.Initializer{},
		),
		queries: NewQueryRouter(),
	}
	for _, o := range opts {
		o(g)
	}
	g.logger = g.logger.With("guardian", name)

	g.queries.Register(QueryEscrow, func(db fedescrow.ReadOnlyKVStore, key []byte) (interface{}, error) {
		return g.escrow.Info(db, string(key))
	})
	g.queries.Register(QueryBalance, func(db fedescrow.ReadOnlyKVStore, key []byte) (interface{}, error) {
		return ctrl.Balance(db, key)
	})
	g.queries.Register(QueryVerdict, func(db fedescrow.ReadOnlyKVStore, key []byte) (interface{}, error) {
		var v Verdict
		if err := g.verdicts.One(db, key, &v); err != nil {
			return nil, err
		}
		return &v, nil
	})

	raw, err := store.Get(heightKey)
	if err != nil {
		return nil, errors.Wrap(err, "cannot load height")
	}
	if len(raw) == 8 {
		g.height = int64(binary.BigEndian.Uint64(raw))
	}
	if g.initialized, err = store.Has(genesisKey); err != nil {
		return nil, errors.Wrap(err, "cannot load genesis flag")
	}
	return g, nil
}

func (g *Guardian) Name() string {
	return g.name
}

// Height returns the height of the last applied batch.
func (g *Guardian) Height() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.height
}

// Initialized returns true once the genesis was loaded into the store.
func (g *Guardian) Initialized() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.initialized
}

// InitGenesis runs all module initializers. It can be done only once.
func (g *Guardian) InitGenesis(gen Genesis) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.initialized {
		return errors.Wrap(errors.ErrState, "genesis already loaded")
	}
	cache := g.store.CacheWrap()
	if err := g.init.FromGenesis(gen.AppState, cache); err != nil {
		cache.Discard()
		return errors.Wrap(err, "genesis")
	}
	if err := cache.Set(genesisKey, []byte(gen.FederationID)); err != nil {
		cache.Discard()
		return err
	}
	if err := cache.Write(); err != nil {
		return errors.Wrap(err, "cannot write genesis")
	}
	g.initialized = true
	g.logger.Info("genesis loaded", "federation", gen.FederationID)
	return nil
}

// ApplyBatch processes all transactions in order and returns one verdict
// for each. A rejected transaction does not affect the others. The batch is
// committed all at once: if the store fails or processing panics, nothing
// is written and an error is returned.
func (g *Guardian) ApplyBatch(ctx context.Context, b Batch) (verdicts []*Verdict, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.initialized {
		return nil, errors.Wrap(errors.ErrState, "genesis not loaded")
	}
	if b.Height <= g.height {
		return nil, errors.Wrapf(errors.ErrState, "batch height %d, current height %d", b.Height, g.height)
	}
	conf, err := escrow.LoadConfig(g.store)
	if err != nil {
		return nil, err
	}

	logger := g.logger.With("height", b.Height)
	info := fedescrow.NewBatchInfo(b.Height, b.Time, logger)
	cache := g.store.CacheWrap()
	defer func() {
		if err != nil {
			cache.Discard()
			verdicts = nil
			logger.Error("batch discarded", "err", err)
		}
	}()
	defer errors.Recover(&err)

	stats := newBatchStats()
	verdicts = make([]*Verdict, 0, len(b.Txs))
	for _, raw := range b.Txs {
		v, err := g.applyTx(info, cache, conf, raw, stats)
		if err != nil {
			return nil, err
		}
		verdicts = append(verdicts, v)
	}

	var h [8]byte
	binary.BigEndian.PutUint64(h[:], uint64(b.Height))
	if err := cache.Set(heightKey, h[:]); err != nil {
		return nil, err
	}
	if err := cache.Write(); err != nil {
		return nil, errors.Wrap(err, "cannot commit batch")
	}
	g.height = b.Height
	stats.flush(g.metrics, b.Height)
	logger.Info("batch applied", "txs", len(b.Txs), "accepted", stats.accepted)
	return verdicts, nil
}

// applyTx returns an error only if the whole batch must be discarded.
func (g *Guardian) applyTx(info fedescrow.BatchInfo, db fedescrow.KVCacheWrap, conf escrow.Config, raw []byte, stats *batchStats) (*Verdict, error) {
	v := &Verdict{Height: info.Height()}

	tx, err := DecodeTx(raw)
	if err == nil {
		v.TxID, err = tx.ID()
	}
	if err != nil {
		h := sha256.Sum256(raw)
		v.TxID = hex.EncodeToString(h[:])
		v.Code, v.Log = errors.Info(err, g.debug)
		stats.tx(err)
		return v, nil
	}

	var prev Verdict
	switch err := g.verdicts.One(db, []byte(v.TxID), &prev); {
	case errors.ErrNotFound.Is(err):
	case err != nil:
		return nil, err
	case prev.Accepted:
		// The original verdict is kept.
		err := errors.Wrapf(errors.ErrDuplicate, "transaction accepted at height %d", prev.Height)
		v.Code, v.Log = errors.Info(err, g.debug)
		stats.tx(err)
		return v, nil
	}

	txdb := db.CacheWrap()
	err = g.deliver(info.WithLogInfo("tx", v.TxID), txdb, conf, tx, stats)
	switch {
	case errors.ErrDatabase.Is(err):
		txdb.Discard()
		return nil, err
	case err != nil:
		txdb.Discard()
		v.Code, v.Log = errors.Info(err, g.debug)
		info.Logger().Debug("transaction rejected", "tx", v.TxID, "code", v.Code, "log", v.Log)
	default:
		if err := txdb.Write(); err != nil {
			return nil, err
		}
		v.Accepted = true
	}
	stats.tx(err)

	if err := g.verdicts.Put(db, []byte(v.TxID), v); err != nil {
		return nil, err
	}
	return v, nil
}

// deliver processes all items of the transaction and checks that it is
// balanced and signed by every key named by its inputs.
func (g *Guardian) deliver(info fedescrow.BatchInfo, db fedescrow.KVStore, conf escrow.Config, tx *Tx, stats *batchStats) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	digest, err := tx.Digest()
	if err != nil {
		return err
	}

	var consumed, created, fees uint256.Int
	signers := make([][]byte, 0, len(tx.Inputs))

	for i, in := range tx.Inputs {
		var (
			meta         fedescrow.InputMeta
			module, kind string
			err          error
		)
		switch {
		case in.Cash != nil:
			module, kind = "cash", "input"
			meta, err = g.cash.ProcessInput(info, db, in.Cash)
		case in.Escrow != nil:
			module, kind = "escrow", in.Escrow.Kind()
			meta, err = g.escrow.ProcessInput(info, db, conf, in.Escrow)
		}
		stats.instruction(module, kind, err)
		if err != nil {
			return errors.Wrapf(err, "input #%d", i)
		}
		consumed.Add(&consumed, uint256.NewInt(meta.Amount))
		fees.Add(&fees, uint256.NewInt(meta.Fee))
		signers = append(signers, meta.Pubkey)
	}

	for i, out := range tx.Outputs {
		var (
			amount       fedescrow.ItemAmount
			module, kind string
			err          error
		)
		switch {
		case out.Cash != nil:
			module, kind = "cash", "output"
			amount, err = g.cash.ProcessOutput(info, db, out.Cash)
		case out.Escrow != nil:
			module, kind = "escrow", "create"
			amount, err = g.escrow.ProcessOutput(info, db, conf, out.Escrow)
		}
		stats.instruction(module, kind, err)
		if err != nil {
			return errors.Wrapf(err, "output #%d", i)
		}
		created.Add(&created, uint256.NewInt(amount.Amount))
		fees.Add(&fees, uint256.NewInt(amount.Fee))
	}

	var want uint256.Int
	want.Add(&created, &fees)
	if !consumed.Eq(&want) {
		return errors.Wrapf(errors.ErrUnbalanced, "inputs %s, outputs %s, fees %s",
			consumed.Dec(), created.Dec(), fees.Dec())
	}

	var missing []string
	for _, pk := range signers {
		if !tx.IsSignedBy(digest, pk) {
			missing = append(missing, crypto.PublicKey(pk).String())
		}
	}
	if len(missing) > 0 {
		return errors.Wrapf(errors.ErrUnauthorized, "missing signature of %s", strings.Join(missing, ", "))
	}
	return nil
}

// Query runs a registered query against the committed state.
func (g *Guardian) Query(path string, key []byte) (interface{}, error) {
	h, err := g.queries.Handler(path)
	if err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return h(g.store, key)
}

// EscrowInfo returns the public view of a contract.
func (g *Guardian) EscrowInfo(escrowID string) (*escrow.EscrowInfo, error) {
	res, err := g.Query(QueryEscrow, []byte(escrowID))
	if err != nil {
		return nil, err
	}
	return res.(*escrow.EscrowInfo), nil
}

// Balance returns the cash balance of a key. Unknown keys have no balance.
func (g *Guardian) Balance(pubkey []byte) (uint64, error) {
	res, err := g.Query(QueryBalance, pubkey)
	switch {
	case errors.ErrNotFound.Is(err):
		return 0, nil
	case err != nil:
		return 0, err
	}
	return res.(uint64), nil
}

// EscrowConfig returns the escrow consensus configuration. Clients need the
// deposit fee to fund a new escrow.
func (g *Guardian) EscrowConfig() (escrow.Config, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return escrow.LoadConfig(g.store)
}

// Verdict returns the stored verdict of a transaction or ErrNotFound.
func (g *Guardian) Verdict(txID string) (*Verdict, error) {
	res, err := g.Query(QueryVerdict, []byte(txID))
	if err != nil {
		return nil, err
	}
	return res.(*Verdict), nil
}

// batchStats buffers metrics until the batch is committed.
type batchStats struct {
	accepted     int
	rejected     int
	instructions map[[3]string]int
}

func newBatchStats() *batchStats {
	return &batchStats{instructions: make(map[[3]string]int)}
}

func (s *batchStats) tx(err error) {
	if err != nil {
		s.rejected++
	} else {
		s.accepted++
	}
}

func (s *batchStats) instruction(module, kind string, err error) {
	s.instructions[[3]string{module, kind, verdictLabel(err)}]++
}

func (s *batchStats) flush(m *Metrics, height int64) {
	if m == nil {
		return
	}
	m.observeBatch(height)
	m.txs.WithLabelValues(StatusAccepted).Add(float64(s.accepted))
	m.txs.WithLabelValues(StatusRejected).Add(float64(s.rejected))
	for k, n := range s.instructions {
		m.instructions.WithLabelValues(k[0], k[1], k[2]).Add(float64(n))
	}
}
