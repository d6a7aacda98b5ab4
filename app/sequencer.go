package app

import (
	"sync"
	"time"

	"github.com/iov-one/fedescrow/errors"
)

// Sequencer orders submitted transactions into batches. It stands in for the
// consensus layer of a real federation.
type Sequencer struct {
	mu      sync.Mutex
	clock   func() time.Time
	height  int64
	pending [][]byte
	ids     map[string]struct{}
}

// NewSequencer returns a sequencer whose next batch has height+1.
func NewSequencer(height int64, clock func() time.Time) *Sequencer {
	if clock == nil {
		clock = time.Now
	}
	return &Sequencer{
		clock:  clock,
		height: height,
		ids:    make(map[string]struct{}),
	}
}

// Submit queues a transaction and returns its id. Submitting a transaction
// that is already queued is a no-op.
func (s *Sequencer) Submit(tx *Tx) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	id, err := tx.ID()
	if err != nil {
		return "", err
	}
	raw, err := tx.Encode()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return id, nil
	}
	s.ids[id] = struct{}{}
	s.pending = append(s.pending, raw)
	return id, nil
}

// IsPending returns true if the transaction was queued but not yet cut into
// a batch.
func (s *Sequencer) IsPending(txID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[txID]
	return ok
}

// Cut returns the next batch containing all queued transactions. It
// returns false if nothing is queued.
func (s *Sequencer) Cut() (Batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return Batch{}, false
	}
	s.height++
	b := Batch{
		Height: s.height,
		Time:   s.clock().UTC(),
		Txs:    s.pending,
	}
	s.pending = nil
	s.ids = make(map[string]struct{})
	return b, true
}

// Restore puts back a batch that could not be applied. It must be the last
// cut batch.
func (s *Sequencer) Restore(b Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.Height != s.height {
		return errors.Wrapf(errors.ErrState, "batch %d is not the last one (%d)", b.Height, s.height)
	}
	s.height--
	all := make([][]byte, 0, len(b.Txs)+len(s.pending))
	all = append(all, b.Txs...)
	all = append(all, s.pending...)
	s.pending = nil
	s.ids = make(map[string]struct{})
	for _, raw := range all {
		tx, err := DecodeTx(raw)
		if err != nil {
			continue
		}
		id, err := tx.ID()
		if err != nil {
			continue
		}
		if _, ok := s.ids[id]; ok {
			continue
		}
		s.ids[id] = struct{}{}
		s.pending = append(s.pending, raw)
	}
	return nil
}

// Height returns the height of the last cut batch.
func (s *Sequencer) Height() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}
