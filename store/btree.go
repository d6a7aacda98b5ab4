package store

import (
	"bytes"
	"sync"

	"github.com/google/btree"
	"github.com/iov-one/fedescrow"
	"github.com/iov-one/fedescrow/errors"
)

const (
	// DefaultFreeListSize is the size we hold for free node in btree
	DefaultFreeListSize = btree.DefaultFreeListSize

	degree = 2
)

// memStore is a non persistent KVStore. There is no persistence here....
type memStore struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

var _ fedescrow.CacheableKVStore = (*memStore)(nil)
var _ fedescrow.Batcher = (*memStore)(nil)

// MemStore returns a simple implementation useful for tests.
func MemStore() fedescrow.CacheableKVStore {
	return &memStore{tree: btree.New(degree)}
}

func (m *memStore) Get(key []byte) ([]byte, error) {
	if key == nil {
		return nil, errors.Wrap(errors.ErrInput, "nil key")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := m.tree.Get(bkey{key})
	if res == nil {
		return nil, nil
	}
	return clone(res.(setItem).value), nil
}

func (m *memStore) Has(key []byte) (bool, error) {
	if key == nil {
		return false, errors.Wrap(errors.ErrInput, "nil key")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Has(bkey{key}), nil
}

func (m *memStore) Set(key, value []byte) error {
	if key == nil {
		return errors.Wrap(errors.ErrInput, "nil key")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.ReplaceOrInsert(newSetItem(key, value))
	return nil
}

func (m *memStore) Delete(key []byte) error {
	if key == nil {
		return errors.Wrap(errors.ErrInput, "nil key")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Delete(bkey{key})
	return nil
}

// CacheWrap returns a BTreeCacheWrap that can be later
// written to this store, or rolled back
func (m *memStore) CacheWrap() fedescrow.KVCacheWrap {
	return NewBTreeCacheWrap(m, nil)
}

// NewBatch returns a batch that applies all collected operations under a
// single lock, so that readers never see a half written batch.
func (m *memStore) NewBatch() fedescrow.Batch {
	return &memBatch{store: m}
}

type memBatch struct {
	store *memStore
	ops   []btree.Item
}

func (b *memBatch) Set(key, value []byte) error {
	b.ops = append(b.ops, newSetItem(key, value))
	return nil
}

func (b *memBatch) Delete(key []byte) error {
	b.ops = append(b.ops, newDeletedItem(key))
	return nil
}

func (b *memBatch) Write() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, op := range b.ops {
		switch op := op.(type) {
		case setItem:
			b.store.tree.ReplaceOrInsert(op)
		case deletedItem:
			b.store.tree.Delete(op.bkey)
		}
	}
	b.ops = nil
	return nil
}

///////////////////////////////////////////////
// Actual CacheWrap implementation

// BTreeCacheWrap places a btree cache over a KVStore
type BTreeCacheWrap struct {
	bt   *btree.BTree
	free *btree.FreeList
	back fedescrow.KVStore
}

var _ fedescrow.KVCacheWrap = BTreeCacheWrap{}

// NewBTreeCacheWrap initializes a BTree to cache around this kv store. All
// writes stay in the btree until Write is called.
//
// free may be nil, but set to an existing list to reuse it
// for memory savings
func NewBTreeCacheWrap(kv fedescrow.KVStore, free *btree.FreeList) BTreeCacheWrap {
	if free == nil {
		free = btree.NewFreeList(DefaultFreeListSize)
	}
	return BTreeCacheWrap{
		bt:   btree.NewWithFreeList(degree, free),
		free: free,
		back: kv,
	}
}

// CacheWrap layers another BTree on top of this one.
func (b BTreeCacheWrap) CacheWrap() fedescrow.KVCacheWrap {
	return NewBTreeCacheWrap(b, b.free)
}

// Write flushes all cached operations to the underlying store, in key
// order, and then cleans up. When the underlying store is a Batcher, the
// whole content is written atomically.
func (b BTreeCacheWrap) Write() error {
	defer b.Discard()

	var target fedescrow.KVStore = b.back
	var batch fedescrow.Batch
	if batcher, ok := b.back.(fedescrow.Batcher); ok {
		batch = batcher.NewBatch()
		target = batchStore{batch}
	}

	var err error
	b.bt.Ascend(func(item btree.Item) bool {
		switch item := item.(type) {
		case setItem:
			err = target.Set(item.key, item.value)
		case deletedItem:
			err = target.Delete(item.key)
		default:
			err = errors.Wrapf(errors.ErrDatabase, "unknown item in btree: %#v", item)
		}
		return err == nil
	})
	if err != nil {
		return errors.Wrap(err, "write cache")
	}
	if batch != nil {
		if err := batch.Write(); err != nil {
			return errors.Wrap(err, "write batch")
		}
	}
	return nil
}

// Discard invalidates this CacheWrap and releases all data
func (b BTreeCacheWrap) Discard() {
	b.bt.Clear(true)
}

// Set writes to the BTree
func (b BTreeCacheWrap) Set(key, value []byte) error {
	if key == nil {
		return errors.Wrap(errors.ErrInput, "nil key")
	}
	b.bt.ReplaceOrInsert(newSetItem(key, value))
	return nil
}

// Delete marks the key as deleted in the BTree
func (b BTreeCacheWrap) Delete(key []byte) error {
	if key == nil {
		return errors.Wrap(errors.ErrInput, "nil key")
	}
	b.bt.ReplaceOrInsert(newDeletedItem(key))
	return nil
}

// Get reads from btree if there, else backing store
func (b BTreeCacheWrap) Get(key []byte) ([]byte, error) {
	if key == nil {
		return nil, errors.Wrap(errors.ErrInput, "nil key")
	}
	res := b.bt.Get(bkey{key})
	if res != nil {
		switch t := res.(type) {
		case setItem:
			return t.value, nil
		case deletedItem:
			return nil, nil
		default:
			return nil, errors.Wrapf(errors.ErrDatabase, "unknown item in btree: %#v", res)
		}
	}
	return b.back.Get(key)
}

// Has reads from btree if there, else backing store
func (b BTreeCacheWrap) Has(key []byte) (bool, error) {
	if key == nil {
		return false, errors.Wrap(errors.ErrInput, "nil key")
	}
	res := b.bt.Get(bkey{key})
	if res != nil {
		switch res.(type) {
		case setItem:
			return true, nil
		case deletedItem:
			return false, nil
		default:
			return false, errors.Wrapf(errors.ErrDatabase, "unknown item in btree: %#v", res)
		}
	}
	return b.back.Has(key)
}

// batchStore adapts a Batch so that the cache flush loop does not care
// where the operations go.
type batchStore struct {
	fedescrow.Batch
}

func (batchStore) Get([]byte) ([]byte, error) {
	return nil, errors.Wrap(errors.ErrHuman, "batch is write only")
}

func (batchStore) Has([]byte) (bool, error) {
	return false, errors.Wrap(errors.ErrHuman, "batch is write only")
}

/////////////////////////////////////////////////////////
// Items to write to btree

// we enforce all data in our btree implements keyer so we
// can compare nicely
type keyer interface {
	Key() []byte
}

// bkey implements keyer and btree.Item
// and may be used for queries or embedded in data to store
type bkey struct {
	key []byte
}

var _ keyer = bkey{}
var _ btree.Item = bkey{}

func (k bkey) Key() []byte {
	return k.key
}

// Less returns true iff second argument is greater than first
//
// panics if the item to compare doesn't implement keyer.
func (k bkey) Less(item btree.Item) bool {
	cmp := item.(keyer).Key()
	return bytes.Compare(k.key, cmp) < 0
}

type deletedItem struct {
	bkey
}

func newDeletedItem(key []byte) deletedItem {
	return deletedItem{bkey{clone(key)}}
}

type setItem struct {
	bkey
	value []byte
}

func newSetItem(key, value []byte) setItem {
	return setItem{bkey{clone(key)}, clone(value)}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
