package store

import (
	"github.com/iov-one/fedescrow"
	"github.com/iov-one/fedescrow/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDB is a KVStore persisting data in a goleveldb database. Writes
// coming from a cache wrap are applied as a single synced batch.
type LevelDB struct {
	db *leveldb.DB
}

var _ fedescrow.CacheableKVStore = (*LevelDB)(nil)
var _ fedescrow.Batcher = (*LevelDB)(nil)

// OpenLevelDB opens (or creates) a database stored in given directory.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "open %q: %s", path, err)
	}
	return &LevelDB{db: db}, nil
}

// MemLevelDB returns a LevelDB instance that keeps the data in memory. This
// is useful for tests that want to exercise the leveldb code path.
func MemLevelDB() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "open memory storage: %s", err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	if key == nil {
		return nil, errors.Wrap(errors.ErrInput, "nil key")
	}
	val, err := l.db.Get(key, nil)
	switch {
	case err == leveldb.ErrNotFound:
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return val, nil
}

func (l *LevelDB) Has(key []byte) (bool, error) {
	if key == nil {
		return false, errors.Wrap(errors.ErrInput, "nil key")
	}
	ok, err := l.db.Has(key, nil)
	if err != nil {
		return false, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return ok, nil
}

func (l *LevelDB) Set(key, value []byte) error {
	if key == nil {
		return errors.Wrap(errors.ErrInput, "nil key")
	}
	if err := l.db.Put(key, value, nil); err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return nil
}

func (l *LevelDB) Delete(key []byte) error {
	if key == nil {
		return errors.Wrap(errors.ErrInput, "nil key")
	}
	if err := l.db.Delete(key, nil); err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return nil
}

// CacheWrap returns a btree scratch pad on top of the database.
func (l *LevelDB) CacheWrap() fedescrow.KVCacheWrap {
	return NewBTreeCacheWrap(l, nil)
}

// NewBatch returns a leveldb batch. Nothing is visible in the database until
// Write succeeds.
func (l *LevelDB) NewBatch() fedescrow.Batch {
	return &levelBatch{db: l.db, batch: new(leveldb.Batch)}
}

// Close releases the database. The instance must not be used afterwards.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

type levelBatch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

func (b *levelBatch) Set(key, value []byte) error {
	b.batch.Put(key, value)
	return nil
}

func (b *levelBatch) Delete(key []byte) error {
	b.batch.Delete(key)
	return nil
}

func (b *levelBatch) Write() error {
	if err := b.db.Write(b.batch, &opt.WriteOptions{Sync: true}); err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	b.batch.Reset()
	return nil
}
