package store

import (
	"testing"

	"github.com/iov-one/fedescrow"
	. "github.com/smartystreets/goconvey/convey"
)

// backends returns fresh instances of every store implementation, so that
// all of them are held to the same behaviour.
func backends(t *testing.T) map[string]fedescrow.CacheableKVStore {
	ldb, err := MemLevelDB()
	if err != nil {
		t.Fatalf("cannot open leveldb: %s", err)
	}
	t.Cleanup(func() { ldb.Close() })
	return map[string]fedescrow.CacheableKVStore{
		"memstore": MemStore(),
		"leveldb":  ldb,
	}
}

func TestStoreBasics(t *testing.T) {
	for name, db := range backends(t) {
		Convey("Given a "+name, t, func() {
			So(db.Set([]byte("foo"), []byte("bar")), ShouldBeNil)

			Convey("stored values can be read back", func() {
				val, err := db.Get([]byte("foo"))
				So(err, ShouldBeNil)
				So(string(val), ShouldEqual, "bar")

				has, err := db.Has([]byte("foo"))
				So(err, ShouldBeNil)
				So(has, ShouldBeTrue)
			})

			Convey("missing values are nil", func() {
				val, err := db.Get([]byte("missing"))
				So(err, ShouldBeNil)
				So(val, ShouldBeNil)

				has, err := db.Has([]byte("missing"))
				So(err, ShouldBeNil)
				So(has, ShouldBeFalse)
			})

			Convey("deleted values are gone", func() {
				So(db.Delete([]byte("foo")), ShouldBeNil)
				val, err := db.Get([]byte("foo"))
				So(err, ShouldBeNil)
				So(val, ShouldBeNil)
			})

			Convey("nil keys are rejected", func() {
				_, err := db.Get(nil)
				So(err, ShouldNotBeNil)
				So(db.Set(nil, []byte("x")), ShouldNotBeNil)
			})
		})
	}
}

func TestCacheWrap(t *testing.T) {
	for name, db := range backends(t) {
		Convey("Given a cache wrapped "+name, t, func() {
			So(db.Set([]byte("a"), []byte("1")), ShouldBeNil)
			So(db.Set([]byte("b"), []byte("2")), ShouldBeNil)

			cache := db.CacheWrap()
			So(cache.Set([]byte("c"), []byte("3")), ShouldBeNil)
			So(cache.Delete([]byte("a")), ShouldBeNil)
			So(cache.Set([]byte("b"), []byte("22")), ShouldBeNil)

			Convey("the cache shows its own writes", func() {
				val, _ := cache.Get([]byte("c"))
				So(string(val), ShouldEqual, "3")
				val, _ = cache.Get([]byte("b"))
				So(string(val), ShouldEqual, "22")
				has, _ := cache.Has([]byte("a"))
				So(has, ShouldBeFalse)
			})

			Convey("the parent is untouched before write", func() {
				val, _ := db.Get([]byte("a"))
				So(string(val), ShouldEqual, "1")
				has, _ := db.Has([]byte("c"))
				So(has, ShouldBeFalse)
			})

			Convey("discard drops everything", func() {
				cache.Discard()
				val, _ := db.Get([]byte("b"))
				So(string(val), ShouldEqual, "2")
				has, _ := db.Has([]byte("c"))
				So(has, ShouldBeFalse)
			})

			Convey("write applies everything", func() {
				So(cache.Write(), ShouldBeNil)
				has, _ := db.Has([]byte("a"))
				So(has, ShouldBeFalse)
				val, _ := db.Get([]byte("b"))
				So(string(val), ShouldEqual, "22")
				val, _ = db.Get([]byte("c"))
				So(string(val), ShouldEqual, "3")
			})

			Convey("nested wraps only reach the parent wrap", func() {
				inner := cache.CacheWrap()
				So(inner.Set([]byte("d"), []byte("4")), ShouldBeNil)

				val, _ := inner.Get([]byte("c"))
				So(string(val), ShouldEqual, "3")

				So(inner.Write(), ShouldBeNil)
				val, _ = cache.Get([]byte("d"))
				So(string(val), ShouldEqual, "4")
				has, _ := db.Has([]byte("d"))
				So(has, ShouldBeFalse)

				So(cache.Write(), ShouldBeNil)
				has, _ = db.Has([]byte("d"))
				So(has, ShouldBeTrue)
			})
		})
	}
}

func TestMemStoreValuesAreCopied(t *testing.T) {
	Convey("Values are not aliased", t, func() {
		db := MemStore()
		val := []byte("abc")
		So(db.Set([]byte("k"), val), ShouldBeNil)
		val[0] = 'x'

		got, _ := db.Get([]byte("k"))
		So(string(got), ShouldEqual, "abc")

		got[1] = 'y'
		again, _ := db.Get([]byte("k"))
		So(string(again), ShouldEqual, "abc")
	})
}
