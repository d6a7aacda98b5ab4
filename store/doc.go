/*
Package store provides the KVStore implementations used by guardians.

MemStore keeps everything in a google/btree and is used by tests and by
in-process federations. LevelDB persists the state on disk. Both can be
cache wrapped: all writes land in a btree scratch pad first and reach the
parent store only on Write, as a single atomic batch when the parent
supports it. A discarded cache wrap leaves no trace.
*/
package store
