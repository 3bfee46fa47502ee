// Package kv defines the ordered key/value store contract the facet
// extraction core consumes (spec.md §6 "Storage contract consumed"):
// point get, range iteration by prefix, atomic multi-put commit, and
// multi-version read snapshots. It mirrors the shape of the ethdb
// package (Database/Cursor/Tx) of the tree this module was adapted from
// rather than inventing new names.
package kv

import "context"

// Tx is a read-only, point-in-time snapshot. Multiple Tx may be open
// concurrently against the same DB; a Tx is never shared across workers
// (spec.md §3 invariants, §5 "Shared resources").
type Tx interface {
	GetOne(bucket string, key []byte) ([]byte, error)
	Cursor(bucket string) Cursor
	Commit() error
	Rollback()
}

// RwTx additionally allows writes. facet.SharedFieldIdMap persists new
// field ids through one, and cmd/facetextract's sender writes
// per-document facet records through one.
type RwTx interface {
	Tx
	Put(bucket string, key, value []byte) error
	Delete(bucket string, key []byte) error
	RwCursor(bucket string) RwCursor
}

// Cursor supports ordered forward/backward traversal and exact/ceiling
// seeks. facet.SharedFieldIdMap uses one to load persisted field ids;
// the Balanced Cache's spill runs are temporary files and do not go
// through a Cursor.
type Cursor interface {
	Seek(seek []byte) (k, v []byte, err error)
	SeekExact(seek []byte) (v []byte, err error)
	Next() (k, v []byte, err error)
	Current() (k, v []byte, err error)
	Prev() (k, v []byte, err error)
	Close()
}

// RwCursor is a Cursor that can also mutate the bucket it was opened on.
type RwCursor interface {
	Cursor
	Put(k, v []byte) error
	Delete(k []byte) error
}

// DB opens read and read-write transactions. The Parallel Driver
// (facet.Drive) takes no DB or transaction: its workers read documents
// only from the DocumentChanges they are handed.
type DB interface {
	View(ctx context.Context, f func(tx Tx) error) error
	Update(ctx context.Context, f func(tx RwTx) error) error
	BeginRo(ctx context.Context) (Tx, error)
	Begin(ctx context.Context) (RwTx, error)
	Close()
}
