// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package memdb is an in-memory reference implementation of kv.DB, the
// role ethdb.NewMemDatabase() played in the tree this module was
// adapted from - used by
// tests and by cmd/facetextract's demo mode so neither needs a real
// LMDB environment on disk.
package memdb

import (
	"context"
	"sort"
	"sync"

	"github.com/ledgerwatch/turbo-facet/common"
	"github.com/ledgerwatch/turbo-facet/kv"
)

type bucket struct {
	mu   sync.RWMutex
	keys []string // kept sorted, parallel to vals
	vals map[string][]byte
}

func newBucket() *bucket {
	return &bucket{vals: make(map[string][]byte)}
}

func (b *bucket) put(k, v []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ks := string(k)
	if _, ok := b.vals[ks]; !ok {
		i := sort.SearchStrings(b.keys, ks)
		b.keys = append(b.keys, "")
		copy(b.keys[i+1:], b.keys[i:])
		b.keys[i] = ks
	}
	b.vals[ks] = common.CopyBytes(v)
}

func (b *bucket) delete(k []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ks := string(k)
	if _, ok := b.vals[ks]; !ok {
		return
	}
	delete(b.vals, ks)
	i := sort.SearchStrings(b.keys, ks)
	if i < len(b.keys) && b.keys[i] == ks {
		b.keys = append(b.keys[:i], b.keys[i+1:]...)
	}
}

func (b *bucket) get(k []byte) []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return common.CopyBytes(b.vals[string(k)])
}

// snapshot returns an immutable copy of the ordered key list and values,
// used to back a Tx so concurrent writers never invalidate an in-flight
// cursor (multi-version read snapshots, spec.md §6).
func (b *bucket) snapshot() (keys []string, vals map[string][]byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys = make([]string, len(b.keys))
	copy(keys, b.keys)
	vals = make(map[string][]byte, len(b.vals))
	for k, v := range b.vals {
		vals[k] = v
	}
	return keys, vals
}

// DB is a process-local, bucket-sharded, ordered key/value store.
type DB struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

func New() *DB {
	return &DB{buckets: make(map[string]*bucket)}
}

func (db *DB) bucketFor(name string) *bucket {
	db.mu.Lock()
	defer db.mu.Unlock()
	b, ok := db.buckets[name]
	if !ok {
		b = newBucket()
		db.buckets[name] = b
	}
	return b
}

func (db *DB) Close() {}

func (db *DB) View(ctx context.Context, f func(tx kv.Tx) error) error {
	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

func (db *DB) Update(ctx context.Context, f func(tx kv.RwTx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (db *DB) BeginRo(ctx context.Context) (kv.Tx, error) {
	return &tx{db: db, snapshots: make(map[string]*txSnapshot)}, nil
}

func (db *DB) Begin(ctx context.Context) (kv.RwTx, error) {
	return &tx{db: db, snapshots: make(map[string]*txSnapshot)}, nil
}

type txSnapshot struct {
	keys []string
	vals map[string][]byte
}

// tx is both the Tx and RwTx implementation: writes are buffered and
// only become visible to other transactions on Commit, matching an
// ordered store's atomic multi-put commit contract.
type tx struct {
	db        *DB
	snapshots map[string]*txSnapshot
	pending   []pendingOp
	done      bool
}

type pendingOp struct {
	bucket string
	key    []byte
	val    []byte // nil means delete
}

func (t *tx) snapshotFor(bucketName string) *txSnapshot {
	if s, ok := t.snapshots[bucketName]; ok {
		return s
	}
	keys, vals := t.db.bucketFor(bucketName).snapshot()
	s := &txSnapshot{keys: keys, vals: vals}
	t.snapshots[bucketName] = s
	return s
}

func (t *tx) GetOne(bucketName string, key []byte) ([]byte, error) {
	s := t.snapshotFor(bucketName)
	return common.CopyBytes(s.vals[string(key)]), nil
}

func (t *tx) Put(bucketName string, key, value []byte) error {
	val := common.CopyBytes(value)
	if val == nil {
		val = []byte{} // a nil val in pendingOp marks a delete
	}
	t.pending = append(t.pending, pendingOp{bucket: bucketName, key: common.CopyBytes(key), val: val})
	return nil
}

func (t *tx) Delete(bucketName string, key []byte) error {
	t.pending = append(t.pending, pendingOp{bucket: bucketName, key: common.CopyBytes(key), val: nil})
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	for _, op := range t.pending {
		b := t.db.bucketFor(op.bucket)
		if op.val == nil {
			b.delete(op.key)
		} else {
			b.put(op.key, op.val)
		}
	}
	return nil
}

func (t *tx) Rollback() {
	t.done = true
	t.pending = nil
}

func (t *tx) Cursor(bucketName string) kv.Cursor {
	return &cursor{snap: t.snapshotFor(bucketName), pos: -1}
}

func (t *tx) RwCursor(bucketName string) kv.RwCursor {
	return &cursor{tx: t, bucketName: bucketName, snap: t.snapshotFor(bucketName), pos: -1}
}

type cursor struct {
	tx         *tx
	bucketName string
	snap       *txSnapshot
	pos        int
}

func (c *cursor) at(i int) (k, v []byte, err error) {
	if i < 0 || i >= len(c.snap.keys) {
		c.pos = len(c.snap.keys)
		return nil, nil, nil
	}
	c.pos = i
	key := c.snap.keys[i]
	return []byte(key), common.CopyBytes(c.snap.vals[key]), nil
}

func (c *cursor) Seek(seek []byte) ([]byte, []byte, error) {
	i := sort.SearchStrings(c.snap.keys, string(seek))
	return c.at(i)
}

func (c *cursor) SeekExact(seek []byte) ([]byte, error) {
	k, v, err := c.Seek(seek)
	if err != nil {
		return nil, err
	}
	if k == nil || string(k) != string(seek) {
		return nil, nil
	}
	return v, nil
}

func (c *cursor) Next() ([]byte, []byte, error) { return c.at(c.pos + 1) }
func (c *cursor) Prev() ([]byte, []byte, error) { return c.at(c.pos - 1) }
func (c *cursor) Current() ([]byte, []byte, error) { return c.at(c.pos) }
func (c *cursor) Close()                           {}

func (c *cursor) Put(k, v []byte) error {
	return c.tx.Put(c.bucketName, k, v)
}

func (c *cursor) Delete(k []byte) error {
	return c.tx.Delete(c.bucketName, k)
}
