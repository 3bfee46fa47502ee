// Package lmdbkv implements kv.DB on top of github.com/ledgerwatch/lmdb-go,
// the same LMDB binding common/dbutils/bucket.go's BucketConfigItem.DBI
// refers to. It is a real transactional, multi-version-read ordered
// store (spec.md §6); the Parallel Driver (facet.Drive) does not open
// transactions on it or on any other kv.DB.
package lmdbkv

import (
	"context"
	"fmt"

	"github.com/ledgerwatch/lmdb-go/lmdb"
	"github.com/ledgerwatch/turbo-facet/common/dbutils"
	"github.com/ledgerwatch/turbo-facet/kv"
)

// MapSize is the maximum size LMDB will grow its memory-mapped data
// file to; generous because the facet inverted index can be large.
const MapSize = 8 << 30 // 8 GiB

type DB struct {
	env  *lmdb.Env
	dbis map[string]lmdb.DBI
}

func Open(path string) (*DB, error) {
	env, err := lmdb.NewEnv()
	if err != nil {
		return nil, err
	}
	if err := env.SetMaxDBs(len(dbutils.Buckets) + 1); err != nil {
		return nil, err
	}
	if err := env.SetMapSize(MapSize); err != nil {
		return nil, err
	}
	if err := env.Open(path, 0, 0644); err != nil {
		return nil, err
	}

	db := &DB{env: env, dbis: make(map[string]lmdb.DBI, len(dbutils.Buckets))}
	err = env.Update(func(txn *lmdb.Txn) error {
		for _, name := range dbutils.Buckets {
			dbi, err := txn.OpenDBI(name, lmdb.Create)
			if err != nil {
				return fmt.Errorf("open bucket %s: %w", name, err)
			}
			db.dbis[name] = dbi
		}
		return nil
	})
	if err != nil {
		env.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() { db.env.Close() }

func (db *DB) dbi(name string) (lmdb.DBI, error) {
	dbi, ok := db.dbis[name]
	if !ok {
		return 0, fmt.Errorf("unknown bucket %q", name)
	}
	return dbi, nil
}

func (db *DB) View(ctx context.Context, f func(kv.Tx) error) error {
	return db.env.View(func(txn *lmdb.Txn) error {
		txn.RawRead = true
		return f(&tx{db: db, txn: txn})
	})
}

func (db *DB) Update(ctx context.Context, f func(kv.RwTx) error) error {
	return db.env.Update(func(txn *lmdb.Txn) error {
		return f(&tx{db: db, txn: txn, writable: true})
	})
}

// BeginRo and Begin expose managed transactions for callers that need
// a long-lived read snapshot spanning many changes rather than a single
// closure.
func (db *DB) BeginRo(ctx context.Context) (kv.Tx, error) {
	txn, err := db.env.BeginTxn(nil, lmdb.Readonly)
	if err != nil {
		return nil, err
	}
	txn.RawRead = true
	return &tx{db: db, txn: txn}, nil
}

func (db *DB) Begin(ctx context.Context) (kv.RwTx, error) {
	txn, err := db.env.BeginTxn(nil, 0)
	if err != nil {
		return nil, err
	}
	return &tx{db: db, txn: txn, writable: true}, nil
}

type tx struct {
	db       *DB
	txn      *lmdb.Txn
	writable bool
}

func (t *tx) GetOne(bucket string, key []byte) ([]byte, error) {
	dbi, err := t.db.dbi(bucket)
	if err != nil {
		return nil, err
	}
	v, err := t.txn.Get(dbi, key)
	if lmdb.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (t *tx) Put(bucket string, key, value []byte) error {
	dbi, err := t.db.dbi(bucket)
	if err != nil {
		return err
	}
	return t.txn.Put(dbi, key, value, 0)
}

func (t *tx) Delete(bucket string, key []byte) error {
	dbi, err := t.db.dbi(bucket)
	if err != nil {
		return err
	}
	err = t.txn.Del(dbi, key, nil)
	if lmdb.IsNotFound(err) {
		return nil
	}
	return err
}

func (t *tx) Commit() error {
	if !t.writable {
		return nil
	}
	return t.txn.Commit()
}

func (t *tx) Rollback() {
	t.txn.Abort()
}

func (t *tx) Cursor(bucket string) kv.Cursor {
	c, err := t.newCursor(bucket)
	if err != nil {
		return &errCursor{err: err}
	}
	return c
}

func (t *tx) RwCursor(bucket string) kv.RwCursor {
	c, err := t.newCursor(bucket)
	if err != nil {
		return &errCursor{err: err}
	}
	return c
}

func (t *tx) newCursor(bucket string) (*cursor, error) {
	dbi, err := t.db.dbi(bucket)
	if err != nil {
		return nil, err
	}
	c, err := t.txn.OpenCursor(dbi)
	if err != nil {
		return nil, err
	}
	return &cursor{c: c}, nil
}

type cursor struct {
	c *lmdb.Cursor
}

func (c *cursor) Seek(seek []byte) ([]byte, []byte, error) {
	k, v, err := c.c.Get(seek, nil, lmdb.SetRange)
	return normalize(k, v, err)
}

func (c *cursor) SeekExact(seek []byte) ([]byte, error) {
	_, v, err := c.c.Get(seek, nil, lmdb.Set)
	if lmdb.IsNotFound(err) {
		return nil, nil
	}
	return v, err
}

func (c *cursor) Next() ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, lmdb.Next)
	return normalize(k, v, err)
}

func (c *cursor) Prev() ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, lmdb.Prev)
	return normalize(k, v, err)
}

func (c *cursor) Current() ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, lmdb.GetCurrent)
	return normalize(k, v, err)
}

func (c *cursor) Close() { c.c.Close() }

func (c *cursor) Put(k, v []byte) error {
	return c.c.Put(k, v, 0)
}

func (c *cursor) Delete(k []byte) error {
	if _, _, err := c.c.Get(k, nil, lmdb.Set); err != nil {
		if lmdb.IsNotFound(err) {
			return nil
		}
		return err
	}
	return c.c.Del(0)
}

func normalize(k, v []byte, err error) ([]byte, []byte, error) {
	if lmdb.IsNotFound(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return k, v, nil
}

// errCursor reports a setup error (e.g. unknown bucket) lazily, so
// construction never panics deep inside a worker's hot loop.
type errCursor struct{ err error }

func (e *errCursor) Seek([]byte) ([]byte, []byte, error)      { return nil, nil, e.err }
func (e *errCursor) SeekExact([]byte) ([]byte, error)         { return nil, e.err }
func (e *errCursor) Next() ([]byte, []byte, error)            { return nil, nil, e.err }
func (e *errCursor) Prev() ([]byte, []byte, error)            { return nil, nil, e.err }
func (e *errCursor) Current() ([]byte, []byte, error)         { return nil, nil, e.err }
func (e *errCursor) Close()                                   {}
func (e *errCursor) Put(k, v []byte) error                    { return e.err }
func (e *errCursor) Delete(k []byte) error                    { return e.err }
