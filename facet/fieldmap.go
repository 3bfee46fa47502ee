package facet

import (
	"encoding/binary"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ledgerwatch/turbo-facet/common/dbutils"
	"github.com/ledgerwatch/turbo-facet/kv"
)

// SharedFieldIdMap is the reference FieldIdMap (spec.md §9 "Sharing the
// field-id map"): reads vastly outnumber allocations once a batch gets
// going, so a hit resolves from an LRU without ever touching the
// mutex, a miss falls back to a read-locked map lookup, and only a
// brand new attribute name takes the write lock and persists an
// allocation to storage.
type SharedFieldIdMap struct {
	mu     sync.RWMutex
	byName map[string]FieldId
	next   FieldId
	cache  *lru.Cache // name -> FieldId
	tx     kv.RwTx    // nil for a purely in-memory map (tests, dry runs)
	bucket string
}

// NewSharedFieldIdMap builds a map backed by tx's FieldsIdsMapBucket,
// pre-loading any ids a previous run already allocated so identical
// attribute names keep the same FieldId across extraction passes
// (spec.md §3 "FieldId is stable for the lifetime of the index").
// Pass a nil tx for an ephemeral, process-local map.
func NewSharedFieldIdMap(tx kv.RwTx) (*SharedFieldIdMap, error) {
	cache, err := lru.New(4096)
	if err != nil {
		return nil, fmt.Errorf("facet: field id map cache: %w", err)
	}
	m := &SharedFieldIdMap{
		byName: make(map[string]FieldId),
		cache:  cache,
		tx:     tx,
		bucket: dbutils.FieldsIdsMapBucket,
	}
	if tx != nil {
		if err := m.loadFromStorage(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *SharedFieldIdMap) loadFromStorage() error {
	c := m.tx.Cursor(m.bucket)
	defer c.Close()
	for k, v, err := c.Seek(nil); k != nil; k, v, err = c.Next() {
		if err != nil {
			return fmt.Errorf("facet: load field id map: %w", err)
		}
		fid := FieldId(binary.BigEndian.Uint16(v))
		m.byName[string(k)] = fid
		if fid >= m.next {
			m.next = fid + 1
		}
	}
	return nil
}

// IdOrCreate implements FieldIdMap.
func (m *SharedFieldIdMap) IdOrCreate(name string) (FieldId, error) {
	if v, ok := m.cache.Get(name); ok {
		return v.(FieldId), nil
	}

	m.mu.RLock()
	fid, ok := m.byName[name]
	m.mu.RUnlock()
	if ok {
		m.cache.Add(name, fid)
		return fid, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another worker may have allocated name while this one waited for
	// the write lock.
	if fid, ok := m.byName[name]; ok {
		m.cache.Add(name, fid)
		return fid, nil
	}

	fid = m.next
	m.next++
	m.byName[name] = fid

	if m.tx != nil {
		val := make([]byte, 2)
		binary.BigEndian.PutUint16(val, uint16(fid))
		if err := m.tx.Put(m.bucket, []byte(name), val); err != nil {
			return 0, fmt.Errorf("facet: allocate field id for %q: %w", name, err)
		}
	}

	m.cache.Add(name, fid)
	return fid, nil
}

// Len returns the number of distinct fields allocated so far.
func (m *SharedFieldIdMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byName)
}
