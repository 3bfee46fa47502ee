package facet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/c2h5oh/datasize"
	mmap "github.com/edsrzf/mmap-go"
	"github.com/golang/snappy"

	"github.com/ledgerwatch/turbo-facet/common"
	"github.com/ledgerwatch/turbo-facet/log"
	"github.com/ledgerwatch/turbo-facet/metrics"
)

// cacheEntry holds the del/add doc-id bitsets recorded for one key
// within a bucket (spec.md §3 "BalancedCache").
type cacheEntry struct {
	del *roaring.Bitmap
	add *roaring.Bitmap
}

type cacheBucket struct {
	entries map[string]*cacheEntry
}

// run is one sealed spill: a snappy-compressed, memory-mapped byte
// region on a temporary store (spec.md §4.B "balanced spill"). Decoding
// is lazy - mmap.Map only maps the compressed bytes, and the payload is
// decompressed on first read - so a worker's resident memory actually
// drops right after a spill instead of just moving the same bytes
// around.
type run struct {
	file    *os.File
	mapped  mmap.MMap
	offsets []int
	sizes   []int
	raw     []byte
}

func (r *run) decoded() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}
	raw, err := snappy.Decode(nil, r.mapped)
	if err != nil {
		return nil, fmt.Errorf("facet: decode spill run: %w", err)
	}
	r.raw = raw
	return raw, nil
}

func (r *run) close() error {
	var firstErr error
	if err := r.mapped.Unmap(); err != nil {
		firstErr = err
	}
	name := r.file.Name()
	if err := r.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := os.Remove(name); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// KeyEntry is one (key, del-bitmap, add-bitmap) triple as read back
// from a Cache's live portion or a sealed run, for the downstream
// merger to consume (spec.md §4.B "Result").
type KeyEntry struct {
	Key string
	Del *roaring.Bitmap
	Add *roaring.Bitmap
}

// Cache is the Balanced Cache (spec.md §2 component B, §4.B): a
// per-worker, bucketed, memory-bounded accumulator of (key, docid,
// del/add) triples, spilling sorted runs to a temporary store when its
// memory budget is exceeded, but never losing data. One Cache belongs
// to exactly one worker; there is no concurrent access from multiple
// goroutines (spec.md §5 "Shared resources").
type Cache struct {
	mu        sync.Mutex
	worker    string
	buckets   []cacheBucket
	memUsed   int64
	maxMemory int64
	tmpDir    string
	runs      []*run
	sealed    bool
}

// NewCache constructs a Fresh cache with the given bucket count (equal
// to worker-thread count, spec.md §4.B "Buckets") and memory budget.
func NewCache(numBuckets int, maxMemory datasize.ByteSize, tmpDir, worker string) *Cache {
	c := &Cache{
		worker:    worker,
		buckets:   make([]cacheBucket, numBuckets),
		maxMemory: int64(maxMemory.Bytes()),
		tmpDir:    tmpDir,
	}
	for i := range c.buckets {
		c.buckets[i].entries = make(map[string]*cacheEntry)
	}
	return c
}

func (c *Cache) NumBuckets() int { return len(c.buckets) }

// bucketIndex hashes key into one of N buckets via FNV-1a - cheap,
// allocation-free, and stable across runs, which matters for
// spec.md §4.F's "partitioning must be deterministic" requirement one
// level up at the driver.
func bucketIndex(key []byte, numBuckets int) int {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for _, b := range key {
		h ^= uint64(b)
		h *= prime64
	}
	return int(h % uint64(numBuckets))
}

// InsertAdd records that docid is added for key.
func (c *Cache) InsertAdd(key []byte, docid DocumentId) error { return c.insert(key, docid, true) }

// InsertDel records that docid is deleted for key.
func (c *Cache) InsertDel(key []byte, docid DocumentId) error { return c.insert(key, docid, false) }

func (c *Cache) insert(key []byte, docid DocumentId, isAdd bool) error {
	if c.sealed {
		return fmt.Errorf("facet: cache for worker %s is sealed", c.worker)
	}
	idx := bucketIndex(key, len(c.buckets))
	b := &c.buckets[idx]
	ks := string(key)
	e, ok := b.entries[ks]
	if !ok {
		e = &cacheEntry{del: roaring.New(), add: roaring.New()}
		b.entries[ks] = e
		c.memUsed += int64(len(ks)) + 64 // approx per-entry bookkeeping overhead
	}
	bm := e.del
	if isAdd {
		bm = e.add
	}
	before := bm.SerializedSizeInBytes()
	bm.Add(uint32(docid))
	c.memUsed += int64(bm.SerializedSizeInBytes() - before)
	metrics.CacheMemoryUsed.WithLabelValues(c.worker).Set(float64(c.memUsed))

	if c.memUsed >= c.maxMemory {
		return c.spill()
	}
	return nil
}

// spill performs the "balanced spill" (spec.md §4.B): sorts each
// bucket's live entries by key, serializes them (splitting any single
// key's bitmap into shards past ShardLimit, see shard.go), compresses
// the result, and writes it to a temporary file - then resets the
// in-memory buckets. The data invariant this preserves: the
// concatenation of all runs plus the live portion equals, as a
// multiset, everything ever inserted.
func (c *Cache) spill() error {
	var payload bytes.Buffer
	offsets := make([]int, len(c.buckets))
	sizes := make([]int, len(c.buckets))

	for i := range c.buckets {
		start := payload.Len()

		keys := make([]string, 0, len(c.buckets[i].entries))
		for k := range c.buckets[i].entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		if err := binary.Write(&payload, binary.BigEndian, uint32(len(keys))); err != nil {
			return err
		}
		for _, k := range keys {
			if err := writeCacheEntry(&payload, k, c.buckets[i].entries[k]); err != nil {
				return err
			}
		}

		offsets[i] = start
		sizes[i] = payload.Len() - start
		c.buckets[i].entries = make(map[string]*cacheEntry)
	}

	compressed := snappy.Encode(nil, payload.Bytes())
	f, err := os.CreateTemp(c.tmpDir, fmt.Sprintf("facet-cache-%s-*.run", c.worker))
	if err != nil {
		return fmt.Errorf("facet: spill: %w", err)
	}
	if _, err := f.Write(compressed); err != nil {
		f.Close()
		return fmt.Errorf("facet: spill write: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("facet: spill sync: %w", err)
	}

	mapped, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return fmt.Errorf("facet: spill mmap: %w", err)
	}

	c.runs = append(c.runs, &run{file: f, mapped: mapped, offsets: offsets, sizes: sizes})

	metrics.CacheSpills.WithLabelValues(c.worker).Inc()
	metrics.CacheBytesSpilled.WithLabelValues(c.worker).Add(float64(len(compressed)))
	log.Debug("facet cache spilled", "worker", c.worker, "size", common.StorageSize(len(compressed)), "runs", len(c.runs))

	c.memUsed = 0
	metrics.CacheMemoryUsed.WithLabelValues(c.worker).Set(0)
	return nil
}

func writeCacheEntry(w *bytes.Buffer, key string, e *cacheEntry) error {
	delShards, err := splitShards(e.del)
	if err != nil {
		return err
	}
	addShards, err := splitShards(e.add)
	if err != nil {
		return err
	}

	if err := binary.Write(w, binary.BigEndian, uint32(len(key))); err != nil {
		return err
	}
	w.WriteString(key)
	if err := writeShards(w, delShards); err != nil {
		return err
	}
	return writeShards(w, addShards)
}

func writeShards(w *bytes.Buffer, shards []shard) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(shards))); err != nil {
		return err
	}
	for _, s := range shards {
		if err := binary.Write(w, binary.BigEndian, s.suffix); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint32(len(s.serialized))); err != nil {
			return err
		}
		if _, err := w.Write(s.serialized); err != nil {
			return err
		}
	}
	return nil
}

func readShards(r *bytes.Reader) ([]shard, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	out := make([]shard, 0, n)
	for i := uint32(0); i < n; i++ {
		var suffix, l uint32
		if err := binary.Read(r, binary.BigEndian, &suffix); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.BigEndian, &l); err != nil {
			return nil, err
		}
		buf := make([]byte, l)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		out = append(out, shard{suffix: suffix, serialized: buf})
	}
	return out, nil
}

func readBucketSegment(seg []byte) ([]KeyEntry, error) {
	r := bytes.NewReader(seg)
	var numKeys uint32
	if err := binary.Read(r, binary.BigEndian, &numKeys); err != nil {
		return nil, err
	}
	out := make([]KeyEntry, 0, numKeys)
	for i := uint32(0); i < numKeys; i++ {
		var klen uint32
		if err := binary.Read(r, binary.BigEndian, &klen); err != nil {
			return nil, err
		}
		kb := make([]byte, klen)
		if _, err := io.ReadFull(r, kb); err != nil {
			return nil, err
		}
		delShards, err := readShards(r)
		if err != nil {
			return nil, err
		}
		addShards, err := readShards(r)
		if err != nil {
			return nil, err
		}
		del, err := mergeShards(delShards)
		if err != nil {
			return nil, err
		}
		add, err := mergeShards(addShards)
		if err != nil {
			return nil, err
		}
		out = append(out, KeyEntry{Key: string(kb), Del: del, Add: add})
	}
	return out, nil
}

// RunCount returns the number of sealed spill runs.
func (c *Cache) RunCount() int { return len(c.runs) }

// LiveBucket returns the still-in-memory (key, del, add) triples for
// one bucket, sorted by key.
func (c *Cache) LiveBucket(bucketIdx int) []KeyEntry {
	b := &c.buckets[bucketIdx]
	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]KeyEntry, 0, len(keys))
	for _, k := range keys {
		e := b.entries[k]
		out = append(out, KeyEntry{Key: k, Del: e.del, Add: e.add})
	}
	return out
}

// RunBucket returns one sealed run's (key, del, add) triples for one
// bucket, sorted by key (each run was sorted at spill time).
func (c *Cache) RunBucket(runIdx, bucketIdx int) ([]KeyEntry, error) {
	r := c.runs[runIdx]
	raw, err := r.decoded()
	if err != nil {
		return nil, err
	}
	seg := raw[r.offsets[bucketIdx] : r.offsets[bucketIdx]+r.sizes[bucketIdx]]
	return readBucketSegment(seg)
}

// Seal transitions the cache to Sealed (spec.md §3 "Lifecycles"): no
// further inserts are accepted. Sealed caches are what the Parallel
// Driver hands back to the caller.
func (c *Cache) Seal() *Cache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
	return c
}

// Close releases every spill run's temporary file. Safe to call once
// the downstream merger has consumed a sealed cache.
func (c *Cache) Close() error {
	var firstErr error
	for _, r := range c.runs {
		if err := r.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
