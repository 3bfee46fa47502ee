package facet

import (
	"bytes"
	"encoding/binary"

	"github.com/RoaringBitmap/roaring"
	"github.com/c2h5oh/datasize"
)

// ShardLimit bounds how large a single serialized bitmap chunk is
// allowed to grow before the Balanced Cache splits it across multiple
// shards when writing a spill run. Adapted from
// ethdb/bitmapdb/dbutils.go's AppendMergeByOr/writeBitmapSharded, which
// solves the identical problem for LMDB: a handful of very popular
// facet values (e.g. "in stock") can accumulate bitmaps with millions
// of doc ids, and writing that as one contiguous value defeats
// copy-on-write bucket storage and range-scan locality.
const ShardLimit = 3 * datasize.KB

// shard is one physical chunk of a logical key's bitmap: suffix is the
// chunk's maximum doc id (or ^uint32(0) for the final/catch-all
// shard), matching the teacher's shardKey convention so a downstream
// merger already familiar with that layout can range-scan shards of
// one logical key in order.
type shard struct {
	suffix     uint32
	serialized []byte
}

// splitShards serializes bm into one or more shards, splitting by doc
// id range: a shard is closed once its serialized size reaches
// ShardLimit, so a closed shard can be somewhat larger than it. This is
// writeBitmapSharded from ethdb/bitmapdb/dbutils.go, generalized to
// return the shards instead of writing them through an ethdb.Cursor -
// the Balanced Cache has no cursor, only an append-only run buffer.
func splitShards(bm *roaring.Bitmap) ([]shard, error) {
	if bm.GetCardinality() == 0 {
		return nil, nil
	}

	sz := bm.SerializedSizeInBytes()
	if sz <= int(ShardLimit) {
		buf := make([]byte, sz)
		if err := bm.Write(buf); err != nil {
			return nil, err
		}
		return []shard{{suffix: ^uint32(0), serialized: buf}}, nil
	}

	delta := bm.Clone()
	shardsAmount := uint32(sz / int(ShardLimit))
	if shardsAmount == 0 {
		shardsAmount = 1
	}
	step := (delta.Maximum() - delta.Minimum()) / shardsAmount
	step /= 16
	if step == 0 {
		step = 1
	}

	var out []shard
	cur, tmp := roaring.New(), roaring.New()
	for delta.GetCardinality() > 0 {
		from := uint64(delta.Minimum())
		to := from + uint64(step)
		tmp.Clear()
		tmp.AddRange(from, to)
		tmp.And(delta)
		cur.Or(tmp)
		cur.RunOptimize()
		delta.RemoveRange(from, to)

		if delta.GetCardinality() == 0 {
			break
		}
		if cur.SerializedSizeInBytes() >= int(ShardLimit) {
			buf := make([]byte, cur.SerializedSizeInBytes())
			if err := cur.Write(buf); err != nil {
				return nil, err
			}
			out = append(out, shard{suffix: cur.Maximum(), serialized: buf})
			cur.Clear()
		}
	}

	if cur.SerializedSizeInBytes() > 0 {
		buf := make([]byte, cur.SerializedSizeInBytes())
		if err := cur.Write(buf); err != nil {
			return nil, err
		}
		out = append(out, shard{suffix: ^uint32(0), serialized: buf})
	}

	return out, nil
}

// shardKey appends a shard's 4-byte big-endian suffix to a logical key,
// the same physical-key convention TruncateRange/Get use in
// ethdb/bitmapdb/dbutils.go.
func shardKey(logicalKey []byte, suffix uint32) []byte {
	out := make([]byte, len(logicalKey)+4)
	copy(out, logicalKey)
	binary.BigEndian.PutUint32(out[len(logicalKey):], suffix)
	return out
}

// mergeShards reassembles the shards of one logical key back into a
// single bitmap, the read-side counterpart of splitShards. Equivalent
// to ethdb/bitmapdb/dbutils.go's Get, minus the range-bounded scan
// (callers here already hold exactly the shards for one key).
func mergeShards(shards []shard) (*roaring.Bitmap, error) {
	if len(shards) == 0 {
		return roaring.New(), nil
	}
	bitmaps := make([]*roaring.Bitmap, 0, len(shards))
	for _, s := range shards {
		bm, err := roaring.Read(bytes.NewReader(s.serialized))
		if err != nil {
			return nil, err
		}
		bitmaps = append(bitmaps, bm)
	}
	return roaring.FastOr(bitmaps...), nil
}
