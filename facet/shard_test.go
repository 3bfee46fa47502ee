package facet

import (
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShardsEmptyBitmap(t *testing.T) {
	shards, err := splitShards(roaring.New())
	require.NoError(t, err)
	assert.Empty(t, shards)
}

func TestSplitAndMergeShardsRoundTripSmall(t *testing.T) {
	bm := roaring.New()
	bm.AddMany([]uint32{1, 2, 3, 1000, 70000})

	shards, err := splitShards(bm)
	require.NoError(t, err)
	require.Len(t, shards, 1, "small bitmap should fit in a single shard")

	merged, err := mergeShards(shards)
	require.NoError(t, err)
	assert.True(t, bm.Equals(merged))
}

func TestSplitAndMergeShardsRoundTripLarge(t *testing.T) {
	bm := roaring.New()
	for i := uint32(0); i < 200000; i += 3 {
		bm.Add(i)
	}

	shards, err := splitShards(bm)
	require.NoError(t, err)
	require.Greater(t, len(shards), 1, "dense large bitmap should split across shards")

	merged, err := mergeShards(shards)
	require.NoError(t, err)
	assert.True(t, bm.Equals(merged))
}

func TestShardKeyAppendsBigEndianSuffix(t *testing.T) {
	k := shardKey([]byte("logical"), 0x01020304)
	assert.Equal(t, []byte("logical\x01\x02\x03\x04"), k)
}

func TestMergeShardsEmpty(t *testing.T) {
	bm, err := mergeShards(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), bm.GetCardinality())
}
