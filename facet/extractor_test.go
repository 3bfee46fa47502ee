package facet

import (
	"testing"

	mapset "github.com/deckarep/golang-set"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(t *testing.T, attrs mapset.Set) (*Extractor, *Cache, *recordingSender) {
	cache := NewCache(1, 1<<30, t.TempDir(), "test")
	sender := &recordingSender{}
	return &Extractor{
		AttrsToExtract: attrs,
		FieldIDMap:     newStubFieldIdMap(),
		Cache:          cache,
		Sender:         sender,
	}, cache, sender
}

func TestExtractInsertionWritesExistsAndTypedKey(t *testing.T) {
	attrs := mapset.NewSetFromSlice([]interface{}{"color"})
	x, cache, sender := newTestExtractor(t, attrs)

	change := NewInsertion(1, "doc-1", Document{"color": "Red"})
	require.NoError(t, x.Extract(change))

	assert.Len(t, sender.writesStr, 1)
	// Exists + the typed String key = 2 distinct FacetKeys recorded.
	assert.Len(t, cache.LiveBucket(0), 2)
}

func TestExtractDeletionMarksDel(t *testing.T) {
	attrs := mapset.NewSetFromSlice([]interface{}{"color"})
	x, _, sender := newTestExtractor(t, attrs)

	change := NewDeletion(1, "doc-1", Document{"color": "Red"})
	require.NoError(t, x.Extract(change))

	assert.Len(t, sender.deletesStr, 1)
	assert.Empty(t, sender.writesStr)
}

func TestExtractNoOpUpdateProducesNoWrites(t *testing.T) {
	attrs := mapset.NewSetFromSlice([]interface{}{"color", "price"})
	x, _, sender := newTestExtractor(t, attrs)

	old := Document{"color": "red", "price": float64(10)}
	merged := Document{"color": "red", "price": float64(10)}
	change := NewUpdate(1, "doc-1", old, merged)
	require.NoError(t, x.Extract(change))

	assert.Empty(t, sender.writesStr)
	assert.Empty(t, sender.deletesStr)
	assert.Empty(t, sender.writesF64)
	assert.Empty(t, sender.deletesF64)
}

// TestExtractNoOpUpdateStillWritesMatchingDelAddToCache pins spec.md §8
// scenario 3 / testable property 6: even though the reconciler cancels
// the sender-facing pair for an unchanged value, the Balanced Cache
// must still receive both the Del and the Add contribution for the
// typed Number key, since the cache is written directly during the
// walk rather than through the reconciler's sender-only Flush.
func TestExtractNoOpUpdateStillWritesMatchingDelAddToCache(t *testing.T) {
	attrs := mapset.NewSetFromSlice([]interface{}{"price"})
	x, cache, sender := newTestExtractor(t, attrs)

	old := Document{"price": float64(10)}
	merged := Document{"price": float64(10)}
	change := NewUpdate(5, "doc-5", old, merged)
	require.NoError(t, x.Extract(change))

	assert.Empty(t, sender.writesF64)
	assert.Empty(t, sender.deletesF64)

	ordered := make([]byte, OrderedF64Size)
	require.NoError(t, EncodeOrderedF64(10, ordered))
	numberKey := string(encodeNumberKeyFromOrdered(0, ordered))

	var found *KeyEntry
	for _, e := range cache.LiveBucket(0) {
		e := e
		if e.Key == numberKey {
			found = &e
		}
	}
	require.NotNil(t, found, "Number key for the unchanged field must still be in the cache")
	assert.True(t, found.Del.Contains(uint32(change.Docid())), "del contribution must survive for docid 5")
	assert.True(t, found.Add.Contains(uint32(change.Docid())), "add contribution must survive for docid 5")
}

func TestExtractUpdateChangingValueDeletesOldAddsNew(t *testing.T) {
	attrs := mapset.NewSetFromSlice([]interface{}{"color"})
	x, _, sender := newTestExtractor(t, attrs)

	old := Document{"color": "red"}
	merged := Document{"color": "blue"}
	change := NewUpdate(1, "doc-1", old, merged)
	require.NoError(t, x.Extract(change))

	assert.Len(t, sender.writesStr, 1)
	assert.Len(t, sender.deletesStr, 1)
}

func TestExtractSkipsNonFiniteNumberButKeepsExists(t *testing.T) {
	attrs := mapset.NewSetFromSlice([]interface{}{"score"})
	x, cache, sender := newTestExtractor(t, attrs)

	var nan float64
	nan = nan / nan
	change := NewInsertion(1, "doc-1", Document{"score": nan})
	require.NoError(t, x.Extract(change))

	assert.Empty(t, sender.writesF64)
	total := uint64(0)
	for _, e := range cache.LiveBucket(0) {
		total += e.Add.GetCardinality()
	}
	assert.Equal(t, uint64(1), total, "only the Exists key should be recorded")
}

func TestExtractNullAndEmptyKinds(t *testing.T) {
	attrs := mapset.NewSetFromSlice([]interface{}{"a", "b"})
	x, cache, _ := newTestExtractor(t, attrs)

	change := NewInsertion(1, "doc-1", Document{"a": nil, "b": []interface{}{}})
	require.NoError(t, x.Extract(change))

	// Exists x2, Null x1, Empty x1 = 4 distinct keys inserted.
	assert.Len(t, cache.LiveBucket(0), 4)
}
