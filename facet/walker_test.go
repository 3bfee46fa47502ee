package facet

import (
	"testing"

	mapset "github.com/deckarep/golang-set"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFieldIdMap struct {
	ids map[string]FieldId
}

func newStubFieldIdMap() *stubFieldIdMap {
	return &stubFieldIdMap{ids: make(map[string]FieldId)}
}

func (m *stubFieldIdMap) IdOrCreate(name string) (FieldId, error) {
	if id, ok := m.ids[name]; ok {
		return id, nil
	}
	id := FieldId(len(m.ids))
	m.ids[name] = id
	return id, nil
}

func TestWalkDocumentFacetsEmitsTopLevelScalar(t *testing.T) {
	attrs := mapset.NewSetFromSlice([]interface{}{"color"})
	doc := Document{"color": "red", "ignored": "blue"}
	fm := newStubFieldIdMap()

	var got []interface{}
	err := WalkDocumentFacets(attrs, doc, fm, func(fid FieldId, value interface{}) error {
		got = append(got, value)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []interface{}{"red"}, got)
}

func TestWalkDocumentFacetsExpandsNonEmptyArray(t *testing.T) {
	attrs := mapset.NewSetFromSlice([]interface{}{"tags"})
	doc := Document{"tags": []interface{}{"a", "b", "c"}}
	fm := newStubFieldIdMap()

	var got []interface{}
	err := WalkDocumentFacets(attrs, doc, fm, func(fid FieldId, value interface{}) error {
		got = append(got, value)
		return nil
	})

	require.NoError(t, err)
	assert.ElementsMatch(t, []interface{}{"a", "b", "c"}, got)
}

func TestWalkDocumentFacetsEmitsEmptyArrayOnce(t *testing.T) {
	attrs := mapset.NewSetFromSlice([]interface{}{"tags"})
	doc := Document{"tags": []interface{}{}}
	fm := newStubFieldIdMap()

	calls := 0
	err := WalkDocumentFacets(attrs, doc, fm, func(fid FieldId, value interface{}) error {
		calls++
		assert.Equal(t, []interface{}{}, value)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWalkDocumentFacetsRecursesIntoNestedObject(t *testing.T) {
	attrs := mapset.NewSetFromSlice([]interface{}{"author.name"})
	doc := Document{"author": Document{"name": "Ada", "age": float64(30)}}
	fm := newStubFieldIdMap()

	var got []interface{}
	err := WalkDocumentFacets(attrs, doc, fm, func(fid FieldId, value interface{}) error {
		got = append(got, value)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []interface{}{"Ada"}, got)
}

func TestWalkDocumentFacetsSkipsUnrelatedNestedObjects(t *testing.T) {
	attrs := mapset.NewSetFromSlice([]interface{}{"color"})
	doc := Document{"nested": Document{"color": "red"}}
	fm := newStubFieldIdMap()

	calls := 0
	err := WalkDocumentFacets(attrs, doc, fm, func(fid FieldId, value interface{}) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 0, calls, "color nested under an unextracted prefix must not be emitted")
}
