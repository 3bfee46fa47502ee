package facet

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSender is a Sender fake shared across tests, including
// driver tests that call it from multiple worker goroutines - the mutex
// matters there, not in the single-goroutine reconciler tests.
type recordingSender struct {
	mu         sync.Mutex
	writesStr  [][]byte
	deletesStr [][]byte
	writesF64  [][]byte
	deletesF64 [][]byte
}

func (s *recordingSender) WriteFacetString(key, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writesStr = append(s.writesStr, key)
	return nil
}
func (s *recordingSender) DeleteFacetString(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletesStr = append(s.deletesStr, key)
	return nil
}
func (s *recordingSender) WriteFacetF64(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writesF64 = append(s.writesF64, key)
	return nil
}
func (s *recordingSender) DeleteFacetF64(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletesF64 = append(s.deletesF64, key)
	return nil
}

func TestDelAddFacetValueCancelsOpposingPair(t *testing.T) {
	dv := NewDelAddFacetValue()
	dv.InsertDel(1, []byte("red"), KindString)
	dv.InsertAdd(1, []byte("red"), KindString)

	sender := &recordingSender{}
	require.NoError(t, dv.Flush(10, sender))

	assert.Empty(t, sender.writesStr)
	assert.Empty(t, sender.deletesStr)
}

func TestDelAddFacetValueSurvivingAdditionWrites(t *testing.T) {
	dv := NewDelAddFacetValue()
	dv.InsertAdd(1, []byte("red"), KindString)

	sender := &recordingSender{}
	require.NoError(t, dv.Flush(10, sender))

	assert.Len(t, sender.writesStr, 1)
	assert.Empty(t, sender.deletesStr)
}

func TestDelAddFacetValueSurvivingDeletionDeletes(t *testing.T) {
	dv := NewDelAddFacetValue()
	dv.InsertDel(1, []byte("red"), KindString)

	sender := &recordingSender{}
	require.NoError(t, dv.Flush(10, sender))

	assert.Empty(t, sender.writesStr)
	assert.Len(t, sender.deletesStr, 1)
}

func TestDelAddFacetValueIsIdempotentUnderRepeatedAdd(t *testing.T) {
	dv := NewDelAddFacetValue()
	dv.InsertAdd(1, []byte("red"), KindString)
	dv.InsertAdd(1, []byte("red"), KindString)

	sender := &recordingSender{}
	require.NoError(t, dv.Flush(10, sender))

	assert.Len(t, sender.writesStr, 1)
}

func TestDelAddFacetValueNumberCancellation(t *testing.T) {
	ordered := make([]byte, OrderedF64Size)
	require.NoError(t, EncodeOrderedF64(3.5, ordered))

	dv := NewDelAddFacetValue()
	dv.InsertAdd(2, ordered, KindNumber)
	dv.InsertDel(2, ordered, KindNumber)

	sender := &recordingSender{}
	require.NoError(t, dv.Flush(10, sender))

	assert.Empty(t, sender.writesF64)
	assert.Empty(t, sender.deletesF64)
}
