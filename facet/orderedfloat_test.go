package facet

import (
	"bytes"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedF64PreservesNumericOrder(t *testing.T) {
	values := []float64{-1e300, -100.5, -1, 0, 1, 100.5, 1e300}
	encoded := make([][]byte, len(values))
	for i, v := range values {
		buf := make([]byte, OrderedF64Size)
		require.NoError(t, EncodeOrderedF64(v, buf))
		encoded[i] = buf
	}

	sorted := make([][]byte, len(encoded))
	copy(sorted, encoded)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })

	assert.Equal(t, encoded, sorted, "byte order of encoded values must match numeric order")
}

func TestOrderedF64RoundTrips(t *testing.T) {
	for _, v := range []float64{0, -0.0, 1, -1, math.MaxFloat64, -math.MaxFloat64, 3.14159} {
		buf := make([]byte, OrderedF64Size)
		require.NoError(t, EncodeOrderedF64(v, buf))
		got, err := DecodeOrderedF64(buf)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestOrderedF64RejectsNonFinite(t *testing.T) {
	buf := make([]byte, OrderedF64Size)
	assert.Error(t, EncodeOrderedF64(math.NaN(), buf))
	assert.Error(t, EncodeOrderedF64(math.Inf(1), buf))
	assert.Error(t, EncodeOrderedF64(math.Inf(-1), buf))
}

func TestAppendOrderedF64(t *testing.T) {
	out, err := AppendOrderedF64(42.0)
	require.NoError(t, err)
	assert.Len(t, out, OrderedF64Size)

	got, err := DecodeOrderedF64(out)
	require.NoError(t, err)
	assert.Equal(t, 42.0, got)
}
