package facet

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFoldsCaseAndDiacritics(t *testing.T) {
	assert.Equal(t, Normalize("Café"), Normalize("CAFE"))
	assert.Equal(t, "cafe", Normalize("Café"))
}

func TestNormalizeCollapsesPunctuationAndWhitespace(t *testing.T) {
	assert.Equal(t, "in stock", Normalize("  In-Stock!! "))
}

func TestTruncateNeverSplitsARune(t *testing.T) {
	s := strings.Repeat("é", MaxFacetValueLength) // every rune is 2 bytes
	out := Truncate(s)
	require.True(t, utf8.ValidString(out))
	assert.LessOrEqual(t, len(out), MaxFacetValueLength)
}

func TestTruncateIsNoopUnderLimit(t *testing.T) {
	assert.Equal(t, "short", Truncate("short"))
}

func TestNormalizeTruncateMemoizes(t *testing.T) {
	a := NormalizeTruncate("Repeated Value")
	b := NormalizeTruncate("Repeated Value")
	assert.Equal(t, a, b)
}

func TestEncodeExistsNullEmptyAreKindTagPlusField(t *testing.T) {
	fid := FieldId(7)
	assert.Equal(t, []byte{byte(KindExists), 0, 7}, EncodeExists(fid))
	assert.Equal(t, []byte{byte(KindNull), 0, 7}, EncodeNull(fid))
	assert.Equal(t, []byte{byte(KindEmpty), 0, 7}, EncodeEmpty(fid))
}

func TestEncodeNumberRejectsNonFinite(t *testing.T) {
	_, ok := EncodeNumber(1, nan())
	assert.False(t, ok)
}

func TestEncodeStringAppliesNormalizeTruncate(t *testing.T) {
	key := EncodeString(3, "HELLO")
	assert.Equal(t, byte(KindString), key[0])
	assert.Equal(t, Level0, key[3])
	assert.Equal(t, "hello", string(key[4:]))
}

func nan() float64 {
	var zero float64
	return zero / zero
}
