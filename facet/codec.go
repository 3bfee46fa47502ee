package facet

import (
	"encoding/binary"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/VictoriaMetrics/fastcache"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var foldCaser = cases.Fold()

// Normalize lowercases, case-folds, strips combining diacritical marks
// and collapses punctuation/whitespace runs to a single space, so
// "Café", "CAFE" and "cafe" resolve to the same facet value. This is
// the external "normalizer" spec.md §4.A treats as a pure function of
// the input string.
func Normalize(s string) string {
	folded := foldCaser.String(s)
	decomposed := norm.NFKD.String(folded)

	var b strings.Builder
	b.Grow(len(decomposed))
	lastWasSpace := true // trims leading separators for free
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			if !lastWasSpace {
				b.WriteByte(' ')
				lastWasSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastWasSpace = false
	}
	return strings.TrimRight(b.String(), " ")
}

// Truncate returns the longest UTF-8-safe prefix of s no longer than
// MaxFacetValueLength bytes (spec.md §4.A, testable property 3 in §8).
// It never splits a multi-byte code point.
func Truncate(s string) string {
	if MaxFacetValueLength <= 0 || len(s) == 0 {
		return ""
	}
	if len(s) <= MaxFacetValueLength {
		return s
	}
	idx := MaxFacetValueLength
	for idx > 0 && !utf8.RuneStart(s[idx]) {
		idx--
	}
	return s[:idx]
}

// normalizeCache memoizes normalize+truncate, a pure function, across
// the many repeated facet values a document batch typically contains
// (e.g. the same "In Stock" tag on thousands of documents). Losing an
// entry only costs a recompute, never correctness, so a bounded,
// eviction-based cache is safe here even though it would not be for
// the Balanced Cache itself (spec.md §4.B requires "never loses data").
var normalizeCache = fastcache.New(32 * 1024 * 1024)

// NormalizeTruncate runs Normalize then Truncate and returns the UTF-8
// bytes ready to use as a FacetKey payload or sender value_suffix.
func NormalizeTruncate(s string) []byte {
	key := []byte(s)
	if cached, ok := normalizeCache.HasGet(nil, key); ok {
		return cached
	}
	out := []byte(Truncate(Normalize(s)))
	normalizeCache.Set(key, out)
	return out
}

func putFieldId(dst []byte, fid FieldId) {
	binary.BigEndian.PutUint16(dst, uint16(fid))
}

// EncodeExists builds the Exists key: kind_tag || field_id_be(2).
// Written for every emitted (field, value) regardless of value kind
// (spec.md §4.E).
func EncodeExists(fid FieldId) []byte {
	buf := make([]byte, 3)
	buf[0] = byte(KindExists)
	putFieldId(buf[1:3], fid)
	return buf
}

// EncodeNull builds the Null key: kind_tag || field_id_be(2).
func EncodeNull(fid FieldId) []byte {
	buf := make([]byte, 3)
	buf[0] = byte(KindNull)
	putFieldId(buf[1:3], fid)
	return buf
}

// EncodeEmpty builds the Empty key: kind_tag || field_id_be(2). Used
// for `[]` and `{}` (spec.md §4.A).
func EncodeEmpty(fid FieldId) []byte {
	buf := make([]byte, 3)
	buf[0] = byte(KindEmpty)
	putFieldId(buf[1:3], fid)
	return buf
}

// EncodeNumber builds the Number key: kind_tag || field_id_be(2) ||
// level(1)=0 || ordered_f64(16). Returns ok=false and no error if f is
// non-finite: the caller still writes Exists but skips the typed key
// (spec.md §4.A, §7 "Codec error").
func EncodeNumber(fid FieldId, f float64) (key []byte, ok bool) {
	buf := make([]byte, 4+OrderedF64Size)
	buf[0] = byte(KindNumber)
	putFieldId(buf[1:3], fid)
	buf[3] = Level0
	if err := EncodeOrderedF64(f, buf[4:]); err != nil {
		return nil, false
	}
	return buf, true
}

// EncodeString builds the String key: kind_tag || field_id_be(2) ||
// level(1)=0 || truncate(normalize(s)).
func EncodeString(fid FieldId, s string) []byte {
	payload := NormalizeTruncate(s)
	buf := make([]byte, 4, 4+len(payload))
	buf[0] = byte(KindString)
	putFieldId(buf[1:3], fid)
	buf[3] = Level0
	buf = append(buf, payload...)
	return buf
}
