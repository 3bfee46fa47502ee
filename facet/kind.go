// Package facet implements the faceted-value extraction core: it turns
// document changes into ordered binary index keys and per-document
// facet records (spec.md §2-§4). The package name deliberately follows
// this tree's flat, domain-named package layout (common/dbutils,
// kv/memdb) rather than nesting under internal/.
package facet

import "fmt"

// Kind is the one-byte tag that begins every FacetKey (spec.md §3, §6).
// Values are part of the wire contract: downstream merge/lookup code
// depends on them bit-for-bit, so they must never be renumbered.
type Kind byte

const (
	KindString Kind = 's'
	KindNumber Kind = 'n'
	KindNull   Kind = 0x01
	KindEmpty  Kind = 0x02
	KindExists Kind = 0x03
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindNumber:
		return "Number"
	case KindNull:
		return "Null"
	case KindEmpty:
		return "Empty"
	case KindExists:
		return "Exists"
	default:
		return fmt.Sprintf("Kind(%#x)", byte(k))
	}
}

// DelAdd distinguishes a deletion contribution from an addition
// contribution for the same facet value (spec.md §3).
type DelAdd uint8

const (
	Deletion DelAdd = iota
	Addition
)

func (d DelAdd) String() string {
	if d == Deletion {
		return "Deletion"
	}
	return "Addition"
}

// Level is always 0 at extraction time; the byte is reserved so
// higher-level pyramidal indices can share the key prefix (spec.md §4.A).
const Level0 byte = 0

// MaxFacetValueLength bounds a truncated string payload so FacetKeys
// never exceed the storage engine's maximum key size (spec.md §4.A).
// 500 keeps a String key (4-byte kind tag + field id + level prefix,
// then the payload) under LMDB's default maximum key size of 511 bytes.
const MaxFacetValueLength = 500

// FieldId is an opaque field identifier, big-endian when serialized
// (spec.md §3).
type FieldId uint16

// DocumentId identifies one document, big-endian when serialized.
type DocumentId uint32
