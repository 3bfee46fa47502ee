package facet

import (
	"strings"

	mapset "github.com/deckarep/golang-set"
)

// Document is one already-parsed JSON-like document: maps decode to
// map[string]interface{}, arrays to []interface{}, numbers to float64,
// and scalars to string/bool/nil, matching encoding/json's default
// decode shapes. The walker never parses raw bytes (spec.md §1
// Non-goals); it only traverses values handed to it.
type Document = map[string]interface{}

// FieldIdMap resolves an attribute path to a FieldId, allocating a new
// one on first use. It is an external collaborator (spec.md §1): the
// shared, writer-rare structure spec.md §9 describes.
type FieldIdMap interface {
	IdOrCreate(name string) (FieldId, error)
}

// EmitFunc receives one (field, value) pair. value is handed through
// unchanged - Null, a string, a float64, a bool, or an empty
// map/slice - so the caller (the Change Extractor) decides how each
// JSON kind maps to a FacetKind (spec.md §4.D, §4.E).
type EmitFunc func(fid FieldId, value interface{}) error

// WalkDocumentFacets traverses document, resolving every attribute
// name in attrsToExtract (a mapset.Set of strings, dotted-path nested
// notation supported) against fieldIDMap and invoking emit for each
// resulting scalar or array element. Traversal order is the walker's
// own map iteration order; it is not guaranteed stable across calls -
// the reconciler (facet.DelAddFacetValue) is what makes the extracted
// result order-independent (spec.md §4.D).
func WalkDocumentFacets(attrsToExtract mapset.Set, document Document, fieldIDMap FieldIdMap, emit EmitFunc) error {
	return walk("", document, attrsToExtract, fieldIDMap, emit)
}

func walk(prefix string, obj Document, attrs mapset.Set, fieldIDMap FieldIdMap, emit EmitFunc) error {
	for key, val := range obj {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		if attrs.Contains(path) {
			fid, err := fieldIDMap.IdOrCreate(path)
			if err != nil {
				return err
			}
			if err := emitValue(fid, val, path, attrs, fieldIDMap, emit); err != nil {
				return err
			}
			continue
		}

		if nested, ok := val.(Document); ok && len(nested) > 0 && hasAttrUnderPrefix(attrs, path) {
			if err := walk(path, nested, attrs, fieldIDMap, emit); err != nil {
				return err
			}
		}
	}
	return nil
}

// emitValue applies spec.md §4.D's per-kind emission rule for one
// resolved attribute value.
func emitValue(fid FieldId, val interface{}, path string, attrs mapset.Set, fieldIDMap FieldIdMap, emit EmitFunc) error {
	switch v := val.(type) {
	case []interface{}:
		if len(v) == 0 {
			return emit(fid, v) // Empty: `[]`
		}
		for _, elem := range v {
			// Arrays are not recursed into: an object inside an array
			// is skipped, and a dotted attribute path does not resolve
			// through an array to fields of its elements.
			if _, ok := elem.(Document); ok {
				continue
			}
			if err := emit(fid, elem); err != nil {
				return err
			}
		}
		return nil
	case Document:
		if len(v) == 0 {
			return emit(fid, v) // Empty: `{}`
		}
		return walk(path, v, attrs, fieldIDMap, emit)
	default:
		// Null, String, Number, Bool: emit once (spec.md §4.D). Bool
		// handling is an open question - see facet/extractor.go and
		// DESIGN.md.
		return emit(fid, val)
	}
}

func hasAttrUnderPrefix(attrs mapset.Set, prefix string) bool {
	want := prefix + "."
	for a := range attrs.Iter() {
		name, ok := a.(string)
		if ok && strings.HasPrefix(name, want) {
			return true
		}
	}
	return false
}
