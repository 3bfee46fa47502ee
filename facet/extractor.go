package facet

import (
	"fmt"

	mapset "github.com/deckarep/golang-set"
)

// Extractor is the Change Extractor (spec.md §2 component E, §4.E): it
// turns one DocumentChange into Balanced Cache contributions and
// per-document facet records, driving the Walker once per side of the
// change through a fresh DelAddFacetValue so an untouched value
// cancels out of the per-document records instead of producing a
// pointless del+add pair there (the Balanced Cache still receives both).
type Extractor struct {
	AttrsToExtract mapset.Set
	FieldIDMap     FieldIdMap
	Cache          *Cache
	Sender         Sender

	// Arena is optional per-worker scratch for the OrderedF64 payload
	// built on every numeric emission; nil falls back to a plain heap
	// allocation.
	Arena *Arena
}

// Extract processes one change end to end (spec.md §4.E). Deletion
// walks OldDocument marking Del; Insertion walks NewDocument marking
// Add; Update walks OldDocument marking Del, then MergedDocument
// marking Add. Every typed key goes to the Balanced Cache directly as
// it is walked, so a no-op update still leaves a matching del+add pair
// there (spec.md §8 scenario 3); the same DelAddFacetValue reconciles
// both passes for the sender only, cancelling an unchanged value to
// zero sender writes.
func (x *Extractor) Extract(change DocumentChange) error {
	dv := NewDelAddFacetValue()
	docid := change.Docid()

	switch change.Kind {
	case ChangeDeletion:
		if err := x.walkOneSide(change.Del.OldDocument, docid, dv, Deletion); err != nil {
			return x.flushThenWrap(dv, docid, fmt.Errorf("facet: extract deletion: %w", err))
		}

	case ChangeInsertion:
		if err := x.walkOneSide(change.Ins.NewDocument, docid, dv, Addition); err != nil {
			return x.flushThenWrap(dv, docid, fmt.Errorf("facet: extract insertion: %w", err))
		}

	case ChangeUpdate:
		if err := x.walkOneSide(change.Upd.OldDocument, docid, dv, Deletion); err != nil {
			return x.flushThenWrap(dv, docid, fmt.Errorf("facet: extract update (old document): %w", err))
		}
		if err := x.walkOneSide(change.Upd.MergedDocument, docid, dv, Addition); err != nil {
			return x.flushThenWrap(dv, docid, fmt.Errorf("facet: extract update (merged document): %w", err))
		}

	default:
		return fmt.Errorf("facet: unknown change kind %d", change.Kind)
	}

	return dv.Flush(docid, x.Sender)
}

// flushThenWrap runs Flush even though one walk pass already failed:
// spec.md §4.E requires the flush to run unconditionally so a partial
// walk never leaves the sender having seen only one side of the
// change. The walk error takes precedence; a flush failure is appended
// rather than replacing it.
func (x *Extractor) flushThenWrap(dv *DelAddFacetValue, docid DocumentId, walkErr error) error {
	if ferr := dv.Flush(docid, x.Sender); ferr != nil {
		return fmt.Errorf("%w (flush also failed: %v)", walkErr, ferr)
	}
	return walkErr
}

func (x *Extractor) walkOneSide(doc Document, docid DocumentId, dv *DelAddFacetValue, side DelAdd) error {
	if doc == nil {
		return nil
	}
	return WalkDocumentFacets(x.AttrsToExtract, doc, x.FieldIDMap, func(fid FieldId, value interface{}) error {
		return x.emit(fid, value, docid, dv, side)
	})
}

// emit applies spec.md §4.E's per-kind rule for one resolved value: an
// Exists contribution always, plus a typed contribution depending on
// what JSON kind the value turned out to be.
func (x *Extractor) emit(fid FieldId, value interface{}, docid DocumentId, dv *DelAddFacetValue, side DelAdd) error {
	if err := x.cacheInsert(EncodeExists(fid), docid, side); err != nil {
		return err
	}

	switch v := value.(type) {
	case nil:
		return x.cacheInsert(EncodeNull(fid), docid, side)

	case string:
		if err := x.cacheInsert(EncodeString(fid, v), docid, side); err != nil {
			return err
		}
		dv.insertTyped(fid, []byte(v), KindString, side)
		return nil

	case float64:
		var ordered []byte
		if x.Arena != nil {
			ordered = x.Arena.Alloc(OrderedF64Size)
		} else {
			ordered = make([]byte, OrderedF64Size)
		}
		if err := EncodeOrderedF64(v, ordered); err != nil {
			// Non-finite: Exists was already recorded above; the typed
			// key is skipped rather than failing the whole document
			// (spec.md §7 "Codec error").
			return nil
		}
		if err := x.cacheInsert(encodeNumberKeyFromOrdered(fid, ordered), docid, side); err != nil {
			return err
		}
		dv.insertTyped(fid, ordered, KindNumber, side)
		return nil

	case bool:
		// Booleans have no dedicated FacetKind and are recorded as
		// Exists only. TODO: synthesize a String("true"/"false") key
		// once a consumer needs to filter on boolean facets - see
		// DESIGN.md Open Questions.
		return nil

	case []interface{}:
		if len(v) == 0 {
			return x.cacheInsert(EncodeEmpty(fid), docid, side)
		}
		// Non-empty arrays are expanded element-by-element by the
		// walker itself; each element arrives here as its own emit
		// call, so there is nothing further to do for the array value.
		return nil

	case Document:
		if len(v) == 0 {
			return x.cacheInsert(EncodeEmpty(fid), docid, side)
		}
		return nil

	default:
		return fmt.Errorf("facet: unsupported value type %T for field %d", value, fid)
	}
}

func (x *Extractor) cacheInsert(key []byte, docid DocumentId, side DelAdd) error {
	if side == Addition {
		return x.Cache.InsertAdd(key, docid)
	}
	return x.Cache.InsertDel(key, docid)
}
