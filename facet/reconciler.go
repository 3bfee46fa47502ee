package facet

import (
	"unicode/utf8"

	"github.com/ledgerwatch/turbo-facet/metrics"
)

// reconcileKey identifies one (field, value) pair. value is the raw
// value bytes as observed by the walker - for strings, the original
// unnormalized UTF-8 text; for numbers, the 16-byte OrderedF64 payload.
// Using the string conversion of the bytes as a map key is intentional:
// it gives byte-exact dedup without a second hash of the same data.
type reconcileKey struct {
	fid   FieldId
	value string
}

type reconcileEntry struct {
	state DelAdd
	raw   []byte // original bytes handed to insert_add/insert_del, pre-normalization
}

// DelAddFacetValue cancels opposing del/add pairs observed for the same
// (field, value) while processing one DocumentChange (spec.md §4.C).
// It is arena-scoped in spirit: one instance per change, dropped after
// its Flush sends its contents (spec.md §3 "Lifecycles").
type DelAddFacetValue struct {
	strings map[reconcileKey]reconcileEntry
	f64s    map[reconcileKey]reconcileEntry
}

func NewDelAddFacetValue() *DelAddFacetValue {
	return &DelAddFacetValue{
		strings: make(map[reconcileKey]reconcileEntry),
		f64s:    make(map[reconcileKey]reconcileEntry),
	}
}

func (d *DelAddFacetValue) mapFor(kind Kind) map[reconcileKey]reconcileEntry {
	switch kind {
	case KindString:
		return d.strings
	case KindNumber:
		return d.f64s
	default:
		// Exists/Null/Empty are recorded directly in the Balanced Cache;
		// reconciliation is value-level only (spec.md §4.C).
		return nil
	}
}

// InsertAdd records an addition contribution for (fid, value). A
// pending Deletion for the same key cancels out (net zero); otherwise
// the entry becomes (or stays) an Addition - idempotent, per spec.md
// §8 property 5.
func (d *DelAddFacetValue) InsertAdd(fid FieldId, value []byte, kind Kind) {
	m := d.mapFor(kind)
	if m == nil {
		return
	}
	key := reconcileKey{fid: fid, value: string(value)}
	if e, ok := m[key]; ok && e.state == Deletion {
		delete(m, key)
		return
	}
	m[key] = reconcileEntry{state: Addition, raw: value}
}

// InsertDel is the symmetric counterpart of InsertAdd.
func (d *DelAddFacetValue) InsertDel(fid FieldId, value []byte, kind Kind) {
	m := d.mapFor(kind)
	if m == nil {
		return
	}
	key := reconcileKey{fid: fid, value: string(value)}
	if e, ok := m[key]; ok && e.state == Addition {
		delete(m, key)
		return
	}
	m[key] = reconcileEntry{state: Deletion, raw: value}
}

// insertTyped dispatches to InsertAdd/InsertDel by side, so callers
// walking a document once for Del and once for Add (the Change
// Extractor) can share one code path regardless of which pass they are
// in (spec.md §4.E).
func (d *DelAddFacetValue) insertTyped(fid FieldId, value []byte, kind Kind, side DelAdd) {
	if side == Addition {
		d.InsertAdd(fid, value, kind)
	} else {
		d.InsertDel(fid, value, kind)
	}
}

// encodeNumberKeyFromOrdered builds the Number FacetKey directly from
// an already-computed OrderedF64 payload, avoiding a decode/re-encode
// round trip for a value the caller already has on hand. Shared by the
// Change Extractor's direct-to-cache writes and this file's sender key
// construction.
func encodeNumberKeyFromOrdered(fid FieldId, ordered []byte) []byte {
	buf := make([]byte, 4, 4+len(ordered))
	buf[0] = byte(KindNumber)
	putFieldId(buf[1:3], fid)
	buf[3] = Level0
	return append(buf, ordered...)
}

// Flush emits the surviving entries to sender (the per-document facet
// record), then the map is spent - callers drop the DelAddFacetValue
// afterwards (spec.md §4.C "flush(docid, sender)"). The Balanced Cache
// is not touched here: every typed key is written there directly by
// the Change Extractor as it walks each side of the change (spec.md
// §4.E), independent of whether the reconciler later cancels the
// sender-facing pair.
func (d *DelAddFacetValue) Flush(docid DocumentId, sender Sender) error {
	for key, entry := range d.strings {
		if !utf8.ValidString(key.value) {
			// Arena-allocated string values should only ever be valid
			// UTF-8; this defensive skip avoids propagating a corrupt
			// key without failing the whole batch (spec.md §4.C, §9).
			continue
		}
		senderKey := buildSenderKey(key.fid, docid, NormalizeTruncate(key.value))
		var err error
		switch entry.state {
		case Addition:
			err = sender.WriteFacetString(senderKey, entry.raw)
			metrics.SenderWrites.WithLabelValues("string", "write").Inc()
		case Deletion:
			err = sender.DeleteFacetString(senderKey)
			metrics.SenderWrites.WithLabelValues("string", "delete").Inc()
		}
		if err != nil {
			return err
		}
	}

	for key, entry := range d.f64s {
		senderKey := buildSenderKey(key.fid, docid, []byte(key.value))
		var err error
		switch entry.state {
		case Addition:
			err = sender.WriteFacetF64(senderKey)
			metrics.SenderWrites.WithLabelValues("f64", "write").Inc()
		case Deletion:
			err = sender.DeleteFacetF64(senderKey)
			metrics.SenderWrites.WithLabelValues("f64", "delete").Inc()
		}
		if err != nil {
			return err
		}
	}

	return nil
}
