package facet

import "encoding/binary"

// Sender is the downstream collaborator that persists per-document
// facet records (spec.md §6). The core never persists anything itself;
// it only calls these four methods.
type Sender interface {
	WriteFacetString(key, rawValue []byte) error
	DeleteFacetString(key []byte) error
	WriteFacetF64(key []byte) error
	DeleteFacetF64(key []byte) error
}

// buildSenderKey builds the per-document record key: field_id_be(2) ||
// doc_id_be(4) || value_suffix (spec.md §6).
func buildSenderKey(fid FieldId, docid DocumentId, valueSuffix []byte) []byte {
	buf := make([]byte, 6, 6+len(valueSuffix))
	binary.BigEndian.PutUint16(buf[0:2], uint16(fid))
	binary.BigEndian.PutUint32(buf[2:6], uint32(docid))
	buf = append(buf, valueSuffix...)
	return buf
}
