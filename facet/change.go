package facet

// ChangeKind tags a DocumentChange (spec.md §3).
type ChangeKind uint8

const (
	ChangeDeletion ChangeKind = iota
	ChangeUpdate
	ChangeInsertion
)

// Deletion carries the document that is going away. OldDocument is the
// already-committed ("current") projection the document-change
// producer resolved for us - the core never reads storage itself
// (spec.md §1).
type Deletion struct {
	Docid       DocumentId
	ExternalID  string
	OldDocument Document
}

// Insertion carries the new document being added.
type Insertion struct {
	Docid       DocumentId
	ExternalID  string
	NewDocument Document
}

// Update carries both sides of a change. MergedDocument is the new
// document merged onto the old one - the on-disk representation after
// the update is applied, which may differ from NewDocument if the
// update only patched a subset of fields.
type Update struct {
	Docid          DocumentId
	ExternalID     string
	OldDocument    Document
	MergedDocument Document
}

// DocumentChange is the tagged variant spec.md §3/§9 describes: exactly
// one of Del/Upd/Ins is populated, matching Kind. Keeping typed
// accessors on the inner structs (rather than a single interface{}
// payload) means the Change Extractor does one switch on Kind and
// never needs a second runtime type check (spec.md §9 "No dynamic
// dispatch on the hot path").
type DocumentChange struct {
	Kind ChangeKind
	Del  *Deletion
	Upd  *Update
	Ins  *Insertion
}

func NewDeletion(docid DocumentId, externalID string, old Document) DocumentChange {
	return DocumentChange{Kind: ChangeDeletion, Del: &Deletion{Docid: docid, ExternalID: externalID, OldDocument: old}}
}

func NewInsertion(docid DocumentId, externalID string, doc Document) DocumentChange {
	return DocumentChange{Kind: ChangeInsertion, Ins: &Insertion{Docid: docid, ExternalID: externalID, NewDocument: doc}}
}

func NewUpdate(docid DocumentId, externalID string, old, merged Document) DocumentChange {
	return DocumentChange{Kind: ChangeUpdate, Upd: &Update{Docid: docid, ExternalID: externalID, OldDocument: old, MergedDocument: merged}}
}

// Docid returns the document id regardless of change kind.
func (c DocumentChange) Docid() DocumentId {
	switch c.Kind {
	case ChangeDeletion:
		return c.Del.Docid
	case ChangeUpdate:
		return c.Upd.Docid
	case ChangeInsertion:
		return c.Ins.Docid
	default:
		return 0
	}
}

// ExternalID returns the change's external document id regardless of kind.
func (c DocumentChange) ExternalID() string {
	switch c.Kind {
	case ChangeDeletion:
		return c.Del.ExternalID
	case ChangeUpdate:
		return c.Upd.ExternalID
	case ChangeInsertion:
		return c.Ins.ExternalID
	default:
		return ""
	}
}
