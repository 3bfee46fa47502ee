package dbutils

import (
	"bytes"
	"sort"
	"strings"

	"github.com/ledgerwatch/lmdb-go/lmdb"
)

// Buckets used by the facet-extraction core. Naming follows the rest of
// the tree: short mnemonic strings, versioned with a numeric suffix when
// the on-disk layout changes.
var (
	// FacetIdDocidsBucket is the inverted index the Balanced Cache (§4.B)
	// merges its spilled runs into.
	// key   - FacetKey: kind_tag || field_id_be(2) || [level(1) || payload]
	// value - serialized roaring.Bitmap of matching document ids
	FacetIdDocidsBucket = "FacetIdDocids"

	// FieldIdDocidFacetValue holds the per-document facet records the
	// Sender (§6) persists: one row per (field, document, value).
	// key   - field_id_be(2) || doc_id_be(4) || value_suffix
	// value - original (untruncated) facet value, strings only
	FieldIdDocidFacetValue = "FieldIdDocidFacetValue"

	// FieldsIdsMapBucket backs the field-id mapper's persisted state.
	// key - field name, value - field_id_be(2)
	FieldsIdsMapBucket = "FieldsIdsMap"
)

// Buckets - list of all buckets. kv/lmdbkv opens exactly these and
// returns an "unknown bucket" error for any other name. Sorted in `init`.
var Buckets = []string{
	FacetIdDocidsBucket,
	FieldIdDocidFacetValue,
	FieldsIdsMapBucket,
}

type CustomComparator string

const (
	DefaultCmp CustomComparator = ""
)

type CmpFunc func(k1, k2, v1, v2 []byte) int

func DefaultCmpFunc(k1, k2, v1, v2 []byte) int { return bytes.Compare(k1, k2) }

type BucketsCfg map[string]BucketConfigItem
type Bucket string

type BucketConfigItem struct {
	Flags            uint
	IsDeprecated     bool
	DBI              lmdb.DBI
	CustomComparator CustomComparator
}

// BucketsConfigs holds per-bucket LMDB flags. FieldIdDocidFacetValue is
// written once per (field,doc,value) and never duplicated, so no bucket
// here needs lmdb.DupSort - unlike the chain buckets this package was
// copied from, which dup-sort multiple values under one key.
var BucketsConfigs = BucketsCfg{}

func sortBuckets() {
	sort.SliceStable(Buckets, func(i, j int) bool {
		return strings.Compare(Buckets[i], Buckets[j]) < 0
	})
}

func DefaultBuckets() BucketsCfg {
	return BucketsConfigs
}

func init() {
	reinit()
}

func reinit() {
	sortBuckets()
	for _, name := range Buckets {
		if _, ok := BucketsConfigs[name]; !ok {
			BucketsConfigs[name] = BucketConfigItem{}
		}
	}
}
