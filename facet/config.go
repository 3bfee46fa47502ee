package facet

import (
	"github.com/c2h5oh/datasize"
	mapset "github.com/deckarep/golang-set"
)

// ExtractionParams configures one extraction run end to end: what to
// extract, how many workers to use, and how much memory each worker's
// Balanced Cache may hold before spilling (spec.md §4.B, §4.F
// "Configuration").
type ExtractionParams struct {
	// AttrsToExtract lists the dotted attribute paths eligible for
	// facet extraction (spec.md §1).
	AttrsToExtract mapset.Set

	// Workers is the number of parallel extraction workers, and
	// therefore also the Balanced Cache bucket count each worker uses
	// (spec.md §4.B "Buckets", §4.F).
	Workers int

	// MaxMemoryPerWorker bounds one worker's in-memory cache before a
	// spill is forced (spec.md §4.B "Spill").
	MaxMemoryPerWorker datasize.ByteSize

	// ChunkSize is how many DocumentChanges one worker processes
	// before reporting progress and resetting its Arena (spec.md §4.F
	// "Progress").
	ChunkSize int

	// TmpDir is where spill runs are written (spec.md §4.B).
	TmpDir string
}

// DefaultExtractionParams returns sane defaults for a single-machine
// run: one worker per GOMAXPROCS is the caller's job to set via
// Workers, since it depends on runtime.GOMAXPROCS at the call site.
func DefaultExtractionParams(attrs mapset.Set) ExtractionParams {
	return ExtractionParams{
		AttrsToExtract:     attrs,
		Workers:            1,
		MaxMemoryPerWorker: 512 * datasize.MB,
		ChunkSize:          4096,
		TmpDir:             "",
	}
}
