package facet

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ledgerwatch/turbo-facet/common"
	"github.com/ledgerwatch/turbo-facet/log"
	"github.com/ledgerwatch/turbo-facet/metrics"
)

// ProgressFunc reports (finishedSteps, totalSteps, stepName) as the
// Parallel Driver works through a batch (spec.md §4.F "Progress").
// stepName is the worker id and finishedSteps is cumulative within that
// worker's partition, so an aggregate figure is the sum of each
// worker's most recent finishedSteps.
type ProgressFunc func(finishedSteps, totalSteps int, stepName string)

// Partition splits changes into Workers contiguous, deterministic
// slices (spec.md §4.F "partitioning must be deterministic" - the same
// input always yields the same worker assignment, which matters for
// reproducing a run). Document order inside a slice is preserved.
func Partition(changes []DocumentChange, workers int) [][]DocumentChange {
	if workers < 1 {
		workers = 1
	}
	if len(changes) == 0 {
		return nil
	}
	if workers > len(changes) {
		workers = len(changes)
	}

	out := make([][]DocumentChange, workers)
	base := len(changes) / workers
	rem := len(changes) % workers
	start := 0
	for i := 0; i < workers; i++ {
		size := base
		if i < rem {
			size++
		}
		out[i] = changes[start : start+size]
		start += size
	}
	return out
}

// Drive is the Parallel Driver (spec.md §2 component F, §4.F): it fans
// a batch of DocumentChanges out across params.Workers goroutines, each
// with its own Balanced Cache and Arena, and returns one sealed Cache
// per worker for the out-of-scope downstream merger to consume. The
// FieldIdMap and Sender are shared across workers and must tolerate
// concurrent use (spec.md §5 "Shared resources").
func Drive(ctx context.Context, quit <-chan struct{}, changes []DocumentChange, fieldIDMap FieldIdMap, sender Sender, params ExtractionParams, progress ProgressFunc) ([]*Cache, error) {
	partitions := Partition(changes, params.Workers)
	if len(partitions) == 0 {
		return nil, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	caches := make([]*Cache, len(partitions))

	for i, partition := range partitions {
		i, partition := i, partition
		workerName := fmt.Sprintf("worker-%d", i)

		g.Go(func() error {
			cache := NewCache(params.Workers, params.MaxMemoryPerWorker, params.TmpDir, workerName)
			arena := NewArena(params.ChunkSize * OrderedF64Size)
			extractor := &Extractor{
				AttrsToExtract: params.AttrsToExtract,
				FieldIDMap:     fieldIDMap,
				Cache:          cache,
				Sender:         sender,
				Arena:          arena,
			}

			for j, change := range partition {
				if err := common.Stopped(quit); err != nil {
					return err
				}
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				if err := extractor.Extract(change); err != nil {
					return fmt.Errorf("facet: %s: extract docid=%d: %w", workerName, change.Docid(), err)
				}
				metrics.DocumentsProcessed.WithLabelValues(workerName).Inc()

				if params.ChunkSize > 0 && (j+1)%params.ChunkSize == 0 {
					arena.Reset()
					if progress != nil {
						progress(j+1, len(partition), workerName)
					}
				}
			}

			if progress != nil {
				progress(len(partition), len(partition), workerName)
			}

			log.Info("facet extraction worker done", "worker", workerName, "documents", len(partition), "spills", cache.RunCount())
			caches[i] = cache.Seal()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, c := range caches {
			if c != nil {
				c.Close()
			}
		}
		return nil, err
	}

	return caches, nil
}
