// Package common holds small helpers shared across the facet-extraction
// tree, the same role it plays in the rest of this repository family.
package common

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by Stopped when the caller's quit channel has
// been closed or signalled.
var ErrStopped = errors.New("stopped")

// Stopped checks a cancellation channel without blocking. Workers and
// the Parallel Driver call this between changes (spec.md §5 "Cancellation").
func Stopped(quitCh <-chan struct{}) error {
	select {
	case <-quitCh:
		return ErrStopped
	default:
		return nil
	}
}

// CopyBytes returns an independent copy of b. LMDB cursors hand back
// slices that are only valid until the next cursor operation, so any
// value retained past that point must be copied.
func CopyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}

// StorageSize is a humanized byte count, implementing fmt.Stringer so
// it prints nicely in structured log fields (e.g. "1.02 MB").
type StorageSize float64

func (s StorageSize) String() string {
	switch {
	case s >= 1024*1024*1024:
		return fmt.Sprintf("%.2f GB", s/(1024*1024*1024))
	case s >= 1024*1024:
		return fmt.Sprintf("%.2f MB", s/(1024*1024))
	case s >= 1024:
		return fmt.Sprintf("%.2f KB", s/1024)
	default:
		return fmt.Sprintf("%.2f B", s)
	}
}
