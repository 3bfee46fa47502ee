package facet

import (
	"context"
	"testing"

	mapset "github.com/deckarep/golang-set"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionIsDeterministicAndCoversAllChanges(t *testing.T) {
	changes := make([]DocumentChange, 10)
	for i := range changes {
		changes[i] = NewInsertion(DocumentId(i), "", Document{})
	}

	a := Partition(changes, 3)
	b := Partition(changes, 3)
	require.Equal(t, a, b)

	total := 0
	for _, part := range a {
		total += len(part)
	}
	assert.Equal(t, len(changes), total)
}

func TestPartitionClampsWorkersToChangeCount(t *testing.T) {
	changes := make([]DocumentChange, 2)
	parts := Partition(changes, 8)
	assert.Len(t, parts, 2)
}

func TestPartitionEmptyInput(t *testing.T) {
	assert.Nil(t, Partition(nil, 4))
}

func TestDriveProducesOneSealedCachePerWorker(t *testing.T) {
	attrs := mapset.NewSetFromSlice([]interface{}{"color"})
	changes := make([]DocumentChange, 20)
	for i := range changes {
		changes[i] = NewInsertion(DocumentId(i), "", Document{"color": "red"})
	}

	params := DefaultExtractionParams(attrs)
	params.Workers = 4
	params.TmpDir = t.TempDir()

	fm, err := NewSharedFieldIdMap(nil)
	require.NoError(t, err)
	sender := &recordingSender{}

	var progressCalls int
	caches, err := Drive(context.Background(), nil, changes, fm, sender, params, func(done, total int, worker string) {
		progressCalls++
	})
	require.NoError(t, err)
	require.Len(t, caches, 4)

	for _, c := range caches {
		assert.NotNil(t, c)
		c.Close()
	}
	assert.Equal(t, 20, len(sender.writesStr))
	assert.Greater(t, progressCalls, 0)
}

func TestDriveReturnsNilForEmptyBatch(t *testing.T) {
	attrs := mapset.NewSetFromSlice([]interface{}{"color"})
	params := DefaultExtractionParams(attrs)
	params.TmpDir = t.TempDir()

	fm, err := NewSharedFieldIdMap(nil)
	require.NoError(t, err)
	caches, err := Drive(context.Background(), nil, nil, fm, &recordingSender{}, params, nil)
	require.NoError(t, err)
	assert.Nil(t, caches)
}
