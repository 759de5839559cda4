package item_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	"github.com/tigerroll/chunkbatch/pkg/batch/engine/step/item"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

func TestChunkBoundaryTracker_Lifecycle(t *testing.T) {
	ws := tx.NewUnitOfWork()
	tracker := item.NewChunkBoundaryTracker(3, ws)

	start, err := tracker.ShouldStartNewChunk()
	require.NoError(t, err)
	assert.True(t, start)
	assert.Equal(t, 3, tracker.Remaining())

	start, err = tracker.ShouldStartNewChunk()
	require.NoError(t, err)
	assert.False(t, start, "inside a chunk")

	tracker.OnItemSkipped()
	assert.Equal(t, 2, tracker.Remaining())

	tracker.OnChunkCommitted()
	assert.Equal(t, 0, tracker.Remaining())

	start, err = tracker.ShouldStartNewChunk()
	require.NoError(t, err)
	assert.True(t, start)
}

func TestChunkBoundaryTracker_SkippingEverySlotEndsTheChunk(t *testing.T) {
	tracker := item.NewChunkBoundaryTracker(2, nil)
	_, _ = tracker.ShouldStartNewChunk()
	tracker.OnItemSkipped()
	tracker.OnItemSkipped()

	start, err := tracker.ShouldStartNewChunk()
	require.NoError(t, err)
	assert.True(t, start)
}

func TestChunkBoundaryTracker_DirtyWorkingSet(t *testing.T) {
	ws := tx.NewUnitOfWork()
	ws.Stage(tx.Entry{Table: "customer", Model: struct{}{}})
	tracker := item.NewChunkBoundaryTracker(3, ws)

	start, err := tracker.ShouldStartNewChunk()
	assert.False(t, start)
	assert.ErrorIs(t, err, exception.ErrDirtyWorkingSet)
	assert.True(t, exception.IsFatal(err))
	assert.Equal(t, 0, tracker.Remaining())
}

func TestChunkBoundaryTracker_MinimumChunkSize(t *testing.T) {
	assert.Equal(t, 1, item.NewChunkBoundaryTracker(0, nil).ChunkSize())
}
