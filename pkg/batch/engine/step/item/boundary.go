package item

import (
	"github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

// ChunkBoundaryTracker is the chunk bookkeeping shared by the chunk-aware readers.
// remaining is the number of item slots left in the current chunk; zero or less
// means the next read starts a new chunk.
type ChunkBoundaryTracker struct {
	chunkSize  int
	remaining  int
	workingSet tx.WorkingSet
}

// NewChunkBoundaryTracker creates a tracker for chunks of chunkSize items that guards workingSet.
// A nil workingSet disables the chunk-start assertion.
func NewChunkBoundaryTracker(chunkSize int, workingSet tx.WorkingSet) *ChunkBoundaryTracker {
	if chunkSize < 1 {
		chunkSize = 1
	}
	return &ChunkBoundaryTracker{chunkSize: chunkSize, workingSet: workingSet}
}

// ChunkSize returns the configured chunk size.
func (t *ChunkBoundaryTracker) ChunkSize() int {
	return t.chunkSize
}

// Remaining returns the slots left in the current chunk.
func (t *ChunkBoundaryTracker) Remaining() int {
	return t.remaining
}

// ShouldStartNewChunk reports whether the caller is at a chunk start. At a chunk start it
// resets the remaining count and asserts that the working set is empty; a dirty working
// set is a DirtyWorkingSetError and the remaining count is left untouched.
func (t *ChunkBoundaryTracker) ShouldStartNewChunk() (bool, error) {
	if t.remaining > 0 {
		return false, nil
	}
	if t.workingSet != nil && !t.workingSet.IsEmpty() {
		return false, exception.NewDirtyWorkingSetError("chunk_boundary", t.workingSet.Len())
	}
	t.remaining = t.chunkSize
	return true, nil
}

// OnItemSkipped gives up one slot of the current chunk.
func (t *ChunkBoundaryTracker) OnItemSkipped() {
	t.remaining--
}

// OnChunkCommitted closes the current chunk; the next read starts a new one.
func (t *ChunkBoundaryTracker) OnChunkCommitted() {
	t.remaining = 0
}
