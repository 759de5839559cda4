// Package reader provides the chunk-aware item readers and the paged sources they read from.
package reader

import (
	"context"
	"fmt"

	"github.com/tigerroll/chunkbatch/pkg/batch/engine/step/item"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

const moduleName = "reader"

// DefaultReadAheadPageSize is the page size of a ReadAheadItemReader built without one.
const DefaultReadAheadPageSize = 500

// ItemValidator inspects every item right after it is read. A non-nil error makes the
// read fail with a ReadError for that item; the reader stays positioned after it.
type ItemValidator[I any] func(ctx context.Context, item I) error

// Option configures a reader.
type Option[I any] func(*options[I])

type options[I any] struct {
	validators []ItemValidator[I]
}

// WithItemValidator adds v to the validators run on every read item, in order.
func WithItemValidator[I any](v ItemValidator[I]) Option[I] {
	return func(o *options[I]) { o.validators = append(o.validators, v) }
}

func buildOptions[I any](opts []Option[I]) options[I] {
	var o options[I]
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// chunkReader is the chunk bookkeeping and item delivery shared by both reader strategies.
type chunkReader[I any] struct {
	name    string
	tracker *item.ChunkBoundaryTracker
	options options[I]
}

// enterChunk starts a new chunk when the previous one is over. It reports whether it did.
func (r *chunkReader[I]) enterChunk() (bool, error) {
	started, err := r.tracker.ShouldStartNewChunk()
	if err != nil {
		return false, err
	}
	if started {
		logger.Infof("  Start new chunk. Size: %d", r.tracker.ChunkSize())
	}
	return started, nil
}

// deliver logs item and runs the validators on it. A rejection carries the item.
func (r *chunkReader[I]) deliver(ctx context.Context, it I) (I, error) {
	logger.Infof("  [READ   ] item: %v", it)
	for _, validate := range r.options.validators {
		if err := validate(ctx, it); err != nil {
			var zero I
			return zero, exception.NewReadError(moduleName, fmt.Sprintf("reader '%s' rejected item %v", r.name, it), err).WithItem(it)
		}
	}
	return it, nil
}

// ChunkSize implements port.ChunkAwareReader.
func (r *chunkReader[I]) ChunkSize() int {
	return r.tracker.ChunkSize()
}

// OnItemError implements port.ChunkAwareReader.
func (r *chunkReader[I]) OnItemError() {
	r.tracker.OnItemSkipped()
}

// OnChunkSuccess implements port.ChunkAwareReader.
func (r *chunkReader[I]) OnChunkSuccess() {
	r.tracker.OnChunkCommitted()
}
