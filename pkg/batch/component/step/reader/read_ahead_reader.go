package reader

import (
	"context"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	"github.com/tigerroll/chunkbatch/pkg/batch/engine/step/item"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// ReadAheadItemReader buffers up to pageSize items and serves them one by one. The next
// page is fetched when the buffer is used up; the buffer is never rewound, so a processor
// must load whatever the writer needs itself.
type ReadAheadItemReader[I any] struct {
	chunkReader[I]
	source   port.PagedSource[I]
	pageSize int

	buffer    []I
	index     int
	nextPage  int
	exhausted bool
}

// NewReadAheadItemReader creates a read-ahead reader of chunkSize-item chunks over source.
// A pageSize below one uses DefaultReadAheadPageSize.
func NewReadAheadItemReader[I any](name string, source port.PagedSource[I], chunkSize, pageSize int, workingSet tx.WorkingSet, opts ...Option[I]) *ReadAheadItemReader[I] {
	if pageSize < 1 {
		pageSize = DefaultReadAheadPageSize
	}
	return &ReadAheadItemReader[I]{
		chunkReader: chunkReader[I]{
			name:    name,
			tracker: item.NewChunkBoundaryTracker(chunkSize, workingSet),
			options: buildOptions(opts),
		},
		source:   source,
		pageSize: pageSize,
	}
}

// Open empties the buffer and restarts from the first page.
func (r *ReadAheadItemReader[I]) Open(ctx context.Context, ec model.ExecutionContext) error {
	r.buffer, r.index, r.nextPage, r.exhausted = nil, 0, 0, false
	r.tracker.OnChunkCommitted()
	logger.Debugf("ReadAheadItemReader '%s' opened (page size %d).", r.name, r.pageSize)
	return nil
}

// Read implements port.ItemReader.
func (r *ReadAheadItemReader[I]) Read(ctx context.Context) (I, error) {
	var zero I
	if _, err := r.enterChunk(); err != nil {
		return zero, err
	}

	if r.index >= len(r.buffer) {
		if r.exhausted {
			return zero, port.ErrEndOfStream
		}
		page, err := r.source.FetchPage(ctx, r.nextPage, r.pageSize)
		if err != nil {
			return zero, err
		}
		r.nextPage++
		r.buffer, r.index = page, 0
		logger.Debugf("ReadAheadItemReader '%s': buffered %d items.", r.name, len(page))
		if len(page) < r.pageSize {
			r.exhausted = true
		}
		if len(page) == 0 {
			return zero, port.ErrEndOfStream
		}
	}

	it := r.buffer[r.index]
	r.index++
	return r.deliver(ctx, it)
}

// Close drops the buffer.
func (r *ReadAheadItemReader[I]) Close(ctx context.Context) error {
	r.buffer = nil
	return nil
}

var _ port.ChunkAwareReader[any] = (*ReadAheadItemReader[any])(nil)
