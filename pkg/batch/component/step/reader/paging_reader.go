package reader

import (
	"context"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	"github.com/tigerroll/chunkbatch/pkg/batch/engine/step/item"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// PagingItemReader reads a PagedSource one page at a time. At every chunk start the page
// being read is queried again inside the new transaction, keeping the position within it,
// so items are always loaded by the transaction that writes them.
type PagingItemReader[I any] struct {
	chunkReader[I]
	source   port.PagedSource[I]
	pageSize int

	page      []I
	pageIndex int
	offset    int
	loaded    bool
	exhausted bool
}

// NewPagingItemReader creates a reader of chunkSize-item chunks over source. workingSet is
// asserted empty at every chunk start; nil disables the check.
func NewPagingItemReader[I any](name string, source port.PagedSource[I], chunkSize, pageSize int, workingSet tx.WorkingSet, opts ...Option[I]) *PagingItemReader[I] {
	if pageSize < 1 {
		pageSize = chunkSize
	}
	return &PagingItemReader[I]{
		chunkReader: chunkReader[I]{
			name:    name,
			tracker: item.NewChunkBoundaryTracker(chunkSize, workingSet),
			options: buildOptions(opts),
		},
		source:   source,
		pageSize: pageSize,
	}
}

// Open rewinds the reader to the first page. No position is restored from ec.
func (r *PagingItemReader[I]) Open(ctx context.Context, ec model.ExecutionContext) error {
	r.page, r.pageIndex, r.offset = nil, 0, 0
	r.loaded, r.exhausted = false, false
	r.tracker.OnChunkCommitted()
	logger.Debugf("PagingItemReader '%s' opened (page size %d).", r.name, r.pageSize)
	return nil
}

// Read implements port.ItemReader.
func (r *PagingItemReader[I]) Read(ctx context.Context) (I, error) {
	var zero I
	started, err := r.enterChunk()
	if err != nil {
		return zero, err
	}
	if started && r.loaded && r.offset < len(r.page) {
		page, err := r.source.FetchPage(ctx, r.pageIndex, r.pageSize)
		if err != nil {
			return zero, err
		}
		r.page = page
	}

	for r.offset >= len(r.page) {
		if r.exhausted || (r.loaded && len(r.page) < r.pageSize) {
			r.exhausted = true
			return zero, port.ErrEndOfStream
		}
		next := 0
		if r.loaded {
			next = r.pageIndex + 1
		}
		page, err := r.source.FetchPage(ctx, next, r.pageSize)
		if err != nil {
			return zero, err
		}
		r.page, r.pageIndex, r.offset, r.loaded = page, next, 0, true
		if len(page) == 0 {
			r.exhausted = true
			return zero, port.ErrEndOfStream
		}
	}

	it := r.page[r.offset]
	r.offset++
	return r.deliver(ctx, it)
}

// Close drops the current page.
func (r *PagingItemReader[I]) Close(ctx context.Context) error {
	r.page = nil
	return nil
}

var _ port.ChunkAwareReader[any] = (*PagingItemReader[any])(nil)
