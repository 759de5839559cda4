package reader

import (
	"context"
	"fmt"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

// GormPagedSource pages through one table with LIMIT/OFFSET ordered by a stable key.
// It queries through the chunk transaction found in the context and falls back to base.
type GormPagedSource[I any] struct {
	base    tx.TxExecutor
	table   string
	orderBy string
	where   map[string]interface{}
}

// NewGormPagedSource creates a source over table. orderBy must produce a total order, e.g. "id".
func NewGormPagedSource[I any](base tx.TxExecutor, table, orderBy string, where map[string]interface{}) *GormPagedSource[I] {
	return &GormPagedSource[I]{base: base, table: table, orderBy: orderBy, where: where}
}

// FetchPage implements port.PagedSource.
func (s *GormPagedSource[I]) FetchPage(ctx context.Context, pageIndex, pageSize int) ([]I, error) {
	if pageIndex < 0 || pageSize < 1 {
		return nil, fmt.Errorf("invalid page request: index %d, size %d", pageIndex, pageSize)
	}

	var executor tx.TxExecutor = s.base
	if t, ok := tx.FromContext(ctx); ok {
		executor = t
	}

	var page []I
	opts := tx.QueryOptions{OrderBy: s.orderBy, Offset: pageIndex * pageSize, Limit: pageSize}
	if err := executor.ExecuteQuery(ctx, &page, s.table, s.where, opts); err != nil {
		return nil, exception.NewSourceUnavailable(moduleName, fmt.Sprintf("failed to fetch page %d of '%s'", pageIndex, s.table), err)
	}
	return page, nil
}

var _ port.PagedSource[any] = (*GormPagedSource[any])(nil)
