package reader

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

// RowMapper maps the current row of rows to an item.
type RowMapper[I any] func(rows *sql.Rows) (I, error)

// SqlPagedSource pages through the result of a plain SQL query on a *sql.DB.
// baseQuery must carry its ORDER BY; " LIMIT ? OFFSET ?" is appended to it.
type SqlPagedSource[I any] struct {
	db        *sql.DB
	baseQuery string
	baseArgs  []any
	mapper    RowMapper[I]
}

// NewSqlPagedSource creates a source for baseQuery and its arguments.
func NewSqlPagedSource[I any](db *sql.DB, baseQuery string, args []any, mapper RowMapper[I]) *SqlPagedSource[I] {
	return &SqlPagedSource[I]{db: db, baseQuery: baseQuery, baseArgs: args, mapper: mapper}
}

// FetchPage implements port.PagedSource. Query and row errors are SourceUnavailable;
// a mapping failure is neither skippable nor retryable.
func (s *SqlPagedSource[I]) FetchPage(ctx context.Context, pageIndex, pageSize int) ([]I, error) {
	if pageIndex < 0 || pageSize < 1 {
		return nil, fmt.Errorf("invalid page request: index %d, size %d", pageIndex, pageSize)
	}

	args := append(append([]any{}, s.baseArgs...), pageSize, pageIndex*pageSize)
	rows, err := s.db.QueryContext(ctx, s.baseQuery+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, exception.NewSourceUnavailable(moduleName, fmt.Sprintf("failed to query page %d", pageIndex), err)
	}
	defer rows.Close()

	page := make([]I, 0, pageSize)
	for rows.Next() {
		it, err := s.mapper(rows)
		if err != nil {
			return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to map a row of page %d", pageIndex), err, false, false)
		}
		page = append(page, it)
	}
	if err := rows.Err(); err != nil {
		return nil, exception.NewSourceUnavailable(moduleName, fmt.Sprintf("error iterating page %d", pageIndex), err)
	}
	return page, nil
}

var _ port.PagedSource[any] = (*SqlPagedSource[any])(nil)
