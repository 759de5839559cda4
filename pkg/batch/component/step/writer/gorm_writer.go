// Package writer provides the item writers of the chunk engine.
package writer

import (
	"context"
	"fmt"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

const moduleName = "writer"

// BatchCheck inspects a whole batch before it is staged. A non-nil error fails the write of the batch.
type BatchCheck[O any] func(ctx context.Context, items []O) error

// GormItemWriter stages every batch as one upsert into the working set of the chunk
// transaction. The rows reach the database when the chunk executor flushes the working
// set right before the commit.
type GormItemWriter[O any] struct {
	name            string
	workingSet      tx.WorkingSet
	tableName       string
	conflictColumns []string
	updateColumns   []string
	checks          []BatchCheck[O]
}

// NewGormItemWriter creates a writer upserting into tableName. conflictColumns identify a row
// (e.g. the primary key); updateColumns are overwritten on conflict, empty means DO NOTHING.
func NewGormItemWriter[O any](name string, workingSet tx.WorkingSet, tableName string, conflictColumns, updateColumns []string, checks ...BatchCheck[O]) *GormItemWriter[O] {
	return &GormItemWriter[O]{
		name:            name,
		workingSet:      workingSet,
		tableName:       tableName,
		conflictColumns: conflictColumns,
		updateColumns:   updateColumns,
		checks:          checks,
	}
}

// Open implements port.ItemWriter.
func (w *GormItemWriter[O]) Open(ctx context.Context, ec model.ExecutionContext) error {
	logger.Debugf("GormItemWriter '%s': opened for table '%s'.", w.name, w.tableName)
	return nil
}

// Write implements port.ItemWriter.
func (w *GormItemWriter[O]) Write(ctx context.Context, items []O) error {
	if len(items) == 0 {
		return nil
	}
	for _, check := range w.checks {
		if err := check(ctx, items); err != nil {
			return exception.NewWriteError(moduleName, fmt.Sprintf("writer '%s' rejected a batch of %d items", w.name, len(items)), err)
		}
	}

	batch := append([]O(nil), items...)
	w.workingSet.Stage(tx.Entry{
		Table:           w.tableName,
		Model:           &batch,
		ConflictColumns: w.conflictColumns,
		UpdateColumns:   w.updateColumns,
	})
	logger.Infof("  [WRITE  ] %d items staged for '%s'", len(batch), w.tableName)
	return nil
}

// Close implements port.ItemWriter.
func (w *GormItemWriter[O]) Close(ctx context.Context) error {
	return nil
}

var _ port.ItemWriter[any] = (*GormItemWriter[any])(nil)
