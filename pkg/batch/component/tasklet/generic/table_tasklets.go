// Package generic provides tasklets that work on the tables of a database connection:
// emptying a table, verifying the identities copied between two tables and summarizing
// the counters of a chunk step.
package generic

import (
	"context"
	"fmt"
	"slices"

	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// Execution context keys written by the tasklets of this package.
const (
	ContextKeyDeletedRows = "cleanup.deleted"
	ContextKeyVerifiedIDs = "verify.count"
)

// TableCleanupTasklet deletes every row of a table.
type TableCleanupTasklet struct {
	resolver  database.DBConnectionResolver
	dbRef     string
	table     string
	prototype interface{}
}

// NewTableCleanupTasklet creates a tasklet emptying table on connection dbRef.
// prototype is a pointer to a zero entity of the table (e.g. &Customer{}).
func NewTableCleanupTasklet(resolver database.DBConnectionResolver, dbRef, table string, prototype interface{}) *TableCleanupTasklet {
	return &TableCleanupTasklet{resolver: resolver, dbRef: dbRef, table: table, prototype: prototype}
}

// Execute implements port.Tasklet.
func (t *TableCleanupTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	conn, err := t.resolver.ResolveDBConnection(ctx, t.dbRef)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	deleted, err := conn.ExecuteUpdate(ctx, t.prototype, "DELETE", t.table, nil)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(stepExecution.StepName, fmt.Sprintf("failed to clean table '%s'", t.table), err, false, false)
	}
	stepExecution.ExecutionContext.Put(ContextKeyDeletedRows, int(deleted))
	logger.Infof("All copied data cleaned up (%d rows deleted from '%s').", deleted, t.table)
	return model.ExitStatusCompleted, nil
}

// ExpectedIDs derives the identities the target table must hold from those of the source table.
type ExpectedIDs func(sourceIDs []int64) []int64

// IDVerificationTasklet compares the identities of a target table with the ones expected
// from a source table. Any difference fails the step with a VerificationMismatch.
type IDVerificationTasklet struct {
	resolver    database.DBConnectionResolver
	dbRef       string
	sourceTable string
	targetTable string
	idColumn    string
	expect      ExpectedIDs
}

// NewIDVerificationTasklet creates the tasklet. A nil expect requires the target to hold
// exactly the source identities.
func NewIDVerificationTasklet(resolver database.DBConnectionResolver, dbRef, sourceTable, targetTable, idColumn string, expect ExpectedIDs) *IDVerificationTasklet {
	if expect == nil {
		expect = func(ids []int64) []int64 { return ids }
	}
	return &IDVerificationTasklet{
		resolver:    resolver,
		dbRef:       dbRef,
		sourceTable: sourceTable,
		targetTable: targetTable,
		idColumn:    idColumn,
		expect:      expect,
	}
}

// Execute implements port.Tasklet.
func (t *IDVerificationTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	conn, err := t.resolver.ResolveDBConnection(ctx, t.dbRef)
	if err != nil {
		return model.ExitStatusFailed, err
	}

	var sourceIDs, targetIDs []int64
	if err := conn.Pluck(ctx, t.sourceTable, t.idColumn, t.idColumn, &sourceIDs); err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(stepExecution.StepName, fmt.Sprintf("failed to read ids of '%s'", t.sourceTable), err, false, false)
	}
	if err := conn.Pluck(ctx, t.targetTable, t.idColumn, t.idColumn, &targetIDs); err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(stepExecution.StepName, fmt.Sprintf("failed to read ids of '%s'", t.targetTable), err, false, false)
	}

	expected := sortedCopy(t.expect(sourceIDs))
	actual := sortedCopy(targetIDs)
	if !equalIDs(expected, actual) {
		return model.ExitStatusFailed, exception.NewVerificationMismatch(stepExecution.StepName,
			fmt.Sprintf("Unexpected data were copied. Expected: %v. Actual: %v", expected, actual))
	}

	stepExecution.ExecutionContext.Put(ContextKeyVerifiedIDs, len(actual))
	logger.Infof("Data copied as expected: %v", expected)
	return model.ExitStatusCompleted, nil
}

func sortedCopy(ids []int64) []int64 {
	out := append([]int64{}, ids...)
	slices.Sort(out)
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var (
	_ port.Tasklet = (*TableCleanupTasklet)(nil)
	_ port.Tasklet = (*IDVerificationTasklet)(nil)
)
