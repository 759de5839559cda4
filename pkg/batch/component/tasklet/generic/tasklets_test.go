package generic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/tasklet/generic"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/chunkbatch/pkg/batch/test"
)

type source struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

func (source) TableName() string { return "source" }

type target struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

func (target) TableName() string { return "target" }

type staticResolver struct{ conn database.DBConnection }

func (r staticResolver) ResolveDBConnection(ctx context.Context, name string) (database.DBConnection, error) {
	return r.conn, nil
}

func newResolver(t *testing.T, sourceIDs, targetIDs []int64) staticResolver {
	t.Helper()
	db := test.NewSQLiteDB(t, &source{}, &target{})
	for _, id := range sourceIDs {
		require.NoError(t, db.Create(&source{ID: id, Name: "n"}).Error)
	}
	for _, id := range targetIDs {
		require.NoError(t, db.Create(&target{ID: id, Name: "n"}).Error)
	}
	conn, err := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "sqlite"}, "workload")
	require.NoError(t, err)
	return staticResolver{conn: conn}
}

func TestTableCleanupTasklet(t *testing.T) {
	resolver := newResolver(t, nil, []int64{1, 2, 3})
	tasklet := generic.NewTableCleanupTasklet(resolver, "workload", "target", &target{})

	se := model.NewStepExecution("cleanup")
	status, err := tasklet.Execute(context.Background(), se)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, status)
	deleted, _ := se.ExecutionContext.GetInt(generic.ContextKeyDeletedRows)
	assert.Equal(t, 3, deleted)

	var ids []int64
	require.NoError(t, resolver.conn.Pluck(context.Background(), "target", "id", "id", &ids))
	assert.Empty(t, ids)
}

func TestIDVerificationTasklet(t *testing.T) {
	odd := func(ids []int64) []int64 {
		var out []int64
		for _, id := range ids {
			if id%2 == 1 {
				out = append(out, id)
			}
		}
		return out
	}

	t.Run("match", func(t *testing.T) {
		resolver := newResolver(t, []int64{1, 2, 3, 4, 5}, []int64{5, 1, 3})
		tasklet := generic.NewIDVerificationTasklet(resolver, "workload", "source", "target", "id", odd)
		se := model.NewStepExecution("verify")
		_, err := tasklet.Execute(context.Background(), se)
		require.NoError(t, err)
		n, _ := se.ExecutionContext.GetInt(generic.ContextKeyVerifiedIDs)
		assert.Equal(t, 3, n)
	})

	t.Run("mismatch", func(t *testing.T) {
		resolver := newResolver(t, []int64{1, 2, 3}, []int64{1, 2})
		tasklet := generic.NewIDVerificationTasklet(resolver, "workload", "source", "target", "id", odd)
		status, err := tasklet.Execute(context.Background(), model.NewStepExecution("verify"))
		require.Error(t, err)
		assert.ErrorIs(t, err, exception.ErrVerificationMismatch)
		assert.True(t, exception.IsFatal(err))
		assert.Contains(t, err.Error(), "Expected: [1 3]. Actual: [1 2]")
		assert.Equal(t, model.ExitStatusFailed, status)
	})

	t.Run("identity by default", func(t *testing.T) {
		resolver := newResolver(t, []int64{1, 2}, []int64{1, 2})
		tasklet := generic.NewIDVerificationTasklet(resolver, "workload", "source", "target", "id", nil)
		_, err := tasklet.Execute(context.Background(), model.NewStepExecution("verify"))
		assert.NoError(t, err)
	})
}

func TestExecutionSummaryTasklet(t *testing.T) {
	je := model.NewJobExecution(model.NewID(), "customerCopyJob", model.NewJobParameters())
	copyStep := model.NewStepExecution("copyCustomer")
	copyStep.Counters = model.ExecutionCounters{
		ItemsRead:             19,
		ItemsSkippedOnRead:    1,
		ItemsSkippedOnProcess: 4,
		ItemsSkippedOnWrite:   3,
		ItemsWritten:          12,
	}
	je.AddStepExecution(copyStep)
	summary := model.NewStepExecution("summary")
	je.AddStepExecution(summary)

	_, err := generic.NewExecutionSummaryTasklet("copyCustomer").Execute(context.Background(), summary)
	require.NoError(t, err)

	for _, ec := range []model.ExecutionContext{summary.ExecutionContext, je.ExecutionContext} {
		total, _ := ec.GetInt(generic.ContextKeySummaryTotal)
		ok, _ := ec.GetInt(generic.ContextKeySummaryOK)
		ko, _ := ec.GetInt(generic.ContextKeySummaryKO)
		assert.Equal(t, []int{20, 12, 8}, []int{total, ok, ko})
	}

	status, err := generic.NewExecutionSummaryTasklet("missing").Execute(context.Background(), summary)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, status)
}
