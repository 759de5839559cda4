package inmemory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/chunkbatch/pkg/batch/infrastructure/repository/inmemory"
)

func TestInMemoryJobRepository_Instances(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	params := model.NewJobParameters()
	params.Put("run.id", 1)
	ji, err := model.NewJobInstance("customerCopyJob", params)
	require.NoError(t, err)
	require.NoError(t, repo.SaveJobInstance(ctx, ji))
	assert.Error(t, repo.SaveJobInstance(ctx, ji), "duplicate IDs are rejected")

	twin, err := model.NewJobInstance("customerCopyJob", params)
	require.NoError(t, err)
	assert.Error(t, repo.SaveJobInstance(ctx, twin), "one instance per name and parameters")

	same := model.NewJobParameters()
	same.Put("run.id", int64(1))
	found, err := repo.FindJobInstanceByJobNameAndParameters(ctx, "customerCopyJob", same)
	require.NoError(t, err)
	assert.Equal(t, ji.ID, found.ID)

	other := model.NewJobParameters()
	other.Put("run.id", 2)
	_, err = repo.FindJobInstanceByJobNameAndParameters(ctx, "customerCopyJob", other)
	assert.ErrorIs(t, err, repository.ErrJobInstanceNotFound)

	count, err := repo.GetJobInstanceCount(ctx, "customerCopyJob")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	names, err := repo.GetJobNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"customerCopyJob"}, names)
}

func TestInMemoryJobRepository_Executions(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	ji, err := model.NewJobInstance("customerCopyJob", model.NewJobParameters())
	require.NoError(t, err)
	require.NoError(t, repo.SaveJobInstance(ctx, ji))

	first := model.NewJobExecution(ji.ID, ji.JobName, ji.Parameters)
	first.AddStepExecution(model.NewStepExecution("cleanup"))
	require.NoError(t, repo.SaveJobExecution(ctx, first))

	_, err = repo.FindStepExecutionByID(ctx, first.StepExecutions[0].ID)
	require.NoError(t, err, "steps carried by a saved execution are registered")

	second := model.NewJobExecution(ji.ID, ji.JobName, ji.Parameters)
	second.RestartCount = 1
	require.NoError(t, repo.SaveJobExecution(ctx, second))

	latest, err := repo.FindLatestJobExecution(ctx, ji.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	all, err := repo.FindJobExecutionsByJobInstance(ctx, ji)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	_, err = repo.FindLatestJobExecution(ctx, "unknown")
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)

	se := model.NewStepExecution("copyCustomer")
	assert.Error(t, repo.UpdateStepExecution(ctx, se))
	require.NoError(t, repo.SaveStepExecution(ctx, se))
	se.Counters.ItemsRead = 3
	require.NoError(t, repo.UpdateStepExecution(ctx, se))

	stored, err := repo.FindStepExecutionByID(ctx, se.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Counters.ItemsRead)

	_, err = repo.FindStepExecutionByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrStepExecutionNotFound)
}
