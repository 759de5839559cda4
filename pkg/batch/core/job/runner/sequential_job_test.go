package runner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/job/runner"
	"github.com/tigerroll/chunkbatch/pkg/batch/infrastructure/repository/inmemory"
)

type fakeStep struct {
	name          string
	err           error
	allowComplete bool
	calls         int
}

func (s *fakeStep) StepName() string           { return s.name }
func (s *fakeStep) AllowStartIfComplete() bool { return s.allowComplete }
func (s *fakeStep) Execute(_ context.Context, _ *model.JobExecution, se *model.StepExecution) error {
	s.calls++
	se.MarkAsStarted()
	if s.err != nil {
		se.MarkAsFailed(s.err)
		return s.err
	}
	se.MarkAsCompleted()
	return nil
}

type recordingListener struct {
	before, after []model.BatchStatus
}

func (l *recordingListener) BeforeJob(_ context.Context, je *model.JobExecution) {
	l.before = append(l.before, je.Status)
}
func (l *recordingListener) AfterJob(_ context.Context, je *model.JobExecution) {
	l.after = append(l.after, je.Status)
}

func newExecution(t *testing.T, repo *inmemory.InMemoryJobRepository) *model.JobExecution {
	t.Helper()
	ji, err := model.NewJobInstance("customerCopyJob", model.NewJobParameters())
	require.NoError(t, err)
	require.NoError(t, repo.SaveJobInstance(context.Background(), ji))
	je := model.NewJobExecution(ji.ID, ji.JobName, ji.Parameters)
	require.NoError(t, repo.SaveJobExecution(context.Background(), je))
	return je
}

func TestSequentialJob_RunsStepsInOrder(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	cleanup, copyStep, verify := &fakeStep{name: "cleanup"}, &fakeStep{name: "copyCustomer"}, &fakeStep{name: "verify"}
	listener := &recordingListener{}

	job, err := runner.NewSequentialJob("customerCopyJob", []port.Step{cleanup, copyStep, verify},
		runner.WithJobRepository(repo), runner.WithJobListeners(listener))
	require.NoError(t, err)

	je := newExecution(t, repo)
	require.NoError(t, job.Run(context.Background(), je))

	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	assert.Equal(t, model.ExitStatusCompleted, je.ExitStatus)
	require.Len(t, je.StepExecutions, 3)
	assert.Equal(t, "cleanup", je.StepExecutions[0].StepName)
	assert.Equal(t, "verify", je.StepExecutions[2].StepName)
	assert.Equal(t, []model.BatchStatus{model.BatchStatusStarted}, listener.before)
	assert.Equal(t, []model.BatchStatus{model.BatchStatusCompleted}, listener.after)

	stored, err := repo.FindJobExecutionByID(context.Background(), je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, stored.Status)
	for _, se := range je.StepExecutions {
		_, err := repo.FindStepExecutionByID(context.Background(), se.ID)
		assert.NoError(t, err)
	}
}

func TestSequentialJob_StopsAtFailedStep(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	boom := errors.New("boom")
	cleanup, copyStep, verify := &fakeStep{name: "cleanup"}, &fakeStep{name: "copyCustomer", err: boom}, &fakeStep{name: "verify"}

	job, err := runner.NewSequentialJob("customerCopyJob", []port.Step{cleanup, copyStep, verify}, runner.WithJobRepository(repo))
	require.NoError(t, err)

	je := newExecution(t, repo)
	err = job.Run(context.Background(), je)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, model.BatchStatusFailed, je.Status)
	assert.Contains(t, je.Failures, "boom")
	assert.Equal(t, 0, verify.calls)
	assert.Nil(t, je.StepExecution("verify"))
}

func TestSequentialJob_RestartSkipsCompletedSteps(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	cleanup := &fakeStep{name: "cleanup", allowComplete: true}
	copyStep := &fakeStep{name: "copyCustomer"}
	verify := &fakeStep{name: "verify", err: errors.New("mismatch")}

	job, err := runner.NewSequentialJob("customerCopyJob", []port.Step{cleanup, copyStep, verify}, runner.WithJobRepository(repo))
	require.NoError(t, err)

	first := newExecution(t, repo)
	require.Error(t, job.Run(context.Background(), first))

	verify.err = nil
	second := model.NewJobExecution(first.JobInstanceID, first.JobName, first.Parameters)
	second.RestartCount = 1
	for _, se := range first.StepExecutions {
		second.AddStepExecution(se.CopyForRestart())
	}
	require.NoError(t, repo.SaveJobExecution(context.Background(), second))

	require.NoError(t, job.Run(context.Background(), second))
	assert.Equal(t, model.BatchStatusCompleted, second.Status)
	assert.Equal(t, 2, cleanup.calls, "cleanup allows a start when complete")
	assert.Equal(t, 1, copyStep.calls, "completed copy step is not run again")
	assert.Equal(t, 2, verify.calls)
	assert.Equal(t, model.ExitStatusNoop, second.StepExecution("copyCustomer").ExitStatus)
	assert.Equal(t, model.ExitStatusCompleted, second.StepExecution("cleanup").ExitStatus)
}

func TestSequentialJob_Validation(t *testing.T) {
	_, err := runner.NewSequentialJob("empty", nil)
	assert.Error(t, err)

	_, err = runner.NewSequentialJob("dup", []port.Step{&fakeStep{name: "a"}, &fakeStep{name: "a"}})
	assert.Error(t, err)

	job, err := runner.NewSequentialJob("job", []port.Step{&fakeStep{name: "a"}},
		runner.WithParametersValidator(func(p model.JobParameters) error {
			if _, ok := p.GetString("input"); !ok {
				return errors.New("input is required")
			}
			return nil
		}))
	require.NoError(t, err)
	assert.Error(t, job.ValidateParameters(model.NewJobParameters()))
	params := model.NewJobParameters()
	params.Put("input", "customer_tmp")
	assert.NoError(t, job.ValidateParameters(params))
}

func TestSequentialJob_CancelledContext(t *testing.T) {
	step := &fakeStep{name: "a"}
	job, err := runner.NewSequentialJob("job", []port.Step{step})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	je := model.NewJobExecution("instance", "job", model.NewJobParameters())
	assert.ErrorIs(t, job.Run(ctx, je), context.Canceled)
	assert.Equal(t, model.BatchStatusFailed, je.Status)
	assert.Equal(t, 0, step.calls)
}
