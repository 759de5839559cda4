package usecase

import (
	"context"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

const explorerModule = "job_explorer"

// SimpleJobExplorer implements JobExplorer over a JobRepository.
type SimpleJobExplorer struct {
	jobRepository repository.JobRepository
}

// NewSimpleJobExplorer creates a new SimpleJobExplorer.
func NewSimpleJobExplorer(jobRepository repository.JobRepository) *SimpleJobExplorer {
	return &SimpleJobExplorer{jobRepository: jobRepository}
}

func (e *SimpleJobExplorer) GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error) {
	jobExecution, err := e.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return nil, exception.NewBatchError(explorerModule, "failed to get JobExecution "+executionID, err, false, false)
	}
	return jobExecution, nil
}

func (e *SimpleJobExplorer) GetJobExecutions(ctx context.Context, instanceID string) ([]*model.JobExecution, error) {
	jobInstance, err := e.GetJobInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	jobExecutions, err := e.jobRepository.FindJobExecutionsByJobInstance(ctx, jobInstance)
	if err != nil {
		return nil, exception.NewBatchError(explorerModule, "failed to get JobExecutions of JobInstance "+instanceID, err, false, false)
	}
	return jobExecutions, nil
}

func (e *SimpleJobExplorer) GetLastJobExecution(ctx context.Context, instanceID string) (*model.JobExecution, error) {
	jobExecution, err := e.jobRepository.FindLatestJobExecution(ctx, instanceID)
	if err != nil {
		return nil, exception.NewBatchError(explorerModule, "failed to get the last JobExecution of JobInstance "+instanceID, err, false, false)
	}
	return jobExecution, nil
}

func (e *SimpleJobExplorer) GetJobInstance(ctx context.Context, instanceID string) (*model.JobInstance, error) {
	jobInstance, err := e.jobRepository.FindJobInstanceByID(ctx, instanceID)
	if err != nil {
		return nil, exception.NewBatchError(explorerModule, "failed to get JobInstance "+instanceID, err, false, false)
	}
	return jobInstance, nil
}

func (e *SimpleJobExplorer) GetJobNames(ctx context.Context) ([]string, error) {
	return e.jobRepository.GetJobNames(ctx)
}

func (e *SimpleJobExplorer) GetParameters(ctx context.Context, executionID string) (model.JobParameters, error) {
	jobExecution, err := e.GetJobExecution(ctx, executionID)
	if err != nil {
		return model.JobParameters{}, err
	}
	return jobExecution.Parameters, nil
}

var _ JobExplorer = (*SimpleJobExplorer)(nil)
