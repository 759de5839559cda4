package usecase

import (
	"context"
	"fmt"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

const operatorModule = "job_operator"

// DefaultJobOperator implements JobOperator with a JobRepository and a JobLauncher.
type DefaultJobOperator struct {
	jobRepository repository.JobRepository
	jobLauncher   JobLauncher
}

// NewDefaultJobOperator creates a new DefaultJobOperator.
func NewDefaultJobOperator(jobRepository repository.JobRepository, jobLauncher JobLauncher) *DefaultJobOperator {
	return &DefaultJobOperator{
		jobRepository: jobRepository,
		jobLauncher:   jobLauncher,
	}
}

// Restart implements JobOperator. Only the latest execution of an instance can be restarted,
// and only when it FAILED.
func (o *DefaultJobOperator) Restart(ctx context.Context, executionID string) (*model.JobExecution, error) {
	prev, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return nil, exception.NewBatchError(operatorModule, fmt.Sprintf("failed to load JobExecution (ID: %s)", executionID), err, false, false)
	}
	if prev.Status != model.BatchStatusFailed {
		return nil, exception.NewBatchErrorf(operatorModule, "JobExecution (ID: %s) is not restartable (status: %s)", executionID, prev.Status)
	}

	latest, err := o.jobRepository.FindLatestJobExecution(ctx, prev.JobInstanceID)
	if err != nil {
		return nil, exception.NewBatchError(operatorModule, "failed to load the latest JobExecution", err, false, false)
	}
	if latest.ID != prev.ID {
		return nil, exception.NewBatchErrorf(operatorModule, "JobExecution (ID: %s) was superseded by %s", executionID, latest.ID)
	}

	logger.Infof("Restarting Job '%s' from JobExecution (ID: %s).", prev.JobName, executionID)
	return o.jobLauncher.Launch(ctx, prev.JobName, prev.Parameters)
}

// Abandon implements JobOperator. Abandoning an ABANDONED execution is a no-op.
func (o *DefaultJobOperator) Abandon(ctx context.Context, executionID string) error {
	jobExecution, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return exception.NewBatchError(operatorModule, fmt.Sprintf("failed to load JobExecution (ID: %s)", executionID), err, false, false)
	}
	if jobExecution.Status == model.BatchStatusAbandoned {
		logger.Infof("JobExecution (ID: %s) is already ABANDONED.", executionID)
		return nil
	}
	if err := jobExecution.MarkAsAbandoned(); err != nil {
		return exception.NewBatchError(operatorModule, fmt.Sprintf("JobExecution (ID: %s) cannot be abandoned", executionID), err, false, false)
	}
	if err := o.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
		return exception.NewBatchError(operatorModule, fmt.Sprintf("failed to update JobExecution (ID: %s)", executionID), err, false, false)
	}
	logger.Infof("JobExecution (ID: %s) is now ABANDONED.", executionID)
	return nil
}

var _ JobOperator = (*DefaultJobOperator)(nil)
