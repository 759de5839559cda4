package usecase

import (
	"context"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

// JobLauncher runs a job with JobParameters.
type JobLauncher interface {
	// Launch runs jobName to the end and returns its JobExecution. The returned error
	// reports a launch failure only; a job that ran and failed is reported through the
	// status of the execution.
	Launch(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error)
}

// JobOperator performs operations on recorded executions.
type JobOperator interface {
	// Restart relaunches the job instance of a FAILED execution and returns the new execution.
	Restart(ctx context.Context, executionID string) (*model.JobExecution, error)

	// Abandon marks a FAILED execution ABANDONED so it is never restarted.
	Abandon(ctx context.Context, executionID string) error
}

// JobExplorer queries batch metadata (JobInstance, JobExecution).
type JobExplorer interface {
	// GetJobExecution retrieves a JobExecution by its ID.
	GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error)

	// GetJobExecutions retrieves all JobExecutions of a JobInstance, the latest first.
	GetJobExecutions(ctx context.Context, instanceID string) ([]*model.JobExecution, error)

	// GetLastJobExecution retrieves the latest JobExecution of a JobInstance.
	GetLastJobExecution(ctx context.Context, instanceID string) (*model.JobExecution, error)

	// GetJobInstance retrieves a JobInstance by its ID.
	GetJobInstance(ctx context.Context, instanceID string) (*model.JobInstance, error)

	// GetJobNames retrieves all recorded job names.
	GetJobNames(ctx context.Context) ([]string, error)

	// GetParameters retrieves the JobParameters of a JobExecution.
	GetParameters(ctx context.Context, executionID string) (model.JobParameters, error)
}
