// Package repository declares where job, step and instance metadata are kept between launches.
package repository

import (
	"context"
	"errors"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

var (
	ErrJobInstanceNotFound   = errors.New("job instance not found")
	ErrJobExecutionNotFound  = errors.New("job execution not found")
	ErrStepExecutionNotFound = errors.New("step execution not found")
)

func init() {
	exception.RegisterErrorType("ErrJobInstanceNotFound", ErrJobInstanceNotFound)
	exception.RegisterErrorType("ErrJobExecutionNotFound", ErrJobExecutionNotFound)
	exception.RegisterErrorType("ErrStepExecutionNotFound", ErrStepExecutionNotFound)
}

// JobInstance stores job instances. A job name and a parameters hash identify one instance.
type JobInstance interface {
	SaveJobInstance(ctx context.Context, instance *model.JobInstance) error
	FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error)
	// FindJobInstanceByJobNameAndParameters returns ErrJobInstanceNotFound when jobName was
	// never launched with params.
	FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error)
	GetJobInstanceCount(ctx context.Context, jobName string) (int, error)
	GetJobNames(ctx context.Context) ([]string, error)
}

// JobExecution stores the launches of job instances.
type JobExecution interface {
	// SaveJobExecution persists a new execution together with the step executions it holds.
	SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error
	UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error
	FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error)
	// FindLatestJobExecution is what a relaunch inspects to decide between restart and rejection.
	FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error)
	// FindJobExecutionsByJobInstance lists the executions of an instance, latest first.
	FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *model.JobInstance) ([]*model.JobExecution, error)
}

// StepExecution stores step executions. Steps update theirs after every chunk.
type StepExecution interface {
	SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error
	UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error
	FindStepExecutionByID(ctx context.Context, executionID string) (*model.StepExecution, error)
}

// JobRepository persists batch execution metadata.
type JobRepository interface {
	JobInstance
	JobExecution
	StepExecution

	// Close releases resources used by the repository.
	Close() error
}
