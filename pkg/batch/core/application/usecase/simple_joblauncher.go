package usecase

import (
	"context"
	"errors"
	"fmt"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	support "github.com/tigerroll/chunkbatch/pkg/batch/core/config/support"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

const (
	launcherModule = "job_launcher"
	maxIncrements  = 10000
)

// SimpleJobLauncher implements JobLauncher by running the job in the calling goroutine.
type SimpleJobLauncher struct {
	jobRepository repository.JobRepository
	jobFactory    *support.JobFactory
}

// NewSimpleJobLauncher creates a new SimpleJobLauncher.
func NewSimpleJobLauncher(repo repository.JobRepository, factory *support.JobFactory) *SimpleJobLauncher {
	return &SimpleJobLauncher{
		jobRepository: repo,
		jobFactory:    factory,
	}
}

// Launch implements JobLauncher.
//
// Parameters matching no recorded instance create a new instance, after the job's
// JobParametersIncrementer (if any) derived fresh parameters. Parameters matching an
// instance whose latest execution FAILED relaunch it: the failed execution becomes
// ABANDONED and a new execution carries its steps over, completed ones as NOOP.
// A COMPLETED instance is rejected with ErrJobInstanceAlreadyComplete.
func (l *SimpleJobLauncher) Launch(ctx context.Context, jobName string, jobParameters model.JobParameters) (*model.JobExecution, error) {
	logger.Infof("Launching Job '%s'. Parameters: %s", jobName, jobParameters.String())

	job, err := l.jobFactory.CreateJob(ctx, jobName)
	if err != nil {
		return nil, exception.NewBatchError(launcherModule, fmt.Sprintf("failed to create job '%s'", jobName), err, false, false)
	}
	if err := job.ValidateParameters(jobParameters); err != nil {
		logger.Errorf("Job '%s': JobParameters validation failed: %v", jobName, err)
		return nil, exception.NewBatchError(launcherModule, "JobParameters validation error", err, false, false)
	}

	existingInstance, err := l.jobRepository.FindJobInstanceByJobNameAndParameters(ctx, jobName, jobParameters)
	if err != nil && !errors.Is(err, repository.ErrJobInstanceNotFound) {
		return nil, exception.NewBatchError(launcherModule, "failed to search for existing JobInstance", err, false, false)
	}

	var jobExecution *model.JobExecution
	if existingInstance != nil {
		jobExecution, err = l.relaunch(ctx, existingInstance)
	} else {
		jobExecution, err = l.newInstance(ctx, jobName, jobParameters)
	}
	if err != nil {
		return nil, err
	}

	if err := l.jobRepository.SaveJobExecution(ctx, jobExecution); err != nil {
		logger.Errorf("Failed to persist JobExecution (ID: %s) initially: %v", jobExecution.ID, err)
		return nil, exception.NewBatchError(launcherModule, "failed to save JobExecution", err, false, false)
	}
	logger.Debugf("Saved JobExecution (ID: %s, Status: %s).", jobExecution.ID, jobExecution.Status)

	if runErr := job.Run(ctx, jobExecution); runErr != nil {
		logger.Warnf("Job '%s' (Execution ID: %s) ended with an error: %v", jobName, jobExecution.ID, runErr)
	}
	return jobExecution, nil
}

func (l *SimpleJobLauncher) newInstance(ctx context.Context, jobName string, jobParameters model.JobParameters) (*model.JobExecution, error) {
	if incrementer := l.jobFactory.GetJobParametersIncrementer(jobName); incrementer != nil {
		next, err := l.nextParameters(ctx, jobName, jobParameters, incrementer)
		if err != nil {
			return nil, err
		}
		jobParameters = next
		logger.Infof("Generated new JobParameters using JobParametersIncrementer: %s", jobParameters.String())
	}

	jobInstance, err := model.NewJobInstance(jobName, jobParameters)
	if err != nil {
		return nil, exception.NewBatchError(launcherModule, "failed to create JobInstance", err, false, false)
	}
	if err := l.jobRepository.SaveJobInstance(ctx, jobInstance); err != nil {
		return nil, exception.NewBatchError(launcherModule, fmt.Sprintf("failed to save new JobInstance for '%s'", jobName), err, false, false)
	}
	logger.Infof("Created new JobInstance (ID: %s, JobName: %s).", jobInstance.ID, jobName)
	return model.NewJobExecution(jobInstance.ID, jobName, jobInstance.Parameters), nil
}

// nextParameters applies incrementer until the parameters identify no recorded instance.
func (l *SimpleJobLauncher) nextParameters(ctx context.Context, jobName string, params model.JobParameters, incrementer port.JobParametersIncrementer) (model.JobParameters, error) {
	for i := 0; i < maxIncrements; i++ {
		params = incrementer.GetNext(params)
		_, err := l.jobRepository.FindJobInstanceByJobNameAndParameters(ctx, jobName, params)
		if errors.Is(err, repository.ErrJobInstanceNotFound) {
			return params, nil
		}
		if err != nil {
			return params, exception.NewBatchError(launcherModule, "failed to search for existing JobInstance", err, false, false)
		}
	}
	return params, exception.NewBatchErrorf(launcherModule, "%v produced no unused JobParameters after %d attempts", incrementer, maxIncrements)
}

func (l *SimpleJobLauncher) relaunch(ctx context.Context, jobInstance *model.JobInstance) (*model.JobExecution, error) {
	latest, err := l.jobRepository.FindLatestJobExecution(ctx, jobInstance.ID)
	if errors.Is(err, repository.ErrJobExecutionNotFound) {
		logger.Infof("Creating new JobExecution for existing JobInstance (ID: %s).", jobInstance.ID)
		return model.NewJobExecution(jobInstance.ID, jobInstance.JobName, jobInstance.Parameters), nil
	}
	if err != nil {
		return nil, exception.NewBatchError(launcherModule, "failed to search for the latest JobExecution", err, false, false)
	}

	switch latest.Status {
	case model.BatchStatusCompleted:
		return nil, exception.NewBatchError(launcherModule,
			fmt.Sprintf("JobInstance (ID: %s) of '%s' is already complete", jobInstance.ID, jobInstance.JobName),
			exception.ErrJobInstanceAlreadyComplete, false, false)
	case model.BatchStatusFailed:
	default:
		return nil, exception.NewBatchErrorf(launcherModule,
			"JobExecution (ID: %s, Status: %s) of JobInstance (ID: %s) cannot be relaunched",
			latest.ID, latest.Status, jobInstance.ID)
	}

	if err := latest.MarkAsAbandoned(); err != nil {
		return nil, exception.NewBatchError(launcherModule, "failed to abandon the failed JobExecution", err, false, false)
	}
	if err := l.jobRepository.UpdateJobExecution(ctx, latest); err != nil {
		logger.Warnf("Failed to update JobExecution (ID: %s) to ABANDONED: %v", latest.ID, err)
	}
	logger.Infof("JobExecution (ID: %s) is now ABANDONED.", latest.ID)

	restart := model.NewJobExecution(jobInstance.ID, jobInstance.JobName, latest.Parameters)
	restart.RestartCount = latest.RestartCount + 1
	for k, v := range latest.ExecutionContext {
		restart.ExecutionContext[k] = v
	}
	for _, prev := range latest.StepExecutions {
		restart.AddStepExecution(prev.CopyForRestart())
	}
	logger.Infof("Created restart JobExecution (ID: %s). Restart Count: %d", restart.ID, restart.RestartCount)
	return restart, nil
}

var _ JobLauncher = (*SimpleJobLauncher)(nil)
