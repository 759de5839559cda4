// Package runner provides the job implementation that runs its steps one after the other.
package runner

import (
	"context"
	"errors"
	"fmt"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
	exception "github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// ParametersValidator checks the parameters of a launch.
type ParametersValidator func(params model.JobParameters) error

// SequentialJob is a port.Job running its steps in order and stopping at the first failed step.
// On a relaunch, steps already COMPLETED are skipped unless they allow a start when complete.
type SequentialJob struct {
	name           string
	steps          []port.Step
	jobRepository  repository.JobRepository
	jobListeners   []port.JobExecutionListener
	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
	validator      ParametersValidator
}

// Option configures a SequentialJob.
type Option func(*SequentialJob)

// WithJobRepository persists the job and step executions while the job runs.
func WithJobRepository(r repository.JobRepository) Option {
	return func(j *SequentialJob) { j.jobRepository = r }
}

func WithJobListeners(l ...port.JobExecutionListener) Option {
	return func(j *SequentialJob) { j.jobListeners = append(j.jobListeners, l...) }
}

func WithMetricRecorder(r metrics.MetricRecorder) Option {
	return func(j *SequentialJob) { j.metricRecorder = r }
}

func WithTracer(t metrics.Tracer) Option {
	return func(j *SequentialJob) { j.tracer = t }
}

// WithParametersValidator rejects launches whose parameters v refuses.
func WithParametersValidator(v ParametersValidator) Option {
	return func(j *SequentialJob) { j.validator = v }
}

// NewSequentialJob creates a job running steps in order. Step names must be unique.
func NewSequentialJob(name string, steps []port.Step, opts ...Option) (*SequentialJob, error) {
	if len(steps) == 0 {
		return nil, exception.NewBatchErrorf(name, "job '%s' has no steps", name)
	}
	seen := make(map[string]struct{}, len(steps))
	for _, s := range steps {
		if _, dup := seen[s.StepName()]; dup {
			return nil, exception.NewBatchErrorf(name, "job '%s' has two steps named '%s'", name, s.StepName())
		}
		seen[s.StepName()] = struct{}{}
	}

	j := &SequentialJob{
		name:           name,
		steps:          steps,
		metricRecorder: metrics.NewNoOpMetricRecorder(),
		tracer:         metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// JobName implements port.Job.
func (j *SequentialJob) JobName() string {
	return j.name
}

// Steps returns the steps in execution order.
func (j *SequentialJob) Steps() []port.Step {
	return j.steps
}

// ValidateParameters implements port.Job.
func (j *SequentialJob) ValidateParameters(params model.JobParameters) error {
	logger.Debugf("Job '%s': validating JobParameters %s", j.name, params.String())
	if j.validator == nil {
		return nil
	}
	return j.validator(params)
}

func (j *SequentialJob) updateJobExecution(ctx context.Context, jobExecution *model.JobExecution) {
	if j.jobRepository == nil {
		return
	}
	if err := j.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
		logger.Errorf("Job '%s': failed to update JobExecution (ID: %s): %v", j.name, jobExecution.ID, err)
	}
}

// registerStepExecution persists se unless the repository already knows it.
func (j *SequentialJob) registerStepExecution(ctx context.Context, se *model.StepExecution) error {
	if j.jobRepository == nil {
		return nil
	}
	_, err := j.jobRepository.FindStepExecutionByID(ctx, se.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrStepExecutionNotFound) {
		return err
	}
	return j.jobRepository.SaveStepExecution(ctx, se)
}

// Run implements port.Job. The returned error is the one that failed the job; jobExecution
// always ends COMPLETED or FAILED.
func (j *SequentialJob) Run(ctx context.Context, jobExecution *model.JobExecution) (err error) {
	logger.Infof("Starting Job '%s' (Execution ID: %s, restart: %d).", j.name, jobExecution.ID, jobExecution.RestartCount)

	ctx, finishSpan := j.tracer.StartJobSpan(ctx, jobExecution)
	defer finishSpan()

	jobExecution.MarkAsStarted()
	j.updateJobExecution(ctx, jobExecution)
	j.metricRecorder.RecordJobStart(ctx, jobExecution)
	for _, l := range j.jobListeners {
		l.BeforeJob(ctx, jobExecution)
	}

	defer func() {
		if err != nil {
			j.tracer.RecordError(ctx, j.name, err)
			jobExecution.MarkAsFailed(err)
		} else {
			jobExecution.MarkAsCompleted()
		}
		for _, l := range j.jobListeners {
			l.AfterJob(ctx, jobExecution)
		}
		j.metricRecorder.RecordJobEnd(ctx, jobExecution)
		j.updateJobExecution(ctx, jobExecution)

		logger.Infof("Job '%s' (Execution ID: %s) finished. Status: %s, Exit Status: %s",
			j.name, jobExecution.ID, jobExecution.Status, jobExecution.ExitStatus)
		for _, se := range jobExecution.StepExecutions {
			logger.Debugf("  Step '%s': %s (%s) %s", se.StepName, se.Status, se.ExitStatus, se.Counters)
		}
	}()

	for _, step := range j.steps {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Warnf("Job '%s' interrupted before step '%s': %v", j.name, step.StepName(), ctxErr)
			return ctxErr
		}

		stepExecution, run := j.prepareStep(step, jobExecution)
		if !run {
			logger.Infof("Job '%s': step '%s' already completed. Skipping execution.", j.name, step.StepName())
			continue
		}
		if err := j.registerStepExecution(ctx, stepExecution); err != nil {
			return exception.NewBatchError(j.name, fmt.Sprintf("failed to save StepExecution of '%s'", step.StepName()), err, false, false)
		}

		if err := step.Execute(ctx, jobExecution, stepExecution); err != nil {
			logger.Errorf("Job '%s': step '%s' failed: %v", j.name, step.StepName(), err)
			return err
		}
		logger.Infof("Job '%s': step '%s' completed. ExitStatus: %s", j.name, step.StepName(), stepExecution.ExitStatus)
	}
	return nil
}

// prepareStep returns the execution to run step with, or false when the step is skipped.
func (j *SequentialJob) prepareStep(step port.Step, jobExecution *model.JobExecution) (*model.StepExecution, bool) {
	existing := jobExecution.StepExecution(step.StepName())
	switch {
	case existing == nil:
		se := model.NewStepExecution(step.StepName())
		jobExecution.AddStepExecution(se)
		return se, true
	case existing.Status == model.BatchStatusCompleted && !step.AllowStartIfComplete():
		return existing, false
	case existing.Status == model.BatchStatusStarting:
		return existing, true
	default:
		// Completed steps that allow a start, and anything left over, start from scratch.
		se := model.NewStepExecution(step.StepName())
		jobExecution.ReplaceStepExecution(se)
		return se, true
	}
}

var _ port.Job = (*SequentialJob)(nil)
