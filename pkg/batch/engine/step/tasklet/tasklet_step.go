package tasklet

import (
	"context"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
	exception "github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// TaskletStep is a port.Step that runs a single port.Tasklet.
type TaskletStep struct {
	name                   string
	tasklet                port.Tasklet
	allowStartIfComplete   bool
	jobRepository          repository.JobRepository
	stepExecutionListeners []port.StepExecutionListener
	metricRecorder         metrics.MetricRecorder
	tracer                 metrics.Tracer
}

// Option configures a TaskletStep.
type Option func(*TaskletStep)

// WithAllowStartIfComplete makes the step run again on a relaunch even after it completed.
func WithAllowStartIfComplete(allow bool) Option {
	return func(s *TaskletStep) { s.allowStartIfComplete = allow }
}

// WithJobRepository persists the step execution when it starts and ends.
func WithJobRepository(r repository.JobRepository) Option {
	return func(s *TaskletStep) { s.jobRepository = r }
}

func WithStepListeners(l ...port.StepExecutionListener) Option {
	return func(s *TaskletStep) { s.stepExecutionListeners = append(s.stepExecutionListeners, l...) }
}

func WithMetricRecorder(r metrics.MetricRecorder) Option {
	return func(s *TaskletStep) { s.metricRecorder = r }
}

func WithTracer(t metrics.Tracer) Option {
	return func(s *TaskletStep) { s.tracer = t }
}

// NewTaskletStep creates a new TaskletStep instance.
func NewTaskletStep(name string, tasklet port.Tasklet, opts ...Option) *TaskletStep {
	s := &TaskletStep{
		name:           name,
		tasklet:        tasklet,
		metricRecorder: metrics.NewNoOpMetricRecorder(),
		tracer:         metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StepName returns the step name.
func (s *TaskletStep) StepName() string {
	return s.name
}

// AllowStartIfComplete implements port.Step.
func (s *TaskletStep) AllowStartIfComplete() bool {
	return s.allowStartIfComplete
}

func (s *TaskletStep) persist(ctx context.Context, stepExecution *model.StepExecution) error {
	if s.jobRepository == nil {
		return nil
	}
	return s.jobRepository.UpdateStepExecution(ctx, stepExecution)
}

// Execute runs the Tasklet and records its outcome on stepExecution.
func (s *TaskletStep) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) (err error) {
	logger.Infof("TaskletStep '%s' executing.", s.name)

	ctx, endSpan := s.tracer.StartStepSpan(ctx, stepExecution)
	defer endSpan()

	stepExecution.MarkAsStarted()
	if err := s.persist(ctx, stepExecution); err != nil {
		return exception.NewBatchError(s.name, "Failed to update StepExecution status to STARTED", err, false, false)
	}
	s.metricRecorder.RecordStepStart(ctx, stepExecution)

	for _, l := range s.stepExecutionListeners {
		l.BeforeStep(ctx, stepExecution)
	}

	var exitStatus model.ExitStatus
	exitStatus, err = s.tasklet.Execute(ctx, stepExecution)

	if err != nil {
		s.tracer.RecordError(ctx, s.name, err)
		stepExecution.MarkAsFailed(err)
		err = exception.NewBatchError(s.name, "tasklet failed", err, false, false)
	} else {
		stepExecution.MarkAsCompleted()
		if exitStatus != "" {
			stepExecution.ExitStatus = exitStatus
		}
	}

	for _, l := range s.stepExecutionListeners {
		l.AfterStep(ctx, stepExecution)
	}
	s.metricRecorder.RecordStepEnd(ctx, stepExecution)

	if updateErr := s.persist(ctx, stepExecution); updateErr != nil {
		logger.Errorf("TaskletStep '%s': Failed to update final StepExecution state: %v", s.name, updateErr)
		if err == nil {
			err = updateErr
		}
	}

	logger.Infof("TaskletStep '%s' finished. ExitStatus: %s", s.name, stepExecution.ExitStatus)
	return err
}

// Verify that TaskletStep implements the port.Step interface.
var _ port.Step = (*TaskletStep)(nil)
