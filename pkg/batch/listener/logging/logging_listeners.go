// Package logging provides listeners that write job, step, chunk and skip events to the logger.
package logging

import (
	"context"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// --- Job Execution Listener ---

type LoggingJobListener struct{}

func NewLoggingJobListener() *LoggingJobListener {
	return &LoggingJobListener{}
}

func (l *LoggingJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	logger.Infof("JobExecutionListener: BeforeJob - JobName: %s, ID: %s, Params: %s", jobExecution.JobName, jobExecution.ID, jobExecution.Parameters.String())
}

func (l *LoggingJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	logger.Infof("JobExecutionListener: AfterJob - JobName: %s, Status: %s, ExitStatus: %s, %s",
		jobExecution.JobName, jobExecution.Status, jobExecution.ExitStatus, jobExecution.Counters())
	for _, f := range jobExecution.Failures {
		logger.Errorf("JobExecutionListener: AfterJob - JobName: %s, Failure: %s", jobExecution.JobName, f)
	}
}

var _ port.JobExecutionListener = (*LoggingJobListener)(nil)

// --- Step Execution Listener ---

type LoggingStepListener struct{}

func NewLoggingStepListener() *LoggingStepListener {
	return &LoggingStepListener{}
}

func (l *LoggingStepListener) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Infof("StepExecutionListener: BeforeStep - StepName: %s, ID: %s", stepExecution.StepName, stepExecution.ID)
}

func (l *LoggingStepListener) AfterStep(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Infof("StepExecutionListener: AfterStep - StepName: %s, Status: %s, ExitStatus: %s, %s",
		stepExecution.StepName, stepExecution.Status, stepExecution.ExitStatus, stepExecution.Counters)
}

var _ port.StepExecutionListener = (*LoggingStepListener)(nil)

// --- Chunk Listener ---

// LoggingChunkListener frames every chunk transaction in the log.
type LoggingChunkListener struct{}

func NewLoggingChunkListener() *LoggingChunkListener {
	return &LoggingChunkListener{}
}

func (l *LoggingChunkListener) BeforeChunk(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Infof(">>>>>>>>>> Starting chunk (transaction started) - StepName: %s", stepExecution.StepName)
	logger.Debugf("ChunkListener: BeforeChunk - %s", stepExecution.Counters)
}

func (l *LoggingChunkListener) AfterChunk(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Debugf("ChunkListener: AfterChunk - %s", stepExecution.Counters)
	logger.Infof("********** Chunk OK (transaction committed) - StepName: %s", stepExecution.StepName)
}

func (l *LoggingChunkListener) AfterChunkError(ctx context.Context, stepExecution *model.StepExecution, err error) {
	logger.Debugf("ChunkListener: AfterChunkError - %s", stepExecution.Counters)
	logger.Warnf("xxxxxxxxxx Chunk FAILED (transaction rolled back) - StepName: %s, Error: %v", stepExecution.StepName, err)
}

var _ port.ChunkListener = (*LoggingChunkListener)(nil)

// --- Skip Listener ---

type LoggingSkipListener struct{}

func NewLoggingSkipListener() *LoggingSkipListener {
	return &LoggingSkipListener{}
}

func (l *LoggingSkipListener) OnSkipRead(ctx context.Context, err error) {
	logger.Warnf("SkipListener: OnSkipRead - Skipping item due to error: %v", err)
}

func (l *LoggingSkipListener) OnSkipProcess(ctx context.Context, item interface{}, err error) {
	logger.Warnf("SkipListener: OnSkipProcess - Skipping item: %+v, Error: %v", item, err)
}

func (l *LoggingSkipListener) OnSkipWrite(ctx context.Context, items []interface{}, err error) {
	logger.Warnf("SkipListener: OnSkipWrite - Skipping %d items: %+v, Error: %v", len(items), items, err)
}

var _ port.SkipListener = (*LoggingSkipListener)(nil)
