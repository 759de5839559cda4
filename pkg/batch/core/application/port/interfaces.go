// Package port declares the contracts between the chunk engine and the components it drives.
package port

import (
	"context"
	"errors"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

// ErrEndOfStream is returned by ItemReader.Read when the source is exhausted.
var ErrEndOfStream = errors.New("end of stream")

// Identifiable is implemented by items that carry a stable identity.
type Identifiable interface {
	ItemID() int64
}

// PagedSource returns fixed-size pages of an ordered data set.
// I is the type of a source item.
type PagedSource[I any] interface {
	// FetchPage returns page pageIndex (zero based) of at most pageSize items.
	// The same arguments always return the same items in the same order while the
	// data set is unchanged. A short page is the last one, an empty page means the
	// data set is exhausted.
	//
	// Parameters:
	//   ctx: The context for the operation. The chunk transaction, if any, is found with tx.FromContext.
	//   pageIndex: The zero-based page number.
	//   pageSize: The maximum number of items to return. Must be positive.
	//
	// Returns:
	//   []I: The items of the page.
	//   error: A SourceUnavailable error when the backing store fails.
	FetchPage(ctx context.Context, pageIndex, pageSize int) ([]I, error)
}

// ItemReader delivers items one at a time.
// I is the type of item to be read.
type ItemReader[I any] interface {
	// Open prepares the reader for a step execution.
	Open(ctx context.Context, ec model.ExecutionContext) error
	// Read returns the next item, or ErrEndOfStream when there are no more items.
	// A failure attributable to one item is reported as a ReadError and the reader
	// stays positioned after that item.
	Read(ctx context.Context) (I, error)
	// Close releases the reader's resources.
	Close(ctx context.Context) error
}

// ChunkAwareReader is an ItemReader that tracks chunk boundaries itself. The chunk
// executor tells it about item failures and committed chunks so the reader knows
// when the next Read starts a new chunk.
type ChunkAwareReader[I any] interface {
	ItemReader[I]
	// ChunkSize is the number of item slots in one chunk.
	ChunkSize() int
	// OnItemError is called once for every item whose processing failed and was skipped.
	OnItemError()
	// OnChunkSuccess is called after a chunk has been committed or skipped as a whole.
	OnChunkSuccess()
}

// ItemProcessor transforms one input item into one output item.
// I is the type of input item, O is the type of output item.
type ItemProcessor[I, O any] interface {
	// Process transforms item. A failure concerns this item only and is reported as a ProcessError.
	Process(ctx context.Context, item I) (O, error)
}

// ItemWriter persists the surviving items of a chunk.
// O is the type of item to be written.
type ItemWriter[O any] interface {
	// Open prepares the writer for a step execution.
	Open(ctx context.Context, ec model.ExecutionContext) error
	// Write receives every surviving item of the chunk in one call. A failure is a
	// WriteError for the whole batch. Writers stage into the working set of the
	// chunk transaction; nothing is visible before the commit.
	Write(ctx context.Context, items []O) error
	// Close releases the writer's resources.
	Close(ctx context.Context) error
}

// Tasklet is a step that performs a single operation.
type Tasklet interface {
	// Execute runs the operation and returns the exit status of the step.
	Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error)
}

// Step is a unit of work executed by a job.
type Step interface {
	// StepName returns the logical name of the step. Names are unique within a job.
	StepName() string
	// Execute runs the step. The step updates stepExecution (status, counters) itself.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   jobExecution: The running JobExecution.
	//   stepExecution: The StepExecution of this attempt, already attached to jobExecution.
	//
	// Returns:
	//   error: An error if the step failed. Item failures resolved by the fault policy are not errors.
	Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error
	// AllowStartIfComplete reports whether the step runs again on a relaunch even if it already completed.
	AllowStartIfComplete() bool
}

// Job is an ordered sequence of steps.
type Job interface {
	// JobName returns the logical name of the job.
	JobName() string
	// Run executes the steps of the job against jobExecution.
	Run(ctx context.Context, jobExecution *model.JobExecution) error
	// ValidateParameters validates job parameters before an execution is created.
	ValidateParameters(params model.JobParameters) error
}

// JobParametersIncrementer derives fresh parameters for a new job instance.
type JobParametersIncrementer interface {
	// GetNext generates the next JobParameters based on the current parameters.
	GetNext(params model.JobParameters) model.JobParameters
}

// ChunkListener is notified around every chunk.
type ChunkListener interface {
	// BeforeChunk is called after the chunk transaction has begun and before the first read.
	BeforeChunk(ctx context.Context, stepExecution *model.StepExecution)
	// AfterChunk is called after the chunk was committed.
	AfterChunk(ctx context.Context, stepExecution *model.StepExecution)
	// AfterChunkError is called after a rollback caused by err, whether the step goes on
	// (the failed batch was skipped or the chunk is retried) or fails.
	AfterChunkError(ctx context.Context, stepExecution *model.StepExecution, err error)
}

// SkipListener is notified whenever the skip policy tolerates a failure.
type SkipListener interface {
	OnSkipRead(ctx context.Context, err error)
	OnSkipProcess(ctx context.Context, item interface{}, err error)
	// OnSkipWrite receives every item of the batch dropped by a skipped write.
	OnSkipWrite(ctx context.Context, items []interface{}, err error)
}

// StepExecutionListener is notified before and after a step execution.
type StepExecutionListener interface {
	BeforeStep(ctx context.Context, stepExecution *model.StepExecution)
	// AfterStep is called regardless of success or failure.
	AfterStep(ctx context.Context, stepExecution *model.StepExecution)
}

// JobExecutionListener is notified before and after a job execution.
type JobExecutionListener interface {
	BeforeJob(ctx context.Context, jobExecution *model.JobExecution)
	// AfterJob is called regardless of success or failure.
	AfterJob(ctx context.Context, jobExecution *model.JobExecution)
}
