package metrics

import (
	"context"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

// Tracer creates spans for jobs, steps and chunks.
type Tracer interface {
	// StartJobSpan starts a span for a JobExecution.
	//
	// Returns: A context carrying the new span, and a function ending it.
	StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func())

	// StartStepSpan starts a span for a StepExecution, usually as a child of the job span in ctx.
	StartStepSpan(ctx context.Context, execution *model.StepExecution) (context.Context, func())

	// StartChunkSpan starts a span for chunk number chunkIndex (zero based) of stepName.
	StartChunkSpan(ctx context.Context, stepName string, chunkIndex int) (context.Context, func())

	// RecordError records err on the span in ctx.
	//
	// module: The component that raised err (e.g., "reader", "processor").
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records a named event on the span in ctx.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
