// Package metrics declares the observability ports of the engine. Implementations live in
// infrastructure/metrics; the NoOp variants here are used when nothing else is configured.
package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

// Skip and retry phases reported to RecordItemSkip and RecordItemRetry.
const (
	PhaseRead    = "read"
	PhaseProcess = "process"
	PhaseWrite   = "write"
)

// MetricRecorder records job, step, item and chunk events.
type MetricRecorder interface {
	// RecordJobStart records the start of a JobExecution.
	RecordJobStart(ctx context.Context, execution *model.JobExecution)

	// RecordJobEnd records the end of a JobExecution, including its final status.
	RecordJobEnd(ctx context.Context, execution *model.JobExecution)

	RecordStepStart(ctx context.Context, execution *model.StepExecution)
	RecordStepEnd(ctx context.Context, execution *model.StepExecution)

	// RecordItemRead records one item delivered by a reader.
	RecordItemRead(ctx context.Context, stepName string)

	// RecordItemProcess records one item transformed by a processor.
	RecordItemProcess(ctx context.Context, stepName string)

	// RecordItemWrite records count items handed to a writer in one successful call.
	RecordItemWrite(ctx context.Context, stepName string, count int)

	// RecordItemSkip records count items dropped by the skip policy in phase (PhaseRead, PhaseProcess or PhaseWrite).
	RecordItemSkip(ctx context.Context, stepName string, phase string, count int)

	// RecordItemRetry records one retry decision in phase.
	RecordItemRetry(ctx context.Context, stepName string, phase string)

	// RecordChunkCommit records a committed chunk holding count items.
	RecordChunkCommit(ctx context.Context, stepName string, count int)

	// RecordChunkRollback records a rolled back chunk.
	RecordChunkRollback(ctx context.Context, stepName string)

	// RecordDuration records the execution time of a named operation.
	//
	// ctx: The context for the operation.
	// name: The name of the duration to record (e.g., "archive_export").
	// duration: The length of the duration to record.
	// tags: Additional attributes, for example `{"step": "archive", "status": "success"}`.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
