package metrics

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
)

// OpenTelemetryRecorder is an implementation of metrics.MetricRecorder on an OpenTelemetry meter.
// Instrument names follow the Prometheus recorder with dots instead of underscores.
type OpenTelemetryRecorder struct {
	jobCount       metric.Int64Counter
	jobDuration    metric.Float64Histogram
	stepCount      metric.Int64Counter
	stepDuration   metric.Float64Histogram
	itemsRead      metric.Int64Counter
	itemsProcessed metric.Int64Counter
	itemsWritten   metric.Int64Counter
	itemsSkipped   metric.Int64Counter
	itemRetries    metric.Int64Counter
	chunkCommits   metric.Int64Counter
	chunkRollbacks metric.Int64Counter
	opDuration     metric.Float64Histogram
}

// NewOpenTelemetryRecorder creates the instruments on a meter of provider.
func NewOpenTelemetryRecorder(provider metric.MeterProvider) (*OpenTelemetryRecorder, error) {
	meter := provider.Meter(InstrumentationName)
	r := &OpenTelemetryRecorder{}
	var errs *multierror.Error

	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = multierror.Append(errs, err)
		return c
	}
	histogram := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
		errs = multierror.Append(errs, err)
		return h
	}

	r.jobCount = counter("batch.job.executions", "Job executions by final status.")
	r.jobDuration = histogram("batch.job.duration", "Duration of job executions.")
	r.stepCount = counter("batch.step.executions", "Step executions by final status.")
	r.stepDuration = histogram("batch.step.duration", "Duration of step executions.")
	r.itemsRead = counter("batch.step.items.read", "Items read.")
	r.itemsProcessed = counter("batch.step.items.processed", "Items processed.")
	r.itemsWritten = counter("batch.step.items.written", "Items written.")
	r.itemsSkipped = counter("batch.step.items.skipped", "Items skipped by phase.")
	r.itemRetries = counter("batch.step.item.retries", "Retry decisions by phase.")
	r.chunkCommits = counter("batch.step.chunk.commits", "Committed chunks.")
	r.chunkRollbacks = counter("batch.step.chunk.rollbacks", "Rolled back chunks.")
	r.opDuration = histogram("batch.operation.duration", "Duration of named operations.")

	// multierror.Append ignores nil errors.
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return r, nil
}

func stepAttr(stepName string, extra ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(append([]attribute.KeyValue{attribute.String("step_name", stepName)}, extra...)...)
}

func (r *OpenTelemetryRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {}

func (r *OpenTelemetryRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	attrs := metric.WithAttributes(
		attribute.String("job_name", execution.JobName),
		attribute.String("status", execution.Status.String()),
		attribute.String("exit_status", execution.ExitStatus.String()),
	)
	r.jobCount.Add(ctx, 1, attrs)
	if execution.EndTime != nil {
		r.jobDuration.Record(ctx, execution.EndTime.Sub(execution.StartTime).Seconds(), attrs)
	}
}

func (r *OpenTelemetryRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	// Step totals are recorded on completion.
}

func (r *OpenTelemetryRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	attrs := stepAttr(execution.StepName,
		attribute.String("status", execution.Status.String()),
		attribute.String("exit_status", execution.ExitStatus.String()),
	)
	r.stepCount.Add(ctx, 1, attrs)
	if execution.EndTime != nil {
		r.stepDuration.Record(ctx, execution.EndTime.Sub(execution.StartTime).Seconds(), attrs)
	}
}

func (r *OpenTelemetryRecorder) RecordItemRead(ctx context.Context, stepName string) {
	r.itemsRead.Add(ctx, 1, stepAttr(stepName))
}

func (r *OpenTelemetryRecorder) RecordItemProcess(ctx context.Context, stepName string) {
	r.itemsProcessed.Add(ctx, 1, stepAttr(stepName))
}

func (r *OpenTelemetryRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	r.itemsWritten.Add(ctx, int64(count), stepAttr(stepName))
}

func (r *OpenTelemetryRecorder) RecordItemSkip(ctx context.Context, stepName string, phase string, count int) {
	r.itemsSkipped.Add(ctx, int64(count), stepAttr(stepName, attribute.String("phase", phase)))
}

func (r *OpenTelemetryRecorder) RecordItemRetry(ctx context.Context, stepName string, phase string) {
	r.itemRetries.Add(ctx, 1, stepAttr(stepName, attribute.String("phase", phase)))
}

func (r *OpenTelemetryRecorder) RecordChunkCommit(ctx context.Context, stepName string, count int) {
	r.chunkCommits.Add(ctx, 1, stepAttr(stepName))
}

func (r *OpenTelemetryRecorder) RecordChunkRollback(ctx context.Context, stepName string) {
	r.chunkRollbacks.Add(ctx, 1, stepAttr(stepName))
}

func (r *OpenTelemetryRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(tags)+1)
	attrs = append(attrs, attribute.String("operation", name))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	r.opDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

var _ metrics.MetricRecorder = (*OpenTelemetryRecorder)(nil)
