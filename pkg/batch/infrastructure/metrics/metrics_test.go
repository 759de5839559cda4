package metrics_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	coremetrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
	"github.com/tigerroll/chunkbatch/pkg/batch/infrastructure/metrics"
)

func finishedStep() *model.StepExecution {
	je := model.NewJobExecution("instance", "customerCopyJob", model.NewJobParameters())
	se := model.NewStepExecution("copyCustomer")
	je.AddStepExecution(se)
	se.MarkAsStarted()
	se.Counters.ItemsRead = 19
	se.Counters.ItemsWritten = 12
	se.MarkAsCompleted()
	return se
}

func counterValue(t *testing.T, r *metrics.PrometheusRecorder, name string) float64 {
	t.Helper()
	families, err := r.GetRegistry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestPrometheusRecorder(t *testing.T) {
	ctx := context.Background()
	r := metrics.NewPrometheusRecorder()

	for i := 0; i < 3; i++ {
		r.RecordItemRead(ctx, "copyCustomer")
	}
	r.RecordItemProcess(ctx, "copyCustomer")
	r.RecordItemWrite(ctx, "copyCustomer", 2)
	r.RecordItemSkip(ctx, "copyCustomer", coremetrics.PhaseWrite, 3)
	r.RecordItemSkip(ctx, "copyCustomer", coremetrics.PhaseProcess, 1)
	r.RecordItemRetry(ctx, "copyCustomer", coremetrics.PhaseWrite)
	r.RecordChunkCommit(ctx, "copyCustomer", 2)
	r.RecordChunkRollback(ctx, "copyCustomer")
	r.RecordStepEnd(ctx, finishedStep())
	r.RecordDuration(ctx, "archive_export", 20*time.Millisecond, nil)

	assert.Equal(t, 3.0, counterValue(t, r, "batch_step_read_total"))
	assert.Equal(t, 1.0, counterValue(t, r, "batch_step_process_total"))
	assert.Equal(t, 2.0, counterValue(t, r, "batch_step_write_total"))
	assert.Equal(t, 4.0, counterValue(t, r, "batch_item_skip_total"))
	assert.Equal(t, 1.0, counterValue(t, r, "batch_item_retry_total"))
	assert.Equal(t, 1.0, counterValue(t, r, "batch_step_commit_total"))
	assert.Equal(t, 1.0, counterValue(t, r, "batch_step_rollback_total"))
	assert.Equal(t, 1.0, counterValue(t, r, "batch_step_status_total"))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `batch_item_skip_total{phase="write",step_name="copyCustomer"} 3`)
}

func TestOpenTelemetryTracer_NestsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := metrics.NewOpenTelemetryTracer(tp)

	je := model.NewJobExecution("instance", "customerCopyJob", model.NewJobParameters())
	se := model.NewStepExecution("copyCustomer")
	je.AddStepExecution(se)

	ctx, endJob := tracer.StartJobSpan(context.Background(), je)
	stepCtx, endStep := tracer.StartStepSpan(ctx, se)
	chunkCtx, endChunk := tracer.StartChunkSpan(stepCtx, "copyCustomer", 0)
	tracer.RecordEvent(chunkCtx, "skip", map[string]interface{}{"phase": "write", "count": 3})
	tracer.RecordError(chunkCtx, "writer", errors.New("simulated failure"))
	endChunk()
	se.MarkAsStarted()
	se.MarkAsCompleted()
	endStep()
	je.MarkAsStarted()
	je.MarkAsFailed(errors.New("verify failed"))
	endJob()

	spans := sr.Ended()
	require.Len(t, spans, 3)
	chunk, step, job := spans[0], spans[1], spans[2]
	assert.Equal(t, "chunk copyCustomer#0", chunk.Name())
	assert.Equal(t, step.SpanContext().SpanID(), chunk.Parent().SpanID())
	assert.Equal(t, job.SpanContext().SpanID(), step.Parent().SpanID())
	assert.Len(t, chunk.Events(), 2, "the event and the recorded error")
	assert.Equal(t, "Error", chunk.Status().Code.String())
	assert.Equal(t, "Error", job.Status().Code.String())
}

func TestOpenTelemetryRecorder(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	r, err := metrics.NewOpenTelemetryRecorder(mp)
	require.NoError(t, err)

	ctx := context.Background()
	r.RecordItemRead(ctx, "copyCustomer")
	r.RecordItemRead(ctx, "copyCustomer")
	r.RecordItemSkip(ctx, "copyCustomer", coremetrics.PhaseRead, 1)
	r.RecordStepEnd(ctx, finishedStep())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), sums["batch.step.items.read"])
	assert.Equal(t, int64(1), sums["batch.step.items.skipped"])
	assert.Equal(t, int64(1), sums["batch.step.executions"])
}

func TestAsyncMetricRecorder_DrainsOnClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := metrics.NewPrometheusRecorder()
	async := metrics.NewAsyncMetricRecorder(50, backend)

	for i := 0; i < 10; i++ {
		async.RecordItemRead(ctx, "copyCustomer")
	}
	async.RecordItemSkip(ctx, "copyCustomer", coremetrics.PhaseRead, 1)
	cancel()
	async.Close()
	async.Close()

	assert.Equal(t, 10.0, counterValue(t, backend, "batch_step_read_total"))
	assert.Equal(t, 1.0, counterValue(t, backend, "batch_item_skip_total"))
}
