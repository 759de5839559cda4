package metrics

import (
	"context"
	"sync"
	"time"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

type metricEvent struct {
	name   string
	record func(metrics.MetricRecorder)
}

// AsyncMetricRecorder hands metric events to a worker goroutine that forwards them to a
// synchronous recorder, so the chunk loop never waits on a metrics backend.
// Events are dropped with a warning while the queue is full.
type AsyncMetricRecorder struct {
	eventQueue   chan metricEvent
	stopCh       chan struct{}
	closeOnce    sync.Once
	wg           sync.WaitGroup
	syncRecorder metrics.MetricRecorder
}

// NewAsyncMetricRecorder starts the worker. A bufferSize of 0 or less uses 100.
func NewAsyncMetricRecorder(bufferSize int, syncRecorder metrics.MetricRecorder) *AsyncMetricRecorder {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	r := &AsyncMetricRecorder{
		eventQueue:   make(chan metricEvent, bufferSize),
		stopCh:       make(chan struct{}),
		syncRecorder: syncRecorder,
	}
	r.wg.Add(1)
	go r.run()
	logger.Debugf("AsyncMetricRecorder: Worker goroutine started (buffer size: %d).", bufferSize)
	return r
}

func (r *AsyncMetricRecorder) run() {
	defer r.wg.Done()
	for {
		select {
		case event := <-r.eventQueue:
			event.record(r.syncRecorder)
		case <-r.stopCh:
			remaining := len(r.eventQueue)
			for i := 0; i < remaining; i++ {
				(<-r.eventQueue).record(r.syncRecorder)
			}
			logger.Debugf("AsyncMetricRecorder: Worker goroutine stopped. Processed %d remaining events.", remaining)
			return
		}
	}
}

// Close stops the worker after the queued events have been recorded.
func (r *AsyncMetricRecorder) Close() {
	r.closeOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()
	})
}

// send queues record. The event keeps the values of ctx but not its cancellation.
func (r *AsyncMetricRecorder) send(name string, record func(metrics.MetricRecorder)) {
	select {
	case r.eventQueue <- metricEvent{name: name, record: record}:
	default:
		logger.Warnf("AsyncMetricRecorder: Event queue is full. '%s' event discarded.", name)
	}
}

func (r *AsyncMetricRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	ctx = context.WithoutCancel(ctx)
	r.send("job_start", func(m metrics.MetricRecorder) { m.RecordJobStart(ctx, execution) })
}

func (r *AsyncMetricRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	ctx = context.WithoutCancel(ctx)
	r.send("job_end", func(m metrics.MetricRecorder) { m.RecordJobEnd(ctx, execution) })
}

func (r *AsyncMetricRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	ctx = context.WithoutCancel(ctx)
	r.send("step_start", func(m metrics.MetricRecorder) { m.RecordStepStart(ctx, execution) })
}

func (r *AsyncMetricRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	ctx = context.WithoutCancel(ctx)
	r.send("step_end", func(m metrics.MetricRecorder) { m.RecordStepEnd(ctx, execution) })
}

func (r *AsyncMetricRecorder) RecordItemRead(ctx context.Context, stepName string) {
	ctx = context.WithoutCancel(ctx)
	r.send("item_read", func(m metrics.MetricRecorder) { m.RecordItemRead(ctx, stepName) })
}

func (r *AsyncMetricRecorder) RecordItemProcess(ctx context.Context, stepName string) {
	ctx = context.WithoutCancel(ctx)
	r.send("item_process", func(m metrics.MetricRecorder) { m.RecordItemProcess(ctx, stepName) })
}

func (r *AsyncMetricRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	ctx = context.WithoutCancel(ctx)
	r.send("item_write", func(m metrics.MetricRecorder) { m.RecordItemWrite(ctx, stepName, count) })
}

func (r *AsyncMetricRecorder) RecordItemSkip(ctx context.Context, stepName string, phase string, count int) {
	ctx = context.WithoutCancel(ctx)
	r.send("item_skip", func(m metrics.MetricRecorder) { m.RecordItemSkip(ctx, stepName, phase, count) })
}

func (r *AsyncMetricRecorder) RecordItemRetry(ctx context.Context, stepName string, phase string) {
	ctx = context.WithoutCancel(ctx)
	r.send("item_retry", func(m metrics.MetricRecorder) { m.RecordItemRetry(ctx, stepName, phase) })
}

func (r *AsyncMetricRecorder) RecordChunkCommit(ctx context.Context, stepName string, count int) {
	ctx = context.WithoutCancel(ctx)
	r.send("chunk_commit", func(m metrics.MetricRecorder) { m.RecordChunkCommit(ctx, stepName, count) })
}

func (r *AsyncMetricRecorder) RecordChunkRollback(ctx context.Context, stepName string) {
	ctx = context.WithoutCancel(ctx)
	r.send("chunk_rollback", func(m metrics.MetricRecorder) { m.RecordChunkRollback(ctx, stepName) })
}

func (r *AsyncMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	ctx = context.WithoutCancel(ctx)
	r.send("record_duration", func(m metrics.MetricRecorder) { m.RecordDuration(ctx, name, duration, tags) })
}

var _ metrics.MetricRecorder = (*AsyncMetricRecorder)(nil)
