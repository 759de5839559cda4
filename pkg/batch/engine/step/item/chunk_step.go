// Package item implements the chunk-oriented step: read, process and write a bounded
// number of items inside one transaction, with failures resolved by skip and retry policies.
package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/core/metrics"
	tx "github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	"github.com/tigerroll/chunkbatch/pkg/batch/engine/step/retry"
	"github.com/tigerroll/chunkbatch/pkg/batch/engine/step/skip"
	exception "github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// DefaultChunkSize is used when neither the reader nor the options set a chunk size.
const DefaultChunkSize = 10

// ChunkStep is a port.Step that drives the read -> process -> write loop one chunk at a time.
// I is the type read from the reader, O the type handed to the writer.
type ChunkStep[I, O any] struct {
	name      string
	reader    port.ItemReader[I]
	processor port.ItemProcessor[I, O]
	writer    port.ItemWriter[O]
	txManager tx.TransactionManager
	settings  settings

	state ChunkState
}

type settings struct {
	chunkSize            int
	allowStartIfComplete bool
	isolationLevel       sql.IsolationLevel
	skipPolicy           skip.SkipPolicy
	retryPolicy          retry.RetryPolicy
	chunkListeners       []port.ChunkListener
	skipListeners        []port.SkipListener
	stepListeners        []port.StepExecutionListener
	jobRepository        repository.JobRepository
	metricRecorder       metrics.MetricRecorder
	tracer               metrics.Tracer
}

// Option configures a ChunkStep.
type Option func(*settings)

// WithChunkSize sets the chunk size used when the reader is not a port.ChunkAwareReader.
func WithChunkSize(n int) Option { return func(s *settings) { s.chunkSize = n } }

// WithSkipPolicy sets the skip policy. The default is skip.NeverSkip.
func WithSkipPolicy(p skip.SkipPolicy) Option { return func(s *settings) { s.skipPolicy = p } }

// WithRetryPolicy sets the retry policy. The default is retry.NeverRetry.
func WithRetryPolicy(p retry.RetryPolicy) Option { return func(s *settings) { s.retryPolicy = p } }

// WithAllowStartIfComplete makes the step run again on a relaunch even after it completed.
func WithAllowStartIfComplete(allow bool) Option {
	return func(s *settings) { s.allowStartIfComplete = allow }
}

// WithIsolationLevel sets the isolation level of the chunk transactions ("READ_COMMITTED", "SERIALIZABLE", ...).
func WithIsolationLevel(level string) Option {
	return func(s *settings) { s.isolationLevel = parseIsolationLevel(level) }
}

// WithChunkListeners adds listeners notified around every chunk.
func WithChunkListeners(l ...port.ChunkListener) Option {
	return func(s *settings) { s.chunkListeners = append(s.chunkListeners, l...) }
}

// WithSkipListeners adds listeners notified of every skipped item.
func WithSkipListeners(l ...port.SkipListener) Option {
	return func(s *settings) { s.skipListeners = append(s.skipListeners, l...) }
}

// WithStepListeners adds listeners notified before and after the step.
func WithStepListeners(l ...port.StepExecutionListener) Option {
	return func(s *settings) { s.stepListeners = append(s.stepListeners, l...) }
}

// WithJobRepository persists the step execution after every chunk.
func WithJobRepository(r repository.JobRepository) Option {
	return func(s *settings) { s.jobRepository = r }
}

// WithMetricRecorder records item, chunk and step events. The default records nothing.
func WithMetricRecorder(r metrics.MetricRecorder) Option {
	return func(s *settings) { s.metricRecorder = r }
}

// WithTracer opens a span per step and per chunk. The default traces nothing.
func WithTracer(t metrics.Tracer) Option { return func(s *settings) { s.tracer = t } }

// NewChunkStep creates a ChunkStep. reader, processor, writer and txManager are required.
func NewChunkStep[I, O any](
	name string,
	reader port.ItemReader[I],
	processor port.ItemProcessor[I, O],
	writer port.ItemWriter[O],
	txManager tx.TransactionManager,
	opts ...Option,
) (*ChunkStep[I, O], error) {
	if reader == nil || processor == nil || writer == nil || txManager == nil {
		return nil, exception.NewBatchErrorf(name, "chunk step requires a reader, a processor, a writer and a transaction manager")
	}

	st := settings{
		chunkSize:      DefaultChunkSize,
		isolationLevel: sql.LevelDefault,
		skipPolicy:     skip.NewNeverSkip(),
		retryPolicy:    retry.NewNeverRetry(),
		metricRecorder: metrics.NewNoOpMetricRecorder(),
		tracer:         metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(&st)
	}
	if ca, ok := reader.(port.ChunkAwareReader[I]); ok {
		st.chunkSize = ca.ChunkSize()
	}
	if st.chunkSize < 1 {
		return nil, exception.NewBatchErrorf(name, "chunk size must be positive, got %d", st.chunkSize)
	}

	return &ChunkStep[I, O]{
		name:      name,
		reader:    reader,
		processor: processor,
		writer:    writer,
		txManager: txManager,
		settings:  st,
	}, nil
}

// parseIsolationLevel converts a configuration string to sql.IsolationLevel.
func parseIsolationLevel(level string) sql.IsolationLevel {
	switch level {
	case "READ_UNCOMMITTED":
		return sql.LevelReadUncommitted
	case "READ_COMMITTED":
		return sql.LevelReadCommitted
	case "WRITE_COMMITTED":
		return sql.LevelWriteCommitted
	case "REPEATABLE_READ":
		return sql.LevelRepeatableRead
	case "SERIALIZABLE":
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}

// StepName implements port.Step.
func (s *ChunkStep[I, O]) StepName() string { return s.name }

// AllowStartIfComplete implements port.Step.
func (s *ChunkStep[I, O]) AllowStartIfComplete() bool { return s.settings.allowStartIfComplete }

// ChunkSize returns the effective chunk size.
func (s *ChunkStep[I, O]) ChunkSize() int { return s.settings.chunkSize }

// State returns the current state of the chunk state machine.
func (s *ChunkStep[I, O]) State() ChunkState { return s.state }

func (s *ChunkStep[I, O]) setState(next ChunkState) {
	logger.Debugf("ChunkStep '%s': %s -> %s", s.name, s.state, next)
	s.state = next
}

func (s *ChunkStep[I, O]) txOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: s.settings.isolationLevel}
}

// Execute runs chunks until the reader reports the end of the stream or a chunk fails the step.
// Chunks committed before a failure stay committed.
func (s *ChunkStep[I, O]) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error {
	logger.Infof("ChunkStep '%s' executing (chunk size %d).", s.name, s.settings.chunkSize)

	ctx, endSpan := s.settings.tracer.StartStepSpan(ctx, stepExecution)
	defer endSpan()

	stepExecution.MarkAsStarted()
	s.persist(ctx, stepExecution)
	s.settings.metricRecorder.RecordStepStart(ctx, stepExecution)
	for _, l := range s.settings.stepListeners {
		l.BeforeStep(ctx, stepExecution)
	}

	stepErr := s.open(ctx, stepExecution)
	if stepErr == nil {
		stepErr = s.run(ctx, stepExecution)
		if closeErr := s.close(ctx); closeErr != nil {
			logger.Warnf("ChunkStep '%s': failed to close components: %v", s.name, closeErr)
			if stepErr == nil {
				stepErr = closeErr
			}
		}
	}

	if stepErr != nil {
		s.settings.tracer.RecordError(ctx, s.name, stepErr)
		stepExecution.MarkAsFailed(stepErr)
	} else {
		stepExecution.MarkAsCompleted()
	}
	for _, l := range s.settings.stepListeners {
		l.AfterStep(ctx, stepExecution)
	}
	s.settings.metricRecorder.RecordStepEnd(ctx, stepExecution)
	s.persist(ctx, stepExecution)

	logger.Infof("ChunkStep '%s' finished. ExitStatus: %s, %s", s.name, stepExecution.ExitStatus, stepExecution.Counters)
	return stepErr
}

func (s *ChunkStep[I, O]) open(ctx context.Context, stepExecution *model.StepExecution) error {
	if err := s.reader.Open(ctx, stepExecution.ExecutionContext); err != nil {
		return exception.NewBatchError(s.name, "failed to open ItemReader", err, false, false)
	}
	if err := s.writer.Open(ctx, stepExecution.ExecutionContext); err != nil {
		_ = s.reader.Close(ctx)
		return exception.NewBatchError(s.name, "failed to open ItemWriter", err, false, false)
	}
	return nil
}

func (s *ChunkStep[I, O]) close(ctx context.Context) error {
	var result *multierror.Error
	if err := s.reader.Close(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("close ItemReader: %w", err))
	}
	if err := s.writer.Close(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("close ItemWriter: %w", err))
	}
	return result.ErrorOrNil()
}

func (s *ChunkStep[I, O]) persist(ctx context.Context, stepExecution *model.StepExecution) {
	if s.settings.jobRepository == nil {
		return
	}
	if err := s.settings.jobRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
		logger.Warnf("ChunkStep '%s': failed to persist StepExecution (ID: %s): %v", s.name, stepExecution.ID, err)
	}
}

func (s *ChunkStep[I, O]) run(ctx context.Context, stepExecution *model.StepExecution) error {
	for chunkIndex := 0; ; chunkIndex++ {
		if err := ctx.Err(); err != nil {
			return exception.NewBatchError(s.name, "step cancelled between chunks", err, false, false)
		}
		done, err := s.executeChunk(ctx, stepExecution, chunkIndex)
		s.persist(ctx, stepExecution)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// chunk is the state of one chunk across its attempts.
type chunk[I, O any] struct {
	index       int
	inputs      []I // items read successfully, in read order
	readSkips   int
	endOfStream bool
	attempts    int // failed attempts so far
	t           tx.Tx
	txCtx       context.Context
}

func (c *chunk[I, O]) slots() int { return len(c.inputs) + c.readSkips }

// executeChunk runs one chunk through the state machine. It reports whether the stream is exhausted.
func (s *ChunkStep[I, O]) executeChunk(ctx context.Context, se *model.StepExecution, chunkIndex int) (bool, error) {
	ctx, endSpan := s.settings.tracer.StartChunkSpan(ctx, s.name, chunkIndex)
	defer endSpan()
	defer s.setState(StateIdle)

	if _, chunkAware := s.reader.(port.ChunkAwareReader[I]); !chunkAware {
		if ws := s.txManager.WorkingSet(); !ws.IsEmpty() {
			return true, exception.NewDirtyWorkingSetError(s.name, ws.Len())
		}
	}

	c := &chunk[I, O]{index: chunkIndex}
	if err := s.begin(ctx, c); err != nil {
		return true, err
	}
	for _, l := range s.settings.chunkListeners {
		l.BeforeChunk(c.txCtx, se)
	}

	if err := s.read(ctx, se, c); err != nil {
		return true, err
	}

	if c.slots() == 0 {
		// Nothing was read: the stream ended exactly at a chunk boundary.
		if err := s.txManager.Rollback(c.t); err != nil {
			logger.Warnf("ChunkStep '%s': failed to release empty chunk transaction: %v", s.name, err)
		}
		return true, nil
	}

	survivors := c.inputs
	for {
		outputs, remaining, err := s.process(se, c, survivors)
		if err != nil {
			retried, rerr := s.recover(ctx, se, c, err)
			if rerr != nil {
				return true, rerr
			}
			if retried {
				survivors = remaining
				continue
			}
			return true, s.fail(se, c, err)
		}
		survivors = remaining

		err = s.write(c, outputs)
		if err == nil {
			return c.endOfStream, s.commit(se, c, outputs)
		}
		if exception.IsFatal(err) {
			return true, s.fail(se, c, err)
		}

		retried, rerr := s.recover(ctx, se, c, err)
		if rerr != nil {
			return true, rerr
		}
		if retried {
			continue
		}

		if skip.CanSkipBatch(s.settings.skipPolicy, err, len(outputs)) {
			s.skipWrite(se, c, outputs, err)
			return c.endOfStream, nil
		}
		return true, s.fail(se, c, err)
	}
}

func (s *ChunkStep[I, O]) begin(ctx context.Context, c *chunk[I, O]) error {
	t, err := s.txManager.Begin(ctx, s.txOptions())
	if err != nil {
		return exception.NewBatchError(s.name, "failed to begin chunk transaction", err, false, false)
	}
	c.t = t
	c.txCtx = tx.WithTx(ctx, t)
	return nil
}

// read fills c until the chunk has chunkSize slots or the stream ends.
// A skipped read error consumes a slot. An unavailable source is retried in place: the
// items already read stay in the chunk and reading resumes in a new transaction.
func (s *ChunkStep[I, O]) read(ctx context.Context, se *model.StepExecution, c *chunk[I, O]) error {
	s.setState(StateReading)
	for !c.endOfStream && c.slots() < s.settings.chunkSize {
		it, err := s.reader.Read(c.txCtx)
		switch {
		case err == nil:
			c.inputs = append(c.inputs, it)
			se.Counters.ItemsRead++
			s.settings.metricRecorder.RecordItemRead(c.txCtx, s.name)
		case errors.Is(err, port.ErrEndOfStream):
			c.endOfStream = true
		case exception.IsFatal(err):
			return s.fail(se, c, err)
		case exception.IsSourceUnavailable(err):
			retried, rerr := s.recover(ctx, se, c, err)
			if rerr != nil {
				return rerr
			}
			if !retried {
				return s.fail(se, c, err)
			}
			s.setState(StateReading)
		case s.settings.skipPolicy.ShouldSkip(err, c.slots()):
			c.readSkips++
			se.Counters.ItemsSkippedOnRead++
			s.settings.skipPolicy.IncrementSkipCount(1)
			s.notifySkipRead(c.txCtx, err)
		default:
			return s.fail(se, c, err)
		}
	}
	return nil
}

// process runs the processor over inputs. It returns the outputs and the inputs that produced
// them; skipped items are dropped for good. A non-skippable failure is returned for recover/fail.
func (s *ChunkStep[I, O]) process(se *model.StepExecution, c *chunk[I, O], inputs []I) ([]O, []I, error) {
	s.setState(StateProcessing)
	outputs := make([]O, 0, len(inputs))
	survivors := make([]I, 0, len(inputs))
	for i, in := range inputs {
		out, err := s.processor.Process(c.txCtx, in)
		if err == nil {
			outputs = append(outputs, out)
			survivors = append(survivors, in)
			s.settings.metricRecorder.RecordItemProcess(c.txCtx, s.name)
			continue
		}
		if exception.IsFatal(err) || exception.IsSourceUnavailable(err) || !s.settings.skipPolicy.ShouldSkip(err, i) {
			// Keep the failed item and everything after it for a possible retry.
			return nil, append(survivors, inputs[i:]...), err
		}
		se.Counters.ItemsSkippedOnProcess++
		s.settings.skipPolicy.IncrementSkipCount(1)
		if ca, ok := s.reader.(port.ChunkAwareReader[I]); ok {
			ca.OnItemError()
		}
		s.notifySkipProcess(c.txCtx, in, err)
	}
	return outputs, survivors, nil
}

// write hands outputs to the writer and flushes the working set into the chunk transaction.
// A flush failure is reported like a write failure.
func (s *ChunkStep[I, O]) write(c *chunk[I, O], outputs []O) error {
	if len(outputs) > 0 {
		s.setState(StateWriting)
		if err := s.writer.Write(c.txCtx, outputs); err != nil {
			return err
		}
		s.settings.metricRecorder.RecordItemWrite(c.txCtx, s.name, len(outputs))
	}

	s.setState(StateCommitting)
	if _, err := s.txManager.WorkingSet().Flush(c.txCtx, c.t); err != nil {
		return exception.NewWriteError(s.name, "failed to flush working set", err)
	}
	return nil
}

func (s *ChunkStep[I, O]) commit(se *model.StepExecution, c *chunk[I, O], outputs []O) error {
	if err := s.txManager.Commit(c.t); err != nil {
		s.rollback(se, c)
		commitErr := exception.NewBatchError(s.name, fmt.Sprintf("failed to commit chunk %d", c.index), err, false, false)
		s.notifyChunkError(se, c, commitErr)
		return commitErr
	}
	s.setState(StateCommitted)

	se.Counters.ItemsProcessed += len(outputs)
	se.Counters.ItemsWritten += len(outputs)
	se.Counters.CommitCount++
	s.settings.metricRecorder.RecordChunkCommit(c.txCtx, s.name, len(outputs))
	if ca, ok := s.reader.(port.ChunkAwareReader[I]); ok {
		ca.OnChunkSuccess()
	}
	for _, l := range s.settings.chunkListeners {
		l.AfterChunk(c.txCtx, se)
	}
	logger.Debugf("ChunkStep '%s': chunk %d committed (%d items).", s.name, c.index, len(outputs))
	return nil
}

func (s *ChunkStep[I, O]) rollback(se *model.StepExecution, c *chunk[I, O]) {
	if err := s.txManager.Rollback(c.t); err != nil {
		logger.Warnf("ChunkStep '%s': rollback of chunk %d failed: %v", s.name, c.index, err)
	}
	s.txManager.WorkingSet().Clear()
	se.Counters.RollbackCount++
	s.settings.metricRecorder.RecordChunkRollback(c.txCtx, s.name)
	s.setState(StateRolledBack)
}

// recover rolls back after err and, when the retry policy allows it, opens a new
// transaction for another attempt of the same chunk. It reports whether a retry was prepared.
func (s *ChunkStep[I, O]) recover(ctx context.Context, se *model.StepExecution, c *chunk[I, O], err error) (bool, error) {
	s.rollback(se, c)
	s.notifyChunkError(se, c, err)
	if exception.IsFatal(err) {
		return false, nil
	}

	c.attempts++
	if !s.settings.retryPolicy.ShouldRetry(err, c.attempts) {
		return false, nil
	}
	logger.Warnf("ChunkStep '%s': chunk %d failed (attempt %d/%d), retrying: %v",
		s.name, c.index, c.attempts, s.settings.retryPolicy.GetMaxAttempts(), err)
	s.settings.metricRecorder.RecordItemRetry(ctx, s.name, phaseOf(err))

	if wait := s.settings.retryPolicy.GetBackoffInterval(c.attempts); wait > 0 {
		select {
		case <-ctx.Done():
			return false, exception.NewBatchError(s.name, "step cancelled during retry backoff", ctx.Err(), false, false)
		case <-time.After(wait):
		}
	}
	if err := s.begin(ctx, c); err != nil {
		return false, err
	}
	return true, nil
}

// skipWrite drops the whole batch of a failed write. The transaction was already rolled back by recover.
func (s *ChunkStep[I, O]) skipWrite(se *model.StepExecution, c *chunk[I, O], outputs []O, err error) {
	n := len(outputs)
	se.Counters.ItemsProcessed += n
	se.Counters.ItemsSkippedOnWrite += n
	s.settings.skipPolicy.IncrementSkipCount(n)
	s.settings.metricRecorder.RecordItemSkip(c.txCtx, s.name, metrics.PhaseWrite, n)

	items := make([]interface{}, n)
	for i, o := range outputs {
		items[i] = o
	}
	for _, l := range s.settings.skipListeners {
		l.OnSkipWrite(c.txCtx, items, err)
	}
	if ca, ok := s.reader.(port.ChunkAwareReader[I]); ok {
		ca.OnChunkSuccess()
	}
	logger.Warnf("ChunkStep '%s': chunk %d write failed, %d items skipped: %v", s.name, c.index, n, err)
}

// fail rolls back when the chunk still holds a transaction and wraps err as the step failure.
func (s *ChunkStep[I, O]) fail(se *model.StepExecution, c *chunk[I, O], err error) error {
	if s.state != StateRolledBack {
		s.rollback(se, c)
		s.notifyChunkError(se, c, err)
	}
	logger.Errorf("ChunkStep '%s': chunk %d failed: %v", s.name, c.index, err)
	return exception.NewBatchError(s.name, fmt.Sprintf("chunk %d failed", c.index), err, false, false)
}

func (s *ChunkStep[I, O]) notifyChunkError(se *model.StepExecution, c *chunk[I, O], err error) {
	s.settings.tracer.RecordError(c.txCtx, s.name, err)
	for _, l := range s.settings.chunkListeners {
		l.AfterChunkError(c.txCtx, se, err)
	}
}

func (s *ChunkStep[I, O]) notifySkipRead(ctx context.Context, err error) {
	s.settings.metricRecorder.RecordItemSkip(ctx, s.name, metrics.PhaseRead, 1)
	for _, l := range s.settings.skipListeners {
		l.OnSkipRead(ctx, err)
	}
}

func (s *ChunkStep[I, O]) notifySkipProcess(ctx context.Context, in I, err error) {
	s.settings.metricRecorder.RecordItemSkip(ctx, s.name, metrics.PhaseProcess, 1)
	for _, l := range s.settings.skipListeners {
		l.OnSkipProcess(ctx, in, err)
	}
}

func phaseOf(err error) string {
	switch {
	case errors.Is(err, exception.ErrWrite):
		return metrics.PhaseWrite
	case errors.Is(err, exception.ErrProcess):
		return metrics.PhaseProcess
	default:
		return metrics.PhaseRead
	}
}

var _ port.Step = (*ChunkStep[any, any])(nil)
