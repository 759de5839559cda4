package job

import (
	"context"
	"time"

	"github.com/tigerroll/chunkbatch/example/customercopy/internal/domain/entity"
	customerprocessor "github.com/tigerroll/chunkbatch/example/customercopy/internal/step/processor"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/simulation"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/processor"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/reader"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/writer"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/tasklet/generic"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	config "github.com/tigerroll/chunkbatch/pkg/batch/core/config"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/config/support"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/support/incrementer"
	"github.com/tigerroll/chunkbatch/pkg/batch/engine/step/item"
	"github.com/tigerroll/chunkbatch/pkg/batch/engine/step/retry"
	"github.com/tigerroll/chunkbatch/pkg/batch/engine/step/skip"
	"github.com/tigerroll/chunkbatch/pkg/batch/engine/step/tasklet"
	"github.com/tigerroll/chunkbatch/pkg/batch/listener/recording"
)

// Names of the customer copy job and its steps.
const (
	CustomerCopyJobName = "customerCopyJob"

	StepCleanup      = "cleanup"
	StepCopyCustomer = "copyCustomer"
	StepVerify       = "verify"
	StepSummary      = "summary"
	StepArchive      = "archive"
)

// NewCustomerCopyJob registers customerCopyJob: cleanup, copyCustomer, verify and summary,
// then archive when batch.archive.enabled is set. Every launch gets a fresh timestamp parameter.
func NewCustomerCopyJob(p Params) support.JobRegistration {
	return support.JobRegistration{
		JobName: CustomerCopyJobName,
		Builder: func(ctx context.Context) (port.Job, error) {
			return buildCustomerCopyJob(ctx, p)
		},
		Incrementer: incrementer.NewTimestampIncrementer("timestamp"),
	}
}

func buildCustomerCopyJob(ctx context.Context, p Params) (port.Job, error) {
	injector := simulation.NewFaultInjectorFromConfig(p.Config)
	skipped := recording.NewSkippedItems()

	copyStep, err := newCopyStep(ctx, p, injector, skipped)
	if err != nil {
		return nil, err
	}

	steps := []port.Step{
		p.taskletStep(StepCleanup,
			generic.NewTableCleanupTasklet(p.DBResolver, p.dbRef(), entity.CustomerTable, &entity.Customer{}),
			tasklet.WithAllowStartIfComplete(true)),
		copyStep,
		p.taskletStep(StepVerify,
			generic.NewIDVerificationTasklet(p.DBResolver, p.dbRef(), entity.CustomerTmpTable, entity.CustomerTable, "id", skipped.Survivors)),
		p.taskletStep(StepSummary, generic.NewExecutionSummaryTasklet(StepCopyCustomer)),
	}

	if p.Config.ChunkBatch.Batch.Archive.Enabled {
		archiveStep, err := newArchiveStep(ctx, p)
		if err != nil {
			return nil, err
		}
		steps = append(steps, archiveStep)
	}
	return p.newJob(CustomerCopyJobName, steps)
}

// newCopyStep copies customer_tmp into customer with the configured reader strategy and
// fault policies. The injector decides which items fail in which phase; skipped records the
// items the step actually dropped, which is what the verify step expects to be missing.
func newCopyStep(ctx context.Context, p Params, injector *simulation.FaultInjector, skipped *recording.SkippedItems) (port.Step, error) {
	b := p.Config.ChunkBatch.Batch

	txManager, err := p.TxFactory.NewTransactionManager(ctx, p.dbRef())
	if err != nil {
		return nil, err
	}
	conn, err := p.DBResolver.ResolveDBConnection(ctx, p.dbRef())
	if err != nil {
		return nil, err
	}

	source := reader.NewGormPagedSource[entity.CustomerTmp](conn, entity.CustomerTmpTable, "id", nil)
	validator := reader.WithItemValidator(simulation.ReadValidator[entity.CustomerTmp](injector))
	var customerReader port.ChunkAwareReader[entity.CustomerTmp]
	switch b.Reader {
	case config.ReaderReadAhead:
		customerReader = reader.NewReadAheadItemReader[entity.CustomerTmp](StepCopyCustomer+"Reader", source, b.ChunkSize, b.ReadAheadPageSize, txManager.WorkingSet(), validator)
	default:
		customerReader = reader.NewPagingItemReader[entity.CustomerTmp](StepCopyCustomer+"Reader", source, b.ChunkSize, b.PageSize, txManager.WorkingSet(), validator)
	}

	customerWriter := writer.NewGormItemWriter[entity.Customer](StepCopyCustomer+"Writer", txManager.WorkingSet(),
		entity.CustomerTable, []string{"id"}, []string{"name"}, simulation.WriteCheck[entity.Customer](injector))

	skipPolicy, err := skip.NewDefaultSkipPolicyFactory().Create(b.ItemSkip.Policy, b.ItemSkip.SkipLimit, b.ItemSkip.SkippableExceptions)
	if err != nil {
		return nil, err
	}
	retryPolicy, err := retry.NewDefaultRetryPolicyFactory().Create(b.ItemRetry.Policy, b.ItemRetry.MaxAttempts,
		time.Duration(b.ItemRetry.InitialInterval)*time.Millisecond, b.ItemRetry.RetryableExceptions)
	if err != nil {
		return nil, err
	}

	step, err := item.NewChunkStep[entity.CustomerTmp, entity.Customer](
		StepCopyCustomer,
		customerReader,
		customerprocessor.NewCustomerProcessor(injector),
		customerWriter,
		txManager,
		item.WithSkipPolicy(skipPolicy),
		item.WithRetryPolicy(retryPolicy),
		item.WithAllowStartIfComplete(true),
		item.WithIsolationLevel(b.IsolationLevel),
		item.WithChunkListeners(p.ChunkListener),
		item.WithSkipListeners(p.SkipListener, skipped),
		item.WithStepListeners(p.StepListener, skipped),
		item.WithJobRepository(p.JobRepository),
		item.WithMetricRecorder(p.MetricRecorder),
		item.WithTracer(p.Tracer),
	)
	if err != nil {
		return nil, err
	}
	return step, nil
}

// newArchiveStep exports the customer table to one Parquet object.
func newArchiveStep(ctx context.Context, p Params) (port.Step, error) {
	b := p.Config.ChunkBatch.Batch

	txManager, err := p.TxFactory.NewTransactionManager(ctx, p.dbRef())
	if err != nil {
		return nil, err
	}
	conn, err := p.DBResolver.ResolveDBConnection(ctx, p.dbRef())
	if err != nil {
		return nil, err
	}

	source := reader.NewGormPagedSource[entity.Customer](conn, entity.CustomerTable, "id", nil)
	archiveReader := reader.NewPagingItemReader[entity.Customer](StepArchive+"Reader", source, b.ChunkSize, b.PageSize, txManager.WorkingSet())
	archiveWriter, err := writer.NewParquetItemWriter(StepArchive+"Writer", writer.ParquetWriterConfig{
		StorageRef:   b.Archive.StorageRef,
		Bucket:       b.Archive.Bucket,
		ObjectPrefix: b.Archive.ObjectPrefix,
	}, p.StorageResolver, &entity.Customer{})
	if err != nil {
		return nil, err
	}

	step, err := item.NewChunkStep[entity.Customer, entity.Customer](
		StepArchive,
		archiveReader,
		processor.NewPassThroughProcessor[entity.Customer](),
		archiveWriter,
		txManager,
		item.WithAllowStartIfComplete(true),
		item.WithStepListeners(p.StepListener),
		item.WithJobRepository(p.JobRepository),
		item.WithMetricRecorder(p.MetricRecorder),
		item.WithTracer(p.Tracer),
	)
	if err != nil {
		return nil, err
	}
	return step, nil
}
