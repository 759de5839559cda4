package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/tigerroll/chunkbatch/example/customercopy/internal/domain/entity"
	"github.com/tigerroll/chunkbatch/example/customercopy/internal/job"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/writer"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/tasklet/generic"
	config "github.com/tigerroll/chunkbatch/pkg/batch/core/config"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

const testConfig = `
chunkbatch:
  system:
    logging:
      level: WARN
  batch:
    job_name: customerCopyJob
    chunk_size: %d
    page_size: 2
    read_ahead_page_size: 2
    reader: %s
    runs: %d
    item_skip:
      policy: always
    archive:
      enabled: %t
      storage_ref: archive
      bucket: customers
      object_prefix: customer
  infrastructure:
    database_ref: workload
    migrate: true
  simulation:
    item_count: 20
    read_error_ids: [15]
    process_error_ids: [5, 7, 8, 9]
    write_error_ids: [10, 11, 12]
  telemetry:
    metrics: %s
  adapter:
    database:
      workload:
        type: sqlite
        database: %s
        log_level: SILENT
    storage:
      archive:
        type: local
        base_dir: %s
`

type testOptions struct {
	chunkSize int
	reader    string
	runs      int
	archive   bool
	metrics   string
}

type testApp struct {
	runner   *Runner
	resolver database.DBConnectionResolver
	dir      string
}

func startTestApp(t *testing.T, o testOptions) testApp {
	t.Helper()
	dir := t.TempDir()
	if o.chunkSize == 0 {
		o.chunkSize = 3
	}
	yaml := fmt.Sprintf(testConfig, o.chunkSize, o.reader, o.runs, o.archive, o.metrics,
		filepath.Join(dir, "customercopy.db"), filepath.Join(dir, "archive"))

	var ta testApp
	app := fxtest.New(t,
		Options(config.EmbeddedConfig(yaml), "", sqlite.Module),
		fx.Populate(&ta.runner, &ta.resolver),
	)
	app.RequireStart()
	t.Cleanup(app.RequireStop)
	ta.dir = dir
	return ta
}

func (ta testApp) customerIDs(t *testing.T) []int64 {
	t.Helper()
	conn, err := ta.resolver.ResolveDBConnection(context.Background(), "workload")
	require.NoError(t, err)
	var ids []int64
	require.NoError(t, conn.Pluck(context.Background(), entity.CustomerTable, "id", "id", &ids))
	return ids
}

func TestCustomerCopy_FaultScenario(t *testing.T) {
	for _, reader := range []string{config.ReaderPaging, config.ReaderReadAhead} {
		t.Run(reader, func(t *testing.T) {
			ta := startTestApp(t, testOptions{reader: reader, runs: 2, metrics: "none"})

			executions, err := ta.runner.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, executions, 2)

			for _, je := range executions {
				assert.Equal(t, model.BatchStatusCompleted, je.Status)

				copyStep := je.StepExecution(job.StepCopyCustomer)
				require.NotNil(t, copyStep)
				assert.Equal(t, model.ExitStatusCompletedWithSkips, copyStep.ExitStatus)
				c := copyStep.Counters
				assert.Equal(t, 19, c.ItemsRead)
				assert.Equal(t, 1, c.ItemsSkippedOnRead)
				assert.Equal(t, 4, c.ItemsSkippedOnProcess)
				assert.Equal(t, 3, c.ItemsSkippedOnWrite)
				assert.Equal(t, 12, c.ItemsWritten)
				assert.Equal(t, 6, c.CommitCount)
				assert.Equal(t, 1, c.RollbackCount)

				total, _ := je.ExecutionContext.GetInt(generic.ContextKeySummaryTotal)
				ok, _ := je.ExecutionContext.GetInt(generic.ContextKeySummaryOK)
				ko, _ := je.ExecutionContext.GetInt(generic.ContextKeySummaryKO)
				assert.Equal(t, []int{20, 12, 8}, []int{total, ok, ko})
			}

			// The second run starts by removing what the first one copied.
			cleanup := executions[1].StepExecution(job.StepCleanup)
			require.NotNil(t, cleanup)
			deleted, _ := cleanup.ExecutionContext.GetInt(generic.ContextKeyDeletedRows)
			assert.Equal(t, 12, deleted)

			assert.NotEqual(t, executions[0].JobInstanceID, executions[1].JobInstanceID, "every run is a new instance")
			assert.Equal(t, []int64{1, 2, 3, 4, 6, 13, 14, 16, 17, 18, 19, 20}, ta.customerIDs(t))
		})
	}
}

// With five item chunks the failed write batches also hold items that were never faulted.
// They are skipped with their batch and the verify step must not expect them.
func TestCustomerCopy_WriteSkipDropsHealthyItemsOfTheBatch(t *testing.T) {
	for _, reader := range []string{config.ReaderPaging, config.ReaderReadAhead} {
		t.Run(reader, func(t *testing.T) {
			ta := startTestApp(t, testOptions{chunkSize: 5, reader: reader, runs: 1, metrics: "none"})

			executions, err := ta.runner.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, executions, 1)
			je := executions[0]
			assert.Equal(t, model.BatchStatusCompleted, je.Status)

			c := je.StepExecution(job.StepCopyCustomer).Counters
			assert.Equal(t, 19, c.ItemsRead)
			assert.Equal(t, 1, c.ItemsSkippedOnRead)
			assert.Equal(t, 4, c.ItemsSkippedOnProcess)
			assert.Equal(t, 6, c.ItemsSkippedOnWrite, "6 and 10, then 11 to 14")
			assert.Equal(t, 9, c.ItemsWritten)
			assert.Equal(t, 2, c.CommitCount)
			assert.Equal(t, 2, c.RollbackCount)

			verify := je.StepExecution(job.StepVerify)
			require.NotNil(t, verify)
			assert.Equal(t, model.BatchStatusCompleted, verify.Status)
			assert.Equal(t, []int64{1, 2, 3, 4, 16, 17, 18, 19, 20}, ta.customerIDs(t))
		})
	}
}

func TestCustomerCopy_Archive(t *testing.T) {
	ta := startTestApp(t, testOptions{reader: config.ReaderPaging, runs: 1, archive: true, metrics: "prometheus"})

	executions, err := ta.runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, executions, 1)

	archive := executions[0].StepExecution(job.StepArchive)
	require.NotNil(t, archive)
	assert.Equal(t, model.BatchStatusCompleted, archive.Status)
	assert.Equal(t, 12, archive.Counters.ItemsWritten)

	objectName, ok := archive.ExecutionContext.GetString(writer.ContextKeyObjectName)
	require.True(t, ok)
	records, _ := archive.ExecutionContext.GetInt(writer.ContextKeyRecords)
	assert.Equal(t, 12, records)

	info, err := os.Stat(filepath.Join(ta.dir, "archive", "customers", objectName))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestSelectDBProviders(t *testing.T) {
	assert.Len(t, SelectDBProviders(""), 3)
	assert.Len(t, SelectDBProviders("sqlite, oracle"), 1)
}
