package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/config"
)

const testYAML = `
chunkbatch:
  system:
    logging:
      level: DEBUG
  batch:
    job_name: customerCopyJob
    chunk_size: 3
    page_size: 2
    reader: read_ahead
    item_skip:
      policy: always
      skippable_exceptions: [ReadError, ProcessError]
  simulation:
    item_count: 20
    write_error_ids: [10, 11, 12]
  adapter:
    database:
      workload:
        type: sqlite
        database: ${CHUNKBATCH_TEST_DB}
`

func TestLoadConfig_YAMLOverDefaults(t *testing.T) {
	t.Setenv("CHUNKBATCH_TEST_DB", "file:test.db")

	cfg, err := config.LoadConfig("", config.EmbeddedConfig(testYAML))
	require.NoError(t, err)

	b := cfg.ChunkBatch.Batch
	assert.Equal(t, "customerCopyJob", b.JobName)
	assert.Equal(t, 3, b.ChunkSize)
	assert.Equal(t, 2, b.PageSize)
	assert.Equal(t, config.ReaderReadAhead, b.Reader)
	assert.Equal(t, 500, b.ReadAheadPageSize, "defaults survive")
	assert.Equal(t, "always", b.ItemSkip.Policy)
	assert.Equal(t, "never", b.ItemRetry.Policy)
	assert.Equal(t, "DEBUG", cfg.ChunkBatch.System.Logging.Level)
	assert.Equal(t, []int64{10, 11, 12}, cfg.ChunkBatch.Simulation.WriteErrorIDs)

	db := cfg.Section("database")
	require.NotNil(t, db)
	workload, ok := db["workload"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "file:test.db", workload["database"])

	assert.Nil(t, cfg.Section("storage"))
	assert.NoError(t, config.Validate(cfg))
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	t.Setenv("CHUNKBATCH_BATCH_CHUNK_SIZE", "7")
	t.Setenv("CHUNKBATCH_SIMULATION_READ_ERROR_IDS", "15, 16")
	t.Setenv("CHUNKBATCH_INFRASTRUCTURE_MIGRATE", "true")

	cfg, err := config.LoadConfig("", config.EmbeddedConfig(testYAML))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.ChunkBatch.Batch.ChunkSize)
	assert.Equal(t, []int64{15, 16}, cfg.ChunkBatch.Simulation.ReadErrorIDs)
	assert.True(t, cfg.ChunkBatch.Infrastructure.Migrate)
}

func TestLoadConfig_InvalidEnvironmentValue(t *testing.T) {
	t.Setenv("CHUNKBATCH_BATCH_CHUNK_SIZE", "three")

	_, err := config.LoadConfig("", config.EmbeddedConfig(testYAML))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := config.NewConfig()
	require.NoError(t, config.Validate(cfg))

	cfg.ChunkBatch.Batch.ChunkSize = 0
	cfg.ChunkBatch.Batch.Reader = "cursor"
	cfg.ChunkBatch.Batch.ItemSkip.SkippableExceptions = []string{"NoSuchError"}
	cfg.ChunkBatch.Batch.Archive.Enabled = true
	cfg.ChunkBatch.Telemetry.Tracing = "jaeger"

	err := config.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_size")
	assert.Contains(t, err.Error(), "cursor")
	assert.Contains(t, err.Error(), "NoSuchError")
	assert.Contains(t, err.Error(), "storage_ref")
	assert.Contains(t, err.Error(), "jaeger")
}

func TestNewConfigProvider_RejectsInvalidConfig(t *testing.T) {
	_, err := config.NewConfigProvider(config.ConfigParams{
		EmbeddedConfig: config.EmbeddedConfig("chunkbatch:\n  batch:\n    page_size: -1\n"),
	})
	assert.Error(t, err)
}

func TestOsEnvironmentExpander_Defaults(t *testing.T) {
	t.Setenv("CHUNKBATCH_TEST_SET", "sqlite")
	t.Setenv("CHUNKBATCH_TEST_EMPTY", "")

	out, err := config.NewOsEnvironmentExpander().Expand([]byte(
		"a: ${CHUNKBATCH_TEST_SET:-mysql}\nb: ${CHUNKBATCH_TEST_UNSET:-INFO}\nc: ${CHUNKBATCH_TEST_EMPTY:-x}\nd: ${CHUNKBATCH_TEST_UNSET}\n"))
	require.NoError(t, err)
	assert.Equal(t, "a: sqlite\nb: INFO\nc: x\nd: \n", string(out))
}
