// Package config provides structures and utilities for managing application configuration.
package config

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelSilent LogLevel = "SILENT"
)

// Reader strategies accepted by BatchConfig.Reader.
const (
	ReaderPaging    = "paging"
	ReaderReadAhead = "read_ahead"
)

// ItemRetryConfig holds item-level retry configuration.
type ItemRetryConfig struct {
	Policy              string   `yaml:"policy"`               // "never", "simple" or empty (simple when max_attempts > 1).
	MaxAttempts         int      `yaml:"max_attempts"`         // Attempts per chunk, the first one included.
	InitialInterval     int      `yaml:"initial_interval"`     // Backoff between attempts in milliseconds.
	RetryableExceptions []string `yaml:"retryable_exceptions"` // Registered exception names.
}

// ItemSkipConfig holds item-level skip configuration.
type ItemSkipConfig struct {
	Policy              string   `yaml:"policy"`               // "always", "never", "limit" or empty (limit).
	SkipLimit           int      `yaml:"skip_limit"`           // Maximum number of skipped items; -1 is unlimited.
	SkippableExceptions []string `yaml:"skippable_exceptions"` // Registered exception names.
}

// ArchiveConfig controls the optional export of the copied rows.
type ArchiveConfig struct {
	Enabled      bool   `yaml:"enabled"`
	StorageRef   string `yaml:"storage_ref"`   // Name of the storage connection under adapter.storage.
	Bucket       string `yaml:"bucket"`        // Bucket, or directory below base_dir for local storage.
	ObjectPrefix string `yaml:"object_prefix"` // The object name is <prefix>-<yyyymmddhhmmss>-<uuid8>.parquet.
}

// BatchConfig holds configuration specific to the batch processing engine.
type BatchConfig struct {
	// JobName is the job launched by the application.
	JobName string `yaml:"job_name"`
	// ChunkSize is the number of item slots in one chunk.
	ChunkSize int `yaml:"chunk_size"`
	// PageSize is the page size of the paging reader.
	PageSize int `yaml:"page_size"`
	// Reader selects the reader strategy: "paging" or "read_ahead".
	Reader string `yaml:"reader"`
	// ReadAheadPageSize is the page size of the read-ahead reader.
	ReadAheadPageSize int `yaml:"read_ahead_page_size"`
	// IsolationLevel of the chunk transactions (e.g. "READ_COMMITTED"). Empty uses the database default.
	IsolationLevel string `yaml:"isolation_level"`
	// Runs is the number of times the application launches the job.
	Runs int `yaml:"runs"`
	// ItemRetry is the item-level retry configuration.
	ItemRetry ItemRetryConfig `yaml:"item_retry"`
	// ItemSkip is the item-level skip configuration.
	ItemSkip ItemSkipConfig `yaml:"item_skip"`
	// Archive is the configuration of the archive step.
	Archive ArchiveConfig `yaml:"archive"`
}

// SimulationConfig describes the seeded data set and the injected faults.
type SimulationConfig struct {
	ItemCount       int     `yaml:"item_count"`
	ReadErrorIDs    []int64 `yaml:"read_error_ids"`
	ProcessErrorIDs []int64 `yaml:"process_error_ids"`
	WriteErrorIDs   []int64 `yaml:"write_error_ids"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "Asia/Tokyo").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// InfrastructureConfig holds logical dependency settings for infrastructure components.
type InfrastructureConfig struct {
	// DatabaseRef is the name of the database connection holding the source and target tables.
	DatabaseRef string `yaml:"database_ref"`
	// Migrate applies the embedded schema migrations before the job runs.
	Migrate bool `yaml:"migrate"`
}

// ExporterConfig configures an OTLP exporter.
type ExporterConfig struct {
	Protocol string `yaml:"protocol"` // "grpc" or "http".
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// TelemetryConfig selects the metric recorder and the tracer.
type TelemetryConfig struct {
	// Metrics is "none", "prometheus" or "otel".
	Metrics string `yaml:"metrics"`
	// Tracing is "none" or "otel".
	Tracing string `yaml:"tracing"`
	// ServiceName is reported as the OpenTelemetry service.name resource attribute.
	ServiceName string `yaml:"service_name"`
	// Exporter configures OTLP export. An empty endpoint keeps telemetry in-process.
	Exporter ExporterConfig `yaml:"exporter"`
	// PrometheusListen is the address serving /metrics for the prometheus backend (e.g. ":9090").
	PrometheusListen string `yaml:"prometheus_listen"`
	// AsyncBufferSize, when positive, records metrics from a background goroutine with a queue of this size.
	AsyncBufferSize int `yaml:"async_buffer_size"`
}

// ChunkBatchConfig holds all configuration under the "chunkbatch" top-level key.
type ChunkBatchConfig struct {
	Batch          BatchConfig          `yaml:"batch"`
	System         SystemConfig         `yaml:"system"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Simulation     SimulationConfig     `yaml:"simulation"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	// AdapterConfigs holds the raw "database" and "storage" connection sections, keyed by connection name.
	// Adapters bind their own section with configbinder.
	AdapterConfigs map[string]interface{} `yaml:"adapter"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	ChunkBatch ChunkBatchConfig `yaml:"chunkbatch"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	return &Config{
		ChunkBatch: ChunkBatchConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Batch: BatchConfig{
				ChunkSize:         10,
				PageSize:          10,
				Reader:            ReaderPaging,
				ReadAheadPageSize: 500,
				Runs:              1,
				ItemRetry: ItemRetryConfig{
					Policy:      "never",
					MaxAttempts: 1,
				},
				ItemSkip: ItemSkipConfig{
					Policy:    "limit",
					SkipLimit: 0,
				},
			},
			Infrastructure: InfrastructureConfig{
				DatabaseRef: "workload",
			},
			Telemetry: TelemetryConfig{
				Metrics:     "none",
				Tracing:     "none",
				ServiceName: "chunkbatch",
			},
			AdapterConfigs: map[string]interface{}{},
		},
	}
}

// Section returns the adapter section name ("database", "storage") as a map keyed by connection name.
func (c *Config) Section(name string) map[string]interface{} {
	raw, ok := c.ChunkBatch.AdapterConfigs[name]
	if !ok {
		return nil
	}
	section, _ := raw.(map[string]interface{})
	return section
}
