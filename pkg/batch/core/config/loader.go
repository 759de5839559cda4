package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig      // EmbeddedConfig contains the raw bytes of the configuration file.
	Expander       EnvironmentExpander `optional:"true"`
	EnvFilePath    string              `name:"envFilePath" optional:"true"` // EnvFilePath is the path to the .env file, if any.
}

// loadConfig loads defaults, then the embedded YAML (after ${VAR} expansion), then environment overrides.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}
	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to expand environment variables in config", err, false, false)
	}

	// Unmarshalling onto the defaults keeps every value the YAML does not mention.
	cfg := NewConfig()
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}
	if cfg.ChunkBatch.AdapterConfigs == nil {
		cfg.ChunkBatch.AdapterConfigs = map[string]interface{}{}
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	cfg.EmbeddedConfig = embeddedConfig
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads, validates and provides *Config.
// It also sets the global logger level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig, params.Expander)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.ChunkBatch.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.ChunkBatch.System.Logging.Level)

	if err := Validate(cfg); err != nil {
		return nil, exception.NewBatchError(moduleName, "invalid configuration", err, false, false)
	}
	return cfg, nil
}

// LoadConfig loads configuration from the embedded YAML, an optional .env file and environment variables.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig, nil)
}

// Validate checks value ranges and that every configured exception name is registered.
// All problems are reported together.
func Validate(cfg *Config) error {
	var result *multierror.Error
	b := cfg.ChunkBatch.Batch

	if b.ChunkSize < 1 {
		result = multierror.Append(result, fmt.Errorf("batch.chunk_size must be positive, got %d", b.ChunkSize))
	}
	if b.PageSize < 1 {
		result = multierror.Append(result, fmt.Errorf("batch.page_size must be positive, got %d", b.PageSize))
	}
	if b.ReadAheadPageSize < 1 {
		result = multierror.Append(result, fmt.Errorf("batch.read_ahead_page_size must be positive, got %d", b.ReadAheadPageSize))
	}
	if b.Reader != ReaderPaging && b.Reader != ReaderReadAhead {
		result = multierror.Append(result, fmt.Errorf("batch.reader must be '%s' or '%s', got '%s'", ReaderPaging, ReaderReadAhead, b.Reader))
	}
	if err := checkExceptionClasses(b.ItemRetry.RetryableExceptions, "ItemRetry"); err != nil {
		result = multierror.Append(result, err)
	}
	if err := checkExceptionClasses(b.ItemSkip.SkippableExceptions, "ItemSkip"); err != nil {
		result = multierror.Append(result, err)
	}
	if b.Archive.Enabled && b.Archive.StorageRef == "" {
		result = multierror.Append(result, fmt.Errorf("batch.archive.storage_ref is required when the archive is enabled"))
	}
	t := cfg.ChunkBatch.Telemetry
	switch t.Metrics {
	case "", "none", "prometheus", "otel":
	default:
		result = multierror.Append(result, fmt.Errorf("telemetry.metrics must be 'none', 'prometheus' or 'otel', got '%s'", t.Metrics))
	}
	switch t.Tracing {
	case "", "none", "otel":
	default:
		result = multierror.Append(result, fmt.Errorf("telemetry.tracing must be 'none' or 'otel', got '%s'", t.Tracing))
	}
	return result.ErrorOrNil()
}

// checkExceptionClasses validates that all exception class names in the provided list
// are registered in the exception registry.
func checkExceptionClasses(classNames []string, configType string) error {
	for _, name := range classNames {
		if !exception.IsErrorTypeRegistered(name) {
			return fmt.Errorf("%s configuration references unknown exception class: '%s'", configType, name)
		}
	}
	return nil
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// It uses the "yaml" tag to determine the environment variable name, e.g. CHUNKBATCH_BATCH_CHUNK_SIZE.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		switch field.Kind() {
		case reflect.Struct:
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		case reflect.Map:
			// Adapter sections are overridden through ${VAR} placeholders in the YAML instead.
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField sets the value of a reflect.Value field based on its kind.
// Slices take a comma-separated list.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		parts := []string{}
		if strings.TrimSpace(value) != "" {
			parts = strings.Split(value, ",")
		}
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			if err := setField(slice.Index(i), strings.TrimSpace(p)); err != nil {
				return err
			}
		}
		field.Set(slice)
	}
	return nil
}
