package config

import "go.uber.org/fx"

// NewLoggingConfigProvider extracts *LoggingConfig from *Config so components can depend on it alone.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.ChunkBatch.System.Logging
}

// Module provides *Config (from the supplied EmbeddedConfig), the logging configuration and the EnvironmentExpander.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(NewLoggingConfigProvider),
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
)
