// Package app wires the customer copy application: configuration, database and storage
// adapters, telemetry, the job repository and launcher, and the jobs.
package app

import (
	"strings"

	"go.uber.org/fx"

	"github.com/tigerroll/chunkbatch/example/customercopy/internal/job"
	"github.com/tigerroll/chunkbatch/example/customercopy/internal/schema"
	gormadapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm/mysql"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm/postgres"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/gcs"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/tasklet/migration"
	usecase "github.com/tigerroll/chunkbatch/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/chunkbatch/pkg/batch/core/config"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/config/support"
	inframetrics "github.com/tigerroll/chunkbatch/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/chunkbatch/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/chunkbatch/pkg/batch/infrastructure/telemetry"
	"github.com/tigerroll/chunkbatch/pkg/batch/listener/logging"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// DBProviderModules maps a database type to the module registering its DBProvider.
var DBProviderModules = map[string]fx.Option{
	sqlite.DBType:   sqlite.Module,
	mysql.DBType:    mysql.Module,
	postgres.DBType: postgres.Module,
}

// SelectDBProviders returns the provider modules named in the comma-separated list.
// An empty list selects every provider.
func SelectDBProviders(names string) []fx.Option {
	if strings.TrimSpace(names) == "" {
		names = "postgres,mysql,sqlite"
	}

	options := make([]fx.Option, 0, len(DBProviderModules))
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if module, ok := DBProviderModules[name]; ok {
			options = append(options, module)
			logger.Debugf("DB Provider '%s' selected and registered.", name)
		} else {
			logger.Warnf("DB Provider '%s' is configured but not recognized/supported. Skipping.", name)
		}
	}
	return options
}

// Options assembles the application graph. The binary and the tests share it.
func Options(embeddedConfig config.EmbeddedConfig, envFilePath string, dbProviders ...fx.Option) fx.Option {
	return fx.Options(
		fx.Supply(
			embeddedConfig,
			fx.Annotated{Name: "envFilePath", Target: envFilePath},
		),
		fx.Options(dbProviders...),

		config.Module,
		gormadapter.Module,
		storage.Module,
		local.Module,
		gcs.Module,
		telemetry.Module,
		inframetrics.Module,
		inmemory.Module,
		logging.Module,
		migration.Module,
		schema.Module,
		support.Module,
		usecase.Module,
		job.Module,

		fx.Provide(NewRunner),
	)
}
