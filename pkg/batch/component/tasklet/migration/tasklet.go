package migration

import (
	"context"
	"io/fs"

	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/tasklet/migration/filesystem"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

const taskletName = "migrationTasklet"

// Execution context keys written by the tasklet.
const (
	ContextKeyDir     = "migration.dir"
	ContextKeyCommand = "migration.command"
)

// TaskletConfig holds the properties of a MigrationTasklet.
type TaskletConfig struct {
	// DBRef is the adapter.database connection to migrate.
	DBRef string `yaml:"db_ref"`
	// FSName is the registered migration file system.
	FSName string `yaml:"fs_name"`
	// Dir is the directory inside the file system. Empty uses the database type.
	Dir string `yaml:"dir"`
	// Command is "up" (default) or "down".
	Command string `yaml:"command"`
	// Table records the applied versions. Empty uses DefaultMigrationsTable.
	Table string `yaml:"table"`
}

// MigrationTasklet applies the schema migrations of one file system to one database
// connection, then re-establishes the connection because golang-migrate closes it.
type MigrationTasklet struct {
	cfg        TaskletConfig
	dbResolver database.DBConnectionResolver
	providers  map[string]database.DBProvider
	migrators  MigratorProvider
	sources    map[string]fs.FS
}

// NewMigrationTasklet creates a MigrationTasklet from its properties.
func NewMigrationTasklet(
	properties map[string]interface{},
	dbResolver database.DBConnectionResolver,
	providers []database.DBProvider,
	migrators MigratorProvider,
	sources []filesystem.NamedFS,
) (*MigrationTasklet, error) {
	var cfg TaskletConfig
	if err := configbinder.Bind(properties, &cfg); err != nil {
		return nil, exception.NewBatchError(taskletName, "invalid migration tasklet properties", err, false, false)
	}
	if cfg.DBRef == "" {
		return nil, exception.NewBatchErrorf(taskletName, "property 'db_ref' is required")
	}
	if cfg.FSName == "" {
		return nil, exception.NewBatchErrorf(taskletName, "property 'fs_name' is required")
	}
	if cfg.Command == "" {
		cfg.Command = "up"
	}
	if cfg.Command != "up" && cfg.Command != "down" {
		return nil, exception.NewBatchErrorf(taskletName, "unknown migration command: %s", cfg.Command)
	}
	if cfg.Table == "" {
		cfg.Table = DefaultMigrationsTable
	}

	providerMap := make(map[string]database.DBProvider, len(providers))
	for _, p := range providers {
		providerMap[p.Type()] = p
	}

	logger.Debugf("MigrationTasklet initialized: DB=%s, FS=%s, Dir=%s, Command=%s", cfg.DBRef, cfg.FSName, cfg.Dir, cfg.Command)
	return &MigrationTasklet{
		cfg:        cfg,
		dbResolver: dbResolver,
		providers:  providerMap,
		migrators:  migrators,
		sources:    filesystem.Index(sources),
	}, nil
}

// Execute implements port.Tasklet.
func (t *MigrationTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	migrationFS, ok := t.sources[t.cfg.FSName]
	if !ok {
		return model.ExitStatusFailed, exception.NewBatchErrorf(taskletName, "migration FS '%s' not found", t.cfg.FSName)
	}

	dbConn, err := t.dbResolver.ResolveDBConnection(ctx, t.cfg.DBRef)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(taskletName, "failed to resolve the database connection", err, false, false)
	}
	provider, ok := t.providers[dbConn.Type()]
	if !ok {
		return model.ExitStatusFailed, exception.NewBatchErrorf(taskletName, "DBProvider for type '%s' not found", dbConn.Type())
	}

	dir := t.cfg.Dir
	if dir == "" {
		dir = dbConn.Type()
		logger.Debugf("Using DB type '%s' as migration directory.", dir)
	}

	logger.Infof("Starting database migration '%s' of '%s' from '%s/%s'.", t.cfg.Command, t.cfg.DBRef, t.cfg.FSName, dir)
	migrator := t.migrators.NewMigrator(dbConn)
	if t.cfg.Command == "down" {
		err = migrator.Down(ctx, migrationFS, dir, t.cfg.Table)
	} else {
		err = migrator.Up(ctx, migrationFS, dir, t.cfg.Table)
	}

	// The migrate instance closed the pool whether it succeeded or not.
	if _, reconnectErr := provider.ForceReconnect(t.cfg.DBRef); reconnectErr != nil {
		if err == nil {
			err = reconnectErr
		}
		logger.Errorf("Failed to reconnect '%s' after migration: %v", t.cfg.DBRef, reconnectErr)
	}
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(taskletName, "migration '"+t.cfg.Command+"' failed", err, false, false)
	}

	stepExecution.ExecutionContext.Put(ContextKeyDir, dir)
	stepExecution.ExecutionContext.Put(ContextKeyCommand, t.cfg.Command)
	return model.ExitStatusCompleted, nil
}

var _ port.Tasklet = (*MigrationTasklet)(nil)
