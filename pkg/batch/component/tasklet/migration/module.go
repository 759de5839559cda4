// Package migration applies embedded SQL schema migrations with golang-migrate, as a tasklet.
package migration

import (
	"go.uber.org/fx"

	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/tasklet/migration/filesystem"
)

// TaskletFactoryParams defines the dependencies for NewTaskletFactory.
type TaskletFactoryParams struct {
	fx.In
	DBResolver       database.DBConnectionResolver
	DBProviders      []database.DBProvider `group:"db_providers"`
	MigratorProvider MigratorProvider
	Sources          []filesystem.NamedFS `group:"migration_fs"`
}

// TaskletFactory builds MigrationTasklets from properties.
type TaskletFactory struct {
	p TaskletFactoryParams
}

// NewTaskletFactory creates a TaskletFactory.
func NewTaskletFactory(p TaskletFactoryParams) *TaskletFactory {
	return &TaskletFactory{p: p}
}

// New creates a MigrationTasklet configured by properties (see TaskletConfig).
func (f *TaskletFactory) New(properties map[string]interface{}) (*MigrationTasklet, error) {
	return NewMigrationTasklet(properties, f.p.DBResolver, f.p.DBProviders, f.p.MigratorProvider, f.p.Sources)
}

// Module provides the MigratorProvider and the TaskletFactory.
var Module = fx.Options(
	fx.Provide(NewMigratorProvider),
	fx.Provide(NewTaskletFactory),
)
