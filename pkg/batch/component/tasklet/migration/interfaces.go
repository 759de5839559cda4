package migration

import (
	"context"
	"io/fs"

	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database"
)

// DefaultMigrationsTable records the applied schema versions.
const DefaultMigrationsTable = "chunkbatch_schema_migrations"

// Migrator applies the SQL migrations found in a directory of an fs.FS.
type Migrator interface {
	// Up applies all pending migrations. tableName records the applied versions.
	Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
	// Down rolls back all applied migrations.
	Down(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
}

// MigratorProvider creates a Migrator bound to one database connection.
type MigratorProvider interface {
	NewMigrator(dbConn database.DBConnection) Migrator
}
