// Package database declares the database connection contracts implemented by the gorm adapter.
package database

import (
	"context"
	"database/sql"

	dbconfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/config"
	coreAdapter "github.com/tigerroll/chunkbatch/pkg/batch/core/adapter"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
)

// DBConnection represents an abstraction of a database connection.
// Outside a transaction it offers the same data operations as a tx.Tx.
type DBConnection interface {
	coreAdapter.ResourceConnection // Embeds Type(), Name(), Close()
	tx.TxExecutor                  // Embeds ExecuteUpdate, ExecuteUpsert, ExecuteQuery, Pluck

	// IsTableNotExistError checks if the given error indicates that a table does not exist.
	IsTableNotExistError(err error) bool
	// RefreshConnection pings the database.
	RefreshConnection(ctx context.Context) error
	// Config returns the database configuration associated with this connection.
	Config() dbconfig.DatabaseConfig
	// GetSQLDB returns the underlying *sql.DB connection.
	GetSQLDB() (*sql.DB, error)
}

// DBConnectionResolver resolves a named connection and re-establishes it when it went stale.
type DBConnectionResolver interface {
	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}

// DBProvider is responsible for providing database connections of one type based on configuration.
type DBProvider interface {
	// GetConnection retrieves a database connection with the specified name.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the database type handled by this provider (e.g., "sqlite").
	Type() string
	// ForceReconnect closes and re-establishes the connection with the specified name.
	ForceReconnect(name string) (DBConnection, error)
}

// DBProviderGroup is the Fx value group collecting all DBProvider implementations.
const DBProviderGroup = "db_providers"
