// Package adapter declares what every external resource connection (database, storage) has in common.
package adapter

// ResourceConnection represents a generic connection to any resource (e.g., database, storage).
type ResourceConnection interface {
	// Close closes the resource connection.
	Close() error
	// Type returns the type of the resource (e.g., "mysql", "gcs").
	Type() string
	// Name returns the connection name as configured (e.g., "workload", "archive").
	Name() string
}

// ResourceProvider hands out named connections of one resource type and owns their lifecycle.
type ResourceProvider interface {
	// GetConnection retrieves a resource connection with the specified name.
	GetConnection(name string) (ResourceConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the type of resource handled by this provider (e.g., "sqlite", "local").
	Type() string
}
