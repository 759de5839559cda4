// Package config holds the settings of one database connection, bound from the adapter.database section.
package config

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Type     string     `yaml:"type"`             // Database type ("sqlite", "mysql", "postgres").
	Host     string     `yaml:"host"`             // Database host address.
	Port     int        `yaml:"port"`             // Database port number.
	Database string     `yaml:"database"`         // Database name, or the file / DSN for SQLite.
	User     string     `yaml:"user"`             // Database user.
	Password string     `yaml:"password"`         // Database password.
	Schema   string     `yaml:"schema,omitempty"` // Schema (search_path) for PostgreSQL.
	Sslmode  string     `yaml:"sslmode"`          // SSL mode for PostgreSQL.
	LogLevel string     `yaml:"log_level"`        // gorm log level: SILENT, ERROR, WARN, INFO.
	Pool     PoolConfig `yaml:"pool"`             // Connection pool settings.
}
