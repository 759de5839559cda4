package gorm

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/config"
	config "github.com/tigerroll/chunkbatch/pkg/batch/core/config"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// BaseProvider opens and caches the named connections of one database type. The sqlite,
// mysql and postgres providers embed it.
type BaseProvider struct {
	cfg    *config.Config
	dbType string

	mu    sync.Mutex
	conns map[string]database.DBConnection
}

func NewBaseProvider(cfg *config.Config, dbType string) *BaseProvider {
	return &BaseProvider{cfg: cfg, dbType: dbType, conns: make(map[string]database.DBConnection)}
}

func (p *BaseProvider) Type() string { return p.dbType }

// GetConnection returns the cached connection name, opening it on first use.
func (p *BaseProvider) GetConnection(name string) (database.DBConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[name]; ok {
		return conn, nil
	}
	conn, err := p.open(name)
	if err != nil {
		return nil, err
	}
	logger.Infof("Established new DB connection: %s (%s)", name, p.dbType)
	return conn, nil
}

// ForceReconnect drops the cached connection name and opens a fresh one. Migrations call it
// after changing the schema underneath an open pool.
func (p *BaseProvider) ForceReconnect(name string) (database.DBConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if old, ok := p.conns[name]; ok {
		delete(p.conns, name)
		if err := old.Close(); err != nil {
			logger.Warnf("Failed to close connection '%s' before reconnect: %v", name, err)
		}
	}
	conn, err := p.open(name)
	if err != nil {
		return nil, err
	}
	logger.Infof("Re-established DB connection: %s (%s)", name, p.dbType)
	return conn, nil
}

// CloseAll closes every cached connection and empties the cache.
func (p *BaseProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result *multierror.Error
	for name, conn := range p.conns {
		if err := conn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close '%s': %w", name, err))
		}
	}
	p.conns = make(map[string]database.DBConnection)
	return result.ErrorOrNil()
}

// open must be called with p.mu held.
func (p *BaseProvider) open(name string) (database.DBConnection, error) {
	dbConfig, err := LookupDatabaseConfig(p.cfg, name)
	if err != nil {
		return nil, err
	}
	if dbConfig.Type != p.dbType {
		return nil, fmt.Errorf("connection '%s' is of type '%s', provider serves '%s'", name, dbConfig.Type, p.dbType)
	}
	db, err := Open(dbConfig)
	if err != nil {
		return nil, err
	}
	conn, err := NewGormDBAdapter(db, dbConfig, name)
	if err != nil {
		return nil, err
	}
	p.conns[name] = conn
	return conn, nil
}

// LookupDatabaseConfig binds the adapter.database.<name> section of cfg.
func LookupDatabaseConfig(cfg *config.Config, name string) (dbconfig.DatabaseConfig, error) {
	var dbConfig dbconfig.DatabaseConfig
	found, err := configbinder.BindSection(cfg.Section("database"), name, &dbConfig)
	if err != nil {
		return dbConfig, fmt.Errorf("failed to decode database config for '%s': %w", name, err)
	}
	if !found {
		return dbConfig, fmt.Errorf("database configuration '%s' not found under adapter.database", name)
	}
	return dbConfig, nil
}

// Open connects with the dialector registered for dbConfig.Type and applies the pool settings.
func Open(dbConfig dbconfig.DatabaseConfig) (*gorm.DB, error) {
	newDialector, err := GetDialectorFactory(dbConfig.Type)
	if err != nil {
		return nil, err
	}
	dialector, err := newDialector(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialector for %s: %w", dbConfig.Type, err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: NewGormLogger(dbConfig.LogLevel)})
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	applyPool(sqlDB, dbConfig.Pool)
	return db, nil
}

func applyPool(db *sql.DB, pool dbconfig.PoolConfig) {
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetimeMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetimeMinutes) * time.Minute)
	}
}
