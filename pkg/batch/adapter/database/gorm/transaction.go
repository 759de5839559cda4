package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// GormTxAdapter implements tx.Tx on an open gorm transaction.
type GormTxAdapter struct {
	executor
}

// NewGormTxAdapter wraps the transaction handle returned by gorm's Begin.
func NewGormTxAdapter(txDB *gorm.DB) *GormTxAdapter {
	return &GormTxAdapter{executor: executor{db: txDB}}
}

// GormDB returns the transaction handle for callers that need the query builder.
func (t *GormTxAdapter) GormDB() *gorm.DB {
	return t.db
}

// Savepoint implements tx.Tx.
func (t *GormTxAdapter) Savepoint(name string) error {
	return t.db.SavePoint(name).Error
}

// RollbackToSavepoint implements tx.Tx.
func (t *GormTxAdapter) RollbackToSavepoint(name string) error {
	return t.db.RollbackTo(name).Error
}

// GormTransactionManager implements tx.TransactionManager for one database connection.
// The working set it owns is shared by every transaction it begins.
type GormTransactionManager struct {
	db         *gorm.DB
	name       string
	workingSet *tx.UnitOfWork
}

// gormDBHolder is satisfied by GormDBAdapter.
type gormDBHolder interface {
	GormDB() *gorm.DB
}

// NewGormTransactionManager creates a transaction manager over conn, which must be a gorm-backed connection.
func NewGormTransactionManager(conn database.DBConnection) (*GormTransactionManager, error) {
	holder, ok := conn.(gormDBHolder)
	if !ok {
		return nil, fmt.Errorf("connection '%s' is not backed by gorm (%T)", conn.Name(), conn)
	}
	return &GormTransactionManager{
		db:         holder.GormDB(),
		name:       conn.Name(),
		workingSet: tx.NewUnitOfWork(),
	}, nil
}

// Begin implements tx.TransactionManager.
func (m *GormTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	txDB := m.db.WithContext(ctx).Begin(opts...)
	if txDB.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction on '%s': %w", m.name, txDB.Error)
	}
	logger.Debugf("Transaction started on '%s'.", m.name)
	return NewGormTxAdapter(txDB), nil
}

// Commit implements tx.TransactionManager.
func (m *GormTransactionManager) Commit(t tx.Tx) error {
	adapter, err := m.unwrap(t)
	if err != nil {
		return err
	}
	if err := adapter.db.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction on '%s': %w", m.name, err)
	}
	logger.Debugf("Transaction committed on '%s'.", m.name)
	return nil
}

// Rollback implements tx.TransactionManager.
func (m *GormTransactionManager) Rollback(t tx.Tx) error {
	adapter, err := m.unwrap(t)
	if err != nil {
		return err
	}
	if err := adapter.db.Rollback().Error; err != nil {
		return fmt.Errorf("failed to rollback transaction on '%s': %w", m.name, err)
	}
	logger.Debugf("Transaction rolled back on '%s'.", m.name)
	return nil
}

// WorkingSet implements tx.TransactionManager.
func (m *GormTransactionManager) WorkingSet() tx.WorkingSet {
	return m.workingSet
}

func (m *GormTransactionManager) unwrap(t tx.Tx) (*GormTxAdapter, error) {
	adapter, ok := t.(*GormTxAdapter)
	if !ok {
		return nil, fmt.Errorf("unexpected transaction type %T", t)
	}
	return adapter, nil
}

// TransactionManagerFactory creates transaction managers for named connections.
type TransactionManagerFactory interface {
	NewTransactionManager(ctx context.Context, name string) (tx.TransactionManager, error)
}

type gormTransactionManagerFactory struct {
	resolver database.DBConnectionResolver
}

// NewGormTransactionManagerFactory returns a factory resolving connections through resolver.
func NewGormTransactionManagerFactory(resolver database.DBConnectionResolver) TransactionManagerFactory {
	return &gormTransactionManagerFactory{resolver: resolver}
}

func (f *gormTransactionManagerFactory) NewTransactionManager(ctx context.Context, name string) (tx.TransactionManager, error) {
	conn, err := f.resolver.ResolveDBConnection(ctx, name)
	if err != nil {
		return nil, err
	}
	return NewGormTransactionManager(conn)
}

var _ tx.Tx = (*GormTxAdapter)(nil)
var _ tx.TransactionManager = (*GormTransactionManager)(nil)
