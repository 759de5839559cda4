package gorm

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
)

// executor runs the tx.TxExecutor operations on a *gorm.DB, which is either the
// connection pool or an open transaction.
type executor struct {
	db *gorm.DB
}

func (e executor) session(ctx context.Context, tableName string) *gorm.DB {
	db := e.db.WithContext(ctx)
	if tableName != "" {
		db = db.Table(tableName)
	}
	return db
}

// ExecuteUpdate implements tx.TxExecutor.
func (e executor) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (int64, error) {
	db := e.session(ctx, tableName)

	var result *gorm.DB
	switch strings.ToUpper(operation) {
	case "CREATE":
		result = db.Create(model)
	case "UPDATE":
		result = db.Model(model).Where(query).Updates(model)
	case "DELETE":
		if len(query) > 0 {
			result = db.Where(query).Delete(model)
		} else {
			result = db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model)
		}
	default:
		return 0, fmt.Errorf("unsupported update operation: %s", operation)
	}

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExecuteUpsert implements tx.TxExecutor.
func (e executor) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	db := e.session(ctx, tableName)
	if len(conflictColumns) == 0 {
		result := db.Create(model)
		return result.RowsAffected, result.Error
	}

	columns := make([]clause.Column, 0, len(conflictColumns))
	for _, col := range conflictColumns {
		columns = append(columns, clause.Column{Name: col})
	}
	onConflict := clause.OnConflict{Columns: columns}
	if len(updateColumns) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(updateColumns)
	} else {
		onConflict.DoNothing = true
	}

	result := db.Clauses(onConflict).Create(model)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExecuteQuery implements tx.TxExecutor.
func (e executor) ExecuteQuery(ctx context.Context, target interface{}, tableName string, query map[string]interface{}, opts tx.QueryOptions) error {
	db := e.session(ctx, tableName)
	if len(query) > 0 {
		db = db.Where(query)
	}
	if opts.OrderBy != "" {
		db = db.Order(opts.OrderBy)
	}
	if opts.Offset > 0 {
		db = db.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		db = db.Limit(opts.Limit)
	}
	return db.Find(target).Error
}

// Pluck implements tx.TxExecutor.
func (e executor) Pluck(ctx context.Context, tableName string, column string, orderBy string, dest interface{}) error {
	db := e.session(ctx, tableName)
	if orderBy != "" {
		db = db.Order(orderBy)
	}
	return db.Pluck(column, dest).Error
}

// IsTableNotExistError recognizes the "missing table" errors of PostgreSQL, MySQL and SQLite.
func IsTableNotExistError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return (strings.Contains(errMsg, "relation \"") && strings.Contains(errMsg, "\" does not exist")) || // PostgreSQL
		(strings.Contains(errMsg, "Error 1146") && strings.Contains(errMsg, "doesn't exist")) || // MySQL
		strings.Contains(errMsg, "no such table:") // SQLite
}
