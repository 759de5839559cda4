// Package tx abstracts the transaction boundary of a chunk and the working set staged inside it.
package tx

import (
	"context"
	"database/sql"
)

// TxExecutor is the set of data operations available inside a transaction.
type TxExecutor interface {
	// ExecuteUpdate runs a CREATE, UPDATE or DELETE of model against tableName.
	// query holds equality conditions combined with AND; a DELETE with an empty query removes every row.
	ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpsert inserts model, updating updateColumns when conflictColumns collide.
	// With no updateColumns a conflict is ignored.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)

	// ExecuteQuery loads rows of tableName matching query into target (a pointer to a slice).
	ExecuteQuery(ctx context.Context, target interface{}, tableName string, query map[string]interface{}, opts QueryOptions) error

	// Pluck loads one column of every row of tableName into dest, ordered by orderBy.
	Pluck(ctx context.Context, tableName string, column string, orderBy string, dest interface{}) error
}

// QueryOptions shape an ExecuteQuery. A zero Limit means no limit.
type QueryOptions struct {
	OrderBy string
	Offset  int
	Limit   int
}

// Tx is an open transaction.
type Tx interface {
	TxExecutor

	Savepoint(name string) error
	RollbackToSavepoint(name string) error
}

// WorkingSet is the staging area (unit of work) of a transaction manager. Writers stage
// entities into it and the chunk executor flushes it right before commit. It must be empty
// whenever a new chunk starts.
type WorkingSet interface {
	// Stage queues e for the next Flush.
	Stage(e Entry)
	// IsEmpty reports whether nothing is staged.
	IsEmpty() bool
	// Len is the number of staged entities.
	Len() int
	// Flush writes every staged entity through t and empties the set.
	Flush(ctx context.Context, t Tx) (int64, error)
	// Clear drops every staged entity without writing it.
	Clear()
}

// TransactionManager controls the transaction lifecycle and owns the working set shared by its transactions.
type TransactionManager interface {
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	Commit(t Tx) error
	Rollback(t Tx) error
	WorkingSet() WorkingSet
}

type txContextKey struct{}

// WithTx returns a context carrying t. Readers, processors and writers find the chunk transaction with FromContext.
func WithTx(ctx context.Context, t Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, t)
}

// FromContext returns the transaction stored by WithTx.
func FromContext(ctx context.Context) (Tx, bool) {
	t, ok := ctx.Value(txContextKey{}).(Tx)
	return t, ok && t != nil
}
