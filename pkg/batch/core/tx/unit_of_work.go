package tx

import (
	"context"
	"fmt"
	"sync"
)

// Entry is one staged upsert.
type Entry struct {
	// Table is the target table.
	Table string
	// Model is the entity to upsert.
	Model interface{}
	// ConflictColumns identify the row. Empty means a plain insert.
	ConflictColumns []string
	// UpdateColumns are overwritten on conflict. Empty means a conflicting row is left untouched.
	UpdateColumns []string
}

// UnitOfWork is the WorkingSet used by the transaction managers of this module.
// Entries are flushed in staging order through Tx.ExecuteUpsert.
type UnitOfWork struct {
	mu      sync.Mutex
	entries []Entry
}

// NewUnitOfWork returns an empty unit of work.
func NewUnitOfWork() *UnitOfWork {
	return &UnitOfWork{}
}

// Stage implements WorkingSet.
func (u *UnitOfWork) Stage(e Entry) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.entries = append(u.entries, e)
}

// IsEmpty implements WorkingSet.
func (u *UnitOfWork) IsEmpty() bool {
	return u.Len() == 0
}

// Len implements WorkingSet.
func (u *UnitOfWork) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.entries)
}

// Flush implements WorkingSet. On failure the unflushed entries stay staged; the caller
// rolls back and clears.
func (u *UnitOfWork) Flush(ctx context.Context, t Tx) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	var total int64
	for i, e := range u.entries {
		n, err := t.ExecuteUpsert(ctx, e.Model, e.Table, e.ConflictColumns, e.UpdateColumns)
		if err != nil {
			u.entries = u.entries[i:]
			return total, fmt.Errorf("flush of %s failed after %d entries: %w", e.Table, i, err)
		}
		total += n
	}
	u.entries = nil
	return total, nil
}

// Clear implements WorkingSet.
func (u *UnitOfWork) Clear() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.entries = nil
}

var _ WorkingSet = (*UnitOfWork)(nil)
