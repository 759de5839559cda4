package test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
)

type identifiable interface {
	ItemID() int64
}

// MemoryStore is a map-backed target store. Items only become visible after a commit.
type MemoryStore struct {
	mu        sync.Mutex
	committed map[int64]interface{}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{committed: make(map[int64]interface{})}
}

// IDs returns the committed identities in ascending order.
func (s *MemoryStore) IDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.committed))
	for id := range s.committed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clear removes every committed item.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = make(map[int64]interface{})
}

// MemoryTx buffers upserted items until commit. Only ExecuteUpsert is backed by the
// store; other Tx methods fall through to the embedded mock.
type MemoryTx struct {
	MockTx
	staged    map[int64]interface{}
	upsertErr error
}

// ExecuteUpsert stages model, or every element of a slice (pointer) model, under its ItemID.
func (t *MemoryTx) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	if t.upsertErr != nil {
		return 0, t.upsertErr
	}
	v := reflect.Indirect(reflect.ValueOf(model))
	if v.Kind() != reflect.Slice {
		return t.stage(model, tableName)
	}
	for i := 0; i < v.Len(); i++ {
		if _, err := t.stage(v.Index(i).Interface(), tableName); err != nil {
			return 0, err
		}
	}
	return int64(v.Len()), nil
}

func (t *MemoryTx) stage(model interface{}, tableName string) (int64, error) {
	item, ok := model.(identifiable)
	if !ok {
		return 0, fmt.Errorf("memory tx cannot upsert %T into %s: no ItemID", model, tableName)
	}
	t.staged[item.ItemID()] = model
	return 1, nil
}

// MemoryTxManager is a transaction manager over a MemoryStore that records every boundary call.
type MemoryTxManager struct {
	Store     *MemoryStore
	Set       *tx.UnitOfWork
	Begins    int
	Commits   int
	Rollbacks int
	BeginErr  error
	CommitErr error
	// UpsertErr, when set, makes the flush of the next transaction fail once.
	UpsertErr error
	openTx    *MemoryTx
}

// NewMemoryTxManager returns a manager over a fresh store.
func NewMemoryTxManager() *MemoryTxManager {
	return &MemoryTxManager{Store: NewMemoryStore(), Set: tx.NewUnitOfWork()}
}

func (m *MemoryTxManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	if m.BeginErr != nil {
		return nil, m.BeginErr
	}
	if m.openTx != nil {
		return nil, errors.New("a transaction is already open")
	}
	m.Begins++
	m.openTx = &MemoryTx{staged: make(map[int64]interface{}), upsertErr: m.UpsertErr}
	m.UpsertErr = nil
	return m.openTx, nil
}

func (m *MemoryTxManager) Commit(t tx.Tx) error {
	if m.CommitErr != nil {
		return m.CommitErr
	}
	mt := t.(*MemoryTx)
	m.Store.mu.Lock()
	for id, item := range mt.staged {
		m.Store.committed[id] = item
	}
	m.Store.mu.Unlock()
	m.Commits++
	m.openTx = nil
	return nil
}

func (m *MemoryTxManager) Rollback(t tx.Tx) error {
	m.Rollbacks++
	m.openTx = nil
	m.Set.Clear()
	return nil
}

func (m *MemoryTxManager) WorkingSet() tx.WorkingSet {
	return m.Set
}

var _ tx.TransactionManager = (*MemoryTxManager)(nil)
