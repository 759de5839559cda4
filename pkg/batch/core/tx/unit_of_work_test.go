package tx_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	testutil "github.com/tigerroll/chunkbatch/pkg/batch/test"
)

type row struct{ ID int64 }

func TestUnitOfWork_FlushInStagingOrder(t *testing.T) {
	ctx := context.Background()
	uow := tx.NewUnitOfWork()
	assert.True(t, uow.IsEmpty())

	uow.Stage(tx.Entry{Table: "customer", Model: &row{ID: 1}, ConflictColumns: []string{"id"}, UpdateColumns: []string{"name"}})
	uow.Stage(tx.Entry{Table: "customer", Model: &row{ID: 2}, ConflictColumns: []string{"id"}, UpdateColumns: []string{"name"}})
	assert.Equal(t, 2, uow.Len())

	mockTx := &testutil.MockTx{}
	var order []int64
	mockTx.On("ExecuteUpsert", ctx, mock.Anything, "customer", []string{"id"}, []string{"name"}).
		Run(func(args mock.Arguments) { order = append(order, args.Get(1).(*row).ID) }).
		Return(int64(1), nil)

	n, err := uow.Flush(ctx, mockTx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []int64{1, 2}, order)
	assert.True(t, uow.IsEmpty())
}

func TestUnitOfWork_FlushFailureKeepsRemainingEntries(t *testing.T) {
	ctx := context.Background()
	uow := tx.NewUnitOfWork()
	uow.Stage(tx.Entry{Table: "customer", Model: &row{ID: 1}})
	uow.Stage(tx.Entry{Table: "customer", Model: &row{ID: 2}})

	boom := errors.New("constraint violation")
	mockTx := &testutil.MockTx{}
	mockTx.On("ExecuteUpsert", ctx, &row{ID: 1}, "customer", []string(nil), []string(nil)).Return(int64(1), nil)
	mockTx.On("ExecuteUpsert", ctx, &row{ID: 2}, "customer", []string(nil), []string(nil)).Return(int64(0), boom)

	n, err := uow.Flush(ctx, mockTx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, uow.Len())

	uow.Clear()
	assert.True(t, uow.IsEmpty())
}
