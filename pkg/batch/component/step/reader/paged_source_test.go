package reader_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/reader"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	testutil "github.com/tigerroll/chunkbatch/pkg/batch/test"
)

type customerTmp struct {
	ID   int64 `gorm:"primaryKey;autoIncrement:false"`
	Name string
}

func (customerTmp) TableName() string { return "customer_tmp" }

func TestGormPagedSource(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t, &customerTmp{})
	for id := int64(5); id >= 1; id-- {
		require.NoError(t, db.Create(&customerTmp{ID: id, Name: "c"}).Error)
	}
	conn, err := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "sqlite"}, "workload")
	require.NoError(t, err)

	source := reader.NewGormPagedSource[customerTmp](conn, "customer_tmp", "id", nil)

	page, err := source.FetchPage(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, []int64{3, 4}, []int64{page[0].ID, page[1].ID})

	again, err := source.FetchPage(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, page, again, "the same request returns the same items")

	last, err := source.FetchPage(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, last, 1)

	empty, err := source.FetchPage(ctx, 3, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = source.FetchPage(ctx, -1, 2)
	assert.Error(t, err)
}

func TestGormPagedSource_UsesContextTransaction(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t, &customerTmp{})
	conn, err := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "sqlite"}, "workload")
	require.NoError(t, err)
	tm, err := gormadapter.NewGormTransactionManager(conn)
	require.NoError(t, err)

	txn, err := tm.Begin(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tm.Rollback(txn) })
	_, err = txn.ExecuteUpdate(ctx, &customerTmp{ID: 1, Name: "uncommitted"}, "CREATE", "customer_tmp", nil)
	require.NoError(t, err)

	source := reader.NewGormPagedSource[customerTmp](conn, "customer_tmp", "id", nil)
	page, err := source.FetchPage(tx.WithTx(ctx, txn), 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "uncommitted", page[0].Name)
}

func TestGormPagedSource_StoreFailureIsSourceUnavailable(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	conn, err := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "sqlite"}, "workload")
	require.NoError(t, err)

	source := reader.NewGormPagedSource[customerTmp](conn, "customer_tmp", "id", nil)
	_, err = source.FetchPage(context.Background(), 0, 2)
	require.Error(t, err)
	assert.True(t, exception.IsSourceUnavailable(err))
	assert.False(t, exception.IsFatal(err))
}

func mapCustomer(rows *sql.Rows) (customerTmp, error) {
	var c customerTmp
	err := rows.Scan(&c.ID, &c.Name)
	return c, err
}

func TestSqlPagedSource(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	query := regexp.QuoteMeta("SELECT id, name FROM customer_tmp WHERE id > ? ORDER BY id LIMIT ? OFFSET ?")
	mock.ExpectQuery(query).
		WithArgs(0, 2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(3, "c").AddRow(4, "d"))
	mock.ExpectQuery(query).
		WithArgs(0, 2, 4).
		WillReturnError(errors.New("driver: bad connection"))
	mock.ExpectQuery(query).
		WithArgs(0, 2, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("not-a-number", "a"))

	source := reader.NewSqlPagedSource[customerTmp](db, "SELECT id, name FROM customer_tmp WHERE id > ? ORDER BY id", []any{0}, mapCustomer)

	page, err := source.FetchPage(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []customerTmp{{ID: 3, Name: "c"}, {ID: 4, Name: "d"}}, page)

	_, err = source.FetchPage(context.Background(), 2, 2)
	require.Error(t, err)
	assert.True(t, exception.IsSourceUnavailable(err))

	_, err = source.FetchPage(context.Background(), 0, 2)
	require.Error(t, err)
	assert.False(t, exception.IsSourceUnavailable(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}
