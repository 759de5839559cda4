package writer_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm"
	storageAdapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/writer"
	coreConfig "github.com/tigerroll/chunkbatch/pkg/batch/core/config"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	testutil "github.com/tigerroll/chunkbatch/pkg/batch/test"
)

type customer struct {
	ID   int64  `gorm:"primaryKey;autoIncrement:false" parquet:"name=id, type=INT64"`
	Name string `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func (customer) TableName() string { return "customer" }

func TestGormItemWriter_StagesUntilFlush(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t, &customer{})
	conn, err := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "sqlite"}, "workload")
	require.NoError(t, err)
	tm, err := gormadapter.NewGormTransactionManager(conn)
	require.NoError(t, err)

	w := writer.NewGormItemWriter[customer]("customerWriter", tm.WorkingSet(), "customer", []string{"id"}, []string{"name"})
	require.NoError(t, w.Open(ctx, model.NewExecutionContext()))

	txn, err := tm.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, []customer{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}))
	require.NoError(t, w.Write(ctx, nil))
	assert.Equal(t, 1, tm.WorkingSet().Len(), "one entry per batch")

	var count int64
	require.NoError(t, db.Model(&customer{}).Count(&count).Error)
	assert.Zero(t, count, "nothing is written before the flush")

	n, err := tm.WorkingSet().Flush(ctx, txn)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	require.NoError(t, tm.Commit(txn))

	// A second run of the same ids updates in place.
	txn, err = tm.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, []customer{{ID: 2, Name: "bb"}}))
	_, err = tm.WorkingSet().Flush(ctx, txn)
	require.NoError(t, err)
	require.NoError(t, tm.Commit(txn))

	var rows []customer
	require.NoError(t, db.Order("id").Find(&rows).Error)
	assert.Equal(t, []customer{{ID: 1, Name: "a"}, {ID: 2, Name: "bb"}}, rows)
	require.NoError(t, w.Close(ctx))
}

func TestGormItemWriter_BatchCheckFailsWholeBatch(t *testing.T) {
	ws := testutil.NewMemoryTxManager().WorkingSet()
	reject := func(ctx context.Context, items []customer) error {
		for _, c := range items {
			if c.ID == 11 {
				return errors.New("simulated write error on id 11")
			}
		}
		return nil
	}
	w := writer.NewGormItemWriter[customer]("customerWriter", ws, "customer", []string{"id"}, nil, reject)

	err := w.Write(context.Background(), []customer{{ID: 10}, {ID: 11}, {ID: 12}})
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrWrite)
	assert.True(t, ws.IsEmpty())
}

func newStorageResolver(t *testing.T) storageAdapter.StorageConnectionResolver {
	cfg := coreConfig.NewConfig()
	cfg.ChunkBatch.AdapterConfigs["storage"] = map[string]interface{}{
		"archive": map[string]interface{}{"type": "local", "base_dir": t.TempDir()},
	}
	return storageAdapter.NewConnectionResolver(storageAdapter.ResolverParams{
		Providers: []storageAdapter.StorageProvider{local.NewLocalProvider(cfg)},
		Cfg:       cfg,
	})
}

func TestParquetItemWriter_UploadsOnClose(t *testing.T) {
	ctx := context.Background()
	resolver := newStorageResolver(t)
	w, err := writer.NewParquetItemWriter("archive", writer.ParquetWriterConfig{
		StorageRef:   "archive",
		Bucket:       "exports",
		ObjectPrefix: "customer",
	}, resolver, new(customer))
	require.NoError(t, err)

	ec := model.NewExecutionContext()
	require.NoError(t, w.Open(ctx, ec))
	require.NoError(t, w.Write(ctx, []customer{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}))
	require.NoError(t, w.Write(ctx, []customer{{ID: 3, Name: "c"}}))
	require.NoError(t, w.Close(ctx))

	name := w.ObjectName()
	assert.Regexp(t, `^customer-\d{14}-[0-9a-f]{8}\.parquet$`, name)
	stored, ok := ec.GetString(writer.ContextKeyObjectName)
	assert.True(t, ok)
	assert.Equal(t, name, stored)
	records, _ := ec.GetInt(writer.ContextKeyRecords)
	assert.Equal(t, 3, records)

	conn, err := resolver.ResolveStorageConnection(ctx, "archive")
	require.NoError(t, err)
	r, err := conn.Download(ctx, "exports", name)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.Greater(t, len(data), 8)
	assert.Equal(t, "PAR1", string(data[:4]))
	assert.Equal(t, "PAR1", string(data[len(data)-4:]))
}

func TestParquetItemWriter_EmptyStepUploadsNothing(t *testing.T) {
	ctx := context.Background()
	w, err := writer.NewParquetItemWriter("archive", writer.ParquetWriterConfig{StorageRef: "archive"}, newStorageResolver(t), new(customer))
	require.NoError(t, err)
	require.NoError(t, w.Open(ctx, model.NewExecutionContext()))
	require.NoError(t, w.Close(ctx))
	assert.Empty(t, w.ObjectName())
}

func TestNewParquetItemWriter_Validation(t *testing.T) {
	_, err := writer.NewParquetItemWriter("archive", writer.ParquetWriterConfig{}, nil, new(customer))
	assert.Error(t, err)
	_, err = writer.NewParquetItemWriter("archive", writer.ParquetWriterConfig{StorageRef: "x", CompressionType: "LZ4"}, nil, new(customer))
	assert.Error(t, err)
}
