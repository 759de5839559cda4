package local_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageAdapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/local"
	coreConfig "github.com/tigerroll/chunkbatch/pkg/batch/core/config"
)

func newResolver(t *testing.T) *storageAdapter.ConnectionResolver {
	cfg := coreConfig.NewConfig()
	cfg.ChunkBatch.AdapterConfigs["storage"] = map[string]interface{}{
		"archive": map[string]interface{}{
			"type":        "local",
			"base_dir":    t.TempDir(),
			"bucket_name": "exports",
		},
		"cloud": map[string]interface{}{
			"type":        "gcs",
			"bucket_name": "exports",
		},
	}
	return storageAdapter.NewConnectionResolver(storageAdapter.ResolverParams{
		Providers: []storageAdapter.StorageProvider{local.NewLocalProvider(cfg)},
		Cfg:       cfg,
	})
}

func TestLocalAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	conn, err := newResolver(t).ResolveStorageConnection(ctx, "archive")
	require.NoError(t, err)
	assert.Equal(t, "local", conn.Type())
	assert.Equal(t, "archive", conn.Name())

	require.NoError(t, conn.Upload(ctx, "", "customers/run-1.parquet", strings.NewReader("PAR1"), "application/octet-stream"))
	require.NoError(t, conn.Upload(ctx, "", "other.txt", strings.NewReader("x"), "text/plain"))

	r, err := conn.Download(ctx, "", "customers/run-1.parquet")
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "PAR1", string(body))

	var names []string
	require.NoError(t, conn.ListObjects(ctx, "", "customers/", func(name string) error {
		names = append(names, name)
		return nil
	}))
	assert.Equal(t, []string{"customers/run-1.parquet"}, names)

	require.NoError(t, conn.DeleteObject(ctx, "", "customers/run-1.parquet"))
	require.NoError(t, conn.DeleteObject(ctx, "", "customers/run-1.parquet"), "missing objects are ignored")
	_, err = conn.Download(ctx, "", "customers/run-1.parquet")
	assert.Error(t, err)
}

func TestLocalAdapter_RejectsEscapingPaths(t *testing.T) {
	ctx := context.Background()
	conn, err := newResolver(t).ResolveStorageConnection(ctx, "archive")
	require.NoError(t, err)

	err = conn.Upload(ctx, "", "../../escape.txt", strings.NewReader("x"), "text/plain")
	assert.ErrorContains(t, err, "outside of base_dir")
}

func TestConnectionResolver_UnknownType(t *testing.T) {
	r := newResolver(t)
	_, err := r.ResolveStorageConnection(context.Background(), "cloud")
	assert.ErrorContains(t, err, "gcs")
	_, err = r.ResolveStorageConnection(context.Background(), "missing")
	assert.ErrorContains(t, err, "not found")
	assert.NoError(t, r.CloseAll())
}
