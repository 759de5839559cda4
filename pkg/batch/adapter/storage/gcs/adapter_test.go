package gcs_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageConfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/gcs"
)

func TestClientOptions(t *testing.T) {
	assert.Empty(t, gcs.ClientOptions(storageConfig.StorageConfig{}))
	assert.Len(t, gcs.ClientOptions(storageConfig.StorageConfig{CredentialsFile: "/etc/key.json"}), 1)
	assert.Len(t, gcs.ClientOptions(storageConfig.StorageConfig{Endpoint: "http://localhost:4443/storage/v1/", CredentialsFile: "ignored"}), 2)
}

func TestGCSAdapter_RequiresBucket(t *testing.T) {
	conn, err := gcs.NewGCSAdapter(storageConfig.StorageConfig{Type: "gcs", Endpoint: "http://127.0.0.1:1/storage/v1/"}, "archive")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	assert.Equal(t, "gcs", conn.Type())
	err = conn.Upload(context.Background(), "", "a.parquet", strings.NewReader("x"), "application/octet-stream")
	assert.ErrorContains(t, err, "bucket_name")
}
