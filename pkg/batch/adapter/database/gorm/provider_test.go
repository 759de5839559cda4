package gorm_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/config"
)

func newConfig(t *testing.T) *config.Config {
	cfg := config.NewConfig()
	cfg.ChunkBatch.AdapterConfigs["database"] = map[string]interface{}{
		"workload": map[string]interface{}{
			"type":     "sqlite",
			"database": filepath.Join(t.TempDir(), "workload.db"),
			"pool":     map[string]interface{}{"max_open_conns": "1"},
		},
		"reporting": map[string]interface{}{
			"type": "postgres",
		},
	}
	return cfg
}

func TestBaseProvider_GetConnection(t *testing.T) {
	provider := sqlite.NewProvider(newConfig(t))
	assert.Equal(t, "sqlite", provider.Type())

	conn, err := provider.GetConnection("workload")
	require.NoError(t, err)
	assert.Equal(t, "workload", conn.Name())
	assert.Equal(t, 1, conn.Config().Pool.MaxOpenConns)

	again, err := provider.GetConnection("workload")
	require.NoError(t, err)
	assert.Same(t, conn, again)

	_, err = provider.GetConnection("reporting")
	assert.ErrorContains(t, err, "provider type mismatch")
	_, err = provider.GetConnection("missing")
	assert.ErrorContains(t, err, "not found")

	reconnected, err := provider.ForceReconnect("workload")
	require.NoError(t, err)
	assert.NotSame(t, conn, reconnected)
	assert.NoError(t, reconnected.RefreshConnection(context.Background()))

	assert.NoError(t, provider.CloseAll())
}

func TestGormDBConnectionResolver(t *testing.T) {
	cfg := newConfig(t)
	provider := sqlite.NewProvider(cfg)
	resolver := gormadapter.NewGormDBConnectionResolver(gormadapter.ResolverParams{
		DBProviders: []database.DBProvider{provider},
		Cfg:         cfg,
	})
	t.Cleanup(func() { _ = provider.CloseAll() })

	conn, err := resolver.ResolveDBConnection(context.Background(), "workload")
	require.NoError(t, err)

	// A closed pool fails its ping and is replaced.
	require.NoError(t, conn.Close())
	fresh, err := resolver.ResolveDBConnection(context.Background(), "workload")
	require.NoError(t, err)
	assert.NotSame(t, conn, fresh)

	_, err = resolver.ResolveDBConnection(context.Background(), "reporting")
	assert.ErrorContains(t, err, "postgres")

	factory := gormadapter.NewGormTransactionManagerFactory(resolver)
	tm, err := factory.NewTransactionManager(context.Background(), "workload")
	require.NoError(t, err)
	assert.True(t, tm.WorkingSet().IsEmpty())
}
