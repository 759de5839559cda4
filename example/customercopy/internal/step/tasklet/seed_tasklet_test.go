package tasklet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/chunkbatch/example/customercopy/internal/domain/entity"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/test"
)

type staticResolver struct{ conn database.DBConnection }

func (r staticResolver) ResolveDBConnection(ctx context.Context, name string) (database.DBConnection, error) {
	return r.conn, nil
}

func TestSeedCustomersTasklet(t *testing.T) {
	db := test.NewSQLiteDB(t, &entity.CustomerTmp{})
	conn, err := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "sqlite"}, "workload")
	require.NoError(t, err)
	tasklet := NewSeedCustomersTasklet(staticResolver{conn: conn}, "workload", 20)

	se := model.NewStepExecution("seedCustomers")
	status, err := tasklet.Execute(context.Background(), se)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, status)
	seeded, _ := se.ExecutionContext.GetInt(ContextKeySeeded)
	assert.Equal(t, 20, seeded)

	// A second run keeps the existing rows.
	se = model.NewStepExecution("seedCustomers")
	_, err = tasklet.Execute(context.Background(), se)
	require.NoError(t, err)

	var ids []int64
	require.NoError(t, db.Model(&entity.CustomerTmp{}).Order("id").Pluck("id", &ids).Error)
	require.Len(t, ids, 20)
	assert.Equal(t, int64(1), ids[0])
	assert.Equal(t, int64(20), ids[19])
}

func TestSeedCustomersTasklet_MissingTable(t *testing.T) {
	db := test.NewSQLiteDB(t)
	conn, err := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "sqlite"}, "workload")
	require.NoError(t, err)

	status, err := NewSeedCustomersTasklet(staticResolver{conn: conn}, "workload", 3).
		Execute(context.Background(), model.NewStepExecution("seedCustomers"))
	require.Error(t, err)
	assert.Equal(t, model.ExitStatusFailed, status)
	assert.Contains(t, err.Error(), "infrastructure.migrate")
}
