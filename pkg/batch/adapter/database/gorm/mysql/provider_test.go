package mysql_test

import (
	"testing"

	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/config"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm/mysql"
)

func TestConnectionString(t *testing.T) {
	dsn := mysql.ConnectionString(dbconfig.DatabaseConfig{
		Host:     "db",
		User:     "batch",
		Password: "secret",
		Database: "customers",
	})

	parsed, err := driver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "batch", parsed.User)
	assert.Equal(t, "secret", parsed.Passwd)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "customers", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Contains(t, dsn, "charset=utf8mb4")
}
