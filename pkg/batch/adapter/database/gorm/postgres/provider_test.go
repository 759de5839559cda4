package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dbconfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/config"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm/postgres"
)

func TestConnectionString(t *testing.T) {
	dsn := postgres.ConnectionString(dbconfig.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "batch",
		Password: "secret",
		Database: "customers",
		Schema:   "copy",
	})
	assert.Equal(t, "host=localhost port=5432 user=batch password=secret dbname=customers sslmode=disable search_path=copy", dsn)
}
