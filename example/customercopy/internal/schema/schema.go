// Package schema embeds the migrations creating the customer tables, one directory per
// database type.
package schema

import (
	"embed"

	"github.com/tigerroll/chunkbatch/pkg/batch/component/tasklet/migration/filesystem"
)

// FSName is the name the migrations are registered under.
const FSName = "customerSchema"

//go:embed migrations
var migrations embed.FS

// Module registers the embedded migrations with the migration tasklet.
var Module = filesystem.Provide(FSName, migrations, "migrations")
