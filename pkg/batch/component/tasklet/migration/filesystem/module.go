package filesystem

import (
	"io/fs"

	"go.uber.org/fx"
)

// MigrationFSGroup is the Fx value group collecting every NamedFS.
const MigrationFSGroup = "migration_fs"

// Provide registers the root directory of fsys as the migration file system name.
func Provide(name string, fsys fs.FS, root string) fx.Option {
	return fx.Provide(fx.Annotate(
		func() (NamedFS, error) { return Sub(name, fsys, root) },
		fx.ResultTags(`group:"`+MigrationFSGroup+`"`),
	))
}
