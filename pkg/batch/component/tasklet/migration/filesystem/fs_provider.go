// Package filesystem registers named migration file systems for the migration tasklet.
package filesystem

import (
	"fmt"
	"io/fs"
)

// NamedFS is a migration file system registered under Name. Its root holds one directory
// of migration files per database type ("sqlite", "mysql", "postgres").
type NamedFS struct {
	Name string
	FS   fs.FS
}

// Sub returns the root subdirectory of fsys registered under name.
func Sub(name string, fsys fs.FS, root string) (NamedFS, error) {
	if root == "" || root == "." {
		return NamedFS{Name: name, FS: fsys}, nil
	}
	subFS, err := fs.Sub(fsys, root)
	if err != nil {
		return NamedFS{}, fmt.Errorf("failed to open migration directory '%s' for '%s': %w", root, name, err)
	}
	return NamedFS{Name: name, FS: subFS}, nil
}

// Index maps the registered file systems by name. A later registration wins.
func Index(all []NamedFS) map[string]fs.FS {
	m := make(map[string]fs.FS, len(all))
	for _, n := range all {
		m[n.Name] = n.FS
	}
	return m
}
