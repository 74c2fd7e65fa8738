// Package appdir encapsulates all path knowledge for the application
// directory. It provides a Dir value object with accessors for the config
// file, the script root, the definition root and the script io directory.
package appdir

import (
	"os"
	"path/filepath"
)

// Dir is a value object that resolves paths within the application directory.
type Dir struct {
	root string
}

// New creates a Dir rooted at the given path. The path is converted to an
// absolute path. No I/O is performed; use EnsureStructure to create the
// directory layout.
func New(root string) Dir {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}

	return Dir{root: abs}
}

// Root returns the absolute path to the application directory.
func (d Dir) Root() string { return d.root }

// ConfigPath returns the path to the main config file.
func (d Dir) ConfigPath() string { return filepath.Join(d.root, "config.yaml") }

// ScriptsDir returns the script root.
func (d Dir) ScriptsDir() string { return filepath.Join(d.root, "lua") }

// DefinitionsDir returns the root of the definition fragments.
func (d Dir) DefinitionsDir() string { return filepath.Join(d.root, "defs") }

// IODir returns the scratch directory exposed to scripts.
func (d Dir) IODir() string { return filepath.Join(d.root, "io") }

// EnvPath returns the path to the optional .env file.
func (d Dir) EnvPath() string { return filepath.Join(d.root, ".env") }

// Exists reports whether the root directory exists on disk.
func (d Dir) Exists() bool {
	info, err := os.Stat(d.root)

	return err == nil && info.IsDir()
}
