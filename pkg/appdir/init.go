package appdir

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

//go:embed defaults/lua
var defaultsFS embed.FS

const defaultScriptsRoot = "defaults/lua"

// EnsureStructure creates the root, definition and io directories if they
// are missing. It is safe to call multiple times. The script root is left to
// ExtractScripts.
func EnsureStructure(d Dir) error {
	for _, dir := range []string{d.Root(), d.DefinitionsDir(), d.IODir()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("appdir: create %s: %w", dir, err)
		}
	}

	return nil
}

// ExtractScripts copies the bundled default scripts into the script root.
// When the script root already exists it is left alone unless overwrite is
// set, in which case it is removed first. It reports whether anything was
// written.
func ExtractScripts(d Dir, overwrite bool) (bool, error) {
	dst := d.ScriptsDir()

	if _, err := os.Stat(dst); err == nil {
		if !overwrite {
			return false, nil
		}
		if err := os.RemoveAll(dst); err != nil {
			return false, fmt.Errorf("appdir: remove scripts: %w", err)
		}
	}

	err := fs.WalkDir(defaultsFS, defaultScriptsRoot, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel := p[len(defaultScriptsRoot):]
		target := filepath.Join(dst, filepath.FromSlash(path.Clean("/"+rel)))

		if e.IsDir() {
			return os.MkdirAll(target, 0o750)
		}

		data, err := defaultsFS.ReadFile(p)
		if err != nil {
			return err
		}

		return os.WriteFile(target, data, 0o644) //nolint:gosec // user-editable scripts
	})
	if err != nil {
		return false, fmt.Errorf("appdir: extract scripts: %w", err)
	}

	return true, nil
}
