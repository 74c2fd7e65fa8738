// Package defs aggregates a directory tree of JSON fragment files into one
// nested definition object and re-aggregates it whenever the tree changes.
//
// A fragment at <root>/a/b/c.json lands at tree["a"]["b"]["c"]. Every pass
// rebuilds the tree from scratch; nothing is patched incrementally.
package defs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// Ext is the extension a fragment file must carry.
const Ext = ".json"

// Aggregate walks root and merges every fragment into a fresh tree. It
// returns nil if root does not exist, and an empty map if it holds no
// fragments. Unreadable or unparsable fragments are logged and skipped.
func Aggregate(root string, log *slog.Logger) any {
	if log == nil {
		log = slog.Default()
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		log.Debug("definition root missing", "root", root)
		return nil
	}

	tree := map[string]any{}
	err = walk(root, func(path string) {
		keys, ok := KeyPath(root, path)
		if !ok {
			return
		}

		value, err := readFragment(path)
		if err != nil {
			log.Warn("skipping definition file", "path", path, "error", err)
			return
		}

		Insert(tree, keys, value)
	})
	if err != nil {
		log.Warn("definition walk incomplete", "root", root, "error", err)
	}

	return tree
}

// KeyPath returns the key path of a fragment: its path relative to root,
// split into segments, with the extension stripped from the last segment.
func KeyPath(root, path string) ([]string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil, false
	}

	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	keys := strings.Split(filepath.ToSlash(rel), "/")
	if keys[len(keys)-1] == "" {
		return nil, false
	}

	return keys, true
}

// Insert sets value at keys inside tree. Intermediate segments that are
// missing or hold a non-object value become fresh objects; the final segment
// is overwritten. Insert with no keys is a no-op.
func Insert(tree map[string]any, keys []string, value any) {
	if len(keys) == 0 {
		return
	}

	node := tree
	for _, k := range keys[:len(keys)-1] {
		next, ok := node[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[k] = next
		}
		node = next
	}

	node[keys[len(keys)-1]] = value
}

// readFragment reads one fragment. Comments and trailing commas are
// tolerated.
func readFragment(path string) (any, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from walking the definition root
	if err != nil {
		return nil, err
	}

	var v any
	if err := json.Unmarshal(jsonc.ToJSON(data), &v); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	return v, nil
}

// isHidden reports whether a directory entry name is hidden.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// isFragment reports whether name carries the fragment extension.
func isFragment(name string) bool {
	return filepath.Ext(name) == Ext
}

// walk visits every fragment file under root in lexical order, following
// symbolic links. Hidden entries below root are skipped. Every alias of a
// directory is visited; only a link back to one of its own ancestors is cut.
func walk(root string, visit func(path string)) error {
	return walkDir(root, map[string]bool{}, visit)
}

// walkDir walks dir. ancestors holds the resolved paths of the directories
// currently being walked above it.
func walkDir(dir string, ancestors map[string]bool, visit func(path string)) error {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return err
	}
	if ancestors[resolved] {
		return nil
	}
	ancestors[resolved] = true
	defer delete(ancestors, resolved)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var firstErr error
	for _, e := range entries {
		if isHidden(e.Name()) {
			continue
		}

		path := filepath.Join(dir, e.Name())

		// Stat follows links, so a link to a directory is walked.
		info, err := os.Stat(path)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if info.IsDir() {
			if err := walkDir(path, ancestors, visit); err != nil && firstErr == nil {
				firstErr = err
			}
			continue
		}

		if info.Mode().IsRegular() && isFragment(e.Name()) {
			visit(path)
		}
	}

	return firstErr
}
