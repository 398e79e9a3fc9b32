// Package pathutil provides path resolution and path relationship helpers
// shared by the panes, the job manager and the CLI.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveAbsolutePath converts a possibly relative path (with optional leading
// ~) to an absolute path. Symlinks in the EXISTING portion of the path are
// resolved, then any non-existent components are appended, so destinations
// that do not exist yet resolve the same way as their existing parent.
func ResolveAbsolutePath(path string) (string, error) {
	if path == "" {
		return os.Getwd()
	}

	// Expand ~ to home directory
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = home + path[1:]
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	// Fast path: the whole path exists
	resolved, err := filepath.EvalSymlinks(absPath)
	if err == nil {
		return resolved, nil
	}

	// Find the deepest existing ancestor, resolve it, append the rest
	current := absPath
	var remainder []string

	for {
		if _, err := os.Stat(current); err == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				resolved = current
			}
			for i := len(remainder) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, remainder[i])
			}
			return resolved, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return absPath, nil
		}
		remainder = append(remainder, filepath.Base(current))
		current = parent
	}
}

// Canonical returns the resolved absolute form of path, or the cleaned
// absolute path if resolution fails. It never returns an error so it can be
// used for comparisons.
func Canonical(path string) string {
	if resolved, err := ResolveAbsolutePath(path); err == nil {
		return resolved
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// IsWithin reports whether child equals parent or lies below it. Comparison
// is on whole path components: /a/bc is not within /a/b.
func IsWithin(child, parent string) bool {
	child = filepath.Clean(child)
	parent = filepath.Clean(parent)
	if child == parent {
		return true
	}
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Overlaps reports whether a and b are the same path or one is an ancestor of
// the other.
func Overlaps(a, b string) bool {
	return IsWithin(a, b) || IsWithin(b, a)
}

// ParentDir returns the directory containing path, or path itself at a root.
func ParentDir(path string) string {
	return filepath.Dir(filepath.Clean(path))
}
