package localfs

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// WalkOptions configures the behavior of Walk. The zero value visits every
// entry, hidden or not, including symlinks (which are never followed).
type WalkOptions struct {
	// SkipHidden skips hidden files and does not descend into hidden directories.
	SkipHidden bool

	// SkipSymlinks leaves symbolic links out entirely.
	SkipSymlinks bool

	// OnError is called for every entry that could not be read. The walk
	// continues past it. Nil ignores such errors.
	OnError func(path string, err error)
}

// WalkFunc is the callback signature for Walk.
// Return filepath.SkipDir to skip a directory, or any other error to stop walking.
type WalkFunc func(entry Entry) error

// Walk traverses a directory tree depth-first, calling fn for each file and
// directory. Directories are visited before their contents. Regular files
// carry their Size.
//
// If fn returns filepath.SkipDir for a directory, that directory's contents are skipped.
// If fn returns any other non-nil error, the walk stops and returns that error.
func Walk(root string, opts WalkOptions, fn WalkFunc) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if opts.OnError != nil {
				opts.OnError(path, err)
			}
			return nil
		}

		name := d.Name()

		if opts.SkipHidden && path != root && IsHiddenName(name) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		isSymlink := d.Type()&fs.ModeSymlink != 0
		if isSymlink && opts.SkipSymlinks {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if opts.OnError != nil {
				opts.OnError(path, err)
			}
			return nil
		}

		entry := Entry{
			Name:      name,
			Path:      path,
			IsDir:     d.IsDir(),
			IsSymlink: isSymlink,
			ModTime:   info.ModTime(),
			Mode:      info.Mode(),
		}
		if info.Mode().IsRegular() {
			entry = entry.WithSize(info.Size())
		}

		return fn(entry)
	})
}

// WalkFiles is a convenience wrapper around Walk that only visits non-directory
// entries.
func WalkFiles(root string, opts WalkOptions, fn WalkFunc) error {
	return Walk(root, opts, func(entry Entry) error {
		if entry.IsDir {
			return nil
		}
		return fn(entry)
	})
}

// WalkResult holds the entries collected by WalkCollect.
type WalkResult struct {
	Files       []Entry // Non-directory entries in walk order
	Directories []Entry // Directories, deepest first
	Skipped     int     // Entries that could not be read
}

// WalkCollect walks root and separates files from directories. Directories are
// returned in descending depth order so that removing them in sequence only
// ever targets emptied directories.
func WalkCollect(root string, opts WalkOptions) (*WalkResult, error) {
	result := &WalkResult{}

	userOnError := opts.OnError
	opts.OnError = func(path string, err error) {
		result.Skipped++
		if userOnError != nil {
			userOnError(path, err)
		}
	}

	err := Walk(root, opts, func(entry Entry) error {
		if entry.IsDir {
			result.Directories = append(result.Directories, entry)
		} else {
			result.Files = append(result.Files, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	SortDeepestFirst(result.Directories)
	return result, nil
}

// SortDeepestFirst orders entries by descending path depth.
func SortDeepestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return Depth(entries[i].Path) > Depth(entries[j].Path)
	})
}

// Depth returns the number of path components in path.
func Depth(path string) int {
	clean := filepath.Clean(path)
	trimmed := strings.Trim(filepath.ToSlash(clean), "/")
	if trimmed == "" || trimmed == "." {
		return 0
	}
	return strings.Count(trimmed, "/") + 1
}

// DirSize returns the total size of all regular files below path. Symlinks are
// not followed and unreadable entries are skipped. The walk stops with
// ctx.Err() once ctx is done.
func DirSize(ctx context.Context, path string) (int64, error) {
	var total int64
	err := Walk(path, WalkOptions{SkipSymlinks: true}, func(entry Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if size, ok := entry.SizeOf(); ok {
			total += size
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
