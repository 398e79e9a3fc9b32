package localfs

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ParentName is the synthetic entry that navigates one level up.
const ParentName = ".."

// Entry represents a file or directory shown in a pane.
type Entry struct {
	Name      string      // Base name ("..": parent link)
	Path      string      // Full path
	IsDir     bool        // True for directories (symlinks to directories are not followed)
	IsSymlink bool        // True if the entry itself is a symbolic link
	Size      *int64      // Nil when unknown or not computed
	ModTime   time.Time   // Last modification time
	Mode      fs.FileMode // File mode/permissions
}

// IsParent reports whether e is the synthetic ".." entry.
func (e Entry) IsParent() bool {
	return e.Name == ParentName
}

// SizeOf returns the entry size and whether it is known.
func (e Entry) SizeOf() (int64, bool) {
	if e.Size == nil {
		return 0, false
	}
	return *e.Size, true
}

// WithSize returns a copy of e carrying size.
func (e Entry) WithSize(size int64) Entry {
	e.Size = &size
	return e
}

// ListOptions configures the behavior of ListDirectory.
type ListOptions struct {
	// IncludeHidden includes hidden files (starting with .) in results.
	IncludeHidden bool

	// FileSizes fills Size for regular files. Directory sizes are never
	// computed here; see DirSize.
	FileSizes bool

	// ParentEntry prepends a ".." entry unless path is a filesystem root.
	ParentEntry bool

	// Match, when set, drops entries whose name it rejects. ".." always passes.
	Match func(name string) bool
}

// ListDirectory returns the contents of a directory, filtered by options and
// sorted with directories first, then by case-insensitive name.
func ListDirectory(path string, opts ListOptions) ([]Entry, error) {
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	result := make([]Entry, 0, len(dirEntries)+1)
	for _, de := range dirEntries {
		name := de.Name()

		if !opts.IncludeHidden && IsHiddenName(name) {
			continue
		}
		if opts.Match != nil && !opts.Match(name) {
			continue
		}

		info, err := de.Info()
		if err != nil {
			// Entry vanished or cannot be stat'ed
			continue
		}

		entry := Entry{
			Name:      name,
			Path:      filepath.Join(path, name),
			IsDir:     de.IsDir(),
			IsSymlink: info.Mode()&fs.ModeSymlink != 0,
			ModTime:   info.ModTime(),
			Mode:      info.Mode(),
		}
		if opts.FileSizes && info.Mode().IsRegular() {
			entry = entry.WithSize(info.Size())
		}
		result = append(result, entry)
	}

	SortEntries(result)

	if opts.ParentEntry {
		if parent := filepath.Dir(path); parent != path {
			result = append([]Entry{{Name: ParentName, Path: parent, IsDir: true}}, result...)
		}
	}

	return result, nil
}

// SortEntries orders entries with directories first, then by name ignoring case.
// A ".." entry always sorts to the top.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsParent() != b.IsParent() {
			return a.IsParent()
		}
		if a.IsDir != b.IsDir {
			return a.IsDir
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}
