// Package pane holds the state of one file manager pane: its directory
// listing, cursor and selection, plus the background directory loader and
// size calculator that feed it.
//
// A PaneState is owned by the UI goroutine and is not safe for concurrent
// use. Background work reaches it only through one-shot channels that the
// owner polls once per tick.
package pane

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dualpane/rc/internal/config"
	"github.com/dualpane/rc/internal/events"
	"github.com/dualpane/rc/internal/localfs"
	"github.com/dualpane/rc/internal/logging"
	"github.com/dualpane/rc/internal/pathutil"
	"github.com/dualpane/rc/internal/util/filter"
)

// SizeMode selects which sizes a pane displays.
type SizeMode string

const (
	SizeOff   SizeMode = config.SizeModeOff   // No sizes
	SizeFiles SizeMode = config.SizeModeFiles // Regular file sizes only
	SizeFull  SizeMode = config.SizeModeFull  // File sizes plus recursive directory totals
)

// ParseSizeMode converts a config value to a SizeMode, defaulting to SizeOff.
func ParseSizeMode(s string) SizeMode {
	switch SizeMode(strings.ToLower(s)) {
	case SizeFiles:
		return SizeFiles
	case SizeFull:
		return SizeFull
	default:
		return SizeOff
	}
}

// Next returns the mode that follows m in the Off, Files, Full cycle.
func (m SizeMode) Next() SizeMode {
	switch m {
	case SizeOff:
		return SizeFiles
	case SizeFiles:
		return SizeFull
	default:
		return SizeOff
	}
}

// ErrPermissionDenied is returned when a directory cannot be opened for lack
// of permission.
var ErrPermissionDenied = errors.New("permission denied")

// PaneState is one pane of the file manager.
type PaneState struct {
	path       string
	entries    []localfs.Entry
	cursor     int
	selected   map[int]struct{}
	showHidden bool
	sizeMode   SizeMode
	filter     filter.Config

	load  *pendingLoad
	sizes *sizeCalculation

	logger   *logging.Logger
	eventBus *events.EventBus
}

// Option configures a PaneState.
type Option func(*PaneState)

// WithLogger sets the pane logger.
func WithLogger(logger *logging.Logger) Option {
	return func(p *PaneState) { p.logger = logger }
}

// WithEventBus publishes applied directory loads on bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(p *PaneState) { p.eventBus = bus }
}

// WithShowHidden sets the initial hidden-file setting.
func WithShowHidden(show bool) Option {
	return func(p *PaneState) { p.showHidden = show }
}

// WithSizeMode sets the initial size display mode.
func WithSizeMode(mode SizeMode) Option {
	return func(p *PaneState) { p.sizeMode = mode }
}

// WithFilter sets the initial name filter.
func WithFilter(cfg filter.Config) Option {
	return func(p *PaneState) { p.filter = cfg }
}

// New creates a pane showing path and loads its entries synchronously.
func New(path string, opts ...Option) (*PaneState, error) {
	p := &PaneState{
		path:     pathutil.Canonical(path),
		selected: make(map[int]struct{}),
		sizeMode: SizeOff,
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.LoadEntries(); err != nil {
		return nil, describeOpenError(err)
	}
	return p, nil
}

// Path returns the directory the pane shows.
func (p *PaneState) Path() string { return p.path }

// Entries returns the current listing. The slice must not be modified.
func (p *PaneState) Entries() []localfs.Entry { return p.entries }

// Cursor returns the index of the entry under the cursor.
func (p *PaneState) Cursor() int { return p.cursor }

// ShowHidden reports whether hidden entries are listed.
func (p *PaneState) ShowHidden() bool { return p.showHidden }

// SizeMode returns the current size display mode.
func (p *PaneState) SizeMode() SizeMode { return p.sizeMode }

// Filter returns the current name filter.
func (p *PaneState) Filter() filter.Config { return p.filter }

// CursorEntry returns the entry under the cursor.
func (p *PaneState) CursorEntry() (localfs.Entry, bool) {
	if p.cursor < 0 || p.cursor >= len(p.entries) {
		return localfs.Entry{}, false
	}
	return p.entries[p.cursor], true
}

func (p *PaneState) listOptions() localfs.ListOptions {
	return listOptions(p.showHidden, p.sizeMode, p.filter)
}

func listOptions(showHidden bool, mode SizeMode, f filter.Config) localfs.ListOptions {
	return localfs.ListOptions{
		IncludeHidden: showHidden,
		FileSizes:     mode != SizeOff,
		ParentEntry:   true,
		Match:         f.Matcher(),
	}
}

// LoadEntries lists the pane directory synchronously, replacing the entries
// and clearing the selection. In SizeFull mode it starts a new size
// calculation. On error the pane is unchanged.
func (p *PaneState) LoadEntries() error {
	entries, err := localfs.ListDirectory(p.path, p.listOptions())
	if err != nil {
		return err
	}
	p.setEntries(entries)
	return nil
}

func (p *PaneState) setEntries(entries []localfs.Entry) {
	p.cancelSizeCalculation()
	p.entries = entries
	p.selected = make(map[int]struct{})
	p.clampCursor()
	p.logger.Debug().Str("path", p.path).Int("entries", len(entries)).Msg("Directory loaded")
	p.StartSizeCalculation()
}

// NavigateTo switches the pane to dir. If dir cannot be listed the previous
// path, entries, cursor and selection are kept and a user-facing error is
// returned.
func (p *PaneState) NavigateTo(dir string) error {
	oldPath, oldCursor := p.path, p.cursor
	p.path = pathutil.Canonical(dir)

	entries, err := localfs.ListDirectory(p.path, p.listOptions())
	if err != nil {
		p.path, p.cursor = oldPath, oldCursor
		p.logger.Warn().Str("path", dir).Err(err).Msg("Cannot open directory")
		return describeOpenError(err)
	}
	p.cursor = 0
	p.setEntries(entries)
	return nil
}

// EnterSelected navigates into the directory under the cursor. It does
// nothing for files.
func (p *PaneState) EnterSelected() error {
	entry, ok := p.CursorEntry()
	if !ok || !entry.IsDir {
		return nil
	}
	return p.NavigateTo(entry.Path)
}

// NavigateUp switches to the parent directory. It does nothing at a root.
func (p *PaneState) NavigateUp() error {
	parent := filepath.Dir(p.path)
	if parent == p.path {
		return nil
	}
	return p.NavigateTo(parent)
}

// ToggleHidden flips the hidden-file setting and reloads.
func (p *PaneState) ToggleHidden() error {
	p.showHidden = !p.showHidden
	p.cursor = 0
	return p.LoadEntries()
}

// SetFilter replaces the name filter and reloads.
func (p *PaneState) SetFilter(cfg filter.Config) error {
	p.filter = cfg
	p.cursor = 0
	return p.LoadEntries()
}

// MoveUp moves the cursor one entry up.
func (p *PaneState) MoveUp() {
	if p.cursor > 0 {
		p.cursor--
	}
}

// MoveDown moves the cursor one entry down.
func (p *PaneState) MoveDown() {
	if p.cursor < len(p.entries)-1 {
		p.cursor++
	}
}

// PageUp moves the cursor up by n entries, stopping at the first one.
func (p *PaneState) PageUp(n int) {
	p.cursor = max(p.cursor-n, 0)
}

// PageDown moves the cursor down by n entries, stopping at the last one.
func (p *PaneState) PageDown(n int) {
	p.cursor = max(min(p.cursor+n, len(p.entries)-1), 0)
}

// ToggleSelection toggles the entry under the cursor and moves down. The
// ".." entry is never selected.
func (p *PaneState) ToggleSelection() {
	entry, ok := p.CursorEntry()
	if !ok {
		return
	}
	if !entry.IsParent() {
		if _, on := p.selected[p.cursor]; on {
			delete(p.selected, p.cursor)
		} else {
			p.selected[p.cursor] = struct{}{}
		}
	}
	p.MoveDown()
}

// IsSelected reports whether the entry at index i is selected.
func (p *PaneState) IsSelected(i int) bool {
	_, ok := p.selected[i]
	return ok
}

// SelectedEntries returns the selected entries in listing order, or the
// entry under the cursor when nothing is selected. ".." is never returned.
func (p *PaneState) SelectedEntries() []localfs.Entry {
	if len(p.selected) == 0 {
		if entry, ok := p.CursorEntry(); ok && !entry.IsParent() {
			return []localfs.Entry{entry}
		}
		return nil
	}

	indexes := make([]int, 0, len(p.selected))
	for i := range p.selected {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	out := make([]localfs.Entry, 0, len(indexes))
	for _, i := range indexes {
		if i < len(p.entries) && !p.entries[i].IsParent() {
			out = append(out, p.entries[i])
		}
	}
	return out
}

// SelectNames selects the entries with the given names and returns how many
// were found.
func (p *PaneState) SelectNames(names ...string) int {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	found := 0
	for i, e := range p.entries {
		if _, ok := want[e.Name]; ok && !e.IsParent() {
			p.selected[i] = struct{}{}
			found++
		}
	}
	return found
}

// MoveTo puts the cursor on the entry called name.
func (p *PaneState) MoveTo(name string) bool {
	for i, e := range p.entries {
		if e.Name == name {
			p.cursor = i
			return true
		}
	}
	return false
}

// ClearSelection deselects every entry.
func (p *PaneState) ClearSelection() {
	p.selected = make(map[int]struct{})
}

// SearchJump moves the cursor to the first entry at or after it whose name
// contains query, ignoring case, wrapping around to the top.
func (p *PaneState) SearchJump(query string) bool {
	return p.search(query, p.cursor)
}

// SearchNext is SearchJump starting after the cursor.
func (p *PaneState) SearchNext(query string) bool {
	return p.search(query, p.cursor+1)
}

func (p *PaneState) search(query string, start int) bool {
	n := len(p.entries)
	if query == "" || n == 0 {
		return false
	}
	q := strings.ToLower(query)
	for k := 0; k < n; k++ {
		i := (start + k) % n
		if strings.Contains(strings.ToLower(p.entries[i].Name), q) {
			p.cursor = i
			return true
		}
	}
	return false
}

func (p *PaneState) clampCursor() {
	if p.cursor >= len(p.entries) {
		p.cursor = len(p.entries) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

// describeOpenError turns a listing error into the message shown to users.
func describeOpenError(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return ErrPermissionDenied
	}
	return fmt.Errorf("cannot open directory: %w", err)
}
