// Package app is the UI-goroutine controller that ties two panes to the job
// manager. It owns every PaneState and the jobs.Manager; Tick performs one
// iteration of the poll loop and the command methods are what key bindings
// or CLI commands call. Nothing here renders.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dualpane/rc/internal/config"
	"github.com/dualpane/rc/internal/constants"
	"github.com/dualpane/rc/internal/events"
	"github.com/dualpane/rc/internal/jobs"
	"github.com/dualpane/rc/internal/localfs"
	"github.com/dualpane/rc/internal/logging"
	"github.com/dualpane/rc/internal/pane"
	"github.com/dualpane/rc/internal/pathutil"
)

// Side identifies a pane.
type Side int

const (
	Left Side = iota
	Right
)

// ErrInvalidName is returned for names that are empty, "." or "..", or
// contain a path separator.
var ErrInvalidName = errors.New("invalid name")

// DeletePlan is a pending delete awaiting confirmation.
type DeletePlan struct {
	ParentDir string
	Entries   []localfs.Entry

	// ConflictsWithJobs is set when an entry is the source or target of a
	// running copy or move, or contains one.
	ConflictsWithJobs bool
}

// renameProgress is the foreground wait on a rename job.
type renameProgress struct {
	id        jobs.JobID
	startedAt time.Time
	from, to  string
}

// App is the file manager controller. It is not safe for concurrent use.
type App struct {
	left, right *pane.PaneState
	active      Side
	jobs        *jobs.Manager

	conflict *jobs.PendingConflict
	rename   *renameProgress

	errorMessage string
	errorAt      time.Time

	cfg      *config.Config
	logger   *logging.Logger
	eventBus *events.EventBus
	now      func() time.Time
	onTick   func(*App)
	quit     bool
}

// Option configures an App.
type Option func(*App)

// WithConfig sets the configuration. Defaults are used otherwise.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) { a.cfg = cfg }
}

// WithLogger sets the logger shared by the app, its panes and the job manager.
func WithLogger(logger *logging.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithEventBus publishes job and pane events on bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(a *App) { a.eventBus = bus }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithTickHook registers fn to run after every Tick in Run.
func WithTickHook(fn func(*App)) Option {
	return func(a *App) { a.onTick = fn }
}

// New creates an App with the left pane at leftPath and the right pane at
// rightPath. If rightPath cannot be opened the right pane falls back to
// leftPath.
func New(leftPath, rightPath string, opts ...Option) (*App, error) {
	a := &App{
		cfg:    config.Default(),
		logger: logging.NewNopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	managerOpts := []jobs.Option{
		jobs.WithLogger(a.logger),
		jobs.WithClock(a.now),
		jobs.WithDiskSpaceCheck(a.cfg.CheckDiskSpace),
	}
	paneOpts := []pane.Option{
		pane.WithLogger(a.logger),
		pane.WithShowHidden(a.cfg.ShowHidden),
		pane.WithSizeMode(pane.ParseSizeMode(a.cfg.SizeMode)),
	}
	if a.eventBus != nil {
		managerOpts = append(managerOpts, jobs.WithEventBus(a.eventBus))
		paneOpts = append(paneOpts, pane.WithEventBus(a.eventBus))
	}
	a.jobs = jobs.NewManager(managerOpts...)

	var err error
	if a.left, err = pane.New(leftPath, paneOpts...); err != nil {
		return nil, fmt.Errorf("left pane: %w", err)
	}
	if a.right, err = pane.New(rightPath, paneOpts...); err != nil {
		a.logger.Warn().Str("path", rightPath).Err(err).Msg("Right pane falls back to the left pane directory")
		if a.right, err = pane.New(leftPath, paneOpts...); err != nil {
			a.left.Close()
			return nil, fmt.Errorf("right pane: %w", err)
		}
	}
	return a, nil
}

// Jobs returns the job manager.
func (a *App) Jobs() *jobs.Manager { return a.jobs }

// Pane returns the pane on side.
func (a *App) Pane(side Side) *pane.PaneState {
	if side == Right {
		return a.right
	}
	return a.left
}

// ActiveSide returns the side with focus.
func (a *App) ActiveSide() Side { return a.active }

// ActivePane returns the pane with focus.
func (a *App) ActivePane() *pane.PaneState { return a.Pane(a.active) }

// OtherPane returns the pane without focus.
func (a *App) OtherPane() *pane.PaneState { return a.Pane(1 - a.active) }

// SetActive moves focus to side.
func (a *App) SetActive(side Side) { a.active = side }

// TogglePane moves focus to the other pane.
func (a *App) TogglePane() { a.active = 1 - a.active }

// SwapPanes exchanges the two panes.
func (a *App) SwapPanes() { a.left, a.right = a.right, a.left }

// Tick runs one iteration of the poll loop. The order matters: completed
// jobs schedule pane refreshes before finished loads are polled.
func (a *App) Tick() {
	destinations, sources := a.jobs.ProcessUpdates()
	for _, dir := range destinations {
		a.refreshPanesShowing(dir)
	}
	for _, dir := range sources {
		a.refreshPanesShowing(dir)
	}

	for _, p := range []*pane.PaneState{a.left, a.right} {
		if _, err := p.PollLoadResult(); err != nil {
			a.setError(err.Error())
		}
	}
	a.left.PollSizeResults()
	a.right.PollSizeResults()

	a.jobs.UpdateVisibility()
	a.checkForConflicts()
	a.checkRenameProgress()

	if a.errorMessage != "" && a.now().Sub(a.errorAt) > constants.ErrorDisplayDuration {
		a.errorMessage = ""
	}
}

// refreshPanesShowing reloads the panes showing dir in the background. A
// load already in flight is replaced, since it may predate the change.
func (a *App) refreshPanesShowing(dir string) {
	dir = pathutil.Canonical(dir)
	for _, p := range []*pane.PaneState{a.left, a.right} {
		if p.Path() == dir {
			p.LoadEntriesAsync()
		}
	}
}

func (a *App) checkForConflicts() {
	if a.conflict != nil {
		return
	}
	if c, ok := a.jobs.NextPendingConflict(); ok {
		a.conflict = &c
	}
}

// CurrentConflict returns the conflict awaiting a decision, if any.
func (a *App) CurrentConflict() (jobs.PendingConflict, bool) {
	if a.conflict == nil {
		return jobs.PendingConflict{}, false
	}
	return *a.conflict, true
}

// ResolveConflict answers the current conflict.
func (a *App) ResolveConflict(res jobs.ConflictResolution) {
	if a.conflict == nil {
		return
	}
	a.jobs.SendConflictResolution(a.conflict.JobID, res)
	a.logger.Debug().
		Uint64("job_id", uint64(a.conflict.JobID)).
		Str("path", a.conflict.FilePath).
		Str("resolution", res.String()).
		Msg("Conflict resolved")
	a.conflict = nil
}

// Transfer starts one job per selected entry of the active pane, copying or
// moving it into the other pane's directory. It returns the started ids.
func (a *App) Transfer(typ jobs.JobType) ([]jobs.JobID, error) {
	entries := a.ActivePane().SelectedEntries()
	if len(entries) == 0 {
		return nil, nil
	}
	destDir := a.OtherPane().Path()
	a.ActivePane().ClearSelection()

	ids := make([]jobs.JobID, 0, len(entries))
	for _, e := range entries {
		id, err := a.jobs.StartJob(typ, e.Path, destDir)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// PlanDelete collects the entries a delete would remove and checks them
// against running transfers. ok is false when nothing is selected.
func (a *App) PlanDelete() (plan DeletePlan, ok bool) {
	entries := a.ActivePane().SelectedEntries()
	if len(entries) == 0 {
		return DeletePlan{}, false
	}
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return DeletePlan{
		ParentDir:         a.ActivePane().Path(),
		Entries:           entries,
		ConflictsWithJobs: a.jobs.PathsConflictWithActiveJobs(paths),
	}, true
}

// ConfirmDelete starts the delete job for plan.
func (a *App) ConfirmDelete(plan DeletePlan) jobs.JobID {
	paths := make([]string, len(plan.Entries))
	for i, e := range plan.Entries {
		paths[i] = e.Path
	}
	a.ActivePane().ClearSelection()
	return a.jobs.StartDeleteJob(paths, plan.ParentDir)
}

// Rename renames the entry under the cursor of the active pane to newName
// and waits for it in the foreground until it finishes or
// config.RenameTimeout passes. Renaming to the same name does nothing.
func (a *App) Rename(newName string) (jobs.JobID, bool, error) {
	entry, ok := a.ActivePane().CursorEntry()
	if !ok || entry.IsParent() {
		return 0, false, nil
	}
	if err := validateName(newName); err != nil {
		return 0, false, err
	}

	newPath := filepath.Join(filepath.Dir(entry.Path), newName)
	if newPath == entry.Path {
		return 0, false, nil
	}

	id := a.jobs.StartRenameJob(entry.Path, newPath, a.ActivePane().Path())
	a.rename = &renameProgress{id: id, startedAt: a.now(), from: entry.Name, to: newName}
	return id, true, nil
}

// RenameInProgress reports whether a rename is being waited on in the
// foreground.
func (a *App) RenameInProgress() bool { return a.rename != nil }

// CancelRename stops waiting on the foreground rename and cancels its job.
func (a *App) CancelRename() {
	if a.rename == nil {
		return
	}
	a.jobs.CancelJob(a.rename.id)
	a.rename = nil
}

// checkRenameProgress ends the foreground wait once the rename finished,
// reporting failures, or backgrounds it after the timeout.
func (a *App) checkRenameProgress() {
	if a.rename == nil {
		return
	}
	id := a.rename.id

	job, ok := a.jobs.Job(id)
	if !ok {
		a.rename = nil
		return
	}
	switch job.Status.State {
	case jobs.StateCompleted, jobs.StateCancelled:
		a.jobs.DismissJob(id)
		a.rename = nil
	case jobs.StateFailed:
		a.setError("Rename failed: " + job.Status.Message)
		a.jobs.DismissJob(id)
		a.rename = nil
	default:
		if a.now().Sub(a.rename.startedAt) >= a.cfg.RenameTimeout {
			a.logger.Info().
				Uint64("job_id", uint64(id)).
				Str("from", a.rename.from).
				Str("to", a.rename.to).
				Msg("Rename moved to background")
			a.rename = nil
		}
	}
}

// Mkdir creates name in the active pane's directory and reloads it.
func (a *App) Mkdir(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	p := a.ActivePane()
	if err := os.Mkdir(filepath.Join(p.Path(), name), 0755); err != nil {
		err = fmt.Errorf("mkdir failed: %w", err)
		a.setError(err.Error())
		return err
	}
	if err := p.LoadEntries(); err != nil {
		a.logger.Warn().Str("path", p.Path()).Err(err).Msg("Reload after mkdir failed")
	}
	p.MoveTo(name)
	return nil
}

// ErrorMessage returns the error being displayed, if any.
func (a *App) ErrorMessage() (string, bool) {
	return a.errorMessage, a.errorMessage != ""
}

func (a *App) setError(msg string) {
	a.errorMessage = msg
	a.errorAt = a.now()
}

// NeedsQuitConfirmation reports whether quitting should be confirmed
// because jobs the user has seen are still running.
func (a *App) NeedsQuitConfirmation() bool {
	return a.cfg.ConfirmQuit && a.jobs.HasVisibleJobs()
}

// RequestQuit quits at once unless confirmation is needed. It reports
// whether the app will quit.
func (a *App) RequestQuit() bool {
	if a.NeedsQuitConfirmation() {
		return false
	}
	a.quit = true
	return true
}

// ConfirmQuit cancels every active job and quits.
func (a *App) ConfirmQuit() {
	a.jobs.CancelAll()
	a.quit = true
}

// ShouldQuit reports whether the loop should stop.
func (a *App) ShouldQuit() bool { return a.quit }

// Run ticks every config.PollInterval until the app quits or ctx is done.
// On ctx cancellation every job is cancelled and reaped before returning
// ctx.Err().
func (a *App) Run(ctx context.Context) error {
	interval := a.cfg.PollInterval
	if interval <= 0 {
		interval = constants.EventPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for !a.quit {
		select {
		case <-ctx.Done():
			a.Shutdown()
			return ctx.Err()
		case <-ticker.C:
			a.Tick()
			if a.onTick != nil {
				a.onTick(a)
			}
		}
	}
	return nil
}

// Shutdown cancels every active job and keeps draining updates until all
// workers have exited, so cancelled copies remove their partial files. Size
// calculations of both panes are abandoned.
func (a *App) Shutdown() {
	a.left.Close()
	a.right.Close()
	a.jobs.CancelAll()
	done := make(chan struct{})
	go func() {
		a.jobs.Wait()
		close(done)
	}()

	ticker := time.NewTicker(constants.EventPollInterval)
	defer ticker.Stop()
	for {
		a.jobs.ProcessUpdates()
		select {
		case <-done:
			a.jobs.ProcessUpdates()
			return
		case <-ticker.C:
		}
	}
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
