package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/dualpane/rc/internal/app"
	"github.com/dualpane/rc/internal/constants"
	"github.com/dualpane/rc/internal/events"
	"github.com/dualpane/rc/internal/jobs"
	"github.com/dualpane/rc/internal/logging"
	"github.com/dualpane/rc/internal/pathutil"
	"github.com/dualpane/rc/internal/progress"
	"github.com/dualpane/rc/internal/util/strings"
)

// conflictPolicy decides how file conflicts are answered.
type conflictPolicy int

const (
	conflictPrompt    conflictPolicy = iota // Ask on stdin, cancel the job if stdin is not a terminal
	conflictOverwrite                       // Overwrite every conflicting file
	conflictSkip                            // Keep every existing file
)

func conflictPolicyFromFlags(overwrite, skipExisting bool) (conflictPolicy, error) {
	switch {
	case overwrite && skipExisting:
		return conflictPrompt, errors.New("--overwrite and --skip-existing are mutually exclusive")
	case overwrite:
		return conflictOverwrite, nil
	case skipExisting:
		return conflictSkip, nil
	default:
		return conflictPrompt, nil
	}
}

// session drives an app.App from the command line: it renders jobs, answers
// conflicts, and quits once every job it started has finished.
type session struct {
	app         *app.App
	ui          *progress.JobsUI
	bus         *events.EventBus
	policy      conflictPolicy
	stdin       *bufio.Reader
	interactive bool
	logger      *logging.Logger
	eventsDone  chan struct{}
}

// newSession opens the left pane at left and the right pane at right.
// Hidden entries are always listed since command-line paths name them
// explicitly.
func newSession(left, right string, policy conflictPolicy) (*session, error) {
	c := *GetConfig()
	c.ShowHidden = true

	s := &session{
		ui:          progress.NewJobsUI(),
		bus:         events.NewEventBus(constants.EventBusDefaultBuffer),
		policy:      policy,
		stdin:       bufio.NewReader(os.Stdin),
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
		logger:      GetLogger(),
		eventsDone:  make(chan struct{}),
	}
	go s.logEvents(s.bus.SubscribeAll())

	a, err := app.New(left, right,
		app.WithConfig(&c),
		app.WithLogger(s.logger),
		app.WithEventBus(s.bus),
		app.WithTickHook(s.tick),
	)
	if err != nil {
		s.ui.Close()
		s.bus.Close()
		<-s.eventsDone
		return nil, err
	}
	s.app = a
	return s, nil
}

func (s *session) tick(a *app.App) {
	s.ui.Update(a.Jobs().AllJobs())

	if c, ok := a.CurrentConflict(); ok {
		a.ResolveConflict(s.resolve(c))
	}

	if a.Jobs().ActiveJobCount() == 0 && !a.RenameInProgress() {
		a.RequestQuit()
	}
}

func (s *session) resolve(c jobs.PendingConflict) jobs.ConflictResolution {
	switch s.policy {
	case conflictOverwrite:
		return jobs.ResolveOverwriteAll
	case conflictSkip:
		return jobs.ResolveSkipAll
	}

	if !s.interactive {
		s.logger.Warn().
			Uint64("job_id", uint64(c.JobID)).
			Str("path", c.FilePath).
			Msg("Destination exists and stdin is not a terminal; cancelling job (use --overwrite or --skip-existing)")
		return jobs.ResolveCancel
	}

	res, err := promptFileConflict(s.ui.Writer(), s.stdin, c.FilePath)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Conflict prompt failed; cancelling job")
		return jobs.ResolveCancel
	}
	return res
}

// logEvents records job outcomes at debug level until the bus is closed.
func (s *session) logEvents(ch <-chan events.Event) {
	defer close(s.eventsDone)
	for ev := range ch {
		je, ok := ev.(*events.JobEvent)
		if !ok {
			continue
		}
		switch je.Type() {
		case events.EventJobCompleted:
			s.logger.Debug().
				Uint64("job_id", je.JobID).
				Str("type", je.JobType).
				Str("bytes", strings.FormatBytes(je.ProcessedBytes)).
				Int64("files", je.FilesProcessed).
				Msg("Job completed")
		case events.EventJobFailed:
			s.logger.Debug().
				Uint64("job_id", je.JobID).
				Str("type", je.JobType).
				Str("error", je.Error).
				Msg("Job failed")
		case events.EventJobCancelled:
			s.logger.Debug().
				Uint64("job_id", je.JobID).
				Str("type", je.JobType).
				Msg("Job cancelled")
		}
	}
}

// run ticks the app until every job has finished or ctx is cancelled, then
// reports failures as an error.
func (s *session) run(ctx context.Context) error {
	runErr := s.app.Run(ctx)
	s.app.Shutdown()

	final := s.app.Jobs().AllJobs()
	s.ui.Update(final)
	s.ui.Close()
	s.bus.Close()
	<-s.eventsDone
	if dropped := s.bus.GetDroppedEventCount(); dropped > 0 {
		s.logger.Debug().Int64("dropped", dropped).Msg("Event log subscriber fell behind")
	}

	if runErr != nil {
		return fmt.Errorf("interrupted: %w", runErr)
	}
	if msg, ok := s.app.ErrorMessage(); ok {
		return errors.New(msg)
	}

	failed := 0
	for _, j := range final {
		if j.Status.State == jobs.StateFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d %s failed", failed, len(final), strings.Pluralize("job", int64(len(final))))
	}
	return nil
}

// close releases a session that will not be run.
func (s *session) close() {
	s.app.Shutdown()
	s.ui.Close()
	s.bus.Close()
	<-s.eventsDone
}

// sourceGroup is a set of entries sharing a parent directory.
type sourceGroup struct {
	dir   string
	names []string
}

// groupByParent resolves paths and groups them by parent directory, in
// order of first appearance. The entries themselves are not resolved, so a
// symlink names the link rather than its target.
func groupByParent(paths []string) ([]sourceGroup, error) {
	var groups []sourceGroup
	index := make(map[string]int)
	seen := make(map[string]struct{})

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve %s: %w", p, err)
		}
		name := filepath.Base(abs)
		if name == string(filepath.Separator) || name == "." || name == ".." || filepath.Dir(abs) == abs {
			return nil, fmt.Errorf("cannot operate on %s", p)
		}
		if _, err := os.Lstat(abs); err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", p, err)
		}

		dir := pathutil.Canonical(filepath.Dir(abs))
		key := filepath.Join(dir, name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		i, ok := index[dir]
		if !ok {
			i = len(groups)
			index[dir] = i
			groups = append(groups, sourceGroup{dir: dir})
		}
		groups[i].names = append(groups[i].names, name)
	}
	if len(groups) == 0 {
		return nil, errors.New("no paths given")
	}
	return groups, nil
}

// selectGroup points the active pane at g.dir and selects g's entries.
func (s *session) selectGroup(g sourceGroup) error {
	s.app.SetActive(app.Left)
	p := s.app.ActivePane()
	if err := p.NavigateTo(g.dir); err != nil {
		return fmt.Errorf("%s: %w", g.dir, err)
	}
	if found := p.SelectNames(g.names...); found != len(g.names) {
		return fmt.Errorf("%s: only %d of %d entries are listed", g.dir, found, len(g.names))
	}
	return nil
}
