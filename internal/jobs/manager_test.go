package jobs

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dualpane/rc/internal/constants"
	"github.com/dualpane/rc/internal/events"
)

// fakeClock is a settable clock for WithClock.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// addJob registers a job with a worker handle but no goroutine, so tests can
// drive its state with hand-written updates.
func addJob(m *Manager, typ JobType, source, destination string) *Job {
	job := m.register(typ, "test "+string(typ), source, destination)
	m.newWorker(job.ID)
	return job
}

func TestManager_IDsAndOrdering(t *testing.T) {
	m := NewManager()
	for i := 0; i < 4; i++ {
		job := addJob(m, JobCopy, "/src", "/dst")
		if job.ID != JobID(i) {
			t.Errorf("job %d got id %d", i, job.ID)
		}
	}

	all := m.AllJobs()
	if len(all) != 4 {
		t.Fatalf("AllJobs() returned %d jobs", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID <= all[i].ID {
			t.Errorf("AllJobs not newest first: %d before %d", all[i-1].ID, all[i].ID)
		}
	}
}

func TestManager_StartJobRejectsOtherTypes(t *testing.T) {
	m := NewManager()
	for _, typ := range []JobType{JobDelete, JobRename} {
		if _, err := m.StartJob(typ, "/a", "/b"); !errors.Is(err, ErrUnsupportedJobType) {
			t.Errorf("StartJob(%s) error = %v, want ErrUnsupportedJobType", typ, err)
		}
	}
	if n := len(m.AllJobs()); n != 0 {
		t.Errorf("rejected jobs must not be registered, have %d", n)
	}
}

func TestManager_CancelJob(t *testing.T) {
	m := NewManager()
	job := addJob(m, JobCopy, "/src", "/dst")
	control := m.handles[job.ID].control

	m.CancelJob(job.ID)
	if job.Status.State != StateCancelled {
		t.Fatalf("state = %s, want cancelled immediately", job.Status.State)
	}
	if !control.Cancelled() {
		t.Error("worker control should be cancelled")
	}
	if _, ok := m.handles[job.ID]; ok {
		t.Error("handle should be dropped once terminal")
	}

	// Idempotent, and unknown ids are ignored
	m.CancelJob(job.ID)
	m.CancelJob(999)
	if job.Status.State != StateCancelled {
		t.Errorf("state = %s after repeated cancel", job.Status.State)
	}

	// A late Failed from the worker never overrides the cancel
	m.apply(JobUpdate{JobID: job.ID, Kind: UpdateFailed, Err: "boom"}, nil)
	if job.Status.State != StateCancelled {
		t.Errorf("late failure overrode cancel: %s", job.Status)
	}

	// A late Completed still refreshes the panes
	dests, srcs := m.apply(JobUpdate{JobID: job.ID, Kind: UpdateCompleted}, nil)
	if job.Status.State != StateCancelled {
		t.Errorf("late completion overrode cancel: %s", job.Status)
	}
	if len(dests) != 1 || dests[0] != "/dst" || len(srcs) != 0 {
		t.Errorf("refresh = %v / %v, want [/dst] / none", dests, srcs)
	}
}

func TestManager_CancelAll(t *testing.T) {
	m := NewManager()
	a := addJob(m, JobCopy, "/a", "/x")
	b := addJob(m, JobDelete, "/b", "")
	done := addJob(m, JobMove, "/c", "/y")
	m.apply(JobUpdate{JobID: done.ID, Kind: UpdateCompleted}, nil)

	m.CancelAll()
	if a.Status.State != StateCancelled || b.Status.State != StateCancelled {
		t.Errorf("active jobs should be cancelled: %s, %s", a.Status, b.Status)
	}
	if done.Status.State != StateCompleted {
		t.Errorf("completed job changed to %s", done.Status)
	}
	if m.ActiveJobCount() != 0 {
		t.Errorf("ActiveJobCount() = %d", m.ActiveJobCount())
	}
}

func TestManager_TogglePause(t *testing.T) {
	m := NewManager()
	job := addJob(m, JobCopy, "/src", "/dst")
	control := m.handles[job.ID].control
	m.apply(JobUpdate{JobID: job.ID, Kind: UpdateScanComplete, TotalBytes: 100, TotalFiles: 2}, nil)
	m.apply(JobUpdate{JobID: job.ID, Kind: UpdateProgress, ProcessedBytes: 40, FilesProcessed: 1}, nil)
	before := job.Progress

	m.TogglePauseJob(job.ID)
	if job.Status.State != StatePaused || !control.Paused() {
		t.Fatalf("after first toggle: state=%s paused=%v", job.Status.State, control.Paused())
	}
	m.TogglePauseJob(job.ID)
	if job.Status.State != StateVisible || control.Paused() {
		t.Fatalf("after second toggle: state=%s paused=%v", job.Status.State, control.Paused())
	}
	if job.Progress != before {
		t.Errorf("pause toggling changed progress: %+v -> %+v", before, job.Progress)
	}

	// Terminal jobs are left alone
	m.apply(JobUpdate{JobID: job.ID, Kind: UpdateCompleted}, nil)
	m.TogglePauseJob(job.ID)
	if job.Status.State != StateCompleted {
		t.Errorf("toggle on completed job gave %s", job.Status.State)
	}
}

func TestManager_UpdateVisibility(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewManager(WithClock(clock.now))
	job := addJob(m, JobCopy, "/src", "/dst")

	clock.advance(constants.JobVisibilityThreshold - time.Millisecond)
	m.UpdateVisibility()
	if job.Status.State != StateRunning || m.HasVisibleJobs() {
		t.Fatalf("job became visible too early: %s", job.Status.State)
	}

	clock.advance(time.Millisecond)
	m.UpdateVisibility()
	if job.Status.State != StateVisible || !m.HasVisibleJobs() {
		t.Errorf("job should be visible at the threshold, got %s", job.Status.State)
	}
}

func TestManager_ProgressUpdates(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewManager(WithClock(clock.now))
	job := addJob(m, JobCopy, "/src", "/dst")

	m.apply(JobUpdate{JobID: job.ID, Kind: UpdateScanComplete, TotalBytes: 1000, TotalFiles: 3, SkippedEntries: 1}, nil)
	// A second scan report is ignored
	m.apply(JobUpdate{JobID: job.ID, Kind: UpdateScanComplete, TotalBytes: 1, TotalFiles: 1}, nil)
	if p := job.Progress; p.TotalBytes != 1000 || p.TotalFiles != 3 || p.SkippedEntries != 1 || !p.Scanned {
		t.Fatalf("progress after scan = %+v", p)
	}

	clock.advance(time.Second)
	progressed := make(map[JobID]struct{})
	m.apply(JobUpdate{JobID: job.ID, Kind: UpdateProgress, ProcessedBytes: 500, FilesProcessed: 1, CurrentFile: "a"}, progressed)
	if _, ok := progressed[job.ID]; !ok {
		t.Error("job should be marked as progressed")
	}
	if got := job.Throughput.Current(); got != 500 {
		t.Errorf("throughput = %v, want 500 B/s", got)
	}

	// Progress never goes backwards
	m.apply(JobUpdate{JobID: job.ID, Kind: UpdateProgress, ProcessedBytes: 200, FilesProcessed: 0, CurrentFile: "b"}, nil)
	if job.Progress.ProcessedBytes != 500 || job.Progress.FilesProcessed != 1 {
		t.Errorf("progress regressed: %+v", job.Progress)
	}
	if job.Progress.Fraction() != 0.5 {
		t.Errorf("Fraction() = %v", job.Progress.Fraction())
	}

	m.apply(JobUpdate{JobID: job.ID, Kind: UpdateCompleted}, nil)
	if job.Progress.CurrentFile != "" {
		t.Errorf("current file should be cleared on completion, got %q", job.Progress.CurrentFile)
	}
}

func TestManager_FailedKeepsMessage(t *testing.T) {
	m := NewManager()
	job := addJob(m, JobMove, "/src/a", "/dst")

	dests, srcs := m.apply(JobUpdate{JobID: job.ID, Kind: UpdateFailed, Err: "disk on fire"}, nil)
	if job.Status.State != StateFailed || job.Status.Message != "disk on fire" {
		t.Errorf("status = %+v", job.Status)
	}
	if len(dests)+len(srcs) != 0 {
		t.Errorf("failed jobs do not refresh, got %v / %v", dests, srcs)
	}
}

func TestManager_RefreshPaths(t *testing.T) {
	tests := []struct {
		name      string
		typ       JobType
		source    string
		dest      string
		parentDir string
		wantDest  []string
		wantSrc   []string
	}{
		{"copy", JobCopy, "/home/u/a", "/mnt/b", "", []string{"/mnt/b"}, nil},
		{"move", JobMove, "/home/u/a", "/mnt/b", "", []string{"/mnt/b"}, []string{"/home/u"}},
		{"delete", JobDelete, "/home/u", "", "/home/u", nil, []string{"/home/u"}},
		{"rename", JobRename, "/home/u/a", "/home/u/b", "/home/u", nil, []string{"/home/u"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			job := addJob(m, tt.typ, filepath.FromSlash(tt.source), filepath.FromSlash(tt.dest))
			job.ParentDir = filepath.FromSlash(tt.parentDir)

			dests, srcs := m.apply(JobUpdate{JobID: job.ID, Kind: UpdateCompleted}, nil)
			if !equalPaths(dests, tt.wantDest) || !equalPaths(srcs, tt.wantSrc) {
				t.Errorf("refresh = %v / %v, want %v / %v", dests, srcs, tt.wantDest, tt.wantSrc)
			}
		})
	}
}

func equalPaths(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != filepath.FromSlash(want[i]) {
			return false
		}
	}
	return true
}

func TestManager_DismissAndClear(t *testing.T) {
	m := NewManager()
	active := addJob(m, JobCopy, "/a", "/b")
	done := addJob(m, JobCopy, "/c", "/d")
	failed := addJob(m, JobDelete, "/e", "")
	m.apply(JobUpdate{JobID: done.ID, Kind: UpdateCompleted}, nil)
	m.apply(JobUpdate{JobID: failed.ID, Kind: UpdateFailed, Err: "x"}, nil)

	if m.DismissJob(active.ID) {
		t.Error("active jobs cannot be dismissed")
	}
	if !m.DismissJob(done.ID) {
		t.Error("completed job should be dismissed")
	}
	if _, ok := m.Job(done.ID); ok {
		t.Error("dismissed job still present")
	}

	// Updates for a dismissed job are dropped
	if d, s := m.apply(JobUpdate{JobID: done.ID, Kind: UpdateCompleted}, nil); d != nil || s != nil {
		t.Errorf("dismissed job produced refresh %v / %v", d, s)
	}

	if n := m.ClearFinished(); n != 1 {
		t.Errorf("ClearFinished() = %d, want 1", n)
	}
	if all := m.AllJobs(); len(all) != 1 || all[0].ID != active.ID {
		t.Errorf("remaining jobs = %+v", all)
	}
}

func TestManager_Stats(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := NewManager(WithClock(clock.now))
	addJob(m, JobCopy, "/a", "/b")
	visible := addJob(m, JobCopy, "/a", "/b")
	paused := addJob(m, JobCopy, "/a", "/b")
	done := addJob(m, JobCopy, "/a", "/b")
	failed := addJob(m, JobCopy, "/a", "/b")
	cancelled := addJob(m, JobCopy, "/a", "/b")

	visible.Status = JobStatus{State: StateVisible}
	m.TogglePauseJob(paused.ID)
	m.apply(JobUpdate{JobID: done.ID, Kind: UpdateCompleted}, nil)
	m.apply(JobUpdate{JobID: failed.ID, Kind: UpdateFailed}, nil)
	m.CancelJob(cancelled.ID)

	want := Stats{Running: 1, Visible: 1, Paused: 1, Completed: 1, Failed: 1, Cancelled: 1}
	if got := m.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
	if got := m.Stats(); got.Active() != 3 || got.Total() != 6 {
		t.Errorf("Active()/Total() = %d/%d", got.Active(), got.Total())
	}
	if m.ActiveJobCount() != 3 {
		t.Errorf("ActiveJobCount() = %d", m.ActiveJobCount())
	}
}

func TestManager_PendingConflicts(t *testing.T) {
	m := NewManager()
	a := addJob(m, JobCopy, "/a", "/x")
	b := addJob(m, JobCopy, "/b", "/y")
	c := addJob(m, JobCopy, "/c", "/z")

	m.apply(JobUpdate{JobID: a.ID, Kind: UpdateConflictDetected, FilePath: "/x/a/1"}, nil)
	m.apply(JobUpdate{JobID: b.ID, Kind: UpdateConflictDetected, FilePath: "/y/b/1"}, nil)
	m.apply(JobUpdate{JobID: c.ID, Kind: UpdateConflictDetected, FilePath: "/z/c/1"}, nil)
	m.CancelJob(b.ID)

	var got []string
	for {
		pc, ok := m.NextPendingConflict()
		if !ok {
			break
		}
		got = append(got, pc.FilePath)
	}
	if len(got) != 2 || got[0] != "/x/a/1" || got[1] != "/z/c/1" {
		t.Errorf("pending conflicts = %v, want FIFO without the cancelled job", got)
	}
}

func TestManager_SendConflictResolution(t *testing.T) {
	m := NewManager()
	job := addJob(m, JobCopy, "/a", "/b")
	ch := m.handles[job.ID].conflicts

	m.SendConflictResolution(job.ID, ResolveSkip)
	// The channel holds one answer; a second is dropped rather than blocking
	m.SendConflictResolution(job.ID, ResolveOverwrite)
	if got := <-ch; got != ResolveSkip {
		t.Errorf("received %s, want skip", got)
	}

	m.CancelJob(job.ID)
	// No handle any more: must not panic on the closed channel
	m.SendConflictResolution(job.ID, ResolveCancel)
	if _, open := <-ch; open {
		t.Error("conflict channel should be closed after cancel")
	}
}

func TestManager_PathsConflictWithActiveJobs(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "data")
	dest := filepath.Join(base, "backup")

	m := NewManager()
	job := addJob(m, JobCopy, src, dest)
	addJob(m, JobDelete, filepath.Join(base, "ignored"), "")

	tests := []struct {
		name  string
		paths []string
		want  bool
	}{
		{"source itself", []string{src}, true},
		{"inside source", []string{filepath.Join(src, "sub", "f.txt")}, true},
		{"ancestor of source", []string{base}, true},
		{"destination directory", []string{dest}, true},
		{"destination target", []string{filepath.Join(dest, "data")}, true},
		{"inside destination target", []string{filepath.Join(dest, "data", "x")}, true},
		{"sibling inside destination directory", []string{filepath.Join(dest, "other")}, true},
		{"sibling with shared prefix", []string{src + "-old"}, false},
		{"destination with shared prefix", []string{dest + "2"}, false},
		{"delete jobs are not checked", []string{filepath.Join(base, "ignored")}, false},
		{"any of several", []string{filepath.Join(base, "zzz"), src}, true},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.PathsConflictWithActiveJobs(tt.paths); got != tt.want {
				t.Errorf("PathsConflictWithActiveJobs(%v) = %v, want %v", tt.paths, got, tt.want)
			}
		})
	}

	m.apply(JobUpdate{JobID: job.ID, Kind: UpdateCompleted}, nil)
	if m.PathsConflictWithActiveJobs([]string{src}) {
		t.Error("finished jobs must not block paths")
	}
}

func TestManager_PublishesEvents(t *testing.T) {
	bus := events.NewEventBus(100)
	defer bus.Close()
	all := bus.SubscribeAll()

	m := NewManager(WithEventBus(bus))
	job := addJob(m, JobCopy, "/a", "/b")
	m.publish(events.EventJobStarted, job)

	m.updates <- JobUpdate{JobID: job.ID, Kind: UpdateScanComplete, TotalBytes: 10, TotalFiles: 1}
	m.updates <- JobUpdate{JobID: job.ID, Kind: UpdateProgress, ProcessedBytes: 3}
	m.updates <- JobUpdate{JobID: job.ID, Kind: UpdateProgress, ProcessedBytes: 6}
	m.updates <- JobUpdate{JobID: job.ID, Kind: UpdateProgress, ProcessedBytes: 10, FilesProcessed: 1}
	m.updates <- JobUpdate{JobID: job.ID, Kind: UpdateCompleted}
	m.ProcessUpdates()

	var types []events.EventType
	var last *events.JobEvent
	for len(all) > 0 {
		ev := (<-all).(*events.JobEvent)
		types = append(types, ev.Type())
		if ev.Type() == events.EventJobProgress {
			last = ev
		}
	}

	want := []events.EventType{
		events.EventJobStarted,
		events.EventJobScanComplete,
		events.EventJobCompleted,
		events.EventJobProgress,
	}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, types[i], want[i])
		}
	}
	if last == nil || last.ProcessedBytes != 10 || last.TotalBytes != 10 {
		t.Errorf("coalesced progress event = %+v", last)
	}
}

func TestManager_CopyJobLifecycle(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	dest := filepath.Join(base, "dest")
	writeFiles(t, src, map[string]string{"one": "1", "two": "22"})
	bus := events.NewEventBus(100)
	defer bus.Close()
	completed := bus.Subscribe(events.EventJobCompleted)
	m := newTestManager(t, WithEventBus(bus))

	id, err := m.StartJob(JobCopy, src, dest)
	if err != nil {
		t.Fatal(err)
	}
	if got := mustJob(t, m, id); got.Status.State != StateRunning || got.Description != "Copying 'src' to "+dest {
		t.Errorf("new job = %+v", got)
	}

	dests, srcs := refreshUntilDone(t, m, id)
	if len(dests) != 1 || dests[0] != dest || len(srcs) != 0 {
		t.Errorf("refresh = %v / %v", dests, srcs)
	}

	select {
	case ev := <-completed:
		if je := ev.(*events.JobEvent); je.JobID != uint64(id) || je.TotalFiles != 2 {
			t.Errorf("completed event = %+v", je)
		}
	case <-time.After(testTimeout):
		t.Fatal("no completion event")
	}
	assertFileContent(t, filepath.Join(dest, "src", "two"), "22")
}
