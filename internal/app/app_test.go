package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dualpane/rc/internal/config"
	"github.com/dualpane/rc/internal/constants"
	"github.com/dualpane/rc/internal/jobs"
	"github.com/dualpane/rc/internal/localfs"
)

const testTimeout = 5 * time.Second

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func newApp(t *testing.T, left, right string, opts ...Option) *App {
	t.Helper()
	cfg := config.Default()
	cfg.CheckDiskSpace = false
	cfg.SizeMode = config.SizeModeOff
	a, err := New(left, right, append([]Option{WithConfig(cfg)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Shutdown)
	return a
}

// tickUntil ticks until cond holds.
func tickUntil(t *testing.T, a *App, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for {
		a.Tick()
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func hasEntry(entries []localfs.Entry, name string) bool {
	for _, e := range entries {
		if e.Name == name {
			return true
		}
	}
	return false
}

// blockedCopy starts a copy from the left pane that stops on a conflict and
// stays active until the conflict is answered.
func blockedCopy(t *testing.T, a *App) jobs.JobID {
	t.Helper()
	writeFiles(t, a.Pane(Left).Path(), map[string]string{"clash/f": "new"})
	writeFiles(t, a.Pane(Right).Path(), map[string]string{"clash/f": "old"})
	if err := a.Pane(Left).LoadEntries(); err != nil {
		t.Fatal(err)
	}
	a.Pane(Left).MoveTo("clash")
	ids, err := a.Transfer(jobs.JobCopy)
	if err != nil || len(ids) != 1 {
		t.Fatalf("Transfer() = %v, %v", ids, err)
	}
	tickUntil(t, a, "conflict", func() bool {
		_, ok := a.CurrentConflict()
		return ok
	})
	return ids[0]
}

func TestNew_RightPaneFallsBack(t *testing.T) {
	left := t.TempDir()
	a := newApp(t, left, filepath.Join(left, "missing"))
	if a.Pane(Right).Path() != a.Pane(Left).Path() {
		t.Errorf("right pane = %s, want fallback to %s", a.Pane(Right).Path(), a.Pane(Left).Path())
	}

	if _, err := New(filepath.Join(left, "missing"), left); err == nil {
		t.Error("a missing left path must fail")
	}
}

func TestPaneFocus(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	a := newApp(t, left, right)
	l, r := a.Pane(Left), a.Pane(Right)

	if a.ActivePane() != l || a.OtherPane() != r {
		t.Fatal("left pane should start active")
	}
	a.TogglePane()
	if a.ActiveSide() != Right || a.ActivePane() != r {
		t.Error("TogglePane did not move focus")
	}
	a.SwapPanes()
	if a.Pane(Left) != r || a.Pane(Right) != l {
		t.Error("SwapPanes did not exchange panes")
	}
}

func TestTransfer_CopyRefreshesDestinationPane(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	writeFiles(t, left, map[string]string{"one.txt": "1", "two.txt": "22", "dir/three.txt": "333"})
	a := newApp(t, left, right)
	a.Pane(Left).SelectNames("one.txt", "dir")

	ids, err := a.Transfer(jobs.JobCopy)
	if err != nil || len(ids) != 2 {
		t.Fatalf("Transfer() = %v, %v", ids, err)
	}
	if len(a.Pane(Left).SelectedEntries()) != 0 {
		t.Error("selection should be cleared after starting the transfer")
	}

	tickUntil(t, a, "right pane refresh", func() bool {
		entries := a.Pane(Right).Entries()
		return hasEntry(entries, "one.txt") && hasEntry(entries, "dir")
	})
	if hasEntry(a.Pane(Right).Entries(), "two.txt") {
		t.Error("unselected file was copied")
	}
	if !hasEntry(a.Pane(Left).Entries(), "one.txt") {
		t.Error("copy removed the source")
	}
}

func TestTransfer_MoveRefreshesBothPanes(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	writeFiles(t, left, map[string]string{"moving.txt": "m"})
	a := newApp(t, left, right)
	a.Pane(Left).MoveTo("moving.txt")

	if _, err := a.Transfer(jobs.JobMove); err != nil {
		t.Fatal(err)
	}
	tickUntil(t, a, "both panes refresh", func() bool {
		return hasEntry(a.Pane(Right).Entries(), "moving.txt") && !hasEntry(a.Pane(Left).Entries(), "moving.txt")
	})
}

func TestTransfer_NothingSelected(t *testing.T) {
	left := t.TempDir()
	a := newApp(t, left, t.TempDir())
	// Cursor is on ".."
	ids, err := a.Transfer(jobs.JobCopy)
	if err != nil || len(ids) != 0 {
		t.Errorf("Transfer() = %v, %v; want nothing started", ids, err)
	}
}

func TestDelete(t *testing.T) {
	left := t.TempDir()
	writeFiles(t, left, map[string]string{"keep": "k", "junk1": "1", "junkdir/x/y": "2"})
	a := newApp(t, left, t.TempDir())
	a.Pane(Left).SelectNames("junk1", "junkdir")

	plan, ok := a.PlanDelete()
	if !ok || len(plan.Entries) != 2 || plan.ConflictsWithJobs {
		t.Fatalf("PlanDelete() = %+v, %v", plan, ok)
	}
	if plan.ParentDir != a.Pane(Left).Path() {
		t.Errorf("plan parent = %s", plan.ParentDir)
	}

	id := a.ConfirmDelete(plan)
	tickUntil(t, a, "left pane refresh", func() bool {
		return !hasEntry(a.Pane(Left).Entries(), "junk1") && !hasEntry(a.Pane(Left).Entries(), "junkdir")
	})
	if !hasEntry(a.Pane(Left).Entries(), "keep") {
		t.Error("unselected entry was deleted")
	}
	if job, _ := a.Jobs().Job(id); job.Description != "Deleting 2 items" {
		t.Errorf("description = %q", job.Description)
	}
}

func TestPlanDelete_WarnsAboutActiveTransfer(t *testing.T) {
	a := newApp(t, t.TempDir(), t.TempDir())
	id := blockedCopy(t, a)

	// Deleting the source of the running copy
	a.Pane(Left).MoveTo("clash")
	plan, ok := a.PlanDelete()
	if !ok || !plan.ConflictsWithJobs {
		t.Errorf("PlanDelete() = %+v, want ConflictsWithJobs", plan)
	}

	c, _ := a.CurrentConflict()
	if c.JobID != id || filepath.Base(c.FilePath) != "f" {
		t.Errorf("conflict = %+v", c)
	}
	a.ResolveConflict(jobs.ResolveOverwrite)
	if _, ok := a.CurrentConflict(); ok {
		t.Error("conflict should be cleared once answered")
	}

	tickUntil(t, a, "copy to finish", func() bool {
		job, _ := a.Jobs().Job(id)
		return job.Status.IsTerminal()
	})
	got, err := os.ReadFile(filepath.Join(a.Pane(Right).Path(), "clash", "f"))
	if err != nil || string(got) != "new" {
		t.Errorf("destination = %q, %v", got, err)
	}
}

func TestRename(t *testing.T) {
	left := t.TempDir()
	writeFiles(t, left, map[string]string{"before.txt": "b"})
	a := newApp(t, left, t.TempDir())
	a.Pane(Left).MoveTo("before.txt")

	id, started, err := a.Rename("after.txt")
	if err != nil || !started {
		t.Fatalf("Rename() = %v, %v", started, err)
	}
	if !a.RenameInProgress() {
		t.Fatal("rename should wait in the foreground")
	}

	tickUntil(t, a, "rename to finish", func() bool { return !a.RenameInProgress() })
	if _, ok := a.Jobs().Job(id); ok {
		t.Error("finished rename should be dismissed")
	}
	if msg, ok := a.ErrorMessage(); ok {
		t.Errorf("unexpected error message %q", msg)
	}
	tickUntil(t, a, "pane refresh", func() bool { return hasEntry(a.Pane(Left).Entries(), "after.txt") })
}

func TestRename_Failure(t *testing.T) {
	left := t.TempDir()
	writeFiles(t, left, map[string]string{"a.txt": "a", "b.txt": "b"})
	a := newApp(t, left, t.TempDir())
	a.Pane(Left).MoveTo("a.txt")

	id, _, err := a.Rename("b.txt")
	if err != nil {
		t.Fatal(err)
	}
	tickUntil(t, a, "rename to fail", func() bool { return !a.RenameInProgress() })

	msg, ok := a.ErrorMessage()
	if !ok || !strings.HasPrefix(msg, "Rename failed: ") || !strings.Contains(msg, "already exists") {
		t.Errorf("error message = %q", msg)
	}
	if _, ok := a.Jobs().Job(id); ok {
		t.Error("failed rename should be dismissed")
	}
}

func TestRename_NoOpAndInvalid(t *testing.T) {
	left := t.TempDir()
	writeFiles(t, left, map[string]string{"same.txt": "s"})
	a := newApp(t, left, t.TempDir())

	// Cursor on ".."
	if _, started, err := a.Rename("x"); started || err != nil {
		t.Errorf("rename of '..' = %v, %v", started, err)
	}

	a.Pane(Left).MoveTo("same.txt")
	if _, started, err := a.Rename("same.txt"); started || err != nil {
		t.Errorf("rename to the same name = %v, %v", started, err)
	}
	for _, bad := range []string{"", ".", "..", "a/b"} {
		if _, _, err := a.Rename(bad); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Rename(%q) error = %v", bad, err)
		}
	}
}

func TestRename_BackgroundedAfterTimeout(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	a := newApp(t, t.TempDir(), t.TempDir(), WithClock(clock.now))

	// Any job that stays active will do
	id := blockedCopy(t, a)
	a.rename = &renameProgress{id: id, startedAt: clock.now(), from: "x", to: "y"}

	clock.advance(a.cfg.RenameTimeout - time.Millisecond)
	a.Tick()
	if !a.RenameInProgress() {
		t.Fatal("backgrounded before the timeout")
	}

	clock.advance(time.Millisecond)
	a.Tick()
	if a.RenameInProgress() {
		t.Error("rename should be backgrounded after the timeout")
	}
	if _, ok := a.Jobs().Job(id); !ok {
		t.Error("backgrounded job must stay in the job list")
	}
}

func TestCancelRename(t *testing.T) {
	a := newApp(t, t.TempDir(), t.TempDir())
	id := blockedCopy(t, a)
	a.rename = &renameProgress{id: id, startedAt: time.Now()}

	a.CancelRename()
	if a.RenameInProgress() {
		t.Error("still waiting after cancel")
	}
	if job, _ := a.Jobs().Job(id); job.Status.State != jobs.StateCancelled {
		t.Errorf("job state = %s, want cancelled", job.Status.State)
	}
}

func TestMkdir(t *testing.T) {
	left := t.TempDir()
	a := newApp(t, left, t.TempDir())

	if err := a.Mkdir("fresh"); err != nil {
		t.Fatal(err)
	}
	if e, ok := a.Pane(Left).CursorEntry(); !ok || e.Name != "fresh" || !e.IsDir {
		t.Errorf("cursor entry = %+v", e)
	}

	err := a.Mkdir("fresh")
	if err == nil || !strings.HasPrefix(err.Error(), "mkdir failed") {
		t.Errorf("second Mkdir() = %v", err)
	}
	if _, ok := a.ErrorMessage(); !ok {
		t.Error("mkdir failure should be shown")
	}
	if err := a.Mkdir("x/y"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Mkdir(x/y) = %v", err)
	}
}

func TestErrorMessageExpires(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	a := newApp(t, t.TempDir(), t.TempDir(), WithClock(clock.now))

	a.setError("boom")
	clock.advance(constants.ErrorDisplayDuration)
	a.Tick()
	if _, ok := a.ErrorMessage(); !ok {
		t.Fatal("message expired too early")
	}
	clock.advance(time.Millisecond)
	a.Tick()
	if msg, ok := a.ErrorMessage(); ok {
		t.Errorf("message %q should have expired", msg)
	}
}

func TestQuitConfirmation(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	a := newApp(t, t.TempDir(), t.TempDir(), WithClock(clock.now))

	if a.NeedsQuitConfirmation() {
		t.Fatal("no jobs: no confirmation needed")
	}

	id := blockedCopy(t, a)
	if a.NeedsQuitConfirmation() {
		t.Error("a job that is not visible yet needs no confirmation")
	}
	clock.advance(constants.JobVisibilityThreshold)
	a.Tick()
	if !a.NeedsQuitConfirmation() || a.RequestQuit() {
		t.Fatal("visible job should require confirmation")
	}

	a.ConfirmQuit()
	if !a.ShouldQuit() {
		t.Error("ConfirmQuit should quit")
	}
	if job, _ := a.Jobs().Job(id); job.Status.State != jobs.StateCancelled {
		t.Errorf("job state = %s, want cancelled", job.Status.State)
	}
}

func TestRun(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	writeFiles(t, left, map[string]string{"f": "data"})

	ticks := 0
	a := newApp(t, left, right, WithTickHook(func(app *App) {
		ticks++
		if app.Jobs().ActiveJobCount() == 0 {
			app.RequestQuit()
		}
	}))
	a.Pane(Left).MoveTo("f")
	if _, err := a.Transfer(jobs.JobCopy); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if ticks == 0 || !a.ShouldQuit() {
		t.Errorf("ticks=%d quit=%v", ticks, a.ShouldQuit())
	}
	if _, err := os.Stat(filepath.Join(right, "f")); err != nil {
		t.Error(err)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	a := newApp(t, t.TempDir(), t.TempDir())
	id := blockedCopy(t, a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	if job, _ := a.Jobs().Job(id); job.Status.State != jobs.StateCancelled {
		t.Errorf("job state = %s, want cancelled", job.Status.State)
	}
}

func TestShutdown_AbandonsSizeCalculations(t *testing.T) {
	left := t.TempDir()
	writeFiles(t, left, map[string]string{"a/f": "x", "b/f": "y"})
	cfg := config.Default()
	cfg.CheckDiskSpace = false
	cfg.SizeMode = config.SizeModeFull
	a := newApp(t, left, left, WithConfig(cfg))

	if !a.Pane(Left).SizesPending() || !a.Pane(Right).SizesPending() {
		t.Fatal("size calculations not started")
	}
	a.Shutdown()
	for _, side := range []Side{Left, Right} {
		if a.Pane(side).SizesPending() {
			t.Errorf("pane %d still calculating sizes after Shutdown", side)
		}
	}
}
