package jobs

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dualpane/rc/internal/logging"
)

const testTimeout = 5 * time.Second

// newTestManager returns a Manager without the disk space preflight whose
// workers are cancelled and reaped when the test ends.
func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m := NewManager(append([]Option{WithDiskSpaceCheck(false)}, opts...)...)
	t.Cleanup(func() {
		m.CancelAll()
		done := make(chan struct{})
		go func() {
			m.Wait()
			close(done)
		}()
		deadline := time.After(testTimeout)
		for {
			select {
			case <-done:
				return
			case <-m.updates:
			case <-deadline:
				t.Error("workers did not exit")
				return
			}
		}
	})
	return m
}

// runUntilDone feeds raw updates through the manager until the worker of id
// reports a terminal update. onUpdate, if set, sees every update for id after
// it was applied. It returns the updates of id in arrival order.
func runUntilDone(t *testing.T, m *Manager, id JobID, onUpdate func(JobUpdate)) []JobUpdate {
	t.Helper()
	var seen []JobUpdate
	deadline := time.After(testTimeout)
	for {
		select {
		case u := <-m.updates:
			m.apply(u, nil)
			if u.JobID != id {
				continue
			}
			seen = append(seen, u)
			if onUpdate != nil {
				onUpdate(u)
			}
			switch u.Kind {
			case UpdateCompleted, UpdateFailed, UpdateCancelled:
				return seen
			}
		case <-deadline:
			t.Fatalf("job %d did not finish, %d updates so far", id, len(seen))
		}
	}
}

// refreshUntilDone is runUntilDone for callers that only care about the
// directories the manager asks to refresh.
func refreshUntilDone(t *testing.T, m *Manager, id JobID) (destinations, sources []string) {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case u := <-m.updates:
			d, s := m.apply(u, nil)
			destinations = append(destinations, d...)
			sources = append(sources, s...)
			if u.JobID != id {
				continue
			}
			switch u.Kind {
			case UpdateCompleted, UpdateFailed, UpdateCancelled:
				return destinations, sources
			}
		case <-deadline:
			t.Fatalf("job %d did not finish", id)
		}
	}
}

// waitForUpdate reads raw updates until one of kind arrives for id.
func waitForUpdate(t *testing.T, m *Manager, id JobID, kind UpdateKind) JobUpdate {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case u := <-m.updates:
			m.apply(u, nil)
			if u.JobID == id && u.Kind == kind {
				return u
			}
		case <-deadline:
			t.Fatalf("job %d: no %s update", id, kind)
		}
	}
}

// newBareWorker builds a worker wired to a private channel, for driving a
// worker without a Manager.
func newBareWorker(id JobID) (worker, chan JobUpdate, chan ConflictResolution) {
	updates := make(chan JobUpdate, 4096)
	conflicts := make(chan ConflictResolution, 1)
	return worker{
		id:        id,
		updates:   updates,
		control:   NewControl(),
		conflicts: conflicts,
		logger:    logging.NewNopLogger(),
	}, updates, conflicts
}

func kinds(updates []JobUpdate) []UpdateKind {
	out := make([]UpdateKind, len(updates))
	for i, u := range updates {
		out[i] = u.Kind
	}
	return out
}

func countKind(updates []JobUpdate, kind UpdateKind) int {
	n := 0
	for _, u := range updates {
		if u.Kind == kind {
			n++
		}
	}
	return n
}

func lastOf(updates []JobUpdate, kind UpdateKind) (JobUpdate, bool) {
	for i := len(updates) - 1; i >= 0; i-- {
		if updates[i].Kind == kind {
			return updates[i], true
		}
	}
	return JobUpdate{}, false
}

// writeFiles creates files with content under root. Keys use forward slashes.
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

func assertFileContent(t *testing.T, path, want string) {
	t.Helper()
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if !bytes.Equal(got, []byte(want)) {
		t.Errorf("%s: content mismatch (got %d bytes, want %d)", path, len(got), len(want))
	}
}

func assertNotExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Lstat(path); !os.IsNotExist(err) {
		t.Errorf("%s should not exist (err=%v)", path, err)
	}
}

func mustJob(t *testing.T, m *Manager, id JobID) Job {
	t.Helper()
	job, ok := m.Job(id)
	if !ok {
		t.Fatalf("job %d not found", id)
	}
	return job
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
