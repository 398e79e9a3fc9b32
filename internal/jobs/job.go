// Package jobs runs copy, move, delete and rename operations in background
// goroutines and tracks them for the UI goroutine.
//
// Workers never touch Job records. They report through a shared JobUpdate
// channel that the UI goroutine drains with Manager.ProcessUpdates, and they
// observe cancel/pause through a Control handed out by the Manager.
package jobs

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dualpane/rc/internal/util/strings"
)

// JobID identifies a job. IDs increase monotonically and are never reused,
// so a higher ID is a newer job.
type JobID uint64

// JobType is the kind of filesystem work a job performs.
type JobType string

const (
	JobCopy   JobType = "copy"
	JobMove   JobType = "move"
	JobDelete JobType = "delete"
	JobRename JobType = "rename"
)

// Verb returns the progressive verb used in descriptions ("Copying").
func (t JobType) Verb() string {
	switch t {
	case JobCopy:
		return "Copying"
	case JobMove:
		return "Moving"
	case JobDelete:
		return "Deleting"
	case JobRename:
		return "Renaming"
	default:
		return string(t)
	}
}

// ParseJobType converts a user-facing name ("cp", "move", ...) to a JobType.
func ParseJobType(s string) (JobType, error) {
	switch s {
	case "copy", "cp":
		return JobCopy, nil
	case "move", "mv":
		return JobMove, nil
	case "delete", "rm":
		return JobDelete, nil
	case "rename":
		return JobRename, nil
	default:
		return "", fmt.Errorf("unknown job type %q", s)
	}
}

// JobState is the state component of a JobStatus.
type JobState string

const (
	StateRunning   JobState = "running"   // Started, not yet surfaced in the status bar
	StateVisible   JobState = "visible"   // Running past the visibility threshold
	StatePaused    JobState = "paused"    // Paused by user
	StateCompleted JobState = "completed" // Successfully completed
	StateFailed    JobState = "failed"    // Failed with error
	StateCancelled JobState = "cancelled" // Cancelled by user or at a conflict prompt
)

// JobStatus is a job's position in its state machine:
//
//	Running -> Visible <-> Paused
//	any of the above -> Completed | Failed | Cancelled
//
// No transition leaves a terminal state.
type JobStatus struct {
	State     JobState
	StartedAt time.Time // Set for Running
	Message   string    // Set for Failed
}

// Running returns a Running status that started at t.
func Running(t time.Time) JobStatus { return JobStatus{State: StateRunning, StartedAt: t} }

// Failed returns a Failed status carrying msg.
func Failed(msg string) JobStatus { return JobStatus{State: StateFailed, Message: msg} }

// IsTerminal reports whether the status is Completed, Failed or Cancelled.
func (s JobStatus) IsTerminal() bool {
	return s.State == StateCompleted || s.State == StateFailed || s.State == StateCancelled
}

// IsActive reports whether the job still has a worker.
func (s JobStatus) IsActive() bool {
	return !s.IsTerminal()
}

func (s JobStatus) String() string {
	if s.State == StateFailed && s.Message != "" {
		return fmt.Sprintf("failed: %s", s.Message)
	}
	return string(s.State)
}

// JobProgress holds a job's counters. Totals are set once, when the scan
// phase completes; processed counters never decrease while the job is active.
type JobProgress struct {
	TotalBytes     int64
	ProcessedBytes int64
	CurrentFile    string
	FilesProcessed int64
	TotalFiles     int64
	SkippedEntries int64 // Entries the scan could not read
	Scanned        bool  // Totals are known
}

// Fraction returns processed/total bytes in [0,1], falling back to file
// counts for zero-byte jobs.
func (p JobProgress) Fraction() float64 {
	switch {
	case p.TotalBytes > 0:
		return clamp01(float64(p.ProcessedBytes) / float64(p.TotalBytes))
	case p.TotalFiles > 0:
		return clamp01(float64(p.FilesProcessed) / float64(p.TotalFiles))
	default:
		return 0
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Job is a tracked unit of background filesystem work. Job records are owned
// by the Manager; callers get copies.
//
// Field use by type:
//   - Copy/Move: Source is the copied path, Destination the target directory.
//   - Delete: Source is the parent directory of the deleted entries.
//   - Rename: Source is the original path, Destination the new path.
type Job struct {
	ID          JobID
	Type        JobType
	Description string
	Source      string
	Destination string
	Status      JobStatus
	Progress    JobProgress
	Throughput  ThroughputTracker
	ParentDir   string // Directory to refresh when a Delete or Rename finishes
}

// Snapshot returns a copy of j that shares no mutable state with it.
func (j *Job) Snapshot() Job {
	c := *j
	c.Throughput = j.Throughput.Clone()
	return c
}

// Summary returns a one-line progress description for status displays.
func (j *Job) Summary() string {
	p := j.Progress
	if !p.Scanned {
		return fmt.Sprintf("%s (scanning)", j.Description)
	}
	return fmt.Sprintf("%s  %s/%s  %d/%d %s  %s",
		j.Description,
		strings.FormatBytes(p.ProcessedBytes), strings.FormatBytes(p.TotalBytes),
		p.FilesProcessed, p.TotalFiles, strings.Pluralize("file", p.TotalFiles),
		strings.FormatSpeed(j.Throughput.Current()))
}

func transferDescription(typ JobType, source, destDir string) string {
	return fmt.Sprintf("%s '%s' to %s", typ.Verb(), filepath.Base(source), destDir)
}

func deleteDescription(paths []string) string {
	if len(paths) == 1 {
		return fmt.Sprintf("Deleting '%s'", filepath.Base(paths[0]))
	}
	return fmt.Sprintf("Deleting %d items", len(paths))
}

func renameDescription(original, newPath string) string {
	return fmt.Sprintf("Renaming '%s' to '%s'", filepath.Base(original), filepath.Base(newPath))
}
