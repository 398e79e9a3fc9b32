package jobs

import "fmt"

// UpdateKind tags a JobUpdate.
type UpdateKind int

const (
	UpdateScanComplete UpdateKind = iota
	UpdateProgress
	UpdateCompleted
	UpdateFailed
	UpdateCancelled
	UpdateConflictDetected
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateScanComplete:
		return "scan_complete"
	case UpdateProgress:
		return "progress"
	case UpdateCompleted:
		return "completed"
	case UpdateFailed:
		return "failed"
	case UpdateCancelled:
		return "cancelled"
	case UpdateConflictDetected:
		return "conflict_detected"
	default:
		return fmt.Sprintf("UpdateKind(%d)", int(k))
	}
}

// JobUpdate is a message from a worker to the Manager. Messages from one
// worker arrive in the order they were sent; there is no ordering between
// different jobs' messages.
type JobUpdate struct {
	JobID JobID
	Kind  UpdateKind

	// ScanComplete
	TotalBytes     int64
	TotalFiles     int64
	SkippedEntries int64

	// Progress
	ProcessedBytes int64
	CurrentFile    string
	FilesProcessed int64

	// Failed
	Err string

	// ConflictDetected
	FilePath string
}

// ConflictResolution is the user's answer to a ConflictDetected update.
type ConflictResolution int

const (
	ResolveOverwrite    ConflictResolution = iota // Overwrite this file
	ResolveSkip                                   // Keep the existing file, count it as processed
	ResolveOverwriteAll                           // Overwrite this and all later conflicts in the job
	ResolveSkipAll                                // Skip this and all later conflicts in the job
	ResolveCancel                                 // Cancel the whole job
)

func (r ConflictResolution) String() string {
	switch r {
	case ResolveOverwrite:
		return "overwrite"
	case ResolveSkip:
		return "skip"
	case ResolveOverwriteAll:
		return "overwrite_all"
	case ResolveSkipAll:
		return "skip_all"
	case ResolveCancel:
		return "cancel"
	default:
		return fmt.Sprintf("ConflictResolution(%d)", int(r))
	}
}

// PendingConflict is a conflict waiting for a user decision.
type PendingConflict struct {
	JobID    JobID
	FilePath string // Existing destination file
}
