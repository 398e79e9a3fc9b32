package jobs

import (
	"errors"
	"fmt"

	"github.com/dualpane/rc/internal/logging"
)

// errScanCancelled ends a worker during its scan phase. No terminal update is
// sent for it: only CancelJob can cancel a scan, and that already marked the
// job Cancelled.
var errScanCancelled = fmt.Errorf("scan: %w", ErrInterrupted)

// worker holds what every job goroutine shares: its identity, the update
// channel, its Control and its private conflict channel.
type worker struct {
	id        JobID
	updates   chan<- JobUpdate
	control   *Control
	conflicts <-chan ConflictResolution
	logger    *logging.Logger

	processedBytes int64
	filesProcessed int64
}

func (w *worker) send(u JobUpdate) {
	u.JobID = w.id
	w.updates <- u
}

func (w *worker) sendScanComplete(totalBytes, totalFiles, skipped int64) {
	w.send(JobUpdate{
		Kind:           UpdateScanComplete,
		TotalBytes:     totalBytes,
		TotalFiles:     totalFiles,
		SkippedEntries: skipped,
	})
}

func (w *worker) sendProgress(currentFile string) {
	w.send(JobUpdate{
		Kind:           UpdateProgress,
		ProcessedBytes: w.processedBytes,
		CurrentFile:    currentFile,
		FilesProcessed: w.filesProcessed,
	})
}

// finish reports the terminal outcome of a worker run.
func (w *worker) finish(err error) {
	switch {
	case err == nil:
		w.send(JobUpdate{Kind: UpdateCompleted})
	case errors.Is(err, errScanCancelled):
		w.logger.Debug().Uint64("job_id", uint64(w.id)).Msg("Scan cancelled")
	case IsInterrupted(err):
		w.send(JobUpdate{Kind: UpdateCancelled})
	default:
		w.send(JobUpdate{Kind: UpdateFailed, Err: err.Error()})
	}
}

// scanWarning returns an OnError hook that logs and counts unreadable entries.
func (w *worker) scanWarning(skipped *int64) func(string, error) {
	return func(path string, err error) {
		*skipped++
		w.logger.Warn().
			Uint64("job_id", uint64(w.id)).
			Str("path", path).
			Err(err).
			Msg("Skipping unreadable entry during scan")
	}
}
