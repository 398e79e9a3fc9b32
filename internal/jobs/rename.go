package jobs

import (
	"fmt"
	"os"
)

// renameWorker performs a single rename. The syscall cannot be interrupted,
// so a cancel only takes effect if it arrives before the worker starts.
type renameWorker struct {
	worker

	original string
	newPath  string
}

func (r *renameWorker) run() {
	r.finish(r.execute())
}

func (r *renameWorker) execute() error {
	if r.control.Cancelled() {
		return ErrInterrupted
	}

	if target, err := os.Lstat(r.newPath); err == nil {
		// A case-only rename on a case-insensitive filesystem finds itself
		orig, origErr := os.Lstat(r.original)
		if origErr != nil || !os.SameFile(orig, target) {
			return fmt.Errorf("cannot rename to %s: %w", r.newPath, ErrTargetExists)
		}
	}

	if err := os.Rename(r.original, r.newPath); err != nil {
		return err
	}

	r.filesProcessed = 1
	r.sendProgress(r.newPath)
	return nil
}
