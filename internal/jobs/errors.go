package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrInterrupted reports that a worker stopped because its job was
	// cancelled. It maps to the Cancelled status and is never shown as an error.
	ErrInterrupted = errors.New("operation interrupted")

	// ErrConflictCancelled reports that the user chose Cancel at a conflict
	// prompt. It wraps ErrInterrupted.
	ErrConflictCancelled = fmt.Errorf("cancelled at conflict prompt: %w", ErrInterrupted)

	// ErrUnsupportedJobType is returned by StartJob for types other than Copy and Move.
	ErrUnsupportedJobType = errors.New("unsupported job type")

	// ErrDestinationInsideSource is returned when a directory would be copied into itself.
	ErrDestinationInsideSource = errors.New("destination is inside the source")

	// ErrTargetExists is returned when a rename target already exists.
	ErrTargetExists = errors.New("target already exists")

	// ErrSymlinkSource is returned when the top-level transfer source is a symlink.
	ErrSymlinkSource = errors.New("symbolic links are not copied")
)

// PostCopyDeleteError reports that a move copied everything but could not
// remove the source. Data now exists in both places; the copy is not rolled back.
type PostCopyDeleteError struct {
	Source string
	Err    error
}

func (e *PostCopyDeleteError) Error() string {
	return fmt.Sprintf("copied but could not delete source %s: %v", e.Source, e.Err)
}

func (e *PostCopyDeleteError) Unwrap() error {
	return e.Err
}

// IsInterrupted reports whether err means the job was cancelled.
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted)
}
